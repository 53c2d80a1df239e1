// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package ilio

import (
	"strings"
	"testing"

	"github.com/viper-lang/viper/internal/il/ir"
)

const sampleModule = `il 1

extern @rt_print_i64(i64) -> void

global str @greeting = "hi\n"

func @add(%a: i64, %b: i64) -> i64 {
entry:
  %sum = add %a, %b
  ret %sum
}

func @branchy(%n: i64) -> i64 {
entry:
  %cond = icmp.eq %n, 0
  cbr %cond, zero, nonzero
zero:
  ret 0
nonzero:
  %dec = sub %n, 1
  ret %dec
}
`

func TestParseWellFormedModule(t *testing.T) {
	m, diags := Parse(sampleModule, 1)
	for _, d := range diags {
		if d.Severity.String() == "error" {
			t.Fatalf("unexpected diagnostic: %s", d.String())
		}
	}
	if len(m.Externs) != 1 || m.Externs[0].Name != "rt_print_i64" {
		t.Fatalf("externs = %+v", m.Externs)
	}
	if len(m.Globals) != 1 || m.Globals[0].Name != "greeting" {
		t.Fatalf("globals = %+v", m.Globals)
	}
	if len(m.Functions) != 2 {
		t.Fatalf("functions = %d, want 2", len(m.Functions))
	}

	add := m.FindFunction("add")
	if add == nil || len(add.Blocks) != 1 {
		t.Fatalf("add function malformed: %+v", add)
	}
	if len(add.Blocks[0].Instructions) != 2 {
		t.Fatalf("add.entry instructions = %d, want 2", len(add.Blocks[0].Instructions))
	}

	branchy := m.FindFunction("branchy")
	if branchy == nil || len(branchy.Blocks) != 3 {
		t.Fatalf("branchy function malformed: %+v", branchy)
	}
	entry := branchy.Blocks[0]
	if !entry.Terminated {
		t.Fatalf("entry block should be terminated by cbr")
	}
	cbr := entry.Instructions[len(entry.Instructions)-1]
	if len(cbr.Labels) != 2 || cbr.Labels[0] != "zero" || cbr.Labels[1] != "nonzero" {
		t.Fatalf("cbr labels = %v", cbr.Labels)
	}
}

func TestParseMultipleBlocksInOneFunction(t *testing.T) {
	// Regression test: the parser must not swallow a second block's label
	// line as though it were an instruction inside the first block.
	m, diags := Parse(sampleModule, 1)
	for _, d := range diags {
		t.Logf("diag: %s", d.String())
	}
	branchy := m.FindFunction("branchy")
	labels := []string{}
	for _, b := range branchy.Blocks {
		labels = append(labels, b.Label)
	}
	want := "entry,zero,nonzero"
	if strings.Join(labels, ",") != want {
		t.Fatalf("block labels = %v, want %s", labels, want)
	}
}

func TestParseUnknownOpcodeRecoversAndReportsOne(t *testing.T) {
	src := "il 1\nfunc @f() -> void {\nentry:\n  bogus.op %x\n  ret\n}\n"
	_, diags := Parse(src, 1)
	if len(diags) == 0 {
		t.Fatal("expected a diagnostic for the unknown opcode")
	}
	found := false
	for _, d := range diags {
		if strings.Contains(d.Message, "bogus.op") {
			found = true
		}
	}
	if !found {
		t.Fatalf("diagnostics %+v did not mention the bad opcode", diags)
	}
}

func TestParseUnresolvedBlockLabelReported(t *testing.T) {
	src := "il 1\nfunc @f() -> void {\nentry:\n  br nowhere\n}\n"
	_, diags := Parse(src, 1)
	found := false
	for _, d := range diags {
		if strings.Contains(d.Message, "nowhere") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a diagnostic about unknown block 'nowhere', got %+v", diags)
	}
}

func TestParseSwitchCases(t *testing.T) {
	src := "il 1\nfunc @f(%n: i32) -> void {\nentry:\n" +
		"  switch.i32 %n, default other, case 0 zero, case 1 one\n" +
		"zero:\n  ret\none:\n  ret\nother:\n  ret\n}\n"
	m, diags := Parse(src, 1)
	for _, d := range diags {
		t.Logf("diag: %s", d.String())
	}
	fn := m.FindFunction("f")
	sw := fn.Blocks[0].Instructions[0]
	if sw.Labels[0] != "other" {
		t.Fatalf("default label = %q, want other", sw.Labels[0])
	}
	if len(sw.SwitchCases) != 2 || sw.SwitchCases[0] != 0 || sw.SwitchCases[1] != 1 {
		t.Fatalf("switch cases = %v", sw.SwitchCases)
	}
	if sw.Labels[1] != "zero" || sw.Labels[2] != "one" {
		t.Fatalf("case labels = %v", sw.Labels)
	}
}

func TestParseCallWithArgsAndResult(t *testing.T) {
	src := "il 1\nextern @rt_id(i64) -> i64\nfunc @f(%x: i64) -> i64 {\nentry:\n" +
		"  %r = call @rt_id(%x)\n  ret %r\n}\n"
	m, diags := Parse(src, 1)
	for _, d := range diags {
		t.Logf("diag: %s", d.String())
	}
	fn := m.FindFunction("f")
	call := fn.Blocks[0].Instructions[0]
	if call.Callee != "rt_id" {
		t.Fatalf("callee = %q", call.Callee)
	}
	if !call.HasResult {
		t.Fatalf("expected call to bind a result")
	}
	if len(call.Operands) != 1 {
		t.Fatalf("call operands = %v", call.Operands)
	}
	if _, ok := call.Operands[0].(ir.Temp); !ok {
		t.Fatalf("call arg 0 = %T, want ir.Temp", call.Operands[0])
	}
}

func TestRoundTripPrintThenParse(t *testing.T) {
	m1, diags := Parse(sampleModule, 1)
	for _, d := range diags {
		t.Logf("parse 1 diag: %s", d.String())
	}
	printed := Print(m1)

	m2, diags2 := Parse(printed, 1)
	for _, d := range diags2 {
		t.Fatalf("round-trip parse produced a diagnostic: %s\n--- printed ---\n%s", d.String(), printed)
	}

	if len(m1.Functions) != len(m2.Functions) {
		t.Fatalf("function count changed across round-trip: %d vs %d", len(m1.Functions), len(m2.Functions))
	}
	for i, fn1 := range m1.Functions {
		fn2 := m2.Functions[i]
		if fn1.Name != fn2.Name {
			t.Fatalf("function %d name changed: %s vs %s", i, fn1.Name, fn2.Name)
		}
		if len(fn1.Blocks) != len(fn2.Blocks) {
			t.Fatalf("function %s block count changed: %d vs %d", fn1.Name, len(fn1.Blocks), len(fn2.Blocks))
		}
		for j, b1 := range fn1.Blocks {
			b2 := fn2.Blocks[j]
			if b1.Label != b2.Label {
				t.Fatalf("function %s block %d label changed: %s vs %s", fn1.Name, j, b1.Label, b2.Label)
			}
			if len(b1.Instructions) != len(b2.Instructions) {
				t.Fatalf("function %s block %s instruction count changed: %d vs %d",
					fn1.Name, b1.Label, len(b1.Instructions), len(b2.Instructions))
			}
			for k, i1 := range b1.Instructions {
				i2 := b2.Instructions[k]
				if i1.Op != i2.Op {
					t.Fatalf("function %s block %s instr %d opcode changed: %s vs %s",
						fn1.Name, b1.Label, k, i1.Op, i2.Op)
				}
			}
		}
	}
}

func TestPrintDeterministic(t *testing.T) {
	m, _ := Parse(sampleModule, 1)
	a := Print(m)
	b := Print(m)
	if a != b {
		t.Fatal("Print is not deterministic across repeated calls on the same module")
	}
}
