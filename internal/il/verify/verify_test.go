// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package verify

import (
	"testing"

	"github.com/viper-lang/viper/internal/diag"
	"github.com/viper-lang/viper/internal/il/ir"
	"github.com/viper-lang/viper/internal/il/opcode"
)

func containsCode(diags []diag.Diagnostic, code string) bool {
	for _, d := range diags {
		if d.Code == code {
			return true
		}
	}
	return false
}

func buildWellFormedAdd() *ir.Function {
	m := ir.NewModule()
	fn := m.AddFunction("add", []ir.Param{{ID: 0, Name: "a", Type: ir.I64}, {ID: 1, Name: "b", Type: ir.I64}}, ir.I64)
	fn.SetNextResultID(2)
	entry := fn.AddBlock("entry")
	sum := ir.NewInstruction(fn, opcode.Add, ir.I64, []ir.Value{ir.Temp{ID: 0}, ir.Temp{ID: 1}})
	entry.Append(sum)
	entry.Append(&ir.Instruction{Op: opcode.Ret, Operands: []ir.Value{ir.Temp{ID: sum.Result}}})
	return fn
}

func TestVerifyWellFormedFunction(t *testing.T) {
	fn := buildWellFormedAdd()
	diags := Verify(fn)
	for _, d := range diags {
		t.Errorf("unexpected diagnostic: %s", d.String())
	}
}

func TestVerifyUnterminatedBlockFlagged(t *testing.T) {
	m := ir.NewModule()
	fn := m.AddFunction("f", nil, ir.Void)
	fn.AddBlock("entry") // no instructions, never terminated
	diags := Verify(fn)
	if !containsCode(diags, "cfg.unterminated-block") {
		t.Fatalf("expected cfg.unterminated-block, got %+v", diags)
	}
}

func TestVerifyUnresolvedLabelFlagged(t *testing.T) {
	m := ir.NewModule()
	fn := m.AddFunction("f", nil, ir.Void)
	entry := fn.AddBlock("entry")
	entry.Append(&ir.Instruction{Op: opcode.Br, Labels: []string{"nowhere"}, BrArgs: [][]ir.Value{nil}})
	diags := Verify(fn)
	if !containsCode(diags, "cfg.unresolved-label") {
		t.Fatalf("expected cfg.unresolved-label, got %+v", diags)
	}
}

func TestVerifyMissingResultFlagged(t *testing.T) {
	m := ir.NewModule()
	fn := m.AddFunction("f", nil, ir.Void)
	entry := fn.AddBlock("entry")
	entry.Append(&ir.Instruction{Op: opcode.Add, Operands: []ir.Value{ir.ConstInt{Val: 1}, ir.ConstInt{Val: 2}}})
	entry.Append(&ir.Instruction{Op: opcode.Ret})
	diags := Verify(fn)
	if !containsCode(diags, "sig.missing-result") {
		t.Fatalf("expected sig.missing-result, got %+v", diags)
	}
}

func TestVerifyOperandCountFlagged(t *testing.T) {
	m := ir.NewModule()
	fn := m.AddFunction("f", nil, ir.Void)
	entry := fn.AddBlock("entry")
	entry.Append(&ir.Instruction{Op: opcode.Add, Operands: []ir.Value{ir.ConstInt{Val: 1}}})
	entry.Append(&ir.Instruction{Op: opcode.Ret})
	diags := Verify(fn)
	if !containsCode(diags, "sig.operand-count") {
		t.Fatalf("expected sig.operand-count, got %+v", diags)
	}
}

func TestVerifyDuplicateSwitchCaseFlagged(t *testing.T) {
	m := ir.NewModule()
	fn := m.AddFunction("f", nil, ir.Void)
	entry := fn.AddBlock("entry")
	fn.AddBlock("c0")
	fn.AddBlock("c1")
	entry.Append(&ir.Instruction{
		Op:          opcode.SwitchI32,
		Operands:    []ir.Value{ir.ConstInt{Val: 0}},
		Labels:      []string{"c0", "c0", "c1"},
		BrArgs:      [][]ir.Value{nil, nil, nil},
		SwitchCases: []int32{1, 1},
	})
	fn.Blocks[1].Append(&ir.Instruction{Op: opcode.Ret})
	fn.Blocks[2].Append(&ir.Instruction{Op: opcode.Ret})
	diags := Verify(fn)
	if !containsCode(diags, "cfg.switch-duplicate-case") {
		t.Fatalf("expected cfg.switch-duplicate-case, got %+v", diags)
	}
}

func TestVerifyUndefinedTempFlagged(t *testing.T) {
	m := ir.NewModule()
	fn := m.AddFunction("f", nil, ir.I64)
	entry := fn.AddBlock("entry")
	// %0 referenced before anything defines it.
	entry.Append(&ir.Instruction{Op: opcode.Ret, Operands: []ir.Value{ir.Temp{ID: 0}}})
	diags := Verify(fn)
	if !containsCode(diags, "ssa.undefined-temp") {
		t.Fatalf("expected ssa.undefined-temp, got %+v", diags)
	}
}

func TestVerifyUseWithNoDefInTerminatedBlockFlagged(t *testing.T) {
	m := ir.NewModule()
	fn := m.AddFunction("f", nil, ir.I64)
	entry := fn.AddBlock("entry")
	// %5 is used by the block's only instruction, a ret. entry is
	// terminated by that ret, so no defining instruction can follow it.
	entry.Append(&ir.Instruction{Op: opcode.Ret, Operands: []ir.Value{ir.Temp{ID: 5}}})
	diags := Verify(fn)
	// With no def anywhere in the function, the use is reported as
	// undefined rather than as use-before-def.
	if !containsCode(diags, "ssa.undefined-temp") {
		t.Fatalf("expected ssa.undefined-temp, got %+v", diags)
	}
}

func TestVerifyUseBeforeDefWithinBlockReordered(t *testing.T) {
	m := ir.NewModule()
	fn := m.AddFunction("f", nil, ir.I64)
	entry := fn.AddBlock("entry")
	// Manually place a use at index 0 and its defining instruction at
	// index 1, bypassing NewInstruction's sequential allocation so the
	// def is recorded at a later instrIdx than its use.
	entry.Instructions = append(entry.Instructions,
		&ir.Instruction{Op: opcode.Ret, Operands: []ir.Value{ir.Temp{ID: 9}}},
	)
	entry.Instructions = append(entry.Instructions,
		&ir.Instruction{Op: opcode.Add, HasResult: true, Result: 9, Type: ir.I64,
			Operands: []ir.Value{ir.ConstInt{Val: 1}, ir.ConstInt{Val: 2}}},
	)
	entry.Terminated = true
	diags := Verify(fn)
	if !containsCode(diags, "ssa.use-before-def") {
		t.Fatalf("expected ssa.use-before-def, got %+v", diags)
	}
}

func TestVerifyUseNotDominatedAcrossBlocksFlagged(t *testing.T) {
	m := ir.NewModule()
	fn := m.AddFunction("f", nil, ir.I64)
	entry := fn.AddBlock("entry")
	left := fn.AddBlock("left")
	right := fn.AddBlock("right")
	join := fn.AddBlock("join")

	cond := ir.NewInstruction(fn, opcode.IcmpEq, ir.I1, []ir.Value{ir.ConstInt{Val: 0}, ir.ConstInt{Val: 0}})
	entry.Append(cond)
	entry.Append(&ir.Instruction{Op: opcode.Cbr, Operands: []ir.Value{ir.Temp{ID: cond.Result}},
		Labels: []string{"left", "right"}, BrArgs: [][]ir.Value{nil, nil}})

	onlyInLeft := ir.NewInstruction(fn, opcode.Add, ir.I64, []ir.Value{ir.ConstInt{Val: 1}, ir.ConstInt{Val: 2}})
	left.Append(onlyInLeft)
	left.Append(&ir.Instruction{Op: opcode.Br, Labels: []string{"join"}, BrArgs: [][]ir.Value{nil}})
	right.Append(&ir.Instruction{Op: opcode.Br, Labels: []string{"join"}, BrArgs: [][]ir.Value{nil}})

	// join uses a value only left defines: left does not dominate join.
	join.Append(&ir.Instruction{Op: opcode.Ret, Operands: []ir.Value{ir.Temp{ID: onlyInLeft.Result}}})

	diags := Verify(fn)
	if !containsCode(diags, "ssa.use-not-dominated") {
		t.Fatalf("expected ssa.use-not-dominated, got %+v", diags)
	}
}

func TestVerifyEhPopUnderflowFlagged(t *testing.T) {
	m := ir.NewModule()
	fn := m.AddFunction("f", nil, ir.Void)
	entry := fn.AddBlock("entry")
	entry.Append(&ir.Instruction{Op: opcode.EhPop})
	entry.Append(&ir.Instruction{Op: opcode.Ret})
	diags := Verify(fn)
	if !containsCode(diags, "eh.stack-underflow") {
		t.Fatalf("expected eh.stack-underflow, got %+v", diags)
	}
}

func TestVerifyEhStackLeakFlagged(t *testing.T) {
	m := ir.NewModule()
	fn := m.AddFunction("f", nil, ir.Void)
	entry := fn.AddBlock("entry")
	entry.Append(&ir.Instruction{Op: opcode.EhPush, Labels: []string{"handler"}, BrArgs: [][]ir.Value{nil}})
	entry.Append(&ir.Instruction{Op: opcode.Ret})
	handler := fn.AddBlock("handler")
	handler.Append(&ir.Instruction{Op: opcode.EhEntry})
	handler.Append(&ir.Instruction{Op: opcode.Ret})
	diags := Verify(fn)
	if !containsCode(diags, "eh.stack-leak") {
		t.Fatalf("expected eh.stack-leak, got %+v", diags)
	}
}

func TestVerifyBalancedEhHasNoLeakOrUnderflow(t *testing.T) {
	m := ir.NewModule()
	fn := m.AddFunction("f", nil, ir.Void)
	entry := fn.AddBlock("entry")
	entry.Append(&ir.Instruction{Op: opcode.EhPush, Labels: []string{"handler"}, BrArgs: [][]ir.Value{nil}})
	entry.Append(&ir.Instruction{Op: opcode.EhPop})
	entry.Append(&ir.Instruction{Op: opcode.Ret})
	handler := fn.AddBlock("handler")
	handler.Append(&ir.Instruction{Op: opcode.EhEntry})
	handler.Append(&ir.Instruction{Op: opcode.Ret})
	diags := Verify(fn)
	if containsCode(diags, "eh.stack-leak") || containsCode(diags, "eh.stack-underflow") {
		t.Fatalf("unexpected EH diagnostics: %+v", diags)
	}
}

func TestVerifyResumeWithoutTokenFlagged(t *testing.T) {
	m := ir.NewModule()
	fn := m.AddFunction("f", nil, ir.Void)
	entry := fn.AddBlock("entry")
	// A plain branch into "handler" never sets the abstract resume-token
	// bit (only an actual trap transfer does), so resuming there is
	// invalid even though the block looks like a handler.
	entry.Append(&ir.Instruction{Op: opcode.Br, Labels: []string{"handler"}, BrArgs: [][]ir.Value{nil}})
	handler := fn.AddBlock("handler")
	fakeTok := ir.NewInstruction(fn, opcode.ConstNull, ir.Ptr, nil)
	handler.Append(fakeTok)
	handler.Append(&ir.Instruction{Op: opcode.ResumeSame, Operands: []ir.Value{ir.Temp{ID: fakeTok.Result}}})
	diags := Verify(fn)
	if !containsCode(diags, "eh.resume-token-missing") {
		t.Fatalf("expected eh.resume-token-missing, got %+v", diags)
	}
}

func TestVerifyResumeNotPostdominatingFlagged(t *testing.T) {
	m := ir.NewModule()
	fn := m.AddFunction("f", nil, ir.Void)
	entry := fn.AddBlock("entry")
	left := fn.AddBlock("left")
	right := fn.AddBlock("right")
	handler := fn.AddBlock("handler")

	entry.Append(&ir.Instruction{Op: opcode.EhPush, Labels: []string{"handler"}, BrArgs: [][]ir.Value{nil}})
	cond := ir.NewInstruction(fn, opcode.IcmpEq, ir.I1, []ir.Value{ir.ConstInt{Val: 0}, ir.ConstInt{Val: 0}})
	entry.Append(cond)
	entry.Append(&ir.Instruction{Op: opcode.Cbr, Operands: []ir.Value{ir.Temp{ID: cond.Result}},
		Labels: []string{"left", "right"}, BrArgs: [][]ir.Value{nil, nil}})

	// left traps into handler; right returns cleanly without ever trapping.
	left.Append(&ir.Instruction{Op: opcode.Trap, Operands: []ir.Value{ir.ConstInt{Val: 0}}})
	right.Append(&ir.Instruction{Op: opcode.Ret})

	tok := ir.NewInstruction(fn, opcode.EhEntry, ir.ResumeTok, nil)
	handler.Append(tok)
	// resume.label targets right, which cannot postdominate left (the
	// block that actually trapped into this handler).
	handler.Append(&ir.Instruction{Op: opcode.ResumeLabel, Operands: []ir.Value{ir.Temp{ID: tok.Result}},
		Labels: []string{"right"}, BrArgs: [][]ir.Value{nil}})

	diags := Verify(fn)
	if !containsCode(diags, "eh.resume-not-postdominating") {
		t.Fatalf("expected eh.resume-not-postdominating, got %+v", diags)
	}
}

func TestVerifyResumeThatPostdominatesNotFlagged(t *testing.T) {
	m := ir.NewModule()
	fn := m.AddFunction("f", nil, ir.Void)
	entry := fn.AddBlock("entry")
	body := fn.AddBlock("body")
	cont := fn.AddBlock("cont")
	handler := fn.AddBlock("handler")

	entry.Append(&ir.Instruction{Op: opcode.EhPush, Labels: []string{"handler"}, BrArgs: [][]ir.Value{nil}})
	entry.Append(&ir.Instruction{Op: opcode.Br, Labels: []string{"body"}, BrArgs: [][]ir.Value{nil}})

	// sdiv.chk0 can trap at runtime without being a block terminator, so
	// body falls through to cont on every path, real or faulting.
	div := ir.NewInstruction(fn, opcode.SdivChk0, ir.I64, []ir.Value{ir.ConstInt{Val: 10}, ir.ConstInt{Val: 2}})
	body.Append(div)
	body.Append(&ir.Instruction{Op: opcode.Br, Labels: []string{"cont"}, BrArgs: [][]ir.Value{nil}})

	cont.Append(&ir.Instruction{Op: opcode.EhPop})
	cont.Append(&ir.Instruction{Op: opcode.Ret})

	tok := ir.NewInstruction(fn, opcode.EhEntry, ir.ResumeTok, nil)
	handler.Append(tok)
	// resume.label targets cont, which genuinely postdominates body (the
	// only block that could have faulted into this handler): every path
	// out of body passes through cont.
	handler.Append(&ir.Instruction{Op: opcode.ResumeLabel, Operands: []ir.Value{ir.Temp{ID: tok.Result}},
		Labels: []string{"cont"}, BrArgs: [][]ir.Value{nil}})

	diags := Verify(fn)
	if containsCode(diags, "eh.resume-not-postdominating") {
		t.Fatalf("unexpected eh.resume-not-postdominating: %+v", diags)
	}
}
