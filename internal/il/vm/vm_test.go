// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package vm

import (
	"testing"

	"github.com/viper-lang/viper/internal/il/ilio"
	"github.com/viper-lang/viper/internal/il/ir"
	"github.com/viper-lang/viper/internal/il/opcode"
	"github.com/viper-lang/viper/internal/source"
)

// TestArithmeticReturn covers the 40+2-1=41 golden scenario: a
// straight-line function with no control flow beyond its own `ret`.
func TestArithmeticReturn(t *testing.T) {
	m := ir.NewModule()
	fn := m.AddFunction("main", nil, ir.I64)
	entry := fn.AddBlock("entry")

	a := ir.NewInstruction(fn, opcode.Add, ir.I64, []ir.Value{ir.ConstInt{Val: 40}, ir.ConstInt{Val: 2}})
	entry.Append(a)
	b := ir.NewInstruction(fn, opcode.Sub, ir.I64, []ir.Value{ir.Temp{ID: a.Result}, ir.ConstInt{Val: 1}})
	entry.Append(b)
	entry.Append(&ir.Instruction{Op: opcode.Ret, Operands: []ir.Value{ir.Temp{ID: b.Result}}})

	machine, err := New(m, DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := machine.Run("main")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.I != 41 {
		t.Fatalf("got %d, want 41", res.I)
	}
}

// Note: the "verifier rejects an eh.push left unpopped before ret" golden
// scenario is covered by internal/il/verify's TestVerifyEhStackLeakFlagged
// — that is a verifier-level property, not a VM one.

// TestTrapCaughtByHandlerAndResumes covers the golden scenario where a
// checked division by zero traps inside a protected region, the handler
// catches it and resumes execution at the eh.pop that follows the fault,
// and the function completes normally.
func TestTrapCaughtByHandlerAndResumes(t *testing.T) {
	m := ir.NewModule()
	fn := m.AddFunction("main", nil, ir.I64)
	entry := fn.AddBlock("entry")
	handler := fn.AddBlock("handler")

	entry.Append(&ir.Instruction{Op: opcode.EhPush, Labels: []string{"handler"}, BrArgs: [][]ir.Value{nil}})
	fault := ir.NewInstruction(fn, opcode.SdivChk0, ir.I64, []ir.Value{ir.ConstInt{Val: 10}, ir.ConstInt{Val: 0}})
	entry.Append(fault)
	entry.Append(&ir.Instruction{Op: opcode.EhPop})
	entry.Append(&ir.Instruction{Op: opcode.Ret, Operands: []ir.Value{ir.ConstInt{Val: 99}}})

	tok := ir.NewInstruction(fn, opcode.EhEntry, ir.ResumeTok, nil)
	handler.Append(tok)
	handler.Append(&ir.Instruction{Op: opcode.ResumeNext, Operands: []ir.Value{ir.Temp{ID: tok.Result}}})

	machine, err := New(m, DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := machine.Run("main")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.I != 99 {
		t.Fatalf("got %d, want 99", res.I)
	}
}

// TestResumeLabelRetiresHandlerOnBypass covers resume.label jumping past
// its protected region's own eh.pop: the handler it resumes from must
// still be retired, so a second, later fault is not caught by a stale
// handler entry left on the stack.
func TestResumeLabelRetiresHandlerOnBypass(t *testing.T) {
	m := ir.NewModule()
	fn := m.AddFunction("main", nil, ir.I64)
	entry := fn.AddBlock("entry")
	handler := fn.AddBlock("handler")
	cont := fn.AddBlock("cont")

	entry.Append(&ir.Instruction{Op: opcode.EhPush, Labels: []string{"handler"}, BrArgs: [][]ir.Value{nil}})
	fault := ir.NewInstruction(fn, opcode.SdivChk0, ir.I64, []ir.Value{ir.ConstInt{Val: 10}, ir.ConstInt{Val: 0}})
	entry.Append(fault)
	// Never reached: resume.label jumps straight to cont, bypassing both
	// this eh.pop and the ret that follows it.
	entry.Append(&ir.Instruction{Op: opcode.EhPop})
	entry.Append(&ir.Instruction{Op: opcode.Ret, Operands: []ir.Value{ir.ConstInt{Val: 1}}})

	tok := ir.NewInstruction(fn, opcode.EhEntry, ir.ResumeTok, nil)
	handler.Append(tok)
	handler.Append(&ir.Instruction{Op: opcode.ResumeLabel, Operands: []ir.Value{ir.Temp{ID: tok.Result}},
		Labels: []string{"cont"}, BrArgs: [][]ir.Value{nil}})

	// A second fault with no handler left on the stack: if resume.label
	// had left the first handler's entry in place, this would be caught
	// and jump back to handler again instead of escaping.
	fault2 := ir.NewInstruction(fn, opcode.SdivChk0, ir.I64, []ir.Value{ir.ConstInt{Val: 5}, ir.ConstInt{Val: 0}})
	cont.Append(fault2)
	cont.Append(&ir.Instruction{Op: opcode.Ret, Operands: []ir.Value{ir.ConstInt{Val: 2}}})

	machine, err := New(m, DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := machine.Run("main"); err == nil {
		t.Fatal("expected the second, uncaught fault to escape Run, got nil error")
	}
}

// TestSumLoopRoundTrip builds a loop summing 1..5 via basic-block
// arguments in place of phi nodes, prints it, reparses the printed text,
// and runs the reparsed module — exercising the printer/parser round trip
// and branch-argument binding together.
func TestSumLoopRoundTrip(t *testing.T) {
	m := ir.NewModule()
	fn := m.AddFunction("sum", nil, ir.I64)
	fn.SetName(0, "i")
	fn.SetName(1, "acc")
	fn.SetName(2, "r")
	fn.SetNextResultID(3)

	entry := fn.AddBlock("entry")
	loop := fn.AddBlock("loop")
	body := fn.AddBlock("body")
	exit := fn.AddBlock("exit")

	loop.Params = []ir.BlockParam{{ID: 0, Name: "i", Type: ir.I64}, {ID: 1, Name: "acc", Type: ir.I64}}
	exit.Params = []ir.BlockParam{{ID: 2, Name: "r", Type: ir.I64}}

	entry.Append(&ir.Instruction{
		Op: opcode.Br, Labels: []string{"loop"},
		BrArgs: [][]ir.Value{{ir.ConstInt{Val: 1}, ir.ConstInt{Val: 0}}},
	})

	cond := ir.NewInstruction(fn, opcode.ScmpGt, ir.I1, []ir.Value{ir.Temp{ID: 0}, ir.ConstInt{Val: 5}})
	loop.Append(cond)
	loop.Append(&ir.Instruction{
		Op: opcode.Cbr, Operands: []ir.Value{ir.Temp{ID: cond.Result}},
		Labels: []string{"exit", "body"},
		BrArgs: [][]ir.Value{{ir.Temp{ID: 1}}, nil},
	})

	accNext := ir.NewInstruction(fn, opcode.Add, ir.I64, []ir.Value{ir.Temp{ID: 1}, ir.Temp{ID: 0}})
	body.Append(accNext)
	iNext := ir.NewInstruction(fn, opcode.Add, ir.I64, []ir.Value{ir.Temp{ID: 0}, ir.ConstInt{Val: 1}})
	body.Append(iNext)
	body.Append(&ir.Instruction{
		Op: opcode.Br, Labels: []string{"loop"},
		BrArgs: [][]ir.Value{{ir.Temp{ID: iNext.Result}, ir.Temp{ID: accNext.Result}}},
	})

	exit.Append(&ir.Instruction{Op: opcode.Ret, Operands: []ir.Value{ir.Temp{ID: 2}}})

	text := ilio.Print(m)
	reparsed, diags := ilio.Parse(text, 0)
	for _, d := range diags {
		t.Fatalf("unexpected parse diagnostic: %s", d.String())
	}

	machine, err := New(reparsed, DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := machine.Run("sum")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.I != 15 {
		t.Fatalf("got %d, want 15 (printed form:\n%s)", res.I, text)
	}
}

// TestBreakpointCoalescing covers the golden scenario where two
// instructions sharing one source line trigger exactly one debugger stop,
// and a later instruction on a different line resets the suppression so
// the same line can stop again on a subsequent visit.
func TestBreakpointCoalescing(t *testing.T) {
	mgr := source.NewManager()
	fileID, err := mgr.AddFile("test.bas")
	if err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	m := ir.NewModule()
	fn := m.AddFunction("main", nil, ir.I64)
	entry := fn.AddBlock("entry")

	loc10 := ir.SourceLoc{FileID: fileID, Line: 10, Column: 1}
	loc20 := ir.SourceLoc{FileID: fileID, Line: 20, Column: 1}

	i1 := ir.NewInstruction(fn, opcode.Add, ir.I64, []ir.Value{ir.ConstInt{Val: 1}, ir.ConstInt{Val: 1}})
	i1.Loc = loc10
	entry.Append(i1)

	i2 := ir.NewInstruction(fn, opcode.Add, ir.I64, []ir.Value{ir.ConstInt{Val: 2}, ir.ConstInt{Val: 2}})
	i2.Loc = loc10
	entry.Append(i2)

	i3 := ir.NewInstruction(fn, opcode.Add, ir.I64, []ir.Value{ir.ConstInt{Val: 3}, ir.ConstInt{Val: 3}})
	i3.Loc = loc20
	entry.Append(i3)

	i4 := ir.NewInstruction(fn, opcode.Add, ir.I64, []ir.Value{ir.ConstInt{Val: 4}, ir.ConstInt{Val: 4}})
	i4.Loc = loc10
	entry.Append(i4)

	entry.Append(&ir.Instruction{Op: opcode.Ret, Operands: []ir.Value{ir.ConstInt{Val: 0}}})

	hits := 0
	cfg := DefaultConfig()
	cfg.Breakpoints = []string{"test.bas:10"}
	machine, err := New(m, cfg, WithSourceManager(mgr), WithBreakHook(func(*Frame, *ir.BasicBlock, int) {
		hits++
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := machine.Run("main"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if hits != 2 {
		t.Fatalf("got %d breakpoint hits, want 2 (one coalesced pair, one re-trigger)", hits)
	}
}

// TestSwitchWithDefault covers switch.i32 routing a matched case to its
// target and every other value to the default target.
func TestSwitchWithDefault(t *testing.T) {
	m := ir.NewModule()
	fn := m.AddFunction("classify", []ir.Param{{ID: 0, Name: "x", Type: ir.I32}}, ir.I64)
	fn.SetNextResultID(1)
	entry := fn.AddBlock("entry")
	caseTwo := fn.AddBlock("case_two")
	def := fn.AddBlock("default")

	entry.Append(&ir.Instruction{
		Op:          opcode.SwitchI32,
		Operands:    []ir.Value{ir.Temp{ID: 0}},
		Labels:      []string{"default", "case_two"},
		SwitchCases: []int32{2},
		BrArgs:      [][]ir.Value{nil, nil},
	})
	caseTwo.Append(&ir.Instruction{Op: opcode.Ret, Operands: []ir.Value{ir.ConstInt{Val: 200}}})
	def.Append(&ir.Instruction{Op: opcode.Ret, Operands: []ir.Value{ir.ConstInt{Val: -1}}})

	machine, err := New(m, DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if res, err := machine.Run("classify", intVal(2)); err != nil || res.I != 200 {
		t.Fatalf("x=2: got (%+v, %v), want (200, nil)", res, err)
	}
	if res, err := machine.Run("classify", intVal(7)); err != nil || res.I != -1 {
		t.Fatalf("x=7: got (%+v, %v), want (-1, nil)", res, err)
	}
}
