package ir

import (
	"testing"

	"github.com/viper-lang/viper/internal/il/opcode"
)

func TestBuilderBasic(t *testing.T) {
	m := NewModule()
	fn := m.AddFunction("add", []Param{
		{ID: 0, Name: "a", Type: I64},
		{ID: 1, Name: "b", Type: I64},
	}, I64)
	fn.nextResultID = 2 // results start after the two parameter ids

	entry := fn.AddBlock("entry")
	sum := NewInstruction(fn, opcode.Add, I64, []Value{Temp{ID: 0}, Temp{ID: 1}})
	if err := entry.Append(sum); err != nil {
		t.Fatalf("append: %v", err)
	}
	ret := &Instruction{Op: opcode.Ret, Operands: []Value{Temp{ID: sum.Result}}}
	if err := entry.Append(ret); err != nil {
		t.Fatalf("append ret: %v", err)
	}

	if !entry.Terminated {
		t.Fatalf("expected entry block to be terminated after ret")
	}
	if len(entry.Instructions) != 2 {
		t.Fatalf("expected 2 instructions, got %d", len(entry.Instructions))
	}
	if m.FindFunction("add") != fn {
		t.Fatalf("FindFunction did not return the same function")
	}
}

func TestAppendAfterTerminatorFails(t *testing.T) {
	m := NewModule()
	fn := m.AddFunction("f", nil, Void)
	b := fn.AddBlock("entry")
	if err := b.Append(&Instruction{Op: opcode.Ret}); err != nil {
		t.Fatalf("append ret: %v", err)
	}
	err := b.Append(&Instruction{Op: opcode.Ret})
	if err == nil {
		t.Fatalf("expected error appending to a sealed block")
	}
}

func TestDuplicateResultIDPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate result id")
		}
	}()
	fn := &Function{Name: "f"}
	fn.markResultUsed(5)
	fn.markResultUsed(5)
}

func TestDuplicateBlockLabelPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate block label")
		}
	}()
	m := NewModule()
	fn := m.AddFunction("f", nil, Void)
	fn.AddBlock("entry")
	fn.AddBlock("entry")
}

func TestFindBlock(t *testing.T) {
	m := NewModule()
	fn := m.AddFunction("f", nil, Void)
	fn.AddBlock("entry")
	loop := fn.AddBlock("loop")

	if FindBlock(fn, "loop") != loop {
		t.Fatalf("FindBlock did not resolve \"loop\"")
	}
	if FindBlock(fn, "missing") != nil {
		t.Fatalf("expected nil for unknown label")
	}
}
