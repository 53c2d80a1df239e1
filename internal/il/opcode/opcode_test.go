package opcode

import "testing"

func TestEveryOpcodeHasAnEntry(t *testing.T) {
	for i := 0; i < Count; i++ {
		op := Opcode(i)
		info := Lookup(op)
		if info.Mnemonic == "" {
			t.Fatalf("opcode %d has no metadata entry", i)
		}
	}
}

func TestByMnemonicRoundTrip(t *testing.T) {
	for i := 0; i < Count; i++ {
		op := Opcode(i)
		info := Lookup(op)
		got, ok := ByMnemonic(info.Mnemonic)
		if !ok {
			t.Fatalf("mnemonic %q does not resolve back to an opcode", info.Mnemonic)
		}
		if got != op {
			t.Fatalf("mnemonic %q resolved to %d, want %d", info.Mnemonic, got, op)
		}
	}
}

func TestTerminatorsHaveNoFallthroughSuccessorZero(t *testing.T) {
	// br/cbr/switch.i32/resume.label must declare at least one successor;
	// ret/trap/trap.from_err/resume.same/resume.next are terminators with
	// zero successors (they leave the function or hand control to the VM's
	// EH machinery directly).
	mustHaveSuccessor := []Opcode{Br, Cbr, SwitchI32, ResumeLabel}
	for _, op := range mustHaveSuccessor {
		info := Lookup(op)
		if !info.IsTerminator {
			t.Fatalf("%s: expected IsTerminator", info.Mnemonic)
		}
		if info.NumSuccessors == 0 {
			t.Fatalf("%s: expected at least one successor", info.Mnemonic)
		}
	}

	zeroSuccessor := []Opcode{Ret, Trap, TrapFromErr, ResumeSame, ResumeNext}
	for _, op := range zeroSuccessor {
		info := Lookup(op)
		if !info.IsTerminator {
			t.Fatalf("%s: expected IsTerminator", info.Mnemonic)
		}
		if info.NumSuccessors != 0 {
			t.Fatalf("%s: expected zero declared successors, got %d", info.Mnemonic, info.NumSuccessors)
		}
	}
}

func TestUnknownOpcodeIsSafe(t *testing.T) {
	bogus := Opcode(Count + 100)
	if bogus.String() != "unknown" {
		t.Fatalf("expected \"unknown\", got %q", bogus.String())
	}
	if Lookup(bogus).Mnemonic != "" {
		t.Fatalf("expected zero Info for out-of-range opcode")
	}
}

func TestCheckedArithmeticHasSideEffects(t *testing.T) {
	for _, op := range []Opcode{IAddOvf, ISubOvf, IMulOvf, SdivChk0, UdivChk0, SremChk0, UremChk0} {
		if !Lookup(op).HasSideEffects {
			t.Fatalf("%s: expected HasSideEffects (traps on overflow/div-by-zero)", Lookup(op).Mnemonic)
		}
	}
}

func TestWrappingArithmeticHasNoSideEffects(t *testing.T) {
	for _, op := range []Opcode{Add, Sub, Mul, And, Or, Xor, Shl, Lshr, Ashr} {
		if Lookup(op).HasSideEffects {
			t.Fatalf("%s: wrapping/bitwise ops must be side-effect-free for LICM to hoist them", Lookup(op).Mnemonic)
		}
		if Lookup(op).MemoryEffects != MemNone {
			t.Fatalf("%s: expected MemNone", Lookup(op).Mnemonic)
		}
	}
}

func TestCallIsVariadicAndUnknownMemoryEffect(t *testing.T) {
	info := Lookup(Call)
	if info.NumOperandsMax != VariadicMax {
		t.Fatalf("call: expected variadic operand max")
	}
	if info.MemoryEffects != MemUnknown {
		t.Fatalf("call: expected MemUnknown (callee effects are opaque to the caller)")
	}
}
