// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package vm

import (
	"fmt"

	"github.com/viper-lang/viper/internal/il/ir"
)

// Value is one register's content. Which field is meaningful is determined
// by the producing instruction's declared type — the same flat-storage
// discipline probe-lang/lang/vm.VM uses for its fixed uint64 register
// file, generalized here with a float lane and an inline error record so
// Str/Ptr handles, integers, floats, and 16-byte error records all fit in
// one map value without a second lookup table.
type Value struct {
	I   int64
	F   float64
	Err ir.ErrorRecord
}

func intVal(v int64) Value     { return Value{I: v} }
func floatVal(v float64) Value { return Value{F: v} }
func boolVal(b bool) Value {
	if b {
		return Value{I: 1}
	}
	return Value{I: 0}
}
func ptrVal(addr uint64) Value { return Value{I: int64(addr)} }
func errVal(rec ir.ErrorRecord) Value {
	return Value{Err: rec}
}

// Bool reports whether an I1-typed Value is true (non-zero).
func (v Value) Bool() bool { return v.I != 0 }

// Ptr returns an address/handle-typed Value's raw bits.
func (v Value) Ptr() uint64 { return uint64(v.I) }

// readOperand resolves one of the four ir.Value operand kinds against the
// current frame and module, mirroring §4.6.3's `read_operand`. Temp lookups
// on a well-verified module always hit: the verifier's SSA-dominance rule
// (ssa.undefined-temp / ssa.use-not-dominated) rejects any module where
// they wouldn't, so a miss here is an internal invariant violation, not a
// recoverable runtime condition.
func (vm *VM) readOperand(fr *Frame, v ir.Value) (Value, error) {
	switch val := v.(type) {
	case ir.Temp:
		rv, ok := fr.regs[val.ID]
		if !ok {
			return Value{}, fmt.Errorf("vm: read of undefined temp %%%d in %s (verifier invariant violated)", val.ID, fr.fn.Name)
		}
		return rv, nil
	case ir.ConstInt:
		return intVal(val.Val), nil
	case ir.ConstFloat:
		return floatVal(val.Val), nil
	case ir.ConstBool:
		return boolVal(val.Val), nil
	case ir.ConstStr:
		return ptrVal(vm.host.NewString(val.Val)), nil
	case ir.ConstNull:
		return ptrVal(0), nil
	case ir.GlobalAddr:
		addr, ok := vm.globalAddr[val.Name]
		if !ok {
			return Value{}, fmt.Errorf("vm: reference to unknown global @%s", val.Name)
		}
		return ptrVal(addr), nil
	default:
		return Value{}, fmt.Errorf("vm: unhandled operand kind %T", v)
	}
}

// readOperands resolves every entry of vs in order, short-circuiting on the
// first error.
func (vm *VM) readOperands(fr *Frame, vs []ir.Value) ([]Value, error) {
	out := make([]Value, len(vs))
	for i, v := range vs {
		rv, err := vm.readOperand(fr, v)
		if err != nil {
			return nil, err
		}
		out[i] = rv
	}
	return out, nil
}
