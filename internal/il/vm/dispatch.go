// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package vm

import (
	"fmt"
	"math"

	"github.com/viper-lang/viper/internal/il/extern"
	"github.com/viper-lang/viper/internal/il/ir"
	"github.com/viper-lang/viper/internal/il/opcode"
)

// outcomeKind says what callFunction's step loop must do after a handler
// runs: keep going, transfer control within the function, return to the
// caller, or unwind as a trap. One handler signature covering all four
// keeps the dispatch table flat instead of forcing every caller to
// special-case terminators (§4.6.3).
type outcomeKind uint8

const (
	outContinue outcomeKind = iota
	outJump
	outReturn
	outResumeSame
	outResumeNext
	outTrap
)

type stepOutcome struct {
	kind outcomeKind

	block string
	args  []Value

	ret Value

	trap *VmError
}

var contOutcome = stepOutcome{kind: outContinue}

func jumpOutcome(label string, args []Value) stepOutcome {
	return stepOutcome{kind: outJump, block: label, args: args}
}

// stepFunc executes one instruction and reports what should happen next.
// blk/ip are the instruction's own coordinates, needed to stamp a trap's
// FrameInfo and to record a pendingResume.
type stepFunc func(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome

func (vm *VM) trapOutcome(fr *Frame, blk *ir.BasicBlock, ip int, kind ir.TrapKind, detail string) stepOutcome {
	return stepOutcome{kind: outTrap, trap: vm.newTrap(fr, blk, ip, kind, detail)}
}

func setResult(fr *Frame, inst *ir.Instruction, v Value) stepOutcome {
	if inst.HasResult {
		fr.regs[inst.Result] = v
	}
	return contOutcome
}

// dispatchTable is built once at init from opcode's VMDispatch metadata, so
// a new opcode with a non-DispatchNone dispatch group but no handler here
// is caught at startup rather than discovered mid-run (§4.6.3's "verified
// by a startup check").
var dispatchTable [opcode.Count]stepFunc

var handlersByGroup = map[opcode.Dispatch]stepFunc{
	opcode.DispatchArithWrap:        stepArithWrap,
	opcode.DispatchArithOvf:         stepArithOvf,
	opcode.DispatchDivRem:           stepDivRem,
	opcode.DispatchDivRemChecked:    stepDivRem,
	opcode.DispatchBitwise:          stepBitwise,
	opcode.DispatchShift:            stepShift,
	opcode.DispatchIdxChk:           stepIdxChk,
	opcode.DispatchFloatArith:       stepFloatArith,
	opcode.DispatchIntCompare:       stepIntCompare,
	opcode.DispatchFloatCompare:     stepFloatCompare,
	opcode.DispatchConvert:          stepConvert,
	opcode.DispatchAlloca:           stepAlloca,
	opcode.DispatchGep:              stepGep,
	opcode.DispatchLoad:             stepLoad,
	opcode.DispatchStore:            stepStore,
	opcode.DispatchAddrOf:           stepAddrOf,
	opcode.DispatchConstMaterialize: stepConstMaterialize,
	opcode.DispatchGlobalAddr:       stepGlobalAddr,
	opcode.DispatchBr:               stepBr,
	opcode.DispatchCbr:              stepCbr,
	opcode.DispatchSwitch:           stepSwitch,
	opcode.DispatchRet:              stepRet,
	opcode.DispatchCall:             stepCall,
	opcode.DispatchCallIndirect:     stepCallIndirect,
	opcode.DispatchEhPush:           stepEhPush,
	opcode.DispatchEhPop:            stepEhPop,
	opcode.DispatchEhEntry:          stepEhEntry,
	opcode.DispatchResumeSame:       stepResumeSame,
	opcode.DispatchResumeNext:       stepResumeNext,
	opcode.DispatchResumeLabel:      stepResumeLabel,
	opcode.DispatchTrap:             stepTrap,
	opcode.DispatchTrapFromErr:      stepTrapFromErr,
	opcode.DispatchTrapErr:          stepTrapErr,
	opcode.DispatchTrapKindRead:     stepTrapKindRead,
	opcode.DispatchErrGet:           stepErrGet,
}

func init() {
	for i := 0; i < opcode.Count; i++ {
		op := opcode.Opcode(i)
		info := opcode.Lookup(op)
		if info.VMDispatch == opcode.DispatchNone {
			continue
		}
		fn, ok := handlersByGroup[info.VMDispatch]
		if !ok {
			panic(fmt.Sprintf("vm: no handler registered for dispatch group of opcode %s", op))
		}
		dispatchTable[i] = fn
	}
}

// ---- Arithmetic -----------------------------------------------------------

func stepArithWrap(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	ops, err := vm.readOperands(fr, inst.Operands)
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	a, b := ops[0].I, ops[1].I
	var r int64
	switch inst.Op {
	case opcode.Add:
		r = a + b
	case opcode.Sub:
		r = a - b
	case opcode.Mul:
		r = a * b
	}
	return setResult(fr, inst, intVal(r))
}

func addOverflow(a, b int64) (int64, bool) {
	r := a + b
	return r, (b > 0 && r < a) || (b < 0 && r > a)
}

func subOverflow(a, b int64) (int64, bool) {
	r := a - b
	return r, (b < 0 && r < a) || (b > 0 && r > a)
}

func mulOverflow(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, false
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, true
	}
	r := a * b
	return r, r/b != a
}

// fitsWidth reports whether v round-trips through a signed integer of the
// given bit width, i.e. sign-extending its low `bits` bits reproduces v.
func fitsWidth(v int64, bits int) bool {
	if bits >= 64 {
		return true
	}
	shift := uint(64 - bits)
	return (v << shift) >> shift == v
}

func stepArithOvf(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	ops, err := vm.readOperands(fr, inst.Operands)
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	a, b := ops[0].I, ops[1].I
	var r int64
	var ovf bool
	switch inst.Op {
	case opcode.IAddOvf:
		r, ovf = addOverflow(a, b)
	case opcode.ISubOvf:
		r, ovf = subOverflow(a, b)
	case opcode.IMulOvf:
		r, ovf = mulOverflow(a, b)
	}
	if ovf {
		return vm.trapOutcome(fr, blk, ip, ir.TrapOverflow, fmt.Sprintf("%s overflowed", inst.Op))
	}
	if !fitsWidth(r, inst.Type.Size()*8) {
		return vm.trapOutcome(fr, blk, ip, ir.TrapOverflow, fmt.Sprintf("%s result does not fit in %s", inst.Op, inst.Type))
	}
	return setResult(fr, inst, intVal(r))
}

// stepDivRem backs both the unchecked and the explicitly-checked division
// opcodes. Nothing in spec.md licenses crashing the host process, so even
// the "unchecked" forms defensively guard the zero-divisor and
// MinInt64/-1 cases that would otherwise panic Go's own integer division.
func stepDivRem(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	ops, err := vm.readOperands(fr, inst.Operands)
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	a, b := ops[0].I, ops[1].I
	switch inst.Op {
	case opcode.Sdiv, opcode.SdivChk0:
		if b == 0 {
			return vm.trapOutcome(fr, blk, ip, ir.TrapDivideByZero, "sdiv by zero")
		}
		if a == math.MinInt64 && b == -1 {
			return vm.trapOutcome(fr, blk, ip, ir.TrapOverflow, "sdiv overflow (MinInt64 / -1)")
		}
		return setResult(fr, inst, intVal(a/b))
	case opcode.Srem, opcode.SremChk0:
		if b == 0 {
			return vm.trapOutcome(fr, blk, ip, ir.TrapDivideByZero, "srem by zero")
		}
		if a == math.MinInt64 && b == -1 {
			return setResult(fr, inst, intVal(0))
		}
		return setResult(fr, inst, intVal(a%b))
	case opcode.Udiv, opcode.UdivChk0:
		if b == 0 {
			return vm.trapOutcome(fr, blk, ip, ir.TrapDivideByZero, "udiv by zero")
		}
		return setResult(fr, inst, intVal(int64(uint64(a)/uint64(b))))
	case opcode.Urem, opcode.UremChk0:
		if b == 0 {
			return vm.trapOutcome(fr, blk, ip, ir.TrapDivideByZero, "urem by zero")
		}
		return setResult(fr, inst, intVal(int64(uint64(a)%uint64(b))))
	}
	return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, "unreachable div/rem opcode")
}

func stepBitwise(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	ops, err := vm.readOperands(fr, inst.Operands)
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	a, b := ops[0].I, ops[1].I
	var r int64
	switch inst.Op {
	case opcode.And:
		r = a & b
	case opcode.Or:
		r = a | b
	case opcode.Xor:
		r = a ^ b
	}
	return setResult(fr, inst, intVal(r))
}

func stepShift(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	ops, err := vm.readOperands(fr, inst.Operands)
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	a, b := ops[0].I, ops[1].I
	bits := inst.Type.Size() * 8
	if bits <= 0 {
		bits = 64
	}
	shift := uint(b) % uint(bits)
	var r int64
	switch inst.Op {
	case opcode.Shl:
		r = a << shift
	case opcode.Lshr:
		r = int64(uint64(a) >> shift)
	case opcode.Ashr:
		r = a >> shift
	}
	return setResult(fr, inst, intVal(r))
}

func stepIdxChk(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	ops, err := vm.readOperands(fr, inst.Operands)
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	idx, length := ops[0].I, ops[1].I
	if idx < 0 || idx >= length {
		return vm.trapOutcome(fr, blk, ip, ir.TrapBounds, fmt.Sprintf("index %d out of bounds for length %d", idx, length))
	}
	return setResult(fr, inst, intVal(idx))
}

func stepFloatArith(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	ops, err := vm.readOperands(fr, inst.Operands)
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	a, b := ops[0].F, ops[1].F
	var r float64
	switch inst.Op {
	case opcode.Fadd:
		r = a + b
	case opcode.Fsub:
		r = a - b
	case opcode.Fmul:
		r = a * b
	case opcode.Fdiv:
		r = a / b
	}
	return setResult(fr, inst, floatVal(r))
}

func stepIntCompare(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	ops, err := vm.readOperands(fr, inst.Operands)
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	a, b := ops[0].I, ops[1].I
	ua, ub := uint64(a), uint64(b)
	var r bool
	switch inst.Op {
	case opcode.IcmpEq:
		r = a == b
	case opcode.IcmpNe:
		r = a != b
	case opcode.ScmpLt:
		r = a < b
	case opcode.ScmpLe:
		r = a <= b
	case opcode.ScmpGt:
		r = a > b
	case opcode.ScmpGe:
		r = a >= b
	case opcode.UcmpLt:
		r = ua < ub
	case opcode.UcmpLe:
		r = ua <= ub
	case opcode.UcmpGt:
		r = ua > ub
	case opcode.UcmpGe:
		r = ua >= ub
	}
	return setResult(fr, inst, boolVal(r))
}

func stepFloatCompare(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	ops, err := vm.readOperands(fr, inst.Operands)
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	a, b := ops[0].F, ops[1].F
	nan := math.IsNaN(a) || math.IsNaN(b)
	var r bool
	switch inst.Op {
	case opcode.FcmpEq:
		r = a == b
	case opcode.FcmpNe:
		r = a != b
	case opcode.FcmpLt:
		r = a < b
	case opcode.FcmpLe:
		r = a <= b
	case opcode.FcmpGt:
		r = a > b
	case opcode.FcmpGe:
		r = a >= b
	case opcode.FcmpOrd:
		r = !nan
	case opcode.FcmpUno:
		r = nan
	}
	return setResult(fr, inst, boolVal(r))
}

// ---- Conversions ------------------------------------------------------

func stepConvert(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	ops, err := vm.readOperands(fr, inst.Operands)
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	in := ops[0]
	switch inst.Op {
	case opcode.Sitofp:
		return setResult(fr, inst, floatVal(float64(in.I)))
	case opcode.Fptosi:
		return setResult(fr, inst, intVal(int64(in.F)))
	case opcode.CastFpToSiRteChk:
		f := in.F
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return vm.trapOutcome(fr, blk, ip, ir.TrapInvalidCast, "cast.fp_to_si.rte.chk: NaN/Inf operand")
		}
		rounded := math.RoundToEven(f)
		bits := inst.Type.Size() * 8
		if bits <= 0 {
			bits = 64
		}
		max := float64(int64(1)<<uint(bits-1)) - 1
		min := -float64(int64(1) << uint(bits-1))
		if rounded < min || rounded > max {
			return vm.trapOutcome(fr, blk, ip, ir.TrapInvalidCast, "cast.fp_to_si.rte.chk: out of range")
		}
		return setResult(fr, inst, intVal(int64(rounded)))
	case opcode.CastSiNarrowChk:
		bits := inst.Type.Size() * 8
		if !fitsWidth(in.I, bits) {
			return vm.trapOutcome(fr, blk, ip, ir.TrapInvalidCast, fmt.Sprintf("cast.si_narrow.chk: %d does not fit in %s", in.I, inst.Type))
		}
		return setResult(fr, inst, intVal(in.I))
	case opcode.TruncOrZextI1:
		return setResult(fr, inst, boolVal(in.I&1 != 0))
	}
	return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, "unreachable convert opcode")
}

// ---- Memory -------------------------------------------------------------

func stepAlloca(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	ops, err := vm.readOperands(fr, inst.Operands)
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	addr, allocErr := vm.mem.alloc(uint64(ops[0].I))
	if allocErr != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, allocErr.Error())
	}
	fr.allocas = append(fr.allocas, addr)
	return setResult(fr, inst, ptrVal(addr))
}

func stepGep(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	ops, err := vm.readOperands(fr, inst.Operands)
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	base, offset := ops[0].Ptr(), ops[1].I
	return setResult(fr, inst, ptrVal(base+uint64(offset)))
}

func stepLoad(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	ops, err := vm.readOperands(fr, inst.Operands)
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	addr := ops[0].Ptr()
	v, loadErr := vm.loadTyped(addr, inst.Type)
	if loadErr != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapNullDereference, loadErr.Error())
	}
	return setResult(fr, inst, v)
}

func (vm *VM) loadTyped(addr uint64, ty ir.Type) (Value, error) {
	switch ty {
	case ir.I1:
		b, err := vm.mem.readByte(addr)
		return boolVal(b != 0), err
	case ir.I16:
		u, err := vm.mem.readUint16(addr)
		return intVal(int64(int16(u))), err
	case ir.I32:
		u, err := vm.mem.readUint32(addr)
		return intVal(int64(int32(u))), err
	case ir.I64, ir.Ptr, ir.Str:
		u, err := vm.mem.readUint64(addr)
		return intVal(int64(u)), err
	case ir.F64:
		f, err := vm.mem.readFloat64(addr)
		return floatVal(f), err
	default:
		return Value{}, fmt.Errorf("vm: load of unsupported type %s", ty)
	}
}

func (vm *VM) storeTyped(addr uint64, ty ir.Type, v Value) error {
	switch ty {
	case ir.I1:
		var b byte
		if v.Bool() {
			b = 1
		}
		return vm.mem.writeByte(addr, b)
	case ir.I16:
		return vm.mem.writeUint16(addr, uint16(v.I))
	case ir.I32:
		return vm.mem.writeUint32(addr, uint32(v.I))
	case ir.I64, ir.Ptr, ir.Str:
		return vm.mem.writeUint64(addr, uint64(v.I))
	case ir.F64:
		return vm.mem.writeFloat64(addr, v.F)
	default:
		return fmt.Errorf("vm: store of unsupported type %s", ty)
	}
}

func stepStore(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	ops, err := vm.readOperands(fr, inst.Operands)
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	addr := ops[0].Ptr()
	if storeErr := vm.storeTyped(addr, inst.Type, ops[1]); storeErr != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapNullDereference, storeErr.Error())
	}
	return contOutcome
}

func stepAddrOf(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	ops, err := vm.readOperands(fr, inst.Operands)
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	return setResult(fr, inst, ops[0])
}

func stepConstMaterialize(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	if inst.Op == opcode.ConstNull {
		return setResult(fr, inst, ptrVal(0))
	}
	ops, err := vm.readOperands(fr, inst.Operands)
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	return setResult(fr, inst, ops[0])
}

func stepGlobalAddr(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	ops, err := vm.readOperands(fr, inst.Operands)
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	return setResult(fr, inst, ops[0])
}

// ---- Control flow ---------------------------------------------------------

func stepBr(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	args, err := vm.readOperands(fr, inst.BrArgs[0])
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	return jumpOutcome(inst.Labels[0], args)
}

func stepCbr(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	ops, err := vm.readOperands(fr, inst.Operands)
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	idx := 1
	if ops[0].Bool() {
		idx = 0
	}
	args, err := vm.readOperands(fr, inst.BrArgs[idx])
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	return jumpOutcome(inst.Labels[idx], args)
}

func stepSwitch(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	ops, err := vm.readOperands(fr, inst.Operands)
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	v := int32(ops[0].I)
	target := 0
	for i, c := range inst.SwitchCases {
		if c == v {
			target = i + 1
			break
		}
	}
	args, err := vm.readOperands(fr, inst.BrArgs[target])
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	return jumpOutcome(inst.Labels[target], args)
}

func stepRet(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	if len(inst.Operands) == 0 {
		return stepOutcome{kind: outReturn}
	}
	v, err := vm.readOperand(fr, inst.Operands[0])
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	return stepOutcome{kind: outReturn, ret: v}
}

// ---- Calls -----------------------------------------------------------

func stepCall(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	args, err := vm.readOperands(fr, inst.Operands)
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	res, callErr := vm.dispatchCallByName(inst.Callee, args)
	if callErr != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapUnhandledError, callErr.Error())
	}
	return setResult(fr, inst, res)
}

func stepCallIndirect(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	ops, err := vm.readOperands(fr, inst.Operands)
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	idx := int(ops[0].I)
	if idx < 0 || idx >= len(vm.funcTable) {
		return vm.trapOutcome(fr, blk, ip, ir.TrapInvalidCast, fmt.Sprintf("call.indirect: invalid function index %d", idx))
	}
	name := vm.funcTable[idx]
	res, callErr := vm.dispatchCallByName(name, ops[1:])
	if callErr != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapUnhandledError, callErr.Error())
	}
	return setResult(fr, inst, res)
}

// ---- Exception handling ------------------------------------------------

func stepEhPush(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	fr.pushHandler(inst.Labels[0])
	return contOutcome
}

func stepEhPop(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	if _, ok := fr.popHandler(); !ok {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, "eh.pop with no matching eh.push")
	}
	return contOutcome
}

func stepEhEntry(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	return setResult(fr, inst, intVal(0))
}

func stepResumeSame(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	if fr.resume == nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, "resume.same outside a handler")
	}
	return stepOutcome{kind: outResumeSame}
}

func stepResumeNext(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	if fr.resume == nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, "resume.next outside a handler")
	}
	return stepOutcome{kind: outResumeNext}
}

func stepResumeLabel(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	if fr.resume == nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, "resume.label outside a handler")
	}
	// Unlike resume.same/resume.next, which jump back into the protected
	// region so its own eh.pop retires the handler, resume.label jumps
	// past the region entirely (that's the point of it — the verifier's
	// postdominance check exists precisely so it can bypass the rest of
	// the region, including that eh.pop). Nothing else will ever retire
	// this handler, so pop it here.
	fr.popHandler()
	fr.resume = nil
	return jumpOutcome(inst.Labels[0], nil)
}

// ---- Traps / error records --------------------------------------------

func stepTrap(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	ops, err := vm.readOperands(fr, inst.Operands)
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	kind := ir.TrapKind(ops[0].I)
	return vm.trapOutcome(fr, blk, ip, kind, "explicit trap instruction")
}

func stepTrapFromErr(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	ops, err := vm.readOperands(fr, inst.Operands)
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	rec := ops[0].Err
	out := vm.trapOutcome(fr, blk, ip, rec.Kind, "propagated error record")
	out.trap.Record = rec
	return out
}

func stepTrapErr(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	return setResult(fr, inst, errVal(fr.curErr))
}

func stepTrapKindRead(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	ops, err := vm.readOperands(fr, inst.Operands)
	if err != nil {
		return vm.trapOutcome(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
	}
	return setResult(fr, inst, intVal(int64(ops[0].Err.Kind)))
}

func stepErrGet(vm *VM, fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) stepOutcome {
	return setResult(fr, inst, errVal(fr.curErr))
}

// marshalToExtern/marshalFromExtern translate between the VM's flat Value
// and the extern package's Kind-tagged Value at the call boundary (§6.4:
// "the VM marshals Values across the boundary"). Every vm.Value carries
// its int and pointer bits in the same I field (ptrVal stores the address
// there), so the int/float/ptr lanes can always be populated together;
// marshalFromExtern then trusts the callee's own Kind tag to pick which
// lane the caller should read back.
func marshalToExtern(v Value) extern.Value {
	return extern.Value{Kind: extern.KindInt, I: v.I, F: v.F, U: uint64(v.I)}
}

func marshalFromExtern(v extern.Value) Value {
	switch v.Kind {
	case extern.KindFloat:
		return floatVal(v.F)
	case extern.KindPtr:
		return ptrVal(v.U)
	case extern.KindVoid:
		return Value{}
	default:
		return intVal(v.I)
	}
}
