// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ProbeChain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the ProbeChain. If not, see <http://www.gnu.org/licenses/>.

// Package opcode is the single source of truth for every instruction the IL
// knows about. Each Opcode indexes one Info entry describing its textual
// mnemonic, operand/result shape, control-flow role, memory effects, and the
// VM handler that executes it. The parser, printer, verifier, and VM dispatch
// table all read this same table instead of carrying their own per-opcode
// switch, so there is no second list that can drift out of sync.
package opcode

// Opcode identifies one IL instruction kind.
type Opcode uint16

// ResultArity says whether an instruction produces an SSA result.
type ResultArity uint8

const (
	NoResult ResultArity = iota
	OneResult
	OptionalResult
)

// TypeCategory constrains an operand or result. Most values name a concrete
// Type kind (I32, Ptr, ...); the rest are pseudo-categories resolved in
// context.
type TypeCategory uint8

const (
	TyNone TypeCategory = iota
	TyAny               // any Type is acceptable
	TyInstrType         // must equal the instruction's own annotated Type
	TyDynamic           // resolved from context, e.g. a call's callee signature
	TyVoid
	TyI1
	TyI16
	TyI32
	TyI64
	TyF64
	TyPtr
	TyStr
	TyError
	TyResumeTok
)

// MemoryEffect classifies how an instruction touches memory, used by LICM
// and by the verifier's side-effect checks.
type MemoryEffect uint8

const (
	MemNone MemoryEffect = iota
	MemRead
	MemWrite
	MemReadWrite
	MemUnknown
)

// ParseKind tells the textual-IL parser how to consume one positional
// operand slot; see internal/il/ilio.
type ParseKind uint8

const (
	ParseNone ParseKind = iota
	ParseValue
	ParseTypeImmediate
	ParseBranchTarget
	ParseCall
	ParseSwitch
)

// Dispatch identifies which VM handler executes an opcode. Several opcodes
// that differ only in their operator (add/sub/mul, icmp.eq/icmp.ne, ...)
// share one handler parameterized by the opcode itself; Dispatch groups them
// so the VM's handler table stays small and table-driven rather than one
// case per opcode.
type Dispatch uint8

const (
	DispatchNone Dispatch = iota
	DispatchArithWrap
	DispatchArithOvf
	DispatchDivRem
	DispatchDivRemChecked
	DispatchBitwise
	DispatchShift
	DispatchIdxChk
	DispatchFloatArith
	DispatchIntCompare
	DispatchFloatCompare
	DispatchConvert
	DispatchAlloca
	DispatchGep
	DispatchLoad
	DispatchStore
	DispatchAddrOf
	DispatchConstMaterialize
	DispatchGlobalAddr
	DispatchBr
	DispatchCbr
	DispatchSwitch
	DispatchRet
	DispatchCall
	DispatchCallIndirect
	DispatchEhPush
	DispatchEhPop
	DispatchEhEntry
	DispatchResumeSame
	DispatchResumeNext
	DispatchResumeLabel
	DispatchTrap
	DispatchTrapFromErr
	DispatchTrapErr
	DispatchTrapKindRead
	DispatchErrGet
)

// VariadicMax and VariadicSuccessors are the sentinel values for
// Info.NumOperandsMax / Info.NumSuccessors denoting "no fixed upper bound"
// (switch.i32's case count, call's argument count).
const (
	VariadicMax        = 0xFF
	VariadicSuccessors = 0xFF
)

// Info is one opcode's complete metadata entry.
type Info struct {
	Mnemonic       string
	ResultArity    ResultArity
	ResultType     TypeCategory
	NumOperandsMin uint8
	NumOperandsMax uint8 // VariadicMax for unbounded
	OperandTypes   [3]TypeCategory
	HasSideEffects bool
	NumSuccessors  uint8 // VariadicSuccessors for unbounded (switch.i32)
	IsTerminator   bool
	MemoryEffects  MemoryEffect
	VMDispatch     Dispatch
	Parse          [4]ParseKind
}

const (
	// ---- Arithmetic (wrapping) ---------------------------------------------

	Add Opcode = iota
	Sub
	Mul

	// ---- Arithmetic (trapping on overflow) ---------------------------------

	IAddOvf
	ISubOvf
	IMulOvf

	// ---- Division / remainder ----------------------------------------------

	Sdiv
	Udiv
	Srem
	Urem
	SdivChk0
	UdivChk0
	SremChk0
	UremChk0

	// ---- Bitwise / shifts ---------------------------------------------------

	And
	Or
	Xor
	Shl
	Lshr
	Ashr

	// ---- Bounds check --------------------------------------------------------

	IdxChk

	// ---- Float arithmetic -----------------------------------------------------

	Fadd
	Fsub
	Fmul
	Fdiv

	// ---- Integer comparisons --------------------------------------------------

	IcmpEq
	IcmpNe
	ScmpLt
	ScmpLe
	ScmpGt
	ScmpGe
	UcmpLt
	UcmpLe
	UcmpGt
	UcmpGe

	// ---- Float comparisons -----------------------------------------------------

	FcmpEq
	FcmpNe
	FcmpLt
	FcmpLe
	FcmpGt
	FcmpGe
	FcmpOrd
	FcmpUno

	// ---- Conversions -------------------------------------------------------

	Sitofp
	Fptosi
	CastFpToSiRteChk
	CastSiNarrowChk
	TruncOrZextI1

	// ---- Memory --------------------------------------------------------------

	Alloca
	Gep
	Load
	Store
	AddrOf
	ConstStr
	ConstNull
	ConstF64
	GAddr

	// ---- Control flow ----------------------------------------------------------

	Br
	Cbr
	SwitchI32
	Ret

	// ---- Calls -----------------------------------------------------------------

	Call
	CallIndirect

	// ---- Exception handling -----------------------------------------------------

	EhPush
	EhPop
	EhEntry
	ResumeSame
	ResumeNext
	ResumeLabel
	Trap
	TrapFromErr
	TrapErr
	TrapKindRead
	ErrGet

	// count must remain last; it gives the number of defined opcodes and
	// bounds the metadata table.
	count
)

// Count is the number of defined opcodes.
const Count = int(count)

// binary3 is the common shape for a three-operand, side-effect-free,
// non-branching arithmetic/compare instruction: %r = op a, b.
func binary3(mnemonic string, resultType TypeCategory, operandType TypeCategory, dispatch Dispatch) Info {
	return Info{
		Mnemonic:       mnemonic,
		ResultArity:    OneResult,
		ResultType:     resultType,
		NumOperandsMin: 2,
		NumOperandsMax: 2,
		OperandTypes:   [3]TypeCategory{operandType, operandType},
		HasSideEffects: false,
		MemoryEffects:  MemNone,
		VMDispatch:     dispatch,
		Parse:          [4]ParseKind{ParseValue, ParseValue},
	}
}

func checkedBinary3(mnemonic string, resultType TypeCategory, operandType TypeCategory, dispatch Dispatch) Info {
	i := binary3(mnemonic, resultType, operandType, dispatch)
	// Checked arithmetic traps rather than silently wrapping: it has an
	// observable effect (the trap) even though it touches no memory.
	i.HasSideEffects = true
	return i
}

func compare3(mnemonic string, operandType TypeCategory, dispatch Dispatch) Info {
	return binary3(mnemonic, TyI1, operandType, dispatch)
}

// table is the single declarative metadata list. Every Opcode constant above
// must appear here exactly once; init() checks that invariant at init time
// the way a startup check would in a binary that can't afford to discover a
// missing entry at run time.
var table = [count]Info{
	Add: binary3("add", TyInstrType, TyI64, DispatchArithWrap),
	Sub: binary3("sub", TyInstrType, TyI64, DispatchArithWrap),
	Mul: binary3("mul", TyInstrType, TyI64, DispatchArithWrap),

	IAddOvf: checkedBinary3("iadd.ovf", TyInstrType, TyI64, DispatchArithOvf),
	ISubOvf: checkedBinary3("isub.ovf", TyInstrType, TyI64, DispatchArithOvf),
	IMulOvf: checkedBinary3("imul.ovf", TyInstrType, TyI64, DispatchArithOvf),

	Sdiv: binary3("sdiv", TyInstrType, TyI64, DispatchDivRem),
	Udiv: binary3("udiv", TyInstrType, TyI64, DispatchDivRem),
	Srem: binary3("srem", TyInstrType, TyI64, DispatchDivRem),
	Urem: binary3("urem", TyInstrType, TyI64, DispatchDivRem),

	SdivChk0: checkedBinary3("sdiv.chk0", TyInstrType, TyI64, DispatchDivRemChecked),
	UdivChk0: checkedBinary3("udiv.chk0", TyInstrType, TyI64, DispatchDivRemChecked),
	SremChk0: checkedBinary3("srem.chk0", TyInstrType, TyI64, DispatchDivRemChecked),
	UremChk0: checkedBinary3("urem.chk0", TyInstrType, TyI64, DispatchDivRemChecked),

	And:  binary3("and", TyInstrType, TyI64, DispatchBitwise),
	Or:   binary3("or", TyInstrType, TyI64, DispatchBitwise),
	Xor:  binary3("xor", TyInstrType, TyI64, DispatchBitwise),
	Shl:  binary3("shl", TyInstrType, TyI64, DispatchShift),
	Lshr: binary3("lshr", TyInstrType, TyI64, DispatchShift),
	Ashr: binary3("ashr", TyInstrType, TyI64, DispatchShift),

	IdxChk: {
		Mnemonic:       "idx.chk",
		ResultArity:    OneResult,
		ResultType:     TyI64,
		NumOperandsMin: 2,
		NumOperandsMax: 2,
		OperandTypes:   [3]TypeCategory{TyI64, TyI64},
		HasSideEffects: true, // traps Bounds on out-of-range index
		MemoryEffects:  MemNone,
		VMDispatch:     DispatchIdxChk,
		Parse:          [4]ParseKind{ParseValue, ParseValue},
	},

	Fadd: binary3("fadd", TyF64, TyF64, DispatchFloatArith),
	Fsub: binary3("fsub", TyF64, TyF64, DispatchFloatArith),
	Fmul: binary3("fmul", TyF64, TyF64, DispatchFloatArith),
	Fdiv: binary3("fdiv", TyF64, TyF64, DispatchFloatArith),

	IcmpEq: compare3("icmp.eq", TyI64, DispatchIntCompare),
	IcmpNe: compare3("icmp.ne", TyI64, DispatchIntCompare),
	ScmpLt: compare3("scmp.lt", TyI64, DispatchIntCompare),
	ScmpLe: compare3("scmp.le", TyI64, DispatchIntCompare),
	ScmpGt: compare3("scmp.gt", TyI64, DispatchIntCompare),
	ScmpGe: compare3("scmp.ge", TyI64, DispatchIntCompare),
	UcmpLt: compare3("ucmp.lt", TyI64, DispatchIntCompare),
	UcmpLe: compare3("ucmp.le", TyI64, DispatchIntCompare),
	UcmpGt: compare3("ucmp.gt", TyI64, DispatchIntCompare),
	UcmpGe: compare3("ucmp.ge", TyI64, DispatchIntCompare),

	FcmpEq:  compare3("fcmp.eq", TyF64, DispatchFloatCompare),
	FcmpNe:  compare3("fcmp.ne", TyF64, DispatchFloatCompare),
	FcmpLt:  compare3("fcmp.lt", TyF64, DispatchFloatCompare),
	FcmpLe:  compare3("fcmp.le", TyF64, DispatchFloatCompare),
	FcmpGt:  compare3("fcmp.gt", TyF64, DispatchFloatCompare),
	FcmpGe:  compare3("fcmp.ge", TyF64, DispatchFloatCompare),
	FcmpOrd: compare3("fcmp.ord", TyF64, DispatchFloatCompare),
	FcmpUno: compare3("fcmp.uno", TyF64, DispatchFloatCompare),

	Sitofp: {
		Mnemonic: "sitofp", ResultArity: OneResult, ResultType: TyF64,
		NumOperandsMin: 1, NumOperandsMax: 1,
		OperandTypes: [3]TypeCategory{TyI64},
		MemoryEffects: MemNone, VMDispatch: DispatchConvert,
		Parse: [4]ParseKind{ParseValue},
	},
	Fptosi: {
		Mnemonic: "fptosi", ResultArity: OneResult, ResultType: TyI64,
		NumOperandsMin: 1, NumOperandsMax: 1,
		OperandTypes: [3]TypeCategory{TyF64},
		MemoryEffects: MemNone, VMDispatch: DispatchConvert,
		Parse: [4]ParseKind{ParseValue},
	},
	CastFpToSiRteChk: {
		Mnemonic: "cast.fp_to_si.rte.chk", ResultArity: OneResult, ResultType: TyInstrType,
		NumOperandsMin: 1, NumOperandsMax: 1, HasSideEffects: true,
		OperandTypes: [3]TypeCategory{TyF64},
		MemoryEffects: MemNone, VMDispatch: DispatchConvert,
		Parse: [4]ParseKind{ParseValue},
	},
	CastSiNarrowChk: {
		Mnemonic: "cast.si_narrow.chk", ResultArity: OneResult, ResultType: TyInstrType,
		NumOperandsMin: 1, NumOperandsMax: 1, HasSideEffects: true,
		OperandTypes: [3]TypeCategory{TyI64},
		MemoryEffects: MemNone, VMDispatch: DispatchConvert,
		Parse: [4]ParseKind{ParseValue},
	},
	TruncOrZextI1: {
		Mnemonic: "trunc_or_zext.i1", ResultArity: OneResult, ResultType: TyI1,
		NumOperandsMin: 1, NumOperandsMax: 1,
		OperandTypes: [3]TypeCategory{TyI64},
		MemoryEffects: MemNone, VMDispatch: DispatchConvert,
		Parse: [4]ParseKind{ParseValue},
	},

	Alloca: {
		Mnemonic: "alloca", ResultArity: OneResult, ResultType: TyPtr,
		NumOperandsMin: 1, NumOperandsMax: 1, HasSideEffects: true,
		OperandTypes: [3]TypeCategory{TyI64}, // byte count
		MemoryEffects: MemWrite, VMDispatch: DispatchAlloca,
		Parse: [4]ParseKind{ParseValue},
	},
	Gep: {
		Mnemonic: "gep", ResultArity: OneResult, ResultType: TyPtr,
		NumOperandsMin: 2, NumOperandsMax: 2,
		OperandTypes: [3]TypeCategory{TyPtr, TyI64},
		MemoryEffects: MemNone, VMDispatch: DispatchGep,
		Parse: [4]ParseKind{ParseValue, ParseValue},
	},
	Load: {
		Mnemonic: "load", ResultArity: OneResult, ResultType: TyInstrType,
		NumOperandsMin: 1, NumOperandsMax: 1,
		OperandTypes: [3]TypeCategory{TyPtr},
		MemoryEffects: MemRead, VMDispatch: DispatchLoad,
		Parse: [4]ParseKind{ParseValue},
	},
	Store: {
		Mnemonic: "store", ResultArity: NoResult, ResultType: TyNone,
		NumOperandsMin: 2, NumOperandsMax: 2, HasSideEffects: true,
		OperandTypes: [3]TypeCategory{TyPtr, TyAny},
		MemoryEffects: MemWrite, VMDispatch: DispatchStore,
		Parse: [4]ParseKind{ParseValue, ParseValue},
	},
	AddrOf: {
		Mnemonic: "addr_of", ResultArity: OneResult, ResultType: TyPtr,
		NumOperandsMin: 1, NumOperandsMax: 1,
		OperandTypes: [3]TypeCategory{TyAny},
		MemoryEffects: MemNone, VMDispatch: DispatchAddrOf,
		Parse: [4]ParseKind{ParseValue},
	},
	ConstStr: {
		Mnemonic: "const.str", ResultArity: OneResult, ResultType: TyStr,
		NumOperandsMin: 1, NumOperandsMax: 1,
		OperandTypes: [3]TypeCategory{TyStr},
		MemoryEffects: MemNone, VMDispatch: DispatchConstMaterialize,
		Parse: [4]ParseKind{ParseValue},
	},
	ConstNull: {
		Mnemonic: "const.null", ResultArity: OneResult, ResultType: TyPtr,
		NumOperandsMin: 0, NumOperandsMax: 0,
		MemoryEffects: MemNone, VMDispatch: DispatchConstMaterialize,
	},
	ConstF64: {
		Mnemonic: "const.f64", ResultArity: OneResult, ResultType: TyF64,
		NumOperandsMin: 1, NumOperandsMax: 1,
		OperandTypes: [3]TypeCategory{TyF64},
		MemoryEffects: MemNone, VMDispatch: DispatchConstMaterialize,
		Parse: [4]ParseKind{ParseValue},
	},
	GAddr: {
		Mnemonic: "g_addr", ResultArity: OneResult, ResultType: TyPtr,
		NumOperandsMin: 1, NumOperandsMax: 1,
		OperandTypes: [3]TypeCategory{TyAny}, // GlobalAddr(name)
		MemoryEffects: MemNone, VMDispatch: DispatchGlobalAddr,
		Parse: [4]ParseKind{ParseValue},
	},

	Br: {
		Mnemonic: "br", ResultArity: NoResult, ResultType: TyNone,
		NumOperandsMin: 0, NumOperandsMax: 0,
		NumSuccessors: 1, IsTerminator: true,
		MemoryEffects: MemNone, VMDispatch: DispatchBr,
		Parse: [4]ParseKind{ParseBranchTarget},
	},
	Cbr: {
		Mnemonic: "cbr", ResultArity: NoResult, ResultType: TyNone,
		NumOperandsMin: 1, NumOperandsMax: 1,
		OperandTypes:  [3]TypeCategory{TyI1},
		NumSuccessors: 2, IsTerminator: true,
		MemoryEffects: MemNone, VMDispatch: DispatchCbr,
		Parse: [4]ParseKind{ParseValue, ParseBranchTarget, ParseBranchTarget},
	},
	SwitchI32: {
		Mnemonic: "switch.i32", ResultArity: NoResult, ResultType: TyNone,
		NumOperandsMin: 1, NumOperandsMax: 1,
		OperandTypes:  [3]TypeCategory{TyI32},
		NumSuccessors: VariadicSuccessors, IsTerminator: true,
		MemoryEffects: MemNone, VMDispatch: DispatchSwitch,
		Parse: [4]ParseKind{ParseValue, ParseSwitch},
	},
	Ret: {
		Mnemonic: "ret", ResultArity: NoResult, ResultType: TyNone,
		NumOperandsMin: 0, NumOperandsMax: 1,
		OperandTypes:  [3]TypeCategory{TyAny},
		NumSuccessors: 0, IsTerminator: true,
		MemoryEffects: MemNone, VMDispatch: DispatchRet,
		Parse: [4]ParseKind{ParseValue},
	},

	Call: {
		Mnemonic: "call", ResultArity: OptionalResult, ResultType: TyDynamic,
		NumOperandsMin: 0, NumOperandsMax: VariadicMax, HasSideEffects: true,
		MemoryEffects: MemUnknown, VMDispatch: DispatchCall,
		Parse: [4]ParseKind{ParseCall},
	},
	CallIndirect: {
		Mnemonic: "call.indirect", ResultArity: OptionalResult, ResultType: TyDynamic,
		NumOperandsMin: 1, NumOperandsMax: VariadicMax, HasSideEffects: true,
		OperandTypes:  [3]TypeCategory{TyPtr},
		MemoryEffects: MemUnknown, VMDispatch: DispatchCallIndirect,
		Parse: [4]ParseKind{ParseValue, ParseCall},
	},

	EhPush: {
		Mnemonic: "eh.push", ResultArity: NoResult, ResultType: TyNone,
		NumOperandsMin: 0, NumOperandsMax: 0, HasSideEffects: true,
		NumSuccessors: 1,
		MemoryEffects: MemNone, VMDispatch: DispatchEhPush,
		Parse: [4]ParseKind{ParseBranchTarget},
	},
	EhPop: {
		Mnemonic: "eh.pop", ResultArity: NoResult, ResultType: TyNone,
		NumOperandsMin: 0, NumOperandsMax: 0, HasSideEffects: true,
		MemoryEffects: MemNone, VMDispatch: DispatchEhPop,
	},
	EhEntry: {
		Mnemonic: "eh.entry", ResultArity: OneResult, ResultType: TyResumeTok,
		NumOperandsMin: 0, NumOperandsMax: 0, HasSideEffects: true,
		MemoryEffects: MemNone, VMDispatch: DispatchEhEntry,
	},
	ResumeSame: {
		Mnemonic: "resume.same", ResultArity: NoResult, ResultType: TyNone,
		NumOperandsMin: 1, NumOperandsMax: 1, HasSideEffects: true,
		OperandTypes:  [3]TypeCategory{TyResumeTok},
		NumSuccessors: 0, IsTerminator: true,
		MemoryEffects: MemNone, VMDispatch: DispatchResumeSame,
		Parse: [4]ParseKind{ParseValue},
	},
	ResumeNext: {
		Mnemonic: "resume.next", ResultArity: NoResult, ResultType: TyNone,
		NumOperandsMin: 1, NumOperandsMax: 1, HasSideEffects: true,
		OperandTypes:  [3]TypeCategory{TyResumeTok},
		NumSuccessors: 0, IsTerminator: true,
		MemoryEffects: MemNone, VMDispatch: DispatchResumeNext,
		Parse: [4]ParseKind{ParseValue},
	},
	ResumeLabel: {
		Mnemonic: "resume.label", ResultArity: NoResult, ResultType: TyNone,
		NumOperandsMin: 1, NumOperandsMax: 1, HasSideEffects: true,
		OperandTypes:  [3]TypeCategory{TyResumeTok},
		NumSuccessors: 1, IsTerminator: true,
		MemoryEffects: MemNone, VMDispatch: DispatchResumeLabel,
		Parse: [4]ParseKind{ParseValue, ParseBranchTarget},
	},
	Trap: {
		Mnemonic: "trap", ResultArity: NoResult, ResultType: TyNone,
		NumOperandsMin: 1, NumOperandsMax: 1, HasSideEffects: true,
		OperandTypes:  [3]TypeCategory{TyI16}, // trap kind
		NumSuccessors: 0, IsTerminator: true,
		MemoryEffects: MemNone, VMDispatch: DispatchTrap,
		Parse: [4]ParseKind{ParseValue},
	},
	TrapFromErr: {
		Mnemonic: "trap.from_err", ResultArity: NoResult, ResultType: TyNone,
		NumOperandsMin: 1, NumOperandsMax: 1, HasSideEffects: true,
		OperandTypes:  [3]TypeCategory{TyError},
		NumSuccessors: 0, IsTerminator: true,
		MemoryEffects: MemNone, VMDispatch: DispatchTrapFromErr,
		Parse: [4]ParseKind{ParseValue},
	},
	TrapErr: {
		Mnemonic: "trap.err", ResultArity: OneResult, ResultType: TyError,
		NumOperandsMin: 0, NumOperandsMax: 0,
		MemoryEffects: MemNone, VMDispatch: DispatchTrapErr,
	},
	TrapKindRead: {
		Mnemonic: "trap.kind.read", ResultArity: OneResult, ResultType: TyI16,
		NumOperandsMin: 1, NumOperandsMax: 1,
		OperandTypes: [3]TypeCategory{TyError},
		MemoryEffects: MemNone, VMDispatch: DispatchTrapKindRead,
		Parse: [4]ParseKind{ParseValue},
	},
	ErrGet: {
		Mnemonic: "err.get", ResultArity: OneResult, ResultType: TyError,
		NumOperandsMin: 0, NumOperandsMax: 0,
		MemoryEffects: MemNone, VMDispatch: DispatchErrGet,
	},
}

var byMnemonic map[string]Opcode

func init() {
	byMnemonic = make(map[string]Opcode, Count)
	for i := 0; i < Count; i++ {
		op := Opcode(i)
		info := table[op]
		if info.Mnemonic == "" {
			panic("opcode: missing metadata entry for opcode index")
		}
		if _, dup := byMnemonic[info.Mnemonic]; dup {
			panic("opcode: duplicate mnemonic " + info.Mnemonic)
		}
		byMnemonic[info.Mnemonic] = op
	}
}

// Lookup returns an Info by Opcode. Out-of-range opcodes return the zero
// Info, whose empty Mnemonic lets callers detect the invalid case.
func Lookup(op Opcode) Info {
	if int(op) < 0 || int(op) >= Count {
		return Info{}
	}
	return table[op]
}

// ByMnemonic resolves a textual opcode name (e.g. "icmp.eq") to its Opcode,
// used by the parser.
func ByMnemonic(name string) (Opcode, bool) {
	op, ok := byMnemonic[name]
	return op, ok
}

// String returns the canonical mnemonic, or "unknown" for an out-of-range
// value.
func (op Opcode) String() string {
	info := Lookup(op)
	if info.Mnemonic == "" {
		return "unknown"
	}
	return info.Mnemonic
}

// Info returns this opcode's metadata entry.
func (op Opcode) Info() Info { return Lookup(op) }
