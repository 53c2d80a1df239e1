// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package ir

import "github.com/viper-lang/viper/internal/il/opcode"

// SourceLoc pinpoints an instruction's origin for diagnostics and VM
// tracing/debugging. FileID resolves through an internal/source.Manager.
type SourceLoc struct {
	FileID uint32
	Line   uint32
	Column uint32
}

// Param is a function parameter: an id/name/type triple, bound into the
// entry block's regs on call the same way a block parameter is bound on
// branch.
type Param struct {
	ID   uint32
	Name string
	Type Type
}

// Extern declares an external function the VM resolves against the
// runtime ABI table (internal/il/extern) by name.
type Extern struct {
	Name       string
	ReturnType Type
	ParamTypes []Type
}

// Global is a name-to-bytes constant (string literals) or a
// name-to-type zero-initialized variable, selected by HasInit.
type Global struct {
	Name    string
	Type    Type
	Init    []byte
	HasInit bool
}

// Module owns ordered externs, globals, and function definitions.
type Module struct {
	Externs   []*Extern
	Globals   []*Global
	Functions []*Function
}

// NewModule returns an empty Module.
func NewModule() *Module { return &Module{} }

// AddFunction appends and returns a new Function. Callers fill in Blocks
// via fn.AddBlock.
func (m *Module) AddFunction(name string, params []Param, ret Type) *Function {
	fn := &Function{
		Name:       name,
		Params:     params,
		ReturnType: ret,
		ValueNames: make(map[uint32]string),
	}
	m.Functions = append(m.Functions, fn)
	return fn
}

// AddExtern appends a new Extern declaration.
func (m *Module) AddExtern(name string, ret Type, params []Type) *Extern {
	e := &Extern{Name: name, ReturnType: ret, ParamTypes: params}
	m.Externs = append(m.Externs, e)
	return e
}

// AddGlobal appends a new Global.
func (m *Module) AddGlobal(g Global) *Global {
	gp := new(Global)
	*gp = g
	m.Globals = append(m.Globals, gp)
	return gp
}

// FindFunction returns the function named name, or nil.
func (m *Module) FindFunction(name string) *Function {
	for _, fn := range m.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// Function is a definition with an ordered list of basic blocks in
// reverse-postorder (entry first).
type Function struct {
	Name       string
	Params     []Param
	ReturnType Type
	Blocks     []*BasicBlock
	ValueNames map[uint32]string // SSA id -> debug name

	nextResultID uint32
	usedResults  map[uint32]bool
}

// AddBlock appends and returns a new, unterminated BasicBlock with label
// lbl. lbl must be unique within the function; violating that is a
// frontend bug caught here rather than deferred to the verifier, since it
// would make FindBlock ambiguous.
func (fn *Function) AddBlock(label string) *BasicBlock {
	for _, b := range fn.Blocks {
		if b.Label == label {
			panic("ir: duplicate block label " + label + " in function " + fn.Name)
		}
	}
	b := &BasicBlock{Label: label}
	fn.Blocks = append(fn.Blocks, b)
	return b
}

// FindBlock returns the block labeled lbl within fn, or nil.
func FindBlock(fn *Function, label string) *BasicBlock {
	for _, b := range fn.Blocks {
		if b.Label == label {
			return b
		}
	}
	return nil
}

// SetName records dbgName as the debug name for SSA id, surfaced by the
// printer and the VM's trace facility.
func (fn *Function) SetName(id uint32, dbgName string) {
	if fn.ValueNames == nil {
		fn.ValueNames = make(map[uint32]string)
	}
	fn.ValueNames[id] = dbgName
}

// NextResultID allocates and returns the next free SSA result id for fn.
func (fn *Function) NextResultID() uint32 {
	id := fn.nextResultID
	fn.nextResultID++
	return id
}

// SetNextResultID sets the counter NextResultID hands out from. The
// parser uses this once, right after a function's parameter list is
// known, so temp ids allocated for instruction results never collide
// with the parameters' own ids.
func (fn *Function) SetNextResultID(n uint32) { fn.nextResultID = n }

// markResultUsed records id as taken, panicking if it collides with an
// earlier result in the same function (spec §3.4: every result id is
// unique within its function).
func (fn *Function) markResultUsed(id uint32) {
	if fn.usedResults == nil {
		fn.usedResults = make(map[uint32]bool)
	}
	if fn.usedResults[id] {
		panic("ir: duplicate SSA result id in function " + fn.Name)
	}
	fn.usedResults[id] = true
}

// BlockParam is a basic-block parameter: the mechanism SSA-with-arguments
// IRs use in place of phi nodes. A predecessor's branch supplies one
// argument Value per parameter; the VM binds them into the callee block's
// register map on transfer.
type BlockParam struct {
	ID   uint32
	Name string
	Type Type
}

// BasicBlock owns an ordered parameter list, an ordered instruction list,
// and a Terminated flag that is true iff the last instruction's opcode is
// declared a terminator.
type BasicBlock struct {
	Label        string
	Params       []BlockParam
	Instructions []*Instruction
	Terminated   bool
}

// Append adds instr to the block. It is an error to append to an already
// terminated block, and the block's Terminated flag is kept in sync with
// the opcode metadata's IsTerminator flag so callers never need to set it
// by hand.
func (b *BasicBlock) Append(instr *Instruction) error {
	if b.Terminated {
		return errBlockSealed(b.Label)
	}
	info := opcode.Lookup(instr.Op)
	if info.IsTerminator {
		b.Terminated = true
	}
	b.Instructions = append(b.Instructions, instr)
	return nil
}

type sealedBlockError string

func (e sealedBlockError) Error() string {
	return "ir: cannot append to already-terminated block " + string(e)
}

func errBlockSealed(label string) error { return sealedBlockError(label) }

// Instruction is one IL instruction: an opcode plus its operands, optional
// SSA result, branch labels/arguments, and source location.
type Instruction struct {
	Op Opcode

	// HasResult/Result hold the optional SSA binding; Type is the result's
	// type (or, for instructions with no result, an annotation type such
	// as the pointee type of a gep).
	HasResult bool
	Result    uint32
	Type      Type

	Operands []Value

	// Callee names the target of call/call.indirect.
	Callee string

	// Labels names successor blocks in declaration order; for cbr this is
	// [trueTarget, falseTarget], for switch.i32 [default, case0, case1, ...].
	Labels []string
	// BrArgs[i] are the block-parameter arguments passed to Labels[i].
	BrArgs [][]Value

	// SwitchCases[i] is the case value routing to Labels[i+1] (Labels[0] is
	// always the default target). Populated only for switch.i32.
	SwitchCases []int32

	Loc SourceLoc
}

// Opcode re-exports opcode.Opcode so callers constructing instructions
// don't need a second import for the common case.
type Opcode = opcode.Opcode

// NewInstruction builds an Instruction for op, allocating a fresh result
// id from fn when the opcode declares one.
func NewInstruction(fn *Function, op Opcode, typ Type, operands []Value) *Instruction {
	info := opcode.Lookup(op)
	inst := &Instruction{Op: op, Type: typ, Operands: operands}
	if info.ResultArity == opcode.OneResult || info.ResultArity == opcode.OptionalResult {
		id := fn.NextResultID()
		fn.markResultUsed(id)
		inst.HasResult = true
		inst.Result = id
	}
	return inst
}
