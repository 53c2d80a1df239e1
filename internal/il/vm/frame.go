// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package vm

import "github.com/viper-lang/viper/internal/il/ir"

// ehFrame is one live entry on a Frame's exception-handler stack: the
// label of the block that receives control if something traps while this
// entry is on top, per spec.md §4.6.4.
type ehFrame struct {
	handler string
}

// pendingResume records where a trap interrupted execution so
// resume.same/resume.next can transfer back into the faulting block
// instead of the handler, per §4.6.4.
type pendingResume struct {
	block string
	ip    int
}

// Frame is one function activation: its SSA register file, the addresses
// of its own alloca'd regions (kept only for debugger dumps — the backing
// bytes live in the VM's shared memory and outlive the frame, since the IL
// has no explicit dealloc), and its exception-handler stack. Grounded on
// probe-lang/lang/vm.frame, generalized from a fixed `[]uint64` register
// window to `regs map[uint32]Value` per §4.6.1.
type Frame struct {
	fn      *ir.Function
	regs    map[uint32]Value
	allocas []uint64
	ehStack []ehFrame

	curErr ir.ErrorRecord
	resume *pendingResume
}

func newFrame(fn *ir.Function) *Frame {
	return &Frame{fn: fn, regs: make(map[uint32]Value, len(fn.Params)+4)}
}

func (fr *Frame) pushHandler(label string) {
	fr.ehStack = append(fr.ehStack, ehFrame{handler: label})
}

// popHandler removes and returns the top handler, reporting false if the
// stack was already empty (spec.md §4.6.4: "error if empty ... the VM
// re-checks defensively"). This backs the explicit `eh.pop` instruction;
// a trap does not itself call this — see peekHandler.
func (fr *Frame) popHandler() (string, bool) {
	if len(fr.ehStack) == 0 {
		return "", false
	}
	top := fr.ehStack[len(fr.ehStack)-1]
	fr.ehStack = fr.ehStack[:len(fr.ehStack)-1]
	return top.handler, true
}

// peekHandler returns the top handler without removing it. A trap
// transfers control to this handler but leaves it on the stack: the
// protected region's own `eh.pop` is what retires it, whether reached by
// falling through normally or by a resume.* jumping back into the
// region. Using pop here instead would make the ordinary eh.pop that
// follows a caught fault underflow the stack it was never executed
// against.
func (fr *Frame) peekHandler() (string, bool) {
	if len(fr.ehStack) == 0 {
		return "", false
	}
	return fr.ehStack[len(fr.ehStack)-1].handler, true
}

// bindBlockParams populates b's declared parameters in fr's register file
// from a predecessor's branch arguments, the VM-side half of SSA-with-
// block-arguments (spec.md §4.6.3's `bind_block_params`).
func bindBlockParams(fr *Frame, b *ir.BasicBlock, args []Value) {
	for i, p := range b.Params {
		if i < len(args) {
			fr.regs[p.ID] = args[i]
		}
	}
}

// ExecState is the execution cursor spec.md §4.6.1 names explicitly: the
// active frame, the block it is in, and the instruction index within that
// block. The VM's call/return machinery pushes and pops whole ExecStates,
// not just Frames, so a resumed trap can restore exactly where it left off.
type ExecState struct {
	Frame *Frame
	Block *ir.BasicBlock
	IP    int
}
