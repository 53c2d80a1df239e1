// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package transform

import (
	"github.com/viper-lang/viper/internal/il/ir"
	"github.com/viper-lang/viper/internal/il/opcode"
)

// LICM hoists side-effect-free, memory-effect-free instructions with
// loop-invariant operands into their loop's unique pre-header, per
// spec.md §4.5.3. Loops with no unique pre-header are left untouched.
// LICM only ever relocates instructions within the existing block set —
// it adds no block, removes no block, and changes no edge — so cfg,
// dominators, and loop-info are always preserved.
func LICM(fn *ir.Function, am *AnalysisManager) PreservedAnalyses {
	defBlock := collectDefBlocks(fn)
	for _, loop := range am.LoopInfo() {
		if loop.Preheader == "" {
			continue
		}
		pre := ir.FindBlock(fn, loop.Preheader)
		if pre == nil || !pre.Terminated || len(pre.Instructions) == 0 {
			continue
		}
		hoistLoop(fn, am, loop, pre, defBlock)
	}
	return PreserveAll()
}

// collectDefBlocks maps every SSA id (parameter, block parameter, or
// instruction result) to the label of the block that currently defines
// it; hoistLoop keeps this map current as it relocates instructions.
func collectDefBlocks(fn *ir.Function) map[uint32]string {
	defs := make(map[uint32]string)
	if len(fn.Blocks) > 0 {
		for _, p := range fn.Params {
			defs[p.ID] = fn.Blocks[0].Label
		}
	}
	for _, b := range fn.Blocks {
		for _, p := range b.Params {
			defs[p.ID] = b.Label
		}
		for _, inst := range b.Instructions {
			if inst.HasResult {
				defs[inst.Result] = b.Label
			}
		}
	}
	return defs
}

// orderedLoopBlocks returns loop.Blocks in the function's own block
// order. The IL's lifecycle invariant (blocks are appended in
// reverse-postorder, entry first) makes this a valid dominator-preorder
// traversal for any reducible loop: a block's immediate dominator always
// precedes it in reverse postorder.
func orderedLoopBlocks(fn *ir.Function, loop *Loop) []string {
	var out []string
	for _, b := range fn.Blocks {
		if loop.Blocks[b.Label] {
			out = append(out, b.Label)
		}
	}
	return out
}

func hoistLoop(fn *ir.Function, am *AnalysisManager, loop *Loop, pre *ir.BasicBlock, defBlock map[uint32]string) {
	for _, label := range orderedLoopBlocks(fn, loop) {
		if label == loop.Preheader {
			continue
		}
		b := ir.FindBlock(fn, label)
		if b == nil {
			continue
		}
		kept := b.Instructions[:0:0]
		for _, inst := range b.Instructions {
			if canHoist(inst, loop, defBlock) {
				insertBeforeTerminator(pre, inst)
				if inst.HasResult {
					defBlock[inst.Result] = pre.Label
				}
				continue
			}
			kept = append(kept, inst)
		}
		b.Instructions = kept
	}
}

func canHoist(inst *ir.Instruction, loop *Loop, defBlock map[uint32]string) bool {
	info := opcode.Lookup(inst.Op)
	if info.IsTerminator || info.HasSideEffects || info.MemoryEffects != opcode.MemNone {
		return false
	}
	for _, v := range inst.Operands {
		if !invariant(v, loop, defBlock) {
			return false
		}
	}
	return true
}

func invariant(v ir.Value, loop *Loop, defBlock map[uint32]string) bool {
	t, ok := v.(ir.Temp)
	if !ok {
		return true // literals and global references are always invariant
	}
	block, ok := defBlock[t.ID]
	if !ok {
		return false // no known definition: conservatively not invariant
	}
	return !loop.Blocks[block]
}

func insertBeforeTerminator(b *ir.BasicBlock, inst *ir.Instruction) {
	term := b.Instructions[len(b.Instructions)-1]
	b.Instructions[len(b.Instructions)-1] = inst
	b.Instructions = append(b.Instructions, term)
}
