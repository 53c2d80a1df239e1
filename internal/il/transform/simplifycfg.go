// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package transform

import (
	"github.com/viper-lang/viper/internal/il/cfg"
	"github.com/viper-lang/viper/internal/il/ir"
	"github.com/viper-lang/viper/internal/il/opcode"
)

// SimplifyCFG removes unreachable blocks (BFS from entry) and merges a
// block into its single predecessor when that predecessor has exactly
// one successor, per spec.md §4.5.3. Blocks that touch exception-handler
// state (eh.push/eh.pop/eh.entry/any resume opcode) or are the entry
// block are never merge candidates.
func SimplifyCFG(fn *ir.Function, am *AnalysisManager) PreservedAnalyses {
	removeUnreachable(fn, am.CFG())
	mergeTrivialBlocks(fn)
	return PreserveNone()
}

func removeUnreachable(fn *ir.Function, g *cfg.Graph) {
	if len(fn.Blocks) == 0 {
		return
	}
	reachable := make(map[string]bool, len(fn.Blocks))
	queue := []string{g.Entry}
	reachable[g.Entry] = true
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		for _, s := range g.Succs[b] {
			if !reachable[s] {
				reachable[s] = true
				queue = append(queue, s)
			}
		}
	}
	kept := fn.Blocks[:0:0]
	for _, b := range fn.Blocks {
		if reachable[b.Label] {
			kept = append(kept, b)
		}
	}
	fn.Blocks = kept
}

// ehSensitive reports whether b touches exception-handler state and must
// never be merged across.
func ehSensitive(b *ir.BasicBlock) bool {
	for _, inst := range b.Instructions {
		switch inst.Op {
		case opcode.EhPush, opcode.EhPop, opcode.EhEntry,
			opcode.ResumeSame, opcode.ResumeNext, opcode.ResumeLabel:
			return true
		}
	}
	return false
}

// mergeTrivialBlocks repeatedly folds a block into its unique predecessor
// when that predecessor has exactly one successor (this block) and
// neither block is EH-sensitive or the entry block.
func mergeTrivialBlocks(fn *ir.Function) {
	changed := true
	for changed {
		changed = false
		g := cfg.Build(fn)
		for _, b := range fn.Blocks {
			if b.Label == g.Entry {
				continue
			}
			preds := g.Preds[b.Label]
			if len(preds) != 1 {
				continue
			}
			pred := ir.FindBlock(fn, preds[0])
			if pred == nil || len(g.Succs[pred.Label]) != 1 {
				continue
			}
			if ehSensitive(pred) || ehSensitive(b) {
				continue
			}
			if len(b.Params) != 0 {
				continue // merging would require substituting block-param args
			}
			mergeInto(pred, b)
			removeBlock(fn, b.Label)
			changed = true
			break // fn.Blocks mutated; restart from a fresh graph
		}
	}
}

// mergeInto appends b's instructions onto pred in place of pred's
// terminator (the unconditional branch to b).
func mergeInto(pred, b *ir.BasicBlock) {
	pred.Instructions = pred.Instructions[:len(pred.Instructions)-1]
	pred.Instructions = append(pred.Instructions, b.Instructions...)
	pred.Terminated = b.Terminated
}

func removeBlock(fn *ir.Function, label string) {
	for i, b := range fn.Blocks {
		if b.Label == label {
			fn.Blocks = append(fn.Blocks[:i], fn.Blocks[i+1:]...)
			return
		}
	}
}
