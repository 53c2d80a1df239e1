// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package transform

import (
	"github.com/viper-lang/viper/internal/il/cfg"
	"github.com/viper-lang/viper/internal/il/ir"
)

type cfgResult struct {
	graph *cfg.Graph
}

type domResult struct {
	tree *cfg.Tree
}

// Loop is one natural loop: its header, the set of blocks in its body
// (including the header), and its unique pre-header if one exists.
type Loop struct {
	Header    string
	Blocks    map[string]bool
	Preheader string // "" if no unique pre-header
}

type loopInfoResult struct {
	loops []*Loop
}

// CFG returns (computing and caching if necessary) fn's control-flow graph.
func (am *AnalysisManager) CFG() *cfg.Graph {
	if am.cfg == nil {
		am.cfg = &cfgResult{graph: cfg.Build(am.fn)}
	}
	return am.cfg.graph
}

// Dominators returns (computing and caching if necessary) fn's dominator tree.
func (am *AnalysisManager) Dominators() *cfg.Tree {
	if am.dom == nil {
		am.dom = &domResult{tree: cfg.Dominators(am.CFG())}
	}
	return am.dom.tree
}

// LoopInfo returns (computing and caching if necessary) fn's natural loops,
// detected from back edges in the dominator tree per spec.md §4.5.1.
func (am *AnalysisManager) LoopInfo() []*Loop {
	if am.loi == nil {
		am.loi = &loopInfoResult{loops: computeLoopInfo(am.fn, am.CFG(), am.Dominators())}
	}
	return am.loi.loops
}

// computeLoopInfo finds every back edge (an edge latch->header where
// header dominates latch) and grows the natural loop backward from latch
// to header via reverse-CFG reachability, then resolves each loop's
// unique pre-header (a single predecessor of header that is not itself
// in the loop), if one exists.
func computeLoopInfo(fn *ir.Function, g *cfg.Graph, dom *cfg.Tree) []*Loop {
	var loops []*Loop
	for _, latch := range g.Order {
		for _, header := range g.Succs[latch] {
			if !dom.Dominates(header, latch) {
				continue
			}
			loops = append(loops, buildLoop(g, header, latch))
		}
	}
	return loops
}

func buildLoop(g *cfg.Graph, header, latch string) *Loop {
	blocks := map[string]bool{header: true}
	if latch != header {
		stack := []string{latch}
		blocks[latch] = true
		for len(stack) > 0 {
			b := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, pred := range g.Preds[b] {
				if !blocks[pred] {
					blocks[pred] = true
					stack = append(stack, pred)
				}
			}
		}
	}

	preheader := ""
	outside := 0
	for _, pred := range g.Preds[header] {
		if blocks[pred] {
			continue
		}
		outside++
		preheader = pred
	}
	if outside != 1 {
		preheader = ""
	}
	return &Loop{Header: header, Blocks: blocks, Preheader: preheader}
}
