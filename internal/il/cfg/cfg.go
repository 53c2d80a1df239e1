// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package cfg builds a function's control-flow graph and its dominator
// and postdominator trees, shared by internal/il/verify (SSA dominance,
// resume postdominance) and internal/il/transform (LICM's loop-info,
// SimplifyCFG's reachability). Keeping one graph/dominator
// implementation here, rather than one per consumer, is the same
// single-source-of-truth discipline internal/il/opcode applies to
// instruction metadata.
package cfg

import "github.com/viper-lang/viper/internal/il/ir"

// Graph is a function's block graph addressed by label.
type Graph struct {
	Entry string
	Order []string // reverse-postorder-ish; just the function's block order
	Succs map[string][]string
	Preds map[string][]string
}

// Build derives a Graph from fn's blocks and their terminators' branch
// targets.
func Build(fn *ir.Function) *Graph {
	g := &Graph{
		Succs: make(map[string][]string),
		Preds: make(map[string][]string),
	}
	if len(fn.Blocks) == 0 {
		return g
	}
	g.Entry = fn.Blocks[0].Label
	for _, b := range fn.Blocks {
		g.Order = append(g.Order, b.Label)
		if _, ok := g.Succs[b.Label]; !ok {
			g.Succs[b.Label] = nil
		}
		if len(b.Instructions) == 0 {
			continue
		}
		term := b.Instructions[len(b.Instructions)-1]
		for _, label := range term.Labels {
			if ir.FindBlock(fn, label) == nil {
				continue
			}
			g.Succs[b.Label] = append(g.Succs[b.Label], label)
			g.Preds[label] = append(g.Preds[label], b.Label)
		}
	}
	return g
}

// Exits returns every block with no successors (ret/unhandled-trap blocks).
func (g *Graph) Exits() []string {
	var out []string
	for _, label := range g.Order {
		if len(g.Succs[label]) == 0 {
			out = append(out, label)
		}
	}
	return out
}

// Dominators computes each block's immediate dominator via the standard
// iterative Cooper-Harvey-Kennedy algorithm over reverse postorder,
// matching spec.md §4.5.1's "iterative Cooper-Harvey-Kennedy or
// equivalent" requirement for the dominator-tree analysis.
func Dominators(g *Graph) *Tree {
	return buildTree(g.Order, g.Entry, g.Preds)
}

// Postdominators computes each block's immediate postdominator by running
// the same algorithm over the graph with edges reversed and a single
// virtual exit predecessor of every real exit block.
func Postdominators(g *Graph) *Tree {
	const virtualExit = "\x00exit"
	// The reversed graph's predecessors are the forward graph's successors.
	revPreds := make(map[string][]string, len(g.Order)+1)
	for _, label := range g.Order {
		revPreds[label] = g.Succs[label]
	}
	// The augmented forward graph adds an edge exit -> virtualExit for
	// every real exit block; reversed, that becomes virtualExit -> exit,
	// i.e. virtualExit is a *predecessor* of exit in the reversed graph.
	for _, exit := range g.Exits() {
		revPreds[exit] = append(revPreds[exit], virtualExit)
	}
	// intersect climbs toward lower indices, so the root (virtualExit) must
	// come first; the forward block order reversed follows it.
	order := []string{virtualExit}
	for i := len(g.Order) - 1; i >= 0; i-- {
		order = append(order, g.Order[i])
	}
	return buildTree(order, virtualExit, revPreds)
}

// Tree is an immediate-dominator (or immediate-postdominator) map plus the
// dominance query derived from walking it.
type Tree struct {
	idom map[string]string
	root string
}

// Dominates reports whether a dominates (or postdominates) b, inclusive
// (every block dominates itself).
func (t *Tree) Dominates(a, b string) bool {
	for cur := b; ; {
		if cur == a {
			return true
		}
		next, ok := t.idom[cur]
		if !ok || next == cur {
			return cur == a
		}
		cur = next
	}
}

func buildTree(order []string, root string, preds map[string][]string) *Tree {
	idom := make(map[string]string, len(order))
	index := make(map[string]int, len(order))
	for i, label := range order {
		index[label] = i
	}
	idom[root] = root

	changed := true
	for changed {
		changed = false
		for _, label := range order {
			if label == root {
				continue
			}
			var newIdom string
			for _, p := range preds[label] {
				if _, ok := idom[p]; !ok {
					continue
				}
				if newIdom == "" {
					newIdom = p
					continue
				}
				newIdom = intersect(newIdom, p, idom, index)
			}
			if newIdom == "" {
				continue
			}
			if idom[label] != newIdom {
				idom[label] = newIdom
				changed = true
			}
		}
	}
	return &Tree{idom: idom, root: root}
}

func intersect(a, b string, idom map[string]string, index map[string]int) string {
	for a != b {
		for index[a] > index[b] {
			a = idom[a]
		}
		for index[b] > index[a] {
			b = idom[b]
		}
	}
	return a
}
