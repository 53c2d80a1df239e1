// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package transform implements the function-level transform pipeline:
// an analysis manager that computes and caches cfg/dominators/loop-info
// on demand (spec.md §4.5.1), and the required passes built on top of it
// (LICM, SimplifyCFG, per §4.5.3). Generalizes the teacher's
// probe-lang/lang/ir/optimize.go pass-function style into a proper
// PreservedAnalyses-driven pipeline.
package transform

import "github.com/viper-lang/viper/internal/il/ir"

// AnalysisKind names one of the analyses the manager can compute.
type AnalysisKind int

const (
	AnalysisCFG AnalysisKind = iota
	AnalysisDominators
	AnalysisLoopInfo
)

// PreservedAnalyses is the set of analyses a pass declares it left intact.
// The manager invalidates and recomputes everything not named here.
type PreservedAnalyses struct {
	kinds map[AnalysisKind]bool
}

// PreserveNone is returned by passes that may have changed anything.
func PreserveNone() PreservedAnalyses { return PreservedAnalyses{} }

// PreserveAll is returned by passes that are read-only or purely additive
// in a way that can't invalidate cfg/dominators/loop-info. LICM returns
// it: it moves instructions between existing blocks without changing the
// block graph.
func PreserveAll() PreservedAnalyses {
	return PreservedAnalyses{kinds: map[AnalysisKind]bool{
		AnalysisCFG: true, AnalysisDominators: true, AnalysisLoopInfo: true,
	}}
}

// Preserves reports whether k survives this pass's run.
func (p PreservedAnalyses) Preserves(k AnalysisKind) bool { return p.kinds[k] }

// AnalysisManager computes and caches per-function analyses, keyed by
// (analysis, function) the way spec.md §4.5.1 describes; here the cache
// is scoped to a single Manager instance per function, since passes run
// one function at a time.
type AnalysisManager struct {
	fn  *ir.Function
	cfg *cfgResult
	dom *domResult
	loi *loopInfoResult
}

// NewAnalysisManager returns a manager scoped to fn with an empty cache.
func NewAnalysisManager(fn *ir.Function) *AnalysisManager {
	return &AnalysisManager{fn: fn}
}

// Invalidate drops every cached analysis not named in preserved.
func (am *AnalysisManager) Invalidate(preserved PreservedAnalyses) {
	if !preserved.Preserves(AnalysisCFG) {
		am.cfg = nil
	}
	if !preserved.Preserves(AnalysisDominators) {
		am.dom = nil
	}
	if !preserved.Preserves(AnalysisLoopInfo) {
		am.loi = nil
	}
}

// Pass is a single transform: it mutates fn in place and reports which
// analyses it preserved (spec.md §4.5.2).
type Pass func(fn *ir.Function, am *AnalysisManager) PreservedAnalyses

// Run applies each pass in order over fn, invalidating analyses between
// passes per their declared PreservedAnalyses.
func Run(fn *ir.Function, passes ...Pass) {
	am := NewAnalysisManager(fn)
	for _, p := range passes {
		preserved := p(fn, am)
		am.Invalidate(preserved)
	}
}
