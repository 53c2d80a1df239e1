// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package verify

import (
	"fmt"

	"github.com/viper-lang/viper/internal/diag"
	"github.com/viper-lang/viper/internal/il/cfg"
	"github.com/viper-lang/viper/internal/il/ir"
)

// defSite records where an SSA id is bound: a block parameter (instrIdx
// -1, defined on entry to the block) or an instruction result (instrIdx
// is that instruction's position in its block).
type defSite struct {
	block    string
	instrIdx int
}

// ruleSSADominance checks spec.md §4.4.2's "every temporary is defined
// before use along every path from entry": a use of %id must be in a
// block dominated by %id's definition, and if def and use share a block,
// the def must precede the use in program order (a block parameter,
// bound on entry, always precedes every instruction in its own block).
func ruleSSADominance(fn *ir.Function) []diag.Diagnostic {
	defs := make(map[uint32]defSite)
	for _, p := range fn.Params {
		if len(fn.Blocks) == 0 {
			break
		}
		defs[p.ID] = defSite{block: fn.Blocks[0].Label, instrIdx: -1}
	}
	for _, b := range fn.Blocks {
		for _, p := range b.Params {
			defs[p.ID] = defSite{block: b.Label, instrIdx: -1}
		}
		for ii, inst := range b.Instructions {
			if inst.HasResult {
				defs[inst.Result] = defSite{block: b.Label, instrIdx: ii}
			}
		}
	}

	g := cfg.Build(fn)
	dom := cfg.Dominators(g)

	var out []diag.Diagnostic
	checkUse := func(bi, ii int, blockLabel string, v ir.Value) {
		t, ok := v.(ir.Temp)
		if !ok {
			return
		}
		def, ok := defs[t.ID]
		if !ok {
			out = append(out, diag.Diagnostic{
				Severity: diag.Error,
				Code:     "ssa.undefined-temp",
				Location: loc(bi, ii),
				Message:  fmt.Sprintf("%%%d used before any definition reaches it", t.ID),
			})
			return
		}
		if def.block == blockLabel {
			if def.instrIdx >= ii && def.instrIdx != -1 {
				out = append(out, diag.Diagnostic{
					Severity: diag.Error,
					Code:     "ssa.use-before-def",
					Location: loc(bi, ii),
					Message:  fmt.Sprintf("%%%d used before its definition in the same block", t.ID),
				})
			}
			return
		}
		if !dom.Dominates(def.block, blockLabel) {
			out = append(out, diag.Diagnostic{
				Severity: diag.Error,
				Code:     "ssa.use-not-dominated",
				Location: loc(bi, ii),
				Message:  fmt.Sprintf("%%%d's definition in block %s does not dominate its use in block %s", t.ID, def.block, blockLabel),
			})
		}
	}

	for bi, b := range fn.Blocks {
		for ii, inst := range b.Instructions {
			for _, v := range inst.Operands {
				checkUse(bi, ii, b.Label, v)
			}
			for _, args := range inst.BrArgs {
				for _, v := range args {
					checkUse(bi, ii, b.Label, v)
				}
			}
		}
	}
	return out
}
