// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package verify

import (
	"fmt"
	"strings"

	"github.com/viper-lang/viper/internal/diag"
	"github.com/viper-lang/viper/internal/il/cfg"
	"github.com/viper-lang/viper/internal/il/ir"
	"github.com/viper-lang/viper/internal/il/opcode"
)

// ehState is the abstract state the exception-handler worklist analysis
// (spec.md §4.4.3) propagates along each reachable edge: the stack of
// still-active handler blocks, and whether a resume token is currently
// live for the instruction about to execute.
type ehState struct {
	stack    []string
	hasToken bool
}

func (s ehState) key() string {
	return strings.Join(s.stack, ">") + "|" + fmt.Sprint(s.hasToken)
}

func (s ehState) push(label string) ehState {
	next := ehState{stack: append(append([]string{}, s.stack...), label), hasToken: s.hasToken}
	return next
}

func (s ehState) pop() ehState {
	if len(s.stack) == 0 {
		return s
	}
	return ehState{stack: s.stack[:len(s.stack)-1], hasToken: s.hasToken}
}

func (s ehState) top() (string, bool) {
	if len(s.stack) == 0 {
		return "", false
	}
	return s.stack[len(s.stack)-1], true
}

type ehWorklistItem struct {
	block string
	state ehState
}

// checkExceptionHandlers runs the worklist dataflow analysis from
// spec.md §4.4.3 and reports every stack-underflow, stack-leak, and
// missing-resume-token violation it finds.
func checkExceptionHandlers(fn *ir.Function) []diag.Diagnostic {
	_, diags := ehAnalyze(fn)
	return diags
}

// ehAnalyze performs the worklist walk and returns (handler -> set of
// blocks that can trap into it) plus any diagnostics.
func ehAnalyze(fn *ir.Function) (map[string]map[string]bool, []diag.Diagnostic) {
	var out []diag.Diagnostic
	coverage := make(map[string]map[string]bool)
	if len(fn.Blocks) == 0 {
		return coverage, out
	}

	blockIndex := make(map[string]int, len(fn.Blocks))
	for i, b := range fn.Blocks {
		blockIndex[b.Label] = i
	}
	blockByLabel := make(map[string]*ir.BasicBlock, len(fn.Blocks))
	for _, b := range fn.Blocks {
		blockByLabel[b.Label] = b
	}

	visited := make(map[string]bool)
	worklist := []ehWorklistItem{{block: fn.Blocks[0].Label, state: ehState{}}}

	for len(worklist) > 0 {
		item := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		visitKey := item.block + "#" + item.state.key()
		if visited[visitKey] {
			continue
		}
		visited[visitKey] = true

		b := blockByLabel[item.block]
		if b == nil {
			continue
		}
		bi := blockIndex[item.block]
		state := item.state
		terminated := false

		for ii := 0; ii < len(b.Instructions) && !terminated; ii++ {
			inst := b.Instructions[ii]
			switch inst.Op {
			case opcode.EhPush:
				if len(inst.Labels) == 1 {
					state = state.push(inst.Labels[0])
				}
			case opcode.EhPop:
				if len(state.stack) == 0 {
					out = append(out, diag.Diagnostic{
						Severity: diag.Error, Code: "eh.stack-underflow",
						Location: loc(bi, ii),
						Message:  "eh.pop with no active handler on the stack",
					})
					continue
				}
				state = state.pop()
			case opcode.ResumeSame, opcode.ResumeNext, opcode.ResumeLabel:
				// The handler's token was already popped off state.stack
				// when the matching trap transferred control here (see the
				// Trap/TrapFromErr case below); resuming consumes the
				// token, not another stack slot.
				if !state.hasToken {
					out = append(out, diag.Diagnostic{
						Severity: diag.Error, Code: "eh.resume-token-missing",
						Location: loc(bi, ii),
						Message:  fmt.Sprintf("%s requires a live resume token", inst.Op),
					})
				}
				next := state
				next.hasToken = false
				if inst.Op == opcode.ResumeLabel && len(inst.Labels) == 1 {
					worklist = append(worklist, ehWorklistItem{block: inst.Labels[0], state: next})
				}
				state = next
				terminated = true
			case opcode.Ret:
				if len(state.stack) != 0 {
					out = append(out, diag.Diagnostic{
						Severity: diag.Error, Code: "eh.stack-leak",
						Location: loc(bi, ii),
						Message:  fmt.Sprintf("function returns with %d unmatched eh.push", len(state.stack)),
					})
				}
				terminated = true
			case opcode.Trap, opcode.TrapFromErr:
				if handler, ok := state.top(); ok {
					markCoverage(coverage, handler, item.block)
					next := state.pop()
					next.hasToken = true
					worklist = append(worklist, ehWorklistItem{block: handler, state: next})
				}
				terminated = true
			default:
				if info := opcode.Lookup(inst.Op); info.HasSideEffects || info.MemoryEffects != opcode.MemNone {
					if handler, ok := state.top(); ok {
						markCoverage(coverage, handler, item.block)
					}
				}
			}
		}

		if !terminated && len(b.Instructions) > 0 {
			for _, label := range b.Instructions[len(b.Instructions)-1].Labels {
				worklist = append(worklist, ehWorklistItem{block: label, state: state})
			}
		}
	}

	return coverage, out
}

func markCoverage(coverage map[string]map[string]bool, handler, faulting string) {
	set, ok := coverage[handler]
	if !ok {
		set = make(map[string]bool)
		coverage[handler] = set
	}
	set[faulting] = true
}

// checkResumePostdominance implements spec.md §4.4.4: every
// `resume.label target` must postdominate every block that could have
// trapped into the handler whose token feeds that resume.
func checkResumePostdominance(fn *ir.Function) []diag.Diagnostic {
	coverage, _ := ehAnalyze(fn)
	if len(coverage) == 0 {
		return nil
	}
	g := cfg.Build(fn)
	pdom := cfg.Postdominators(g)

	var out []diag.Diagnostic
	for bi, b := range fn.Blocks {
		for ii, inst := range b.Instructions {
			if inst.Op != opcode.ResumeLabel || len(inst.Labels) != 1 {
				continue
			}
			target := inst.Labels[0]
			// The handler this resume lives in is the block itself: any
			// block whose trap could have reached this handler must be
			// postdominated by target.
			for faulting := range coverage[b.Label] {
				if !pdom.Dominates(target, faulting) {
					out = append(out, diag.Diagnostic{
						Severity: diag.Error,
						Code:     "eh.resume-not-postdominating",
						Location: loc(bi, ii),
						Message:  fmt.Sprintf("target %s must postdominate block %s", target, faulting),
					})
				}
			}
		}
	}
	return out
}
