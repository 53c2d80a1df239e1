// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package verify checks an ir.Module for well-formedness before it is
// handed to the VM or a transform pass. Every check is an independent
// Rule registered in one of two fixed-order lists (instRuleRegistry,
// fnRuleRegistry); adding a new
// check means adding a rule entry, not touching existing ones, the same
// discipline the teacher's codegen.Verify applies to bytecode safety
// checks.
package verify

import (
	"fmt"

	"github.com/viper-lang/viper/internal/diag"
	"github.com/viper-lang/viper/internal/il/ir"
	"github.com/viper-lang/viper/internal/il/opcode"
)

// instRule checks one instruction in isolation. blockIdx/instrIdx locate
// it for diagnostics.
type instRule func(fn *ir.Function, block *ir.BasicBlock, blockIdx int, inst *ir.Instruction, instrIdx int) *diag.Diagnostic

// fnRule checks whole-function properties (cross-block/cross-instruction
// invariants the per-instruction rules can't see).
type fnRule func(fn *ir.Function) []diag.Diagnostic

var instRuleRegistry = []instRule{
	ruleUnexpectedResult,
	ruleMissingResult,
	ruleOperandCount,
	ruleSuccessorCount,
	ruleBranchArgs,
	ruleOperandTypes,
}

var fnRuleRegistry = []fnRule{
	ruleBlocksTerminated,
	ruleLabelsResolve,
	ruleSwitchCasesUnique,
	ruleSSADominance,
	checkExceptionHandlers,
	checkResumePostdominance,
}

func loc(blockIdx, instrIdx int) diag.Location {
	return diag.Location{HasBlockInstr: true, Block: blockIdx, Instr: instrIdx}
}

func errAt(blockIdx, instrIdx int, code, format string, args ...interface{}) *diag.Diagnostic {
	return &diag.Diagnostic{
		Severity: diag.Error,
		Code:     code,
		Location: loc(blockIdx, instrIdx),
		Message:  fmt.Sprintf(format, args...),
	}
}

func ruleUnexpectedResult(fn *ir.Function, b *ir.BasicBlock, bi int, inst *ir.Instruction, ii int) *diag.Diagnostic {
	info := opcode.Lookup(inst.Op)
	if info.ResultArity == opcode.NoResult && inst.HasResult {
		return errAt(bi, ii, "sig.unexpected-result", "%s does not produce a result", info.Mnemonic)
	}
	return nil
}

func ruleMissingResult(fn *ir.Function, b *ir.BasicBlock, bi int, inst *ir.Instruction, ii int) *diag.Diagnostic {
	info := opcode.Lookup(inst.Op)
	if info.ResultArity == opcode.OneResult && !inst.HasResult {
		return errAt(bi, ii, "sig.missing-result", "%s requires a result binding", info.Mnemonic)
	}
	return nil
}

func ruleOperandCount(fn *ir.Function, b *ir.BasicBlock, bi int, inst *ir.Instruction, ii int) *diag.Diagnostic {
	info := opcode.Lookup(inst.Op)
	n := len(inst.Operands)
	if n < int(info.NumOperandsMin) {
		return errAt(bi, ii, "sig.operand-count", "%s requires at least %d operand(s), got %d",
			info.Mnemonic, info.NumOperandsMin, n)
	}
	if info.NumOperandsMax != opcode.VariadicMax && n > int(info.NumOperandsMax) {
		return errAt(bi, ii, "sig.operand-count", "%s accepts at most %d operand(s), got %d",
			info.Mnemonic, info.NumOperandsMax, n)
	}
	return nil
}

func ruleSuccessorCount(fn *ir.Function, b *ir.BasicBlock, bi int, inst *ir.Instruction, ii int) *diag.Diagnostic {
	info := opcode.Lookup(inst.Op)
	n := len(inst.Labels)
	if info.NumSuccessors == opcode.VariadicSuccessors {
		if n == 0 && info.IsTerminator {
			return errAt(bi, ii, "sig.successor-min", "%s requires at least one successor", info.Mnemonic)
		}
		return nil
	}
	if n != int(info.NumSuccessors) {
		return errAt(bi, ii, "sig.successor-exact", "%s requires exactly %d successor(s), got %d",
			info.Mnemonic, info.NumSuccessors, n)
	}
	return nil
}

func ruleBranchArgs(fn *ir.Function, b *ir.BasicBlock, bi int, inst *ir.Instruction, ii int) *diag.Diagnostic {
	if len(inst.BrArgs) != len(inst.Labels) {
		info := opcode.Lookup(inst.Op)
		return errAt(bi, ii, "sig.branch-args-exact",
			"%s has %d branch target(s) but %d argument bundle(s)",
			info.Mnemonic, len(inst.Labels), len(inst.BrArgs))
	}
	for idx, label := range inst.Labels {
		target := ir.FindBlock(fn, label)
		if target == nil {
			continue // ruleLabelsResolve reports unresolved labels
		}
		args := inst.BrArgs[idx]
		if len(args) != len(target.Params) {
			return errAt(bi, ii, "sig.branch-args-exact",
				"branch to %s passes %d argument(s), block declares %d parameter(s)",
				label, len(args), len(target.Params))
		}
	}
	return nil
}

// ruleOperandTypes checks each operand against its declared TypeCategory.
// Values carry no explicit Type field, so only the categories that are
// derivable from the Value's own kind are checked here (TyI1/TyI16/TyI32
// /TyI64 all accept any ConstInt/Temp, since the textual form doesn't
// separately tag integer width — width conformance is enforced by the
// result/operand TypeCategory pairing at the producer, not re-derived
// from an untyped literal). TyAny and TyDynamic never fail.
func ruleOperandTypes(fn *ir.Function, b *ir.BasicBlock, bi int, inst *ir.Instruction, ii int) *diag.Diagnostic {
	info := opcode.Lookup(inst.Op)
	for idx, v := range inst.Operands {
		if idx >= len(info.OperandTypes) {
			break
		}
		want := info.OperandTypes[idx]
		if !operandTypeOK(want, v) {
			return errAt(bi, ii, "sig.operand-type",
				"%s operand %d: value %s is not compatible with expected kind %v",
				info.Mnemonic, idx, v.String(), want)
		}
	}
	return nil
}

func operandTypeOK(want opcode.TypeCategory, v ir.Value) bool {
	switch want {
	case opcode.TyNone, opcode.TyAny, opcode.TyDynamic, opcode.TyInstrType:
		return true
	case opcode.TyI1:
		_, ok := v.(ir.ConstBool)
		if ok {
			return true
		}
		_, ok = v.(ir.Temp)
		return ok
	case opcode.TyI16, opcode.TyI32, opcode.TyI64:
		_, isInt := v.(ir.ConstInt)
		_, isTemp := v.(ir.Temp)
		return isInt || isTemp
	case opcode.TyF64:
		_, isF := v.(ir.ConstFloat)
		_, isTemp := v.(ir.Temp)
		return isF || isTemp
	case opcode.TyPtr:
		switch v.(type) {
		case ir.ConstNull, ir.GlobalAddr, ir.Temp:
			return true
		}
		return false
	case opcode.TyStr:
		switch v.(type) {
		case ir.ConstStr, ir.GlobalAddr, ir.Temp:
			return true
		}
		return false
	case opcode.TyError, opcode.TyResumeTok:
		_, ok := v.(ir.Temp)
		return ok
	default:
		return true
	}
}

func ruleBlocksTerminated(fn *ir.Function) []diag.Diagnostic {
	var out []diag.Diagnostic
	for bi, b := range fn.Blocks {
		if !b.Terminated {
			out = append(out, diag.Diagnostic{
				Severity: diag.Error,
				Code:     "cfg.unterminated-block",
				Location: loc(bi, len(b.Instructions)),
				Message:  fmt.Sprintf("block %s is not terminated", b.Label),
			})
		}
	}
	return out
}

func ruleLabelsResolve(fn *ir.Function) []diag.Diagnostic {
	var out []diag.Diagnostic
	for bi, b := range fn.Blocks {
		for ii, inst := range b.Instructions {
			for _, label := range inst.Labels {
				if ir.FindBlock(fn, label) == nil {
					out = append(out, diag.Diagnostic{
						Severity: diag.Error,
						Code:     "cfg.unresolved-label",
						Location: loc(bi, ii),
						Message:  fmt.Sprintf("branch target %q does not name a block in %s", label, fn.Name),
					})
				}
			}
		}
	}
	return out
}

func ruleSwitchCasesUnique(fn *ir.Function) []diag.Diagnostic {
	var out []diag.Diagnostic
	for bi, b := range fn.Blocks {
		for ii, inst := range b.Instructions {
			if inst.Op != opcode.SwitchI32 {
				continue
			}
			seen := make(map[int32]bool, len(inst.SwitchCases))
			for _, c := range inst.SwitchCases {
				if seen[c] {
					out = append(out, diag.Diagnostic{
						Severity: diag.Error,
						Code:     "cfg.switch-duplicate-case",
						Location: loc(bi, ii),
						Message:  fmt.Sprintf("switch.i32 has duplicate case value %d", c),
					})
				}
				seen[c] = true
			}
		}
	}
	return out
}

// Verify runs every registered rule over fn and returns the collected
// diagnostics, routed through a diag.Sink so they come back in the
// canonical (block, instr) order spec.md §4.4.5 requires.
func Verify(fn *ir.Function) []diag.Diagnostic {
	var sink diag.Sink
	for bi, b := range fn.Blocks {
		for ii, inst := range b.Instructions {
			for _, r := range instRuleRegistry {
				if d := r(fn, b, bi, inst, ii); d != nil {
					sink.Add(*d)
				}
			}
		}
	}
	for _, r := range fnRuleRegistry {
		for _, d := range r(fn) {
			sink.Add(d)
		}
	}
	return sink.Diagnostics()
}

// VerifyModule runs Verify over every function in m and returns the
// combined diagnostics. A module with any Error-severity diagnostic must
// not be handed to the VM (spec.md §4.4.5).
func VerifyModule(m *ir.Module) []diag.Diagnostic {
	var all []diag.Diagnostic
	for _, fn := range m.Functions {
		all = append(all, Verify(fn)...)
	}
	return all
}
