// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package ilio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/viper-lang/viper/internal/il/ir"
	"github.com/viper-lang/viper/internal/il/opcode"
)

// Print serializes m to its canonical textual form. Print is the inverse
// of Parse: Parse(Print(m)) reproduces m up to duplicate-whitespace and
// comment normalization (spec.md §4.3.5), which TestRoundTripPrintThenParse
// checks. Infinite float constants print as "+Inf"/"-Inf", which the
// lexer does not accept, so they do not survive the round trip.
func Print(m *ir.Module) string {
	var sb strings.Builder
	sb.WriteString("il 1\n")

	for _, e := range m.Externs {
		sb.WriteString(fmt.Sprintf("extern @%s(%s) -> %s\n", e.Name, joinTypes(e.ParamTypes), e.ReturnType))
	}
	if len(m.Externs) > 0 {
		sb.WriteString("\n")
	}
	for _, g := range m.Globals {
		if g.HasInit {
			sb.WriteString(fmt.Sprintf("global %s @%s = %s\n", g.Type, g.Name, quoteString(g.Init)))
		} else {
			sb.WriteString(fmt.Sprintf("global %s @%s\n", g.Type, g.Name))
		}
	}
	if len(m.Globals) > 0 {
		sb.WriteString("\n")
	}

	for i, fn := range m.Functions {
		if i > 0 {
			sb.WriteString("\n")
		}
		printFunction(&sb, fn)
	}
	return sb.String()
}

func joinTypes(ts []ir.Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

func printFunction(sb *strings.Builder, fn *ir.Function) {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = fmt.Sprintf("%%%s: %s", p.Name, p.Type)
	}
	sb.WriteString(fmt.Sprintf("func @%s(%s) -> %s {\n", fn.Name, strings.Join(params, ", "), fn.ReturnType))

	for _, b := range fn.Blocks {
		printBlock(sb, fn, b)
	}
	sb.WriteString("}\n")
}

func printBlock(sb *strings.Builder, fn *ir.Function, b *ir.BasicBlock) {
	if len(b.Params) > 0 {
		parts := make([]string, len(b.Params))
		for i, p := range b.Params {
			parts[i] = fmt.Sprintf("%%%s: %s", nameOrID(fn, p.ID, p.Name), p.Type)
		}
		sb.WriteString(fmt.Sprintf("%s(%s):\n", b.Label, strings.Join(parts, ", ")))
	} else {
		sb.WriteString(b.Label + ":\n")
	}

	var lastLoc ir.SourceLoc
	hasLoc := false
	for _, inst := range b.Instructions {
		if !hasLoc || inst.Loc != lastLoc {
			if inst.Loc.FileID != 0 || inst.Loc.Line != 0 || inst.Loc.Column != 0 {
				sb.WriteString(fmt.Sprintf("  .loc %d %d %d\n", inst.Loc.FileID, inst.Loc.Line, inst.Loc.Column))
			}
			lastLoc = inst.Loc
			hasLoc = true
		}
		sb.WriteString("  ")
		printInstruction(sb, fn, inst)
		sb.WriteString("\n")
	}
}

// nameOrID returns fallback if non-empty, else the SSA id's recorded debug
// name, else a synthesized "t<id>" identifier. The synthesized form must
// start with a letter: the textual grammar lexes a bare digit run after
// '%' as an integer token, not an identifier, so a plain numeric temp
// reference would fail to parse back.
func nameOrID(fn *ir.Function, id uint32, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if n, ok := fn.ValueNames[id]; ok && n != "" {
		return n
	}
	return "t" + strconv.FormatUint(uint64(id), 10)
}

func printInstruction(sb *strings.Builder, fn *ir.Function, inst *ir.Instruction) {
	info := opcode.Lookup(inst.Op)
	if inst.HasResult {
		sb.WriteString(fmt.Sprintf("%%%s = ", nameOrID(fn, inst.Result, "")))
	}
	sb.WriteString(info.Mnemonic)

	var parts []string
	operandIdx := 0
	labelIdx := 0
	for _, kind := range info.Parse {
		switch kind {
		case opcode.ParseNone:
			continue
		case opcode.ParseValue:
			if operandIdx < len(inst.Operands) {
				parts = append(parts, printValue(fn, inst.Operands[operandIdx]))
				operandIdx++
			}
		case opcode.ParseTypeImmediate:
			parts = append(parts, inst.Type.String())
		case opcode.ParseBranchTarget:
			if labelIdx < len(inst.Labels) {
				parts = append(parts, printBranchTarget(fn, inst, labelIdx))
				labelIdx++
			}
		case opcode.ParseCall:
			parts = append(parts, printCall(fn, inst, &operandIdx))
		case opcode.ParseSwitch:
			parts = append(parts, printSwitch(fn, inst))
		}
	}
	if len(parts) > 0 {
		sb.WriteString(" " + strings.Join(parts, ", "))
	}
}

// printValue renders v in a form the lexer/parser can read back. A Temp
// always prints as a named identifier (its debug name, or a synthesized
// "t<id>" when it has none) rather than a bare number: the grammar treats
// digits after '%' as an integer token, not an identifier, so a numeric
// temp reference would not round-trip through Parse.
func printValue(fn *ir.Function, v ir.Value) string {
	switch val := v.(type) {
	case ir.Temp:
		return "%" + nameOrID(fn, val.ID, "")
	case ir.GlobalAddr:
		return "@" + val.Name
	case ir.ConstInt:
		return strconv.FormatInt(val.Val, 10)
	case ir.ConstFloat:
		s := strconv.FormatFloat(val.Val, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEnN") {
			s += ".0"
		}
		return s
	case ir.ConstBool:
		return strconv.FormatBool(val.Val)
	case ir.ConstStr:
		return quoteString(val.Val)
	case ir.ConstNull:
		return "null"
	default:
		return v.String()
	}
}

func printBranchTarget(fn *ir.Function, inst *ir.Instruction, idx int) string {
	label := inst.Labels[idx]
	args := inst.BrArgs[idx]
	if len(args) == 0 {
		return label
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = printValue(fn, a)
	}
	return fmt.Sprintf("%s(%s)", label, strings.Join(parts, ", "))
}

func printCall(fn *ir.Function, inst *ir.Instruction, operandIdx *int) string {
	var head string
	if inst.Callee != "" {
		head = "@" + inst.Callee
	} else if *operandIdx < len(inst.Operands) {
		head = printValue(fn, inst.Operands[*operandIdx])
		*operandIdx++
	}
	args := make([]string, 0, len(inst.Operands)-*operandIdx)
	for *operandIdx < len(inst.Operands) {
		args = append(args, printValue(fn, inst.Operands[*operandIdx]))
		*operandIdx++
	}
	return fmt.Sprintf("%s(%s)", head, strings.Join(args, ", "))
}

func printSwitch(fn *ir.Function, inst *ir.Instruction) string {
	var sb strings.Builder
	sb.WriteString("default ")
	sb.WriteString(printBranchTarget(fn, inst, 0))
	for i, c := range inst.SwitchCases {
		sb.WriteString(fmt.Sprintf(", case %d %s", c, printBranchTarget(fn, inst, i+1)))
	}
	return sb.String()
}

// quoteString renders b as a double-quoted IL string literal, escaping
// exactly the characters spec.md §6.2 requires an escape for.
func quoteString(b []byte) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, c := range b {
		switch c {
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case 0:
			sb.WriteString(`\0`)
		default:
			if c < 0x20 || c >= 0x7f {
				sb.WriteString(fmt.Sprintf(`\x%02x`, c))
			} else {
				sb.WriteByte(c)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
