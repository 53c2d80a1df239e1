// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package ilio

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/viper-lang/viper/internal/diag"
	"github.com/viper-lang/viper/internal/il/ir"
	"github.com/viper-lang/viper/internal/il/opcode"
)

// parser is a recursive-descent reader over one token stream. On a parse
// failure within an item or a block, it recovers to the next plausible
// boundary instead of aborting, so Parse can report every diagnostic in
// one pass (spec.md §4.3.4) the same way the teacher's
// probe-lang/lang/parser/parser.go accumulates into p.errors instead of
// returning on the first one.
type parser struct {
	lex    *lexer
	cur    Token
	peek   Token
	fileID uint32
	sink   diag.Sink

	mod *ir.Module
	fn  *ir.Function

	// tempNames maps a per-function temp name to its allocated id; reset
	// at the start of every parseFunc call.
	tempNames map[string]uint32

	// pendingLabels accumulates every label referenced by a branch-shaped
	// instruction in the function currently being parsed; checked against
	// fn.Blocks once the function closes.
	pendingLabels []pendingLabel
}

type pendingLabel struct {
	name       string
	line, col  uint32
}

// Parse parses src (registered under fileID for diagnostics) into a
// Module. Returned diagnostics are sorted; if any has Error severity the
// Module is incomplete/unreliable and must not be handed to the verifier
// or VM.
func Parse(src string, fileID uint32) (*ir.Module, []diag.Diagnostic) {
	p := &parser{lex: newLexer(src), fileID: fileID, mod: ir.NewModule()}
	p.advance()
	p.advance()
	p.parseModule()
	return p.mod, p.sink.Diagnostics()
}

func (p *parser) advance() {
	p.cur = p.peek
	p.peek = p.lex.next()
}

func (p *parser) loc(line, col uint32) diag.Location {
	return diag.Location{File: fmt.Sprintf("file#%d", p.fileID), Line: line, Column: col}
}

func (p *parser) errorf(code, format string, args ...interface{}) {
	p.sink.Add(diag.Diagnostic{
		Severity: diag.Error,
		Code:     code,
		Location: p.loc(p.cur.Line, p.cur.Column),
		Message:  fmt.Sprintf(format, args...),
	})
}

// skipLine advances until (and past) the next NEWLINE or EOF; used to
// resync after an instruction-level parse failure.
func (p *parser) skipLine() {
	for p.cur.Type != NEWLINE && p.cur.Type != EOF {
		p.advance()
	}
	if p.cur.Type == NEWLINE {
		p.advance()
	}
}

// skipToNextItem resyncs after a failed top-level item by discarding
// tokens until the next line that starts with a recognized item keyword,
// or EOF.
func (p *parser) skipToNextItem() {
	for p.cur.Type != EOF {
		if p.cur.Type == IDENT && isItemKeyword(p.cur.Literal) {
			return
		}
		p.advance()
	}
}

func isItemKeyword(lit string) bool {
	switch lit {
	case "extern", "global", "func", "target":
		return true
	}
	return false
}

func (p *parser) skipBlankLines() {
	for p.cur.Type == NEWLINE {
		p.advance()
	}
}

func (p *parser) parseModule() {
	p.skipBlankLines()
	if p.cur.Type == IDENT && p.cur.Literal == "il" {
		p.advance() // "il"
		if p.cur.Type == INT || p.cur.Type == IDENT {
			p.advance() // version
		}
		p.skipLine()
	} else {
		p.errorf("IO_BAD_FORMAT", "expected version line \"il <version>\"")
		p.skipLine()
	}

	for {
		p.skipBlankLines()
		if p.cur.Type == EOF {
			return
		}
		if p.cur.Type != IDENT {
			p.errorf("IO_BAD_FORMAT", "expected a top-level item, got %s", p.cur.Type)
			p.skipToNextItem()
			continue
		}
		switch p.cur.Literal {
		case "target":
			p.advance()
			p.skipLine() // target line's content is opaque/unused by the core
		case "extern":
			p.parseExtern()
		case "global":
			p.parseGlobal()
		case "func":
			p.parseFunc()
		default:
			p.errorf("IO_BAD_FORMAT", "unknown item keyword %q", p.cur.Literal)
			p.skipToNextItem()
		}
	}
}

func (p *parser) expect(t TokType) (Token, bool) {
	if p.cur.Type != t {
		p.errorf("IO_BAD_FORMAT", "expected %s, got %s %q", t, p.cur.Type, p.cur.Literal)
		return p.cur, false
	}
	tok := p.cur
	p.advance()
	return tok, true
}

func (p *parser) parseExtern() {
	p.advance() // "extern"
	if _, ok := p.expect(AT); !ok {
		p.skipToNextItem()
		return
	}
	name, ok := p.expect(IDENT)
	if !ok {
		p.skipToNextItem()
		return
	}
	if _, ok := p.expect(LPAREN); !ok {
		p.skipToNextItem()
		return
	}
	var params []ir.Type
	for p.cur.Type != RPAREN {
		typ, ok := p.parseTypeName()
		if !ok {
			p.skipToNextItem()
			return
		}
		params = append(params, typ)
		if p.cur.Type == COMMA {
			p.advance()
		} else {
			break
		}
	}
	if _, ok := p.expect(RPAREN); !ok {
		p.skipToNextItem()
		return
	}
	if _, ok := p.expect(ARROW); !ok {
		p.skipToNextItem()
		return
	}
	ret, ok := p.parseTypeName()
	if !ok {
		p.skipToNextItem()
		return
	}
	p.mod.AddExtern(name.Literal, ret, params)
	p.skipLine()
}

func (p *parser) parseGlobal() {
	p.advance() // "global"
	typ, ok := p.parseTypeName()
	if !ok {
		p.skipToNextItem()
		return
	}
	if _, ok := p.expect(AT); !ok {
		p.skipToNextItem()
		return
	}
	name, ok := p.expect(IDENT)
	if !ok {
		p.skipToNextItem()
		return
	}
	g := ir.Global{Name: name.Literal, Type: typ}
	if p.cur.Type == EQUALS {
		p.advance()
		v, ok := p.parseValue()
		if !ok {
			p.skipToNextItem()
			return
		}
		if lit, ok := v.(ir.ConstStr); ok {
			g.Init = lit.Val
			g.HasInit = true
		}
	}
	p.mod.AddGlobal(g)
	p.skipLine()
}

var typeNamesToType = map[string]ir.Type{
	"void": ir.Void, "i1": ir.I1, "i16": ir.I16, "i32": ir.I32, "i64": ir.I64,
	"f64": ir.F64, "ptr": ir.Ptr, "str": ir.Str, "error": ir.Error, "resume_tok": ir.ResumeTok,
}

func (p *parser) parseTypeName() (ir.Type, bool) {
	if p.cur.Type != IDENT {
		p.errorf("IO_BAD_FORMAT", "expected a type name, got %s", p.cur.Type)
		return ir.Void, false
	}
	typ, ok := typeNamesToType[p.cur.Literal]
	if !ok {
		p.errorf("IO_BAD_FORMAT", "unknown type %q", p.cur.Literal)
		return ir.Void, false
	}
	p.advance()
	return typ, true
}

func (p *parser) parseFunc() {
	p.advance() // "func"
	if _, ok := p.expect(AT); !ok {
		p.skipToNextItem()
		return
	}
	name, ok := p.expect(IDENT)
	if !ok {
		p.skipToNextItem()
		return
	}
	if _, ok := p.expect(LPAREN); !ok {
		p.skipToNextItem()
		return
	}
	var params []ir.Param
	var nextID uint32
	for p.cur.Type != RPAREN {
		if _, ok := p.expect(PERCENT); !ok {
			p.skipToNextItem()
			return
		}
		pname, ok := p.expect(IDENT)
		if !ok {
			p.skipToNextItem()
			return
		}
		if _, ok := p.expect(COLON); !ok {
			p.skipToNextItem()
			return
		}
		typ, ok := p.parseTypeName()
		if !ok {
			p.skipToNextItem()
			return
		}
		params = append(params, ir.Param{ID: nextID, Name: pname.Literal, Type: typ})
		nextID++
		if p.cur.Type == COMMA {
			p.advance()
		} else {
			break
		}
	}
	if _, ok := p.expect(RPAREN); !ok {
		p.skipToNextItem()
		return
	}
	if _, ok := p.expect(ARROW); !ok {
		p.skipToNextItem()
		return
	}
	ret, ok := p.parseTypeName()
	if !ok {
		p.skipToNextItem()
		return
	}
	if _, ok := p.expect(LBRACE); !ok {
		p.skipToNextItem()
		return
	}
	p.skipBlankLines()

	fn := p.mod.AddFunction(name.Literal, params, ret)
	// Result ids continue after parameter ids so instruction temps never
	// collide with parameter bindings in the same function's register file.
	fn.SetNextResultID(nextID)

	names := make(map[string]uint32, len(params))
	for _, prm := range params {
		names[prm.Name] = prm.ID
		fn.SetName(prm.ID, prm.Name)
	}
	p.fn = fn
	p.pendingLabels = nil
	p.tempNames = names

	for p.cur.Type != RBRACE && p.cur.Type != EOF {
		p.parseBlock()
		p.skipBlankLines()
	}
	p.expect(RBRACE)

	for _, pl := range p.pendingLabels {
		if ir.FindBlock(fn, pl.name) == nil {
			p.sink.Add(diag.Diagnostic{
				Severity: diag.Error,
				Code:     "IO_BAD_FORMAT",
				Location: p.loc(pl.line, pl.col),
				Message:  fmt.Sprintf("unknown block %q", pl.name),
			})
		}
	}
	p.fn = nil
	p.skipBlankLines()
}

func (p *parser) parseBlock() {
	label, ok := p.expect(IDENT)
	if !ok {
		p.skipLine()
		return
	}
	var params []ir.BlockParam
	if p.cur.Type == LPAREN {
		p.advance()
		for p.cur.Type != RPAREN {
			if _, ok := p.expect(PERCENT); !ok {
				p.skipLine()
				return
			}
			pname, ok := p.expect(IDENT)
			if !ok {
				p.skipLine()
				return
			}
			if _, ok := p.expect(COLON); !ok {
				p.skipLine()
				return
			}
			typ, ok := p.parseTypeName()
			if !ok {
				p.skipLine()
				return
			}
			id := p.fn.NextResultID()
			p.tempNames[pname.Literal] = id
			p.fn.SetName(id, pname.Literal)
			params = append(params, ir.BlockParam{ID: id, Name: pname.Literal, Type: typ})
			if p.cur.Type == COMMA {
				p.advance()
			} else {
				break
			}
		}
		if _, ok := p.expect(RPAREN); !ok {
			p.skipLine()
			return
		}
	}
	if _, ok := p.expect(COLON); !ok {
		p.skipLine()
		return
	}
	if p.cur.Type == NEWLINE {
		p.advance()
	}

	b := p.fn.AddBlock(label.Literal)
	b.Params = params

	curFile, curLine, curCol := p.fileID, uint32(0), uint32(0)
	for p.cur.Type != EOF {
		p.skipBlankLines()
		if p.cur.Type == RBRACE || p.cur.Type == EOF {
			return
		}
		// A bare IDENT immediately followed by ':' or '(' starts the next
		// block; no instruction's first token has that shape (calls start
		// with '@'/'%', not a bare label-like identifier).
		if p.cur.Type == IDENT && (p.peek.Type == COLON || p.peek.Type == LPAREN) {
			return
		}
		if p.cur.Type == DIRECTIVE && p.cur.Literal == "loc" {
			p.advance()
			fidTok, ok1 := p.expect(INT)
			lnTok, ok2 := p.expect(INT)
			colTok, ok3 := p.expect(INT)
			if ok1 && ok2 && ok3 {
				fid, _ := strconv.ParseUint(fidTok.Literal, 10, 32)
				ln, _ := strconv.ParseUint(lnTok.Literal, 10, 32)
				cl, _ := strconv.ParseUint(colTok.Literal, 10, 32)
				curFile = uint32(fid)
				curLine = uint32(ln)
				curCol = uint32(cl)
			}
			p.skipLine()
			continue
		}
		if b.Terminated {
			// Instructions after a terminator in the same block are a
			// structural error; resync to the next block/brace.
			p.errorf("IO_BAD_FORMAT", "instruction after block terminator")
			p.skipLine()
			continue
		}
		inst, ok := p.parseInstruction()
		if !ok {
			p.skipLine()
			continue
		}
		inst.Loc = ir.SourceLoc{FileID: curFile, Line: curLine, Column: curCol}
		b.Append(inst)
		p.skipLine()
	}
}

// parseInstruction parses `result_binding? opcode operands?`.
func (p *parser) parseInstruction() (*ir.Instruction, bool) {
	var resultName string
	var declType ir.Type
	hasDeclType := false
	bindsResult := false

	if p.cur.Type == PERCENT {
		// Lookahead: "%name =" or "%name: type =" is a result binding;
		// anything else starting with % would be a syntax error at
		// statement position (values never start a statement).
		p.advance()
		nameTok, ok := p.expect(IDENT)
		if !ok {
			return nil, false
		}
		resultName = nameTok.Literal
		if p.cur.Type == COLON {
			p.advance()
			t, ok := p.parseTypeName()
			if !ok {
				return nil, false
			}
			declType = t
			hasDeclType = true
		}
		if _, ok := p.expect(EQUALS); !ok {
			return nil, false
		}
		bindsResult = true
	}

	opTok, ok := p.expect(IDENT)
	if !ok {
		return nil, false
	}
	op, ok := opcode.ByMnemonic(opTok.Literal)
	if !ok {
		p.errorf("IO_BAD_FORMAT", "unknown opcode %q", opTok.Literal)
		return nil, false
	}
	info := opcode.Lookup(op)

	inst := &ir.Instruction{Op: op}
	if hasDeclType {
		inst.Type = declType
	}

	switch {
	case info.ResultArity == opcode.OneResult && !bindsResult:
		p.errorf("sig.missing-result", "%s requires a result binding", info.Mnemonic)
		return nil, false
	case info.ResultArity == opcode.NoResult && bindsResult:
		p.errorf("sig.unexpected-result", "%s does not produce a result", info.Mnemonic)
		return nil, false
	}

	if bindsResult {
		id := p.fn.NextResultID()
		p.fn.SetName(id, resultName)
		inst.HasResult = true
		inst.Result = id
		p.registerTempName(resultName, id)
	}

	if !p.parseOperandsForDescriptors(inst, info) {
		return nil, false
	}
	return inst, true
}

// tempNames maps a per-function temp name to its allocated id; reset every
// parseFunc call via parser.fn switching (stored on the parser because
// instructions reference %name, not raw ids, in the textual form).
func (p *parser) registerTempName(name string, id uint32) {
	if p.tempNames == nil {
		p.tempNames = make(map[string]uint32)
	}
	p.tempNames[name] = id
}

func (p *parser) parseOperandsForDescriptors(inst *ir.Instruction, info opcode.Info) bool {
	first := true
	for _, kind := range info.Parse {
		if kind == opcode.ParseNone {
			continue
		}
		if !first {
			if p.cur.Type != COMMA {
				break
			}
			p.advance()
		}
		first = false

		switch kind {
		case opcode.ParseValue:
			if len(inst.Operands) >= int(info.NumOperandsMin) && (p.cur.Type == NEWLINE || p.cur.Type == EOF) {
				return true
			}
			v, ok := p.parseValue()
			if !ok {
				return false
			}
			inst.Operands = append(inst.Operands, v)
		case opcode.ParseTypeImmediate:
			t, ok := p.parseTypeName()
			if !ok {
				return false
			}
			inst.Type = t
		case opcode.ParseBranchTarget:
			if !p.parseBranchTarget(inst) {
				return false
			}
		case opcode.ParseCall:
			if !p.parseCallOperands(inst) {
				return false
			}
		case opcode.ParseSwitch:
			if !p.parseSwitchCases(inst) {
				return false
			}
		}
	}
	return true
}

func (p *parser) parseBranchTarget(inst *ir.Instruction) bool {
	lbl, ok := p.expect(IDENT)
	if !ok {
		return false
	}
	p.pendingLabels = append(p.pendingLabels, pendingLabel{name: lbl.Literal, line: lbl.Line, col: lbl.Column})
	var args []ir.Value
	if p.cur.Type == LPAREN {
		p.advance()
		for p.cur.Type != RPAREN {
			v, ok := p.parseValue()
			if !ok {
				return false
			}
			args = append(args, v)
			if p.cur.Type == COMMA {
				p.advance()
			} else {
				break
			}
		}
		if _, ok := p.expect(RPAREN); !ok {
			return false
		}
	}
	inst.Labels = append(inst.Labels, lbl.Literal)
	inst.BrArgs = append(inst.BrArgs, args)
	return true
}

func (p *parser) parseCallOperands(inst *ir.Instruction) bool {
	if p.cur.Type == AT {
		p.advance()
		name, ok := p.expect(IDENT)
		if !ok {
			return false
		}
		inst.Callee = name.Literal
	} else {
		v, ok := p.parseValue()
		if !ok {
			return false
		}
		inst.Operands = append(inst.Operands, v)
	}
	if _, ok := p.expect(LPAREN); !ok {
		return false
	}
	for p.cur.Type != RPAREN {
		v, ok := p.parseValue()
		if !ok {
			return false
		}
		inst.Operands = append(inst.Operands, v)
		if p.cur.Type == COMMA {
			p.advance()
		} else {
			break
		}
	}
	_, ok := p.expect(RPAREN)
	return ok
}

// parseSwitchCases parses `default label [, case N label]*`. Labels[0] is
// always the default target; inst.SwitchCases[i] pairs with Labels[i+1].
func (p *parser) parseSwitchCases(inst *ir.Instruction) bool {
	if p.cur.Type != IDENT || p.cur.Literal != "default" {
		p.errorf("IO_BAD_FORMAT", "expected \"default\" in switch.i32")
		return false
	}
	p.advance()
	if !p.parseBranchTarget(inst) {
		return false
	}
	for p.cur.Type == COMMA {
		p.advance()
		if p.cur.Type != IDENT || p.cur.Literal != "case" {
			p.errorf("IO_BAD_FORMAT", "expected \"case\" in switch.i32")
			return false
		}
		p.advance()
		numTok, ok := p.expect(INT)
		if !ok {
			return false
		}
		n, err := strconv.ParseInt(numTok.Literal, 0, 32)
		if err != nil {
			p.errorf("IO_BAD_FORMAT", "bad case value %q: %v", numTok.Literal, err)
			return false
		}
		inst.SwitchCases = append(inst.SwitchCases, int32(n))
		if !p.parseBranchTarget(inst) {
			return false
		}
	}
	return true
}

func (p *parser) parseValue() (ir.Value, bool) {
	switch p.cur.Type {
	case PERCENT:
		p.advance()
		name, ok := p.expect(IDENT)
		if !ok {
			return nil, false
		}
		id, ok := p.tempNames[name.Literal]
		if !ok {
			p.errorf("IO_BAD_FORMAT", "unresolved temporary %%%s", name.Literal)
			return nil, false
		}
		return ir.Temp{ID: id}, true
	case AT:
		p.advance()
		name, ok := p.expect(IDENT)
		if !ok {
			return nil, false
		}
		return ir.GlobalAddr{Name: name.Literal}, true
	case INT:
		lit := p.cur.Literal
		p.advance()
		n, err := strconv.ParseInt(lit, 0, 64)
		if err != nil {
			// Re-try unsigned for values above MaxInt64 (0xFFFFFFFFFFFFFFFF).
			u, uerr := strconv.ParseUint(lit, 0, 64)
			if uerr != nil {
				p.errorf("IO_BAD_FORMAT", "bad integer literal %q: %v", lit, err)
				return nil, false
			}
			n = int64(u)
		}
		return ir.ConstInt{Val: n}, true
	case FLOAT:
		lit := p.cur.Literal
		p.advance()
		f, ok := parseFloatLiteral(lit)
		if !ok {
			p.errorf("IO_BAD_FORMAT", "bad float literal %q", lit)
			return nil, false
		}
		return ir.ConstFloat{Val: f}, true
	case STRING:
		lit := p.cur.Literal
		p.advance()
		return ir.ConstStr{Val: []byte(lit)}, true
	case IDENT:
		switch strings.ToLower(p.cur.Literal) {
		case "true":
			p.advance()
			return ir.ConstBool{Val: true}, true
		case "false":
			p.advance()
			return ir.ConstBool{Val: false}, true
		case "null":
			p.advance()
			return ir.ConstNull{}, true
		case "nan", "inf", "infinity":
			f, _ := parseFloatLiteral(p.cur.Literal)
			p.advance()
			return ir.ConstFloat{Val: f}, true
		}
	}
	p.errorf("IO_BAD_FORMAT", "expected a value, got %s %q", p.cur.Type, p.cur.Literal)
	return nil, false
}

// parseFloatLiteral accepts standard decimal floats, hex-floats
// (0x1.8p3), and case-insensitive nan/inf/infinity spellings.
func parseFloatLiteral(lit string) (float64, bool) {
	lower := strings.ToLower(lit)
	switch lower {
	case "nan", "+nan", "-nan":
		return math.NaN(), true
	case "inf", "+inf", "infinity", "+infinity":
		return math.Inf(1), true
	case "-inf", "-infinity":
		return math.Inf(-1), true
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
