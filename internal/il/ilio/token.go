// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package ilio is the textual form of the IL: a lexer, a recursive-descent
// parser producing an ir.Module plus collected diagnostics, and a printer
// that serializes a Module back to text such that parse(print(m)) == m up
// to whitespace/comment normalization.
package ilio

import "fmt"

// TokType is the set of lexical token kinds for the textual IL grammar
// (spec.md §4.3.1). This is a separate, purpose-built token set from any
// source-language frontend's lexer — the IL's grammar is its own small,
// regular language of opcodes, registers, and punctuation.
type TokType int

const (
	ILLEGAL TokType = iota
	EOF
	NEWLINE

	IDENT     // bare word: keywords, type names, opcode mnemonics
	DIRECTIVE // ".loc"
	INT       // 42, -7, 0x2a, 0b101
	FLOAT     // 3.5, -1.0, 0x1.8p3 (nan/inf lex as IDENT)
	STRING    // "..."

	PERCENT // %
	AT      // @
	LPAREN  // (
	RPAREN  // )
	LBRACE  // {
	RBRACE  // }
	COLON   // :
	COMMA   // ,
	ARROW   // ->
	EQUALS  // =
)

var tokNames = [...]string{
	ILLEGAL: "ILLEGAL", EOF: "EOF", NEWLINE: "NEWLINE",
	IDENT: "IDENT", DIRECTIVE: "DIRECTIVE", INT: "INT", FLOAT: "FLOAT", STRING: "STRING",
	PERCENT: "%", AT: "@", LPAREN: "(", RPAREN: ")", LBRACE: "{", RBRACE: "}",
	COLON: ":", COMMA: ",", ARROW: "->", EQUALS: "=",
}

func (t TokType) String() string {
	if int(t) < len(tokNames) && tokNames[t] != "" {
		return tokNames[t]
	}
	return fmt.Sprintf("tok(%d)", t)
}

// Token is one lexical token with its source position.
type Token struct {
	Type    TokType
	Literal string
	Line    uint32
	Column  uint32
}
