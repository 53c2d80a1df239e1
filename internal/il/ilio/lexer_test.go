// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package ilio

import "testing"

func TestLexerBasicTokens(t *testing.T) {
	l := newLexer("%x: i32 = add %y, 1\n")
	want := []TokType{PERCENT, IDENT, COLON, IDENT, EQUALS, IDENT, PERCENT, IDENT, COMMA, INT, NEWLINE, EOF}
	for i, w := range want {
		tok := l.next()
		if tok.Type != w {
			t.Fatalf("token %d: got %s, want %s", i, tok.Type, w)
		}
	}
}

func TestLexerSkipsCommentsAndTrailingWhitespace(t *testing.T) {
	l := newLexer("  ; a comment\nbr foo\n")
	tok := l.next()
	if tok.Type != NEWLINE {
		t.Fatalf("got %s, want NEWLINE after comment-only line", tok.Type)
	}
	tok = l.next()
	if tok.Type != IDENT || tok.Literal != "br" {
		t.Fatalf("got %v, want IDENT br", tok)
	}
}

func TestLexerStringEscapes(t *testing.T) {
	l := newLexer(`"a\nb\tc\x41\"d"`)
	tok := l.next()
	if tok.Type != STRING {
		t.Fatalf("got %s, want STRING", tok.Type)
	}
	if tok.Literal != "a\nb\tcA\"d" {
		t.Fatalf("got %q", tok.Literal)
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	l := newLexer(`"abc`)
	tok := l.next()
	if tok.Type != ILLEGAL {
		t.Fatalf("got %s, want ILLEGAL", tok.Type)
	}
}

func TestLexerNumbers(t *testing.T) {
	cases := []struct {
		src  string
		typ  TokType
		want string
	}{
		{"0x1F", INT, "0x1F"},
		{"0b101", INT, "0b101"},
		{"-42", INT, "-42"},
		{"3.14", FLOAT, "3.14"},
		{"1e10", FLOAT, "1e10"},
		{"0x1.8p3", FLOAT, "0x1.8p3"},
	}
	for _, c := range cases {
		l := newLexer(c.src)
		tok := l.next()
		if tok.Type != c.typ || tok.Literal != c.want {
			t.Errorf("lex(%q) = %v, want {%s %q}", c.src, tok, c.typ, c.want)
		}
	}
}

func TestLexerDirective(t *testing.T) {
	l := newLexer(".loc 1 2 3")
	tok := l.next()
	if tok.Type != DIRECTIVE || tok.Literal != "loc" {
		t.Fatalf("got %v, want DIRECTIVE loc", tok)
	}
}
