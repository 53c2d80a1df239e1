// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package diag defines the structured diagnostic type shared by the lexer,
// parser, verifier, and CLI drivers.
//
// This generalizes the teacher parser's ad hoc `p.errors []error`
// accumulation (probe-lang/lang/parser/parser.go) into the batched,
// severity-tagged, sortable type spec.md §7 requires.
package diag

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
)

// Severity classifies a Diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
	Note
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Note:
		return "note"
	default:
		return "unknown"
	}
}

// color returns the fatih/color function used to render this severity on a
// terminal. Colorization is a no-op when color.NoColor is set (e.g. when
// stderr is not a tty; cmd/il-verify detects this via mattn/go-isatty).
func (s Severity) color() func(string, ...interface{}) string {
	switch s {
	case Error:
		return color.New(color.FgRed, color.Bold).SprintfFunc()
	case Warning:
		return color.New(color.FgYellow, color.Bold).SprintfFunc()
	default:
		return color.New(color.FgCyan).SprintfFunc()
	}
}

// Location pinpoints a diagnostic either by source position or by
// block/instruction index within a function body (verifier diagnostics use
// the latter per spec.md §4.4.1; parser diagnostics use the former).
type Location struct {
	File   string
	Line   uint32
	Column uint32

	// Block/Instr are set instead of File/Line/Column for verifier
	// diagnostics that are not yet resolved to a source position.
	HasBlockInstr bool
	Block         int
	Instr         int
}

func (l Location) String() string {
	if l.HasBlockInstr && l.File == "" {
		return fmt.Sprintf("block %d, instr %d", l.Block, l.Instr)
	}
	if l.File == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Diagnostic is a single located, coded, severity-tagged message.
type Diagnostic struct {
	Severity Severity
	Code     string // e.g. "sig.operand-count", "eh.stack.leak", "IO_BAD_FORMAT"
	Location Location
	Message  string
	Notes    []string

	// SourceLine, when non-empty, is echoed below the message with a caret
	// underline at Location.Column (spec.md §7).
	SourceLine string
}

// String renders the one-line `file:line:column: severity[code]: message`
// form from spec.md §7, plus an optional source-line/caret echo.
func (d Diagnostic) String() string {
	s := fmt.Sprintf("%s: %s[%s]: %s", d.Location, d.Severity, d.Code, d.Message)
	if d.SourceLine != "" {
		caret := ""
		for i := uint32(1); i < d.Location.Column; i++ {
			caret += " "
		}
		caret += "^"
		s += fmt.Sprintf("\n  %s\n  %s", d.SourceLine, caret)
	}
	for _, n := range d.Notes {
		s += fmt.Sprintf("\n  note: %s", n)
	}
	return s
}

// Colored renders String's output with severity-appropriate ANSI color.
func (d Diagnostic) Colored() string {
	paint := d.Severity.color()
	head := paint("%s[%s]", d.Severity, d.Code)
	s := fmt.Sprintf("%s: %s: %s", d.Location, head, d.Message)
	if d.SourceLine != "" {
		caret := ""
		for i := uint32(1); i < d.Location.Column; i++ {
			caret += " "
		}
		caret += paint("^")
		s += fmt.Sprintf("\n  %s\n  %s", d.SourceLine, caret)
	}
	for _, n := range d.Notes {
		s += fmt.Sprintf("\n  note: %s", n)
	}
	return s
}

// Sink collects diagnostics during a single parse or verify pass and
// returns them in a single batch (spec.md §4.4.5): callers report every
// diagnostic, never just the first.
type Sink struct {
	diags []Diagnostic
}

// Add appends d to the sink.
func (s *Sink) Add(d Diagnostic) { s.diags = append(s.diags, d) }

// Errorf is a convenience that appends an Error-severity Diagnostic.
func (s *Sink) Errorf(loc Location, code, format string, args ...interface{}) {
	s.Add(Diagnostic{Severity: Error, Code: code, Location: loc, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any Error-severity diagnostic was collected.
func (s *Sink) HasErrors() bool {
	for _, d := range s.diags {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Diagnostics returns all collected diagnostics sorted by
// (block_index, instr_index) when present, else by (file, line, column),
// matching spec.md §4.4.5's ordering contract.
func (s *Sink) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(s.diags))
	copy(out, s.diags)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Location, out[j].Location
		if a.HasBlockInstr && b.HasBlockInstr {
			if a.Block != b.Block {
				return a.Block < b.Block
			}
			return a.Instr < b.Instr
		}
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	return out
}
