// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package vm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/olekukonko/tablewriter"
	"github.com/peterh/liner"

	"github.com/viper-lang/viper/internal/il/ir"
	"github.com/viper-lang/viper/internal/source"
)

// breakpoint is one line breakpoint: a path needle resolved through
// source.Manager.MatchesPath (directory-qualified needles match the full
// path, bare basenames match on basename alone, per §4.6.6) plus the line.
type breakpoint struct {
	needle string
	line   uint32
}

// hitKey identifies one physical stop so a breakpoint that is hit by more
// than one consecutive instruction at the same source location (file,
// line and column) coalesces into a single debugger stop (§4.6.6's golden
// scenario 5).
type hitKey struct {
	file, line, column uint32
}

// DebugCtrl tracks breakpoints and the last line the VM stopped on, and
// optionally drives an interactive liner REPL when a breakpoint fires.
type DebugCtrl struct {
	srcMgr      *source.Manager
	enabled     bool
	breakpoints []breakpoint
	lastHit     *hitKey
	repl        *liner.State
}

// NewDebugCtrl parses needles of the form "path:line" into breakpoints. A
// needle with no colon, or whose line part is not a number, is ignored.
func NewDebugCtrl(srcMgr *source.Manager, needles []string) *DebugCtrl {
	d := &DebugCtrl{srcMgr: srcMgr, enabled: len(needles) > 0}
	for _, n := range needles {
		idx := strings.LastIndex(n, ":")
		if idx < 0 {
			continue
		}
		line, err := strconv.Atoi(n[idx+1:])
		if err != nil {
			continue
		}
		d.breakpoints = append(d.breakpoints, breakpoint{needle: n[:idx], line: uint32(line)})
	}
	return d
}

// shouldBreak reports whether loc hits a registered breakpoint that hasn't
// already fired for this exact (file, line, column) since the last
// resetLastHit.
func (d *DebugCtrl) shouldBreak(loc ir.SourceLoc) bool {
	if d == nil || !d.enabled {
		return false
	}
	for _, bp := range d.breakpoints {
		if bp.line != loc.Line || !d.srcMgr.MatchesPath(loc.FileID, bp.needle) {
			continue
		}
		key := hitKey{loc.FileID, loc.Line, loc.Column}
		if d.lastHit != nil && *d.lastHit == key {
			return false
		}
		d.lastHit = &key
		return true
	}
	return false
}

// resetLastHit clears hit-suppression, letting the next pass over the same
// line stop again (e.g. a loop body revisiting a breakpointed line).
func (d *DebugCtrl) resetLastHit() {
	if d != nil {
		d.lastHit = nil
	}
}

// prompt opens (once) an interactive liner session and reads one command
// line. cmd/ilc's break hook does not call it: it prints a frame dump and
// lets execution continue.
func (d *DebugCtrl) prompt(p string) (string, error) {
	if d.repl == nil {
		d.repl = liner.NewLiner()
	}
	return d.repl.Prompt(p)
}

func (d *DebugCtrl) close() {
	if d != nil && d.repl != nil {
		d.repl.Close()
	}
}

// TraceConfig renders the per-instruction trace spec.md §4.6.6 describes in
// two forms: IL (opcode-level) and SRC (source-excerpt-level, caching
// excerpts via an LRU so a hot loop doesn't re-read its file every
// iteration).
type TraceConfig struct {
	mode     TraceMode
	srcMgr   *source.Manager
	excerpts *lru.Cache
	out      io.Writer
}

// NewTraceConfig builds a TraceConfig with an excerpt cache sized
// cacheLines entries (0 or less selects 64 entries).
func NewTraceConfig(mode TraceMode, srcMgr *source.Manager, cacheLines int, out io.Writer) *TraceConfig {
	if cacheLines <= 0 {
		cacheLines = 64
	}
	cache, _ := lru.New(cacheLines)
	if out == nil {
		out = os.Stderr
	}
	return &TraceConfig{mode: mode, srcMgr: srcMgr, excerpts: cache, out: out}
}

func (t *TraceConfig) emit(fr *Frame, blk *ir.BasicBlock, ip int, inst *ir.Instruction) {
	if t == nil || t.mode == TraceOff {
		return
	}
	switch t.mode {
	case TraceIL:
		fmt.Fprintf(t.out, "[IL] fn=@%s blk=%s ip=#%d op=%s\n", fr.fn.Name, blk.Label, ip, inst.Op)
	case TraceSrc:
		path := t.srcMgr.Path(inst.Loc.FileID)
		excerpt := t.excerptFor(inst.Loc)
		fmt.Fprintf(t.out, "[SRC] %s:%d:%d (%s) %s\n", path, inst.Loc.Line, inst.Loc.Column, inst.Op, excerpt)
	}
}

func (t *TraceConfig) excerptFor(loc ir.SourceLoc) string {
	key := fmt.Sprintf("%d:%d", loc.FileID, loc.Line)
	if v, ok := t.excerpts.Get(key); ok {
		return v.(string)
	}
	excerpt := readLine(t.srcMgr.Path(loc.FileID), int(loc.Line))
	t.excerpts.Add(key, excerpt)
	return excerpt
}

// readLine best-effort reads the n'th (1-based) line of path, returning ""
// on any error: a missing or unreadable source file must never abort a
// trace, only degrade it.
func readLine(path string, n int) string {
	if path == "" || n <= 0 {
		return ""
	}
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for i := 1; scanner.Scan(); i++ {
		if i == n {
			return strings.TrimSpace(scanner.Text())
		}
	}
	return ""
}

// DumpFrame renders fr's register file as a table, the debugger's
// "inspect locals" view.
func DumpFrame(w io.Writer, fr *Frame) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"reg", "int", "float"})
	ids := make([]int, 0, len(fr.regs))
	for id := range fr.regs {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	for _, id := range ids {
		v := fr.regs[uint32(id)]
		table.Append([]string{fmt.Sprintf("%%%d", id), fmt.Sprintf("%d", v.I), fmt.Sprintf("%g", v.F)})
	}
	table.Render()
}
