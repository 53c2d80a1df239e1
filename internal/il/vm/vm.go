// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package vm is the register-based interpreter for the IL: it holds the
// flat memory, the extern-ABI host adapter, and the call stack, and
// executes a verified module one instruction at a time via the opcode
// metadata's VMDispatch table (§4.6). Grounded throughout on
// probe-lang/lang/vm's fetch-decode-execute loop, generalized from a
// stack-machine with a fixed register window to an SSA interpreter with
// basic-block arguments and an explicit exception-handler stack.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/viper-lang/viper/internal/il/extern"
	"github.com/viper-lang/viper/internal/il/ir"
	"github.com/viper-lang/viper/internal/source"
)

// VM executes one loaded Module. Construct with New; a VM is not safe for
// concurrent Run calls, matching the core's single-threaded-cooperative
// execution model (spec §5).
type VM struct {
	mod *ir.Module
	cfg Config

	host *runtimeHost
	mem  *memory

	srcMgr *source.Manager
	debug  *DebugCtrl
	trace  *TraceConfig
	tracer opentracing.Tracer
	onHit  func(fr *Frame, blk *ir.BasicBlock, ip int)

	funcByName   map[string]*ir.Function
	externByName map[string]*ir.Extern
	funcTable    []string
	globalAddr   map[string]uint64

	lastTrap *VmError
}

// Option configures a VM at construction time.
type Option func(*VM)

// WithStdout redirects the runtime host's stdout (rt_print_i64 and
// friends) away from os.Stdout.
func WithStdout(w io.Writer) Option { return func(vm *VM) { vm.host.out = w } }

// WithSourceManager supplies a pre-populated source.Manager so trap
// diagnostics and breakpoints resolve against the file ids the frontend
// already assigned, rather than an empty one the VM would otherwise
// construct for itself.
func WithSourceManager(m *source.Manager) Option { return func(vm *VM) { vm.srcMgr = m } }

// WithDebugCtrl overrides the breakpoint controller New would otherwise
// build from cfg.Breakpoints.
func WithDebugCtrl(d *DebugCtrl) Option { return func(vm *VM) { vm.debug = d } }

// WithTraceConfig overrides the tracer New would otherwise build from
// cfg.Trace.
func WithTraceConfig(t *TraceConfig) Option { return func(vm *VM) { vm.trace = t } }

// WithTracer supplies an opentracing.Tracer used to span each function
// call; the default is the global no-op tracer.
func WithTracer(t opentracing.Tracer) Option { return func(vm *VM) { vm.tracer = t } }

// WithBreakHook registers a callback invoked whenever execution stops at a
// breakpoint, letting a CLI driver (cmd/ilc) open an interactive prompt
// without the library layer depending on one.
func WithBreakHook(fn func(fr *Frame, blk *ir.BasicBlock, ip int)) Option {
	return func(vm *VM) { vm.onHit = fn }
}

// New constructs a VM over mod: it builds the runtime host and its backing
// memory, materializes every declared global, and indexes functions and
// externs by name (and, for call.indirect, by a stable function-table
// index assigned in module declaration order — functions first, then
// externs, since the IL has no other notion of how a function pointer
// value is produced).
func New(mod *ir.Module, cfg Config, opts ...Option) (*VM, error) {
	mem := newMemory(cfg.MemoryLimit)
	host := newRuntimeHost(mem, os.Stdout)

	vm := &VM{
		mod:          mod,
		cfg:          cfg,
		host:         host,
		mem:          mem,
		srcMgr:       source.NewManager(),
		tracer:       opentracing.NoopTracer{},
		funcByName:   make(map[string]*ir.Function, len(mod.Functions)),
		externByName: make(map[string]*ir.Extern, len(mod.Externs)),
		globalAddr:   make(map[string]uint64, len(mod.Globals)),
	}
	for _, opt := range opts {
		opt(vm)
	}
	if vm.debug == nil {
		vm.debug = NewDebugCtrl(vm.srcMgr, cfg.Breakpoints)
	}
	if vm.trace == nil {
		vm.trace = NewTraceConfig(cfg.Trace, vm.srcMgr, cfg.ExcerptCache, host.out)
	}

	for _, fn := range mod.Functions {
		if _, dup := vm.funcByName[fn.Name]; dup {
			return nil, fmt.Errorf("vm: duplicate function @%s", fn.Name)
		}
		vm.funcByName[fn.Name] = fn
		vm.funcTable = append(vm.funcTable, fn.Name)
	}
	for _, ext := range mod.Externs {
		vm.externByName[ext.Name] = ext
		vm.funcTable = append(vm.funcTable, ext.Name)
	}

	if err := vm.materializeGlobals(); err != nil {
		return nil, err
	}
	return vm, nil
}

// materializeGlobals allocates backing storage for every module-level
// global, copying in its initializer bytes when it has one and
// zero-filling a Type.Size()-wide slot otherwise, and records the
// resulting address so GlobalAddr operands resolve.
func (vm *VM) materializeGlobals() error {
	for _, g := range vm.mod.Globals {
		size := uint64(len(g.Init))
		if !g.HasInit {
			size = uint64(g.Type.Size())
		}
		addr, err := vm.mem.alloc(size)
		if err != nil {
			return errors.Wrapf(err, "materializing global @%s", g.Name)
		}
		if g.HasInit {
			if err := vm.mem.writeBytes(addr, g.Init); err != nil {
				return errors.Wrapf(err, "initializing global @%s", g.Name)
			}
		}
		vm.globalAddr[g.Name] = addr
	}
	return nil
}

// Run executes entry's function with args bound to its parameters in
// order, returning its `ret` value or the VmError that escaped it
// uncaught.
func (vm *VM) Run(entry string, args ...Value) (Value, error) {
	fn, ok := vm.funcByName[entry]
	if !ok {
		return Value{}, fmt.Errorf("vm: entry function %q not found", entry)
	}
	v, trap := vm.callFunction(fn, args)
	if trap != nil {
		vm.lastTrap = trap
		return Value{}, trap
	}
	return v, nil
}

// callFunction is the fetch-decode-execute loop for one activation of fn:
// it walks instructions within the current block via the dispatch table,
// acting on the outcome each handler reports (continue, jump, return, or
// trap), and threads the exception-handler stack's push/pop/resume
// protocol (§4.6.4) through the outTrap/outResume* cases.
func (vm *VM) callFunction(fn *ir.Function, args []Value) (Value, *VmError) {
	span := vm.tracer.StartSpan(fn.Name)
	defer span.Finish()

	fr := newFrame(fn)
	for i, p := range fn.Params {
		if i < len(args) {
			fr.regs[p.ID] = args[i]
		}
	}
	if len(fn.Blocks) == 0 {
		return Value{}, vm.newTrap(fr, &ir.BasicBlock{Label: "<entry>"}, 0, ir.TrapAssertionFailure, "function @"+fn.Name+" has no blocks")
	}

	blk := fn.Blocks[0]
	ip := 0
	for {
		if ip >= len(blk.Instructions) {
			return Value{}, vm.newTrap(fr, blk, ip, ir.TrapAssertionFailure, "fell off the end of block ^"+blk.Label)
		}
		inst := blk.Instructions[ip]

		if vm.debug.shouldBreak(inst.Loc) {
			if vm.onHit != nil {
				vm.onHit(fr, blk, ip)
			}
		} else if d := vm.debug; d != nil && d.lastHit != nil && *d.lastHit != (hitKey{inst.Loc.FileID, inst.Loc.Line, inst.Loc.Column}) {
			d.resetLastHit()
		}
		vm.trace.emit(fr, blk, ip, inst)

		handler := dispatchTable[inst.Op]
		if handler == nil {
			return Value{}, vm.newTrap(fr, blk, ip, ir.TrapAssertionFailure, fmt.Sprintf("no VM handler for opcode %s", inst.Op))
		}
		out := handler(vm, fr, blk, ip, inst)

		switch out.kind {
		case outContinue:
			ip++

		case outJump:
			next := ir.FindBlock(fn, out.block)
			if next == nil {
				return Value{}, vm.newTrap(fr, blk, ip, ir.TrapAssertionFailure, "branch to unknown block ^"+out.block)
			}
			bindBlockParams(fr, next, out.args)
			blk, ip = next, 0

		case outReturn:
			return out.ret, nil

		case outResumeSame:
			next, nip, err := vm.resumeTarget(fn, fr)
			if err != nil {
				return Value{}, vm.newTrap(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
			}
			blk, ip = next, nip
			fr.resume = nil

		case outResumeNext:
			next, nip, err := vm.resumeTarget(fn, fr)
			if err != nil {
				return Value{}, vm.newTrap(fr, blk, ip, ir.TrapAssertionFailure, err.Error())
			}
			blk, ip = next, nip+1
			fr.resume = nil

		case outTrap:
			handled, nblk, nip := vm.handleTrap(fn, fr, blk, ip, out.trap)
			if !handled {
				return Value{}, out.trap
			}
			blk, ip = nblk, nip
		}
	}
}

func (vm *VM) resumeTarget(fn *ir.Function, fr *Frame) (*ir.BasicBlock, int, error) {
	if fr.resume == nil {
		return nil, 0, fmt.Errorf("vm: resume with no pending trap")
	}
	blk := ir.FindBlock(fn, fr.resume.block)
	if blk == nil {
		return nil, 0, fmt.Errorf("vm: resume target block ^%s no longer exists", fr.resume.block)
	}
	return blk, fr.resume.ip, nil
}

// handleTrap implements §4.6.4's unwind step: find fr's top handler (if
// any, without retiring it — the region's own eh.pop does that, whether
// reached by falling through or by resuming back into it), stash the
// error record where trap.err/err.get can read it, record where the fault
// happened so resume.same/resume.next can jump back, and transfer to the
// handler block. Reports false when there is no handler left to catch it,
// at which point the caller must propagate out.
func (vm *VM) handleTrap(fn *ir.Function, fr *Frame, faultBlk *ir.BasicBlock, faultIP int, trap *VmError) (bool, *ir.BasicBlock, int) {
	label, ok := fr.peekHandler()
	if !ok {
		return false, nil, 0
	}
	target := ir.FindBlock(fn, label)
	if target == nil {
		return false, nil, 0
	}
	fr.curErr = trap.Record
	fr.resume = &pendingResume{block: faultBlk.Label, ip: faultIP}
	return true, target, 0
}

// dispatchCallByName resolves name against both this module's own
// functions (a direct recursive interpreter call) and the extern registry
// (an ABI boundary crossing), matching what `call`/`call.indirect` must
// support per §6.4.
func (vm *VM) dispatchCallByName(name string, args []Value) (Value, error) {
	if fn, ok := vm.funcByName[name]; ok {
		res, trap := vm.callFunction(fn, args)
		if trap != nil {
			return Value{}, trap
		}
		return res, nil
	}

	handler, ok := extern.Lookup(name)
	if !ok {
		return Value{}, fmt.Errorf("vm: call to unknown function %q", name)
	}
	externArgs := make([]extern.Value, len(args))
	for i, a := range args {
		externArgs[i] = marshalToExtern(a)
	}
	res, err := handler(vm.host, externArgs)
	if err != nil {
		return Value{}, err
	}
	return marshalFromExtern(res), nil
}
