// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package vm

import (
	"fmt"

	"github.com/viper-lang/viper/internal/il/ir"
)

// VmError is a runtime trap: the structured error record spec.md §6.3
// defines, plus the human-readable message the VM formatted for it at the
// moment of the trap (§4.6.7). It satisfies the error interface so
// callFunction and cmd/ilc can treat a trap as an ordinary Go error.
type VmError struct {
	Record  ir.ErrorRecord
	Message string
}

func (e *VmError) Error() string { return e.Message }

// FrameInfo is the execution-context snapshot spec.md §4.6.7 says the VM
// builds on every trap: enough to explain where it happened without
// requiring the caller to still have the live Frame around.
type FrameInfo struct {
	Function         string
	Block            string
	IP               int
	Line             int32
	HandlerInstalled bool
}

func (fi FrameInfo) String() string {
	return fmt.Sprintf("%s@%s#%d", fi.Function, fi.Block, fi.IP)
}

// newTrap builds the VmError for a trap firing at (fr, block, ip) with the
// given kind and detail, matching the one-record-per-trap contract of
// §6.3/§4.6.7. code/data default to zero; callers that have a concrete
// code (e.g. an extern-raised domain trap) may override Record.Code/Data
// afterward.
func (vm *VM) newTrap(fr *Frame, block *ir.BasicBlock, ip int, kind ir.TrapKind, detail string) *VmError {
	var line int32
	if ip < len(block.Instructions) {
		line = int32(block.Instructions[ip].Loc.Line)
	}
	info := FrameInfo{
		Function:         fr.fn.Name,
		Block:            block.Label,
		IP:               ip,
		Line:             line,
		HandlerInstalled: len(fr.ehStack) > 0,
	}
	msg := fmt.Sprintf("trap %s at %s: %s", kind, info, detail)
	return &VmError{
		Record:  ir.ErrorRecord{Kind: kind, IP: uint32(ip), Line: line},
		Message: msg,
	}
}

// LastTrapMessage returns the message of the most recent trap that
// propagated all the way out of Run uncaught, or "" if none has.
// Grounded on spec.md §4.6.7's `lastTrapMessage()`.
func (vm *VM) LastTrapMessage() string {
	if vm.lastTrap == nil {
		return ""
	}
	return vm.lastTrap.Message
}

// LastTrap returns the most recent unhandled VmError, or nil.
func (vm *VM) LastTrap() *VmError { return vm.lastTrap }
