// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package ir

import "fmt"

// TrapKind enumerates the runtime trap taxonomy from spec.md §7. It backs
// the `trap <kind>` instruction's I16 operand and the 16-byte error record
// (§6.3) `kind` field trap.from_err/err.get/trap.kind.read operate on.
type TrapKind uint16

const (
	TrapOverflow TrapKind = iota
	TrapDivideByZero
	TrapBounds
	TrapInvalidCast
	TrapNullDereference
	TrapUnhandledError
	TrapAssertionFailure
	TrapDomain // domain-specific codes raised by runtime externs
)

var trapKindNames = [...]string{
	TrapOverflow:         "Overflow",
	TrapDivideByZero:     "DivideByZero",
	TrapBounds:           "Bounds",
	TrapInvalidCast:      "InvalidCast",
	TrapNullDereference:  "NullDereference",
	TrapUnhandledError:   "UnhandledError",
	TrapAssertionFailure: "AssertionFailure",
	TrapDomain:           "Domain",
}

func (k TrapKind) String() string {
	if int(k) < len(trapKindNames) {
		return trapKindNames[k]
	}
	return fmt.Sprintf("trap(%d)", k)
}

var trapKindByName map[string]TrapKind

func init() {
	trapKindByName = make(map[string]TrapKind, len(trapKindNames))
	for i, n := range trapKindNames {
		trapKindByName[n] = TrapKind(i)
	}
}

// TrapKindByName resolves a textual trap-kind name used in the IL's
// `trap <kind>` instruction.
func TrapKindByName(name string) (TrapKind, bool) {
	k, ok := trapKindByName[name]
	return k, ok
}

// ErrorRecord is the 16-byte structured value a trap.from_err/err.get
// instruction produces or consumes (spec.md §6.3).
type ErrorRecord struct {
	Kind TrapKind
	Code uint16
	IP   uint32
	Line int32
	Data uint32
}
