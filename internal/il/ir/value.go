// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package ir

import "fmt"

// Value is one of the operand kinds an instruction may reference: a
// previously computed SSA temporary, an inline literal, or a reference to
// a module-level global/extern symbol. Callers match on the concrete type
// with a type switch — there is deliberately no virtual "Eval" method on
// the interface, so adding a new case to a consumer (the VM's
// read_operand, the printer, the verifier) can't silently miss a variant
// the way an interface method automatically would.
type Value interface {
	isValue()
	String() string
}

// Temp is a numbered SSA result, unique per function.
type Temp struct{ ID uint32 }

func (Temp) isValue()          {}
func (t Temp) String() string  { return fmt.Sprintf("%%%d", t.ID) }

// ConstInt is a literal of kind I1/I16/I32/I64 (the kind is carried by
// the instruction's operand-type constraint, not the Value itself).
type ConstInt struct{ Val int64 }

func (ConstInt) isValue()         {}
func (c ConstInt) String() string { return fmt.Sprintf("%d", c.Val) }

// ConstFloat is an F64 literal.
type ConstFloat struct{ Val float64 }

func (ConstFloat) isValue()         {}
func (c ConstFloat) String() string { return fmt.Sprintf("%g", c.Val) }

// ConstBool is an I1 literal spelled true/false in the textual form.
type ConstBool struct{ Val bool }

func (ConstBool) isValue()         {}
func (c ConstBool) String() string { return fmt.Sprintf("%t", c.Val) }

// ConstStr is an owned string literal materialized by const.str.
type ConstStr struct{ Val []byte }

func (ConstStr) isValue()         {}
func (c ConstStr) String() string { return fmt.Sprintf("%q", c.Val) }

// ConstNull is the null pointer literal.
type ConstNull struct{}

func (ConstNull) isValue()         {}
func (ConstNull) String() string   { return "null" }

// GlobalAddr references a named global or external symbol by name.
type GlobalAddr struct{ Name string }

func (GlobalAddr) isValue()         {}
func (g GlobalAddr) String() string { return "@" + g.Name }
