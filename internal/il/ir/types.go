// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package ir defines the typed SSA intermediate representation: Type,
// Value, Module, Function, BasicBlock, and Instruction, plus the builder
// API frontends use to construct a well-formed Module incrementally.
package ir

import "fmt"

// Type is every value and instruction-result type the IL knows about.
type Type uint8

const (
	Void Type = iota
	I1
	I16
	I32
	I64
	F64
	Ptr
	Str
	Error
	ResumeTok
)

var typeNames = [...]string{
	Void: "void", I1: "i1", I16: "i16", I32: "i32", I64: "i64",
	F64: "f64", Ptr: "ptr", Str: "str", Error: "error", ResumeTok: "resume_tok",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", t)
}

// Size reports the in-memory width of t in bytes, used by the VM's alloca
// and load/store handlers. ResumeTok and Error are handled specially by
// the VM (a token and a 16-byte record respectively) and never loaded or
// stored as raw memory, but report a width for completeness.
func (t Type) Size() int {
	switch t {
	case Void:
		return 0
	case I1:
		return 1
	case I16:
		return 2
	case I32:
		return 4
	case I64, F64, Ptr, Str:
		return 8
	case Error:
		return 16
	case ResumeTok:
		return 8
	default:
		return 0
	}
}
