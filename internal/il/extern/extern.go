// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package extern is the minimal in-process stand-in for the runtime C ABI
// library spec.md §6.4 treats as an out-of-scope external collaborator.
// The VM resolves `call`/`call.indirect` targets against this package's
// registry by name; the VM itself never interprets what an extern does,
// it only marshals Values across the boundary (§6.4's "the VM does not
// know the semantics of these externs").
//
// Array helpers here generalize probe-lang/stdlib/math/math.go's
// U64Array (typed-array map/zip/reduce) from an array-programming
// library into the fixed rt_arr_i32/i64/str/obj get/set ABI shape §6.4
// names; string and object helpers model the refcounted-handle contract
// §9 describes ("retain/release emissions are the frontend's
// responsibility, not the VM's").
package extern

import (
	"fmt"
	"io"
)

// Kind tags a Value's active field, mirroring the four runtime-visible
// shapes the ABI boundary carries (§6.4: "pointers for Str/Ptr, raw
// 64-bit for integers/floats").
type Kind uint8

const (
	KindInt Kind = iota
	KindFloat
	KindPtr    // opaque machine-word address, or a string/object handle
	KindVoid
)

// Value is one argument or return value crossing the extern boundary.
type Value struct {
	Kind Kind
	I    int64
	F    float64
	U    uint64
}

func Int(v int64) Value   { return Value{Kind: KindInt, I: v} }
func Float(v float64) Value { return Value{Kind: KindFloat, F: v} }
func Ptr(v uint64) Value   { return Value{Kind: KindPtr, U: v} }
func Void() Value          { return Value{Kind: KindVoid} }

// StrHandle is a refcounted runtime string, the concrete thing a Str
// Type's VM-visible handle (a uint64 in a Value's U field) resolves to.
type StrHandle struct {
	Bytes []byte
	Refs  int32
}

// ObjHandle is a refcounted runtime object: a class id and its boxed
// field slots, backing the rt_obj_*/rt_register_class_* surface.
type ObjHandle struct {
	ClassID uint32
	Fields  []int64
	Refs    int32
}

// TypedArray backs rt_arr_i32/i64/str/obj_{get,put}: a homogeneous,
// bounds-checked slot array keyed by its own handle, the fixed-ABI
// descendant of probe-lang/stdlib/math.U64Array.
type TypedArray struct {
	Elem ArrayElem
	Data []int64    // i32/i64 elements, or string/object handles
	F64  []float64  // used only when Elem == ArrayF64
}

// ArrayElem names a TypedArray's element kind.
type ArrayElem uint8

const (
	ArrayI32 ArrayElem = iota
	ArrayI64
	ArrayF64
	ArrayStr
	ArrayObj
)

// Host is the interface the VM implements so extern handlers can read
// and write VM-owned state: allocator-backed memory, the string/object
// handle tables, typed arrays, class metadata, and stdout. Handlers
// never reach into VM internals directly; Host is the entire seam.
type Host interface {
	ReadBytes(ptr uint64, n int) ([]byte, error)
	WriteBytes(ptr uint64, data []byte) error
	Alloc(n int) (uint64, error)

	NewString(b []byte) uint64
	String(handle uint64) (*StrHandle, bool)
	RetainString(handle uint64)
	ReleaseString(handle uint64) bool // true if this release freed it

	NewArray(elem ArrayElem, length int) uint64
	Array(handle uint64) (*TypedArray, bool)

	NewObject(classID uint32, nfields int) uint64
	Object(handle uint64) (*ObjHandle, bool)
	RetainObject(handle uint64)
	ReleaseObject(handle uint64) bool
	ForceFreeObject(handle uint64)

	RegisterClass(name string, baseID uint32) uint32
	RegisterInterfaceImpl(ifaceID, classID uint32)
	ClassVTable(classID uint32) uint64
	TypeIDOf(handle uint64) uint32
	TypeIsA(typeID, ancestorID uint32) bool

	Stdout() io.Writer
}

// Func is one extern handler: it receives the VM as a Host and the
// already-marshaled argument list, and returns the (possibly void)
// result or an error that the VM's call dispatch turns into a trap.
type Func func(h Host, args []Value) (Value, error)

var table = map[string]Func{}

// register stores fn under every name in names, letting one handler back
// more than one ABI spelling (spec.md §9's open question: "the source
// shows two spellings for some runtime helpers ... treat both as
// equivalent at the extern layer").
func register(fn Func, names ...string) {
	for _, n := range names {
		table[n] = fn
	}
}

// Lookup resolves an extern call's callee name to its handler.
func Lookup(name string) (Func, bool) {
	fn, ok := table[name]
	return fn, ok
}

func argErr(name string, want, got int) error {
	return fmt.Errorf("extern %s: expected %d argument(s), got %d", name, want, got)
}

func init() {
	registerStringABI()
	registerArrayABI()
	registerObjectABI()
	registerIOConvertABI()
}

// ---- String ABI -------------------------------------------------------

func registerStringABI() {
	register(func(h Host, args []Value) (Value, error) {
		if len(args) != 2 {
			return Value{}, argErr("rt_str_from_bytes", 2, len(args))
		}
		b, err := h.ReadBytes(args[0].U, int(args[1].I))
		if err != nil {
			return Value{}, err
		}
		return Ptr(h.NewString(b)), nil
	}, "rt_str_from_bytes")

	register(func(h Host, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, argErr("rt_str_retain_maybe", 1, len(args))
		}
		h.RetainString(args[0].U)
		return Void(), nil
	}, "rt_str_retain_maybe")

	register(func(h Host, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, argErr("rt_str_release_maybe", 1, len(args))
		}
		h.ReleaseString(args[0].U)
		return Void(), nil
	}, "rt_str_release_maybe")

	register(func(h Host, args []Value) (Value, error) {
		if len(args) != 2 {
			return Value{}, argErr("rt_str_concat", 2, len(args))
		}
		a, aok := h.String(args[0].U)
		b, bok := h.String(args[1].U)
		if !aok || !bok {
			return Value{}, fmt.Errorf("rt_str_concat: invalid string handle")
		}
		out := make([]byte, 0, len(a.Bytes)+len(b.Bytes))
		out = append(out, a.Bytes...)
		out = append(out, b.Bytes...)
		return Ptr(h.NewString(out)), nil
	}, "rt_str_concat")

	register(func(h Host, args []Value) (Value, error) {
		if len(args) != 2 {
			return Value{}, argErr("rt_str_eq", 2, len(args))
		}
		a, aok := h.String(args[0].U)
		b, bok := h.String(args[1].U)
		if !aok || !bok {
			return Int(0), nil
		}
		if string(a.Bytes) == string(b.Bytes) {
			return Int(1), nil
		}
		return Int(0), nil
	}, "rt_str_eq")

	strLen := func(h Host, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, argErr("Viper.Strings.Len", 1, len(args))
		}
		s, ok := h.String(args[0].U)
		if !ok {
			return Value{}, fmt.Errorf("Viper.Strings.Len: invalid string handle")
		}
		return Int(int64(len(s.Bytes))), nil
	}
	register(strLen, "Viper.Strings.Len", "Viper.String.get_Length")

	register(func(h Host, args []Value) (Value, error) {
		if len(args) != 3 {
			return Value{}, argErr("Viper.String.Substring", 3, len(args))
		}
		s, ok := h.String(args[0].U)
		if !ok {
			return Value{}, fmt.Errorf("Viper.String.Substring: invalid string handle")
		}
		start, length := int(args[1].I), int(args[2].I)
		if start < 0 || length < 0 || start+length > len(s.Bytes) {
			return Value{}, fmt.Errorf("Viper.String.Substring: range [%d:%d+%d] out of bounds (len %d)", start, start, length, len(s.Bytes))
		}
		out := make([]byte, length)
		copy(out, s.Bytes[start:start+length])
		return Ptr(h.NewString(out)), nil
	}, "Viper.String.Substring")
}

// ---- Array ABI ----------------------------------------------------------

func arraySet(elem ArrayElem, name string) Func {
	return func(h Host, args []Value) (Value, error) {
		if len(args) != 3 {
			return Value{}, argErr(name, 3, len(args))
		}
		arr, ok := h.Array(args[0].U)
		if !ok || arr.Elem != elem {
			return Value{}, fmt.Errorf("%s: invalid array handle", name)
		}
		idx := int(args[1].I)
		if err := rtIdxChk(idx, len(arr.Data)); err != nil {
			return Value{}, err
		}
		if elem == ArrayF64 {
			arr.F64[idx] = args[2].F
		} else {
			arr.Data[idx] = args[2].I
		}
		return Void(), nil
	}
}

func arrayGet(elem ArrayElem, name string) Func {
	return func(h Host, args []Value) (Value, error) {
		if len(args) != 2 {
			return Value{}, argErr(name, 2, len(args))
		}
		arr, ok := h.Array(args[0].U)
		if !ok || arr.Elem != elem {
			return Value{}, fmt.Errorf("%s: invalid array handle", name)
		}
		idx := int(args[1].I)
		if err := rtIdxChk(idx, len(arr.Data)); err != nil {
			return Value{}, err
		}
		if elem == ArrayF64 {
			return Float(arr.F64[idx]), nil
		}
		if elem == ArrayStr || elem == ArrayObj {
			return Ptr(uint64(arr.Data[idx])), nil
		}
		return Int(arr.Data[idx]), nil
	}
}

func registerArrayABI() {
	register(arraySet(ArrayI32, "rt_arr_i32_set"), "rt_arr_i32_set")
	register(arrayGet(ArrayI32, "rt_arr_i32_get"), "rt_arr_i32_get")
	register(arraySet(ArrayI64, "rt_arr_i64_set"), "rt_arr_i64_set")
	register(arrayGet(ArrayI64, "rt_arr_i64_get"), "rt_arr_i64_get")
	register(arraySet(ArrayStr, "rt_arr_str_put"), "rt_arr_str_put")
	register(arrayGet(ArrayStr, "rt_arr_str_get"), "rt_arr_str_get")
	register(arraySet(ArrayObj, "rt_arr_obj_put"), "rt_arr_obj_put")
	register(arrayGet(ArrayObj, "rt_arr_obj_get"), "rt_arr_obj_get")

	register(func(h Host, args []Value) (Value, error) {
		if len(args) != 2 {
			return Value{}, argErr("rt_idx_chk", 2, len(args))
		}
		idx, length := int(args[0].I), int(args[1].I)
		if err := rtIdxChk(idx, length); err != nil {
			return Value{}, err
		}
		return Int(int64(idx)), nil
	}, "rt_idx_chk")
}

// rtIdxChk centralizes the bounds test every rt_arr_*/rt_idx_chk handler
// performs, so the Bounds trap condition has exactly one definition.
func rtIdxChk(idx, length int) error {
	if idx < 0 || idx >= length {
		return fmt.Errorf("rt_idx_chk: index %d out of bounds for length %d", idx, length)
	}
	return nil
}

// ---- Object/class ABI ----------------------------------------------------

func registerObjectABI() {
	register(func(h Host, args []Value) (Value, error) {
		if len(args) != 2 {
			return Value{}, argErr("rt_obj_new_i64", 2, len(args))
		}
		return Ptr(h.NewObject(uint32(args[0].I), int(args[1].I))), nil
	}, "rt_obj_new_i64")

	register(func(h Host, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, argErr("rt_obj_retain_maybe", 1, len(args))
		}
		h.RetainObject(args[0].U)
		return Void(), nil
	}, "rt_obj_retain_maybe")

	register(func(h Host, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, argErr("rt_obj_release_check0", 1, len(args))
		}
		freed := h.ReleaseObject(args[0].U)
		if freed {
			return Int(1), nil
		}
		return Int(0), nil
	}, "rt_obj_release_check0")

	register(func(h Host, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, argErr("rt_obj_free", 1, len(args))
		}
		// Unlike rt_obj_release_check0, rt_obj_free bypasses the refcount
		// and frees immediately regardless of outstanding references.
		h.ForceFreeObject(args[0].U)
		return Void(), nil
	}, "rt_obj_free")

	register(func(h Host, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, argErr("rt_get_class_vtable", 1, len(args))
		}
		return Ptr(h.ClassVTable(uint32(args[0].I))), nil
	}, "rt_get_class_vtable")

	register(func(h Host, args []Value) (Value, error) {
		if len(args) != 2 {
			return Value{}, argErr("rt_register_class_with_base_rs", 2, len(args))
		}
		return Int(int64(h.RegisterClass(fmt.Sprintf("class#%d", args[0].I), uint32(args[1].I)))), nil
	}, "rt_register_class_with_base_rs")

	register(func(h Host, args []Value) (Value, error) {
		if len(args) != 2 {
			return Value{}, argErr("rt_register_interface_impl", 2, len(args))
		}
		h.RegisterInterfaceImpl(uint32(args[0].I), uint32(args[1].I))
		return Void(), nil
	}, "rt_register_interface_impl", "rt_register_interface_direct")

	register(func(h Host, args []Value) (Value, error) {
		if len(args) != 2 {
			return Value{}, argErr("rt_cast_as", 2, len(args))
		}
		typeID := h.TypeIDOf(args[0].U)
		if h.TypeIsA(typeID, uint32(args[1].I)) {
			return Ptr(args[0].U), nil
		}
		return Ptr(0), nil
	}, "rt_cast_as")

	register(func(h Host, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, argErr("rt_typeid_of", 1, len(args))
		}
		return Int(int64(h.TypeIDOf(args[0].U))), nil
	}, "rt_typeid_of")

	register(func(h Host, args []Value) (Value, error) {
		if len(args) != 2 {
			return Value{}, argErr("rt_type_is_a", 2, len(args))
		}
		if h.TypeIsA(uint32(args[0].I), uint32(args[1].I)) {
			return Int(1), nil
		}
		return Int(0), nil
	}, "rt_type_is_a")
}

// ---- I/O & conversion ABI ------------------------------------------------

func registerIOConvertABI() {
	printI64 := func(h Host, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, argErr("rt_print_i64", 1, len(args))
		}
		fmt.Fprintf(h.Stdout(), "%d\n", args[0].I)
		return Void(), nil
	}
	register(printI64, "rt_print_i64", "Viper.Console.PrintI64")

	toDouble := func(h Host, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, argErr("rt_to_double", 1, len(args))
		}
		return Float(float64(args[0].I)), nil
	}
	register(toDouble, "rt_to_double", "Viper.Convert.ToDouble")

	toInt := func(h Host, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, argErr("rt_to_int", 1, len(args))
		}
		return Int(int64(args[0].F)), nil
	}
	register(toInt, "rt_to_int", "Viper.Core.Convert.ToInt")
}
