// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package extern

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeHost is a minimal in-memory Host used to exercise the extern
// registry without a real VM.
type fakeHost struct {
	mem     []byte
	strs    map[uint64]*StrHandle
	arrs    map[uint64]*TypedArray
	objs    map[uint64]*ObjHandle
	classes map[uint32]uint64
	nextID  uint64
	out     bytes.Buffer
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		mem:     make([]byte, 4096),
		strs:    make(map[uint64]*StrHandle),
		arrs:    make(map[uint64]*TypedArray),
		objs:    make(map[uint64]*ObjHandle),
		classes: make(map[uint32]uint64),
		nextID:  1,
	}
}

func (h *fakeHost) ReadBytes(ptr uint64, n int) ([]byte, error) {
	return append([]byte{}, h.mem[ptr:ptr+uint64(n)]...), nil
}
func (h *fakeHost) WriteBytes(ptr uint64, data []byte) error {
	copy(h.mem[ptr:], data)
	return nil
}
func (h *fakeHost) Alloc(n int) (uint64, error) { return 0, nil }

func (h *fakeHost) NewString(b []byte) uint64 {
	id := h.nextID
	h.nextID++
	h.strs[id] = &StrHandle{Bytes: b, Refs: 1}
	return id
}
func (h *fakeHost) String(id uint64) (*StrHandle, bool) { s, ok := h.strs[id]; return s, ok }
func (h *fakeHost) RetainString(id uint64) {
	if s, ok := h.strs[id]; ok {
		s.Refs++
	}
}
func (h *fakeHost) ReleaseString(id uint64) bool {
	s, ok := h.strs[id]
	if !ok {
		return false
	}
	s.Refs--
	if s.Refs <= 0 {
		delete(h.strs, id)
		return true
	}
	return false
}

func (h *fakeHost) NewArray(elem ArrayElem, length int) uint64 {
	id := h.nextID
	h.nextID++
	a := &TypedArray{Elem: elem, Data: make([]int64, length)}
	if elem == ArrayF64 {
		a.F64 = make([]float64, length)
	}
	h.arrs[id] = a
	return id
}
func (h *fakeHost) Array(id uint64) (*TypedArray, bool) { a, ok := h.arrs[id]; return a, ok }

func (h *fakeHost) NewObject(classID uint32, nfields int) uint64 {
	id := h.nextID
	h.nextID++
	h.objs[id] = &ObjHandle{ClassID: classID, Fields: make([]int64, nfields), Refs: 1}
	return id
}
func (h *fakeHost) Object(id uint64) (*ObjHandle, bool) { o, ok := h.objs[id]; return o, ok }
func (h *fakeHost) RetainObject(id uint64) {
	if o, ok := h.objs[id]; ok {
		o.Refs++
	}
}
func (h *fakeHost) ReleaseObject(id uint64) bool {
	o, ok := h.objs[id]
	if !ok {
		return false
	}
	o.Refs--
	if o.Refs <= 0 {
		delete(h.objs, id)
		return true
	}
	return false
}
func (h *fakeHost) ForceFreeObject(id uint64) { delete(h.objs, id) }

func (h *fakeHost) RegisterClass(name string, baseID uint32) uint32 {
	id := uint32(len(h.classes) + 1)
	h.classes[id] = uint64(baseID)
	return id
}
func (h *fakeHost) RegisterInterfaceImpl(ifaceID, classID uint32) {}
func (h *fakeHost) ClassVTable(classID uint32) uint64             { return uint64(classID) * 100 }
func (h *fakeHost) TypeIDOf(handle uint64) uint32 {
	if o, ok := h.objs[handle]; ok {
		return o.ClassID
	}
	return 0
}
func (h *fakeHost) TypeIsA(typeID, ancestorID uint32) bool { return typeID == ancestorID }
func (h *fakeHost) Stdout() io.Writer                      { return &h.out }

func TestStringConcatAndEq(t *testing.T) {
	h := newFakeHost()
	a := h.NewString([]byte("foo"))
	b := h.NewString([]byte("bar"))

	concat, ok := Lookup("rt_str_concat")
	require.True(t, ok)
	res, err := concat(h, []Value{Ptr(a), Ptr(b)})
	require.NoError(t, err)

	s, ok := h.String(res.U)
	require.True(t, ok)
	require.Equal(t, "foobar", string(s.Bytes))

	eq, _ := Lookup("rt_str_eq")
	same, err := eq(h, []Value{Ptr(a), Ptr(a)})
	require.NoError(t, err)
	require.Equal(t, int64(1), same.I)
}

func TestAliasedConvertNames(t *testing.T) {
	h := newFakeHost()
	f1, ok := Lookup("rt_to_double")
	require.True(t, ok)
	f2, ok := Lookup("Viper.Convert.ToDouble")
	require.True(t, ok)

	r1, err := f1(h, []Value{Int(3)})
	require.NoError(t, err)
	r2, err := f2(h, []Value{Int(3)})
	require.NoError(t, err)
	require.Equal(t, r1, r2)
}

func TestArrayBoundsCheck(t *testing.T) {
	h := newFakeHost()
	id := h.NewArray(ArrayI64, 4)
	set, _ := Lookup("rt_arr_i64_set")
	_, err := set(h, []Value{Ptr(id), Int(2), Int(42)})
	require.NoError(t, err)

	get, _ := Lookup("rt_arr_i64_get")
	v, err := get(h, []Value{Ptr(id), Int(2)})
	require.NoError(t, err)
	require.Equal(t, int64(42), v.I)

	_, err = get(h, []Value{Ptr(id), Int(10)})
	require.Error(t, err)
}

func TestObjectRefcounting(t *testing.T) {
	h := newFakeHost()
	newObj, _ := Lookup("rt_obj_new_i64")
	res, err := newObj(h, []Value{Int(1), Int(2)})
	require.NoError(t, err)

	retain, _ := Lookup("rt_obj_retain_maybe")
	_, err = retain(h, []Value{Ptr(res.U)})
	require.NoError(t, err)

	release, _ := Lookup("rt_obj_release_check0")
	first, err := release(h, []Value{Ptr(res.U)})
	require.NoError(t, err)
	require.Equal(t, int64(0), first.I) // still retained once more

	second, err := release(h, []Value{Ptr(res.U)})
	require.NoError(t, err)
	require.Equal(t, int64(1), second.I) // now freed

	_, ok := h.Object(res.U)
	require.False(t, ok)
}
