// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package vm

import (
	"io"

	"github.com/viper-lang/viper/internal/il/extern"
)

// classInfo is one registered class's metadata: its base class (0 if
// none) and the vtable address the extern ABI hands back to callers of
// rt_get_class_vtable.
type classInfo struct {
	name   string
	baseID uint32
	vtable uint64
}

// runtimeHost implements extern.Host on top of the VM's own flat memory
// and a set of handle tables, the seam the extern registry calls back
// through for every rt_* handler (§6.4). Grounded on probe-lang/lang/vm's
// embedding of its memory directly in the interpreter, generalized here
// into its own type so it can satisfy an external interface.
type runtimeHost struct {
	mem *memory
	out io.Writer

	strs   map[uint64]*extern.StrHandle
	arrs   map[uint64]*extern.TypedArray
	objs   map[uint64]*extern.ObjHandle
	nextID uint64

	classes map[uint32]classInfo
	ifaces  map[uint32]map[uint32]bool
	nextCID uint32
}

func newRuntimeHost(mem *memory, out io.Writer) *runtimeHost {
	return &runtimeHost{
		mem:     mem,
		out:     out,
		strs:    make(map[uint64]*extern.StrHandle),
		arrs:    make(map[uint64]*extern.TypedArray),
		objs:    make(map[uint64]*extern.ObjHandle),
		nextID:  1,
		classes: make(map[uint32]classInfo),
		ifaces:  make(map[uint32]map[uint32]bool),
		nextCID: 1,
	}
}

func (h *runtimeHost) allocID() uint64 {
	id := h.nextID
	h.nextID++
	return id
}

func (h *runtimeHost) ReadBytes(ptr uint64, n int) ([]byte, error) { return h.mem.readBytes(ptr, n) }
func (h *runtimeHost) WriteBytes(ptr uint64, data []byte) error    { return h.mem.writeBytes(ptr, data) }
func (h *runtimeHost) Alloc(n int) (uint64, error)                 { return h.mem.alloc(uint64(n)) }

func (h *runtimeHost) NewString(b []byte) uint64 {
	id := h.allocID()
	owned := append([]byte(nil), b...)
	h.strs[id] = &extern.StrHandle{Bytes: owned, Refs: 1}
	return id
}

func (h *runtimeHost) String(handle uint64) (*extern.StrHandle, bool) {
	s, ok := h.strs[handle]
	return s, ok
}

func (h *runtimeHost) RetainString(handle uint64) {
	if s, ok := h.strs[handle]; ok {
		s.Refs++
	}
}

func (h *runtimeHost) ReleaseString(handle uint64) bool {
	s, ok := h.strs[handle]
	if !ok {
		return false
	}
	s.Refs--
	if s.Refs <= 0 {
		delete(h.strs, handle)
		return true
	}
	return false
}

func (h *runtimeHost) NewArray(elem extern.ArrayElem, length int) uint64 {
	id := h.allocID()
	a := &extern.TypedArray{Elem: elem, Data: make([]int64, length)}
	if elem == extern.ArrayF64 {
		a.F64 = make([]float64, length)
	}
	h.arrs[id] = a
	return id
}

func (h *runtimeHost) Array(handle uint64) (*extern.TypedArray, bool) {
	a, ok := h.arrs[handle]
	return a, ok
}

func (h *runtimeHost) NewObject(classID uint32, nfields int) uint64 {
	id := h.allocID()
	h.objs[id] = &extern.ObjHandle{ClassID: classID, Fields: make([]int64, nfields), Refs: 1}
	return id
}

func (h *runtimeHost) Object(handle uint64) (*extern.ObjHandle, bool) {
	o, ok := h.objs[handle]
	return o, ok
}

func (h *runtimeHost) RetainObject(handle uint64) {
	if o, ok := h.objs[handle]; ok {
		o.Refs++
	}
}

func (h *runtimeHost) ReleaseObject(handle uint64) bool {
	o, ok := h.objs[handle]
	if !ok {
		return false
	}
	o.Refs--
	if o.Refs <= 0 {
		delete(h.objs, handle)
		return true
	}
	return false
}

func (h *runtimeHost) ForceFreeObject(handle uint64) { delete(h.objs, handle) }

func (h *runtimeHost) RegisterClass(name string, baseID uint32) uint32 {
	id := h.nextCID
	h.nextCID++
	h.classes[id] = classInfo{name: name, baseID: baseID, vtable: uint64(id) * 1000}
	return id
}

func (h *runtimeHost) RegisterInterfaceImpl(ifaceID, classID uint32) {
	if h.ifaces[ifaceID] == nil {
		h.ifaces[ifaceID] = make(map[uint32]bool)
	}
	h.ifaces[ifaceID][classID] = true
}

func (h *runtimeHost) ClassVTable(classID uint32) uint64 {
	return h.classes[classID].vtable
}

func (h *runtimeHost) TypeIDOf(handle uint64) uint32 {
	if o, ok := h.objs[handle]; ok {
		return o.ClassID
	}
	return 0
}

// TypeIsA walks typeID's base-class chain looking for ancestorID, falling
// back to the registered interface-implementation table — a class is "a"
// an interface if RegisterInterfaceImpl recorded that pairing, or if any
// ancestor in its base chain did.
func (h *runtimeHost) TypeIsA(typeID, ancestorID uint32) bool {
	for id := typeID; id != 0; id = h.classes[id].baseID {
		if id == ancestorID {
			return true
		}
		if impls, ok := h.ifaces[ancestorID]; ok && impls[id] {
			return true
		}
	}
	return false
}

func (h *runtimeHost) Stdout() io.Writer { return h.out }
