// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package vm

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DefaultMemoryLimit caps the total bytes one VM instance's linear memory
// may grow to across every alloca and runtime-object allocation.
const DefaultMemoryLimit uint64 = 16 * 1024 * 1024

const minAllocAlign uint64 = 8

// ErrOutOfMemory is returned when an allocation would exceed the configured
// memory limit.
var ErrOutOfMemory = fmt.Errorf("vm: out of memory")

// ErrInvalidAddress is returned when an access falls outside every live
// allocation, the typed-load/store analogue of a null/dangling pointer
// dereference (§7's NullDereference trap).
var ErrInvalidAddress = fmt.Errorf("vm: invalid memory address")

type region struct{ base, size uint64 }

func (r region) end() uint64 { return r.base + r.size }

// memory is the flat, byte-addressable backing store `alloca` draws from
// and `load`/`store`/`gep` address into, grounded on probe-lang's
// lang/vm.Memory bump allocator. Unlike the teacher's version this module
// never frees a region: the IL has no explicit dealloc opcode (memory
// reclamation is the runtime ABI's refcounting concern, out of scope per
// spec.md §1), so allocas simply persist for the VM's lifetime.
type memory struct {
	data    []byte
	regions []region
	limit   uint64
	used    uint64
	next    uint64
}

func newMemory(limit uint64) *memory {
	if limit == 0 {
		limit = DefaultMemoryLimit
	}
	return &memory{data: make([]byte, 0, 4096), limit: limit}
}

func roundUp(n, align uint64) uint64 { return (n + align - 1) &^ (align - 1) }

// alloc reserves size bytes and returns the base address, growing the
// backing slice as needed and zero-filling the new region.
func (m *memory) alloc(size uint64) (uint64, error) {
	if size == 0 {
		size = minAllocAlign
	}
	aligned := roundUp(size, minAllocAlign)
	if m.used+aligned > m.limit {
		return 0, ErrOutOfMemory
	}
	base := m.next
	end := base + aligned
	if end > uint64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	m.regions = append(m.regions, region{base: base, size: aligned})
	m.used += aligned
	m.next = end
	return base, nil
}

func (m *memory) checkAccess(addr, size uint64) error {
	for _, r := range m.regions {
		if addr >= r.base && addr+size <= r.end() {
			return nil
		}
	}
	return fmt.Errorf("%w: addr=0x%x size=%d", ErrInvalidAddress, addr, size)
}

func (m *memory) readBytes(addr uint64, n int) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	if err := m.checkAccess(addr, uint64(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, m.data[addr:addr+uint64(n)])
	return out, nil
}

func (m *memory) writeBytes(addr uint64, b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if err := m.checkAccess(addr, uint64(len(b))); err != nil {
		return err
	}
	copy(m.data[addr:], b)
	return nil
}

func (m *memory) readUint64(addr uint64) (uint64, error) {
	if err := m.checkAccess(addr, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.data[addr:]), nil
}

func (m *memory) writeUint64(addr uint64, v uint64) error {
	if err := m.checkAccess(addr, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.data[addr:], v)
	return nil
}

func (m *memory) readUint32(addr uint64) (uint32, error) {
	if err := m.checkAccess(addr, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.data[addr:]), nil
}

func (m *memory) writeUint32(addr uint64, v uint32) error {
	if err := m.checkAccess(addr, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.data[addr:], v)
	return nil
}

func (m *memory) readUint16(addr uint64) (uint16, error) {
	if err := m.checkAccess(addr, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.data[addr:]), nil
}

func (m *memory) writeUint16(addr uint64, v uint16) error {
	if err := m.checkAccess(addr, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.data[addr:], v)
	return nil
}

func (m *memory) readByte(addr uint64) (byte, error) {
	if err := m.checkAccess(addr, 1); err != nil {
		return 0, err
	}
	return m.data[addr], nil
}

func (m *memory) writeByte(addr uint64, v byte) error {
	if err := m.checkAccess(addr, 1); err != nil {
		return err
	}
	m.data[addr] = v
	return nil
}

func (m *memory) readFloat64(addr uint64) (float64, error) {
	bits, err := m.readUint64(addr)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

func (m *memory) writeFloat64(addr uint64, v float64) error {
	return m.writeUint64(addr, math.Float64bits(v))
}
