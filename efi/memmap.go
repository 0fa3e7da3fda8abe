package efi

import (
	"ailiceos/kernel/mm"
	"unsafe"
)

// MemoryMap is the final memory map captured by ExitBootServices. It is
// produced exactly once and must not be modified afterwards.
type MemoryMap struct {
	// Addr is the physical address of the descriptor buffer.
	Addr uint64

	// Size is the number of valid bytes in the buffer.
	Size uint64

	// DescriptorSize is the stride between consecutive descriptors.
	DescriptorSize uint64

	// Key identifies the memory map version passed to ExitBootServices.
	Key uint64

	buf []byte
}

// NewMemoryMap wraps a buffer holding size bytes of descriptors.
func NewMemoryMap(addr uint64, buf []byte, size, descSize, key uint64) *MemoryMap {
	return &MemoryMap{Addr: addr, Size: size, DescriptorSize: descSize, Key: key, buf: buf}
}

// Len returns the number of descriptors in the map.
func (m *MemoryMap) Len() int {
	if m.DescriptorSize == 0 {
		return 0
	}
	return int(m.Size / m.DescriptorSize)
}

// Descriptor returns the descriptor at index.
func (m *MemoryMap) Descriptor(index int) *MemoryDescriptor {
	return (*MemoryDescriptor)(unsafe.Pointer(&m.buf[uint64(index)*m.DescriptorSize]))
}

// MemoryRegionVisitor is invoked by Visit for each descriptor. The visitor
// must return true to continue or false to abort the scan.
type MemoryRegionVisitor func(*MemoryDescriptor) bool

// Visit invokes visitor for each descriptor in the map.
func (m *MemoryMap) Visit(visitor MemoryRegionVisitor) {
	for index := 0; index < m.Len(); index++ {
		if !visitor(m.Descriptor(index)) {
			return
		}
	}
}

// TotalPages returns the sum of NumberOfPages over all descriptors.
func (m *MemoryMap) TotalPages() uint64 {
	var total uint64
	m.Visit(func(desc *MemoryDescriptor) bool {
		total += desc.NumberOfPages
		return true
	})
	return total
}

// UsableBytes returns the amount of memory the kernel may reuse.
func (m *MemoryMap) UsableBytes() uint64 {
	var total uint64
	m.Visit(func(desc *MemoryDescriptor) bool {
		if desc.Type.Usable() {
			total += desc.NumberOfPages << mm.PageShift
		}
		return true
	})
	return total
}
