// Package bootinfo defines the structure that the loader hands to the kernel
// entry point. Both sides are compiled against this package so they always
// agree on its layout.
package bootinfo

import (
	"ailiceos/efi"
	"ailiceos/kernel/mm"
	"encoding/binary"
	"unsafe"
)

// Size is the encoded size of BootInfo in bytes.
const Size = 40

// MemoryMap locates the memory map captured when the firmware boot services
// were retired.
type MemoryMap struct {
	// Addr is the physical address of the first descriptor.
	Addr uint64

	// Len is the number of descriptors.
	Len uint64

	// DescriptorSize is the stride between descriptors. It may be larger
	// than efi.MemoryDescriptorSize.
	DescriptorSize uint64
}

// BootInfo is passed by reference to the kernel entry point. The layout is
// fixed; every field is a little-endian uint64.
type BootInfo struct {
	MemoryMap MemoryMap

	// PhysicalMemoryOffset is the virtual address at which the kernel
	// expects physical memory to be mapped.
	PhysicalMemoryOffset uint64

	// ACPI2RSDPAddr is the physical address of the ACPI 2.0 RSDP or 0 if
	// the firmware did not publish one.
	ACPI2RSDPAddr uint64
}

// New builds the handoff structure for mmap.
func New(mmap *efi.MemoryMap, physicalMemoryOffset, rsdpAddr uint64) BootInfo {
	return BootInfo{
		MemoryMap: MemoryMap{
			Addr:           mmap.Addr,
			Len:            uint64(mmap.Len()),
			DescriptorSize: mmap.DescriptorSize,
		},
		PhysicalMemoryOffset: physicalMemoryOffset,
		ACPI2RSDPAddr:        rsdpAddr,
	}
}

// Encode writes info into b, which must hold at least Size bytes.
func (info *BootInfo) Encode(b []byte) {
	_ = b[Size-1]
	binary.LittleEndian.PutUint64(b[0:], info.MemoryMap.Addr)
	binary.LittleEndian.PutUint64(b[8:], info.MemoryMap.Len)
	binary.LittleEndian.PutUint64(b[16:], info.MemoryMap.DescriptorSize)
	binary.LittleEndian.PutUint64(b[24:], info.PhysicalMemoryOffset)
	binary.LittleEndian.PutUint64(b[32:], info.ACPI2RSDPAddr)
}

// Decode reads a BootInfo previously written by Encode.
func Decode(b []byte) BootInfo {
	_ = b[Size-1]
	return BootInfo{
		MemoryMap: MemoryMap{
			Addr:           binary.LittleEndian.Uint64(b[0:]),
			Len:            binary.LittleEndian.Uint64(b[8:]),
			DescriptorSize: binary.LittleEndian.Uint64(b[16:]),
		},
		PhysicalMemoryOffset: binary.LittleEndian.Uint64(b[24:]),
		ACPI2RSDPAddr:        binary.LittleEndian.Uint64(b[32:]),
	}
}

// FromAddress returns the BootInfo at the address the kernel entry point
// received.
func FromAddress(ptr uintptr) *BootInfo {
	return (*BootInfo)(unsafe.Pointer(ptr))
}

// VisitMemRegions invokes visitor for each descriptor of the memory map.
// The descriptors are read through phys.
func (info *BootInfo) VisitMemRegions(phys mm.PhysicalMemory, visitor efi.MemoryRegionVisitor) {
	info.memoryMap(phys).Visit(visitor)
}

// UsableBytes returns the amount of memory the kernel may reuse.
func (info *BootInfo) UsableBytes(phys mm.PhysicalMemory) uint64 {
	return info.memoryMap(phys).UsableBytes()
}

func (info *BootInfo) memoryMap(phys mm.PhysicalMemory) *efi.MemoryMap {
	m := info.MemoryMap
	size := m.Len * m.DescriptorSize
	if size == 0 {
		return efi.NewMemoryMap(m.Addr, nil, 0, m.DescriptorSize, 0)
	}

	// The map does not necessarily start on a page boundary.
	start := mm.FrameFromAddress(uintptr(m.Addr))
	offset := m.Addr - uint64(start.Address())
	buf := phys.RegionBytes(start, mm.PagesFor(offset+size))
	return efi.NewMemoryMap(m.Addr, buf[offset:offset+size], size, m.DescriptorSize, 0)
}
