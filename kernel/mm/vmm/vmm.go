// Package vmm edits the page-table hierarchy that is active when the loader
// runs. Tables are addressed through a pmm.Arena; the root is the frame
// loaded in CR3 by the firmware.
package vmm

import (
	"ailiceos/kernel"
	"ailiceos/kernel/mm"
	"ailiceos/kernel/mm/pmm"
)

var (
	// ErrInvalidMapping is returned when trying to lookup a virtual memory address that is not yet mapped.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}

	// ErrRootRelocated is returned when the active root table changed
	// while the loader was editing it.
	ErrRootRelocated = &kernel.Error{Module: "vmm", Message: "active page table root changed during mapping"}

	errNoHugePageSupport = &kernel.Error{Module: "vmm", Message: "huge pages are not supported"}
)

// MMU is the part of the CPU that the page table talks to.
type MMU interface {
	// ActivePDT returns the physical address of the active root table.
	ActivePDT() uintptr

	// FlushTLBEntry invalidates the cached translation for virtAddr.
	FlushTLBEntry(virtAddr uintptr)
}

// PageTable is the 4-level page table hierarchy rooted at the active PDT.
type PageTable struct {
	arena *pmm.Arena
	mmu   MMU

	rootFrame mm.Frame
	root      pmm.FrameIndex
}

// NewPageTable returns a PageTable for the hierarchy currently loaded by the
// MMU. The root frame and every table reached during a walk are adopted by
// the arena; missing tables are allocated from it.
func NewPageTable(arena *pmm.Arena, mmu MMU) *PageTable {
	rootFrame := mm.FrameFromAddress(mmu.ActivePDT() & ptePhysPageMask)
	return &PageTable{
		arena:     arena,
		mmu:       mmu,
		rootFrame: rootFrame,
		root:      arena.Adopt(rootFrame),
	}
}

// RootFrame returns the physical frame of the root table.
func (pt *PageTable) RootFrame() mm.Frame {
	return pt.rootFrame
}

// Arena returns the arena backing the table nodes.
func (pt *PageTable) Arena() *pmm.Arena {
	return pt.arena
}

// PageOffset returns the offset within the page specified by a virtual
// address.
func PageOffset(virtAddr uintptr) uintptr {
	return (virtAddr & ((1 << pageLevelShifts[pageLevels-1]) - 1))
}

// canonical sign-extends bit 47 of virtAddr into the upper bits.
func canonical(virtAddr uintptr) uintptr {
	if virtAddr&canonicalSignBit != 0 {
		return virtAddr | ^(canonicalSignBit<<1 - 1)
	}
	return virtAddr
}
