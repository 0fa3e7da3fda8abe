// Package allocator provides the physical frame allocator used while the
// loader builds the kernel's address space.
package allocator

import (
	"ailiceos/efi"
	"ailiceos/kernel"
	"ailiceos/kernel/kfmt"
	"ailiceos/kernel/mm"
)

var (
	// ErrOutOfMemory is returned when the firmware cannot provide another
	// frame. There is nothing to fall back to before the kernel runs, so
	// callers treat it as fatal.
	ErrOutOfMemory = &kernel.Error{Module: "frame_alloc", Message: "out of memory"}
)

// PageAllocator is implemented by efi.Session.
type PageAllocator interface {
	AllocatePages(memType efi.MemoryType, count uint64) (mm.Frame, *kernel.Error)
}

// FirmwareAllocator hands out single frames obtained from the firmware's
// page allocator. Frames are tagged as loader data so the firmware does not
// reclaim them and the kernel finds them marked in the final memory map.
//
// There is no way to free a frame; allocations are monotonic until the
// kernel takes over.
type FirmwareAllocator struct {
	pages PageAllocator

	// allocCount tracks the total number of allocated frames.
	allocCount uint64
}

// NewFirmwareAllocator creates an allocator backed by pages.
func NewFirmwareAllocator(pages PageAllocator) *FirmwareAllocator {
	return &FirmwareAllocator{pages: pages}
}

// AllocFrame reserves one frame. It returns ErrOutOfMemory if the firmware
// is exhausted; once boot services are retired the session's error is
// returned unchanged.
func (alloc *FirmwareAllocator) AllocFrame() (mm.Frame, *kernel.Error) {
	frame, err := alloc.pages.AllocatePages(efi.LoaderData, 1)
	switch err {
	case nil:
	case efi.ErrFirmwareRetired:
		return mm.InvalidFrame, err
	default:
		kfmt.Printf("[frame_alloc] allocation #%d failed: %s\n", alloc.allocCount+1, err.Message)
		return mm.InvalidFrame, ErrOutOfMemory
	}

	alloc.allocCount++
	return frame, nil
}

// AllocCount returns the number of frames handed out so far.
func (alloc *FirmwareAllocator) AllocCount() uint64 {
	return alloc.allocCount
}
