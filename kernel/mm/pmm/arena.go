// Package pmm tracks the physical frames the loader works with.
//
// Frames are kept in an index-addressed Arena. Page-table nodes and segment
// frames are referred to by FrameIndex; only the arena turns an index into
// memory, through the mm.PhysicalMemory translation layer.
package pmm

import (
	"ailiceos/kernel"
	"ailiceos/kernel/mm"
	"math"
)

// FrameIndex identifies a frame registered with an Arena.
type FrameIndex uint32

// InvalidIndex is returned when a frame could not be registered.
const InvalidIndex = FrameIndex(math.MaxUint32)

// FrameAllocatorFn is a function that can allocate physical frames.
type FrameAllocatorFn func() (mm.Frame, *kernel.Error)

var errInvalidFrame = &kernel.Error{Module: "pmm", Message: "allocator returned an invalid frame"}

type arenaSlot struct {
	frame mm.Frame

	// owned is set for frames allocated through the arena. Adopted frames
	// (e.g. the firmware's page tables) are tracked but belong to someone
	// else.
	owned bool
}

// Arena is an append-only set of physical frames. Frames are never released;
// allocation is monotonic until the kernel takes over.
type Arena struct {
	phys    mm.PhysicalMemory
	allocFn FrameAllocatorFn

	slots   []arenaSlot
	byFrame map[mm.Frame]FrameIndex
}

// NewArena creates an arena that obtains new frames from allocFn and accesses
// their contents through phys.
func NewArena(phys mm.PhysicalMemory, allocFn FrameAllocatorFn) *Arena {
	return &Arena{
		phys:    phys,
		allocFn: allocFn,
		byFrame: make(map[mm.Frame]FrameIndex),
	}
}

// Alloc reserves a new frame, clears its contents and returns its index.
func (a *Arena) Alloc() (FrameIndex, *kernel.Error) {
	frame, err := a.allocFn()
	if err != nil {
		return InvalidIndex, err
	}

	if !frame.Valid() {
		return InvalidIndex, errInvalidFrame
	}

	index := a.register(frame, true)
	kernel.Fill(a.Bytes(index), 0)
	return index, nil
}

// Adopt registers a frame that was not allocated by this arena and returns its
// index. Adopting an already known frame returns its existing index.
func (a *Arena) Adopt(frame mm.Frame) FrameIndex {
	if index, ok := a.byFrame[frame]; ok {
		return index
	}

	return a.register(frame, false)
}

func (a *Arena) register(frame mm.Frame, owned bool) FrameIndex {
	index := FrameIndex(len(a.slots))
	a.slots = append(a.slots, arenaSlot{frame: frame, owned: owned})
	a.byFrame[frame] = index
	return index
}

// Frame returns the physical frame registered at index.
func (a *Arena) Frame(index FrameIndex) mm.Frame {
	return a.slots[index].frame
}

// Bytes returns the contents of the frame at index.
func (a *Arena) Bytes(index FrameIndex) []byte {
	return a.phys.FrameBytes(a.slots[index].frame)
}

// Len returns the number of frames registered with the arena.
func (a *Arena) Len() int {
	return len(a.slots)
}

// OwnedCount returns the number of frames allocated through the arena.
func (a *Arena) OwnedCount() int {
	var count int
	for _, slot := range a.slots {
		if slot.owned {
			count++
		}
	}
	return count
}
