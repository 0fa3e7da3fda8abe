package vmm

import (
	"ailiceos/kernel/mm"
	"ailiceos/kernel/mm/pmm"
	"encoding/binary"
)

// PageTableEntryFlag is a bit of a page table entry outside the address
// field.
type PageTableEntryFlag uintptr

// pageTableEntry is a raw amd64 page table entry: a frame address in bits
// 12-51 plus flags.
type pageTableEntry uintptr

// HasFlags reports whether every bit of flags is set.
func (pte pageTableEntry) HasFlags(flags PageTableEntryFlag) bool {
	return (uintptr(pte) & uintptr(flags)) == uintptr(flags)
}

func (pte *pageTableEntry) SetFlags(flags PageTableEntryFlag) {
	*pte = (pageTableEntry)(uintptr(*pte) | uintptr(flags))
}

func (pte *pageTableEntry) ClearFlags(flags PageTableEntryFlag) {
	*pte = (pageTableEntry)(uintptr(*pte) &^ uintptr(flags))
}

// Flags returns the entry without its address field.
func (pte pageTableEntry) Flags() PageTableEntryFlag {
	return PageTableEntryFlag(uintptr(pte) &^ ptePhysPageMask)
}

// Frame returns the frame the entry points to.
func (pte pageTableEntry) Frame() mm.Frame {
	return mm.Frame((uintptr(pte) & ptePhysPageMask) >> mm.PageShift)
}

// SetFrame replaces the address field, keeping the flags.
func (pte *pageTableEntry) SetFrame(frame mm.Frame) {
	*pte = (pageTableEntry)((uintptr(*pte) &^ ptePhysPageMask) | frame.Address())
}

// entryRef addresses one entry of a page table stored in the arena.
type entryRef struct {
	arena *pmm.Arena
	table pmm.FrameIndex
	index uintptr
}

func (ref entryRef) load() pageTableEntry {
	b := ref.arena.Bytes(ref.table)
	return pageTableEntry(binary.LittleEndian.Uint64(b[ref.index<<mm.PointerShift:]))
}

func (ref entryRef) store(pte pageTableEntry) {
	b := ref.arena.Bytes(ref.table)
	binary.LittleEndian.PutUint64(b[ref.index<<mm.PointerShift:], uint64(pte))
}
