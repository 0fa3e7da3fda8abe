package vmm

import (
	"ailiceos/kernel"
	"ailiceos/kernel/mm"
	"ailiceos/kernel/mm/pmm"
)

// Mapping describes the leaf entry that translates a virtual page.
type Mapping struct {
	Frame mm.Frame
	Flags PageTableEntryFlag
}

// Writable returns true if the mapping allows writes.
func (m Mapping) Writable() bool {
	return m.Flags&FlagRW != 0
}

// Executable returns true if the mapping allows instruction fetches.
func (m Mapping) Executable() bool {
	return m.Flags&FlagNoExecute == 0
}

// Map establishes a mapping between a virtual page and a physical memory
// frame, overwriting any previous leaf entry for the page. Missing tables
// are allocated from the arena, cleared and installed with FlagPresent and
// FlagRW so that permissions are only narrowed at the leaf. Intermediate
// entries that already exist are widened the same way.
func (pt *PageTable) Map(page mm.Page, frame mm.Frame, flags PageTableEntryFlag) *kernel.Error {
	var err *kernel.Error

	pt.walk(page.Address(), func(pteLevel uint8, ref entryRef) bool {
		pte := ref.load()

		// If we reached the last level all we need to do is to map the
		// frame in place and flag it as present and flush its TLB entry
		if pteLevel == pageLevels-1 {
			pte = 0
			pte.SetFrame(frame)
			pte.SetFlags(flags)
			ref.store(pte)
			pt.mmu.FlushTLBEntry(page.Address())
			return true
		}

		if pte.HasFlags(FlagPresent | FlagHugePage) {
			err = errNoHugePageSupport
			return false
		}

		// Next table does not yet exist; we need to allocate a
		// physical frame for it. The arena hands it out cleared.
		if !pte.HasFlags(FlagPresent) {
			var table pmm.FrameIndex
			if table, err = pt.arena.Alloc(); err != nil {
				return false
			}

			pte = 0
			pte.SetFrame(pt.arena.Frame(table))
			pte.SetFlags(FlagPresent | FlagRW)
			ref.store(pte)
			return true
		}

		if !pte.HasFlags(FlagRW) || pte.HasFlags(FlagNoExecute) {
			pte.SetFlags(FlagRW)
			pte.ClearFlags(FlagNoExecute)
			ref.store(pte)
		}

		return true
	})

	return err
}

// Lookup returns the leaf mapping for the page containing virtAddr or
// ErrInvalidMapping if there is none.
func (pt *PageTable) Lookup(virtAddr uintptr) (Mapping, *kernel.Error) {
	var (
		mapping Mapping
		err     = ErrInvalidMapping
	)

	pt.walk(virtAddr, func(pteLevel uint8, ref entryRef) bool {
		pte := ref.load()
		if !pte.HasFlags(FlagPresent) {
			return false
		}

		if pteLevel == pageLevels-1 {
			mapping = Mapping{Frame: pte.Frame(), Flags: pte.Flags()}
			err = nil
			return true
		}

		if pte.HasFlags(FlagHugePage) {
			err = errNoHugePageSupport
			return false
		}

		return true
	})

	return mapping, err
}

// Translate returns the physical address that corresponds to the supplied
// virtual address or ErrInvalidMapping if the virtual address does not
// correspond to a mapped physical address.
func (pt *PageTable) Translate(virtAddr uintptr) (uintptr, *kernel.Error) {
	mapping, err := pt.Lookup(virtAddr)
	if err != nil {
		return 0, err
	}

	// Calculate the physical address by taking the physical frame address and
	// appending the offset from the virtual address
	return mapping.Frame.Address() + PageOffset(virtAddr), nil
}
