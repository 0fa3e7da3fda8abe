package vmm

// pageTableWalker is a function that can be passed to the walk method. The
// function receives the current page level and a reference to the page table
// entry for that level. If the function returns false, then the page walk is
// aborted.
type pageTableWalker func(pteLevel uint8, ref entryRef) bool

// walk performs a page table walk for the given virtual address starting at
// the root table. It calls the supplied walkFn with the entry that
// corresponds to each page table level. The walk descends into the table
// pointed to by each entry after walkFn returns; it stops early if that entry
// is not present or maps a huge page.
func (pt *PageTable) walk(virtAddr uintptr, walkFn pageTableWalker) {
	table := pt.root

	for level := uint8(0); level < pageLevels; level++ {
		// Extract the bits from virtual address that correspond to the
		// index in this level's page table
		ref := entryRef{
			arena: pt.arena,
			table: table,
			index: (virtAddr >> pageLevelShifts[level]) & ((1 << pageLevelBits[level]) - 1),
		}

		if !walkFn(level, ref) || level == pageLevels-1 {
			return
		}

		pte := ref.load()
		if !pte.HasFlags(FlagPresent) || pte.HasFlags(FlagHugePage) {
			return
		}

		// Tables reached through entries the firmware installed are
		// adopted by the arena so they can be addressed by index.
		table = pt.arena.Adopt(pte.Frame())
	}
}
