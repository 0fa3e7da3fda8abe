package vmm

const (
	pageLevels      = 4
	entriesPerTable = 512

	// ptePhysPageMask selects bits 12-51 of an entry, which hold the
	// address of the next table or of the mapped frame.
	ptePhysPageMask = uintptr(0x000ffffffffff000)

	// canonicalSignBit is the highest implemented virtual address bit;
	// bits above it must be copies of it.
	canonicalSignBit = uintptr(1 << 47)
)

var (
	// pageLevelBits is the number of virtual address bits that index the
	// table at each level, starting at the root (PML4).
	pageLevelBits = [pageLevels]uint8{9, 9, 9, 9}

	// pageLevelShifts is the position of the index bits for each level.
	pageLevelShifts = [pageLevels]uint8{39, 30, 21, 12}
)

// Entry flag bits. The order follows the architectural bit positions.
const (
	// FlagPresent marks a valid entry.
	FlagPresent PageTableEntryFlag = 1 << iota

	// FlagRW allows writes through the entry.
	FlagRW

	FlagUserAccessible
	FlagWriteThroughCaching
	FlagDoNotCache

	// FlagAccessed and FlagDirty are maintained by the CPU.
	FlagAccessed
	FlagDirty

	// FlagHugePage marks an intermediate entry that maps a 2M or 1G page
	// directly.
	FlagHugePage

	FlagGlobal

	// FlagNoExecute forbids instruction fetches; honored only with
	// EFER.NXE set.
	FlagNoExecute = 1 << 63
)
