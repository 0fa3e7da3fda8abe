package mm

const (
	// PointerShift is log2 of the size of a page table entry and of a
	// pointer on amd64.
	PointerShift = uintptr(3)

	// PageShift is log2(PageSize); shifting an address right by it yields
	// its frame or page number.
	PageShift = uintptr(12)

	// PageSize is the size of a frame and of the smallest page.
	PageSize = uintptr(1 << PageShift)
)
