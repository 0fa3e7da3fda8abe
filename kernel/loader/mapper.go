package loader

import (
	"ailiceos/kernel"
	"ailiceos/kernel/image"
	"ailiceos/kernel/kfmt"
	"ailiceos/kernel/mm"
	"ailiceos/kernel/mm/pmm"
	"ailiceos/kernel/mm/vmm"
)

var (
	// ErrInvalidSegmentPermissions is returned for a segment, or a page
	// shared by segments, that would need to be both writable and
	// executable.
	ErrInvalidSegmentPermissions = &kernel.Error{Module: "loader", Message: "segment requires writable and executable memory"}

	// ErrAddressInUse is returned when a segment page is already mapped
	// by the firmware.
	ErrAddressInUse = &kernel.Error{Module: "loader", Message: "segment address is already mapped"}
)

// Mapper materializes image segments in the active address space.
type Mapper struct {
	pt      *vmm.PageTable
	machine Machine

	// pages maps each virtual page installed by the mapper to its leaf
	// frame so that overlapping segments share it.
	pages map[mm.Page]pmm.FrameIndex
}

// NewMapper creates a mapper that edits pt.
func NewMapper(pt *vmm.PageTable, machine Machine) *Mapper {
	return &Mapper{
		pt:      pt,
		machine: machine,
		pages:   make(map[mm.Page]pmm.FrameIndex),
	}
}

// MapImage maps every segment of img. Each page gets a freshly allocated,
// zeroed frame holding the segment's file-backed bytes. Pages shared by
// several segments are mapped once with the union of their permissions.
//
// All permission checks run before the page tables are touched. The tables
// are edited with CR0.WP cleared; it is restored before MapImage returns.
func (mp *Mapper) MapImage(img *image.Image) *kernel.Error {
	perms, err := pagePermissions(img.Segments)
	if err != nil {
		return err
	}

	// NX bits in leaf entries are reserved unless EFER.NXE is set.
	mp.machine.EnableNoExecute()

	return mp.pt.Edit(mp.machine, func() *kernel.Error {
		for segIndex, seg := range img.Segments {
			if err := mp.mapSegment(img, seg, perms); err != nil {
				return err
			}

			kfmt.Printf("[loader] segment %d: [0x%x, 0x%x) %s\n", segIndex, seg.VirtAddr, seg.End(), permString(seg.Flags))
		}
		return nil
	})
}

// MappedPages returns the number of pages installed by the mapper.
func (mp *Mapper) MappedPages() int {
	return len(mp.pages)
}

func (mp *Mapper) mapSegment(img *image.Image, seg image.Segment, perms map[mm.Page]image.SegmentFlag) *kernel.Error {
	var (
		arena    = mp.pt.Arena()
		data     = img.SegmentData(seg)
		fileEnd  = seg.VirtAddr + uintptr(seg.FileSize)
		lastPage = mm.PageFromAddress(seg.End() - 1)
	)

	for page := mm.PageFromAddress(seg.VirtAddr); ; page++ {
		index, ok := mp.pages[page]
		if !ok {
			if _, err := mp.pt.Lookup(page.Address()); err != vmm.ErrInvalidMapping {
				kfmt.Printf("[loader] page 0x%x is already mapped\n", page.Address())
				return ErrAddressInUse
			}

			var err *kernel.Error
			if index, err = arena.Alloc(); err != nil {
				return err
			}
			mp.pages[page] = index
		}

		if err := mp.pt.Map(page, arena.Frame(index), leafFlags(perms[page])); err != nil {
			return err
		}

		// Copy the part of the file-backed range that falls in this page;
		// the rest of the frame stays zero.
		pageStart := page.Address()
		from, to := max(pageStart, seg.VirtAddr), min(pageStart+mm.PageSize, fileEnd)
		if from < to {
			copy(arena.Bytes(index)[from-pageStart:to-pageStart], data[from-seg.VirtAddr:to-seg.VirtAddr])
		}

		// Compared for equality so that a segment ending at the top of
		// the address space does not wrap around.
		if page == lastPage {
			break
		}
	}

	return nil
}

// pagePermissions returns the union of the permissions requested for each
// page by the segments that cover it.
func pagePermissions(segments []image.Segment) (map[mm.Page]image.SegmentFlag, *kernel.Error) {
	perms := make(map[mm.Page]image.SegmentFlag)

	for segIndex, seg := range segments {
		if seg.Writable() && seg.Executable() {
			kfmt.Printf("[loader] segment %d at 0x%x is writable and executable\n", segIndex, seg.VirtAddr)
			return nil, ErrInvalidSegmentPermissions
		}

		lastPage := mm.PageFromAddress(seg.End() - 1)
		for page := mm.PageFromAddress(seg.VirtAddr); ; page++ {
			union := perms[page] | seg.Flags
			if union&image.SegmentWrite != 0 && union&image.SegmentExecute != 0 {
				kfmt.Printf("[loader] segment %d shares page 0x%x with conflicting permissions\n", segIndex, page.Address())
				return nil, ErrInvalidSegmentPermissions
			}
			perms[page] = union

			if page == lastPage {
				break
			}
		}
	}

	return perms, nil
}

// leafFlags translates segment permissions into leaf entry flags. Pages are
// always readable.
func leafFlags(perm image.SegmentFlag) vmm.PageTableEntryFlag {
	flags := vmm.FlagPresent
	if perm&image.SegmentWrite != 0 {
		flags |= vmm.FlagRW
	}
	if perm&image.SegmentExecute == 0 {
		flags |= vmm.FlagNoExecute
	}
	return flags
}

func permString(flags image.SegmentFlag) string {
	perm := []byte("r--")
	if flags&image.SegmentWrite != 0 {
		perm[1] = 'w'
	}
	if flags&image.SegmentExecute != 0 {
		perm[2] = 'x'
	}
	return string(perm)
}
