// Package image validates a kernel executable and describes the segments
// that have to be loaded into the address space.
package image

import (
	"ailiceos/kernel"
	"ailiceos/kernel/kfmt"
	"bytes"
	"debug/elf"
	"math"
)

// ErrMalformedImage is returned for any kernel image that cannot be loaded.
var ErrMalformedImage = &kernel.Error{Module: "image", Message: "malformed kernel image"}

// SegmentFlag describes the access permissions requested by a segment.
type SegmentFlag uint8

const (
	// SegmentExecute is set for segments containing code.
	SegmentExecute SegmentFlag = 1 << iota

	// SegmentWrite is set for segments that may be written to.
	SegmentWrite

	// SegmentRead is set for segments that may be read.
	SegmentRead
)

// Segment is a contiguous region of the image that is loaded into memory.
// The bytes between FileSize and MemSize are zero-filled.
type Segment struct {
	VirtAddr   uintptr
	FileOffset uint64
	FileSize   uint64
	MemSize    uint64
	Flags      SegmentFlag
}

// Writable returns true if the segment must be mapped writable.
func (s Segment) Writable() bool {
	return s.Flags&SegmentWrite != 0
}

// Executable returns true if the segment must be mapped executable.
func (s Segment) Executable() bool {
	return s.Flags&SegmentExecute != 0
}

// End returns the first virtual address past the segment.
func (s Segment) End() uintptr {
	return s.VirtAddr + uintptr(s.MemSize)
}

// Contains returns true if addr lies inside the segment's memory range.
func (s Segment) Contains(addr uintptr) bool {
	return addr >= s.VirtAddr && addr < s.End()
}

// canonicalBits is the number of significant virtual address bits with
// 4-level paging.
const canonicalBits = 48

// Image is a parsed kernel image. It keeps a reference to the buffer it was
// parsed from.
type Image struct {
	Entry    uintptr
	Segments []Segment

	raw []byte
}

// SegmentData returns the file-backed bytes of seg.
func (img *Image) SegmentData(seg Segment) []byte {
	return img.raw[seg.FileOffset : seg.FileOffset+seg.FileSize]
}

// Parse validates buf as a 64-bit little-endian x86-64 executable and
// returns its loadable segments. Segments with a zero memory size are
// skipped. The entry point must fall inside an executable segment.
func Parse(buf []byte) (*Image, *kernel.Error) {
	f, err := elf.NewFile(bytes.NewReader(buf))
	if err != nil {
		return nil, malformed("%s", err.Error())
	}
	defer f.Close()

	switch {
	case f.Class != elf.ELFCLASS64:
		return nil, malformed("unsupported class %s", f.Class)
	case f.Data != elf.ELFDATA2LSB:
		return nil, malformed("unsupported byte order %s", f.Data)
	case f.Machine != elf.EM_X86_64:
		return nil, malformed("unsupported machine %s", f.Machine)
	case f.Type != elf.ET_EXEC:
		return nil, malformed("unsupported type %s", f.Type)
	}

	img := &Image{Entry: uintptr(f.Entry), raw: buf}
	for progIndex, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Memsz == 0 {
			continue
		}

		switch {
		case prog.Filesz > prog.Memsz:
			return nil, malformed("segment %d file size 0x%x exceeds mem size 0x%x", progIndex, prog.Filesz, prog.Memsz)
		case prog.Off > uint64(len(buf)) || prog.Filesz > uint64(len(buf))-prog.Off:
			return nil, malformed("segment %d data [0x%x, +0x%x) past end of image", progIndex, prog.Off, prog.Filesz)
		case prog.Vaddr > math.MaxUint64-prog.Memsz:
			return nil, malformed("segment %d address range overflows", progIndex)
		case !canonicalRange(prog.Vaddr, prog.Vaddr+prog.Memsz-1):
			return nil, malformed("segment %d range [0x%x, 0x%x] is not canonical", progIndex, prog.Vaddr, prog.Vaddr+prog.Memsz-1)
		}

		img.Segments = append(img.Segments, Segment{
			VirtAddr:   uintptr(prog.Vaddr),
			FileOffset: prog.Off,
			FileSize:   prog.Filesz,
			MemSize:    prog.Memsz,
			Flags:      segmentFlags(prog.Flags),
		})
	}

	for _, seg := range img.Segments {
		if seg.Executable() && seg.Contains(img.Entry) {
			return img, nil
		}
	}

	return nil, malformed("entry point 0x%x is not inside an executable segment", img.Entry)
}

// canonicalRange reports whether [first, last] lies within a single half of
// the 48-bit canonical address space.
func canonicalRange(first, last uint64) bool {
	half := func(addr uint64) int64 { return int64(addr) >> (canonicalBits - 1) }

	h := half(first)
	return (h == 0 || h == -1) && half(last) == h
}

func segmentFlags(flags elf.ProgFlag) SegmentFlag {
	var out SegmentFlag
	if flags&elf.PF_X != 0 {
		out |= SegmentExecute
	}
	if flags&elf.PF_W != 0 {
		out |= SegmentWrite
	}
	if flags&elf.PF_R != 0 {
		out |= SegmentRead
	}
	return out
}

func malformed(format string, args ...interface{}) *kernel.Error {
	kfmt.Printf("[image] "+format+"\n", args...)
	return ErrMalformedImage
}
