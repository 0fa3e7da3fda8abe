// Package elftest assembles minimal ELF64 executables for tests and the
// loader simulator.
package elftest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

const (
	headerSize   = 64
	progSize     = 56
	segmentAlign = 0x1000
)

// Segment describes a PT_LOAD program header and its file contents.
// MemSize defaults to len(Data) when it is smaller.
type Segment struct {
	VirtAddr uint64
	Flags    elf.ProgFlag
	Data     []byte
	MemSize  uint64
}

// Image describes the executable to build. Zero values for Class, Data,
// Machine and Type select an x86-64 little-endian ELF64 executable.
type Image struct {
	Entry    uint64
	Class    elf.Class
	Data     elf.Data
	Machine  elf.Machine
	Type     elf.Type
	Segments []Segment
}

// Build returns the encoded executable. Segment data is placed at file
// offsets congruent with their virtual address modulo the page size.
func Build(img Image) []byte {
	if img.Class == elf.ELFCLASSNONE {
		img.Class = elf.ELFCLASS64
	}
	if img.Data == elf.ELFDATANONE {
		img.Data = elf.ELFDATA2LSB
	}
	if img.Machine == elf.EM_NONE {
		img.Machine = elf.EM_X86_64
	}
	if img.Type == elf.ET_NONE {
		img.Type = elf.ET_EXEC
	}

	hdr := elf.Header64{
		Type:      uint16(img.Type),
		Machine:   uint16(img.Machine),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     img.Entry,
		Phoff:     headerSize,
		Ehsize:    headerSize,
		Phentsize: progSize,
		Phnum:     uint16(len(img.Segments)),
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(img.Class)
	hdr.Ident[elf.EI_DATA] = byte(img.Data)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	progs := make([]elf.Prog64, len(img.Segments))
	offset := uint64(headerSize + progSize*len(img.Segments))
	for i, seg := range img.Segments {
		offset = alignUp(offset, segmentAlign) + seg.VirtAddr%segmentAlign
		memSize := seg.MemSize
		if memSize < uint64(len(seg.Data)) {
			memSize = uint64(len(seg.Data))
		}

		progs[i] = elf.Prog64{
			Type:   uint32(elf.PT_LOAD),
			Flags:  uint32(seg.Flags),
			Off:    offset,
			Vaddr:  seg.VirtAddr,
			Paddr:  seg.VirtAddr,
			Filesz: uint64(len(seg.Data)),
			Memsz:  memSize,
			Align:  segmentAlign,
		}
		offset += uint64(len(seg.Data))
	}

	out := make([]byte, offset)
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, &hdr)
	for i := range progs {
		_ = binary.Write(&buf, binary.LittleEndian, &progs[i])
	}
	copy(out, buf.Bytes())

	for i, seg := range img.Segments {
		copy(out[progs[i].Off:], seg.Data)
	}

	return out
}

// ProgramHeaderOffset returns the file offset of the n-th program header,
// for tests that corrupt fields after building.
func ProgramHeaderOffset(n int) int {
	return headerSize + progSize*n
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}
