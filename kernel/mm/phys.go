package mm

import "unsafe"

// PhysicalMemory translates physical frames into byte slices the loader can
// read and write. It is the only place where a physical address is turned
// into a pointer; everything above it refers to frames by number.
type PhysicalMemory interface {
	// FrameBytes returns the PageSize bytes backing frame.
	FrameBytes(frame Frame) []byte

	// RegionBytes returns the bytes backing count physically contiguous
	// frames starting at start.
	RegionBytes(start Frame, count uint64) []byte
}

// IdentityMapped is the PhysicalMemory of the UEFI boot environment where
// all physical memory is identity-mapped by the firmware.
type IdentityMapped struct{}

// FrameBytes implements PhysicalMemory.
func (m IdentityMapped) FrameBytes(frame Frame) []byte {
	return m.RegionBytes(frame, 1)
}

// RegionBytes implements PhysicalMemory.
func (IdentityMapped) RegionBytes(start Frame, count uint64) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(start.Address())), uintptr(count)<<PageShift)
}
