// Package acpi validates the platform discovery pointer handed to the kernel.
package acpi

import (
	"ailiceos/kernel"
	"bytes"
	"encoding/binary"
)

// RSDPDescriptor defines the root system descriptor pointer for ACPI 1.0. This
// is used as the entry-point for parsing ACPI data.
type RSDPDescriptor struct {
	// The signature must contain "RSD PTR " (last byte is a space).
	Signature [8]byte

	// A value that when added to the sum of all other bytes contained in
	// this descriptor should result in the value 0.
	Checksum uint8

	OEMID [6]byte

	// ACPI revision number. It is 0 for ACPI1.0 and 2 for versions 2.0 to 6.2.
	Revision uint8

	// Physical address of 32-bit root system descriptor table.
	RSDTAddr uint32
}

// ExtRSDPDescriptor extends RSDPDescriptor with additional fields. It is used
// when RSDPDescriptor.revision > 1.
type ExtRSDPDescriptor struct {
	RSDPDescriptor

	// The size of the 64-bit root system descriptor table.
	Length uint32

	// Physical address of 64-bit root system descriptor table.
	XSDTAddr uint64

	// A value that when added to the sum of all other bytes contained in
	// this descriptor should result in the value 0.
	ExtendedChecksum uint8

	_ [3]byte
}

// Encoded sizes of the descriptors.
const (
	RSDPSize    = 20
	ExtRSDPSize = 36
)

// Signature is the expected RSDP signature.
var Signature = [8]byte{'R', 'S', 'D', ' ', 'P', 'T', 'R', ' '}

var (
	errBadSignature = &kernel.Error{Module: "acpi", Message: "RSDP signature mismatch"}
	errBadChecksum  = &kernel.Error{Module: "acpi", Message: "RSDP checksum mismatch"}
	errTruncated    = &kernel.Error{Module: "acpi", Message: "RSDP truncated"}
)

// Checksum returns the 8-bit sum of b.
func Checksum(b []byte) uint8 {
	var sum uint8
	for _, v := range b {
		sum += v
	}
	return sum
}

// Seal fills in both checksums of desc so the encoded descriptor validates.
func Seal(desc *ExtRSDPDescriptor) []byte {
	desc.Checksum, desc.ExtendedChecksum = 0, 0

	encoded := encode(desc)
	desc.Checksum = -Checksum(encoded[:RSDPSize])

	encoded = encode(desc)
	desc.ExtendedChecksum = -Checksum(encoded)

	return encode(desc)
}

func encode(desc *ExtRSDPDescriptor) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, desc)
	return buf.Bytes()
}

// ParseRSDP decodes and validates the RSDP stored at the beginning of b.
// ACPI 1.0 descriptors are returned with the extended fields cleared.
func ParseRSDP(b []byte) (*ExtRSDPDescriptor, *kernel.Error) {
	if len(b) < RSDPSize {
		return nil, errTruncated
	}

	var desc ExtRSDPDescriptor
	if err := binary.Read(bytes.NewReader(b[:RSDPSize]), binary.LittleEndian, &desc.RSDPDescriptor); err != nil {
		return nil, errTruncated
	}

	if desc.Signature != Signature {
		return nil, errBadSignature
	}

	if Checksum(b[:RSDPSize]) != 0 {
		return nil, errBadChecksum
	}

	if desc.Revision < 2 {
		return &desc, nil
	}

	if len(b) < ExtRSDPSize {
		return nil, errTruncated
	}

	if err := binary.Read(bytes.NewReader(b[:ExtRSDPSize]), binary.LittleEndian, &desc); err != nil {
		return nil, errTruncated
	}

	if Checksum(b[:ExtRSDPSize]) != 0 {
		return nil, errBadChecksum
	}

	return &desc, nil
}
