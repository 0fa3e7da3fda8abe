// Package efi describes the UEFI boot services consumed by the loader and
// guards access to them across the irreversible ExitBootServices call.
package efi

import "strings"

// Status is an EFI_STATUS code.
type Status uint64

const errorBit = Status(1 << 63)

// EFI_STATUS values returned by the boot services used by the loader.
const (
	Success          Status = 0
	LoadError               = errorBit | 1
	InvalidParameter        = errorBit | 2
	Unsupported             = errorBit | 3
	BufferTooSmall          = errorBit | 5
	DeviceError             = errorBit | 7
	OutOfResources          = errorBit | 9
	NotFound                = errorBit | 14
)

// IsError returns true if the status has the EFI error bit set.
func (s Status) IsError() bool {
	return s&errorBit != 0
}

// String implements fmt.Stringer for Status.
func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case LoadError:
		return "load error"
	case InvalidParameter:
		return "invalid parameter"
	case Unsupported:
		return "unsupported"
	case BufferTooSmall:
		return "buffer too small"
	case DeviceError:
		return "device error"
	case OutOfResources:
		return "out of resources"
	case NotFound:
		return "not found"
	default:
		return "unknown status"
	}
}

// AllocateType is an EFI_ALLOCATE_TYPE.
type AllocateType uint32

// EFI_ALLOCATE_TYPE
const (
	AllocateAnyPages AllocateType = iota
	AllocateMaxAddress
	AllocateAddress
)

// MemoryType is an EFI_MEMORY_TYPE.
type MemoryType uint32

// EFI_MEMORY_TYPE
const (
	ReservedMemoryType MemoryType = iota
	LoaderCode
	LoaderData
	BootServicesCode
	BootServicesData
	RuntimeServicesCode
	RuntimeServicesData
	ConventionalMemory
	UnusableMemory
	ACPIReclaimMemory
	ACPIMemoryNVS
	MemoryMappedIO
	MemoryMappedIOPortSpace
	PalCode
	PersistentMemory
	maxMemoryType
)

var memoryTypeNames = [maxMemoryType]string{
	"reserved",
	"loader code",
	"loader data",
	"boot services code",
	"boot services data",
	"runtime services code",
	"runtime services data",
	"conventional",
	"unusable",
	"ACPI (reclaimable)",
	"ACPI NVS",
	"MMIO",
	"MMIO port space",
	"PAL code",
	"persistent",
}

// String implements fmt.Stringer for MemoryType.
func (t MemoryType) String() string {
	if t >= maxMemoryType {
		return "unknown"
	}
	return memoryTypeNames[t]
}

// ParseMemoryType returns the MemoryType whose String form matches name,
// ignoring case.
func ParseMemoryType(name string) (MemoryType, bool) {
	for t, typeName := range memoryTypeNames {
		if strings.EqualFold(typeName, name) {
			return MemoryType(t), true
		}
	}
	return maxMemoryType, false
}

// Usable returns true for memory the kernel may reuse once boot services have
// been retired.
func (t MemoryType) Usable() bool {
	switch t {
	case ConventionalMemory, BootServicesCode, BootServicesData:
		return true
	default:
		return false
	}
}

// MemoryAttribute holds the EFI_MEMORY_* attribute bits of a descriptor.
type MemoryAttribute uint64

// EFI memory attributes.
const (
	MemoryUC           MemoryAttribute = 0x1
	MemoryWC           MemoryAttribute = 0x2
	MemoryWT           MemoryAttribute = 0x4
	MemoryWB           MemoryAttribute = 0x8
	MemoryUCE          MemoryAttribute = 0x10
	MemoryWP           MemoryAttribute = 0x1000
	MemoryRP           MemoryAttribute = 0x2000
	MemoryXP           MemoryAttribute = 0x4000
	MemoryNV           MemoryAttribute = 0x8000
	MemoryMoreReliable MemoryAttribute = 0x10000
	MemoryRO           MemoryAttribute = 0x20000
	MemoryRuntime      MemoryAttribute = 1 << 63
)

// MemoryDescriptor mirrors EFI_MEMORY_DESCRIPTOR. Firmware may report a
// descriptor size larger than this structure; descriptors must always be
// accessed using the reported stride.
type MemoryDescriptor struct {
	Type          MemoryType
	_             uint32
	PhysicalStart uint64
	VirtualStart  uint64
	NumberOfPages uint64
	Attribute     MemoryAttribute
}

// MemoryDescriptorSize is the size of MemoryDescriptor in bytes.
const MemoryDescriptorSize = 40

// GUID is an EFI_GUID.
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// Configuration table GUIDs.
var (
	ACPI20TableGUID = GUID{0x8868e871, 0xe4f1, 0x11d3, [8]byte{0xbc, 0x22, 0x00, 0x80, 0xc7, 0x3c, 0x88, 0x81}}
	ACPITableGUID   = GUID{0xeb9d2d30, 0x2d88, 0x11d3, [8]byte{0x9a, 0x16, 0x00, 0x90, 0x27, 0x3f, 0xc1, 0x4d}}
)
