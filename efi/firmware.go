package efi

// BootServices is the subset of the UEFI boot and console services used by
// the loader. Implementations wrap the firmware's EFI_SYSTEM_TABLE; the
// efisim package provides a simulated one.
type BootServices interface {
	// AllocatePages calls EFI_BOOT_SERVICES.AllocatePages() and returns
	// the physical address of the first allocated page.
	AllocatePages(allocType AllocateType, memType MemoryType, pages uint64) (uint64, Status)

	// GetMemoryMap calls EFI_BOOT_SERVICES.GetMemoryMap() writing the
	// descriptors to buf. If buf is too small, BufferTooSmall is returned
	// together with the required size.
	GetMemoryMap(buf []byte) (mapSize, mapKey, descSize uint64, status Status)

	// ExitBootServices calls EFI_BOOT_SERVICES.ExitBootServices().
	ExitBootServices(mapKey uint64) Status

	// ConfigurationTable looks up the vendor table registered under guid
	// in the system configuration table.
	ConfigurationTable(guid GUID) (uint64, bool)

	// ReadFile reads a file from the volume the loader was started from.
	ReadFile(path string) ([]byte, Status)

	// OutputString writes s to the firmware console.
	OutputString(s string) Status
}
