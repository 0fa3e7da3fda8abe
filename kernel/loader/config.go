package loader

const (
	// DefaultKernelPath is the location of the kernel on the boot volume.
	DefaultKernelPath = `\EFI\kernel\kernel.elf`

	// DefaultPhysicalMemoryOffset is the virtual address where the kernel
	// expects all of physical memory to be mapped.
	DefaultPhysicalMemoryOffset = uint64(0xFFFF800000000000)

	// DefaultMemoryMapSlack is the number of extra descriptors reserved in
	// the memory map buffer.
	DefaultMemoryMapSlack = uint64(8)
)

// Config holds the loader settings.
type Config struct {
	KernelPath           string
	PhysicalMemoryOffset uint64
	MemoryMapSlack       uint64
}

// DefaultConfig returns the settings used by the firmware entry point.
func DefaultConfig() Config {
	return Config{
		KernelPath:           DefaultKernelPath,
		PhysicalMemoryOffset: DefaultPhysicalMemoryOffset,
		MemoryMapSlack:       DefaultMemoryMapSlack,
	}
}
