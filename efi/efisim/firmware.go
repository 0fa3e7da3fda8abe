// Package efisim simulates the UEFI boot environment on the host: physical
// memory, page allocation, the memory map and its exit semantics, plus the
// control registers the loader touches. It lets the loader pipeline run
// unmodified inside tests and the loadsim tool.
package efisim

import (
	"ailiceos/efi"
	"ailiceos/kernel/acpi"
	"ailiceos/kernel/mm"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

// DefaultDescriptorSize matches the stride reported by common firmware,
// which is larger than efi.MemoryDescriptorSize.
const DefaultDescriptorSize = 48

// Region describes a physical memory range present before the loader runs.
type Region struct {
	Start uint64
	Pages uint64
	Type  efi.MemoryType
}

// Config describes the simulated machine.
type Config struct {
	// RAMSize is the amount of physical memory in bytes.
	RAMSize uint64

	// Reserved lists firmware-owned regions.
	Reserved []Region

	// DescriptorSize is the memory map stride; DefaultDescriptorSize if zero.
	DescriptorSize uint64

	// ACPI installs an ACPI 2.0 RSDP in the configuration table.
	ACPI bool

	// Files holds the contents of the boot volume.
	Files map[string][]byte

	// FailAllocationAt makes the n-th and every later AllocatePages call fail
	// with OutOfResources. Zero disables the fault.
	FailAllocationAt int

	// ExitRaces is the number of ExitBootServices calls that lose against
	// a firmware event changing the memory map.
	ExitRaces int
}

var (
	errBadRAMSize    = errors.New("efisim: RAM size must be a non-zero multiple of the page size")
	errRegionOutside = errors.New("efisim: reserved region outside of RAM")
)

// Firmware is a simulated UEFI firmware. It implements efi.BootServices,
// mm.PhysicalMemory and loader.Machine.
type Firmware struct {
	cfg     Config
	ram     []byte
	release func() error

	descs    []efi.MemoryDescriptor
	mapKey   uint64
	descSize uint64
	tables   map[efi.GUID]uint64
	console  bytes.Buffer

	allocCalls     int
	exitCalls      int
	exited         bool
	callsAfterExit int

	cpu cpuState
}

// New creates a simulated machine.
func New(cfg Config) (*Firmware, error) {
	if cfg.RAMSize == 0 || cfg.RAMSize%uint64(mm.PageSize) != 0 {
		return nil, errBadRAMSize
	}

	ram, release, err := newRAM(cfg.RAMSize)
	if err != nil {
		return nil, fmt.Errorf("efisim: reserve RAM: %w", err)
	}

	f := &Firmware{
		cfg:      cfg,
		ram:      ram,
		release:  release,
		descSize: cfg.DescriptorSize,
		tables:   make(map[efi.GUID]uint64),
	}
	if f.descSize == 0 {
		f.descSize = DefaultDescriptorSize
	}

	f.descs = []efi.MemoryDescriptor{{
		Type:          efi.ConventionalMemory,
		NumberOfPages: cfg.RAMSize >> mm.PageShift,
		Attribute:     efi.MemoryWB,
	}}

	for _, region := range cfg.Reserved {
		if region.Pages == 0 || region.Start%uint64(mm.PageSize) != 0 ||
			region.Start+region.Pages<<mm.PageShift > cfg.RAMSize {
			_ = f.Close()
			return nil, errRegionOutside
		}
		f.carve(region.Start, region.Pages, region.Type)
	}

	// The firmware's own root page table.
	root, ok := f.allocate(1, efi.BootServicesData)
	if !ok {
		_ = f.Close()
		return nil, errors.New("efisim: no memory left for the root page table")
	}
	f.cpu.reset(uintptr(root))

	if cfg.ACPI {
		if err := f.installACPI(); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	f.snapshotRoot()
	return f, nil
}

// Close releases the simulated RAM.
func (f *Firmware) Close() error {
	if f.release == nil {
		return nil
	}

	err := f.release()
	f.release, f.ram = nil, nil
	return err
}

func (f *Firmware) installACPI() error {
	addr, ok := f.allocate(1, efi.ACPIReclaimMemory)
	if !ok {
		return errors.New("efisim: no memory left for ACPI tables")
	}

	rsdp := acpi.Seal(&acpi.ExtRSDPDescriptor{
		RSDPDescriptor: acpi.RSDPDescriptor{
			Signature: acpi.Signature,
			OEMID:     [6]byte{'E', 'F', 'I', 'S', 'I', 'M'},
			Revision:  2,
			RSDTAddr:  uint32(addr + 0x100),
		},
		Length:   acpi.ExtRSDPSize,
		XSDTAddr: addr + 0x200,
	})
	copy(f.ram[addr:], rsdp)

	f.tables[efi.ACPI20TableGUID] = addr
	f.tables[efi.ACPITableGUID] = addr
	return nil
}

// carve changes the type of [start, start+pages) splitting descriptors as
// needed. The range must lie in RAM.
func (f *Firmware) carve(start, pages uint64, memType efi.MemoryType) {
	end := start + pages<<mm.PageShift

	var out []efi.MemoryDescriptor
	for _, desc := range f.descs {
		descEnd := desc.PhysicalStart + desc.NumberOfPages<<mm.PageShift
		if end <= desc.PhysicalStart || start >= descEnd {
			out = append(out, desc)
			continue
		}

		if desc.PhysicalStart < start {
			head := desc
			head.NumberOfPages = (start - desc.PhysicalStart) >> mm.PageShift
			out = append(out, head)
		}

		mid := desc
		mid.Type = memType
		mid.PhysicalStart = max(start, desc.PhysicalStart)
		mid.NumberOfPages = (min(end, descEnd) - mid.PhysicalStart) >> mm.PageShift
		out = append(out, mid)

		if descEnd > end {
			tail := desc
			tail.PhysicalStart = end
			tail.NumberOfPages = (descEnd - end) >> mm.PageShift
			out = append(out, tail)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].PhysicalStart < out[j].PhysicalStart })
	f.descs = out
	f.mapKey++
}

// allocate carves pages from the top of the highest conventional region
// large enough to hold them, like EDK2 does.
func (f *Firmware) allocate(pages uint64, memType efi.MemoryType) (uint64, bool) {
	for i := len(f.descs) - 1; i >= 0; i-- {
		desc := f.descs[i]
		if desc.Type != efi.ConventionalMemory || desc.NumberOfPages < pages {
			continue
		}

		start := desc.PhysicalStart + (desc.NumberOfPages-pages)<<mm.PageShift
		f.carve(start, pages, memType)
		clear(f.ram[start : start+pages<<mm.PageShift])
		return start, true
	}

	return 0, false
}

// AllocatePages implements efi.BootServices.
func (f *Firmware) AllocatePages(allocType efi.AllocateType, memType efi.MemoryType, pages uint64) (uint64, efi.Status) {
	if f.exited {
		f.callsAfterExit++
		return 0, efi.Unsupported
	}

	f.allocCalls++
	switch {
	case allocType != efi.AllocateAnyPages:
		return 0, efi.Unsupported
	case pages == 0:
		return 0, efi.InvalidParameter
	case f.cfg.FailAllocationAt > 0 && f.allocCalls >= f.cfg.FailAllocationAt:
		return 0, efi.OutOfResources
	}

	addr, ok := f.allocate(pages, memType)
	if !ok {
		return 0, efi.OutOfResources
	}
	return addr, efi.Success
}

// GetMemoryMap implements efi.BootServices.
func (f *Firmware) GetMemoryMap(buf []byte) (uint64, uint64, uint64, efi.Status) {
	if f.exited {
		f.callsAfterExit++
		return 0, 0, 0, efi.InvalidParameter
	}

	size := uint64(len(f.descs)) * f.descSize
	if uint64(len(buf)) < size {
		return size, f.mapKey, f.descSize, efi.BufferTooSmall
	}

	for index, desc := range f.descs {
		entry := buf[uint64(index)*f.descSize : uint64(index+1)*f.descSize]
		clear(entry)
		binary.LittleEndian.PutUint32(entry[0:], uint32(desc.Type))
		binary.LittleEndian.PutUint64(entry[8:], desc.PhysicalStart)
		binary.LittleEndian.PutUint64(entry[16:], desc.VirtualStart)
		binary.LittleEndian.PutUint64(entry[24:], desc.NumberOfPages)
		binary.LittleEndian.PutUint64(entry[32:], uint64(desc.Attribute))
	}

	return size, f.mapKey, f.descSize, efi.Success
}

// ExitBootServices implements efi.BootServices.
func (f *Firmware) ExitBootServices(mapKey uint64) efi.Status {
	if f.exited {
		f.callsAfterExit++
		return efi.InvalidParameter
	}

	f.exitCalls++
	if mapKey != f.mapKey {
		return efi.InvalidParameter
	}

	if f.cfg.ExitRaces > 0 {
		// A timer event allocates a pool and a buffer between the
		// caller's GetMemoryMap and this call.
		f.cfg.ExitRaces--
		f.allocate(1, efi.BootServicesData)
		f.allocate(1, efi.BootServicesCode)
		return efi.InvalidParameter
	}

	f.checkRoot()
	f.exited = true
	return efi.Success
}

// ConfigurationTable implements efi.BootServices.
func (f *Firmware) ConfigurationTable(guid efi.GUID) (uint64, bool) {
	if f.exited {
		f.callsAfterExit++
		return 0, false
	}

	addr, ok := f.tables[guid]
	return addr, ok
}

// ReadFile implements efi.BootServices.
func (f *Firmware) ReadFile(path string) ([]byte, efi.Status) {
	if f.exited {
		f.callsAfterExit++
		return nil, efi.Unsupported
	}

	data, ok := f.cfg.Files[path]
	if !ok {
		return nil, efi.NotFound
	}
	return append([]byte(nil), data...), efi.Success
}

// OutputString implements efi.BootServices.
func (f *Firmware) OutputString(s string) efi.Status {
	if f.exited {
		f.callsAfterExit++
		return efi.Unsupported
	}

	f.console.WriteString(s)
	return efi.Success
}

// FrameBytes implements mm.PhysicalMemory.
func (f *Firmware) FrameBytes(frame mm.Frame) []byte {
	return f.RegionBytes(frame, 1)
}

// RegionBytes implements mm.PhysicalMemory. Accessing memory outside of RAM
// panics, much like a machine check on real hardware.
func (f *Firmware) RegionBytes(start mm.Frame, count uint64) []byte {
	from := uint64(start.Address())
	to := from + count<<mm.PageShift
	if to > uint64(len(f.ram)) || to < from {
		panic(fmt.Sprintf("efisim: physical access [0x%x, 0x%x) outside of RAM", from, to))
	}
	return f.ram[from:to:to]
}

// Console returns everything written to the firmware console.
func (f *Firmware) Console() string {
	return f.console.String()
}

// Exited returns true once ExitBootServices has succeeded.
func (f *Firmware) Exited() bool {
	return f.exited
}

// AllocCalls returns the number of AllocatePages calls made before exit.
func (f *Firmware) AllocCalls() int {
	return f.allocCalls
}

// ExitCalls returns the number of ExitBootServices calls made before exit.
func (f *Firmware) ExitCalls() int {
	return f.exitCalls
}

// CallsAfterExit returns the number of boot service calls attempted after a
// successful ExitBootServices.
func (f *Firmware) CallsAfterExit() int {
	return f.callsAfterExit
}

// RAMPages returns the number of pages of simulated physical memory.
func (f *Firmware) RAMPages() uint64 {
	return uint64(len(f.ram)) >> mm.PageShift
}

// Regions returns a copy of the current memory map.
func (f *Firmware) Regions() []efi.MemoryDescriptor {
	return append([]efi.MemoryDescriptor(nil), f.descs...)
}
