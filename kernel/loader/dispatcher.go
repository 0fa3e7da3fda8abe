package loader

import (
	"ailiceos/bootinfo"
	"ailiceos/efi"
	"ailiceos/kernel"
	"ailiceos/kernel/kfmt"
	"ailiceos/kernel/mm"
)

// ErrEntryReturned is reported if control comes back from the kernel entry
// point.
var ErrEntryReturned = &kernel.Error{Module: "loader", Message: "kernel entry point returned"}

// Dispatcher hands control to the kernel.
type Dispatcher struct {
	machine Machine
	phys    mm.PhysicalMemory

	// frame is a loader data frame reserved for the boot info while the
	// firmware was still active.
	frame mm.Frame

	physicalMemoryOffset uint64
	rsdpAddr             uint64
}

// NewDispatcher creates a dispatcher that writes the boot info into frame.
func NewDispatcher(machine Machine, phys mm.PhysicalMemory, frame mm.Frame, physicalMemoryOffset, rsdpAddr uint64) *Dispatcher {
	return &Dispatcher{
		machine:              machine,
		phys:                 phys,
		frame:                frame,
		physicalMemoryOffset: physicalMemoryOffset,
		rsdpAddr:             rsdpAddr,
	}
}

// Dispatch builds the boot info for mmap and jumps to entry with its
// physical address as the only argument. It returns only if the kernel
// does, in which case the result is ErrEntryReturned.
func (d *Dispatcher) Dispatch(entry uintptr, mmap *efi.MemoryMap) *kernel.Error {
	info := bootinfo.New(mmap, d.physicalMemoryOffset, d.rsdpAddr)
	info.Encode(d.phys.FrameBytes(d.frame))

	kfmt.Printf("[loader] jumping to kernel at 0x%x (boot info at 0x%x)\n", entry, d.frame.Address())
	d.machine.Jump(entry, d.frame.Address())

	return ErrEntryReturned
}
