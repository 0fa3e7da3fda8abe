// Package kmain contains the entry point of the stub kernel started by the
// loader.
package kmain

import (
	"ailiceos/bootinfo"
	"ailiceos/efi"
	"ailiceos/kernel"
	"ailiceos/kernel/cpu"
	"ailiceos/kernel/driver/uart"
	"ailiceos/kernel/kfmt"
	"ailiceos/kernel/mm"
	"io"
)

var (
	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}

	// consoleFn returns the kernel console. Overridden by tests which
	// cannot perform port IO.
	consoleFn = func() io.Writer { return uart.New(uart.COM1) }

	// idleFn halts the CPU until the next interrupt. It returns false to
	// leave the idle loop, which only tests do.
	idleFn = func() bool {
		cpu.Halt()
		return true
	}

	panicFn = kfmt.Panic
)

// Kmain is the kernel entry point the loader jumps to. bootInfoPtr is the
// physical address of the bootinfo.BootInfo; the loader leaves physical
// memory identity-mapped.
//
// Kmain is not expected to return. If it does, the CPU is halted.
//
//go:noinline
func Kmain(bootInfoPtr uintptr) {
	kfmt.SetOutputSink(consoleFn())

	Run(bootinfo.FromAddress(bootInfoPtr), mm.IdentityMapped{})

	for idleFn() {
	}

	panicFn(errKmainReturned)
}

// Run prints the greeting and a summary of the boot info. The memory map is
// read through phys.
func Run(info *bootinfo.BootInfo, phys mm.PhysicalMemory) {
	kfmt.Printf("I'm from Kernel!\n")

	var descriptors, usablePages uint64
	info.VisitMemRegions(phys, func(desc *efi.MemoryDescriptor) bool {
		descriptors++
		if desc.Type.Usable() || desc.Type == efi.LoaderCode || desc.Type == efi.LoaderData {
			usablePages += desc.NumberOfPages
		}
		return true
	})

	kfmt.Printf("[kmain] memory map: %d descriptor(s), %d KiB available\n", descriptors, usablePages<<mm.PageShift>>10)
	kfmt.Printf("[kmain] physical memory offset: 0x%x\n", info.PhysicalMemoryOffset)
	if info.ACPI2RSDPAddr != 0 {
		kfmt.Printf("[kmain] ACPI2 RSDP at 0x%x\n", info.ACPI2RSDPAddr)
	}
}
