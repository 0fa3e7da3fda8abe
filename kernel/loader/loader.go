// Package loader loads the kernel image into the address space set up by the
// firmware, retires the firmware boot services and jumps to the kernel.
package loader

import (
	"ailiceos/efi"
	"ailiceos/kernel"
	"ailiceos/kernel/acpi"
	"ailiceos/kernel/cpu"
	"ailiceos/kernel/driver/uart"
	"ailiceos/kernel/image"
	"ailiceos/kernel/kfmt"
	"ailiceos/kernel/mm"
	"ailiceos/kernel/mm/pmm"
	"ailiceos/kernel/mm/pmm/allocator"
	"ailiceos/kernel/mm/vmm"
	"io"
)

// Boot runs the loader on the real machine. It never returns: control either
// passes to the kernel or the CPU is halted with a diagnostic.
func Boot(fw efi.BootServices, cfg Config) {
	kfmt.Panic(Run(fw, mm.IdentityMapped{}, cpu.Native{}, uart.New(uart.COM1), cfg))
}

// Run executes the boot sequence against fw. Physical memory is accessed
// through phys and CPU state through machine. Console output goes to the
// firmware console and, if not nil, to serial, which keeps working after the
// firmware is retired.
//
// The steps are: locate the ACPI RSDP, read and parse the kernel, reserve
// the boot info frame, map the kernel, reserve the memory map buffer, exit
// boot services and dispatch. Any failure aborts the sequence and is
// returned; nothing is retried except the exit itself. Run always returns an
// error: on success the kernel never gives control back, so reaching the end
// yields ErrEntryReturned.
func Run(fw efi.BootServices, phys mm.PhysicalMemory, machine Machine, serial io.Writer, cfg Config) *kernel.Error {
	session := efi.NewSession(fw, phys)
	setConsole(session, serial)

	kfmt.Printf("[loader] AiliceOS UEFI loader\n")

	rsdpAddr := findRSDP(session)

	kfmt.Printf("[loader] loading %s\n", cfg.KernelPath)
	data, err := session.ReadFile(cfg.KernelPath)
	if err != nil {
		return err
	}

	img, err := image.Parse(data)
	if err != nil {
		return err
	}
	kfmt.Printf("[loader] kernel entry 0x%x, %d loadable segment(s)\n", img.Entry, len(img.Segments))

	frameAlloc := allocator.NewFirmwareAllocator(session)
	bootInfoFrame, err := frameAlloc.AllocFrame()
	if err != nil {
		return err
	}

	arena := pmm.NewArena(phys, frameAlloc.AllocFrame)
	pt := vmm.NewPageTable(arena, machine)
	mapper := NewMapper(pt, machine)
	if err = mapper.MapImage(img); err != nil {
		return err
	}

	entryPhys, err := pt.Translate(img.Entry)
	if err != nil {
		return err
	}
	kfmt.Printf("[loader] mapped %d page(s) into %d frame(s) of %d allocated; entry backed by 0x%x\n",
		mapper.MappedPages(), arena.OwnedCount(), frameAlloc.AllocCount(), entryPhys)

	if err = session.PrepareMemoryMap(cfg.MemoryMapSlack); err != nil {
		return err
	}

	kfmt.Printf("[loader] exiting boot services\n")
	mmap, err := session.ExitBootServices()
	if err != nil {
		return err
	}
	kfmt.Printf("[loader] memory map: %d descriptor(s), %d page(s)\n", mmap.Len(), mmap.TotalPages())

	return NewDispatcher(machine, phys, bootInfoFrame, cfg.PhysicalMemoryOffset, rsdpAddr).Dispatch(img.Entry, mmap)
}

// setConsole attaches the firmware console and serial to kfmt.
func setConsole(session *efi.Session, serial io.Writer) {
	var sink io.Writer = efi.Console{Session: session}
	if serial != nil {
		sink = io.MultiWriter(sink, serial)
	}
	kfmt.SetOutputSink(sink)
}

// findRSDP returns the address of the ACPI 2.0 RSDP, or 0 if the firmware
// publishes none or the published one fails validation. Either case is
// reported but does not stop the boot.
func findRSDP(session *efi.Session) uint64 {
	rsdpAddr, err := session.ConfigurationTable(efi.ACPI20TableGUID)
	if err != nil {
		kfmt.Printf("[loader] warning: no ACPI 2.0 RSDP published by the firmware\n")
		return 0
	}

	frame := mm.FrameFromAddress(uintptr(rsdpAddr))
	offset := rsdpAddr - uint64(frame.Address())
	region := session.Physical().RegionBytes(frame, mm.PagesFor(offset+acpi.ExtRSDPSize))

	if _, err = acpi.ParseRSDP(region[offset:]); err != nil {
		kfmt.Printf("[loader] warning: ACPI RSDP at 0x%x is invalid: %s\n", rsdpAddr, err.Error())
		return 0
	}

	kfmt.Printf("[loader] ACPI2 RSDP address is 0x%x\n", rsdpAddr)
	return rsdpAddr
}
