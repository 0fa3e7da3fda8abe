package efisim

import (
	"ailiceos/efi"
	"ailiceos/kernel/acpi"
	"ailiceos/kernel/mm"
	"encoding/binary"
	"testing"
)

const testRAM = 16 << 20

func newTestFirmware(t *testing.T, cfg Config) *Firmware {
	t.Helper()

	if cfg.RAMSize == 0 {
		cfg.RAMSize = testRAM
	}

	f, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func totalPages(descs []efi.MemoryDescriptor) uint64 {
	var total uint64
	for _, desc := range descs {
		total += desc.NumberOfPages
	}
	return total
}

func TestNewErrors(t *testing.T) {
	specs := []struct {
		name string
		cfg  Config
	}{
		{"zero RAM", Config{}},
		{"unaligned RAM", Config{RAMSize: 4097}},
		{"region outside RAM", Config{RAMSize: testRAM, Reserved: []Region{{Start: testRAM, Pages: 1}}}},
		{"unaligned region", Config{RAMSize: testRAM, Reserved: []Region{{Start: 123, Pages: 1}}}},
	}

	for _, spec := range specs {
		t.Run(spec.name, func(t *testing.T) {
			if _, err := New(spec.cfg); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestMemoryMapAccounting(t *testing.T) {
	f := newTestFirmware(t, Config{
		Reserved: []Region{
			{Start: 0, Pages: 256, Type: efi.ReservedMemoryType},
			{Start: 0x800000, Pages: 16, Type: efi.RuntimeServicesData},
		},
		ACPI: true,
	})

	if exp, got := f.RAMPages(), totalPages(f.Regions()); got != exp {
		t.Fatalf("expected the memory map to cover %d pages; got %d", exp, got)
	}

	for i := 0; i < 10; i++ {
		if _, status := f.AllocatePages(efi.AllocateAnyPages, efi.LoaderData, uint64(i+1)); status != efi.Success {
			t.Fatalf("unexpected allocation status: %v", status)
		}
	}

	descs := f.Regions()
	if exp, got := f.RAMPages(), totalPages(descs); got != exp {
		t.Fatalf("expected the memory map to cover %d pages after allocations; got %d", exp, got)
	}

	for i := 1; i < len(descs); i++ {
		prevEnd := descs[i-1].PhysicalStart + descs[i-1].NumberOfPages<<mm.PageShift
		if descs[i].PhysicalStart != prevEnd {
			t.Fatalf("expected descriptor %d to start at 0x%x; got 0x%x", i, prevEnd, descs[i].PhysicalStart)
		}
	}
}

func TestAllocatePages(t *testing.T) {
	t.Run("allocations are zeroed and disjoint", func(t *testing.T) {
		f := newTestFirmware(t, Config{})

		a, _ := f.AllocatePages(efi.AllocateAnyPages, efi.LoaderData, 1)
		f.FrameBytes(mm.FrameFromAddress(uintptr(a)))[0] = 0xFF
		b, _ := f.AllocatePages(efi.AllocateAnyPages, efi.LoaderData, 1)

		if a == b {
			t.Fatal("expected distinct allocations")
		}

		if got := f.FrameBytes(mm.FrameFromAddress(uintptr(b)))[0]; got != 0 {
			t.Fatalf("expected a freshly allocated page to be zeroed; got 0x%x", got)
		}
	})

	t.Run("fail from the n-th call", func(t *testing.T) {
		f := newTestFirmware(t, Config{FailAllocationAt: 3})

		for call, exp := range []efi.Status{efi.Success, efi.Success, efi.OutOfResources, efi.OutOfResources} {
			if _, status := f.AllocatePages(efi.AllocateAnyPages, efi.LoaderData, 1); status != exp {
				t.Fatalf("[call %d] expected status %v; got %v", call+1, exp, status)
			}
		}
	})

	t.Run("exhaustion", func(t *testing.T) {
		f := newTestFirmware(t, Config{RAMSize: 4 * uint64(mm.PageSize)})

		if _, status := f.AllocatePages(efi.AllocateAnyPages, efi.LoaderData, 4); status != efi.OutOfResources {
			t.Fatalf("expected OutOfResources; got %v", status)
		}
	})

	t.Run("bad parameters", func(t *testing.T) {
		f := newTestFirmware(t, Config{})

		if _, status := f.AllocatePages(efi.AllocateAddress, efi.LoaderData, 1); status != efi.Unsupported {
			t.Fatalf("expected Unsupported; got %v", status)
		}
		if _, status := f.AllocatePages(efi.AllocateAnyPages, efi.LoaderData, 0); status != efi.InvalidParameter {
			t.Fatalf("expected InvalidParameter; got %v", status)
		}
	})
}

func TestGetMemoryMap(t *testing.T) {
	f := newTestFirmware(t, Config{DescriptorSize: 56})

	size, key, descSize, status := f.GetMemoryMap(nil)
	if status != efi.BufferTooSmall || descSize != 56 {
		t.Fatalf("expected (BufferTooSmall, 56); got (%v, %d)", status, descSize)
	}

	buf := make([]byte, size)
	gotSize, gotKey, _, status := f.GetMemoryMap(buf)
	if status != efi.Success || gotSize != size || gotKey != key {
		t.Fatalf("expected (%d, %d, Success); got (%d, %d, %v)", size, key, gotSize, gotKey, status)
	}

	var total uint64
	for off := uint64(0); off < size; off += descSize {
		total += binary.LittleEndian.Uint64(buf[off+24:])
	}

	if total != f.RAMPages() {
		t.Fatalf("expected descriptors to cover %d pages; got %d", f.RAMPages(), total)
	}
}

func TestExitBootServices(t *testing.T) {
	t.Run("stale key", func(t *testing.T) {
		f := newTestFirmware(t, Config{})
		_, key, _, _ := f.GetMemoryMap(nil)
		f.AllocatePages(efi.AllocateAnyPages, efi.LoaderData, 1)

		if status := f.ExitBootServices(key); status != efi.InvalidParameter {
			t.Fatalf("expected InvalidParameter for a stale map key; got %v", status)
		}
	})

	t.Run("race", func(t *testing.T) {
		f := newTestFirmware(t, Config{ExitRaces: 1})
		_, key, _, _ := f.GetMemoryMap(nil)

		if status := f.ExitBootServices(key); status != efi.InvalidParameter {
			t.Fatalf("expected the first exit to lose the race; got %v", status)
		}

		_, key, _, _ = f.GetMemoryMap(nil)
		if status := f.ExitBootServices(key); status != efi.Success {
			t.Fatalf("expected the second exit to succeed; got %v", status)
		}
	})

	t.Run("services are gone after exit", func(t *testing.T) {
		f := newTestFirmware(t, Config{ACPI: true, Files: map[string][]byte{"k": {1}}})
		_, key, _, _ := f.GetMemoryMap(nil)
		if status := f.ExitBootServices(key); status != efi.Success {
			t.Fatalf("unexpected status %v", status)
		}

		f.AllocatePages(efi.AllocateAnyPages, efi.LoaderData, 1)
		f.GetMemoryMap(nil)
		f.ExitBootServices(key)
		f.ConfigurationTable(efi.ACPI20TableGUID)
		f.ReadFile("k")
		f.OutputString("x")

		if exp, got := 6, f.CallsAfterExit(); got != exp {
			t.Fatalf("expected %d calls after exit to be recorded; got %d", exp, got)
		}
	})
}

func TestACPI(t *testing.T) {
	f := newTestFirmware(t, Config{ACPI: true})

	addr, ok := f.ConfigurationTable(efi.ACPI20TableGUID)
	if !ok {
		t.Fatal("expected an ACPI 2.0 table entry")
	}

	if _, err := acpi.ParseRSDP(f.FrameBytes(mm.FrameFromAddress(uintptr(addr)))); err != nil {
		t.Fatalf("expected the installed RSDP to validate; got %v", err)
	}

	none := newTestFirmware(t, Config{})
	if _, ok := none.ConfigurationTable(efi.ACPI20TableGUID); ok {
		t.Fatal("expected no ACPI table when ACPI is disabled")
	}
}

func TestFilesAndConsole(t *testing.T) {
	f := newTestFirmware(t, Config{Files: map[string][]byte{`\EFI\kernel\kernel.elf`: []byte("ELF")}})

	data, status := f.ReadFile(`\EFI\kernel\kernel.elf`)
	if status != efi.Success || string(data) != "ELF" {
		t.Fatalf("expected (\"ELF\", Success); got (%q, %v)", data, status)
	}

	if _, status = f.ReadFile("missing"); status != efi.NotFound {
		t.Fatalf("expected NotFound; got %v", status)
	}

	f.OutputString("hello\r\n")
	if got := f.Console(); got != "hello\r\n" {
		t.Fatalf("expected console output %q; got %q", "hello\r\n", got)
	}
}

func TestWriteProtectViolations(t *testing.T) {
	f := newTestFirmware(t, Config{})
	root := f.FrameBytes(mm.FrameFromAddress(f.ActivePDT()))

	// writes with protection lifted are fine
	f.WriteCR0(f.ReadCR0() &^ (1 << 16))
	root[0] = 1
	f.WriteCR0(f.ReadCR0() | (1 << 16))

	if got := f.WriteProtectViolations(); got != 0 {
		t.Fatalf("expected no violations; got %d", got)
	}

	// writes while protected are detected at the next control transfer
	root[8] = 1
	f.Jump(0x200000, 0x1000)

	if got := f.WriteProtectViolations(); got != 1 {
		t.Fatalf("expected 1 violation; got %d", got)
	}

	if entry, arg, ok := f.Jumped(); !ok || entry != 0x200000 || arg != 0x1000 {
		t.Fatalf("expected jump to be recorded; got (0x%x, 0x%x, %t)", entry, arg, ok)
	}
}

func TestPhysicalAccessOutsideRAM(t *testing.T) {
	f := newTestFirmware(t, Config{})

	defer func() {
		if recover() == nil {
			t.Fatal("expected access outside of RAM to panic")
		}
	}()

	f.FrameBytes(mm.Frame(f.RAMPages()))
}
