package efi

import (
	"testing"
	"unsafe"
)

func TestMemoryDescriptorLayout(t *testing.T) {
	var desc MemoryDescriptor

	if got := unsafe.Sizeof(desc); got != MemoryDescriptorSize {
		t.Fatalf("expected MemoryDescriptor to be %d bytes; got %d", MemoryDescriptorSize, got)
	}

	specs := []struct {
		field string
		got   uintptr
		exp   uintptr
	}{
		{"PhysicalStart", unsafe.Offsetof(desc.PhysicalStart), 8},
		{"VirtualStart", unsafe.Offsetof(desc.VirtualStart), 16},
		{"NumberOfPages", unsafe.Offsetof(desc.NumberOfPages), 24},
		{"Attribute", unsafe.Offsetof(desc.Attribute), 32},
	}

	for _, spec := range specs {
		if spec.got != spec.exp {
			t.Errorf("expected %s at offset %d; got %d", spec.field, spec.exp, spec.got)
		}
	}
}

func TestMemoryTypeString(t *testing.T) {
	specs := []struct {
		t   MemoryType
		exp string
	}{
		{ReservedMemoryType, "reserved"},
		{LoaderData, "loader data"},
		{ConventionalMemory, "conventional"},
		{ACPIReclaimMemory, "ACPI (reclaimable)"},
		{PersistentMemory, "persistent"},
		{MemoryType(0xff), "unknown"},
	}

	for specIndex, spec := range specs {
		if got := spec.t.String(); got != spec.exp {
			t.Errorf("[spec %d] expected %q; got %q", specIndex, spec.exp, got)
		}
	}
}

func TestMemoryTypeUsable(t *testing.T) {
	for memType := ReservedMemoryType; memType < maxMemoryType; memType++ {
		exp := memType == ConventionalMemory || memType == BootServicesCode || memType == BootServicesData
		if got := memType.Usable(); got != exp {
			t.Errorf("expected %v.Usable() to be %t", memType, exp)
		}
	}
}

func TestParseMemoryType(t *testing.T) {
	for memType := ReservedMemoryType; memType < maxMemoryType; memType++ {
		got, ok := ParseMemoryType(memType.String())
		if !ok || got != memType {
			t.Errorf("expected %q to parse as %d; got %d, %t", memType.String(), memType, got, ok)
		}
	}

	if got, ok := ParseMemoryType("Boot Services Data"); !ok || got != BootServicesData {
		t.Errorf("expected case-insensitive match; got %d, %t", got, ok)
	}

	if _, ok := ParseMemoryType("swap"); ok {
		t.Error("expected unknown name to be rejected")
	}
}

func TestStatus(t *testing.T) {
	if Success.IsError() {
		t.Fatal("expected Success not to be an error")
	}

	for _, status := range []Status{LoadError, InvalidParameter, Unsupported, BufferTooSmall, DeviceError, OutOfResources, NotFound} {
		if !status.IsError() {
			t.Errorf("expected %v to be an error", status)
		}
		if status.String() == "unknown status" {
			t.Errorf("expected status 0x%x to have a name", uint64(status))
		}
	}

	if got := Status(42).String(); got != "unknown status" {
		t.Fatalf("expected unknown status; got %q", got)
	}
}

func TestStatusError(t *testing.T) {
	specs := []struct {
		status Status
		exp    error
	}{
		{OutOfResources, ErrOutOfResources},
		{NotFound, ErrNotFound},
		{DeviceError, errServiceFailed},
	}

	if statusError(Success) != nil {
		t.Fatal("expected no error for Success")
	}

	for _, spec := range specs {
		if got := statusError(spec.status); got != spec.exp {
			t.Errorf("expected %v to map to %v; got %v", spec.status, spec.exp, got)
		}
	}
}

func TestStateString(t *testing.T) {
	for state, exp := range map[State]string{
		FirmwareActive:  "firmware active",
		Transitioning:   "transitioning",
		FirmwareRetired: "firmware retired",
		State(9):        "unknown",
	} {
		if got := state.String(); got != exp {
			t.Errorf("expected %q; got %q", exp, got)
		}
	}
}
