package loader

import "ailiceos/kernel/mm/vmm"

// Machine is the CPU state the loader manipulates. cpu.Native drives the
// real registers; efisim.Firmware simulates them.
type Machine interface {
	vmm.MMU
	vmm.ControlRegisters

	// EnableNoExecute sets EFER.NXE so that no-execute leaf entries are
	// honored instead of faulting as reserved bits.
	EnableNoExecute()

	// Jump transfers control to entry passing arg as its only argument.
	Jump(entry, arg uintptr)
}
