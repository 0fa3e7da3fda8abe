package vmm

import (
	"ailiceos/kernel"
	"ailiceos/kernel/cpu"
	"ailiceos/kernel/kfmt"
)

// ControlRegisters gives access to CR0.
type ControlRegisters interface {
	ReadCR0() uint64
	WriteCR0(value uint64)
}

// WriteProtectGuard keeps CR0.WP cleared while the firmware's read-only page
// tables are being edited. Release must be called on every exit path,
// normally with defer.
type WriteProtectGuard struct {
	regs     ControlRegisters
	restore  bool
	released bool
}

// DisableWriteProtect clears CR0.WP and returns the guard that restores it.
// If write protection was already off, Release leaves it off.
func DisableWriteProtect(regs ControlRegisters) *WriteProtectGuard {
	cr0 := regs.ReadCR0()
	guard := &WriteProtectGuard{regs: regs, restore: cr0&cpu.CR0WriteProtect != 0}
	if guard.restore {
		regs.WriteCR0(cr0 &^ cpu.CR0WriteProtect)
	}

	return guard
}

// Release restores CR0.WP. Calling it more than once has no effect.
func (g *WriteProtectGuard) Release() {
	if g.released {
		return
	}
	g.released = true

	if g.restore {
		g.regs.WriteCR0(g.regs.ReadCR0() | cpu.CR0WriteProtect)
	}
}

// Edit runs fn with write protection disabled and restores it afterwards,
// also when fn fails. The root table must still be the active one once fn
// returns; otherwise ErrRootRelocated is reported.
func (pt *PageTable) Edit(regs ControlRegisters, fn func() *kernel.Error) *kernel.Error {
	guard := DisableWriteProtect(regs)
	defer guard.Release()

	err := fn()

	if active := pt.mmu.ActivePDT() & ptePhysPageMask; active != pt.rootFrame.Address() {
		kfmt.Printf("[vmm] root table moved from 0x%x to 0x%x\n", pt.rootFrame.Address(), active)
		if err == nil {
			err = ErrRootRelocated
		}
	}

	return err
}
