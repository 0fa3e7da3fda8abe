package efisim

import (
	"ailiceos/kernel/cpu"
	"ailiceos/kernel/mm"
	"bytes"
)

const (
	cr0ProtectionEnable = uint64(1 << 0)
	cr0Paging           = uint64(1 << 31)
	eferLongMode        = uint64(0x500)
)

type cpuState struct {
	cr0  uint64
	cr3  uintptr
	efer uint64

	tlbFlushes int

	// rootSnapshot holds the root table contents as of the last time
	// write protection was enabled.
	rootSnapshot []byte
	violations   int

	jumped    bool
	jumpEntry uintptr
	jumpArg   uintptr
	onJump    func(entry, arg uintptr)
}

func (c *cpuState) reset(root uintptr) {
	c.cr0 = cr0ProtectionEnable | cr0Paging | cpu.CR0WriteProtect
	c.cr3 = root
	c.efer = eferLongMode
}

func (f *Firmware) rootBytes() []byte {
	return f.FrameBytes(mm.FrameFromAddress(f.cpu.cr3))
}

func (f *Firmware) snapshotRoot() {
	f.cpu.rootSnapshot = append(f.cpu.rootSnapshot[:0], f.rootBytes()...)
}

// checkRoot records a violation if the root table changed while write
// protection was enabled.
func (f *Firmware) checkRoot() {
	if f.cpu.cr0&cpu.CR0WriteProtect == 0 {
		return
	}

	if !bytes.Equal(f.cpu.rootSnapshot, f.rootBytes()) {
		f.cpu.violations++
		f.snapshotRoot()
	}
}

// ActivePDT implements loader.Machine.
func (f *Firmware) ActivePDT() uintptr {
	return f.cpu.cr3
}

// ReadCR0 implements loader.Machine.
func (f *Firmware) ReadCR0() uint64 {
	return f.cpu.cr0
}

// WriteCR0 implements loader.Machine.
func (f *Firmware) WriteCR0(val uint64) {
	wasProtected := f.cpu.cr0&cpu.CR0WriteProtect != 0
	f.checkRoot()
	f.cpu.cr0 = val

	if !wasProtected && val&cpu.CR0WriteProtect != 0 {
		f.snapshotRoot()
	}
}

// FlushTLBEntry implements loader.Machine.
func (f *Firmware) FlushTLBEntry(_ uintptr) {
	f.cpu.tlbFlushes++
}

// EnableNoExecute implements loader.Machine.
func (f *Firmware) EnableNoExecute() {
	f.cpu.efer |= cpu.EFERNoExecuteEnable
}

// Jump implements loader.Machine. The simulated CPU records the transfer
// and invokes the hook registered with OnJump; then it returns to the caller.
func (f *Firmware) Jump(entry, arg uintptr) {
	f.checkRoot()
	f.cpu.jumped, f.cpu.jumpEntry, f.cpu.jumpArg = true, entry, arg

	if f.cpu.onJump != nil {
		f.cpu.onJump(entry, arg)
	}
}

// OnJump registers a hook invoked when control is transferred to the kernel.
func (f *Firmware) OnJump(fn func(entry, arg uintptr)) {
	f.cpu.onJump = fn
}

// Jumped reports whether control was transferred and to where.
func (f *Firmware) Jumped() (entry, arg uintptr, ok bool) {
	return f.cpu.jumpEntry, f.cpu.jumpArg, f.cpu.jumped
}

// WriteProtected returns true if CR0.WP is set.
func (f *Firmware) WriteProtected() bool {
	return f.cpu.cr0&cpu.CR0WriteProtect != 0
}

// NoExecuteEnabled returns true if EFER.NXE is set.
func (f *Firmware) NoExecuteEnabled() bool {
	return f.cpu.efer&cpu.EFERNoExecuteEnable != 0
}

// TLBFlushes returns the number of FlushTLBEntry calls.
func (f *Firmware) TLBFlushes() int {
	return f.cpu.tlbFlushes
}

// WriteProtectViolations returns the number of times the root page table was
// found modified while write protection was enabled.
func (f *Firmware) WriteProtectViolations() int {
	return f.cpu.violations
}
