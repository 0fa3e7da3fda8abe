package cpu

const (
	// CR0WriteProtect is the CR0.WP bit. When set, supervisor-mode writes to
	// read-only pages fault.
	CR0WriteProtect = uint64(1 << 16)

	// MSREFER is the extended feature enable register.
	MSREFER = uint32(0xC0000080)

	// EFERNoExecuteEnable is the EFER.NXE bit which enables the use of the
	// no-execute bit in page table entries.
	EFERNoExecuteEnable = uint64(1 << 11)
)

// Halt disables interrupts and stops instruction execution. Halt never
// returns.
func Halt()

// FlushTLBEntry flushes a TLB entry for a particular virtual address.
func FlushTLBEntry(virtAddr uintptr)

// ActivePDT returns the physical address of the currently active page table.
func ActivePDT() uintptr

// ReadCR0 returns the value stored in the CR0 register.
func ReadCR0() uint64

// WriteCR0 stores val in the CR0 register.
func WriteCR0(val uint64)

// ReadMSR returns the contents of the model specific register msr.
func ReadMSR(msr uint32) uint64

// WriteMSR stores val in the model specific register msr.
func WriteMSR(msr uint32, val uint64)

// JumpToEntry transfers control to the code at entry using the SysV calling
// convention, passing arg as the sole argument (RDI). The stack is aligned
// to 16 bytes before the call. JumpToEntry halts the CPU if the callee
// returns.
func JumpToEntry(entry, arg uintptr)

// PortWriteByte writes a uint8 value to the requested port.
func PortWriteByte(port uint16, val uint8)

// PortReadByte reads a uint8 value from the requested port.
func PortReadByte(port uint16) uint8

// EnableNoExecute sets EFER.NXE so page table entries may use the
// no-execute bit.
func EnableNoExecute() {
	if efer := ReadMSR(MSREFER); efer&EFERNoExecuteEnable == 0 {
		WriteMSR(MSREFER, efer|EFERNoExecuteEnable)
	}
}

// Native drives the MMU and control registers of the CPU the loader is
// running on.
type Native struct{}

// ActivePDT implements loader.Machine.
func (Native) ActivePDT() uintptr { return ActivePDT() }

// ReadCR0 implements loader.Machine.
func (Native) ReadCR0() uint64 { return ReadCR0() }

// WriteCR0 implements loader.Machine.
func (Native) WriteCR0(val uint64) { WriteCR0(val) }

// FlushTLBEntry implements loader.Machine.
func (Native) FlushTLBEntry(virtAddr uintptr) { FlushTLBEntry(virtAddr) }

// EnableNoExecute implements loader.Machine.
func (Native) EnableNoExecute() { EnableNoExecute() }

// Jump implements loader.Machine.
func (Native) Jump(entry, arg uintptr) { JumpToEntry(entry, arg) }
