// Package uart implements a polled 16550 serial console. Unlike the firmware
// console it keeps working after boot services have been retired, so it is
// the one output channel available on both sides of the handoff.
package uart

import "ailiceos/kernel/cpu"

// COM1 is the I/O base port of the first serial controller.
const COM1 = uint16(0x3F8)

// Register offsets relative to the base port.
const (
	regData        = 0
	regIntEnable   = 1
	regFIFOControl = 2
	regLineControl = 3
	regModemCtrl   = 4
	regLineStatus  = 5
)

const (
	lineControlDLAB   = 0x80
	lineControl8N1    = 0x03
	lineStatusTxEmpty = 0x20
	fifoEnableClear   = 0xC7
	modemDTRRTSOut2   = 0x0B

	// divisor for 38400 baud with the standard 115200 base clock
	baudDivisor = 3

	// maxTxSpins bounds the wait for the transmit holding register.
	maxTxSpins = 1 << 16
)

var (
	// the following functions are mocked by tests and are automatically
	// inlined by the compiler.
	portWriteByteFn = cpu.PortWriteByte
	portReadByteFn  = cpu.PortReadByte
)

// Port is a 16550-compatible serial port.
type Port struct {
	base uint16
}

// New initializes the serial controller at base for 38400 8N1 operation.
func New(base uint16) *Port {
	p := &Port{base: base}

	portWriteByteFn(base+regIntEnable, 0x00)
	portWriteByteFn(base+regLineControl, lineControlDLAB)
	portWriteByteFn(base+regData, baudDivisor&0xff)
	portWriteByteFn(base+regIntEnable, baudDivisor>>8)
	portWriteByteFn(base+regLineControl, lineControl8N1)
	portWriteByteFn(base+regFIFOControl, fifoEnableClear)
	portWriteByteFn(base+regModemCtrl, modemDTRRTSOut2)

	return p
}

// Write implements io.Writer. Line feeds are expanded to CR LF.
func (p *Port) Write(b []byte) (int, error) {
	for _, ch := range b {
		if ch == '\n' {
			p.writeByte('\r')
		}
		p.writeByte(ch)
	}

	return len(b), nil
}

func (p *Port) writeByte(ch byte) {
	// A missing or wedged UART must not hang the boot; give up waiting and
	// drop the byte.
	for spins := 0; spins < maxTxSpins; spins++ {
		if portReadByteFn(p.base+regLineStatus)&lineStatusTxEmpty != 0 {
			portWriteByteFn(p.base+regData, ch)
			return
		}
	}
}
