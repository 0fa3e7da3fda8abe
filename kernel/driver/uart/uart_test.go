package uart

import (
	"ailiceos/kernel/cpu"
	"testing"
)

type portWrite struct {
	port uint16
	val  uint8
}

func mockPorts(lineStatus uint8) *[]portWrite {
	var writes []portWrite
	portWriteByteFn = func(port uint16, val uint8) {
		writes = append(writes, portWrite{port, val})
	}
	portReadByteFn = func(port uint16) uint8 {
		return lineStatus
	}
	return &writes
}

func TestNew(t *testing.T) {
	defer func() {
		portWriteByteFn = cpu.PortWriteByte
		portReadByteFn = cpu.PortReadByte
	}()

	writes := mockPorts(lineStatusTxEmpty)
	New(COM1)

	exp := []portWrite{
		{COM1 + 1, 0x00},
		{COM1 + 3, 0x80},
		{COM1 + 0, 0x03},
		{COM1 + 1, 0x00},
		{COM1 + 3, 0x03},
		{COM1 + 2, 0xC7},
		{COM1 + 4, 0x0B},
	}

	if len(*writes) != len(exp) {
		t.Fatalf("expected %d port writes; got %d", len(exp), len(*writes))
	}

	for i, w := range *writes {
		if w != exp[i] {
			t.Errorf("[write %d] expected %+v; got %+v", i, exp[i], w)
		}
	}
}

func TestWrite(t *testing.T) {
	defer func() {
		portWriteByteFn = cpu.PortWriteByte
		portReadByteFn = cpu.PortReadByte
	}()

	t.Run("transmitter ready", func(t *testing.T) {
		writes := mockPorts(lineStatusTxEmpty)
		p := &Port{base: COM1}

		n, err := p.Write([]byte("ok\n"))
		if err != nil || n != 3 {
			t.Fatalf("expected (3, nil); got (%d, %v)", n, err)
		}

		var got []byte
		for _, w := range *writes {
			if w.port != COM1 {
				t.Fatalf("expected writes to the data register; got port 0x%x", w.port)
			}
			got = append(got, w.val)
		}

		if exp := "ok\r\n"; string(got) != exp {
			t.Fatalf("expected %q to be transmitted; got %q", exp, got)
		}
	})

	t.Run("transmitter never ready", func(t *testing.T) {
		writes := mockPorts(0)
		p := &Port{base: COM1}

		if n, _ := p.Write([]byte("lost")); n != 4 {
			t.Fatalf("expected Write to report 4 bytes; got %d", n)
		}

		if len(*writes) != 0 {
			t.Fatalf("expected bytes to be dropped when the UART never becomes ready; got %d writes", len(*writes))
		}
	})
}
