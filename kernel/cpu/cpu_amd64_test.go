package cpu

import "testing"

func TestControlBits(t *testing.T) {
	specs := []struct {
		name string
		got  uint64
		exp  uint64
	}{
		{"CR0.WP", CR0WriteProtect, 0x10000},
		{"EFER.NXE", EFERNoExecuteEnable, 0x800},
		{"EFER", uint64(MSREFER), 0xC0000080},
	}

	for specIndex, spec := range specs {
		if spec.got != spec.exp {
			t.Errorf("[spec %d] expected %s to be 0x%x; got 0x%x", specIndex, spec.name, spec.exp, spec.got)
		}
	}
}
