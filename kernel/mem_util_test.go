package kernel

import "testing"

func TestFill(t *testing.T) {
	// filling an empty slice should be a no-op
	Fill(nil, 0xAA)

	for pageCount := 1; pageCount <= 10; pageCount++ {
		buf := make([]byte, 4096*pageCount+1)
		Fill(buf, 0xFE)
		Fill(buf[:len(buf)-1], 0x00)

		for i, got := range buf[:len(buf)-1] {
			if got != 0x00 {
				t.Fatalf("[block with %d pages] expected byte %d to be 0x00; got 0x%x", pageCount, i, got)
			}
		}

		if got := buf[len(buf)-1]; got != 0xFE {
			t.Fatalf("[block with %d pages] expected the byte past the target to be left untouched; got 0x%x", pageCount, got)
		}
	}
}
