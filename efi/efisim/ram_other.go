//go:build !linux

package efisim

func newRAM(size uint64) ([]byte, func() error, error) {
	return make([]byte, size), func() error { return nil }, nil
}
