//go:build linux

package efisim

import "golang.org/x/sys/unix"

// newRAM reserves size bytes of zeroed memory. An anonymous private mapping
// only commits the pages the simulation actually touches, so large machines
// are cheap to create.
func newRAM(size uint64) ([]byte, func() error, error) {
	ram, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}

	return ram, func() error { return unix.Munmap(ram) }, nil
}
