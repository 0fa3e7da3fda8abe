package efi

import (
	"ailiceos/kernel"
	"ailiceos/kernel/kfmt"
	"ailiceos/kernel/mm"
)

// State describes how much of the firmware is still available to the loader.
type State uint8

// The boot environment only ever moves forward through these states.
const (
	// FirmwareActive allows every boot service call.
	FirmwareActive State = iota

	// Transitioning is entered by the first ExitBootServices attempt. Only
	// GetMemoryMap and ExitBootServices may be called while transitioning.
	Transitioning

	// FirmwareRetired is entered once ExitBootServices succeeds. No boot
	// service may be called any more.
	FirmwareRetired
)

// String implements fmt.Stringer for State.
func (s State) String() string {
	switch s {
	case FirmwareActive:
		return "firmware active"
	case Transitioning:
		return "transitioning"
	case FirmwareRetired:
		return "firmware retired"
	default:
		return "unknown"
	}
}

// maxExitAttempts bounds the GetMemoryMap/ExitBootServices pair. Querying the
// map and exiting are not atomic; one retry covers a map change in between.
const maxExitAttempts = 2

var (
	// ErrFirmwareRetired is returned when a boot service is requested in a
	// state that no longer allows it.
	ErrFirmwareRetired = &kernel.Error{Module: "efi", Message: "boot services are no longer available"}

	// ErrTransitionRace is returned when the memory map kept changing
	// between GetMemoryMap and ExitBootServices.
	ErrTransitionRace = &kernel.Error{Module: "efi", Message: "memory map changed while exiting boot services"}

	// ErrOutOfResources is returned when the firmware cannot satisfy an allocation.
	ErrOutOfResources = &kernel.Error{Module: "efi", Message: "firmware is out of resources"}

	// ErrNotFound is returned when a file or table does not exist.
	ErrNotFound = &kernel.Error{Module: "efi", Message: "not found"}

	errMemoryMapNotPrepared = &kernel.Error{Module: "efi", Message: "memory map buffer has not been prepared"}
	errMemoryMapFailed      = &kernel.Error{Module: "efi", Message: "GetMemoryMap failed"}
	errServiceFailed        = &kernel.Error{Module: "efi", Message: "boot service call failed"}
)

// statusError maps a failed status to one of the package errors.
func statusError(status Status) *kernel.Error {
	switch status {
	case Success:
		return nil
	case OutOfResources:
		return ErrOutOfResources
	case NotFound:
		return ErrNotFound
	default:
		return errServiceFailed
	}
}

// Session guards the firmware boot services. Every call checks the session
// state so that nothing can reach the firmware after ExitBootServices.
type Session struct {
	bs    BootServices
	phys  mm.PhysicalMemory
	state State

	exitAttempts int
	exitCalled   bool

	// The memory map buffer is obtained while the firmware is active and
	// reused by every exit attempt.
	mapFrame mm.Frame
	mapPages uint64
	mapBuf   []byte
	mapSlack uint64
}

// NewSession creates a session for a firmware whose memory is reachable
// through phys.
func NewSession(bs BootServices, phys mm.PhysicalMemory) *Session {
	return &Session{bs: bs, phys: phys, state: FirmwareActive, mapFrame: mm.InvalidFrame}
}

// State returns the current session state.
func (s *Session) State() State {
	return s.state
}

// Physical returns the translation layer for the firmware's memory.
func (s *Session) Physical() mm.PhysicalMemory {
	return s.phys
}

func (s *Session) requireActive() *kernel.Error {
	if s.state != FirmwareActive {
		return ErrFirmwareRetired
	}
	return nil
}

// AllocatePages reserves count contiguous pages of memType memory.
func (s *Session) AllocatePages(memType MemoryType, count uint64) (mm.Frame, *kernel.Error) {
	if err := s.requireActive(); err != nil {
		return mm.InvalidFrame, err
	}

	addr, status := s.bs.AllocatePages(AllocateAnyPages, memType, count)
	if status != Success {
		return mm.InvalidFrame, statusError(status)
	}

	return mm.FrameFromAddress(uintptr(addr)), nil
}

// ConfigurationTable returns the address of the vendor table registered under guid.
func (s *Session) ConfigurationTable(guid GUID) (uint64, *kernel.Error) {
	if err := s.requireActive(); err != nil {
		return 0, err
	}

	addr, ok := s.bs.ConfigurationTable(guid)
	if !ok {
		return 0, ErrNotFound
	}
	return addr, nil
}

// ReadFile reads the file at path from the boot volume.
func (s *Session) ReadFile(path string) ([]byte, *kernel.Error) {
	if err := s.requireActive(); err != nil {
		return nil, err
	}

	data, status := s.bs.ReadFile(path)
	if status != Success {
		return nil, statusError(status)
	}
	return data, nil
}

// OutputString writes str to the firmware console.
func (s *Session) OutputString(str string) *kernel.Error {
	if err := s.requireActive(); err != nil {
		return err
	}
	return statusError(s.bs.OutputString(str))
}

// PrepareMemoryMap obtains a buffer large enough for the current memory map
// plus slack extra descriptors. The buffer is loader data so it survives
// into the kernel as part of the handoff.
func (s *Session) PrepareMemoryMap(slack uint64) *kernel.Error {
	if err := s.requireActive(); err != nil {
		return err
	}

	size, _, descSize, status := s.bs.GetMemoryMap(nil)
	if status.IsError() && status != BufferTooSmall {
		return errMemoryMapFailed
	}

	s.mapSlack = slack
	return s.allocateMemoryMap(size, descSize)
}

// allocateMemoryMap obtains a buffer for a map of size bytes plus the
// session slack. It bypasses the state check: the only caller outside
// FirmwareActive is an exit attempt that has not called ExitBootServices yet.
func (s *Session) allocateMemoryMap(size, descSize uint64) *kernel.Error {
	// The allocation below may itself split a region; account for it.
	size += (s.mapSlack + 2) * descSize
	pages := mm.PagesFor(size)

	addr, status := s.bs.AllocatePages(AllocateAnyPages, LoaderData, pages)
	if status != Success {
		return statusError(status)
	}

	frame := mm.FrameFromAddress(uintptr(addr))
	s.mapFrame, s.mapPages = frame, pages
	s.mapBuf = s.phys.RegionBytes(frame, pages)

	kfmt.Printf("[efi] memory map buffer: %d page(s) at 0x%x\n", pages, frame.Address())
	return nil
}

// ExitBootServices captures the final memory map and retires the boot
// services. It must be the last firmware memory-management call: on success,
// the session is FirmwareRetired and every further call fails.
//
// A failed exit is retried once with a fresh memory map. A map that outgrew
// the buffer before any exit call gets one larger buffer instead. Once the
// attempts are used up the transition is treated as fatal.
func (s *Session) ExitBootServices() (*MemoryMap, *kernel.Error) {
	switch {
	case s.state == FirmwareRetired:
		return nil, ErrFirmwareRetired
	case s.mapBuf == nil:
		return nil, errMemoryMapNotPrepared
	}

	s.state = Transitioning

	for s.exitAttempts < maxExitAttempts {
		s.exitAttempts++

		size, key, descSize, status := s.bs.GetMemoryMap(s.mapBuf)
		switch status {
		case Success:
		case BufferTooSmall:
			// Allocating is only allowed until the first exit call.
			if s.exitCalled {
				return nil, ErrTransitionRace
			}

			kfmt.Printf("[efi] memory map outgrew its buffer; growing it to 0x%x bytes\n", size)
			if err := s.allocateMemoryMap(size, descSize); err != nil {
				return nil, err
			}
			continue
		default:
			return nil, errMemoryMapFailed
		}

		s.exitCalled = true
		if status = s.bs.ExitBootServices(key); status == Success {
			s.state = FirmwareRetired
			return NewMemoryMap(uint64(s.mapFrame.Address()), s.mapBuf, size, descSize, key), nil
		}
	}

	return nil, ErrTransitionRace
}
