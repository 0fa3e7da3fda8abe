package efi

import "strings"

// Console is an io.Writer backed by the firmware console. Output is dropped
// once the session has left FirmwareActive.
type Console struct {
	Session *Session
}

// Write implements io.Writer.
func (c Console) Write(p []byte) (int, error) {
	if c.Session.State() != FirmwareActive {
		return len(p), nil
	}

	// The firmware console expects CR LF line endings.
	_ = c.Session.OutputString(strings.ReplaceAll(string(p), "\n", "\r\n"))
	return len(p), nil
}
