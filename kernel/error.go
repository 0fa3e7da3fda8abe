package kernel

// Error describes a loader or kernel error. Errors are defined as package
// level pointers to the Error structure and compared by identity. Once boot
// services have been retired no new errors can be allocated so every failure
// path must be able to report one of these pre-built values.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
