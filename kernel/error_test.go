package kernel

import (
	"errors"
	"testing"
)

func TestKernelError(t *testing.T) {
	err := &Error{
		Module:  "foo",
		Message: "error message",
	}

	if err.Error() != err.Message {
		t.Fatalf("expected to err.Error() to return %q; got %q", err.Message, err.Error())
	}

	// Errors are compared by identity; an identical copy is a different error.
	other := &Error{Module: err.Module, Message: err.Message}
	if errors.Is(other, err) {
		t.Fatal("expected errors with the same contents but different identity not to match")
	}
}
