package odrive

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrTimeout    = errors.New("communication timeout")
	ErrNoResponse = errors.New("no response from odrive")
	ErrClosed     = errors.New("connection is closed")
	ErrNotFound   = errors.New("odrive not found")
)

// CommError represents a communication-level error.
type CommError struct {
	Op  string // Operation that failed (e.g., "read axis0.pos_estimate")
	Err error  // Underlying error
}

func (e *CommError) Error() string {
	return fmt.Sprintf("communication error during %s: %v", e.Op, e.Err)
}

func (e *CommError) Unwrap() error {
	return e.Err
}

// PropertyError is returned when the firmware rejects a command.
type PropertyError struct {
	Path  string // Property path that was addressed
	Reply string // Reply line from the firmware
}

func (e *PropertyError) Error() string {
	return fmt.Sprintf("odrive rejected %s: %s", e.Path, e.Reply)
}

// IsTimeout returns true if the error is a timeout error.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrNoResponse)
}

// GetPropertyError extracts a PropertyError from an error chain, if present.
func GetPropertyError(err error) (*PropertyError, bool) {
	var propErr *PropertyError
	if errors.As(err, &propErr) {
		return propErr, true
	}
	return nil, false
}
