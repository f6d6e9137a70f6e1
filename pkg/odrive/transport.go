package odrive

import (
	"io"
	"time"
)

// Transport is the byte pipe to a single ODrive.
// It matches the feetech-servo transport so its serial and mock
// implementations can be used directly.
type Transport interface {
	io.ReadWriteCloser

	// SetReadTimeout sets the read timeout duration.
	SetReadTimeout(timeout time.Duration) error

	// Flush discards any buffered input data.
	Flush() error
}
