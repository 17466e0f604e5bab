package device

import "errors"

// Domain errors for the device package.
//
// Concrete clients wrap these so callers can classify failures with errors.Is():
//
//	if errors.Is(err, device.ErrRead) {
//	    // recoverable: count against the failure budget
//	}
var (
	// ErrConnection is returned when the device is unreachable or rejects the session.
	ErrConnection = errors.New("device: connection failed")

	// ErrRead is returned when reading a snapshot fails (timeout, malformed response).
	ErrRead = errors.New("device: read failed")

	// ErrClosed is returned when using a session after Close.
	ErrClosed = errors.New("device: session closed")
)
