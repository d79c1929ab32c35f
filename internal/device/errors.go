package device

import "codeberg.org/mutker/xigmatekctl/internal/errors"

const (
	// Enumeration and lifecycle errors
	ErrDeviceNotFound = errors.ErrorCode("device_not_found")
	ErrOpenFailed     = errors.ErrorCode("device_open_failed")
	ErrInitFailed     = errors.ErrorCode("device_init_failed")
	ErrCloseFailed    = errors.ErrorCode("device_close_failed")

	// Write errors. A write_failed error is transient and counted toward
	// the reconnect threshold; transport_lost means the handle is gone and
	// triggers the immediate reconnect path.
	ErrWriteFailed   = errors.ErrorCode("device_write_failed")
	ErrTransportLost = errors.ErrorCode("transport_lost")
)
