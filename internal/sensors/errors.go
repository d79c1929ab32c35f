package sensors

import "codeberg.org/mutker/xigmatekctl/internal/errors"

const (
	// ErrSensorTimeout means the read exceeded its deadline; the caller
	// substitutes fallback values. Distinct from unavailable so the
	// fallback policy stays an explicit branch.
	ErrSensorTimeout     = errors.ErrorCode("sensor_timeout")
	ErrSensorUnavailable = errors.ErrorCode("sensor_unavailable")
)
