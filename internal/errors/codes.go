package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrAlreadyRunning  ErrorCode = "already_running"

	// Configuration errors
	ErrInvalidConfig       ErrorCode = "invalid_configuration"
	ErrReadConfig          ErrorCode = "read_config_failed"
	ErrBindFlags           ErrorCode = "bind_flags_failed"
	ErrInvalidInterval     ErrorCode = "invalid_interval"
	ErrInvalidTempWindow   ErrorCode = "invalid_temperature_window"
	ErrInvalidWakeInterval ErrorCode = "invalid_wake_interval"
	ErrInvalidLogLevel     ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Operation errors
	ErrOperationFailed ErrorCode = "operation_failed"
	ErrTimeout         ErrorCode = "operation_timeout"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:            "Internal error occurred",
	ErrInvalidArgument:     "Invalid argument provided",
	ErrAlreadyRunning:      "Another instance is already running",
	ErrInvalidConfig:       "Invalid configuration",
	ErrReadConfig:          "Failed to read configuration",
	ErrBindFlags:           "Failed to bind flags",
	ErrInvalidInterval:     "Invalid update interval",
	ErrInvalidTempWindow:   "Invalid temperature window",
	ErrInvalidWakeInterval: "Invalid wake interval",
	ErrInvalidLogLevel:     "Invalid log level",
	ErrInitFailed:          "Initialization failed",
	ErrShutdownFailed:      "Shutdown failed",
	ErrOperationFailed:     "Operation failed",
	ErrTimeout:             "Operation timed out",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
