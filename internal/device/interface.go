package device

// Transport owns a single connection to the display controller and provides
// the primitives the supervisor and scheduler build on. A transport is used
// by exactly one goroutine.
type Transport interface {
	// Open claims the device. Fails with device_not_found when enumeration
	// is empty and device_open_failed on permission or claim errors. Open
	// never retries; retry policy belongs to the connection supervisor.
	Open() error

	// Write sends one complete command. The write either succeeds whole or
	// fails; there is no partial-write reporting and nothing is ever read
	// back from the device.
	Write(cmd Command) error

	// Close releases the handle. Safe to call any number of times.
	Close() error

	// IsOpen reports whether a handle is currently held.
	IsOpen() bool
}

// Info describes an enumerated HID device.
type Info struct {
	Path      string
	VendorID  uint16
	ProductID uint16
	Product   string
}
