package device

import (
	"time"

	"codeberg.org/mutker/xigmatekctl/internal/errors"
	"codeberg.org/mutker/xigmatekctl/internal/logger"
	hid "github.com/sstallion/go-hid"
)

const (
	// XIGMATEK LCD controller
	VendorID  uint16 = 0x0145
	ProductID uint16 = 0x1005

	// hidapi writes block with no native deadline. A write that exceeds
	// this bound is indistinguishable from a vanished device, so it is
	// reported as transport_lost.
	defaultWriteTimeout = 5 * time.Second
)

// hidDevice is the subset of the go-hid device handle the transport uses.
type hidDevice interface {
	Write(p []byte) (int, error)
	Close() error
}

// Seams over go-hid so the transport is testable without hardware.
var (
	hidInit = hid.Init
	hidExit = hid.Exit

	hidEnumerate = func(vid, pid uint16, fn func(*hid.DeviceInfo) error) error {
		return hid.Enumerate(vid, pid, fn)
	}

	hidOpen = func(vid, pid uint16) (hidDevice, error) {
		return hid.OpenFirst(vid, pid)
	}
)

// HIDTransport owns the open HID handle for the display controller.
type HIDTransport struct {
	vendorID     uint16
	productID    uint16
	writeTimeout time.Duration
	dev          hidDevice
}

// NewTransport initializes the HID layer and returns a transport for the
// display controller. No device handle is opened until Open is called.
func NewTransport() (*HIDTransport, error) {
	if err := hidInit(); err != nil {
		return nil, errors.Wrap(ErrInitFailed, err)
	}

	return &HIDTransport{
		vendorID:     VendorID,
		productID:    ProductID,
		writeTimeout: defaultWriteTimeout,
	}, nil
}

// Enumerate lists attached devices matching the controller's vendor and
// product identifiers. An empty result means the device is absent; that is
// not an error.
func (t *HIDTransport) Enumerate() ([]Info, error) {
	var found []Info
	err := hidEnumerate(t.vendorID, t.productID, func(info *hid.DeviceInfo) error {
		found = append(found, Info{
			Path:      info.Path,
			VendorID:  info.VendorID,
			ProductID: info.ProductID,
			Product:   info.ProductStr,
		})

		return nil
	})
	// hidapi reports an empty enumeration as an error on some platforms
	if err != nil && len(found) == 0 {
		return nil, nil
	}

	return found, nil
}

// Open claims the device. It is deterministic: one enumeration, one open
// attempt, no retries.
func (t *HIDTransport) Open() error {
	if t.dev != nil {
		return nil
	}

	found, err := t.Enumerate()
	if err != nil {
		return errors.Wrap(ErrOpenFailed, err)
	}
	if len(found) == 0 {
		return errors.New(ErrDeviceNotFound)
	}

	dev, err := hidOpen(t.vendorID, t.productID)
	if err != nil {
		return errors.Wrap(ErrOpenFailed, err)
	}

	logger.Info().Str("path", found[0].Path).Msg("Connected to display controller")
	t.dev = dev

	return nil
}

// Write sends one 64-byte command. The device is write-only; success means
// the HID layer accepted the whole report.
func (t *HIDTransport) Write(cmd Command) error {
	if t.dev == nil {
		return errors.New(ErrTransportLost).WithMessage("device not open")
	}

	type writeResult struct {
		n   int
		err error
	}

	dev := t.dev
	done := make(chan writeResult, 1)
	go func() {
		n, err := dev.Write(cmd.Bytes())
		done <- writeResult{n, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return errors.Wrap(ErrWriteFailed, res.err)
		}
		if res.n != CommandLength {
			return errors.New(ErrWriteFailed).WithData(res.n)
		}

		return nil
	case <-time.After(t.writeTimeout):
		return errors.New(ErrTransportLost).WithMessage("write deadline exceeded")
	}
}

// Close releases the handle. Idempotent.
func (t *HIDTransport) Close() error {
	if t.dev == nil {
		return nil
	}

	dev := t.dev
	t.dev = nil
	if err := dev.Close(); err != nil {
		return errors.Wrap(ErrCloseFailed, err)
	}

	return nil
}

// IsOpen reports whether a handle is currently held.
func (t *HIDTransport) IsOpen() bool {
	return t.dev != nil
}

// Shutdown closes any open handle and tears down the HID layer.
func (t *HIDTransport) Shutdown() error {
	if err := t.Close(); err != nil {
		return err
	}
	if err := hidExit(); err != nil {
		return errors.Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}
