// Package sensors supplies the temperature readings the scheduler displays:
// CPU via the host's hwmon sensors, GPU via NVML. Absent readings are
// resolved to configured fallbacks by the Resolver, so the scheduler never
// encodes a missing value.
package sensors

import (
	"context"
	"time"

	"codeberg.org/mutker/xigmatekctl/internal/errors"
)

// A read that takes longer than this is treated as a hung collaborator.
const defaultReadTimeout = 5 * time.Second

// Reading holds one pair of raw sensor values. A nil field means the
// reading is unavailable.
type Reading struct {
	CPU *int
	GPU *int
}

// Source produces temperature readings.
type Source interface {
	Read(ctx context.Context) (Reading, error)
}

type probe interface {
	Temperature(ctx context.Context) (*int, error)
}

// SystemSource reads CPU temperature from hwmon and GPU temperature from
// NVML.
type SystemSource struct {
	cpu     probe
	gpu     probe
	closer  func() error
	timeout time.Duration
}

// NewSystemSource probes the host's sensors. NVML being absent (non-NVIDIA
// host) is not an error; the GPU reading is simply unavailable.
func NewSystemSource() *SystemSource {
	gpu := newNVMLProbe()

	return &SystemSource{
		cpu:     &hwmonProbe{},
		gpu:     gpu,
		closer:  gpu.shutdown,
		timeout: defaultReadTimeout,
	}
}

// Read collects both temperatures, bounded by the read timeout. A deadline
// hit yields sensor_timeout; both probes failing yields sensor_unavailable.
// A partial result (one probe failed) is returned with a nil error and a
// nil field.
func (s *SystemSource) Read(ctx context.Context) (Reading, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan Reading, 1)
	go func() {
		var reading Reading
		if cpu, err := s.cpu.Temperature(ctx); err == nil {
			reading.CPU = cpu
		}
		if gpu, err := s.gpu.Temperature(ctx); err == nil {
			reading.GPU = gpu
		}
		done <- reading
	}()

	select {
	case <-ctx.Done():
		return Reading{}, errors.Wrap(ErrSensorTimeout, ctx.Err())
	case reading := <-done:
		if reading.CPU == nil && reading.GPU == nil {
			return Reading{}, errors.New(ErrSensorUnavailable)
		}

		return reading, nil
	}
}

// Close releases sensor resources.
func (s *SystemSource) Close() error {
	if s.closer == nil {
		return nil
	}

	return s.closer()
}

func intPtr(v int) *int {
	return &v
}
