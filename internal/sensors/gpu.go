package sensors

import (
	"context"

	"codeberg.org/mutker/xigmatekctl/internal/errors"
	"codeberg.org/mutker/xigmatekctl/internal/logger"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// nvmlProbe reads the GPU temperature of device 0 through NVML. A host
// without the NVIDIA driver simply has no GPU reading.
type nvmlProbe struct {
	initialized bool
	device      nvml.Device
}

func newNVMLProbe() *nvmlProbe {
	p := &nvmlProbe{}

	if ret := nvml.Init(); ret != nvml.SUCCESS {
		logger.Info().
			Str("reason", nvml.ErrorString(ret)).
			Msg("NVML unavailable, GPU temperature will use fallback")

		return p
	}

	device, ret := nvml.DeviceGetHandleByIndex(0)
	if ret != nvml.SUCCESS {
		logger.Info().
			Str("reason", nvml.ErrorString(ret)).
			Msg("No NVIDIA GPU found, GPU temperature will use fallback")
		_ = nvml.Shutdown()

		return p
	}

	if name, ret := device.GetName(); ret == nvml.SUCCESS {
		logger.Info().Str("gpu", name).Msg("Detected GPU")
	}

	p.initialized = true
	p.device = device

	return p
}

func (p *nvmlProbe) Temperature(_ context.Context) (*int, error) {
	if !p.initialized {
		return nil, errors.New(ErrSensorUnavailable).WithMessage("NVML not initialized")
	}

	temp, ret := p.device.GetTemperature(nvml.TEMPERATURE_GPU)
	if ret != nvml.SUCCESS {
		return nil, errors.New(ErrSensorUnavailable).WithMessage(nvml.ErrorString(ret))
	}

	return intPtr(int(temp)), nil
}

func (p *nvmlProbe) shutdown() error {
	if !p.initialized {
		return nil
	}

	p.initialized = false
	if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
		return errors.New(errors.ErrShutdownFailed).WithMessage(nvml.ErrorString(ret))
	}

	return nil
}
