package sensors

// ResolverConfig carries the offset, fallback and clamp policy for turning
// raw readings into display values.
type ResolverConfig struct {
	MinTemp     int
	MaxTemp     int
	CPUOffset   int
	GPUOffset   int
	FallbackCPU int
	FallbackGPU int
}

// Resolver applies offsets, substitutes fallbacks for absent readings and
// clamps into the configured window. The scheduler only ever sees resolved
// integers.
type Resolver struct {
	cfg ResolverConfig
}

func NewResolver(cfg ResolverConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve turns a reading into concrete CPU and GPU temperatures.
// Out-of-window values are clamped, never rejected.
func (r *Resolver) Resolve(reading Reading) (cpuTemp, gpuTemp int) {
	cpuTemp = r.cfg.FallbackCPU
	if reading.CPU != nil {
		cpuTemp = *reading.CPU + r.cfg.CPUOffset
	}

	gpuTemp = r.cfg.FallbackGPU
	if reading.GPU != nil {
		gpuTemp = *reading.GPU + r.cfg.GPUOffset
	}

	return r.clamp(cpuTemp), r.clamp(gpuTemp)
}

func (r *Resolver) clamp(temp int) int {
	if temp < r.cfg.MinTemp {
		return r.cfg.MinTemp
	}
	if temp > r.cfg.MaxTemp {
		return r.cfg.MaxTemp
	}

	return temp
}
