package sensors

import (
	"context"
	"strings"

	"codeberg.org/mutker/xigmatekctl/internal/errors"
	gopsensors "github.com/shirou/gopsutil/v4/sensors"
)

// Preferred hwmon keys, best first. AMD exposes k10temp/zenpower, Intel
// exposes coretemp; cpu_thermal covers ARM SoCs.
var cpuSensorPreference = []string{
	"k10temp_tctl",
	"k10temp_tccd1",
	"zenpower_tdie",
	"coretemp_package",
	"cpu_thermal",
	"k10temp",
	"coretemp",
}

// hwmonProbe reads the CPU package temperature from the host's sensors.
type hwmonProbe struct{}

func (*hwmonProbe) Temperature(ctx context.Context) (*int, error) {
	stats, err := gopsensors.TemperaturesWithContext(ctx)
	if err != nil {
		return nil, errors.Wrap(ErrSensorUnavailable, err)
	}

	if temp := pickCPUTemperature(stats); temp != nil {
		return temp, nil
	}

	return nil, errors.New(ErrSensorUnavailable).WithMessage("no CPU sensor matched")
}

// pickCPUTemperature selects the best-matching CPU sensor reading, or nil
// when none of the known keys is present.
func pickCPUTemperature(stats []gopsensors.TemperatureStat) *int {
	for _, want := range cpuSensorPreference {
		for i := range stats {
			key := strings.ToLower(stats[i].SensorKey)
			if strings.Contains(key, want) && stats[i].Temperature > 0 {
				return intPtr(int(stats[i].Temperature))
			}
		}
	}

	return nil
}
