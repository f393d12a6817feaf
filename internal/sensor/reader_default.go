//go:build !windows

package sensor

import (
	"context"

	"github.com/shirou/gopsutil/v3/host"
)

// hostReader reads hwmon-backed temperature sensors via gopsutil.
type hostReader struct{}

// NewReader returns the platform temperature reader.
func NewReader() Reader {
	return &hostReader{}
}

func (r *hostReader) Read(ctx context.Context) ([]Sample, error) {
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	samples := make([]Sample, 0, len(temps))
	for _, t := range temps {
		samples = append(samples, Sample{
			Key:   t.SensorKey,
			Value: t.Temperature,
		})
	}

	return samples, nil
}
