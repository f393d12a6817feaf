//go:build windows

package sensor

import (
	"context"

	"github.com/StackExchange/wmi"
)

const thermalZoneNamespace = `root\wmi`

// MSAcpi_ThermalZoneTemperature reports temperature in tenths of Kelvin.
type MSAcpi_ThermalZoneTemperature struct {
	InstanceName       string
	CurrentTemperature uint32
}

// wmiReader reads ACPI thermal zones. Requires an elevated process.
type wmiReader struct{}

// NewReader returns the platform temperature reader.
func NewReader() Reader {
	return &wmiReader{}
}

func (r *wmiReader) Read(_ context.Context) ([]Sample, error) {
	var zones []MSAcpi_ThermalZoneTemperature
	query := "SELECT InstanceName, CurrentTemperature FROM MSAcpi_ThermalZoneTemperature"
	if err := wmi.QueryNamespace(query, &zones, thermalZoneNamespace); err != nil {
		return nil, err
	}

	samples := make([]Sample, 0, len(zones))
	for _, z := range zones {
		samples = append(samples, Sample{
			Key:   z.InstanceName,
			Value: float64(z.CurrentTemperature)/10.0 - 273.15,
		})
	}

	return samples, nil
}
