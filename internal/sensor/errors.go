package sensor

import "github.com/frostyard/glacierctl/internal/errors"

const (
	ErrUnavailable = errors.ErrorCode("sensor_unavailable")
	ErrReadFailed  = errors.ErrorCode("sensor_read_failed")
)
