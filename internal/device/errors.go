package device

import "github.com/frostyard/glacierctl/internal/errors"

const (
	ErrInvalidID   = errors.ErrorCode("device_invalid_id")
	ErrNotFound    = errors.ErrorCode("device_not_found")
	ErrOpenFailed  = errors.ErrorCode("device_open_failed")
	ErrWriteFailed = errors.ErrorCode("device_write_failed")
)
