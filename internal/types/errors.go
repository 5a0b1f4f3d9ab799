package types

import (
	"errors"
	"fmt"
)

// Transport errors
var (
	ErrRateLimited  = errors.New("rate limited")
	ErrTimeout      = errors.New("timeout")
	ErrNotConnected = errors.New("not connected")
	ErrModbus       = errors.New("modbus error")
	ErrBusy         = errors.New("device busy")
	ErrEmptyData    = errors.New("empty data")
	ErrReadOnly     = errors.New("read only")
	ErrGeneral      = errors.New("general error")
)

// RestAPIError is a non-success HTTP status from the cloud API.
type RestAPIError struct {
	Code int
}

func (e *RestAPIError) Error() string {
	return fmt.Sprintf("rest api error: status %d", e.Code)
}

// Reason maps an error to a short label for logs and metrics.
func Reason(err error) string {
	var apiErr *RestAPIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNotConnected):
		return "not_connected"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrEmptyData):
		return "empty_data"
	case errors.Is(err, ErrModbus):
		return "modbus"
	case errors.Is(err, ErrReadOnly):
		return "read_only"
	case errors.As(err, &apiErr):
		return "rest_api"
	default:
		return "general"
	}
}
