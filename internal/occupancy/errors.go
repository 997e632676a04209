package occupancy

import "errors"

var (
	ErrConfiguration      = errors.New("invalid lot configuration")
	ErrPrecondition       = errors.New("statistics requested over an empty reading set")
	ErrNoDataInRange      = errors.New("no data in the selected date range")
	ErrInvalidGranularity = errors.New("invalid time granularity")
)
