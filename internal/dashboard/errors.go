package dashboard

import "errors"

var (
	ErrLotNotFound  = errors.New("parking lot not found")
	ErrInvalidRange = errors.New("invalid date range")
	ErrInvalidQuery = errors.New("invalid dashboard query")
	ErrFetchFailed  = errors.New("failed to fetch dashboard data")
)
