package store

import "errors"

var (
	ErrNotFound       = errors.New("record not found")
	ErrBuildQuery     = errors.New("failed to build sql query")
	ErrQueryFailed    = errors.New("database query failed")
	ErrCircuitOpen    = errors.New("database circuit breaker open")
	ErrInvalidReading = errors.New("invalid reading")
	ErrConnectFailed  = errors.New("failed to connect to database")
	ErrMigrateFailed  = errors.New("failed to apply schema")
)
