package logging

import "errors"

var (
	ErrNoOutputs          = errors.New("no logging outputs configured")
	ErrUnknownFormat      = errors.New("unknown log format")
	ErrCreateLogDirectory = errors.New("failed to create log directory")
)
