package message

import "errors"

var (
	ErrJSONUnmarshalFailed = errors.New("failed to unmarshal JSON message")
	ErrInvalidMessage      = errors.New("availability message failed validation")
	ErrInvalidRecordTime   = errors.New("unparseable record_time")
)
