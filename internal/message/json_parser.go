package message

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

var validate = validator.New()

// ParseAvailabilityJSON decodes and validates one availability message.
// It returns ErrJSONUnmarshalFailed or ErrInvalidMessage wrapping the cause.
// On ErrInvalidMessage the decoded message is still returned for logging.
func ParseAvailabilityJSON(data []byte) (AvailabilityMessage, error) {
	var msg AvailabilityMessage

	if err := json.Unmarshal(data, &msg); err != nil {
		return AvailabilityMessage{}, fmt.Errorf("%w: %w", ErrJSONUnmarshalFailed, err)
	}
	if err := validate.Struct(msg); err != nil {
		return msg, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return msg, nil
}
