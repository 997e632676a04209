package pipeline

import (
	"errors"
	"time"

	"github.com/sanspareilsmyn/parkinglens/internal/message"
)

const snippetLength = 120

// parseFailure describes a message that could not become an Observation.
// reason labels the failure for metrics, snippet identifies it in logs.
type parseFailure struct {
	reason  string
	snippet string
	err     error
}

func (f *parseFailure) Error() string { return f.err.Error() }

func (f *parseFailure) Unwrap() error { return f.err }

// parseObservation decodes one raw Kafka value.
func parseObservation(raw []byte, loc *time.Location) (Observation, *parseFailure) {
	msg, err := message.ParseAvailabilityJSON(raw)
	if err != nil {
		if errors.Is(err, message.ErrJSONUnmarshalFailed) {
			return Observation{}, &parseFailure{reason: "json", snippet: message.RawSnippet(raw, snippetLength), err: err}
		}
		return Observation{}, &parseFailure{reason: "invalid", snippet: msg.Snippet(snippetLength), err: err}
	}

	at, err := msg.ParseRecordTime(loc)
	if err != nil {
		return Observation{}, &parseFailure{reason: "record_time", snippet: msg.Snippet(snippetLength), err: err}
	}

	return Observation{
		LotID:         msg.LotID,
		RecordTime:    at.In(loc),
		AvailableCars: *msg.AvailableCars,
	}, nil
}
