package mirror

import (
	"encoding/json"
	"errors"
	"fmt"

	"pressline.sync/internal/core/domain"
)

var (
	ErrUnknownEvent   = errors.New("unknown event type")
	ErrMissingPayload = errors.New("event payload missing")
)

// DecodeEvent parses a raw inbound frame into one typed event. A frame that
// fails to decode is the caller's to log and drop; decoding never has side
// effects on the connection.
func DecodeEvent(data []byte) (*domain.Event, error) {
	var ev domain.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if !ev.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
	if ev.Type == domain.EventStatsUpdated {
		if ev.Stats == nil {
			return nil, fmt.Errorf("%w: stats_updated carries no stats", ErrMissingPayload)
		}
		ev.Job = nil
		return &ev, nil
	}
	if ev.Job == nil {
		return nil, fmt.Errorf("%w: %s carries no job", ErrMissingPayload, ev.Type)
	}
	ev.Stats = nil
	return &ev, nil
}
