package eventcore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType identifies an event within the closed set its aggregate package
// declares, e.g. "team.archived".
type EventType string

// AggregateRef addresses one event stream: an aggregate kind plus its id.
type AggregateRef struct {
	Kind string
	ID   string
}

func (r AggregateRef) String() string {
	return r.Kind + ":" + r.ID
}

// ParseRef parses the "kind:id" form produced by AggregateRef.String.
func ParseRef(s string) (AggregateRef, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok || kind == "" || id == "" {
		return AggregateRef{}, fmt.Errorf("malformed aggregate ref %q", s)
	}
	return AggregateRef{Kind: kind, ID: id}, nil
}

// Event is an immutable fact produced by successful command handling, the
// only durable record of state change. Within one aggregate events are
// totally ordered by Version, strictly increasing with no gaps.
type Event struct {
	EventID       uuid.UUID       `json:"event_id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateKind string          `json:"aggregate_kind"`
	Type          EventType       `json:"type"`
	Timestamp     time.Time       `json:"timestamp"`
	CausationID   uuid.UUID       `json:"causation_id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	Version       uint64          `json:"version"`
	Data          json.RawMessage `json:"data"`
}

// Ref returns the stream this event belongs to.
func (e Event) Ref() AggregateRef {
	return AggregateRef{Kind: e.AggregateKind, ID: e.AggregateID}
}

// NewEvent builds an unversioned event for a command's aggregate, stamping
// causation and correlation from the command. The event log assigns Version
// on append.
func NewEvent(ref AggregateRef, eventType EventType, cmd Command, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		EventID:       uuid.New(),
		AggregateID:   ref.ID,
		AggregateKind: ref.Kind,
		Type:          eventType,
		Timestamp:     time.Now().UTC(),
		CausationID:   cmd.CommandID,
		CorrelationID: cmd.CorrelationID,
		Data:          data,
	}, nil
}

// DecodePayload unmarshals an event's data into the payload type its
// aggregate package declares for that event type.
func DecodePayload[T any](e Event) (T, error) {
	var payload T
	if err := json.Unmarshal(e.Data, &payload); err != nil {
		return payload, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return payload, nil
}
