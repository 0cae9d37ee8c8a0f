// Package contexts stores free-form JSON context attached to a project,
// under the same version-vector discipline as the typed aggregates. Payloads
// are opaque, so conflicting writes are surfaced to the caller instead of
// auto-merged.
package contexts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/corefold/eventcore"
	"github.com/corefold/eventcore/logging"
)

// AggregateKind names the context event stream kind. Context streams are
// keyed by project id but live apart from the project aggregate's own stream.
const AggregateKind = "context"

// Ref returns the context stream reference for a project id.
func Ref(projectID string) eventcore.AggregateRef {
	return eventcore.AggregateRef{Kind: AggregateKind, ID: projectID}
}

// Event types accepted by the service. The set is closed: an unknown type is
// rejected at append instead of silently passing through a fold later.
const (
	// TypeCreated seeds a context with its initial keys.
	TypeCreated eventcore.EventType = "context.created"
	// TypeUpdated merges keys into the context; a JSON null removes a key.
	TypeUpdated eventcore.EventType = "context.updated"
	// TypeCleared resets the context to empty.
	TypeCleared eventcore.EventType = "context.cleared"
)

func validType(eventType eventcore.EventType) bool {
	switch eventType {
	case TypeCreated, TypeUpdated, TypeCleared:
		return true
	}
	return false
}

// Service is the generic aggregate: append-if-compatible over opaque JSON.
type Service struct {
	log    eventcore.EventLog
	logger *zap.Logger
}

// NewService wires the service to the event log it appends to.
func NewService(log eventcore.EventLog, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{log: log, logger: logger}
}

// AppendEvent validates the event type and payload, runs the compatibility
// check against the stored vector and, if it passes, appends the event and
// returns it with the new vector. A stale base fails with a ConflictError;
// the caller must re-read and retry, merging its own changes.
func (s *Service) AppendEvent(ctx context.Context, projectID string, eventType eventcore.EventType, data json.RawMessage, base eventcore.VersionVector) (eventcore.Event, eventcore.VersionVector, error) {
	if !validType(eventType) {
		return eventcore.Event{}, eventcore.VersionVector{}, eventcore.NewDomainError(projectID, "unknown context event type %q", eventType)
	}
	if eventType != TypeCleared {
		if err := validateObject(data); err != nil {
			return eventcore.Event{}, eventcore.VersionVector{}, eventcore.NewDomainError(projectID, "context event data must be a JSON object: %v", err)
		}
	}
	if data == nil {
		data = json.RawMessage("{}")
	}

	// Context appends arrive without a command; synthesize the tracing ids,
	// reusing a correlation id carried on the request context when present.
	cmd := eventcore.Command{CommandID: uuid.New(), CorrelationID: uuid.New()}
	if id := logging.CorrelationID(ctx); id != "" {
		if parsed, err := uuid.Parse(id); err == nil {
			cmd.CorrelationID = parsed
		}
	}

	event, err := eventcore.NewEvent(Ref(projectID), eventType, cmd, data)
	if err != nil {
		return eventcore.Event{}, eventcore.VersionVector{}, err
	}

	stamped, vector, err := s.log.Append(ctx, Ref(projectID), base, []eventcore.Event{event})
	if err != nil {
		return eventcore.Event{}, eventcore.VersionVector{}, err
	}

	s.logger.Debug("context event appended",
		zap.String("project_id", projectID),
		zap.String("type", string(eventType)),
		zap.Any("vector", vector.Versions))
	return stamped[0], vector, nil
}

// Context folds the stored events into the current snapshot. A project with
// no context yet yields an empty snapshot.
func (s *Service) Context(ctx context.Context, projectID string) (map[string]json.RawMessage, error) {
	events, err := s.log.Events(ctx, Ref(projectID), 0)
	if err != nil {
		return nil, err
	}

	snapshot := make(map[string]json.RawMessage)
	for _, event := range events {
		switch event.Type {
		case TypeCreated, TypeUpdated:
			var keys map[string]json.RawMessage
			if err := json.Unmarshal(event.Data, &keys); err != nil {
				return nil, fmt.Errorf("fold context event %s: %w", event.EventID, err)
			}
			for key, value := range keys {
				if isNull(value) {
					delete(snapshot, key)
					continue
				}
				snapshot[key] = value
			}
		case TypeCleared:
			snapshot = make(map[string]json.RawMessage)
		default:
			return nil, fmt.Errorf("context stream contains unknown event type %s", event.Type)
		}
	}
	return snapshot, nil
}

// VersionVector exposes the current vector for compare-and-swap clients.
func (s *Service) VersionVector(ctx context.Context, projectID string) (eventcore.VersionVector, error) {
	return s.log.VersionVector(ctx, Ref(projectID))
}

func validateObject(data json.RawMessage) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("empty payload")
	}
	var keys map[string]json.RawMessage
	return json.Unmarshal(data, &keys)
}

func isNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}
