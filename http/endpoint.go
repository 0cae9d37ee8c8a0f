package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/corefold/eventcore"
	"github.com/corefold/eventcore/logging"
)

// CommandTranslator turns an inbound request into a command. Returning an
// error yields a 400 without touching the bus.
type CommandTranslator func(*http.Request) (eventcore.Command, error)

// ViewResolver fetches the read model a GET endpoint serves.
type ViewResolver func(*http.Request) (any, error)

type eventSummary struct {
	EventID     string `json:"event_id"`
	AggregateID string `json:"aggregate_id"`
	Type        string `json:"type"`
	Version     uint64 `json:"version"`
}

type commandResponse struct {
	Events []eventSummary `json:"events"`
}

type errorResponse struct {
	Kind   string            `json:"kind"`
	Reason string            `json:"reason"`
	Stored map[string]uint64 `json:"stored_version_vector,omitempty"`
}

// HandleCommand registers a mutation endpoint: translate, dispatch, respond.
func (s *Server) HandleCommand(path, method string, bus eventcore.CommandBus, translate CommandTranslator) {
	s.router.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		cmd, err := translate(r)
		if err != nil {
			s.writeError(w, r, &eventcore.DomainError{Reason: err.Error()})
			return
		}
		if id, parseErr := uuid.Parse(logging.CorrelationID(r.Context())); parseErr == nil {
			cmd = cmd.WithCorrelation(id)
		}

		ctx, cancel := s.commandContext(r.Context())
		defer cancel()
		events, err := bus.Dispatch(ctx, cmd)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		response := commandResponse{Events: make([]eventSummary, len(events))}
		for i, event := range events {
			response.Events[i] = eventSummary{
				EventID:     event.EventID.String(),
				AggregateID: event.AggregateID,
				Type:        string(event.Type),
				Version:     event.Version,
			}
		}
		s.writeJSON(w, http.StatusOK, response)
	}).Methods(method)
}

// HandleView registers a read endpoint.
func (s *Server) HandleView(path string, resolve ViewResolver) {
	s.router.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		state, err := resolve(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, state)
	}).Methods(http.MethodGet)
}

// StatusFor maps the core error taxonomy to status codes: invalid input is
// the caller's bug (400), a conflict is retryable with fresh state (409), an
// unregistered command kind is a programmer error that should never reach
// production (501).
func StatusFor(err error) int {
	switch {
	case eventcore.IsDomainError(err):
		return http.StatusBadRequest
	case eventcore.IsConflict(err):
		return http.StatusConflict
	case eventcore.IsUnregistered(err):
		return http.StatusNotImplemented
	case errors.Is(err, eventcore.ErrViewNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	response := errorResponse{Reason: err.Error()}
	switch status {
	case http.StatusBadRequest:
		response.Kind = "invalid_input"
		var domainErr *eventcore.DomainError
		if errors.As(err, &domainErr) {
			response.Reason = domainErr.Reason
		}
	case http.StatusConflict:
		response.Kind = "conflict"
		var conflictErr *eventcore.ConflictError
		if errors.As(err, &conflictErr) {
			response.Stored = conflictErr.Stored.Versions
		}
	case http.StatusNotFound:
		response.Kind = "not_found"
	case http.StatusNotImplemented:
		response.Kind = "unknown_command"
	default:
		response.Kind = "internal"
		response.Reason = "internal server error"
	}

	logger := logging.WithCorrelationID(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		logger.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	}
	s.writeJSON(w, status, response)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

// commandContext bounds a mutation's context with the configured command
// timeout, if any.
func (s *Server) commandContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.commandTimeout <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, s.commandTimeout)
}

// baseVector converts the wire form of a version vector.
func baseVector(versions map[string]uint64) eventcore.VersionVector {
	if len(versions) == 0 {
		return eventcore.VersionVector{}
	}
	return eventcore.VersionVector{Versions: versions}
}

func decodeBody[T any](r *http.Request) (T, error) {
	var body T
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return body, err
	}
	return body, nil
}
