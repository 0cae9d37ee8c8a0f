package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/corefold/eventcore"
	"github.com/corefold/eventcore/contexts"
)

type appendContextEventRequest struct {
	Type          string            `json:"type"`
	Data          json.RawMessage   `json:"data"`
	VersionVector map[string]uint64 `json:"version_vector"`
}

type appendContextEventResponse struct {
	Event         eventcore.Event   `json:"event"`
	VersionVector map[string]uint64 `json:"version_vector"`
}

type contextVectorResponse struct {
	VersionVector map[string]uint64 `json:"version_vector"`
}

// RegisterContextEndpoints mounts the project-context API. Clients round-trip
// the version vector they read back into every append; a 409 means someone
// else wrote first and the response carries the vector to retry with.
func RegisterContextEndpoints(s *Server, svc *contexts.Service) {
	s.router.HandleFunc("/projects/{id}/context/events", func(w http.ResponseWriter, r *http.Request) {
		body, err := decodeBody[appendContextEventRequest](r)
		if err != nil {
			s.writeError(w, r, &eventcore.DomainError{Reason: err.Error()})
			return
		}

		ctx, cancel := s.commandContext(r.Context())
		defer cancel()
		event, vector, err := svc.AppendEvent(ctx, mux.Vars(r)["id"],
			eventcore.EventType(body.Type), body.Data, baseVector(body.VersionVector))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, appendContextEventResponse{
			Event:         event,
			VersionVector: vector.Versions,
		})
	}).Methods(http.MethodPost)

	s.HandleView("/projects/{id}/context", func(r *http.Request) (any, error) {
		return svc.Context(r.Context(), mux.Vars(r)["id"])
	})

	s.HandleView("/projects/{id}/context/vector", func(r *http.Request) (any, error) {
		vector, err := svc.VersionVector(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			return nil, err
		}
		return contextVectorResponse{VersionVector: vector.Versions}, nil
	})
}
