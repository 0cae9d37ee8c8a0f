package project

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/corefold/eventcore"
)

// Handler validates project commands against the current event stream and
// appends the resulting events.
type Handler struct {
	log    eventcore.EventLog
	views  eventcore.ViewStore
	logger *zap.Logger
}

// NewHandler wires the handler to its event log and view store.
func NewHandler(log eventcore.EventLog, views eventcore.ViewStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{log: log, views: views, logger: logger}
}

func (h *Handler) SubscribedTo() map[eventcore.CommandKind]eventcore.HandlerFunc {
	return map[eventcore.CommandKind]eventcore.HandlerFunc{
		KindCreateProject:             h.handleCreateProject,
		KindAddRequirement:            h.handleAddRequirement,
		KindStartRequirement:          h.handleStartRequirement,
		KindCompleteRequirement:       h.handleCompleteRequirement,
		KindBlockRequirement:          h.handleBlockRequirement,
		KindUnblockRequirement:        h.handleUnblockRequirement,
		KindChangeRequirementPriority: h.handleChangeRequirementPriority,
	}
}

type requirementState struct {
	status  string
	blocked bool
}

type state struct {
	exists       bool
	requirements map[string]*requirementState
}

func (h *Handler) loadState(ctx context.Context, projectID string) (*state, error) {
	events, err := h.log.Events(ctx, Ref(projectID), 0)
	if err != nil {
		return nil, err
	}

	s := &state{requirements: make(map[string]*requirementState)}
	// A mutation event referencing a requirement its stream never added means
	// the stream is corrupt; fail the fold instead of dereferencing nil.
	stored := func(requirementID string) (*requirementState, error) {
		r, ok := s.requirements[requirementID]
		if !ok {
			return nil, fmt.Errorf("project stream references unknown requirement %s", requirementID)
		}
		return r, nil
	}
	for _, event := range events {
		switch event.Type {
		case TypeCreated:
			s.exists = true
		case TypeRequirementAdded:
			payload, err := eventcore.DecodePayload[RequirementAddedPayload](event)
			if err != nil {
				return nil, err
			}
			s.requirements[payload.RequirementID] = &requirementState{status: StatusOpen}
		case TypeRequirementStarted:
			payload, err := eventcore.DecodePayload[RequirementStartedPayload](event)
			if err != nil {
				return nil, err
			}
			r, err := stored(payload.RequirementID)
			if err != nil {
				return nil, err
			}
			r.status = StatusInProgress
		case TypeRequirementCompleted:
			payload, err := eventcore.DecodePayload[RequirementCompletedPayload](event)
			if err != nil {
				return nil, err
			}
			r, err := stored(payload.RequirementID)
			if err != nil {
				return nil, err
			}
			r.status = StatusDone
		case TypeRequirementBlocked:
			payload, err := eventcore.DecodePayload[RequirementBlockedPayload](event)
			if err != nil {
				return nil, err
			}
			r, err := stored(payload.RequirementID)
			if err != nil {
				return nil, err
			}
			r.blocked = true
		case TypeRequirementUnblocked:
			payload, err := eventcore.DecodePayload[RequirementUnblockedPayload](event)
			if err != nil {
				return nil, err
			}
			r, err := stored(payload.RequirementID)
			if err != nil {
				return nil, err
			}
			r.blocked = false
		case TypeRequirementPriorityChanged:
			// priority does not feed any decision below
		default:
			return nil, fmt.Errorf("project stream contains unknown event type %s", event.Type)
		}
	}
	return s, nil
}

// requirement fetches a requirement, failing when the project or the
// requirement is missing.
func (s *state) requirement(projectID, requirementID string) (*requirementState, error) {
	if !s.exists {
		return nil, eventcore.NewDomainError(projectID, "project does not exist")
	}
	r, ok := s.requirements[requirementID]
	if !ok {
		return nil, eventcore.NewDomainError(projectID, "requirement %s does not exist", requirementID)
	}
	return r, nil
}

func (h *Handler) handleCreateProject(ctx context.Context, cmd eventcore.Command) ([]eventcore.Event, error) {
	payload, err := eventcore.PayloadAs[CreateProject](cmd)
	if err != nil {
		return nil, err
	}
	if payload.Name == "" {
		return nil, eventcore.NewDomainError(payload.ProjectID, "project name is required")
	}

	s, err := h.loadState(ctx, payload.ProjectID)
	if err != nil {
		return nil, err
	}
	if s.exists {
		return nil, eventcore.NewDomainError(payload.ProjectID, "project already exists")
	}

	event, err := eventcore.NewEvent(Ref(payload.ProjectID), TypeCreated, cmd, CreatedPayload{
		OrganizationID: payload.OrganizationID,
		Name:           payload.Name,
	})
	if err != nil {
		return nil, err
	}
	return h.commit(ctx, cmd, payload.ProjectID, event)
}

func (h *Handler) handleAddRequirement(ctx context.Context, cmd eventcore.Command) ([]eventcore.Event, error) {
	payload, err := eventcore.PayloadAs[AddRequirement](cmd)
	if err != nil {
		return nil, err
	}
	if payload.Title == "" {
		return nil, eventcore.NewDomainError(payload.ProjectID, "requirement title is required")
	}
	if !validPriority(payload.Priority) {
		return nil, eventcore.NewDomainError(payload.ProjectID, "unknown priority %q", payload.Priority)
	}

	s, err := h.loadState(ctx, payload.ProjectID)
	if err != nil {
		return nil, err
	}
	if !s.exists {
		return nil, eventcore.NewDomainError(payload.ProjectID, "project does not exist")
	}
	if _, exists := s.requirements[payload.RequirementID]; exists {
		return nil, eventcore.NewDomainError(payload.ProjectID, "requirement %s already exists", payload.RequirementID)
	}

	event, err := eventcore.NewEvent(Ref(payload.ProjectID), TypeRequirementAdded, cmd, RequirementAddedPayload{
		RequirementID: payload.RequirementID,
		Title:         payload.Title,
		Priority:      payload.Priority,
	})
	if err != nil {
		return nil, err
	}
	return h.commit(ctx, cmd, payload.ProjectID, event)
}

func (h *Handler) handleStartRequirement(ctx context.Context, cmd eventcore.Command) ([]eventcore.Event, error) {
	payload, err := eventcore.PayloadAs[StartRequirement](cmd)
	if err != nil {
		return nil, err
	}

	s, err := h.loadState(ctx, payload.ProjectID)
	if err != nil {
		return nil, err
	}
	r, err := s.requirement(payload.ProjectID, payload.RequirementID)
	if err != nil {
		return nil, err
	}
	if r.status != StatusOpen {
		return nil, eventcore.NewDomainError(payload.ProjectID, "requirement %s cannot start from status %s", payload.RequirementID, r.status)
	}
	if r.blocked {
		return nil, eventcore.NewDomainError(payload.ProjectID, "requirement %s is blocked", payload.RequirementID)
	}

	event, err := eventcore.NewEvent(Ref(payload.ProjectID), TypeRequirementStarted, cmd, RequirementStartedPayload{RequirementID: payload.RequirementID})
	if err != nil {
		return nil, err
	}
	return h.commit(ctx, cmd, payload.ProjectID, event)
}

func (h *Handler) handleCompleteRequirement(ctx context.Context, cmd eventcore.Command) ([]eventcore.Event, error) {
	payload, err := eventcore.PayloadAs[CompleteRequirement](cmd)
	if err != nil {
		return nil, err
	}

	s, err := h.loadState(ctx, payload.ProjectID)
	if err != nil {
		return nil, err
	}
	r, err := s.requirement(payload.ProjectID, payload.RequirementID)
	if err != nil {
		return nil, err
	}
	if r.status != StatusInProgress {
		return nil, eventcore.NewDomainError(payload.ProjectID, "requirement %s cannot complete from status %s", payload.RequirementID, r.status)
	}
	if r.blocked {
		return nil, eventcore.NewDomainError(payload.ProjectID, "requirement %s is blocked", payload.RequirementID)
	}

	event, err := eventcore.NewEvent(Ref(payload.ProjectID), TypeRequirementCompleted, cmd, RequirementCompletedPayload{RequirementID: payload.RequirementID})
	if err != nil {
		return nil, err
	}
	return h.commit(ctx, cmd, payload.ProjectID, event)
}

func (h *Handler) handleBlockRequirement(ctx context.Context, cmd eventcore.Command) ([]eventcore.Event, error) {
	payload, err := eventcore.PayloadAs[BlockRequirement](cmd)
	if err != nil {
		return nil, err
	}

	s, err := h.loadState(ctx, payload.ProjectID)
	if err != nil {
		return nil, err
	}
	r, err := s.requirement(payload.ProjectID, payload.RequirementID)
	if err != nil {
		return nil, err
	}
	if r.status == StatusDone {
		return nil, eventcore.NewDomainError(payload.ProjectID, "requirement %s is done and cannot be blocked", payload.RequirementID)
	}
	if r.blocked {
		return nil, eventcore.NewDomainError(payload.ProjectID, "requirement %s is already blocked", payload.RequirementID)
	}

	event, err := eventcore.NewEvent(Ref(payload.ProjectID), TypeRequirementBlocked, cmd, RequirementBlockedPayload{
		RequirementID: payload.RequirementID,
		Reason:        payload.Reason,
	})
	if err != nil {
		return nil, err
	}
	return h.commit(ctx, cmd, payload.ProjectID, event)
}

func (h *Handler) handleUnblockRequirement(ctx context.Context, cmd eventcore.Command) ([]eventcore.Event, error) {
	payload, err := eventcore.PayloadAs[UnblockRequirement](cmd)
	if err != nil {
		return nil, err
	}

	s, err := h.loadState(ctx, payload.ProjectID)
	if err != nil {
		return nil, err
	}
	r, err := s.requirement(payload.ProjectID, payload.RequirementID)
	if err != nil {
		return nil, err
	}
	if !r.blocked {
		return nil, eventcore.NewDomainError(payload.ProjectID, "requirement %s is not blocked", payload.RequirementID)
	}

	event, err := eventcore.NewEvent(Ref(payload.ProjectID), TypeRequirementUnblocked, cmd, RequirementUnblockedPayload{RequirementID: payload.RequirementID})
	if err != nil {
		return nil, err
	}
	return h.commit(ctx, cmd, payload.ProjectID, event)
}

func (h *Handler) handleChangeRequirementPriority(ctx context.Context, cmd eventcore.Command) ([]eventcore.Event, error) {
	payload, err := eventcore.PayloadAs[ChangeRequirementPriority](cmd)
	if err != nil {
		return nil, err
	}
	if !validPriority(payload.Priority) {
		return nil, eventcore.NewDomainError(payload.ProjectID, "unknown priority %q", payload.Priority)
	}

	s, err := h.loadState(ctx, payload.ProjectID)
	if err != nil {
		return nil, err
	}
	r, err := s.requirement(payload.ProjectID, payload.RequirementID)
	if err != nil {
		return nil, err
	}
	if r.status == StatusDone {
		return nil, eventcore.NewDomainError(payload.ProjectID, "requirement %s is done and cannot be re-prioritized", payload.RequirementID)
	}

	event, err := eventcore.NewEvent(Ref(payload.ProjectID), TypeRequirementPriorityChanged, cmd, RequirementPriorityChangedPayload{
		RequirementID: payload.RequirementID,
		Priority:      payload.Priority,
	})
	if err != nil {
		return nil, err
	}
	return h.commit(ctx, cmd, payload.ProjectID, event)
}

func (h *Handler) commit(ctx context.Context, cmd eventcore.Command, projectID string, events ...eventcore.Event) ([]eventcore.Event, error) {
	stamped, vector, err := h.log.Append(ctx, Ref(projectID), cmd.BaseVector, events)
	if err != nil {
		return nil, err
	}
	// A cold view store (fresh process over a durable log) must refold the
	// whole stream; feeding it only the new events would fold onto empty state.
	if h.views.Primed(Ref(projectID)) {
		err = h.views.Apply(stamped...)
	} else {
		err = h.views.Rebuild(ctx, h.log, Ref(projectID))
	}
	if err != nil {
		return nil, err
	}
	h.logger.Debug("project events appended",
		zap.String("project_id", projectID),
		zap.Int("count", len(stamped)),
		zap.Any("vector", vector.Versions))
	return stamped, nil
}
