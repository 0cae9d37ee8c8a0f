package organization

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/corefold/eventcore"
)

// Handler validates organization commands against the current event stream
// and appends the resulting events. It is the only component that reads an
// organization's state before writing to it.
type Handler struct {
	log    eventcore.EventLog
	views  eventcore.ViewStore
	logger *zap.Logger
}

// NewHandler wires the handler to the event log it reads and appends to and
// the view store it projects into.
func NewHandler(log eventcore.EventLog, views eventcore.ViewStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{log: log, views: views, logger: logger}
}

func (h *Handler) SubscribedTo() map[eventcore.CommandKind]eventcore.HandlerFunc {
	return map[eventcore.CommandKind]eventcore.HandlerFunc{
		KindCreateOrganization: h.handleCreateOrganization,
		KindRenameOrganization: h.handleRenameOrganization,
		KindAddMember:          h.handleAddMember,
		KindChangeMemberRole:   h.handleChangeMemberRole,
		KindRemoveMember:       h.handleRemoveMember,
	}
}

// state is the decision model folded from the stream; it never leaves the
// handler.
type state struct {
	exists  bool
	name    string
	owner   string
	members map[string]string // user id -> role
}

func (h *Handler) loadState(ctx context.Context, organizationID string) (*state, error) {
	events, err := h.log.Events(ctx, Ref(organizationID), 0)
	if err != nil {
		return nil, err
	}

	s := &state{members: make(map[string]string)}
	for _, event := range events {
		switch event.Type {
		case TypeCreated:
			payload, err := eventcore.DecodePayload[CreatedPayload](event)
			if err != nil {
				return nil, err
			}
			s.exists = true
			s.name = payload.Name
			s.owner = payload.OwnerUserID
			s.members[payload.OwnerUserID] = RoleOwner
		case TypeRenamed:
			payload, err := eventcore.DecodePayload[RenamedPayload](event)
			if err != nil {
				return nil, err
			}
			s.name = payload.Name
		case TypeMemberAdded:
			payload, err := eventcore.DecodePayload[MemberAddedPayload](event)
			if err != nil {
				return nil, err
			}
			s.members[payload.UserID] = payload.Role
		case TypeMemberRoleChanged:
			payload, err := eventcore.DecodePayload[MemberRoleChangedPayload](event)
			if err != nil {
				return nil, err
			}
			s.members[payload.UserID] = payload.Role
		case TypeMemberRemoved:
			payload, err := eventcore.DecodePayload[MemberRemovedPayload](event)
			if err != nil {
				return nil, err
			}
			delete(s.members, payload.UserID)
		default:
			return nil, fmt.Errorf("organization stream contains unknown event type %s", event.Type)
		}
	}
	return s, nil
}

func (h *Handler) handleCreateOrganization(ctx context.Context, cmd eventcore.Command) ([]eventcore.Event, error) {
	payload, err := eventcore.PayloadAs[CreateOrganization](cmd)
	if err != nil {
		return nil, err
	}
	if payload.Name == "" {
		return nil, eventcore.NewDomainError(payload.OrganizationID, "organization name is required")
	}
	if payload.OwnerUserID == "" {
		return nil, eventcore.NewDomainError(payload.OrganizationID, "organization owner is required")
	}

	s, err := h.loadState(ctx, payload.OrganizationID)
	if err != nil {
		return nil, err
	}
	if s.exists {
		return nil, eventcore.NewDomainError(payload.OrganizationID, "organization already exists")
	}

	event, err := eventcore.NewEvent(Ref(payload.OrganizationID), TypeCreated, cmd, CreatedPayload{
		Name:        payload.Name,
		OwnerUserID: payload.OwnerUserID,
	})
	if err != nil {
		return nil, err
	}
	return h.commit(ctx, cmd, payload.OrganizationID, event)
}

func (h *Handler) handleRenameOrganization(ctx context.Context, cmd eventcore.Command) ([]eventcore.Event, error) {
	payload, err := eventcore.PayloadAs[RenameOrganization](cmd)
	if err != nil {
		return nil, err
	}
	if payload.Name == "" {
		return nil, eventcore.NewDomainError(payload.OrganizationID, "organization name is required")
	}

	s, err := h.loadState(ctx, payload.OrganizationID)
	if err != nil {
		return nil, err
	}
	if !s.exists {
		return nil, eventcore.NewDomainError(payload.OrganizationID, "organization does not exist")
	}

	event, err := eventcore.NewEvent(Ref(payload.OrganizationID), TypeRenamed, cmd, RenamedPayload{Name: payload.Name})
	if err != nil {
		return nil, err
	}
	return h.commit(ctx, cmd, payload.OrganizationID, event)
}

func (h *Handler) handleAddMember(ctx context.Context, cmd eventcore.Command) ([]eventcore.Event, error) {
	payload, err := eventcore.PayloadAs[AddMember](cmd)
	if err != nil {
		return nil, err
	}
	if !validRole(payload.Role) {
		return nil, eventcore.NewDomainError(payload.OrganizationID, "unknown role %q", payload.Role)
	}

	s, err := h.loadState(ctx, payload.OrganizationID)
	if err != nil {
		return nil, err
	}
	if !s.exists {
		return nil, eventcore.NewDomainError(payload.OrganizationID, "organization does not exist")
	}
	if _, member := s.members[payload.UserID]; member {
		return nil, eventcore.NewDomainError(payload.OrganizationID, "user %s is already a member", payload.UserID)
	}

	event, err := eventcore.NewEvent(Ref(payload.OrganizationID), TypeMemberAdded, cmd, MemberAddedPayload{
		UserID: payload.UserID,
		Role:   payload.Role,
	})
	if err != nil {
		return nil, err
	}
	return h.commit(ctx, cmd, payload.OrganizationID, event)
}

func (h *Handler) handleChangeMemberRole(ctx context.Context, cmd eventcore.Command) ([]eventcore.Event, error) {
	payload, err := eventcore.PayloadAs[ChangeMemberRole](cmd)
	if err != nil {
		return nil, err
	}
	if !validRole(payload.Role) {
		return nil, eventcore.NewDomainError(payload.OrganizationID, "unknown role %q", payload.Role)
	}

	s, err := h.loadState(ctx, payload.OrganizationID)
	if err != nil {
		return nil, err
	}
	if !s.exists {
		return nil, eventcore.NewDomainError(payload.OrganizationID, "organization does not exist")
	}
	previous, member := s.members[payload.UserID]
	if !member {
		return nil, eventcore.NewDomainError(payload.OrganizationID, "user %s is not a member", payload.UserID)
	}
	if payload.UserID == s.owner {
		return nil, eventcore.NewDomainError(payload.OrganizationID, "the owner's role cannot be changed")
	}

	event, err := eventcore.NewEvent(Ref(payload.OrganizationID), TypeMemberRoleChanged, cmd, MemberRoleChangedPayload{
		UserID:       payload.UserID,
		Role:         payload.Role,
		PreviousRole: previous,
	})
	if err != nil {
		return nil, err
	}
	return h.commit(ctx, cmd, payload.OrganizationID, event)
}

func (h *Handler) handleRemoveMember(ctx context.Context, cmd eventcore.Command) ([]eventcore.Event, error) {
	payload, err := eventcore.PayloadAs[RemoveMember](cmd)
	if err != nil {
		return nil, err
	}

	s, err := h.loadState(ctx, payload.OrganizationID)
	if err != nil {
		return nil, err
	}
	if !s.exists {
		return nil, eventcore.NewDomainError(payload.OrganizationID, "organization does not exist")
	}
	if _, member := s.members[payload.UserID]; !member {
		return nil, eventcore.NewDomainError(payload.OrganizationID, "user %s is not a member", payload.UserID)
	}
	if payload.UserID == s.owner {
		return nil, eventcore.NewDomainError(payload.OrganizationID, "the owner cannot be removed")
	}

	event, err := eventcore.NewEvent(Ref(payload.OrganizationID), TypeMemberRemoved, cmd, MemberRemovedPayload{UserID: payload.UserID})
	if err != nil {
		return nil, err
	}
	return h.commit(ctx, cmd, payload.OrganizationID, event)
}

func (h *Handler) commit(ctx context.Context, cmd eventcore.Command, organizationID string, events ...eventcore.Event) ([]eventcore.Event, error) {
	stamped, vector, err := h.log.Append(ctx, Ref(organizationID), cmd.BaseVector, events)
	if err != nil {
		return nil, err
	}
	// A cold view store (fresh process over a durable log) must refold the
	// whole stream; feeding it only the new events would fold onto empty state.
	if h.views.Primed(Ref(organizationID)) {
		err = h.views.Apply(stamped...)
	} else {
		err = h.views.Rebuild(ctx, h.log, Ref(organizationID))
	}
	if err != nil {
		return nil, err
	}
	h.logger.Debug("organization events appended",
		zap.String("organization_id", organizationID),
		zap.Int("count", len(stamped)),
		zap.Any("vector", vector.Versions))
	return stamped, nil
}
