package team

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/corefold/eventcore"
)

// Handler validates team commands against the current event stream and
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
		KindCreateTeam:         h.handleCreateTeam,
		KindAddMember:          h.handleAddMember,
		KindRemoveMember:       h.handleRemoveMember,
		KindTransferLeadership: h.handleTransferLeadership,
		KindArchiveTeam:        h.handleArchiveTeam,
	}
}

type state struct {
	exists   bool
	archived bool
	leader   string
	members  map[string]bool
}

func (h *Handler) loadState(ctx context.Context, teamID string) (*state, error) {
	events, err := h.log.Events(ctx, Ref(teamID), 0)
	if err != nil {
		return nil, err
	}

	s := &state{members: make(map[string]bool)}
	for _, event := range events {
		switch event.Type {
		case TypeCreated:
			payload, err := eventcore.DecodePayload[CreatedPayload](event)
			if err != nil {
				return nil, err
			}
			s.exists = true
			s.leader = payload.LeaderUserID
			s.members[payload.LeaderUserID] = true
		case TypeMemberAdded:
			payload, err := eventcore.DecodePayload[MemberAddedPayload](event)
			if err != nil {
				return nil, err
			}
			s.members[payload.UserID] = true
		case TypeMemberRemoved:
			payload, err := eventcore.DecodePayload[MemberRemovedPayload](event)
			if err != nil {
				return nil, err
			}
			delete(s.members, payload.UserID)
		case TypeLeadershipTransferred:
			payload, err := eventcore.DecodePayload[LeadershipTransferredPayload](event)
			if err != nil {
				return nil, err
			}
			s.leader = payload.ToUserID
		case TypeArchived:
			s.archived = true
		default:
			return nil, fmt.Errorf("team stream contains unknown event type %s", event.Type)
		}
	}
	return s, nil
}

// mutable checks the preconditions shared by every post-creation command.
func (s *state) mutable(teamID string) error {
	if !s.exists {
		return eventcore.NewDomainError(teamID, "team does not exist")
	}
	if s.archived {
		return eventcore.NewDomainError(teamID, "team is archived")
	}
	return nil
}

func (h *Handler) handleCreateTeam(ctx context.Context, cmd eventcore.Command) ([]eventcore.Event, error) {
	payload, err := eventcore.PayloadAs[CreateTeam](cmd)
	if err != nil {
		return nil, err
	}
	if payload.Name == "" {
		return nil, eventcore.NewDomainError(payload.TeamID, "team name is required")
	}
	if payload.LeaderUserID == "" {
		return nil, eventcore.NewDomainError(payload.TeamID, "team leader is required")
	}
	if payload.OrganizationID == "" {
		return nil, eventcore.NewDomainError(payload.TeamID, "organization id is required")
	}

	s, err := h.loadState(ctx, payload.TeamID)
	if err != nil {
		return nil, err
	}
	if s.exists {
		return nil, eventcore.NewDomainError(payload.TeamID, "team already exists")
	}

	event, err := eventcore.NewEvent(Ref(payload.TeamID), TypeCreated, cmd, CreatedPayload{
		OrganizationID: payload.OrganizationID,
		Name:           payload.Name,
		LeaderUserID:   payload.LeaderUserID,
	})
	if err != nil {
		return nil, err
	}
	return h.commit(ctx, cmd, payload.TeamID, event)
}

func (h *Handler) handleAddMember(ctx context.Context, cmd eventcore.Command) ([]eventcore.Event, error) {
	payload, err := eventcore.PayloadAs[AddMember](cmd)
	if err != nil {
		return nil, err
	}

	s, err := h.loadState(ctx, payload.TeamID)
	if err != nil {
		return nil, err
	}
	if err := s.mutable(payload.TeamID); err != nil {
		return nil, err
	}
	if s.members[payload.UserID] {
		return nil, eventcore.NewDomainError(payload.TeamID, "user %s is already a member", payload.UserID)
	}

	event, err := eventcore.NewEvent(Ref(payload.TeamID), TypeMemberAdded, cmd, MemberAddedPayload{UserID: payload.UserID})
	if err != nil {
		return nil, err
	}
	return h.commit(ctx, cmd, payload.TeamID, event)
}

func (h *Handler) handleRemoveMember(ctx context.Context, cmd eventcore.Command) ([]eventcore.Event, error) {
	payload, err := eventcore.PayloadAs[RemoveMember](cmd)
	if err != nil {
		return nil, err
	}

	s, err := h.loadState(ctx, payload.TeamID)
	if err != nil {
		return nil, err
	}
	if err := s.mutable(payload.TeamID); err != nil {
		return nil, err
	}
	if !s.members[payload.UserID] {
		return nil, eventcore.NewDomainError(payload.TeamID, "user %s is not a member", payload.UserID)
	}
	if payload.UserID == s.leader {
		return nil, eventcore.NewDomainError(payload.TeamID, "the leader cannot be removed; transfer leadership first")
	}

	event, err := eventcore.NewEvent(Ref(payload.TeamID), TypeMemberRemoved, cmd, MemberRemovedPayload{UserID: payload.UserID})
	if err != nil {
		return nil, err
	}
	return h.commit(ctx, cmd, payload.TeamID, event)
}

func (h *Handler) handleTransferLeadership(ctx context.Context, cmd eventcore.Command) ([]eventcore.Event, error) {
	payload, err := eventcore.PayloadAs[TransferLeadership](cmd)
	if err != nil {
		return nil, err
	}

	s, err := h.loadState(ctx, payload.TeamID)
	if err != nil {
		return nil, err
	}
	if err := s.mutable(payload.TeamID); err != nil {
		return nil, err
	}
	if !s.members[payload.ToUserID] {
		return nil, eventcore.NewDomainError(payload.TeamID, "leadership can only transfer to an existing member")
	}
	if payload.ToUserID == s.leader {
		return nil, eventcore.NewDomainError(payload.TeamID, "user %s already leads the team", payload.ToUserID)
	}

	event, err := eventcore.NewEvent(Ref(payload.TeamID), TypeLeadershipTransferred, cmd, LeadershipTransferredPayload{
		FromUserID: s.leader,
		ToUserID:   payload.ToUserID,
	})
	if err != nil {
		return nil, err
	}
	return h.commit(ctx, cmd, payload.TeamID, event)
}

func (h *Handler) handleArchiveTeam(ctx context.Context, cmd eventcore.Command) ([]eventcore.Event, error) {
	payload, err := eventcore.PayloadAs[ArchiveTeam](cmd)
	if err != nil {
		return nil, err
	}

	s, err := h.loadState(ctx, payload.TeamID)
	if err != nil {
		return nil, err
	}
	if err := s.mutable(payload.TeamID); err != nil {
		return nil, err
	}

	event, err := eventcore.NewEvent(Ref(payload.TeamID), TypeArchived, cmd, ArchivedPayload{})
	if err != nil {
		return nil, err
	}
	return h.commit(ctx, cmd, payload.TeamID, event)
}

func (h *Handler) commit(ctx context.Context, cmd eventcore.Command, teamID string, events ...eventcore.Event) ([]eventcore.Event, error) {
	stamped, vector, err := h.log.Append(ctx, Ref(teamID), cmd.BaseVector, events)
	if err != nil {
		return nil, err
	}
	// A cold view store (fresh process over a durable log) must refold the
	// whole stream; feeding it only the new events would fold onto empty state.
	if h.views.Primed(Ref(teamID)) {
		err = h.views.Apply(stamped...)
	} else {
		err = h.views.Rebuild(ctx, h.log, Ref(teamID))
	}
	if err != nil {
		return nil, err
	}
	h.logger.Debug("team events appended",
		zap.String("team_id", teamID),
		zap.Int("count", len(stamped)),
		zap.Any("vector", vector.Versions))
	return stamped, nil
}
