package team

import (
	"fmt"
	"sort"
	"time"

	"github.com/corefold/eventcore"
)

// ViewTeam is the single latest-state view kind kept per team.
const ViewTeam = "team.details"

// Views returns every team view for registration with a view store.
func Views() []eventcore.View {
	return []eventcore.View{TeamView{}}
}

// TeamView projects the full current state of a team.
type TeamView struct{}

func (TeamView) Kind() string          { return ViewTeam }
func (TeamView) AggregateKind() string { return AggregateKind }
func (TeamView) NewState(aggregateID string) eventcore.ViewState {
	return &Team{TeamID: aggregateID, Status: StatusActive, MemberSet: make(map[string]bool)}
}

// Team is the folded team snapshot.
type Team struct {
	TeamID         string    `json:"team_id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	LeaderUserID   string    `json:"leader_user_id"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	ArchivedAt     time.Time `json:"archived_at,omitempty"`

	// MemberSet is the current roster keyed by user id.
	MemberSet map[string]bool `json:"members"`
}

// Members returns the current roster in stable order.
func (t *Team) Members() []string {
	roster := make([]string, 0, len(t.MemberSet))
	for userID := range t.MemberSet {
		roster = append(roster, userID)
	}
	sort.Strings(roster)
	return roster
}

// HasMember reports whether a user is currently on the team.
func (t *Team) HasMember(userID string) bool {
	return t.MemberSet[userID]
}

func (t *Team) Apply(event eventcore.Event) error {
	switch event.Type {
	case TypeCreated:
		payload, err := eventcore.DecodePayload[CreatedPayload](event)
		if err != nil {
			return err
		}
		t.OrganizationID = payload.OrganizationID
		t.Name = payload.Name
		t.LeaderUserID = payload.LeaderUserID
		t.MemberSet[payload.LeaderUserID] = true
		t.CreatedAt = event.Timestamp
	case TypeMemberAdded:
		payload, err := eventcore.DecodePayload[MemberAddedPayload](event)
		if err != nil {
			return err
		}
		t.MemberSet[payload.UserID] = true
	case TypeMemberRemoved:
		payload, err := eventcore.DecodePayload[MemberRemovedPayload](event)
		if err != nil {
			return err
		}
		delete(t.MemberSet, payload.UserID)
	case TypeLeadershipTransferred:
		payload, err := eventcore.DecodePayload[LeadershipTransferredPayload](event)
		if err != nil {
			return err
		}
		t.LeaderUserID = payload.ToUserID
	case TypeArchived:
		t.Status = StatusArchived
		t.ArchivedAt = event.Timestamp
	default:
		return fmt.Errorf("view %s cannot fold event type %s", ViewTeam, event.Type)
	}
	t.UpdatedAt = event.Timestamp
	return nil
}
