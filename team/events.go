package team

import "github.com/corefold/eventcore"

// Event types emitted by the team aggregate.
const (
	// TypeCreated records the creation of a team.
	TypeCreated eventcore.EventType = "team.created"
	// TypeMemberAdded records a user joining the team.
	TypeMemberAdded eventcore.EventType = "team.member_added"
	// TypeMemberRemoved records a user leaving the team.
	TypeMemberRemoved eventcore.EventType = "team.member_removed"
	// TypeLeadershipTransferred records a leadership hand-over.
	TypeLeadershipTransferred eventcore.EventType = "team.leadership_transferred"
	// TypeArchived records the terminal archival of a team. Removal is an
	// event like any other; teams are never physically deleted.
	TypeArchived eventcore.EventType = "team.archived"
)

type CreatedPayload struct {
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	LeaderUserID   string `json:"leader_user_id"`
}

type MemberAddedPayload struct {
	UserID string `json:"user_id"`
}

type MemberRemovedPayload struct {
	UserID string `json:"user_id"`
}

type LeadershipTransferredPayload struct {
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
}

type ArchivedPayload struct{}
