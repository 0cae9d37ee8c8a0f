package team

import "github.com/corefold/eventcore"

// AggregateKind names the team event stream kind.
const AggregateKind = "team"

// Ref returns the stream reference for a team id.
func Ref(teamID string) eventcore.AggregateRef {
	return eventcore.AggregateRef{Kind: AggregateKind, ID: teamID}
}

// Command kinds accepted by the team handler.
const (
	KindCreateTeam         eventcore.CommandKind = "team.create"
	KindAddMember          eventcore.CommandKind = "team.member_add"
	KindRemoveMember       eventcore.CommandKind = "team.member_remove"
	KindTransferLeadership eventcore.CommandKind = "team.leadership_transfer"
	KindArchiveTeam        eventcore.CommandKind = "team.archive"
)

// Team status values. Archived is terminal: an archived team rejects every
// further mutation.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// CreateTeam provisions a team inside an organization; the leader joins as
// the first member.
type CreateTeam struct {
	TeamID         string
	OrganizationID string
	Name           string
	LeaderUserID   string
}

// AddMember adds a user to the team.
type AddMember struct {
	TeamID string
	UserID string
}

// RemoveMember removes a user other than the current leader.
type RemoveMember struct {
	TeamID string
	UserID string
}

// TransferLeadership hands leadership to an existing member.
type TransferLeadership struct {
	TeamID   string
	ToUserID string
}

// ArchiveTeam retires the team permanently.
type ArchiveTeam struct {
	TeamID string
}
