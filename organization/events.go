package organization

import "github.com/corefold/eventcore"

// Event types emitted by the organization aggregate.
const (
	// TypeCreated records the creation of an organization.
	TypeCreated eventcore.EventType = "organization.created"
	// TypeRenamed records a display name change.
	TypeRenamed eventcore.EventType = "organization.renamed"
	// TypeMemberAdded records a user joining the organization.
	TypeMemberAdded eventcore.EventType = "organization.member_added"
	// TypeMemberRoleChanged records a role assignment for an existing member.
	TypeMemberRoleChanged eventcore.EventType = "organization.member_role_changed"
	// TypeMemberRemoved records a member leaving the organization.
	TypeMemberRemoved eventcore.EventType = "organization.member_removed"
)

type CreatedPayload struct {
	Name        string `json:"name"`
	OwnerUserID string `json:"owner_user_id"`
}

type RenamedPayload struct {
	Name string `json:"name"`
}

type MemberAddedPayload struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type MemberRoleChangedPayload struct {
	UserID       string `json:"user_id"`
	Role         string `json:"role"`
	PreviousRole string `json:"previous_role"`
}

type MemberRemovedPayload struct {
	UserID string `json:"user_id"`
}
