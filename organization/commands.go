package organization

import "github.com/corefold/eventcore"

// AggregateKind names the organization event stream kind.
const AggregateKind = "organization"

// Ref returns the stream reference for an organization id.
func Ref(organizationID string) eventcore.AggregateRef {
	return eventcore.AggregateRef{Kind: AggregateKind, ID: organizationID}
}

// Command kinds accepted by the organization handler.
const (
	KindCreateOrganization eventcore.CommandKind = "organization.create"
	KindRenameOrganization eventcore.CommandKind = "organization.rename"
	KindAddMember          eventcore.CommandKind = "organization.member_add"
	KindChangeMemberRole   eventcore.CommandKind = "organization.member_role_change"
	KindRemoveMember       eventcore.CommandKind = "organization.member_remove"
)

// Member roles.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

func validRole(role string) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// CreateOrganization provisions a new organization with its owner as the
// first member.
type CreateOrganization struct {
	OrganizationID string
	Name           string
	OwnerUserID    string
}

// RenameOrganization changes the display name.
type RenameOrganization struct {
	OrganizationID string
	Name           string
}

// AddMember adds a user with a role.
type AddMember struct {
	OrganizationID string
	UserID         string
	Role           string
}

// ChangeMemberRole assigns an existing member a new role.
type ChangeMemberRole struct {
	OrganizationID string
	UserID         string
	Role           string
}

// RemoveMember removes a member other than the owner.
type RemoveMember struct {
	OrganizationID string
	UserID         string
}
