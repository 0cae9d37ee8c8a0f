package organization

import (
	"fmt"
	"time"

	"github.com/corefold/eventcore"
)

// View kinds maintained for organizations. Details and Members keep
// latest-state only; AuditLog keeps every event.
const (
	ViewDetails  = "organization.details"
	ViewMembers  = "organization.members"
	ViewAuditLog = "organization.audit_log"
)

// Views returns every organization view for registration with a view store.
func Views() []eventcore.View {
	return []eventcore.View{DetailsView{}, MembersView{}, AuditLogView{}}
}

// DetailsView projects organization metadata.
type DetailsView struct{}

func (DetailsView) Kind() string          { return ViewDetails }
func (DetailsView) AggregateKind() string { return AggregateKind }
func (DetailsView) NewState(aggregateID string) eventcore.ViewState {
	return &Details{OrganizationID: aggregateID}
}

// Details is the latest-state snapshot served for organization reads.
type Details struct {
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	OwnerUserID    string    `json:"owner_user_id"`
	MemberCount    int       `json:"member_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (d *Details) Apply(event eventcore.Event) error {
	switch event.Type {
	case TypeCreated:
		payload, err := eventcore.DecodePayload[CreatedPayload](event)
		if err != nil {
			return err
		}
		d.Name = payload.Name
		d.OwnerUserID = payload.OwnerUserID
		d.MemberCount = 1
		d.CreatedAt = event.Timestamp
	case TypeRenamed:
		payload, err := eventcore.DecodePayload[RenamedPayload](event)
		if err != nil {
			return err
		}
		d.Name = payload.Name
	case TypeMemberAdded:
		d.MemberCount++
	case TypeMemberRemoved:
		d.MemberCount--
	case TypeMemberRoleChanged:
		// membership and metadata unchanged
	default:
		return fmt.Errorf("view %s cannot fold event type %s", ViewDetails, event.Type)
	}
	d.UpdatedAt = event.Timestamp
	return nil
}

// MembersView projects the current membership roster.
type MembersView struct{}

func (MembersView) Kind() string          { return ViewMembers }
func (MembersView) AggregateKind() string { return AggregateKind }
func (MembersView) NewState(aggregateID string) eventcore.ViewState {
	return &Members{OrganizationID: aggregateID, Roles: make(map[string]string)}
}

// Members maps user id to current role.
type Members struct {
	OrganizationID string            `json:"organization_id"`
	Roles          map[string]string `json:"roles"`
}

func (m *Members) Apply(event eventcore.Event) error {
	switch event.Type {
	case TypeCreated:
		payload, err := eventcore.DecodePayload[CreatedPayload](event)
		if err != nil {
			return err
		}
		m.Roles[payload.OwnerUserID] = RoleOwner
	case TypeMemberAdded:
		payload, err := eventcore.DecodePayload[MemberAddedPayload](event)
		if err != nil {
			return err
		}
		m.Roles[payload.UserID] = payload.Role
	case TypeMemberRoleChanged:
		payload, err := eventcore.DecodePayload[MemberRoleChangedPayload](event)
		if err != nil {
			return err
		}
		m.Roles[payload.UserID] = payload.Role
	case TypeMemberRemoved:
		payload, err := eventcore.DecodePayload[MemberRemovedPayload](event)
		if err != nil {
			return err
		}
		delete(m.Roles, payload.UserID)
	case TypeRenamed:
		// membership unchanged
	default:
		return fmt.Errorf("view %s cannot fold event type %s", ViewMembers, event.Type)
	}
	return nil
}

// AuditLogView keeps the full event history of an organization.
type AuditLogView struct{}

func (AuditLogView) Kind() string          { return ViewAuditLog }
func (AuditLogView) AggregateKind() string { return AggregateKind }
func (AuditLogView) NewState(aggregateID string) eventcore.ViewState {
	return &AuditLog{OrganizationID: aggregateID}
}

// AuditLog is an append-only record of everything that happened to the
// organization; unlike the latest-state views it never discards events.
type AuditLog struct {
	OrganizationID string            `json:"organization_id"`
	Entries        []eventcore.Event `json:"entries"`
}

func (a *AuditLog) Apply(event eventcore.Event) error {
	switch event.Type {
	case TypeCreated, TypeRenamed, TypeMemberAdded, TypeMemberRoleChanged, TypeMemberRemoved:
		a.Entries = append(a.Entries, event)
	default:
		return fmt.Errorf("view %s cannot fold event type %s", ViewAuditLog, event.Type)
	}
	return nil
}
