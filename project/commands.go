package project

import "github.com/corefold/eventcore"

// AggregateKind names the project event stream kind.
const AggregateKind = "project"

// Ref returns the stream reference for a project id.
func Ref(projectID string) eventcore.AggregateRef {
	return eventcore.AggregateRef{Kind: AggregateKind, ID: projectID}
}

// Command kinds accepted by the project handler.
const (
	KindCreateProject             eventcore.CommandKind = "project.create"
	KindAddRequirement            eventcore.CommandKind = "project.requirement_add"
	KindStartRequirement          eventcore.CommandKind = "project.requirement_start"
	KindCompleteRequirement       eventcore.CommandKind = "project.requirement_complete"
	KindBlockRequirement          eventcore.CommandKind = "project.requirement_block"
	KindUnblockRequirement        eventcore.CommandKind = "project.requirement_unblock"
	KindChangeRequirementPriority eventcore.CommandKind = "project.requirement_priority_change"
)

// Requirement progress statuses. Blocking is an orthogonal flag, not a
// status: a requirement can be in progress and blocked at the same time, and
// unblocking returns it to whatever status it held.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

// Requirement priorities.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

func validPriority(priority string) bool {
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// CreateProject provisions a project inside an organization.
type CreateProject struct {
	ProjectID      string
	OrganizationID string
	Name           string
}

// AddRequirement records a new requirement in the open status.
type AddRequirement struct {
	ProjectID     string
	RequirementID string
	Title         string
	Priority      string
}

// StartRequirement moves an open requirement into progress.
type StartRequirement struct {
	ProjectID     string
	RequirementID string
}

// CompleteRequirement moves an in-progress requirement to done.
type CompleteRequirement struct {
	ProjectID     string
	RequirementID string
}

// BlockRequirement raises the blocked flag without touching the status.
type BlockRequirement struct {
	ProjectID     string
	RequirementID string
	Reason        string
}

// UnblockRequirement clears the blocked flag; the requirement resumes its
// prior status.
type UnblockRequirement struct {
	ProjectID     string
	RequirementID string
}

// ChangeRequirementPriority re-prioritizes any non-terminal requirement.
type ChangeRequirementPriority struct {
	ProjectID     string
	RequirementID string
	Priority      string
}
