package project

import "github.com/corefold/eventcore"

// Event types emitted by the project aggregate.
const (
	// TypeCreated records the creation of a project.
	TypeCreated eventcore.EventType = "project.created"
	// TypeRequirementAdded records a new requirement.
	TypeRequirementAdded eventcore.EventType = "project.requirement_added"
	// TypeRequirementStarted records an open requirement entering progress.
	TypeRequirementStarted eventcore.EventType = "project.requirement_started"
	// TypeRequirementCompleted records an in-progress requirement finishing.
	TypeRequirementCompleted eventcore.EventType = "project.requirement_completed"
	// TypeRequirementBlocked records the blocked flag being raised.
	TypeRequirementBlocked eventcore.EventType = "project.requirement_blocked"
	// TypeRequirementUnblocked records the blocked flag being cleared.
	TypeRequirementUnblocked eventcore.EventType = "project.requirement_unblocked"
	// TypeRequirementPriorityChanged records a re-prioritization.
	TypeRequirementPriorityChanged eventcore.EventType = "project.requirement_priority_changed"
)

type CreatedPayload struct {
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
}

type RequirementAddedPayload struct {
	RequirementID string `json:"requirement_id"`
	Title         string `json:"title"`
	Priority      string `json:"priority"`
}

type RequirementStartedPayload struct {
	RequirementID string `json:"requirement_id"`
}

type RequirementCompletedPayload struct {
	RequirementID string `json:"requirement_id"`
}

type RequirementBlockedPayload struct {
	RequirementID string `json:"requirement_id"`
	Reason        string `json:"reason"`
}

type RequirementUnblockedPayload struct {
	RequirementID string `json:"requirement_id"`
}

type RequirementPriorityChangedPayload struct {
	RequirementID string `json:"requirement_id"`
	Priority      string `json:"priority"`
}
