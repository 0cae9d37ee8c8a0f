package project

import (
	"fmt"
	"time"

	"github.com/corefold/eventcore"
)

// View kinds maintained for projects.
const (
	ViewRequirements = "project.requirements"
	ViewActivity     = "project.activity"
)

// Views returns every project view for registration with a view store.
func Views() []eventcore.View {
	return []eventcore.View{RequirementsView{}, ActivityView{}}
}

// RequirementsView projects the current board: every requirement with its
// status, priority and blocked flag.
type RequirementsView struct{}

func (RequirementsView) Kind() string          { return ViewRequirements }
func (RequirementsView) AggregateKind() string { return AggregateKind }
func (RequirementsView) NewState(aggregateID string) eventcore.ViewState {
	return &Requirements{ProjectID: aggregateID, Items: make(map[string]*Requirement)}
}

// Requirement is one row of the board.
type Requirement struct {
	RequirementID string    `json:"requirement_id"`
	Title         string    `json:"title"`
	Status        string    `json:"status"`
	Priority      string    `json:"priority"`
	Blocked       bool      `json:"blocked"`
	BlockReason   string    `json:"block_reason,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Requirements is the folded board state.
type Requirements struct {
	ProjectID      string                  `json:"project_id"`
	OrganizationID string                  `json:"organization_id"`
	Name           string                  `json:"name"`
	Items          map[string]*Requirement `json:"items"`
}

func (p *Requirements) item(requirementID string) (*Requirement, error) {
	r, ok := p.Items[requirementID]
	if !ok {
		return nil, fmt.Errorf("view %s has no requirement %s", ViewRequirements, requirementID)
	}
	return r, nil
}

func (p *Requirements) Apply(event eventcore.Event) error {
	switch event.Type {
	case TypeCreated:
		payload, err := eventcore.DecodePayload[CreatedPayload](event)
		if err != nil {
			return err
		}
		p.OrganizationID = payload.OrganizationID
		p.Name = payload.Name
	case TypeRequirementAdded:
		payload, err := eventcore.DecodePayload[RequirementAddedPayload](event)
		if err != nil {
			return err
		}
		p.Items[payload.RequirementID] = &Requirement{
			RequirementID: payload.RequirementID,
			Title:         payload.Title,
			Status:        StatusOpen,
			Priority:      payload.Priority,
			UpdatedAt:     event.Timestamp,
		}
	case TypeRequirementStarted:
		payload, err := eventcore.DecodePayload[RequirementStartedPayload](event)
		if err != nil {
			return err
		}
		r, err := p.item(payload.RequirementID)
		if err != nil {
			return err
		}
		r.Status = StatusInProgress
		r.UpdatedAt = event.Timestamp
	case TypeRequirementCompleted:
		payload, err := eventcore.DecodePayload[RequirementCompletedPayload](event)
		if err != nil {
			return err
		}
		r, err := p.item(payload.RequirementID)
		if err != nil {
			return err
		}
		r.Status = StatusDone
		r.UpdatedAt = event.Timestamp
	case TypeRequirementBlocked:
		payload, err := eventcore.DecodePayload[RequirementBlockedPayload](event)
		if err != nil {
			return err
		}
		r, err := p.item(payload.RequirementID)
		if err != nil {
			return err
		}
		r.Blocked = true
		r.BlockReason = payload.Reason
		r.UpdatedAt = event.Timestamp
	case TypeRequirementUnblocked:
		payload, err := eventcore.DecodePayload[RequirementUnblockedPayload](event)
		if err != nil {
			return err
		}
		r, err := p.item(payload.RequirementID)
		if err != nil {
			return err
		}
		r.Blocked = false
		r.BlockReason = ""
		r.UpdatedAt = event.Timestamp
	case TypeRequirementPriorityChanged:
		payload, err := eventcore.DecodePayload[RequirementPriorityChangedPayload](event)
		if err != nil {
			return err
		}
		r, err := p.item(payload.RequirementID)
		if err != nil {
			return err
		}
		r.Priority = payload.Priority
		r.UpdatedAt = event.Timestamp
	default:
		return fmt.Errorf("view %s cannot fold event type %s", ViewRequirements, event.Type)
	}
	return nil
}

// ActivityView keeps the full project history, newest last.
type ActivityView struct{}

func (ActivityView) Kind() string          { return ViewActivity }
func (ActivityView) AggregateKind() string { return AggregateKind }
func (ActivityView) NewState(aggregateID string) eventcore.ViewState {
	return &Activity{ProjectID: aggregateID}
}

// Activity is an append-only record of project events.
type Activity struct {
	ProjectID string            `json:"project_id"`
	Entries   []eventcore.Event `json:"entries"`
}

func (a *Activity) Apply(event eventcore.Event) error {
	switch event.Type {
	case TypeCreated, TypeRequirementAdded, TypeRequirementStarted, TypeRequirementCompleted,
		TypeRequirementBlocked, TypeRequirementUnblocked, TypeRequirementPriorityChanged:
		a.Entries = append(a.Entries, event)
	default:
		return fmt.Errorf("view %s cannot fold event type %s", ViewActivity, event.Type)
	}
	return nil
}
