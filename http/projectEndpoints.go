package http

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/corefold/eventcore"
	"github.com/corefold/eventcore/project"
)

type createProjectRequest struct {
	ProjectID      string `json:"project_id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
}

type addRequirementRequest struct {
	RequirementID string            `json:"requirement_id"`
	Title         string            `json:"title"`
	Priority      string            `json:"priority"`
	VersionVector map[string]uint64 `json:"version_vector"`
}

type requirementTransitionRequest struct {
	Reason        string            `json:"reason,omitempty"`
	Priority      string            `json:"priority,omitempty"`
	VersionVector map[string]uint64 `json:"version_vector"`
}

// RegisterProjectEndpoints mounts the project API. Requirement transitions
// share one route with the action in the path.
func RegisterProjectEndpoints(s *Server, bus eventcore.CommandBus, views eventcore.ViewStore) {
	s.HandleCommand("/projects", http.MethodPost, bus, func(r *http.Request) (eventcore.Command, error) {
		body, err := decodeBody[createProjectRequest](r)
		if err != nil {
			return eventcore.Command{}, err
		}
		if body.ProjectID == "" {
			body.ProjectID = uuid.New().String()
		}
		return eventcore.NewCommand(project.KindCreateProject, project.CreateProject{
			ProjectID:      body.ProjectID,
			OrganizationID: body.OrganizationID,
			Name:           body.Name,
		}), nil
	})

	s.HandleCommand("/projects/{id}/requirements", http.MethodPost, bus, func(r *http.Request) (eventcore.Command, error) {
		body, err := decodeBody[addRequirementRequest](r)
		if err != nil {
			return eventcore.Command{}, err
		}
		if body.RequirementID == "" {
			body.RequirementID = uuid.New().String()
		}
		return eventcore.NewCommand(project.KindAddRequirement, project.AddRequirement{
			ProjectID:     mux.Vars(r)["id"],
			RequirementID: body.RequirementID,
			Title:         body.Title,
			Priority:      body.Priority,
		}).WithBaseVector(baseVector(body.VersionVector)), nil
	})

	s.HandleCommand("/projects/{id}/requirements/{reqID}/{action}", http.MethodPost, bus, func(r *http.Request) (eventcore.Command, error) {
		body, err := decodeBody[requirementTransitionRequest](r)
		if err != nil {
			return eventcore.Command{}, err
		}
		vars := mux.Vars(r)
		projectID, requirementID := vars["id"], vars["reqID"]

		var cmd eventcore.Command
		switch vars["action"] {
		case "start":
			cmd = eventcore.NewCommand(project.KindStartRequirement, project.StartRequirement{
				ProjectID: projectID, RequirementID: requirementID,
			})
		case "complete":
			cmd = eventcore.NewCommand(project.KindCompleteRequirement, project.CompleteRequirement{
				ProjectID: projectID, RequirementID: requirementID,
			})
		case "block":
			cmd = eventcore.NewCommand(project.KindBlockRequirement, project.BlockRequirement{
				ProjectID: projectID, RequirementID: requirementID, Reason: body.Reason,
			})
		case "unblock":
			cmd = eventcore.NewCommand(project.KindUnblockRequirement, project.UnblockRequirement{
				ProjectID: projectID, RequirementID: requirementID,
			})
		case "priority":
			cmd = eventcore.NewCommand(project.KindChangeRequirementPriority, project.ChangeRequirementPriority{
				ProjectID: projectID, RequirementID: requirementID, Priority: body.Priority,
			})
		default:
			return eventcore.Command{}, fmt.Errorf("unknown requirement action %q", vars["action"])
		}
		return cmd.WithBaseVector(baseVector(body.VersionVector)), nil
	})

	s.HandleView("/projects/{id}/views/{kind}", func(r *http.Request) (any, error) {
		vars := mux.Vars(r)
		viewKind, err := projectViewKind(vars["kind"])
		if err != nil {
			return nil, err
		}
		return views.View(project.Ref(vars["id"]), viewKind)
	})
}

func projectViewKind(name string) (string, error) {
	switch name {
	case "requirements":
		return project.ViewRequirements, nil
	case "activity":
		return project.ViewActivity, nil
	}
	return "", fmt.Errorf("%w: unknown project view %q", eventcore.ErrViewNotFound, name)
}
