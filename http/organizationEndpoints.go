package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/corefold/eventcore"
	"github.com/corefold/eventcore/organization"
)

type createOrganizationRequest struct {
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	OwnerUserID    string `json:"owner_user_id"`
}

type renameOrganizationRequest struct {
	Name          string            `json:"name"`
	VersionVector map[string]uint64 `json:"version_vector"`
}

type addOrganizationMemberRequest struct {
	UserID        string            `json:"user_id"`
	Role          string            `json:"role"`
	VersionVector map[string]uint64 `json:"version_vector"`
}

type changeMemberRoleRequest struct {
	Role          string            `json:"role"`
	VersionVector map[string]uint64 `json:"version_vector"`
}

type removeMemberRequest struct {
	VersionVector map[string]uint64 `json:"version_vector"`
}

// RegisterOrganizationEndpoints mounts the organization API.
func RegisterOrganizationEndpoints(s *Server, bus eventcore.CommandBus, views eventcore.ViewStore) {
	s.HandleCommand("/organizations", http.MethodPost, bus, func(r *http.Request) (eventcore.Command, error) {
		body, err := decodeBody[createOrganizationRequest](r)
		if err != nil {
			return eventcore.Command{}, err
		}
		if body.OrganizationID == "" {
			body.OrganizationID = uuid.New().String()
		}
		return eventcore.NewCommand(organization.KindCreateOrganization, organization.CreateOrganization{
			OrganizationID: body.OrganizationID,
			Name:           body.Name,
			OwnerUserID:    body.OwnerUserID,
		}), nil
	})

	s.HandleCommand("/organizations/{id}/name", http.MethodPut, bus, func(r *http.Request) (eventcore.Command, error) {
		body, err := decodeBody[renameOrganizationRequest](r)
		if err != nil {
			return eventcore.Command{}, err
		}
		return eventcore.NewCommand(organization.KindRenameOrganization, organization.RenameOrganization{
			OrganizationID: mux.Vars(r)["id"],
			Name:           body.Name,
		}).WithBaseVector(baseVector(body.VersionVector)), nil
	})

	s.HandleCommand("/organizations/{id}/members", http.MethodPost, bus, func(r *http.Request) (eventcore.Command, error) {
		body, err := decodeBody[addOrganizationMemberRequest](r)
		if err != nil {
			return eventcore.Command{}, err
		}
		return eventcore.NewCommand(organization.KindAddMember, organization.AddMember{
			OrganizationID: mux.Vars(r)["id"],
			UserID:         body.UserID,
			Role:           body.Role,
		}).WithBaseVector(baseVector(body.VersionVector)), nil
	})

	s.HandleCommand("/organizations/{id}/members/{userID}/role", http.MethodPut, bus, func(r *http.Request) (eventcore.Command, error) {
		body, err := decodeBody[changeMemberRoleRequest](r)
		if err != nil {
			return eventcore.Command{}, err
		}
		vars := mux.Vars(r)
		return eventcore.NewCommand(organization.KindChangeMemberRole, organization.ChangeMemberRole{
			OrganizationID: vars["id"],
			UserID:         vars["userID"],
			Role:           body.Role,
		}).WithBaseVector(baseVector(body.VersionVector)), nil
	})

	s.HandleCommand("/organizations/{id}/members/{userID}", http.MethodDelete, bus, func(r *http.Request) (eventcore.Command, error) {
		// DELETE may arrive without a body; that just opts out of the check.
		body, err := decodeBody[removeMemberRequest](r)
		if err != nil && !errors.Is(err, io.EOF) {
			return eventcore.Command{}, err
		}
		vars := mux.Vars(r)
		return eventcore.NewCommand(organization.KindRemoveMember, organization.RemoveMember{
			OrganizationID: vars["id"],
			UserID:         vars["userID"],
		}).WithBaseVector(baseVector(body.VersionVector)), nil
	})

	s.HandleView("/organizations/{id}/views/{kind}", func(r *http.Request) (any, error) {
		vars := mux.Vars(r)
		viewKind, err := organizationViewKind(vars["kind"])
		if err != nil {
			return nil, err
		}
		return views.View(organization.Ref(vars["id"]), viewKind)
	})
}

func organizationViewKind(name string) (string, error) {
	switch name {
	case "details":
		return organization.ViewDetails, nil
	case "members":
		return organization.ViewMembers, nil
	case "audit_log":
		return organization.ViewAuditLog, nil
	}
	return "", fmt.Errorf("%w: unknown organization view %q", eventcore.ErrViewNotFound, name)
}
