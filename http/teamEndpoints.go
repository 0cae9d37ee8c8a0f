package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/corefold/eventcore"
	"github.com/corefold/eventcore/team"
)

type createTeamRequest struct {
	TeamID         string `json:"team_id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	LeaderUserID   string `json:"leader_user_id"`
}

type addTeamMemberRequest struct {
	UserID        string            `json:"user_id"`
	VersionVector map[string]uint64 `json:"version_vector"`
}

type transferLeadershipRequest struct {
	ToUserID      string            `json:"to_user_id"`
	VersionVector map[string]uint64 `json:"version_vector"`
}

type archiveTeamRequest struct {
	VersionVector map[string]uint64 `json:"version_vector"`
}

// RegisterTeamEndpoints mounts the team API.
func RegisterTeamEndpoints(s *Server, bus eventcore.CommandBus, views eventcore.ViewStore) {
	s.HandleCommand("/teams", http.MethodPost, bus, func(r *http.Request) (eventcore.Command, error) {
		body, err := decodeBody[createTeamRequest](r)
		if err != nil {
			return eventcore.Command{}, err
		}
		if body.TeamID == "" {
			body.TeamID = uuid.New().String()
		}
		return eventcore.NewCommand(team.KindCreateTeam, team.CreateTeam{
			TeamID:         body.TeamID,
			OrganizationID: body.OrganizationID,
			Name:           body.Name,
			LeaderUserID:   body.LeaderUserID,
		}), nil
	})

	s.HandleCommand("/teams/{id}/members", http.MethodPost, bus, func(r *http.Request) (eventcore.Command, error) {
		body, err := decodeBody[addTeamMemberRequest](r)
		if err != nil {
			return eventcore.Command{}, err
		}
		return eventcore.NewCommand(team.KindAddMember, team.AddMember{
			TeamID: mux.Vars(r)["id"],
			UserID: body.UserID,
		}).WithBaseVector(baseVector(body.VersionVector)), nil
	})

	s.HandleCommand("/teams/{id}/members/{userID}", http.MethodDelete, bus, func(r *http.Request) (eventcore.Command, error) {
		body, err := decodeBody[archiveTeamRequest](r)
		if err != nil && !errors.Is(err, io.EOF) {
			return eventcore.Command{}, err
		}
		vars := mux.Vars(r)
		return eventcore.NewCommand(team.KindRemoveMember, team.RemoveMember{
			TeamID: vars["id"],
			UserID: vars["userID"],
		}).WithBaseVector(baseVector(body.VersionVector)), nil
	})

	s.HandleCommand("/teams/{id}/leader", http.MethodPut, bus, func(r *http.Request) (eventcore.Command, error) {
		body, err := decodeBody[transferLeadershipRequest](r)
		if err != nil {
			return eventcore.Command{}, err
		}
		return eventcore.NewCommand(team.KindTransferLeadership, team.TransferLeadership{
			TeamID:   mux.Vars(r)["id"],
			ToUserID: body.ToUserID,
		}).WithBaseVector(baseVector(body.VersionVector)), nil
	})

	s.HandleCommand("/teams/{id}/archive", http.MethodPost, bus, func(r *http.Request) (eventcore.Command, error) {
		body, err := decodeBody[archiveTeamRequest](r)
		if err != nil && !errors.Is(err, io.EOF) {
			return eventcore.Command{}, err
		}
		return eventcore.NewCommand(team.KindArchiveTeam, team.ArchiveTeam{
			TeamID: mux.Vars(r)["id"],
		}).WithBaseVector(baseVector(body.VersionVector)), nil
	})

	s.HandleView("/teams/{id}", func(r *http.Request) (any, error) {
		return views.View(team.Ref(mux.Vars(r)["id"]), team.ViewTeam)
	})
}
