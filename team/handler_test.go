package team

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corefold/eventcore"
)

type fixture struct {
	log   eventcore.EventLog
	views eventcore.ViewStore
	bus   eventcore.CommandBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := eventcore.NewMemoryEventLog()
	views := eventcore.NewViewStore()
	views.Register(Views()...)
	bus := eventcore.NewCommandBus(nil)
	require.NoError(t, bus.Subscribe(NewHandler(log, views, nil)))
	return &fixture{log: log, views: views, bus: bus}
}

func (f *fixture) dispatch(t *testing.T, kind eventcore.CommandKind, payload any) []eventcore.Event {
	t.Helper()
	events, err := f.bus.Dispatch(context.Background(), eventcore.NewCommand(kind, payload))
	require.NoError(t, err)
	return events
}

func (f *fixture) createTeam(t *testing.T, teamID string) {
	t.Helper()
	f.dispatch(t, KindCreateTeam, CreateTeam{
		TeamID:         teamID,
		OrganizationID: "o-1",
		Name:           "Platform",
		LeaderUserID:   "u-lead",
	})
}

func TestCreateTeam(t *testing.T) {
	f := newFixture(t)
	f.createTeam(t, "t-1")

	state, err := f.views.View(Ref("t-1"), ViewTeam)
	require.NoError(t, err)
	view := state.(*Team)
	assert.Equal(t, "Platform", view.Name)
	assert.Equal(t, "u-lead", view.LeaderUserID)
	assert.Equal(t, StatusActive, view.Status)
	assert.True(t, view.HasMember("u-lead"))
}

func TestTeamMembership(t *testing.T) {
	f := newFixture(t)
	f.createTeam(t, "t-1")
	f.dispatch(t, KindAddMember, AddMember{TeamID: "t-1", UserID: "u-1"})

	_, err := f.bus.Dispatch(context.Background(), eventcore.NewCommand(KindAddMember, AddMember{TeamID: "t-1", UserID: "u-1"}))
	assert.True(t, eventcore.IsDomainError(err), "duplicate member rejected")

	_, err = f.bus.Dispatch(context.Background(), eventcore.NewCommand(KindRemoveMember, RemoveMember{TeamID: "t-1", UserID: "u-lead"}))
	assert.True(t, eventcore.IsDomainError(err), "leader cannot be removed")

	f.dispatch(t, KindRemoveMember, RemoveMember{TeamID: "t-1", UserID: "u-1"})
	state, err := f.views.View(Ref("t-1"), ViewTeam)
	require.NoError(t, err)
	assert.Equal(t, []string{"u-lead"}, state.(*Team).Members())
}

func TestTransferLeadership(t *testing.T) {
	f := newFixture(t)
	f.createTeam(t, "t-1")

	_, err := f.bus.Dispatch(context.Background(), eventcore.NewCommand(KindTransferLeadership, TransferLeadership{TeamID: "t-1", ToUserID: "u-1"}))
	assert.True(t, eventcore.IsDomainError(err), "leadership only transfers to an existing member")

	f.dispatch(t, KindAddMember, AddMember{TeamID: "t-1", UserID: "u-1"})
	events := f.dispatch(t, KindTransferLeadership, TransferLeadership{TeamID: "t-1", ToUserID: "u-1"})

	payload, err := eventcore.DecodePayload[LeadershipTransferredPayload](events[0])
	require.NoError(t, err)
	assert.Equal(t, "u-lead", payload.FromUserID)
	assert.Equal(t, "u-1", payload.ToUserID)

	state, err := f.views.View(Ref("t-1"), ViewTeam)
	require.NoError(t, err)
	assert.Equal(t, "u-1", state.(*Team).LeaderUserID)

	// The old leader is now removable.
	f.dispatch(t, KindRemoveMember, RemoveMember{TeamID: "t-1", UserID: "u-lead"})
}

func TestArchivedTeamIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.createTeam(t, "t-1")
	f.dispatch(t, KindArchiveTeam, ArchiveTeam{TeamID: "t-1"})

	state, err := f.views.View(Ref("t-1"), ViewTeam)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, state.(*Team).Status)

	for _, cmd := range []eventcore.Command{
		eventcore.NewCommand(KindAddMember, AddMember{TeamID: "t-1", UserID: "u-2"}),
		eventcore.NewCommand(KindRemoveMember, RemoveMember{TeamID: "t-1", UserID: "u-lead"}),
		eventcore.NewCommand(KindTransferLeadership, TransferLeadership{TeamID: "t-1", ToUserID: "u-lead"}),
		eventcore.NewCommand(KindArchiveTeam, ArchiveTeam{TeamID: "t-1"}),
	} {
		_, err := f.bus.Dispatch(context.Background(), cmd)
		assert.True(t, eventcore.IsDomainError(err), string(cmd.Kind))
	}
}

// Two callers race on the same team: the second writer's stale vector is a
// concurrency conflict, and after re-reading the fresh state the same request
// is rejected by the domain rule instead.
func TestStaleVectorThenDomainRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createTeam(t, "t-1")
	f.dispatch(t, KindAddMember, AddMember{TeamID: "t-1", UserID: "u-1"})
	f.dispatch(t, KindAddMember, AddMember{TeamID: "t-1", UserID: "u-2"})

	// Both callers read the team at {master: 3}.
	shared, err := f.log.VersionVector(ctx, Ref("t-1"))
	require.NoError(t, err)
	require.Equal(t, uint64(3), shared.Get(eventcore.MasterBranch))

	// Caller X archives the team; the vector advances to {master: 4}.
	_, err = f.bus.Dispatch(ctx, eventcore.NewCommand(KindArchiveTeam, ArchiveTeam{TeamID: "t-1"}).WithBaseVector(shared))
	require.NoError(t, err)

	// Caller Y adds a member using the stale vector: concurrency conflict.
	add := eventcore.NewCommand(KindAddMember, AddMember{TeamID: "t-1", UserID: "u-3"})
	_, err = f.bus.Dispatch(ctx, add.WithBaseVector(shared))
	require.Error(t, err)
	assert.True(t, eventcore.IsConflict(err))

	// Y re-reads and resubmits; now the domain rule rejects the mutation.
	fresh, err := f.log.VersionVector(ctx, Ref("t-1"))
	require.NoError(t, err)
	require.Equal(t, uint64(4), fresh.Get(eventcore.MasterBranch))

	retry := eventcore.NewCommand(KindAddMember, AddMember{TeamID: "t-1", UserID: "u-3"})
	_, err = f.bus.Dispatch(ctx, retry.WithBaseVector(fresh))
	require.Error(t, err)
	assert.True(t, eventcore.IsDomainError(err))
	assert.Contains(t, err.Error(), "archived")
}
