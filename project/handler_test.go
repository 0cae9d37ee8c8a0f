package project

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

func (f *fixture) dispatch(t *testing.T, kind eventcore.CommandKind, payload any) {
	t.Helper()
	_, err := f.bus.Dispatch(context.Background(), eventcore.NewCommand(kind, payload))
	require.NoError(t, err)
}

func (f *fixture) dispatchErr(kind eventcore.CommandKind, payload any) error {
	_, err := f.bus.Dispatch(context.Background(), eventcore.NewCommand(kind, payload))
	return err
}

func (f *fixture) board(t *testing.T, projectID string) *Requirements {
	t.Helper()
	state, err := f.views.View(Ref(projectID), ViewRequirements)
	require.NoError(t, err)
	return state.(*Requirements)
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	f.dispatch(t, KindCreateProject, CreateProject{ProjectID: "p-1", OrganizationID: "o-1", Name: "Rollout"})
	f.dispatch(t, KindAddRequirement, AddRequirement{ProjectID: "p-1", RequirementID: "r-1", Title: "Design schema", Priority: PriorityHigh})
}

func TestCreateProject(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	board := f.board(t, "p-1")
	assert.Equal(t, "Rollout", board.Name)
	assert.Equal(t, "o-1", board.OrganizationID)
	require.Contains(t, board.Items, "r-1")
	assert.Equal(t, StatusOpen, board.Items["r-1"].Status)
	assert.Equal(t, PriorityHigh, board.Items["r-1"].Priority)

	err := f.dispatchErr(KindCreateProject, CreateProject{ProjectID: "p-1", OrganizationID: "o-1", Name: "Rollout again"})
	assert.True(t, eventcore.IsDomainError(err))
}

func TestAddRequirement_Validation(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	err := f.dispatchErr(KindAddRequirement, AddRequirement{ProjectID: "p-1", RequirementID: "r-1", Title: "Again", Priority: PriorityLow})
	assert.True(t, eventcore.IsDomainError(err), "duplicate requirement id")

	err = f.dispatchErr(KindAddRequirement, AddRequirement{ProjectID: "p-1", RequirementID: "r-2", Title: "X", Priority: "urgent"})
	assert.True(t, eventcore.IsDomainError(err), "unknown priority")

	err = f.dispatchErr(KindAddRequirement, AddRequirement{ProjectID: "p-ghost", RequirementID: "r-1", Title: "X", Priority: PriorityLow})
	assert.True(t, eventcore.IsDomainError(err), "project must exist")
}

func TestRequirementLifecycle(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	// done is only reachable through in_progress.
	err := f.dispatchErr(KindCompleteRequirement, CompleteRequirement{ProjectID: "p-1", RequirementID: "r-1"})
	assert.True(t, eventcore.IsDomainError(err))

	f.dispatch(t, KindStartRequirement, StartRequirement{ProjectID: "p-1", RequirementID: "r-1"})
	assert.Equal(t, StatusInProgress, f.board(t, "p-1").Items["r-1"].Status)

	err = f.dispatchErr(KindStartRequirement, StartRequirement{ProjectID: "p-1", RequirementID: "r-1"})
	assert.True(t, eventcore.IsDomainError(err), "start only from open")

	f.dispatch(t, KindCompleteRequirement, CompleteRequirement{ProjectID: "p-1", RequirementID: "r-1"})
	assert.Equal(t, StatusDone, f.board(t, "p-1").Items["r-1"].Status)

	// done is terminal.
	err = f.dispatchErr(KindStartRequirement, StartRequirement{ProjectID: "p-1", RequirementID: "r-1"})
	assert.True(t, eventcore.IsDomainError(err))
	err = f.dispatchErr(KindBlockRequirement, BlockRequirement{ProjectID: "p-1", RequirementID: "r-1", Reason: "late"})
	assert.True(t, eventcore.IsDomainError(err))
	err = f.dispatchErr(KindChangeRequirementPriority, ChangeRequirementPriority{ProjectID: "p-1", RequirementID: "r-1", Priority: PriorityLow})
	assert.True(t, eventcore.IsDomainError(err))
}

// Blocking is orthogonal to status: a blocked requirement keeps its status and
// resumes it when unblocked.
func TestBlockedFlagIsOrthogonal(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	f.dispatch(t, KindStartRequirement, StartRequirement{ProjectID: "p-1", RequirementID: "r-1"})
	f.dispatch(t, KindBlockRequirement, BlockRequirement{ProjectID: "p-1", RequirementID: "r-1", Reason: "waiting on vendor"})

	item := f.board(t, "p-1").Items["r-1"]
	assert.True(t, item.Blocked)
	assert.Equal(t, "waiting on vendor", item.BlockReason)
	assert.Equal(t, StatusInProgress, item.Status, "status survives blocking")

	err := f.dispatchErr(KindCompleteRequirement, CompleteRequirement{ProjectID: "p-1", RequirementID: "r-1"})
	assert.True(t, eventcore.IsDomainError(err), "blocked requirement cannot complete")

	err = f.dispatchErr(KindBlockRequirement, BlockRequirement{ProjectID: "p-1", RequirementID: "r-1", Reason: "twice"})
	assert.True(t, eventcore.IsDomainError(err), "already blocked")

	f.dispatch(t, KindUnblockRequirement, UnblockRequirement{ProjectID: "p-1", RequirementID: "r-1"})
	item = f.board(t, "p-1").Items["r-1"]
	assert.False(t, item.Blocked)
	assert.Empty(t, item.BlockReason)
	assert.Equal(t, StatusInProgress, item.Status, "prior status restored")

	// Now completion goes through.
	f.dispatch(t, KindCompleteRequirement, CompleteRequirement{ProjectID: "p-1", RequirementID: "r-1"})

	err = f.dispatchErr(KindUnblockRequirement, UnblockRequirement{ProjectID: "p-1", RequirementID: "r-1"})
	assert.True(t, eventcore.IsDomainError(err), "unblock only when blocked")
}

func TestChangeRequirementPriority(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	f.dispatch(t, KindChangeRequirementPriority, ChangeRequirementPriority{ProjectID: "p-1", RequirementID: "r-1", Priority: PriorityCritical})
	assert.Equal(t, PriorityCritical, f.board(t, "p-1").Items["r-1"].Priority)

	err := f.dispatchErr(KindChangeRequirementPriority, ChangeRequirementPriority{ProjectID: "p-1", RequirementID: "r-ghost", Priority: PriorityLow})
	assert.True(t, eventcore.IsDomainError(err))
}

// A stream mutating a requirement that was never added is corrupt; the fold
// must report it instead of panicking.
func TestCorruptStreamFailsFold(t *testing.T) {
	f := newFixture(t)
	f.dispatch(t, KindCreateProject, CreateProject{ProjectID: "p-1", OrganizationID: "o-1", Name: "Rollout"})

	// Write a started event for an unknown requirement straight to the log,
	// bypassing the handler's validation.
	cmd := eventcore.NewCommand(KindStartRequirement, struct{}{})
	event, err := eventcore.NewEvent(Ref("p-1"), TypeRequirementStarted, cmd, RequirementStartedPayload{RequirementID: "r-ghost"})
	require.NoError(t, err)
	_, _, err = f.log.Append(context.Background(), Ref("p-1"), eventcore.VersionVector{}, []eventcore.Event{event})
	require.NoError(t, err)

	err = f.dispatchErr(KindAddRequirement, AddRequirement{ProjectID: "p-1", RequirementID: "r-1", Title: "X", Priority: PriorityLow})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "r-ghost")
}

func TestActivityKeepsFullHistory(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	f.dispatch(t, KindStartRequirement, StartRequirement{ProjectID: "p-1", RequirementID: "r-1"})
	f.dispatch(t, KindBlockRequirement, BlockRequirement{ProjectID: "p-1", RequirementID: "r-1", Reason: "x"})
	f.dispatch(t, KindUnblockRequirement, UnblockRequirement{ProjectID: "p-1", RequirementID: "r-1"})

	state, err := f.views.View(Ref("p-1"), ViewActivity)
	require.NoError(t, err)
	activity := state.(*Activity)
	require.Len(t, activity.Entries, 5)
	for i, entry := range activity.Entries {
		assert.Equal(t, uint64(i+1), entry.Version)
	}
}
