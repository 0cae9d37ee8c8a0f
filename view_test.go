package eventcore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterView counts events; it only understands "test.created" and
// "test.updated".
type counterView struct{}

func (counterView) Kind() string          { return "test.counter" }
func (counterView) AggregateKind() string { return "test" }
func (counterView) NewState(aggregateID string) ViewState {
	return &counterState{}
}

type counterState struct {
	Created int
	Updated int
}

func (s *counterState) Apply(event Event) error {
	switch event.Type {
	case "test.created":
		s.Created++
	case "test.updated":
		s.Updated++
	default:
		return &DomainError{AggregateID: event.AggregateID, Reason: "unhandled event type " + string(event.Type)}
	}
	return nil
}

func TestViewStore_ApplyAndGet(t *testing.T) {
	store := NewViewStore()
	store.Register(counterView{})
	ref := AggregateRef{Kind: "test", ID: "t-1"}

	require.NoError(t, store.Apply(testEvent(ref, "test.created"), testEvent(ref, "test.updated")))

	state, err := store.View(ref, "test.counter")
	require.NoError(t, err)
	counter := state.(*counterState)
	assert.Equal(t, 1, counter.Created)
	assert.Equal(t, 1, counter.Updated)
}

func TestViewStore_Primed(t *testing.T) {
	store := NewViewStore()
	store.Register(counterView{})
	ref := AggregateRef{Kind: "test", ID: "t-1"}

	assert.False(t, store.Primed(ref))
	require.NoError(t, store.Apply(testEvent(ref, "test.created")))
	assert.True(t, store.Primed(ref))
	assert.False(t, store.Primed(AggregateRef{Kind: "test", ID: "t-2"}))
}

func TestViewStore_NotFound(t *testing.T) {
	store := NewViewStore()
	store.Register(counterView{})
	ref := AggregateRef{Kind: "test", ID: "t-1"}

	_, err := store.View(ref, "test.counter")
	assert.ErrorIs(t, err, ErrViewNotFound)

	require.NoError(t, store.Apply(testEvent(ref, "test.created")))
	_, err = store.View(ref, "test.unknown")
	assert.ErrorIs(t, err, ErrViewNotFound)
}

func TestViewStore_UnhandledEventTypeFailsLoudly(t *testing.T) {
	store := NewViewStore()
	store.Register(counterView{})
	ref := AggregateRef{Kind: "test", ID: "t-1"}

	err := store.Apply(testEvent(ref, "test.exploded"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test.exploded")
}

func TestViewStore_UnregisteredAggregateKindFails(t *testing.T) {
	store := NewViewStore()
	ref := AggregateRef{Kind: "test", ID: "t-1"}

	err := store.Apply(testEvent(ref, "test.created"))
	assert.Error(t, err)
}

// Rebuilding from the full stream must equal the incrementally maintained
// state.
func TestViewStore_RebuildEqualsIncremental(t *testing.T) {
	log := NewMemoryEventLog()
	incremental := NewViewStore()
	incremental.Register(counterView{})
	ref := AggregateRef{Kind: "test", ID: "t-1"}
	ctx := context.Background()

	types := []EventType{"test.created", "test.updated", "test.updated", "test.updated"}
	for _, eventType := range types {
		stamped, _, err := log.Append(ctx, ref, VersionVector{}, []Event{testEvent(ref, eventType)})
		require.NoError(t, err)
		require.NoError(t, incremental.Apply(stamped...))
	}

	rebuilt := NewViewStore()
	rebuilt.Register(counterView{})
	require.NoError(t, rebuilt.Rebuild(ctx, log, ref))

	want, err := incremental.View(ref, "test.counter")
	require.NoError(t, err)
	got, err := rebuilt.View(ref, "test.counter")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
