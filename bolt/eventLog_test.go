package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corefold/eventcore"
)

type notePayload struct {
	Text string `json:"text"`
}

func openLog(t *testing.T) (*EventLog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.db")
	log, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return log, path
}

func testEvent(t *testing.T, ref eventcore.AggregateRef, eventType eventcore.EventType) eventcore.Event {
	t.Helper()
	cmd := eventcore.NewCommand("test.write", notePayload{})
	event, err := eventcore.NewEvent(ref, eventType, cmd, notePayload{Text: "x"})
	require.NoError(t, err)
	return event
}

func TestAppendAndReadBack(t *testing.T) {
	log, _ := openLog(t)
	ref := eventcore.AggregateRef{Kind: "test", ID: "t-1"}
	ctx := context.Background()

	stamped, vector, err := log.Append(ctx, ref, eventcore.VersionVector{}, []eventcore.Event{
		testEvent(t, ref, "test.created"),
		testEvent(t, ref, "test.updated"),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stamped[0].Version)
	assert.Equal(t, uint64(2), stamped[1].Version)
	assert.Equal(t, uint64(2), vector.Get(eventcore.MasterBranch))

	events, err := log.Events(ctx, ref, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, stamped[0].EventID, events[0].EventID)

	payload, err := eventcore.DecodePayload[notePayload](events[0])
	require.NoError(t, err)
	assert.Equal(t, "x", payload.Text)

	events, err = log.Events(ctx, ref, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(2), events[0].Version)
}

func TestStaleBaseConflicts(t *testing.T) {
	log, _ := openLog(t)
	ref := eventcore.AggregateRef{Kind: "test", ID: "t-1"}
	ctx := context.Background()

	_, vector, err := log.Append(ctx, ref, eventcore.VersionVector{}, []eventcore.Event{testEvent(t, ref, "test.created")})
	require.NoError(t, err)

	_, _, err = log.Append(ctx, ref, eventcore.NewVersionVector(), []eventcore.Event{testEvent(t, ref, "test.updated")})
	require.Error(t, err)
	assert.True(t, eventcore.IsConflict(err))

	// The failed transaction left nothing behind.
	events, err := log.Events(ctx, ref, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, _, err = log.Append(ctx, ref, vector, []eventcore.Event{testEvent(t, ref, "test.updated")})
	assert.NoError(t, err)
}

// An empty append still runs the compatibility check and leaves the stored
// vector untouched, matching the in-memory log.
func TestEmptyAppend(t *testing.T) {
	log, _ := openLog(t)
	ref := eventcore.AggregateRef{Kind: "test", ID: "t-1"}
	ctx := context.Background()

	_, vector, err := log.Append(ctx, ref, eventcore.VersionVector{}, []eventcore.Event{testEvent(t, ref, "test.created")})
	require.NoError(t, err)

	_, _, err = log.Append(ctx, ref, eventcore.NewVersionVector(), nil)
	require.Error(t, err)
	assert.True(t, eventcore.IsConflict(err), "stale base conflicts even with nothing to write")

	_, after, err := log.Append(ctx, ref, vector, nil)
	require.NoError(t, err)
	assert.True(t, after.Equal(vector))

	stored, err := log.VersionVector(ctx, ref)
	require.NoError(t, err)
	assert.True(t, stored.Equal(vector))
}

func TestStreams(t *testing.T) {
	log, _ := openLog(t)
	ctx := context.Background()
	refA := eventcore.AggregateRef{Kind: "test", ID: "a"}
	refB := eventcore.AggregateRef{Kind: "other", ID: "b"}

	_, _, err := log.Append(ctx, refA, eventcore.VersionVector{}, []eventcore.Event{testEvent(t, refA, "test.created")})
	require.NoError(t, err)
	_, _, err = log.Append(ctx, refB, eventcore.VersionVector{}, []eventcore.Event{testEvent(t, refB, "other.created")})
	require.NoError(t, err)

	refs, err := log.Streams(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []eventcore.AggregateRef{refA, refB}, refs)
}

// Versions and vectors survive closing and reopening the database file.
func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	ref := eventcore.AggregateRef{Kind: "test", ID: "t-1"}
	ctx := context.Background()

	log, err := Open(path)
	require.NoError(t, err)
	_, _, err = log.Append(ctx, ref, eventcore.VersionVector{}, []eventcore.Event{
		testEvent(t, ref, "test.created"),
		testEvent(t, ref, "test.updated"),
	})
	require.NoError(t, err)
	require.NoError(t, log.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	vector, err := reopened.VersionVector(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), vector.Get(eventcore.MasterBranch))

	// Appends continue the stream without gaps.
	stamped, _, err := reopened.Append(ctx, ref, vector, []eventcore.Event{testEvent(t, ref, "test.updated")})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stamped[0].Version)
}

func TestStreamsAreIsolated(t *testing.T) {
	log, _ := openLog(t)
	ctx := context.Background()
	refA := eventcore.AggregateRef{Kind: "test", ID: "a"}
	refB := eventcore.AggregateRef{Kind: "other", ID: "a"}

	_, _, err := log.Append(ctx, refA, eventcore.VersionVector{}, []eventcore.Event{testEvent(t, refA, "test.created")})
	require.NoError(t, err)

	// Same id under a different kind is a different stream.
	vector, err := log.VersionVector(ctx, refB)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), vector.Get(eventcore.MasterBranch))

	events, err := log.Events(ctx, refB, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCancelledContext(t *testing.T) {
	log, _ := openLog(t)
	ref := eventcore.AggregateRef{Kind: "test", ID: "t-1"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := log.Append(ctx, ref, eventcore.VersionVector{}, []eventcore.Event{testEvent(t, ref, "test.created")})
	assert.ErrorIs(t, err, context.Canceled)
}
