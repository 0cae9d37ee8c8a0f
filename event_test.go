package eventcore

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	cmd := NewCommand("test.create", testPayload{Name: "acme"})
	ref := AggregateRef{Kind: "test", ID: "t-1"}

	event, err := NewEvent(ref, "test.created", cmd, testPayload{Name: "acme"})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, event.EventID)
	assert.Equal(t, "t-1", event.AggregateID)
	assert.Equal(t, "test", event.AggregateKind)
	assert.Equal(t, EventType("test.created"), event.Type)
	assert.Equal(t, cmd.CommandID, event.CausationID)
	assert.Equal(t, cmd.CorrelationID, event.CorrelationID)
	assert.Zero(t, event.Version, "versions are assigned by the event log")
	assert.Equal(t, ref, event.Ref())
	assert.False(t, event.Timestamp.IsZero())
}

func TestParseRef(t *testing.T) {
	ref, err := ParseRef("team:t-1")
	require.NoError(t, err)
	assert.Equal(t, AggregateRef{Kind: "team", ID: "t-1"}, ref)

	for _, malformed := range []string{"", "team", "team:", ":t-1"} {
		_, err := ParseRef(malformed)
		assert.Error(t, err, malformed)
	}
}

func TestDecodePayload(t *testing.T) {
	cmd := NewCommand("test.create", testPayload{})
	event, err := NewEvent(AggregateRef{Kind: "test", ID: "t-1"}, "test.created", cmd, testPayload{Name: "acme"})
	require.NoError(t, err)

	decoded, err := DecodePayload[testPayload](event)
	require.NoError(t, err)
	assert.Equal(t, "acme", decoded.Name)
}
