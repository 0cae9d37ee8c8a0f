package eventcore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHandler struct {
	kinds  []CommandKind
	events []Event
	calls  int
}

func (h *stubHandler) SubscribedTo() map[CommandKind]HandlerFunc {
	subscriptions := make(map[CommandKind]HandlerFunc)
	for _, kind := range h.kinds {
		subscriptions[kind] = func(ctx context.Context, cmd Command) ([]Event, error) {
			h.calls++
			return h.events, nil
		}
	}
	return subscriptions
}

func TestCommandBus_Dispatch(t *testing.T) {
	bus := NewCommandBus(nil)
	handler := &stubHandler{kinds: []CommandKind{"test.create"}, events: []Event{{Type: "test.created"}}}
	require.NoError(t, bus.Subscribe(handler))

	events, err := bus.Dispatch(context.Background(), NewCommand("test.create", testPayload{}))
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, 1, handler.calls)
}

func TestCommandBus_DispatchUnregisteredKind(t *testing.T) {
	bus := NewCommandBus(nil)

	_, err := bus.Dispatch(context.Background(), NewCommand("test.unknown", testPayload{}))
	require.Error(t, err)
	assert.True(t, IsUnregistered(err))
	assert.Contains(t, err.Error(), "test.unknown")
}

func TestCommandBus_DuplicateRegistrationFails(t *testing.T) {
	bus := NewCommandBus(nil)
	require.NoError(t, bus.Subscribe(&stubHandler{kinds: []CommandKind{"test.create"}}))

	err := bus.Subscribe(&stubHandler{kinds: []CommandKind{"test.create"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestCommandBus_WithOverride(t *testing.T) {
	bus := NewCommandBus(nil, WithOverride())
	first := &stubHandler{kinds: []CommandKind{"test.create"}}
	second := &stubHandler{kinds: []CommandKind{"test.create"}}
	require.NoError(t, bus.Subscribe(first))
	require.NoError(t, bus.Subscribe(second))

	_, err := bus.Dispatch(context.Background(), NewCommand("test.create", testPayload{}))
	require.NoError(t, err)
	assert.Equal(t, 0, first.calls, "last registration wins")
	assert.Equal(t, 1, second.calls)
}

// Commands are not deduplicated by id: dispatching the same command twice
// runs the handler twice. Callers that need idempotence must build it
// themselves.
func TestCommandBus_DispatchIsNotIdempotent(t *testing.T) {
	bus := NewCommandBus(nil)
	handler := &stubHandler{kinds: []CommandKind{"test.create"}}
	require.NoError(t, bus.Subscribe(handler))

	cmd := NewCommand("test.create", testPayload{})
	_, err := bus.Dispatch(context.Background(), cmd)
	require.NoError(t, err)
	_, err = bus.Dispatch(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, 2, handler.calls)
}

func TestCommandBus_NilHandler(t *testing.T) {
	bus := NewCommandBus(nil)
	assert.Error(t, bus.Register("test.create", nil))
}
