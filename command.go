package eventcore

import (
	"fmt"

	"github.com/google/uuid"
)

// CommandKind identifies a command within the closed set each aggregate
// package declares, e.g. "team.archive". Kinds are constants, never built at
// runtime, so every kind a bus can see is known at compile time.
type CommandKind string

// Command is a request to change state. It is immutable, created by a caller
// and consumed exactly once by a handler; it is not persisted beyond the
// handling transaction.
type Command struct {
	// CommandID identifies this command instance; it becomes the causation id
	// of every event the handler emits.
	CommandID uuid.UUID
	// CorrelationID links the command to the wider causal chain it belongs
	// to. Freshly generated unless the caller propagates an existing one.
	CorrelationID uuid.UUID
	// Kind selects the handler.
	Kind CommandKind
	// Payload carries the kind-specific fields.
	Payload any
	// BaseVector is the version vector the caller observed before deciding to
	// write. Empty means "no known prior state" and opts out of the
	// concurrency check.
	BaseVector VersionVector
}

// NewCommand builds a command with fresh command and correlation ids.
func NewCommand(kind CommandKind, payload any) Command {
	return Command{
		CommandID:     uuid.New(),
		CorrelationID: uuid.New(),
		Kind:          kind,
		Payload:       payload,
	}
}

// WithCorrelation returns a copy carrying an existing correlation id, for
// commands issued as part of a larger causal chain.
func (c Command) WithCorrelation(correlationID uuid.UUID) Command {
	c.CorrelationID = correlationID
	return c
}

// WithBaseVector returns a copy carrying the vector the caller read, enabling
// the optimistic concurrency check on append.
func (c Command) WithBaseVector(vector VersionVector) Command {
	c.BaseVector = vector
	return c
}

// PayloadAs returns the command payload as T. It fails when a handler is
// wired to a command kind whose payload it does not expect, which is a
// registration bug rather than caller input.
func PayloadAs[T any](cmd Command) (T, error) {
	payload, ok := cmd.Payload.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("command %s: unexpected payload type %T", cmd.Kind, cmd.Payload)
	}
	return payload, nil
}
