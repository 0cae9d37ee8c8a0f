package eventcore

import (
	"errors"
	"fmt"
)

// DomainError reports a command that failed validation against current
// aggregate state. The input itself is invalid, so it is never retried
// automatically; the reason is meant for a human.
type DomainError struct {
	AggregateID string
	Reason      string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("domain error on %s: %s", e.AggregateID, e.Reason)
}

// NewDomainError builds a DomainError with a formatted reason.
func NewDomainError(aggregateID, format string, args ...any) error {
	return &DomainError{AggregateID: aggregateID, Reason: fmt.Sprintf(format, args...)}
}

// IsDomainError reports whether err is, or wraps, a DomainError.
func IsDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}

// ConflictError reports a write whose base vector was stale: someone else
// advanced the aggregate first. This is the expected path under contention;
// the caller re-reads the current vector and resubmits.
type ConflictError struct {
	AggregateID string
	Stored      VersionVector
	Supplied    VersionVector
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrency conflict on %s: stored %v is ahead of supplied %v",
		e.AggregateID, e.Stored.Versions, e.Supplied.Versions)
}

// IsConflict reports whether err is, or wraps, a ConflictError.
func IsConflict(err error) bool {
	var conflictErr *ConflictError
	return errors.As(err, &conflictErr)
}

// UnregisteredCommandError reports a dispatch for a command kind no handler
// was registered for. A programmer error; it should never reach production.
type UnregisteredCommandError struct {
	Kind CommandKind
}

func (e *UnregisteredCommandError) Error() string {
	return fmt.Sprintf("no handler registered for command kind %s", e.Kind)
}

// IsUnregistered reports whether err is, or wraps, an UnregisteredCommandError.
func IsUnregistered(err error) bool {
	var unregisteredErr *UnregisteredCommandError
	return errors.As(err, &unregisteredErr)
}

// ErrViewNotFound signals a view lookup for an aggregate with no recorded
// events or a view kind that was never registered.
var ErrViewNotFound = errors.New("view not found")
