package eventcore

import (
	"context"
	"sync"
)

// EventLog is the durable, append-only record of events, keyed by aggregate
// stream. Append is the one serialization point of the whole design: the
// version-vector compatibility check, version assignment and the append
// itself happen atomically per stream.
type EventLog interface {
	// Append checks base against the stored vector for ref. If compatible it
	// merges base, increments the owning branch once per event, stamps each
	// event with the next gap-free version (starting at 1), appends, and
	// returns the stamped events plus the new vector. A stale base fails
	// with a ConflictError and nothing is written. An empty events slice
	// still runs the compatibility check but writes nothing and leaves the
	// stored vector untouched.
	Append(ctx context.Context, ref AggregateRef, base VersionVector, events []Event) ([]Event, VersionVector, error)
	// Events returns the ordered stream for ref with Version > fromVersion.
	Events(ctx context.Context, ref AggregateRef, fromVersion uint64) ([]Event, error)
	// VersionVector returns the current vector for ref; a stream with no
	// events yet reports the zero master vector.
	VersionVector(ctx context.Context, ref AggregateRef) (VersionVector, error)
	// Streams lists the refs of every stream holding at least one event, so
	// projections can be rebuilt after a restart.
	Streams(ctx context.Context) ([]AggregateRef, error)
	// Close releases underlying resources.
	Close() error
}

type memoryStream struct {
	mu      sync.Mutex
	ref     AggregateRef
	events  []Event
	vector  VersionVector
	lastVer uint64
}

// memoryEventLog is the in-memory EventLog, used in tests and as the default
// backend when no durable store is configured.
type memoryEventLog struct {
	mu      sync.RWMutex
	streams map[string]*memoryStream
}

// NewMemoryEventLog creates an empty in-memory event log.
func NewMemoryEventLog() EventLog {
	return &memoryEventLog{streams: make(map[string]*memoryStream)}
}

func (l *memoryEventLog) stream(ref AggregateRef) *memoryStream {
	key := ref.String()

	l.mu.RLock()
	s, ok := l.streams[key]
	l.mu.RUnlock()
	if ok {
		return s
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok = l.streams[key]; !ok {
		s = &memoryStream{ref: ref, vector: NewVersionVector()}
		l.streams[key] = s
	}
	return s
}

func (l *memoryEventLog) Append(ctx context.Context, ref AggregateRef, base VersionVector, events []Event) ([]Event, VersionVector, error) {
	s := l.stream(ref)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, VersionVector{}, err
	}

	if !s.vector.CompatibleWith(base) {
		return nil, VersionVector{}, &ConflictError{
			AggregateID: ref.ID,
			Stored:      s.vector.Clone(),
			Supplied:    base.Clone(),
		}
	}
	if len(events) == 0 {
		return nil, s.vector.Clone(), nil
	}

	// Stamp onto copies; nothing is visible until the commit below.
	vector := s.vector.Clone()
	vector.Merge(base)
	stamped := make([]Event, len(events))
	version := s.lastVer
	for i, event := range events {
		version++
		vector.Increment(MasterBranch)
		event.Version = version
		stamped[i] = event
	}

	s.events = append(s.events, stamped...)
	s.vector = vector
	s.lastVer = version
	return stamped, vector.Clone(), nil
}

func (l *memoryEventLog) Events(ctx context.Context, ref AggregateRef, fromVersion uint64) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := l.stream(ref)
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]Event, 0, len(s.events))
	for _, event := range s.events {
		if event.Version > fromVersion {
			result = append(result, event)
		}
	}
	return result, nil
}

func (l *memoryEventLog) VersionVector(ctx context.Context, ref AggregateRef) (VersionVector, error) {
	if err := ctx.Err(); err != nil {
		return VersionVector{}, err
	}

	s := l.stream(ref)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vector.Clone(), nil
}

func (l *memoryEventLog) Streams(ctx context.Context) ([]AggregateRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	refs := make([]AggregateRef, 0, len(l.streams))
	for _, s := range l.streams {
		s.mu.Lock()
		populated := len(s.events) > 0
		s.mu.Unlock()
		if populated {
			refs = append(refs, s.ref)
		}
	}
	return refs, nil
}

func (l *memoryEventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.streams = make(map[string]*memoryStream)
	return nil
}
