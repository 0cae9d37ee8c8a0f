package eventcore

import (
	"context"
	"fmt"
	"sync"
)

// ViewState is one materialized projection instance. Apply folds a single
// event into the state and must be deterministic, total and replayable: an
// event type the view does not handle is a design error and must be reported,
// never silently skipped.
type ViewState interface {
	Apply(event Event) error
}

// View defines one projection kind over an aggregate kind's event stream.
// Several views can fold the same stream independently, e.g. a latest-state
// view next to an append-only audit log.
type View interface {
	// Kind names the view, e.g. "organization.members".
	Kind() string
	// AggregateKind names the stream the view folds.
	AggregateKind() string
	// NewState returns the empty state a fresh fold starts from.
	NewState(aggregateID string) ViewState
}

// ViewStore owns every materialized view and is the only component permitted
// to mutate them, which it does exclusively by folding events.
type ViewStore interface {
	// Register adds views. Call at startup, before events flow.
	Register(views ...View)
	// Apply folds events into every registered view of their aggregate kind.
	Apply(events ...Event) error
	// View returns the current folded state, or ErrViewNotFound if no events
	// exist for the aggregate or the view kind is unknown.
	View(ref AggregateRef, viewKind string) (ViewState, error)
	// Primed reports whether the store holds folded state for ref. A cold
	// ref whose stream already has history must be rebuilt from the log, not
	// incrementally fed, or the fold would start from empty state mid-stream.
	Primed(ref AggregateRef) bool
	// Rebuild discards the views for ref and refolds the full event stream
	// from the log. The result must equal the incrementally maintained state.
	Rebuild(ctx context.Context, log EventLog, ref AggregateRef) error
}

type viewStore struct {
	mu    sync.RWMutex
	views map[string][]View               // aggregate kind -> views
	state map[string]map[string]ViewState // ref key -> view kind -> state
}

// NewViewStore creates an empty view store.
func NewViewStore() ViewStore {
	return &viewStore{
		views: make(map[string][]View),
		state: make(map[string]map[string]ViewState),
	}
}

func (s *viewStore) Register(views ...View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, view := range views {
		s.views[view.AggregateKind()] = append(s.views[view.AggregateKind()], view)
	}
}

func (s *viewStore) Apply(events ...Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(events)
}

func (s *viewStore) apply(events []Event) error {
	for _, event := range events {
		views := s.views[event.AggregateKind]
		if len(views) == 0 {
			return fmt.Errorf("no views registered for aggregate kind %s", event.AggregateKind)
		}
		key := event.Ref().String()
		states, ok := s.state[key]
		if !ok {
			states = make(map[string]ViewState, len(views))
			s.state[key] = states
		}
		for _, view := range views {
			state, ok := states[view.Kind()]
			if !ok {
				state = view.NewState(event.AggregateID)
				states[view.Kind()] = state
			}
			if err := state.Apply(event); err != nil {
				return fmt.Errorf("fold %s into view %s: %w", event.Type, view.Kind(), err)
			}
		}
	}
	return nil
}

func (s *viewStore) View(ref AggregateRef, viewKind string) (ViewState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	states, ok := s.state[ref.String()]
	if !ok {
		return nil, fmt.Errorf("%w: no state for %s", ErrViewNotFound, ref)
	}
	state, ok := states[viewKind]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no view %s", ErrViewNotFound, ref, viewKind)
	}
	return state, nil
}

func (s *viewStore) Primed(ref AggregateRef) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.state[ref.String()]
	return ok
}

func (s *viewStore) Rebuild(ctx context.Context, log EventLog, ref AggregateRef) error {
	events, err := log.Events(ctx, ref, 0)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state, ref.String())
	return s.apply(events)
}
