package store

import (
	"slices"
	"sync"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/event"
)

// DefaultCapacity is the number of events retained when no capacity is configured.
const DefaultCapacity = 500

// Merge returns existing and batch combined, sorted by timestamp descending and cut to
// capacity, plus the events dropped by the cut. Equal timestamps keep insertion order,
// existing events first. Neither input slice is modified.
func Merge(existing, batch []event.Event, capacity int) (merged, evicted []event.Event) {
	merged = make([]event.Event, 0, len(existing)+len(batch))
	merged = append(merged, existing...)
	merged = append(merged, batch...)
	slices.SortStableFunc(merged, func(a, b event.Event) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if capacity > 0 && len(merged) > capacity {
		evicted = slices.Clone(merged[capacity:])
		merged = slices.Clip(merged[:capacity])
	}
	return merged, evicted
}

// Store is a bounded, timestamp-ordered event log. Each Insert publishes a new slice, so
// a snapshot taken by Events is never modified afterwards.
type Store struct {
	mu       sync.RWMutex
	capacity int
	events   []event.Event
}

// New returns an empty store. A non-positive capacity selects DefaultCapacity.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{capacity: capacity}
}

// Capacity returns the maximum number of retained events.
func (s *Store) Capacity() int { return s.capacity }

// Insert merges batch as one unit and returns the evicted events.
func (s *Store) Insert(batch ...event.Event) []event.Event {
	if len(batch) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	merged, evicted := Merge(s.events, batch, s.capacity)
	s.events = merged
	return evicted
}

// Events returns the current contents, newest first. The slice must not be modified.
func (s *Store) Events() []event.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events
}

// Len returns the number of retained events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Find returns the event with the given id.
func (s *Store) Find(id string) (event.Event, bool) {
	return Find(s.Events(), id)
}

// Find scans events for id.
func Find(events []event.Event, id string) (event.Event, bool) {
	for _, e := range events {
		if e.ID == id {
			return e, true
		}
	}
	return event.Event{}, false
}
