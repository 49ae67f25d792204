// internal/state/store.go
package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tamzrod/modbus-iopoints/internal/point"
)

// ErrUnknownPoint is returned for ids that were never observed.
var ErrUnknownPoint = errors.New("state: unknown point")

// Update is emitted when an already-observed digital point changes.
type Update struct {
	ID    point.ID
	Value bool
}

// ValueString renders the value the way it is published ("0" / "1").
func (u Update) ValueString() string {
	if u.Value {
		return "1"
	}
	return "0"
}

// Store is the single source of observed truth for one board.
// Safe for concurrent use. Nothing is ever deleted.
type Store struct {
	mu       sync.RWMutex
	values   map[point.ID]bool
	counters map[point.ID]uint32

	subMu  sync.RWMutex
	subs   map[int]func(Update)
	nextID int
}

func New() *Store {
	return &Store{
		values:   make(map[point.ID]bool),
		counters: make(map[point.ID]uint32),
		subs:     make(map[int]func(Update)),
	}
}

// Subscribe registers fn for every Update. The returned func removes it.
// fn runs on the goroutine that applied the change and must not block.
func (s *Store) Subscribe(fn func(Update)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// SetIfChanged stores v for id.
// First observation is stored silently; a later change emits an Update.
// Returns true when an Update was emitted.
func (s *Store) SetIfChanged(id point.ID, v bool) bool {
	s.mu.Lock()
	changed := s.setLocked(id, v)
	s.mu.Unlock()

	if changed {
		s.emit(Update{ID: id, Value: v})
	}
	return changed
}

// Apply stores a batch atomically (one lock hold) and then emits the
// resulting Updates in batch order.
func (s *Store) Apply(batch []Update) []Update {
	var emitted []Update

	s.mu.Lock()
	for _, u := range batch {
		if s.setLocked(u.ID, u.Value) {
			emitted = append(emitted, u)
		}
	}
	s.mu.Unlock()

	for _, u := range emitted {
		s.emit(u)
	}
	return emitted
}

func (s *Store) setLocked(id point.ID, v bool) bool {
	cur, seen := s.values[id]
	if seen && cur == v {
		return false
	}
	s.values[id] = v
	return seen
}

func (s *Store) emit(u Update) {
	s.subMu.RLock()
	fns := make([]func(Update), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range fns {
		fn(u)
	}
}

// Get returns the cached value; ok is false if id was never observed.
func (s *Store) Get(id point.ID) (v bool, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok = s.values[id]
	return v, ok
}

// Validate fails with ErrUnknownPoint if id was never observed.
func (s *Store) Validate(id point.ID) error {
	if _, ok := s.Get(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPoint, id)
	}
	return nil
}

// ---- COUNTERS ----

// SetCount stores an accumulated pulse count. Returns true if it changed.
func (s *Store) SetCount(id point.ID, n uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, seen := s.counters[id]
	s.counters[id] = n
	return !seen || cur != n
}

// Count returns the cached counter; ok is false if never read.
func (s *Store) Count(id point.ID) (n uint32, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok = s.counters[id]
	return n, ok
}

// Counts returns a copy of all counters.
func (s *Store) Counts() map[point.ID]uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[point.ID]uint32, len(s.counters))
	for k, v := range s.counters {
		out[k] = v
	}
	return out
}

// Snapshot returns a copy of all digital values.
func (s *Store) Snapshot() map[point.ID]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[point.ID]bool, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
