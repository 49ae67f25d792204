// internal/status/tracker.go
package status

import (
	"sync"

	"github.com/tamzrod/modbus-iopoints/internal/fault"
)

// Source is one kind of periodic read feeding a group's health.
type Source uint8

const (
	SourceStates Source = 1 << iota
	SourceCounters
)

// Tracker holds the health snapshot of every group of one board and
// reports only transitions.
// A group is OK only while every source's last read succeeded.
type Tracker struct {
	mu      sync.Mutex
	groups  []Snapshot
	failing []Source // per group: sources whose last read failed

	onChange func(Snapshot)
}

// NewTracker creates a tracker for groups 1..n, all HealthUnknown.
func NewTracker(n int) *Tracker {
	t := &Tracker{
		groups:  make([]Snapshot, n),
		failing: make([]Source, n),
	}
	for i := range t.groups {
		t.groups[i] = Snapshot{Group: i + 1, Health: HealthUnknown}
	}
	return t
}

// OnChange sets a callback invoked (outside the lock) for every transition.
func (t *Tracker) OnChange(fn func(Snapshot)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// Disable marks a group as not servable.
func (t *Tracker) Disable(group int, err error) {
	t.update(group, func(s *Snapshot, _ *Source) bool {
		changed := s.Health != HealthDisabled
		s.Health = HealthDisabled
		if f := fault.Classify(err); f != nil {
			s.LastErrorCode = f.ErrorCode()
			s.LastError = f.Error()
		}
		return changed
	})
}

// Observe records the outcome of one read of a group by src.
// A disabled group stays disabled.
func (t *Tracker) Observe(group int, src Source, err error) {
	t.update(group, func(s *Snapshot, failing *Source) bool {
		if s.Health == HealthDisabled {
			return false
		}

		if err == nil {
			*failing &^= src
			if *failing != 0 {
				// another source is still failing
				return false
			}

			// Recovery / OK
			changed := s.Health != HealthOK || s.LastErrorCode != 0 || s.ConsecutiveErrors != 0
			s.Health = HealthOK
			s.LastErrorCode = 0
			s.ConsecutiveErrors = 0
			s.LastError = ""
			return changed
		}

		*failing |= src

		f := fault.Classify(err)
		changed := s.Health != HealthError || s.LastErrorCode != f.ErrorCode()
		s.Health = HealthError
		s.LastErrorCode = f.ErrorCode()
		s.LastError = f.Error()

		// counter must not wrap
		if s.ConsecutiveErrors < ConsecutiveErrorsMax {
			s.ConsecutiveErrors++
		}
		return changed
	})
}

func (t *Tracker) update(group int, fn func(s *Snapshot, failing *Source) bool) {
	t.mu.Lock()
	if group < 1 || group > len(t.groups) {
		t.mu.Unlock()
		return
	}
	s := &t.groups[group-1]
	changed := fn(s, &t.failing[group-1])
	snap := *s
	cb := t.onChange
	t.mu.Unlock()

	if changed && cb != nil {
		cb(snap)
	}
}

// Get returns the snapshot of a group.
func (t *Tracker) Get(group int) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if group < 1 || group > len(t.groups) {
		return Snapshot{}, false
	}
	return t.groups[group-1], true
}

// All returns a copy of every group snapshot, in group order.
func (t *Tracker) All() []Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Snapshot, len(t.groups))
	copy(out, t.groups)
	return out
}
