// internal/poller/types.go
package poller

import (
	"time"

	"github.com/tamzrod/modbus-iopoints/internal/point"
	"github.com/tamzrod/modbus-iopoints/internal/status"
)

// Kind tells which poll operation produced a result.
type Kind int

const (
	KindStates Kind = iota
	KindCounters
)

func (k Kind) String() string {
	if k == KindCounters {
		return "counters"
	}
	return "states"
}

// source is the health source a read of this kind reports to.
func (k Kind) source() status.Source {
	if k == KindCounters {
		return status.SourceCounters
	}
	return status.SourceStates
}

// GroupResult is the outcome of one group read.
type GroupResult struct {
	Group int
	Err   error // non-nil means the group was left untouched

	// Stale is true when a newer read of the same group already landed
	// and this result was discarded.
	Stale bool
}

// PollResult summarises one poll cycle over all known groups.
type PollResult struct {
	BoardID string
	Kind    Kind
	At      time.Time

	Groups []GroupResult

	// Updates is the number of change notifications emitted (states only).
	Updates int

	// Counters holds counters whose value changed in this cycle (counters only).
	Counters map[point.ID]uint32
}

// Failed returns the groups that could not be read.
func (r PollResult) Failed() []GroupResult {
	var out []GroupResult
	for _, g := range r.Groups {
		if g.Err != nil {
			out = append(out, g)
		}
	}
	return out
}
