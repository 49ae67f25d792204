// internal/writer/types.go
package writer

import (
	"errors"
	"time"

	"github.com/tamzrod/modbus-iopoints/internal/point"
)

var (
	// ErrNotWritable is returned for points that are not digital outputs.
	ErrNotWritable = errors.New("writer: point is not writable")

	// ErrNotConverged is the terminal failure of a write: the observed
	// state still disagreed after the last verification.
	ErrNotConverged = errors.New("writer: write not confirmed by polled state")

	// ErrClosed is returned for writes still pending when the supervisor closed.
	ErrClosed = errors.New("writer: supervisor closed")
)

// Phase is the state of one pending write.
type Phase int

const (
	// PhaseSent: coil write issued, verification not yet scheduled.
	PhaseSent Phase = iota
	// PhaseAwaitingVerification: timer armed, waiting for a poll to land.
	PhaseAwaitingVerification
	// PhaseConverged: polled state matched the desired value.
	PhaseConverged
	// PhaseExhausted: retries used up (or supervisor closed) without a match.
	PhaseExhausted
)

func (p Phase) String() string {
	switch p {
	case PhaseSent:
		return "sent"
	case PhaseAwaitingVerification:
		return "awaiting_verification"
	case PhaseConverged:
		return "converged"
	case PhaseExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (p Phase) Terminal() bool {
	return p == PhaseConverged || p == PhaseExhausted
}

// Outcome is reported once per write when it reaches a terminal phase.
type Outcome struct {
	BoardID  string
	ID       point.ID
	Desired  bool
	Phase    Phase
	Writes   int
	Err      error
	Started  time.Time
	Finished time.Time
}

// ---- timers ----

// Clock schedules verification callbacks.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the handle of a scheduled callback.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
