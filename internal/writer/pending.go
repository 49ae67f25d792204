// internal/writer/pending.go
package writer

import (
	"context"
	"sync"
	"time"

	"github.com/tamzrod/modbus-iopoints/internal/point"
)

// Pending is the state machine of one SetPoint call.
//
//	Sent -> AwaitingVerification -> Converged
//	                             -> Sent (retry, bounded)
//	                             -> Exhausted
type Pending struct {
	ID      point.ID
	Desired bool
	Started time.Time

	mu       sync.Mutex
	phase    Phase
	retries  int
	writes   int
	timer    Timer
	err      error
	finished time.Time
	done     chan struct{}
}

func newPending(id point.ID, desired bool, now time.Time) *Pending {
	return &Pending{
		ID:      id,
		Desired: desired,
		Started: now,
		phase:   PhaseSent,
		done:    make(chan struct{}),
	}
}

// Phase returns the current phase.
func (p *Pending) Phase() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// Writes returns how many coil writes were issued so far.
func (p *Pending) Writes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes
}

// Done is closed when the write reaches a terminal phase.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Err returns nil while pending or converged,
// ErrNotConverged or ErrClosed once exhausted.
func (p *Pending) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Wait blocks until the write is terminal or ctx ends.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finish moves to a terminal phase. Only the first call wins.
func (p *Pending) finish(phase Phase, err error, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.phase.Terminal() {
		return false
	}
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.phase = phase
	p.err = err
	p.finished = now
	close(p.done)
	return true
}

func (p *Pending) outcome(boardID string) Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Outcome{
		BoardID:  boardID,
		ID:       p.ID,
		Desired:  p.Desired,
		Phase:    p.phase,
		Writes:   p.writes,
		Err:      p.err,
		Started:  p.Started,
		Finished: p.finished,
	}
}
