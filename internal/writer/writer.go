// internal/writer/writer.go
package writer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/tamzrod/modbus-iopoints/internal/codec"
	"github.com/tamzrod/modbus-iopoints/internal/fault"
	"github.com/tamzrod/modbus-iopoints/internal/point"
	"github.com/tamzrod/modbus-iopoints/internal/state"
)

// Defaults of the verification loop.
const (
	DefaultVerifyStep = 100 * time.Millisecond
	DefaultMaxRetries = 5
)

// Client is the exact transport contract the supervisor uses.
type Client interface {
	WriteSingleCoil(addr uint16, on bool) error // FC 5
}

// StateReader is the view of the state store the supervisor reads back from.
type StateReader interface {
	Get(id point.ID) (bool, bool)
	Validate(id point.ID) error
}

// Bounds reports whether a point lies within the discovered capabilities.
type Bounds interface {
	Contains(id point.ID) bool
}

// Config is the runtime config of one supervisor.
type Config struct {
	BoardID string

	// VerifyStep is the linear backoff unit: retry k waits VerifyStep*(k+1).
	VerifyStep time.Duration

	// MaxRetries bounds re-writes; total writes = MaxRetries+1.
	// nil (or negative) means DefaultMaxRetries; 0 means write once.
	MaxRetries *int
}

// Supervisor issues coil writes and confirms them against polled state.
// Success means a later poll observed the desired value; the transport
// acknowledgment alone is not trusted.
type Supervisor struct {
	cfg        Config
	maxRetries int
	client     Client
	states     StateReader
	bounds     Bounds
	clock      Clock
	log        *slog.Logger

	mu       sync.Mutex
	pending  map[*Pending]struct{}
	closed   bool
	onResult func(Outcome)
}

// New creates a supervisor. A nil clock uses real timers.
// A nil bounds skips the capability check (the state store still
// rejects points never observed).
func New(cfg Config, client Client, states StateReader, bounds Bounds, clock Clock, log *slog.Logger) (*Supervisor, error) {
	if cfg.BoardID == "" {
		return nil, errors.New("writer: board id required")
	}
	if client == nil {
		return nil, errors.New("writer: client required")
	}
	if states == nil {
		return nil, errors.New("writer: state reader required")
	}
	if cfg.VerifyStep <= 0 {
		cfg.VerifyStep = DefaultVerifyStep
	}
	maxRetries := DefaultMaxRetries
	if cfg.MaxRetries != nil && *cfg.MaxRetries >= 0 {
		maxRetries = *cfg.MaxRetries
	}
	if clock == nil {
		clock = realClock{}
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Supervisor{
		cfg:        cfg,
		maxRetries: maxRetries,
		client:     client,
		states:     states,
		bounds:     bounds,
		clock:      clock,
		log:        log,
		pending:    make(map[*Pending]struct{}),
	}, nil
}

// OnResult sets a callback invoked once per write when it is terminal.
func (s *Supervisor) OnResult(fn func(Outcome)) {
	s.mu.Lock()
	s.onResult = fn
	s.mu.Unlock()
}

// SetPoint parses id and starts a verified write.
func (s *Supervisor) SetPoint(id string, value bool) (*Pending, error) {
	pid, err := point.Parse(id)
	if err != nil {
		return nil, err
	}
	return s.Set(pid, value)
}

// Set starts a verified write of a digital output.
// Unknown or non-output points fail immediately; nothing is written.
func (s *Supervisor) Set(id point.ID, value bool) (*Pending, error) {
	if id.Prefix != point.DO {
		return nil, fmt.Errorf("%w: %s", ErrNotWritable, id)
	}
	if s.bounds != nil && !s.bounds.Contains(id) {
		return nil, fmt.Errorf("%w: %s outside discovered capability", state.ErrUnknownPoint, id)
	}
	if err := s.states.Validate(id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	p := newPending(id, value, time.Now())
	s.pending[p] = struct{}{}
	s.mu.Unlock()

	s.send(p)
	return p, nil
}

// send issues one coil write and arms the verification timer.
// The write result is not awaited for convergence: a failed write simply
// shows up as a mismatch at verification time.
func (s *Supervisor) send(p *Pending) {
	p.mu.Lock()
	if p.phase.Terminal() {
		p.mu.Unlock()
		return
	}
	p.phase = PhaseSent
	p.writes++
	attempt := p.writes
	p.mu.Unlock()

	addr := codec.CoilAddress(p.ID.Group, p.ID.Index)
	if err := s.client.WriteSingleCoil(addr, p.Desired); err != nil {
		s.log.Warn("coil write failed",
			"board", s.cfg.BoardID,
			"point", p.ID.String(),
			"addr", addr,
			"attempt", attempt,
			"reason", fault.Classify(err).Error(),
		)
	} else {
		s.log.Debug("coil written",
			"board", s.cfg.BoardID,
			"point", p.ID.String(),
			"value", p.Desired,
			"attempt", attempt,
		)
	}

	s.schedule(p)
}

func (s *Supervisor) schedule(p *Pending) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		s.finish(p, PhaseExhausted, ErrClosed)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase.Terminal() {
		return
	}
	delay := s.cfg.VerifyStep * time.Duration(p.retries+1)
	p.phase = PhaseAwaitingVerification
	p.timer = s.clock.AfterFunc(delay, func() { s.verify(p) })
}

// verify compares the polled state with the desired value.
func (s *Supervisor) verify(p *Pending) {
	p.mu.Lock()
	if p.phase != PhaseAwaitingVerification {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	retries := p.retries
	p.mu.Unlock()

	cur, ok := s.states.Get(p.ID)
	if ok && cur == p.Desired {
		s.finish(p, PhaseConverged, nil)
		return
	}

	if retries >= s.maxRetries {
		s.finish(p, PhaseExhausted, ErrNotConverged)
		return
	}

	p.mu.Lock()
	p.retries++
	p.mu.Unlock()

	s.send(p)
}

func (s *Supervisor) finish(p *Pending, phase Phase, err error) {
	if !p.finish(phase, err, time.Now()) {
		return
	}

	s.mu.Lock()
	delete(s.pending, p)
	cb := s.onResult
	s.mu.Unlock()

	out := p.outcome(s.cfg.BoardID)
	if phase == PhaseConverged {
		s.log.Info("write confirmed",
			"board", s.cfg.BoardID,
			"point", out.ID.String(),
			"value", out.Desired,
			"writes", out.Writes,
		)
	} else {
		s.log.Error("write not confirmed",
			"board", s.cfg.BoardID,
			"point", out.ID.String(),
			"value", out.Desired,
			"writes", out.Writes,
			"error", err,
		)
	}

	if cb != nil {
		cb(out)
	}
}

// Pending returns the number of writes not yet terminal.
func (s *Supervisor) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close stops every armed timer; pending writes end as exhausted with ErrClosed.
func (s *Supervisor) Close() {
	s.mu.Lock()
	s.closed = true
	all := make([]*Pending, 0, len(s.pending))
	for p := range s.pending {
		all = append(all, p)
	}
	s.mu.Unlock()

	for _, p := range all {
		s.finish(p, PhaseExhausted, ErrClosed)
	}
}
