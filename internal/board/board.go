// internal/board/board.go
package board

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/tamzrod/modbus-iopoints/internal/codec"
	cfg "github.com/tamzrod/modbus-iopoints/internal/config"
	"github.com/tamzrod/modbus-iopoints/internal/point"
	"github.com/tamzrod/modbus-iopoints/internal/poller"
	"github.com/tamzrod/modbus-iopoints/internal/state"
	"github.com/tamzrod/modbus-iopoints/internal/status"
	"github.com/tamzrod/modbus-iopoints/internal/writer"
)

// Transport is everything a board needs from its Modbus connection.
type Transport interface {
	poller.Client
	writer.Client
	Connect() error
	Close() error
}

// Board is one independent field device: its groups, cached points and
// pending writes. Boards share nothing.
type Board struct {
	id     string
	tr     Transport
	store  *state.Store
	health *status.Tracker
	poller *poller.Poller
	writer *writer.Supervisor
	log    *slog.Logger
}

// New wires a board around an existing transport.
// Assumes config has already passed Validate and Normalize.
func New(b cfg.BoardConfig, tr Transport, log *slog.Logger) (*Board, error) {
	if tr == nil {
		return nil, errors.New("board: transport required")
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	store := state.New()
	health := status.NewTracker(b.Groups)

	p, err := poller.Build(b, tr, store, health, log)
	if err != nil {
		return nil, err
	}
	w, err := writer.Build(b, tr, store, p, log)
	if err != nil {
		return nil, err
	}

	return &Board{
		id:     b.ID,
		tr:     tr,
		store:  store,
		health: health,
		poller: p,
		writer: w,
		log:    log,
	}, nil
}

// Start connects and discovers group capabilities.
// Discovery failures degrade single groups; only a connect failure or a
// board with no group at all is an error.
func (b *Board) Start() error {
	if err := b.tr.Connect(); err != nil {
		return fmt.Errorf("board %s: %w", b.id, err)
	}

	n, err := b.poller.Discover()
	if err != nil {
		return fmt.Errorf("board %s: %w", b.id, err)
	}
	if n == 0 {
		return fmt.Errorf("board %s: no group answered capability discovery", b.id)
	}
	return nil
}

// Close stops pending write verifications and closes the transport.
func (b *Board) Close() error {
	b.writer.Close()
	return b.tr.Close()
}

func (b *Board) ID() string { return b.id }

// ---- READS ----

// GetState returns the cached value of a digital point.
func (b *Board) GetState(id string) (bool, error) {
	pid, err := point.Parse(id)
	if err != nil {
		return false, err
	}
	v, ok := b.store.Get(pid)
	if !ok {
		return false, fmt.Errorf("%w: %s", state.ErrUnknownPoint, pid)
	}
	return v, nil
}

// GetCount returns the cached pulse counter of a digital input.
func (b *Board) GetCount(id string) (uint32, error) {
	pid, err := point.Parse(id)
	if err != nil {
		return 0, err
	}
	n, ok := b.store.Count(pid)
	if !ok {
		return 0, fmt.Errorf("%w: %s", state.ErrUnknownPoint, pid)
	}
	return n, nil
}

// Snapshot returns a copy of every observed digital value.
func (b *Board) Snapshot() map[point.ID]bool { return b.store.Snapshot() }

// Capabilities returns the discovered groups.
func (b *Board) Capabilities() []codec.Capability { return b.poller.Capabilities() }

// GroupStatus returns the health of every group.
func (b *Board) GroupStatus() []status.Snapshot { return b.health.All() }

// ---- WRITES ----

// SetPoint starts a verified write; see writer.Supervisor.
func (b *Board) SetPoint(id string, value bool) (*writer.Pending, error) {
	return b.writer.SetPoint(id, value)
}

// ---- POLLING ----

func (b *Board) PollStates() poller.PollResult   { return b.poller.PollStates() }
func (b *Board) PollCounters() poller.PollResult { return b.poller.PollCounters() }

// Run polls on the configured intervals until ctx ends.
func (b *Board) Run(ctx context.Context, out chan<- poller.PollResult) {
	b.poller.Run(ctx, out)
}

// ---- NOTIFICATIONS ----

// Subscribe registers fn for point changes.
func (b *Board) Subscribe(fn func(state.Update)) (cancel func()) {
	return b.store.Subscribe(fn)
}

// OnWriteResult registers the terminal write outcome callback.
func (b *Board) OnWriteResult(fn func(writer.Outcome)) { b.writer.OnResult(fn) }

// OnStatusChange registers the group health transition callback.
func (b *Board) OnStatusChange(fn func(status.Snapshot)) { b.health.OnChange(fn) }
