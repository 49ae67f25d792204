// internal/poller/poller.go
package poller

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/modbus-iopoints/internal/codec"
	"github.com/tamzrod/modbus-iopoints/internal/fault"
	"github.com/tamzrod/modbus-iopoints/internal/point"
	"github.com/tamzrod/modbus-iopoints/internal/state"
	"github.com/tamzrod/modbus-iopoints/internal/status"
)

var errShortRead = errors.New("poller: short register read")

// Client abstracts the Modbus operations the poller needs.
// The poller depends on geometry only.
type Client interface {
	ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) // FC 3
}

// Config is the minimal runtime config the poller needs.
type Config struct {
	BoardID string
	Groups  int

	StatesInterval   time.Duration
	CountersInterval time.Duration

	CounterOrder codec.WordOrder
}

// Poller reads a board's groups and feeds decoded values into the store.
type Poller struct {
	cfg    Config
	client Client
	store  *state.Store
	health *status.Tracker
	log    *slog.Logger

	capMu      sync.RWMutex
	caps       []*codec.Capability // slot i = group i+1; nil = not discovered
	discovered bool

	seqMu sync.Mutex
	seqs  map[seqKey]*sequence
}

// New creates a poller with immutable config.
func New(cfg Config, client Client, store *state.Store, health *status.Tracker, log *slog.Logger) (*Poller, error) {
	if cfg.BoardID == "" {
		return nil, errors.New("poller: board id required")
	}
	if cfg.Groups <= 0 {
		return nil, errors.New("poller: at least one group required")
	}
	if client == nil {
		return nil, errors.New("poller: client required")
	}
	if store == nil {
		return nil, errors.New("poller: store required")
	}
	if health == nil {
		health = status.NewTracker(cfg.Groups)
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Poller{
		cfg:    cfg,
		client: client,
		store:  store,
		health: health,
		log:    log,
		seqs:   make(map[seqKey]*sequence),
	}, nil
}

// Capabilities returns the discovered groups in group order.
// Groups whose discovery failed are absent.
func (p *Poller) Capabilities() []codec.Capability {
	p.capMu.RLock()
	defer p.capMu.RUnlock()

	out := make([]codec.Capability, 0, len(p.caps))
	for _, c := range p.caps {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out
}

// Capability returns the capability of group g (1-based).
func (p *Poller) Capability(group int) (codec.Capability, bool) {
	p.capMu.RLock()
	defer p.capMu.RUnlock()
	if group < 1 || group > len(p.caps) || p.caps[group-1] == nil {
		return codec.Capability{}, false
	}
	return *p.caps[group-1], true
}

// Contains reports whether id lies within the discovered bounds.
func (p *Poller) Contains(id point.ID) bool {
	c, ok := p.Capability(id.Group)
	if !ok || id.Index < 1 {
		return false
	}
	switch id.Prefix {
	case point.DI:
		return id.Index <= digitalCount(c.DI)
	case point.DO:
		return id.Index <= digitalCount(c.DO)
	case point.AI:
		return id.Index <= c.AI
	case point.AO:
		return id.Index <= c.AO
	}
	return false
}

// ---- STATES ----

// PollStates reads the DI/DO state registers of every known group.
// A failed group keeps its previous (stale) values.
func (p *Poller) PollStates() PollResult {
	return p.pollAll(KindStates, p.pollGroupStates)
}

func (p *Poller) pollGroupStates(c codec.Capability) (GroupResult, int) {
	res := GroupResult{Group: c.Group}
	seq := p.sequence(c.Group, KindStates)
	n := seq.issue()

	addr := codec.StateAddress(c.Group)
	regs, err := p.client.ReadHoldingRegisters(addr, codec.StateWords)
	if err == nil && len(regs) < codec.StateWords {
		err = errShortRead
	}
	if err != nil {
		res.Err = p.readFailed(KindStates, c.Group, addr, err)
		return res, 0
	}

	batch := make([]state.Update, 0, digitalCount(c.DI)+digitalCount(c.DO))
	batch = appendBits(batch, point.DI, c.Group, regs[0], c.DI)
	batch = appendBits(batch, point.DO, c.Group, regs[1], c.DO)

	var emitted []state.Update
	applied := seq.commit(n, func() {
		emitted = p.store.Apply(batch)
	})
	if !applied {
		res.Stale = true
		p.log.Debug("stale state read discarded", "board", p.cfg.BoardID, "group", c.Group, "seq", n)
		return res, 0
	}

	p.health.Observe(c.Group, status.SourceStates, nil)
	return res, len(emitted)
}

func appendBits(dst []state.Update, prefix point.Prefix, group int, w uint16, count int) []state.Update {
	bits := codec.DecodeWord(w)
	for i := 0; i < digitalCount(count); i++ {
		dst = append(dst, state.Update{
			ID:    point.New(prefix, group, i+1),
			Value: bits[i],
		})
	}
	return dst
}

// ---- COUNTERS ----

// PollCounters reads the pulse counters of every known group with inputs.
func (p *Poller) PollCounters() PollResult {
	counters := make(map[point.ID]uint32)
	var mu sync.Mutex

	res := p.pollAll(KindCounters, func(c codec.Capability) (GroupResult, int) {
		gr, changed := p.pollGroupCounters(c)
		mu.Lock()
		for k, v := range changed {
			counters[k] = v
		}
		mu.Unlock()
		return gr, 0
	})
	res.Counters = counters
	return res
}

func (p *Poller) pollGroupCounters(c codec.Capability) (GroupResult, map[point.ID]uint32) {
	res := GroupResult{Group: c.Group}

	inputs := digitalCount(c.DI)
	if inputs == 0 {
		return res, nil
	}
	addr, ok := codec.CounterAddress(c.Group)
	if !ok {
		p.log.Debug("no counter registers for group", "board", p.cfg.BoardID, "group", c.Group)
		return res, nil
	}

	seq := p.sequence(c.Group, KindCounters)
	n := seq.issue()

	qty := uint16(inputs * 2)
	regs, err := p.client.ReadHoldingRegisters(addr, qty)
	if err == nil && len(regs) < int(qty) {
		err = errShortRead
	}
	if err != nil {
		res.Err = p.readFailed(KindCounters, c.Group, addr, err)
		return res, nil
	}

	changed := make(map[point.ID]uint32)
	applied := seq.commit(n, func() {
		for j := 0; j < inputs; j++ {
			id := point.New(point.DI, c.Group, j+1)
			v := codec.CombineCounter(regs[2*j], regs[2*j+1], p.cfg.CounterOrder)
			if p.store.SetCount(id, v) {
				changed[id] = v
			}
		}
	})
	if !applied {
		res.Stale = true
		return res, nil
	}

	p.health.Observe(c.Group, status.SourceCounters, nil)
	return res, changed
}

// ---- SHARED ----

// pollAll runs fn for every known group concurrently.
// Completion order is free; each group touches only its own keys.
func (p *Poller) pollAll(kind Kind, fn func(codec.Capability) (GroupResult, int)) PollResult {
	caps := p.Capabilities()

	res := PollResult{
		BoardID: p.cfg.BoardID,
		Kind:    kind,
		At:      time.Now(),
		Groups:  make([]GroupResult, len(caps)),
	}

	updates := make([]int, len(caps))

	var g errgroup.Group
	for i, c := range caps {
		g.Go(func() error {
			res.Groups[i], updates[i] = fn(c)
			return nil
		})
	}
	_ = g.Wait()

	for _, n := range updates {
		res.Updates += n
	}
	return res
}

func (p *Poller) readFailed(kind Kind, group int, addr uint16, err error) error {
	f := fault.Classify(err)
	p.log.Warn("register read failed",
		"board", p.cfg.BoardID,
		"op", kind.String(),
		"group", group,
		"addr", addr,
		"reason", f.Error(),
	)
	p.health.Observe(group, kind.source(), f)
	return fmt.Errorf("poller: %s group %d: %w", kind, group, f)
}

// digitalCount caps a digital IO count to what one register carries.
func digitalCount(n int) int {
	if n > codec.WordBits {
		return codec.WordBits
	}
	if n < 0 {
		return 0
	}
	return n
}
