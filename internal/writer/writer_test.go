// internal/writer/writer_test.go
package writer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tamzrod/modbus-iopoints/internal/point"
	"github.com/tamzrod/modbus-iopoints/internal/state"
)

// ---- fakes ----

type coilWrite struct {
	addr uint16
	on   bool
}

type fakeCoils struct {
	mu     sync.Mutex
	writes []coilWrite
	err    error
}

func (f *fakeCoils) WriteSingleCoil(addr uint16, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, coilWrite{addr: addr, on: on})
	return f.err
}

func (f *fakeCoils) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

type scheduled struct {
	delay time.Duration
	fn    func()
	timer *fakeTimer
}

type fakeTimer struct{ stopped bool }

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeClock records callbacks; the test fires them explicitly.
type fakeClock struct {
	queue  []scheduled
	delays []time.Duration
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{}
	c.queue = append(c.queue, scheduled{delay: d, fn: f, timer: t})
	c.delays = append(c.delays, d)
	return t
}

// fire runs the oldest armed callback. Returns false if none is armed.
func (c *fakeClock) fire() bool {
	for len(c.queue) > 0 {
		next := c.queue[0]
		c.queue = c.queue[1:]
		if next.timer.stopped {
			continue
		}
		next.fn()
		return true
	}
	return false
}

func newTestSupervisor(t *testing.T) (*Supervisor, *fakeCoils, *fakeClock, *state.Store) {
	t.Helper()
	coils := &fakeCoils{}
	clock := &fakeClock{}
	store := state.New()

	s, err := New(Config{BoardID: "b1", MaxRetries: retries(DefaultMaxRetries)}, coils, store, nil, clock, nil)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	return s, coils, clock, store
}

func retries(n int) *int { return &n }

// ---- tests ----

func TestSetPoint_UnknownPointFailsFast(t *testing.T) {
	s, coils, clock, _ := newTestSupervisor(t)

	if _, err := s.SetPoint("DO1.1", true); !errors.Is(err, state.ErrUnknownPoint) {
		t.Fatalf("expected ErrUnknownPoint, got %v", err)
	}
	if coils.count() != 0 || len(clock.queue) != 0 {
		t.Fatalf("nothing must be written or scheduled")
	}
}

func TestSetPoint_MalformedAndNotWritable(t *testing.T) {
	s, coils, _, store := newTestSupervisor(t)
	store.SetIfChanged(point.MustParse("DI1.1"), false)

	if _, err := s.SetPoint("DO1", true); !errors.Is(err, point.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if _, err := s.SetPoint("DI1.1", true); !errors.Is(err, ErrNotWritable) {
		t.Fatalf("expected ErrNotWritable, got %v", err)
	}
	if coils.count() != 0 {
		t.Fatalf("no write expected, got %d", coils.count())
	}
}

func TestSetPoint_ConvergesOnNextPoll(t *testing.T) {
	s, coils, clock, store := newTestSupervisor(t)
	id := point.MustParse("DO1.1")
	store.SetIfChanged(id, false)

	var outcomes []Outcome
	s.OnResult(func(o Outcome) { outcomes = append(outcomes, o) })

	p, err := s.SetPoint("DO1.1", true)
	if err != nil {
		t.Fatalf("SetPoint err=%v", err)
	}

	if coils.count() != 1 || coils.writes[0].addr != 0 || !coils.writes[0].on {
		t.Fatalf("expected one write to coil 0, got %+v", coils.writes)
	}
	if len(clock.delays) != 1 || clock.delays[0] != 100*time.Millisecond {
		t.Fatalf("expected verification at 100ms, got %v", clock.delays)
	}
	if p.Phase() != PhaseAwaitingVerification {
		t.Fatalf("phase got=%s", p.Phase())
	}

	// a poll lands before the timer fires
	store.SetIfChanged(id, true)
	clock.fire()

	if coils.count() != 1 {
		t.Fatalf("no further write expected, got %d", coils.count())
	}
	if p.Phase() != PhaseConverged || p.Err() != nil {
		t.Fatalf("phase=%s err=%v", p.Phase(), p.Err())
	}
	select {
	case <-p.Done():
	default:
		t.Fatalf("Done must be closed")
	}
	if len(outcomes) != 1 || outcomes[0].Phase != PhaseConverged || outcomes[0].Writes != 1 {
		t.Fatalf("unexpected outcomes %+v", outcomes)
	}
	if s.Pending() != 0 {
		t.Fatalf("pending not cleared")
	}
}

func TestSetPoint_RetriesThenExhausts(t *testing.T) {
	s, coils, clock, store := newTestSupervisor(t)
	id := point.MustParse("DO2.3")
	store.SetIfChanged(id, false)

	p, err := s.Set(id, true)
	if err != nil {
		t.Fatalf("Set err=%v", err)
	}

	for clock.fire() {
	}

	if coils.count() != 6 {
		t.Fatalf("expected 6 writes, got %d", coils.count())
	}
	for _, w := range coils.writes {
		if w.addr != 102 || !w.on {
			t.Fatalf("unexpected write %+v", w)
		}
	}

	want := []time.Duration{100, 200, 300, 400, 500, 600}
	if len(clock.delays) != len(want) {
		t.Fatalf("delays got=%v", clock.delays)
	}
	for i, d := range want {
		if clock.delays[i] != d*time.Millisecond {
			t.Fatalf("delay %d: got=%v want=%v", i, clock.delays[i], d*time.Millisecond)
		}
	}

	if p.Phase() != PhaseExhausted || !errors.Is(p.Err(), ErrNotConverged) {
		t.Fatalf("phase=%s err=%v", p.Phase(), p.Err())
	}
	if err := p.Wait(context.Background()); !errors.Is(err, ErrNotConverged) {
		t.Fatalf("Wait err=%v", err)
	}
}

func TestSetPoint_ConvergesAfterRetry(t *testing.T) {
	s, coils, clock, store := newTestSupervisor(t)
	id := point.MustParse("DO1.2")
	store.SetIfChanged(id, true)

	p, _ := s.Set(id, false)

	clock.fire() // mismatch -> second write
	store.SetIfChanged(id, false)
	clock.fire() // match

	if coils.count() != 2 {
		t.Fatalf("expected 2 writes, got %d", coils.count())
	}
	if p.Phase() != PhaseConverged || p.Writes() != 2 {
		t.Fatalf("phase=%s writes=%d", p.Phase(), p.Writes())
	}
}

func TestSetPoint_TransportErrorStillVerified(t *testing.T) {
	s, coils, clock, store := newTestSupervisor(t)
	coils.err = errors.New("broken pipe")
	id := point.MustParse("DO1.1")
	store.SetIfChanged(id, false)

	p, err := s.Set(id, true)
	if err != nil {
		t.Fatalf("transport error must not fail SetPoint: %v", err)
	}
	if len(clock.queue) != 1 {
		t.Fatalf("verification must still be armed")
	}

	coils.err = nil
	clock.fire()
	if coils.count() != 2 || p.Phase() != PhaseAwaitingVerification {
		t.Fatalf("writes=%d phase=%s", coils.count(), p.Phase())
	}
}

func TestSetPoint_ZeroRetries(t *testing.T) {
	coils := &fakeCoils{}
	clock := &fakeClock{}
	store := state.New()
	id := point.MustParse("DO1.1")
	store.SetIfChanged(id, false)

	s, _ := New(Config{BoardID: "b1", MaxRetries: retries(0)}, coils, store, nil, clock, nil)
	p, _ := s.Set(id, true)
	for clock.fire() {
	}

	if coils.count() != 1 || p.Phase() != PhaseExhausted {
		t.Fatalf("writes=%d phase=%s", coils.count(), p.Phase())
	}
}

func TestClose_EndsPendingWrites(t *testing.T) {
	s, _, clock, store := newTestSupervisor(t)
	id := point.MustParse("DO1.1")
	store.SetIfChanged(id, false)

	p, _ := s.Set(id, true)
	s.Close()

	if p.Phase() != PhaseExhausted || !errors.Is(p.Err(), ErrClosed) {
		t.Fatalf("phase=%s err=%v", p.Phase(), p.Err())
	}
	if clock.fire() {
		t.Fatalf("timer must be stopped")
	}
	if _, err := s.Set(id, true); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	s, _, _, store := newTestSupervisor(t)
	id := point.MustParse("DO1.1")
	store.SetIfChanged(id, false)

	p, _ := s.Set(id, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNew_Validation(t *testing.T) {
	store := state.New()
	if _, err := New(Config{}, &fakeCoils{}, store, nil, nil, nil); err == nil {
		t.Fatalf("expected error without board id")
	}
	if _, err := New(Config{BoardID: "b"}, nil, store, nil, nil, nil); err == nil {
		t.Fatalf("expected error without client")
	}

	for _, c := range []Config{
		{BoardID: "b"},
		{BoardID: "b", MaxRetries: retries(-1)},
	} {
		s, err := New(c, &fakeCoils{}, store, nil, nil, nil)
		if err != nil {
			t.Fatalf("New err=%v", err)
		}
		if s.cfg.VerifyStep != DefaultVerifyStep || s.maxRetries != DefaultMaxRetries {
			t.Fatalf("defaults not applied: step=%v retries=%d", s.cfg.VerifyStep, s.maxRetries)
		}
	}
}

func TestSetPoint_DefaultConfigWritesSixTimes(t *testing.T) {
	coils := &fakeCoils{}
	clock := &fakeClock{}
	store := state.New()
	id := point.MustParse("DO1.1")
	store.SetIfChanged(id, false)

	s, _ := New(Config{BoardID: "b1"}, coils, store, nil, clock, nil)
	p, _ := s.Set(id, true)
	for clock.fire() {
	}

	if coils.count() != DefaultMaxRetries+1 || !errors.Is(p.Err(), ErrNotConverged) {
		t.Fatalf("writes=%d err=%v", coils.count(), p.Err())
	}
}

type fixedBounds map[point.ID]bool

func (b fixedBounds) Contains(id point.ID) bool { return b[id] }

func TestSet_OutsideBoundsFailsFast(t *testing.T) {
	coils := &fakeCoils{}
	store := state.New()
	inside := point.MustParse("DO1.1")
	outside := point.MustParse("DO1.9")
	store.SetIfChanged(inside, false)
	store.SetIfChanged(outside, false)

	s, _ := New(Config{BoardID: "b1"}, coils, store, fixedBounds{inside: true}, &fakeClock{}, nil)

	if _, err := s.Set(outside, true); !errors.Is(err, state.ErrUnknownPoint) {
		t.Fatalf("expected ErrUnknownPoint, got %v", err)
	}
	if coils.count() != 0 {
		t.Fatalf("nothing may be written outside bounds, got %d writes", coils.count())
	}
	if _, err := s.Set(inside, true); err != nil {
		t.Fatalf("inside bounds err=%v", err)
	}
}
