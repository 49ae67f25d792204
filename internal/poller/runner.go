// internal/poller/runner.go
package poller

import (
	"context"
	"time"
)

// Run drives PollStates and PollCounters from two tickers and emits each
// PollResult on out (out may be nil). One goroutine per board.
// A zero interval disables that operation.
func (p *Poller) Run(ctx context.Context, out chan<- PollResult) {
	statesC, stopStates := tick(p.cfg.StatesInterval)
	defer stopStates()
	countersC, stopCounters := tick(p.cfg.CountersInterval)
	defer stopCounters()

	for {
		select {
		case <-ctx.Done():
			return
		case <-statesC:
			p.emit(ctx, out, p.PollStates())
		case <-countersC:
			p.emit(ctx, out, p.PollCounters())
		}
	}
}

func (p *Poller) emit(ctx context.Context, out chan<- PollResult, res PollResult) {
	if out == nil {
		return
	}
	select {
	case out <- res:
	case <-ctx.Done():
	}
}

func tick(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(d)
	return t.C, t.Stop
}
