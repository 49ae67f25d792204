// internal/poller/builder.go
package poller

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tamzrod/modbus-iopoints/internal/codec"
	cfg "github.com/tamzrod/modbus-iopoints/internal/config"
	"github.com/tamzrod/modbus-iopoints/internal/state"
	"github.com/tamzrod/modbus-iopoints/internal/status"
)

// Build converts one board config into a Poller.
// Assumes config has already passed Validate and Normalize.
func Build(b cfg.BoardConfig, client Client, store *state.Store, health *status.Tracker, log *slog.Logger) (*Poller, error) {
	order, ok := codec.ParseWordOrder(b.CounterWordOrder)
	if !ok {
		return nil, fmt.Errorf("poller: board %q: unknown counter_word_order %q", b.ID, b.CounterWordOrder)
	}

	return New(
		Config{
			BoardID:          b.ID,
			Groups:           b.Groups,
			StatesInterval:   time.Duration(b.Poll.StatesIntervalMs) * time.Millisecond,
			CountersInterval: time.Duration(b.Poll.CountersIntervalMs) * time.Millisecond,
			CounterOrder:     order,
		},
		client,
		store,
		health,
		log,
	)
}
