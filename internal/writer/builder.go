// internal/writer/builder.go
package writer

import (
	"log/slog"
	"time"

	cfg "github.com/tamzrod/modbus-iopoints/internal/config"
)

// Build converts one board config into a Supervisor.
// Assumes config has already passed Validate and Normalize.
func Build(b cfg.BoardConfig, client Client, states StateReader, bounds Bounds, log *slog.Logger) (*Supervisor, error) {
	return New(
		Config{
			BoardID:    b.ID,
			VerifyStep: time.Duration(b.Write.VerifyStepMs) * time.Millisecond,
			MaxRetries: b.Write.MaxRetries,
		},
		client,
		states,
		bounds,
		nil,
		log,
	)
}
