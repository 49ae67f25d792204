// internal/board/builder.go
package board

import (
	"log/slog"
	"time"

	cfg "github.com/tamzrod/modbus-iopoints/internal/config"
	"github.com/tamzrod/modbus-iopoints/internal/transport"
)

// Build constructs the Modbus transport of a board and wires the board.
// The connection is opened by Start.
func Build(b cfg.BoardConfig, log *slog.Logger) (*Board, error) {
	if log == nil {
		log = slog.Default()
	}

	tc := transport.Config{
		Endpoint: b.Source.Endpoint,
		UnitID:   b.Source.UnitID,
		Timeout:  time.Duration(b.Source.TimeoutMs) * time.Millisecond,
	}
	if s := b.Source.Serial; s != nil {
		tc.Endpoint = ""
		tc.Serial = &transport.SerialConfig{
			Device:   s.Device,
			BaudRate: s.BaudRate,
			DataBits: s.DataBits,
			Parity:   s.Parity,
			StopBits: s.StopBits,
		}
	}

	tr, err := transport.New(tc)
	if err != nil {
		return nil, err
	}

	return New(b, tr, log)
}
