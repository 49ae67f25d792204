// internal/config/normalize.go
package config

import "github.com/tamzrod/modbus-iopoints/internal/codec"

// Defaults applied by Normalize.
const (
	DefaultTimeoutMs          = 1000
	DefaultStatesIntervalMs   = 100
	DefaultCountersIntervalMs = 1000
	DefaultVerifyStepMs       = 100
	DefaultMaxRetries         = 5

	DefaultTopicPrefix = "iopoints"
	DefaultClientID    = "iopoints"

	DefaultBaudRate = 19200
	DefaultDataBits = 8
	DefaultParity   = "N"
	DefaultStopBits = 1
)

// Normalize applies post-validation defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	for bi := range cfg.IOPoints.Boards {
		b := &cfg.IOPoints.Boards[bi]

		if b.Source.TimeoutMs <= 0 {
			b.Source.TimeoutMs = DefaultTimeoutMs
		}
		if s := b.Source.Serial; s != nil {
			if s.BaudRate == 0 {
				s.BaudRate = DefaultBaudRate
			}
			if s.DataBits == 0 {
				s.DataBits = DefaultDataBits
			}
			if s.Parity == "" {
				s.Parity = DefaultParity
			}
			if s.StopBits == 0 {
				s.StopBits = DefaultStopBits
			}
		}

		if b.Poll.StatesIntervalMs == 0 {
			b.Poll.StatesIntervalMs = DefaultStatesIntervalMs
		}
		if b.Poll.CountersIntervalMs == 0 {
			b.Poll.CountersIntervalMs = DefaultCountersIntervalMs
		}

		if b.Write.VerifyStepMs == 0 {
			b.Write.VerifyStepMs = DefaultVerifyStepMs
		}
		if b.Write.MaxRetries == nil {
			n := DefaultMaxRetries
			b.Write.MaxRetries = &n
		}

		if b.CounterWordOrder == "" {
			b.CounterWordOrder = codec.LowFirst.String()
		}
	}

	m := &cfg.IOPoints.MQTT
	if m.TopicPrefix == "" {
		m.TopicPrefix = DefaultTopicPrefix
	}
	if m.ClientID == "" {
		m.ClientID = DefaultClientID
	}

	if cfg.IOPoints.Logging.Level == "" {
		cfg.IOPoints.Logging.Level = "info"
	}
	if cfg.IOPoints.Logging.Format == "" {
		cfg.IOPoints.Logging.Format = "json"
	}
	if cfg.IOPoints.Logging.Output == "" {
		cfg.IOPoints.Logging.Output = "stdout"
	}
}
