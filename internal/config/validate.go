// internal/config/validate.go
package config

import (
	"fmt"
	"strings"

	"github.com/tamzrod/modbus-iopoints/internal/codec"
)

// maxGroups is the number of group slots the board layout defines.
const maxGroups = 9

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	if len(cfg.IOPoints.Boards) == 0 {
		return fmt.Errorf("config: at least one board required")
	}

	// ------------------------------------------------------------
	// BOARD VALIDATION
	// ------------------------------------------------------------

	// key = endpoint|unit_id  or  serial device|unit_id
	sourceOwner := make(map[string]string)
	ids := make(map[string]bool)

	for _, b := range cfg.IOPoints.Boards {
		if b.ID == "" {
			return fmt.Errorf("board: id required")
		}
		if strings.ContainsAny(b.ID, "/+#") {
			return fmt.Errorf("board %q: id must not contain MQTT topic characters", b.ID)
		}
		if ids[b.ID] {
			return fmt.Errorf("board %q: duplicate id", b.ID)
		}
		ids[b.ID] = true

		if b.Groups < 1 || b.Groups > maxGroups {
			return fmt.Errorf("board %q: groups must be 1..%d, got %d", b.ID, maxGroups, b.Groups)
		}

		hasTCP := b.Source.Endpoint != ""
		hasRTU := b.Source.Serial != nil
		if hasTCP == hasRTU {
			return fmt.Errorf("board %q: exactly one of source.endpoint or source.serial required", b.ID)
		}
		if hasRTU {
			if b.Source.Serial.Device == "" {
				return fmt.Errorf("board %q: source.serial.device required", b.ID)
			}
			switch b.Source.Serial.Parity {
			case "", "N", "E", "O":
			default:
				return fmt.Errorf("board %q: source.serial.parity must be N, E or O", b.ID)
			}
		}

		if b.Source.TimeoutMs < 0 {
			return fmt.Errorf("board %q: timeout_ms must be >= 0", b.ID)
		}
		if b.Poll.StatesIntervalMs < 0 || b.Poll.CountersIntervalMs < 0 {
			return fmt.Errorf("board %q: poll intervals must be >= 0", b.ID)
		}
		if b.Write.VerifyStepMs < 0 {
			return fmt.Errorf("board %q: write.verify_step_ms must be >= 0", b.ID)
		}
		if b.Write.MaxRetries != nil && *b.Write.MaxRetries < 0 {
			return fmt.Errorf("board %q: write.max_retries must be >= 0", b.ID)
		}

		if _, ok := codec.ParseWordOrder(b.CounterWordOrder); !ok {
			return fmt.Errorf("board %q: counter_word_order must be low_first or high_first", b.ID)
		}

		key := fmt.Sprintf("%s|%d", b.Source.Endpoint, b.Source.UnitID)
		if hasRTU {
			key = fmt.Sprintf("%s|%d", b.Source.Serial.Device, b.Source.UnitID)
		}
		if prev, exists := sourceOwner[key]; exists {
			return fmt.Errorf("source collision: %s used by boards %q and %q", key, prev, b.ID)
		}
		sourceOwner[key] = b.ID
	}

	// ------------------------------------------------------------
	// OUTPUTS
	// ------------------------------------------------------------

	if m := cfg.IOPoints.MQTT; m.Enabled {
		if m.Broker == "" {
			return fmt.Errorf("mqtt: broker required when enabled")
		}
		if m.QoS < 0 || m.QoS > 2 {
			return fmt.Errorf("mqtt: qos must be 0, 1 or 2")
		}
	}

	if i := cfg.IOPoints.InfluxDB; i.Enabled {
		if i.URL == "" || i.Org == "" || i.Bucket == "" {
			return fmt.Errorf("influxdb: url, org and bucket required when enabled")
		}
	}

	switch strings.ToLower(cfg.IOPoints.Logging.Output) {
	case "", "stdout", "stderr":
	case "file":
		if cfg.IOPoints.Logging.File == "" {
			return fmt.Errorf("logging: file required when output=file")
		}
	default:
		return fmt.Errorf("logging: unknown output %q", cfg.IOPoints.Logging.Output)
	}

	return nil
}
