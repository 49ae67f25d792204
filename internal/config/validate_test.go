// internal/config/validate_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
)

// helper to build a board quickly
func board(id, endpoint string, unitID uint8, groups int) BoardConfig {
	return BoardConfig{
		ID:     id,
		Groups: groups,
		Source: SourceConfig{
			Endpoint: endpoint,
			UnitID:   unitID,
		},
	}
}

func cfgWith(boards ...BoardConfig) *Config {
	return &Config{IOPoints: IOPointsConfig{Boards: boards}}
}

// ---- tests ----

func TestValidate_Minimal(t *testing.T) {
	if err := Validate(cfgWith(board("b1", "10.0.0.1:502", 0, 3))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_NoBoards(t *testing.T) {
	if err := Validate(cfgWith()); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestValidate_DuplicateID(t *testing.T) {
	cfg := cfgWith(
		board("b1", "10.0.0.1:502", 0, 1),
		board("b1", "10.0.0.2:502", 0, 1),
	)
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected duplicate id error, got nil")
	}
}

func TestValidate_SourceCollision(t *testing.T) {
	cfg := cfgWith(
		board("b1", "10.0.0.1:502", 1, 1),
		board("b2", "10.0.0.1:502", 1, 1),
	)
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected collision error, got nil")
	}
}

func TestValidate_SameEndpointDifferentUnit(t *testing.T) {
	cfg := cfgWith(
		board("b1", "10.0.0.1:502", 1, 1),
		board("b2", "10.0.0.1:502", 2, 1),
	)
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_GroupRange(t *testing.T) {
	for _, g := range []int{0, -1, maxGroups + 1} {
		if err := Validate(cfgWith(board("b1", "h:502", 0, g))); err == nil {
			t.Fatalf("groups=%d: expected error", g)
		}
	}
}

func TestValidate_SourceExclusive(t *testing.T) {
	b := board("b1", "h:502", 0, 1)
	b.Source.Serial = &SerialConfig{Device: "/dev/ttyUSB0"}
	if err := Validate(cfgWith(b)); err == nil {
		t.Fatalf("expected error with both endpoint and serial")
	}

	b.Source.Endpoint = ""
	if err := Validate(cfgWith(b)); err != nil {
		t.Fatalf("serial only: unexpected error: %v", err)
	}

	b.Source.Serial.Parity = "X"
	if err := Validate(cfgWith(b)); err == nil {
		t.Fatalf("expected parity error")
	}

	b.Source.Serial = nil
	if err := Validate(cfgWith(b)); err == nil {
		t.Fatalf("expected error with no source")
	}
}

func TestValidate_TopicCharsInID(t *testing.T) {
	if err := Validate(cfgWith(board("b/1", "h:502", 0, 1))); err == nil {
		t.Fatalf("expected error for '/' in id")
	}
}

func TestValidate_CounterWordOrder(t *testing.T) {
	b := board("b1", "h:502", 0, 1)
	b.CounterWordOrder = "sideways"
	if err := Validate(cfgWith(b)); err == nil {
		t.Fatalf("expected counter_word_order error")
	}
}

func TestValidate_NegativeRetries(t *testing.T) {
	b := board("b1", "h:502", 0, 1)
	n := -1
	b.Write.MaxRetries = &n
	if err := Validate(cfgWith(b)); err == nil {
		t.Fatalf("expected max_retries error")
	}
}

func TestValidate_Outputs(t *testing.T) {
	cfg := cfgWith(board("b1", "h:502", 0, 1))

	cfg.IOPoints.MQTT = MQTTConfig{Enabled: true}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected mqtt broker error")
	}
	cfg.IOPoints.MQTT = MQTTConfig{Enabled: true, Broker: "tcp://b:1883", QoS: 3}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected mqtt qos error")
	}
	cfg.IOPoints.MQTT = MQTTConfig{}

	cfg.IOPoints.InfluxDB = InfluxDBConfig{Enabled: true, URL: "http://i:8086"}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected influxdb error")
	}
	cfg.IOPoints.InfluxDB = InfluxDBConfig{}

	cfg.IOPoints.Logging = LoggingConfig{Output: "file"}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected logging file error")
	}
}

func TestNormalize_Defaults(t *testing.T) {
	b := board("b1", "h:502", 0, 2)
	b.Source.Endpoint = ""
	b.Source.Serial = &SerialConfig{Device: "/dev/ttyS0"}
	cfg := cfgWith(b)

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	Normalize(cfg)

	got := cfg.IOPoints.Boards[0]
	if got.Source.TimeoutMs != DefaultTimeoutMs {
		t.Fatalf("timeout default not applied")
	}
	if got.Source.Serial.BaudRate != DefaultBaudRate || got.Source.Serial.Parity != DefaultParity {
		t.Fatalf("serial defaults not applied: %+v", got.Source.Serial)
	}
	if got.Poll.StatesIntervalMs != DefaultStatesIntervalMs || got.Poll.CountersIntervalMs != DefaultCountersIntervalMs {
		t.Fatalf("poll defaults not applied: %+v", got.Poll)
	}
	if got.Write.MaxRetries == nil || *got.Write.MaxRetries != DefaultMaxRetries || got.Write.VerifyStepMs != DefaultVerifyStepMs {
		t.Fatalf("write defaults not applied: %+v", got.Write)
	}
	if got.CounterWordOrder != "low_first" {
		t.Fatalf("counter order default got=%q", got.CounterWordOrder)
	}
	if cfg.IOPoints.MQTT.TopicPrefix != DefaultTopicPrefix || cfg.IOPoints.Logging.Format != "json" {
		t.Fatalf("global defaults not applied")
	}
}

func TestNormalize_KeepsExplicitZeroRetries(t *testing.T) {
	b := board("b1", "h:502", 0, 1)
	zero := 0
	b.Write.MaxRetries = &zero
	cfg := cfgWith(b)

	Normalize(cfg)
	if *cfg.IOPoints.Boards[0].Write.MaxRetries != 0 {
		t.Fatalf("explicit zero overwritten")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "iopoints.yaml")

	data := []byte(`
iopoints:
  boards:
    - id: neuron-1
      groups: 3
      source:
        endpoint: "127.0.0.1:502"
        unit_id: 1
      poll:
        states_interval_ms: 50
      write:
        max_retries: 2
  mqtt:
    enabled: true
    broker: "tcp://localhost:1883"
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("IOPOINTS_MQTT_PASSWORD", "secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	b := cfg.IOPoints.Boards[0]
	if b.ID != "neuron-1" || b.Groups != 3 || b.Source.UnitID != 1 || b.Poll.StatesIntervalMs != 50 {
		t.Fatalf("unexpected board %+v", b)
	}
	if b.Write.MaxRetries == nil || *b.Write.MaxRetries != 2 {
		t.Fatalf("max_retries not parsed")
	}
	if cfg.IOPoints.MQTT.Password != "secret" {
		t.Fatalf("env override not applied")
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
