// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	IOPoints IOPointsConfig `yaml:"iopoints"`
}

type IOPointsConfig struct {
	Boards   []BoardConfig  `yaml:"boards"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Journal  JournalConfig  `yaml:"journal"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ---- BOARD ----

type BoardConfig struct {
	ID     string       `yaml:"id"`
	Source SourceConfig `yaml:"source"`
	Groups int          `yaml:"groups"`
	Poll   PollConfig   `yaml:"poll"`
	Write  WriteConfig  `yaml:"write"`

	// low_first (default) or high_first
	CounterWordOrder string `yaml:"counter_word_order"`
}

// ---- SOURCE ----

type SourceConfig struct {
	Endpoint  string        `yaml:"endpoint"` // host:port (Modbus TCP)
	Serial    *SerialConfig `yaml:"serial"`   // Modbus RTU (optional)
	UnitID    uint8         `yaml:"unit_id"`
	TimeoutMs int           `yaml:"timeout_ms"`
}

type SerialConfig struct {
	Device   string `yaml:"device"`
	BaudRate int    `yaml:"baud_rate"`
	DataBits int    `yaml:"data_bits"`
	Parity   string `yaml:"parity"`
	StopBits int    `yaml:"stop_bits"`
}

// ---- POLL ----

type PollConfig struct {
	StatesIntervalMs   int `yaml:"states_interval_ms"`
	CountersIntervalMs int `yaml:"counters_interval_ms"`
}

// ---- WRITE ----

type WriteConfig struct {
	VerifyStepMs int  `yaml:"verify_step_ms"`
	MaxRetries   *int `yaml:"max_retries"` // nil => default
}

// ---- MQTT ----

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // tcp://host:1883
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

// ---- INFLUXDB ----

type InfluxDBConfig struct {
	Enabled         bool   `yaml:"enabled"`
	URL             string `yaml:"url"`
	Token           string `yaml:"token"`
	Org             string `yaml:"org"`
	Bucket          string `yaml:"bucket"`
	BatchSize       int    `yaml:"batch_size"`
	FlushIntervalMs int    `yaml:"flush_interval_ms"`
}

// ---- JOURNAL ----

type JournalConfig struct {
	Path string `yaml:"path"` // empty => disabled
}

// ---- LOGGING ----

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	Output string `yaml:"output"` // stdout, stderr, file
	File   string `yaml:"file"`   // used when output=file

	MaxSizeMB  int `yaml:"max_size_mb"`
	MaxBackups int `yaml:"max_backups"`
}

// Load reads a YAML config file and applies environment overrides.
// It does not validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides lets secrets live outside the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("IOPOINTS_MQTT_PASSWORD"); v != "" {
		cfg.IOPoints.MQTT.Password = v
	}
	if v := os.Getenv("IOPOINTS_MQTT_BROKER"); v != "" {
		cfg.IOPoints.MQTT.Broker = v
	}
	if v := os.Getenv("IOPOINTS_INFLUXDB_TOKEN"); v != "" {
		cfg.IOPoints.InfluxDB.Token = v
	}
}
