package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration loaded from defaults, an optional
// file, and PULSE_* environment variables.
type Config struct {
	HTTPAddr  string `mapstructure:"http_addr"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// StreamCapacity bounds each stream's ring buffer.
	StreamCapacity int `mapstructure:"stream_capacity"`
	// DefaultIntervalMs is the catch-up push cadence applied when a
	// subscribe omits intervalMs.
	DefaultIntervalMs int `mapstructure:"default_interval_ms"`
	// PrimingCount is the slice size of the initial push at subscribe time.
	PrimingCount int `mapstructure:"priming_count"`
	// CatchupCount is the slice size of each periodic catch-up push.
	CatchupCount int `mapstructure:"catchup_count"`

	HeartbeatPeriod time.Duration `mapstructure:"heartbeat_period"`
	MetricsPeriod   time.Duration `mapstructure:"metrics_period"`

	// SendBuffer is the per-connection outbound queue length.
	SendBuffer int `mapstructure:"send_buffer"`
	// MaxPayloadBytes caps a single inbound protocol message.
	MaxPayloadBytes int64 `mapstructure:"max_payload_bytes"`

	// Synthetic lists generator specs as "stream:interval", comma separated,
	// e.g. "temp:1s,load:250ms". Empty disables the synthetic producer.
	Synthetic string `mapstructure:"synthetic"`

	Poll PollConfig `mapstructure:"poll"`
}

// PollConfig drives the SQL query poller producer. It is inert unless both
// DSN and Query are set.
type PollConfig struct {
	DSN      string        `mapstructure:"dsn"`
	Query    string        `mapstructure:"query"`
	Stream   string        `mapstructure:"stream"`
	Interval time.Duration `mapstructure:"interval"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		HTTPAddr:          ":8080",
		LogLevel:          "info",
		LogFormat:         "json",
		StreamCapacity:    1000,
		DefaultIntervalMs: 5000,
		PrimingCount:      50,
		CatchupCount:      10,
		HeartbeatPeriod:   30 * time.Second,
		MetricsPeriod:     time.Second,
		SendBuffer:        256,
		MaxPayloadBytes:   1 << 20,
		Poll: PollConfig{
			Stream:   "poll",
			Interval: 5 * time.Second,
		},
	}
}

// Load builds a Config from defaults, an optional config file (JSON, YAML,
// or TOML by extension), and PULSE_* environment variables, in that
// precedence order (env wins). An empty path skips the file step.
func Load(path string) (Config, error) {
	v := viper.New()
	def := Default()
	v.SetDefault("http_addr", def.HTTPAddr)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_format", def.LogFormat)
	v.SetDefault("stream_capacity", def.StreamCapacity)
	v.SetDefault("default_interval_ms", def.DefaultIntervalMs)
	v.SetDefault("priming_count", def.PrimingCount)
	v.SetDefault("catchup_count", def.CatchupCount)
	v.SetDefault("heartbeat_period", def.HeartbeatPeriod.String())
	v.SetDefault("metrics_period", def.MetricsPeriod.String())
	v.SetDefault("send_buffer", def.SendBuffer)
	v.SetDefault("max_payload_bytes", def.MaxPayloadBytes)
	v.SetDefault("synthetic", def.Synthetic)
	v.SetDefault("poll.dsn", def.Poll.DSN)
	v.SetDefault("poll.query", def.Poll.Query)
	v.SetDefault("poll.stream", def.Poll.Stream)
	v.SetDefault("poll.interval", def.Poll.Interval.String())

	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	if c.StreamCapacity <= 0 {
		return fmt.Errorf("config: stream_capacity must be positive, got %d", c.StreamCapacity)
	}
	if c.DefaultIntervalMs <= 0 {
		return fmt.Errorf("config: default_interval_ms must be positive, got %d", c.DefaultIntervalMs)
	}
	if c.PrimingCount <= 0 || c.CatchupCount <= 0 {
		return fmt.Errorf("config: priming_count and catchup_count must be positive")
	}
	if c.HeartbeatPeriod <= 0 {
		return fmt.Errorf("config: heartbeat_period must be positive, got %s", c.HeartbeatPeriod)
	}
	if c.MetricsPeriod <= 0 {
		return fmt.Errorf("config: metrics_period must be positive, got %s", c.MetricsPeriod)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("config: send_buffer must be positive, got %d", c.SendBuffer)
	}
	if c.MaxPayloadBytes <= 0 {
		return fmt.Errorf("config: max_payload_bytes must be positive, got %d", c.MaxPayloadBytes)
	}
	return nil
}
