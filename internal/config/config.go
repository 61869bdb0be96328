// Package config loads daemon settings from defaults, an optional YAML
// file and FREEZEWATCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// FREEZEWATCH_STORE_PATH for store.path.
const EnvPrefix = "FREEZEWATCH"

type Config struct {
	Rules     RulesConfig     `mapstructure:"rules"`
	Store     StoreConfig     `mapstructure:"store"`
	Reports   ReportsConfig   `mapstructure:"reports"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Sink      SinkConfig      `mapstructure:"sink"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	ProcState ProcStateConfig `mapstructure:"procstate"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Log       LogConfig       `mapstructure:"log"`
}

type RulesConfig struct {
	Path    string `mapstructure:"path"`
	MaxSize int64  `mapstructure:"max_size"`
}

type StoreConfig struct {
	Path          string        `mapstructure:"path"`
	Retention     time.Duration `mapstructure:"retention"`
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

type ReportsConfig struct {
	Dir      string `mapstructure:"dir"`
	MaxFiles int    `mapstructure:"max_files"`
	MaxBytes int64  `mapstructure:"max_bytes"`
	TimeZone string `mapstructure:"time_zone"`
}

// Location resolves TimeZone. Empty means local time.
func (r ReportsConfig) Location() (*time.Location, error) {
	if r.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(r.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("reports.time_zone: %w", err)
	}
	return loc, nil
}

type SchedulerConfig struct {
	Workers     int           `mapstructure:"workers"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
}

type SinkConfig struct {
	File  FileSinkConfig  `mapstructure:"file"`
	NATS  NATSSinkConfig  `mapstructure:"nats"`
	Redis RedisSinkConfig `mapstructure:"redis"`
}

type FileSinkConfig struct {
	Path string `mapstructure:"path"`
}

type NATSSinkConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Subject string `mapstructure:"subject"`
}

type RedisSinkConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Stream  string `mapstructure:"stream"`
	MaxLen  int64  `mapstructure:"max_len"`
}

type IngestConfig struct {
	NATS NATSIngestConfig `mapstructure:"nats"`
}

type NATSIngestConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

// NATSNeeded reports whether any component needs a NATS connection.
func (c *Config) NATSNeeded() bool {
	return c.Ingest.NATS.Enabled || c.Sink.NATS.Enabled
}

type ProcStateConfig struct {
	Domain          string `mapstructure:"domain"`
	ForegroundEvent string `mapstructure:"foreground_event"`
	BackgroundEvent string `mapstructure:"background_event"`
}

type AdminConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration. An empty path searches ./config.yaml and
// /etc/freezewatch/config.yaml; a missing file there is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("rules.path", "/etc/freezewatch/freeze_rules.yaml")
	v.SetDefault("rules.max_size", 512*1024)
	v.SetDefault("store.path", "/var/lib/freezewatch/events.db")
	v.SetDefault("store.retention", "24h")
	v.SetDefault("store.prune_interval", "10m")
	v.SetDefault("reports.dir", "/var/lib/freezewatch/reports")
	v.SetDefault("reports.max_files", 100)
	v.SetDefault("reports.max_bytes", 256<<20)
	v.SetDefault("reports.time_zone", "")
	v.SetDefault("scheduler.workers", 4)
	v.SetDefault("scheduler.settle_delay", "10s")
	v.SetDefault("sink.file.path", "")
	v.SetDefault("sink.nats.enabled", false)
	v.SetDefault("sink.nats.subject", "freezewatch.faults")
	v.SetDefault("sink.redis.enabled", false)
	v.SetDefault("sink.redis.url", "redis://localhost:6379/0")
	v.SetDefault("sink.redis.stream", "freezewatch:faults")
	v.SetDefault("sink.redis.max_len", 10000)
	v.SetDefault("ingest.nats.enabled", false)
	v.SetDefault("ingest.nats.url", "nats://localhost:4222")
	v.SetDefault("ingest.nats.subject", "freezewatch.events")
	v.SetDefault("procstate.domain", "AAFWK")
	v.SetDefault("procstate.foreground_event", "ABILITY_ONFOREGROUND")
	v.SetDefault("procstate.background_event", "ABILITY_ONBACKGROUND")
	v.SetDefault("admin.addr", "127.0.0.1:9475")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/freezewatch")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	var errs []error
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}
	if c.Reports.Dir == "" {
		errs = append(errs, errors.New("reports.dir is required"))
	}
	if c.Scheduler.Workers < 1 {
		errs = append(errs, fmt.Errorf("scheduler.workers must be at least 1, got %d", c.Scheduler.Workers))
	}
	if _, err := c.Reports.Location(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Sink.Redis.Enabled && c.Sink.Redis.Stream == "" {
		errs = append(errs, errors.New("sink.redis.stream is required when the redis sink is enabled"))
	}
	return errors.Join(errs...)
}
