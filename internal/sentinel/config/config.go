package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ErrConfiguration marks configuration that must be fixed before the session can start.
var ErrConfiguration = errors.New("configuration error")

type LoggingCfg struct {
	Level        string `mapstructure:"level"`
	ConsoleLevel string `mapstructure:"console_level"`
	File         string `mapstructure:"file"`
	MaxSizeMB    int    `mapstructure:"max_size_mb"`
	MaxBackups   int    `mapstructure:"max_backups"`
	MaxAgeDays   int    `mapstructure:"max_age_days"`
	Development  bool   `mapstructure:"development"`
	RunLog       string `mapstructure:"run_log"`
}

type StoreCfg struct {
	Capacity     int `mapstructure:"capacity"`
	DedupeWindow int `mapstructure:"dedupe_window"`
}

type PolicyCfg struct {
	File string `mapstructure:"file"`
}

type SettingsCfg struct {
	DataRetentionPeriod string `mapstructure:"data_retention_period"`
}

type SimulationCfg struct {
	Seed              int64         `mapstructure:"seed"`
	Endpoints         int           `mapstructure:"endpoints"`
	InitialEvents     int           `mapstructure:"initial_events"`
	FeedInterval      time.Duration `mapstructure:"feed_interval"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"`
	ReconnectChance   float64       `mapstructure:"reconnect_chance"`
	BurstWindow       time.Duration `mapstructure:"burst_window"`
	AnomalyRate       float64       `mapstructure:"anomaly_rate"`
	InventoryFile     string        `mapstructure:"inventory_file"`
}

type LedgerCfg struct {
	StateFile string `mapstructure:"state_file"`
	Output    string `mapstructure:"output"`
}

type SinkCfg struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Table    string `mapstructure:"table"`
}

type OutputCfg struct {
	RejectFile string `mapstructure:"reject_file"`
}

type Config struct {
	Version    string        `mapstructure:"version"`
	Store      StoreCfg      `mapstructure:"store"`
	Policy     PolicyCfg     `mapstructure:"policy"`
	Settings   SettingsCfg   `mapstructure:"settings"`
	Simulation SimulationCfg `mapstructure:"simulation"`
	Ledger     LedgerCfg     `mapstructure:"ledger"`
	Sink       SinkCfg       `mapstructure:"sink"`
	Output     OutputCfg     `mapstructure:"output"`
	Logging    LoggingCfg    `mapstructure:"logging"`
}

var cfg *Config

// Load populates global config from a viper instance
func Load(v *viper.Viper) error {
	// set defaults
	v.SetDefault("version", "0.1")
	v.SetDefault("store.capacity", 500)
	v.SetDefault("store.dedupe_window", 4096)
	v.SetDefault("settings.data_retention_period", "90d")
	v.SetDefault("simulation.endpoints", 5)
	v.SetDefault("simulation.initial_events", 50)
	v.SetDefault("simulation.feed_interval", "2s")
	v.SetDefault("simulation.reconnect_interval", "10s")
	v.SetDefault("simulation.reconnect_chance", 0.25)
	v.SetDefault("simulation.burst_window", "5m")
	v.SetDefault("simulation.anomaly_rate", 0.15)
	v.SetDefault("sink.table", "sentinel_events")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size_mb", 100)

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = &c
	return nil
}

// Validate checks the values a session cannot recover from at request time.
func (c *Config) Validate() error {
	if c.Store.Capacity <= 0 {
		return fmt.Errorf("%w: store.capacity must be positive, got %d", ErrConfiguration, c.Store.Capacity)
	}
	if c.Store.DedupeWindow < 0 {
		return fmt.Errorf("%w: store.dedupe_window must not be negative", ErrConfiguration)
	}
	if c.Simulation.ReconnectChance < 0 || c.Simulation.ReconnectChance > 1 {
		return fmt.Errorf("%w: simulation.reconnect_chance must be within [0,1]", ErrConfiguration)
	}
	if c.Simulation.AnomalyRate < 0 || c.Simulation.AnomalyRate > 1 {
		return fmt.Errorf("%w: simulation.anomaly_rate must be within [0,1]", ErrConfiguration)
	}
	switch c.Sink.Driver {
	case "", "postgres", "mysql", "sqlite3":
	default:
		return fmt.Errorf("%w: unsupported sink driver %q", ErrConfiguration, c.Sink.Driver)
	}
	return nil
}

func Get() *Config {
	if cfg == nil {
		cfg = &Config{}
	}
	return cfg
}
