package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Scheduler SchedulerConfig `toml:"scheduler"`
	Logging   LoggingConfig   `toml:"logging"`
	Assets    AssetsConfig    `toml:"assets"`
	Scripts   ScriptsConfig   `toml:"scripts"`
	Stress    StressConfig    `toml:"stress"`
}

type SchedulerConfig struct {
	TickRate time.Duration `toml:"tick_rate"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type AssetsConfig struct {
	Manifest string `toml:"manifest"` // yaml asset list; empty means none
}

type ScriptsConfig struct {
	Dir string `toml:"dir"`
}

type StressConfig struct {
	Entities     int           `toml:"entities"`
	Duration     time.Duration `toml:"duration"`
	ToggleChance float64       `toml:"toggle_chance"` // per entity per tick (0.0-1.0)
	Profile      string        `toml:"profile"`       // "", "cpu" or "mem"
}

// Load reads a TOML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			TickRate: 16 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Stress: StressConfig{
			Entities:     10000,
			Duration:     10 * time.Second,
			ToggleChance: 0.01,
		},
	}
}

// Validate rejects values the scheduler or stress harness cannot run with.
func (c *Config) Validate() error {
	if c.Scheduler.TickRate <= 0 {
		return fmt.Errorf("scheduler.tick_rate must be positive, got %s", c.Scheduler.TickRate)
	}
	if c.Stress.Entities < 0 {
		return fmt.Errorf("stress.entities must not be negative, got %d", c.Stress.Entities)
	}
	if c.Stress.ToggleChance < 0 || c.Stress.ToggleChance > 1 {
		return fmt.Errorf("stress.toggle_chance must be within [0, 1], got %g", c.Stress.ToggleChance)
	}
	switch c.Stress.Profile {
	case "", "cpu", "mem":
	default:
		return fmt.Errorf("stress.profile must be cpu, mem or empty, got %q", c.Stress.Profile)
	}
	return nil
}

// NewLogger builds a zap logger. Unknown levels fall back to info.
func NewLogger(cfg LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
