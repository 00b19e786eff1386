package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// RunConfig holds configuration for a botsched robot run.
type RunConfig struct {
	Period     time.Duration `env:"BOTSCHED_PERIOD"`     // Control-cycle period (default 20ms)
	MaxTicks   uint64        `env:"BOTSCHED_TICKS"`      // Stop after this many ticks (0 = until interrupted)
	Addr       string        `env:"BOTSCHED_ADDR"`       // HTTP API listen address ("" disables the API)
	DBPath     string        `env:"BOTSCHED_DB"`         // SQLite history path ("" disables history, ":memory:" for testing)
	InputsPath string        `env:"BOTSCHED_INPUTS"`     // Station inputs YAML, reloaded on change
	Enabled    bool          `env:"BOTSCHED_ENABLED"`    // Initial robot enable signal
	LogLevel   string        `env:"BOTSCHED_LOG_LEVEL"`  // Log level: debug, info, warn, error
	LogFormat  string        `env:"BOTSCHED_LOG_FORMAT"` // Log format: text, json
	LogFile    string        `env:"BOTSCHED_LOG_FILE"`   // Rotated log file ("" logs to stderr)
}

// DefaultRunConfig returns sensible defaults.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Period:    20 * time.Millisecond,
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// ApplyEnv overlays BOTSCHED_* environment variables onto cfg. Unset
// variables leave the existing value in place.
func ApplyEnv(cfg *RunConfig) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate reports configuration values the driver cannot run with.
func (c RunConfig) Validate() error {
	if c.Period <= 0 {
		return fmt.Errorf("period must be positive, got %s", c.Period)
	}
	return nil
}
