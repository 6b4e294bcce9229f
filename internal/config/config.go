// Package config defines process configuration and its loading.
//
// Conventions:
// - New() returns a Config holding the defaults.
// - Load layers a YAML file and FACTOR_* environment variables on top.
// - Errors are wrapped with this package's sentinel kinds.
package config

import (
	"fmt"
	"math"
	"runtime"
	"strings"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// SchemaPath points to a JSON or YAML schema file. Empty uses the
	// built-in message schema.
	SchemaPath string `koanf:"schema_path"`

	// DefaultSymbol is reported when a message carries no symbol.
	DefaultSymbol string `koanf:"default_symbol"`

	// DefaultPERatio and DefaultROE replace absent ratios.
	DefaultPERatio float64 `koanf:"default_pe_ratio"`
	DefaultROE     float64 `koanf:"default_roe"`

	// BuyThreshold is the score a message must strictly exceed to be a BUY.
	BuyThreshold float64 `koanf:"buy_threshold"`

	// ScorePrecision is the number of decimal places kept in factor_score.
	ScorePrecision int `koanf:"score_precision"`

	// Concurrency bounds how many stream lines are processed at once.
	Concurrency int `koanf:"concurrency"`

	// MetricsTextfile, when set, receives a Prometheus textfile on exit.
	MetricsTextfile string `koanf:"metrics_textfile"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		LogFormat:      "text",
		DefaultSymbol:  "UNKNOWN",
		DefaultPERatio: 15,
		DefaultROE:     0.12,
		BuyThreshold:   0.2,
		ScorePrecision: 4,
		Concurrency:    runtime.NumCPU(),
	}
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	if strings.TrimSpace(c.DefaultSymbol) == "" {
		return fmt.Errorf("%w: default_symbol must not be empty", ErrInvalidConfig)
	}
	if c.DefaultPERatio == 0 || !finite(c.DefaultPERatio) {
		return fmt.Errorf("%w: default_pe_ratio must be finite and non-zero", ErrInvalidConfig)
	}
	if !finite(c.DefaultROE) {
		return fmt.Errorf("%w: default_roe must be finite", ErrInvalidConfig)
	}
	if !finite(c.BuyThreshold) {
		return fmt.Errorf("%w: buy_threshold must be finite", ErrInvalidConfig)
	}
	if c.ScorePrecision < 0 || c.ScorePrecision > 15 {
		return fmt.Errorf("%w: score_precision must be within [0, 15]", ErrInvalidConfig)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1", ErrInvalidConfig)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
