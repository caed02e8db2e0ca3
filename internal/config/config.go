// Package config loads goalsolver settings from YAML, .env files and the
// environment.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/joho/godotenv"
	"github.com/rand/goalsolver/internal/resilience"
	"github.com/rand/goalsolver/internal/solver"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvSearchDepth = "GOALSOLVER_SEARCH_DEPTH"
	EnvLogLevel    = "GOALSOLVER_LOG_LEVEL"
)

// Config is the effective goalsolver configuration.
type Config struct {
	// SearchDepth bounds recursive cost estimation.
	SearchDepth int `json:"search_depth" yaml:"search_depth" jsonschema:"description=Maximum recursion depth of cost estimation,minimum=1,default=8,example=3"`

	// Log configures the process logger.
	Log LogConfig `json:"log" yaml:"log" jsonschema:"description=Process logging settings"`

	// Breaker wraps every catalog strategy in a circuit breaker.
	Breaker BreakerConfig `json:"breaker" yaml:"breaker" jsonschema:"description=Per-strategy circuit breaker settings"`

	// RateLimit paces strategy executions.
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit" jsonschema:"description=Per-strategy execution rate limit"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string `json:"level" yaml:"level" jsonschema:"description=Minimum log level,enum=debug,enum=info,enum=warn,enum=error,default=info"`

	// Format is the handler format: text, json or pretty.
	Format string `json:"format" yaml:"format" jsonschema:"description=Log output format,enum=text,enum=json,enum=pretty,default=text"`

	// File sends logs to a rotated file instead of stderr.
	File string `json:"file,omitempty" yaml:"file,omitempty" jsonschema:"description=Log file path; empty logs to stderr,example=/var/log/goalsolver.log"`

	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB int `json:"max_size_mb,omitempty" yaml:"max_size_mb,omitempty" jsonschema:"description=Rotate the log file after this many megabytes,minimum=0,default=10"`

	// MaxBackups is the number of rotated files kept.
	MaxBackups int `json:"max_backups,omitempty" yaml:"max_backups,omitempty" jsonschema:"description=Number of rotated log files to keep,minimum=0,default=3"`
}

// BreakerConfig configures per-strategy circuit breakers.
type BreakerConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" jsonschema:"description=Enable per-strategy circuit breakers,default=false"`

	// FailureThreshold is the consecutive failure count that opens a circuit.
	FailureThreshold int `json:"failure_threshold,omitempty" yaml:"failure_threshold,omitempty" jsonschema:"description=Consecutive failures that open a circuit,minimum=0,default=5"`

	// RecoveryTimeout is how long an open circuit waits before probing.
	RecoveryTimeout time.Duration `json:"recovery_timeout,omitempty" yaml:"recovery_timeout,omitempty" jsonschema:"description=Time an open circuit waits before a probe in nanoseconds; YAML accepts durations such as 30s"`

	// SuccessThreshold is the probe success count that closes a circuit.
	SuccessThreshold int `json:"success_threshold,omitempty" yaml:"success_threshold,omitempty" jsonschema:"description=Probe successes that close a circuit,minimum=0,default=1"`
}

// RateLimitConfig configures per-strategy execution pacing.
type RateLimitConfig struct {
	// PerSecond is the sustained execution rate. Zero disables limiting.
	PerSecond float64 `json:"per_second,omitempty" yaml:"per_second,omitempty" jsonschema:"description=Executions per second per strategy; 0 disables,minimum=0,default=0,example=20"`

	// Burst is the number of executions allowed at once.
	Burst int `json:"burst,omitempty" yaml:"burst,omitempty" jsonschema:"description=Burst size of the rate limiter,minimum=0,default=1"`
}

// Default returns the built-in configuration.
func Default() *Config {
	breaker := resilience.DefaultBreakerConfig()
	return &Config{
		SearchDepth: solver.DefaultSearchDepth,
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Breaker: BreakerConfig{
			FailureThreshold: breaker.FailureThreshold,
			RecoveryTimeout:  breaker.RecoveryTimeout,
			SuccessThreshold: breaker.SuccessThreshold,
		},
		RateLimit: RateLimitConfig{
			Burst: 1,
		},
	}
}

// Options control where Load reads from.
type Options struct {
	// Path is a YAML config file. Empty uses defaults only.
	Path string

	// EnvFile is a .env file loaded before environment overrides are read.
	// Variables already set in the process environment win.
	EnvFile string

	// Debug forces the log level to debug.
	Debug bool
}

// Load builds the effective configuration: defaults, then the YAML file,
// then the environment, then flags in opts. The result is validated.
func Load(opts Options) (*Config, error) {
	cfg, err := LoadUnchecked(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadUnchecked is Load without validation.
func LoadUnchecked(opts Options) (*Config, error) {
	cfg := Default()

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", opts.EnvFile, err)
		}
	}

	if opts.Path != "" {
		data, err := os.ReadFile(opts.Path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", opts.Path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if opts.Debug {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// decode overlays YAML onto cfg. Unknown keys are rejected.
func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvSearchDepth); ok && v != "" {
		depth, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSearchDepth, err)
		}
		c.SearchDepth = depth
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		c.Log.Level = strings.ToLower(strings.TrimSpace(v))
	}
	return nil
}

// Check reports configuration errors and warnings.
func (c *Config) Check() (errs []error, warnings []string) {
	if c.SearchDepth < 1 {
		errs = append(errs, fmt.Errorf("search_depth must be at least 1, got %d", c.SearchDepth))
	} else if c.SearchDepth > 32 {
		warnings = append(warnings, fmt.Sprintf("search_depth %d may make estimation slow", c.SearchDepth))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json", "pretty":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json, pretty", c.Log.Format))
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 {
		errs = append(errs, errors.New("log rotation sizes must not be negative"))
	}

	if c.Breaker.FailureThreshold < 0 || c.Breaker.SuccessThreshold < 0 || c.Breaker.RecoveryTimeout < 0 {
		errs = append(errs, errors.New("breaker thresholds must not be negative"))
	}

	if c.RateLimit.PerSecond < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.per_second must not be negative, got %g", c.RateLimit.PerSecond))
	}
	if c.RateLimit.Burst < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.burst must not be negative, got %d", c.RateLimit.Burst))
	} else if c.RateLimit.PerSecond > 0 && c.RateLimit.Burst == 0 {
		warnings = append(warnings, "rate_limit.burst is 0; a burst of 1 will be used")
	}

	return errs, warnings
}

// Validate returns all configuration errors joined, or nil.
func (c *Config) Validate() error {
	errs, _ := c.Check()
	return errors.Join(errs...)
}

// Policy converts the resilience settings into a strategy wrapping policy.
func (c *Config) Policy() resilience.Policy {
	var p resilience.Policy
	if c.Breaker.Enabled {
		p.Breaker = &resilience.BreakerConfig{
			FailureThreshold: c.Breaker.FailureThreshold,
			RecoveryTimeout:  c.Breaker.RecoveryTimeout,
			SuccessThreshold: c.Breaker.SuccessThreshold,
		}
	}
	if c.RateLimit.PerSecond > 0 {
		p.Limit = rate.Limit(c.RateLimit.PerSecond)
		p.Burst = c.RateLimit.Burst
	}
	return p
}

// Schema returns the JSON schema of the configuration file.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{
		FieldNameTag:              "yaml",
		AllowAdditionalProperties: false,
	}
	schema := r.Reflect(&Config{})
	schema.Title = "goalsolver configuration"
	return json.MarshalIndent(schema, "", "  ")
}
