// Package config loads the server configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultDocsURL is where the root route redirects to.
const DefaultDocsURL = "https://lsawade.github.io/GF3D/parts/gf-extraction/index.html"

// Config holds the complete server configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Subset    SubsetConfig    `koanf:"subset"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`

	// DocsURL is the documentation page the root route redirects to.
	DocsURL string `koanf:"docs_url"`

	// Databases maps a database alias to its directory.
	Databases map[string]string `koanf:"databases"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int    `koanf:"port"`
	Environment string `koanf:"environment"`

	// StrictStatus sends real HTTP 400 responses for "400 ..." messages.
	// When false the messages go out with HTTP 200.
	StrictStatus bool `koanf:"strict_status"`

	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `koanf:"level"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool   `koanf:"enabled"`
	OTLPEndpoint string `koanf:"otlp_endpoint"`

	// SampleRatio is the fraction of root traces kept, in (0, 1].
	SampleRatio float64 `koanf:"sample_ratio"`
}

// SubsetConfig holds settings for subset extraction.
type SubsetConfig struct {
	// Command is the external subset tool and its leading arguments.
	Command []string `koanf:"command"`

	// ScratchDir receives the request scoped subset files.
	// Empty means the OS temp directory.
	ScratchDir string `koanf:"scratch_dir"`

	// Timeout bounds a single subset run.
	Timeout time.Duration `koanf:"timeout"`

	// ExposeErrors includes the library error and stack trace in responses.
	ExposeErrors bool `koanf:"expose_errors"`
}

// RateLimitConfig holds per-IP request limits.
type RateLimitConfig struct {
	Disabled bool          `koanf:"disabled"`
	Standard int           `koanf:"standard"`
	Subset   int           `koanf:"subset"`
	Window   time.Duration `koanf:"window"`
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.DocsURL != "" {
		if u, err := url.Parse(c.DocsURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("docs_url must be an absolute URL, got %q", c.DocsURL))
		}
	}
	if c.Telemetry.SampleRatio <= 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_ratio must be in (0, 1], got %g", c.Telemetry.SampleRatio))
	}
	if c.Subset.Timeout < 0 {
		errs = append(errs, errors.New("subset.timeout must not be negative"))
	}
	if !c.RateLimit.Disabled {
		if c.RateLimit.Standard < 1 || c.RateLimit.Subset < 1 {
			errs = append(errs, errors.New("rate_limit.standard and rate_limit.subset must be positive"))
		}
		if c.RateLimit.Window <= 0 {
			errs = append(errs, errors.New("rate_limit.window must be positive"))
		}
	}
	for alias, dir := range c.Databases {
		if strings.TrimSpace(alias) == "" || strings.TrimSpace(dir) == "" {
			errs = append(errs, fmt.Errorf("databases: empty alias or path (%q=%q)", alias, dir))
		}
	}

	return errors.Join(errs...)
}

// LogLevel returns the parsed log level, defaulting to info.
func (c *Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
