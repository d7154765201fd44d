package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/gf3d/config.yaml",
	"/etc/gf3d/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values.
// Defaults are applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            5000,
			Environment:     "development",
			StrictStatus:    false,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Minute, // subset downloads can be large
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			SampleRatio:  1,
		},
		Subset: SubsetConfig{
			Command:      []string{"gf3d-subset"},
			ScratchDir:   "",
			Timeout:      10 * time.Minute,
			ExposeErrors: true,
		},
		RateLimit: RateLimitConfig{
			Disabled: false,
			Standard: 100,
			Subset:   30,
			Window:   time.Minute,
		},
		DocsURL: DefaultDocsURL,
	}
}

// Load loads configuration with layered sources:
//  1. Defaults
//  2. Config file (optional YAML)
//  3. Environment variables
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is like Load but reads the given config file, if not empty.
func LoadFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processCommand(k); err != nil {
		return nil, err
	}
	envDBs, err := envDatabases(k)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if len(envDBs) > 0 && cfg.Databases == nil {
		cfg.Databases = make(map[string]string, len(envDBs))
	}
	for alias, dir := range envDBs {
		cfg.Databases[alias] = dir
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// databasesEnvKey holds GFDB_DATABASES until it is parsed into a map.
const databasesEnvKey = "databases_env"

// processCommand splits a subset command given as a single string on whitespace.
func processCommand(k *koanf.Koanf) error {
	s, ok := k.Get("subset.command").(string)
	if !ok {
		return nil
	}
	if err := k.Set("subset.command", strings.Fields(s)); err != nil {
		return fmt.Errorf("failed to set subset.command: %w", err)
	}
	return nil
}

// envDatabases removes GFDB_DATABASES from k and parses it. The result is
// merged after unmarshalling because aliases may contain the key delimiter.
func envDatabases(k *koanf.Koanf) (map[string]string, error) {
	raw := k.String(databasesEnvKey)
	k.Delete(databasesEnvKey)
	if raw == "" {
		return nil, nil
	}
	return ParseDatabases(raw)
}

// ParseDatabases parses a comma-separated list of alias=path pairs.
func ParseDatabases(raw string) (map[string]string, error) {
	dbs := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		alias, dir, ok := strings.Cut(pair, "=")
		alias, dir = strings.TrimSpace(alias), strings.TrimSpace(dir)
		if !ok || alias == "" || dir == "" {
			return nil, fmt.Errorf("invalid database entry %q, want alias=/path", pair)
		}
		dbs[alias] = dir
	}
	return dbs, nil
}

// envTransformFunc maps environment variable names to config paths.
// Unknown variables are skipped.
func envTransformFunc(key string) string {
	envMappings := map[string]string{
		"app_port":                    "server.port",
		"app_env":                     "server.environment",
		"strict_status":               "server.strict_status",
		"http_read_timeout":           "server.read_timeout",
		"http_write_timeout":          "server.write_timeout",
		"http_idle_timeout":           "server.idle_timeout",
		"shutdown_timeout":            "server.shutdown_timeout",
		"log_level":                   "log.level",
		"otel_enabled":                "telemetry.enabled",
		"otel_exporter_otlp_endpoint": "telemetry.otlp_endpoint",
		"otel_traces_sampler_arg":     "telemetry.sample_ratio",
		"subset_command":              "subset.command",
		"subset_scratch_dir":          "subset.scratch_dir",
		"subset_timeout":              "subset.timeout",
		"subset_expose_errors":        "subset.expose_errors",
		"disable_rate_limit":          "rate_limit.disabled",
		"rate_limit_standard":         "rate_limit.standard",
		"rate_limit_subset":           "rate_limit.subset",
		"rate_limit_window":           "rate_limit.window",
		"docs_url":                    "docs_url",
		"gfdb_databases":              databasesEnvKey,
	}

	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
