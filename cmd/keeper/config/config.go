// Package config provides configuration parsing and management for the keeper.
//
// It handles command-line flags and environment variables, with flags taking
// precedence over environment variables, and loads an optional .env file
// before either is read. The Config struct contains all runtime
// configuration for the keeper including:
//   - Training parameters (seed, score steepness, exclusion window/stations)
//   - Collection settings (adapter config, window, interval)
//   - Storage backend settings (memory or redis)
//   - Logging configuration (level, format)
//   - TLS configuration (cert, key, CA files)
//
// Supported configuration sources (in order of precedence):
//  1. Command-line flags
//  2. Environment variables (including those loaded from .env)
//  3. Default values
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/veloguard/veloguard/pkg/tls"
)

// Defaults for the historical filters used during training. The exclusion
// window covers the 2020 service interruption; the excluded stations are
// maintenance docks whose idle behavior is not informative.
const (
	defaultExclusionStart   = "2020-03-17"
	defaultExclusionEnd     = "2020-05-13"
	defaultExcludedStations = "244,249,250,138"
)

// Config holds all keeper configuration.
type Config struct {
	Listen    string
	LogFormat string
	LogLevel  string

	Storage       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
	TLS           tls.Config

	Adapter       string
	AdapterConfig map[string]string

	Seed             int64
	Steepness        float64
	ExclusionStart   time.Time
	ExclusionEnd     time.Time
	ExcludedStations []int

	Interval time.Duration
	Window   time.Duration
}

// ParseFlags parses command-line flags and environment variables into a
// Config. A .env file in the working directory is loaded first if present;
// real environment variables win over .env entries, and flags win over both.
func ParseFlags() *Config {
	_ = godotenv.Load()

	cfg := &Config{}

	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8080"), "HTTP listen address")

	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "memory"), "Storage backend: memory or redis")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	flag.DurationVar(&cfg.RedisTTL, "redis-ttl", getEnvDuration("REDIS_TTL", 24*time.Hour), "Redis model artifact TTL")

	flag.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Enable TLS for HTTP server")
	flag.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS certificate file")
	flag.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS private key file")
	flag.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA certificate file for client verification")

	flag.StringVar(&cfg.Adapter, "adapter", getEnv("ADAPTER", "http"), "Adapter type: http")

	flag.Int64Var(&cfg.Seed, "seed", getEnvInt64("SEED", 2020), "Random seed for model training")
	flag.Float64Var(&cfg.Steepness, "steepness", getEnvFloat("STEEPNESS", 20.0), "Logistic steepness for anomaly scores")

	exclusionStart := flag.String("exclusion-start", getEnv("EXCLUSION_START", defaultExclusionStart), "Start date (YYYY-MM-DD) of the training exclusion window, empty to disable")
	exclusionEnd := flag.String("exclusion-end", getEnv("EXCLUSION_END", defaultExclusionEnd), "End date (YYYY-MM-DD) of the training exclusion window, empty to disable")
	excludedStations := flag.String("excluded-stations", getEnv("EXCLUDED_STATIONS", defaultExcludedStations), "Comma-separated station IDs excluded from training")

	flag.DurationVar(&cfg.Interval, "interval", getEnvDuration("INTERVAL", 10*time.Minute), "Training loop interval")
	flag.DurationVar(&cfg.Window, "window", getEnvDuration("WINDOW", 60*24*time.Hour), "Historical window collected for training")

	flag.Parse()

	cfg.AdapterConfig = parseAdapterConfig()

	var err error
	if cfg.ExclusionStart, cfg.ExclusionEnd, err = parseExclusionWindow(*exclusionStart, *exclusionEnd); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.ExcludedStations, err = parseStationList(*excludedStations); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if cfg.Storage != "memory" && cfg.Storage != "redis" {
		fmt.Fprintf(os.Stderr, "Error: invalid storage %q (must be memory or redis)\n", cfg.Storage)
		os.Exit(1)
	}
	if cfg.Adapter != "http" {
		fmt.Fprintf(os.Stderr, "Error: invalid adapter %q (must be http)\n", cfg.Adapter)
		os.Exit(1)
	}
	if err := cfg.TLS.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	return cfg
}

func parseExclusionWindow(start, end string) (time.Time, time.Time, error) {
	if start == "" && end == "" {
		return time.Time{}, time.Time{}, nil
	}
	if start == "" || end == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("exclusion window needs both start and end (got %q, %q)", start, end)
	}

	s, err := time.Parse("2006-01-02", start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid exclusion-start %q: %w", start, err)
	}
	e, err := time.Parse("2006-01-02", end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid exclusion-end %q: %w", end, err)
	}
	if e.Before(s) {
		return time.Time{}, time.Time{}, fmt.Errorf("exclusion-end %q before exclusion-start %q", end, start)
	}
	return s, e, nil
}

func parseStationList(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid station id %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseAdapterConfig parses ADAPTER_* environment variables into a generic
// configuration map. Adapter-specific configuration is provided via
// environment variables with the ADAPTER_ prefix, for example ADAPTER_URL
// or ADAPTER_STATION_PATH. Names are converted to camelCase for the map
// keys (ADAPTER_STATION_PATH becomes stationPath).
func parseAdapterConfig() map[string]string {
	config := make(map[string]string)

	for _, env := range os.Environ() {
		if len(env) > 8 && env[:8] == "ADAPTER_" {
			parts := splitEnv(env)
			if len(parts) == 2 {
				key := toLowerCamelCase(parts[0][8:])
				config[key] = parts[1]
			}
		}
	}

	return config
}

func splitEnv(env string) []string {
	for i := 0; i < len(env); i++ {
		if env[i] == '=' {
			return []string{env[:i], env[i+1:]}
		}
	}
	return []string{env}
}

func toLowerCamelCase(s string) string {
	if s == "" {
		return s
	}
	parts := []rune(s)
	result := make([]rune, 0, len(parts))
	nextUpper := false
	for i, r := range parts {
		if r == '_' {
			nextUpper = true
			continue
		}
		if i == 0 {
			result = append(result, toLower(r))
		} else if nextUpper {
			result = append(result, r)
			nextUpper = false
		} else {
			result = append(result, toLower(r))
		}
	}
	return string(result)
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + 32
	}
	return r
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
