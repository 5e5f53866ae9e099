// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults applied by LoadFromEnv when a variable is unset.
const (
	DefaultOutputSubpath    = ".quilt/athena"
	DefaultTemplateDir      = "."
	DefaultPollInterval     = time.Second
	DefaultMaxPollInterval  = 10 * time.Second
	DefaultPollMultiplier   = 1.5
	DefaultMaxPollAttempts  = 120
	DefaultTransientRetries = 5
	DefaultWaitTimeout      = 10 * time.Minute
	DefaultAPIRequestsPerS  = 5.0
	DefaultAPIBurst         = 5
	DefaultMaxResultRows    = 100
)

// WaitConfig controls how long the provisioner waits on each execution.
type WaitConfig struct {
	PollInterval     time.Duration // first delay between polls
	MaxPollInterval  time.Duration // backoff cap
	PollMultiplier   float64       // <= 1 keeps the interval fixed
	MaxPollAttempts  int           // polls per execution before giving up
	TransientRetries int           // consecutive transient poll errors tolerated
	Timeout          time.Duration // overall budget per execution, 0 = none
}

// Config holds the configuration for one provisioning run.
type Config struct {
	// AWS fields are optional; nil falls back to the SDK default chain.
	Region       *string
	KeyID        *string
	Secret       *string
	SessionToken *string

	AthenaEndpoint string // custom Athena endpoint (optional)
	WorkGroup      string // Athena workgroup (optional)
	Database       string // database statements run against (optional)
	DataCatalog    string // data catalog statements run against (optional)

	OutputBucket  string // results bucket; defaults to the provisioned bucket
	OutputSubpath string // prefix inside the results bucket (default ".quilt/athena")

	TemplateDir string // directory DDL templates are read from (default ".")
	CatalogFile string // YAML catalog definition (optional; built-in catalog when empty)

	Wait WaitConfig

	APIRequestsPerSecond float64 // Athena API pacing (default 5)
	APIBurst             int     // Athena API burst (default 5)
	MaxResultRows        int     // rows fetched when FetchResults is set (default 100)

	ParallelFamilies bool // provision independent object families concurrently
	FetchResults     bool // fetch and log results of create statements
	CheckOutput      bool // verify the output bucket before submitting (default true)

	LogLevel  string // log level: debug, info, warn, error (default "info")
	LogFormat string // log format: text (default) or json

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// HasStaticCredentials returns true if both static credential fields are set.
func (c *Config) HasStaticCredentials() bool {
	return c.KeyID != nil && c.Secret != nil
}

// NewLogger builds the process logger writing to stderr.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Wait.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.Wait.MaxPollInterval < c.Wait.PollInterval {
		return fmt.Errorf("POLL_MAX_INTERVAL (%s) must not be below POLL_INTERVAL (%s)",
			c.Wait.MaxPollInterval, c.Wait.PollInterval)
	}
	if c.Wait.MaxPollAttempts < 1 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS must be at least 1")
	}
	if c.Wait.TransientRetries < 0 {
		return fmt.Errorf("POLL_TRANSIENT_RETRIES must not be negative")
	}
	if c.Wait.Timeout < 0 {
		return fmt.Errorf("WAIT_TIMEOUT must not be negative")
	}
	if c.LogFormat != "" && !strings.EqualFold(c.LogFormat, "text") && !strings.EqualFold(c.LogFormat, "json") {
		return fmt.Errorf("unsupported LOG_FORMAT %q: use 'text' or 'json'", c.LogFormat)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// AWS variables are optional; the SDK default credential chain applies.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		AthenaEndpoint:   os.Getenv("ATHENA_ENDPOINT"),
		WorkGroup:        os.Getenv("ATHENA_WORKGROUP"),
		Database:         os.Getenv("ATHENA_DATABASE"),
		DataCatalog:      os.Getenv("ATHENA_CATALOG"),
		OutputBucket:     os.Getenv("OUTPUT_BUCKET"),
		OutputSubpath:    os.Getenv("OUTPUT_SUBPATH"),
		TemplateDir:      os.Getenv("TEMPLATE_DIR"),
		CatalogFile:      os.Getenv("CATALOG_FILE"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		LogFormat:        os.Getenv("LOG_FORMAT"),
		ParallelFamilies: parseBoolEnvDefault("PARALLEL_FAMILIES", false),
		FetchResults:     parseBoolEnvDefault("FETCH_RESULTS", false),
		CheckOutput:      parseBoolEnvDefault("CHECK_OUTPUT", true),
	}

	// AWS fields are optional, only set if present
	if v := firstEnv("AWS_REGION", "REGION"); v != "" {
		cfg.Region = &v
	}
	if v := os.Getenv("KEY_ID"); v != "" {
		cfg.KeyID = &v
	}
	if v := os.Getenv("SECRET"); v != "" {
		cfg.Secret = &v
	}
	if v := os.Getenv("SESSION_TOKEN"); v != "" {
		cfg.SessionToken = &v
	}

	// Wait policy
	cfg.Wait.PollInterval = cfg.durationEnv("POLL_INTERVAL")
	cfg.Wait.MaxPollInterval = cfg.durationEnv("POLL_MAX_INTERVAL")
	cfg.Wait.Timeout = cfg.durationEnv("WAIT_TIMEOUT")
	cfg.Wait.PollMultiplier = cfg.floatEnv("POLL_MULTIPLIER")
	cfg.Wait.MaxPollAttempts = cfg.intEnv("POLL_MAX_ATTEMPTS")
	cfg.Wait.TransientRetries = -1
	if os.Getenv("POLL_TRANSIENT_RETRIES") != "" {
		cfg.Wait.TransientRetries = cfg.intEnv("POLL_TRANSIENT_RETRIES")
	}

	// API pacing
	cfg.APIRequestsPerSecond = cfg.floatEnv("ATHENA_RPS")
	cfg.APIBurst = cfg.intEnv("ATHENA_BURST")
	cfg.MaxResultRows = cfg.intEnv("MAX_RESULT_ROWS")

	if (cfg.KeyID == nil) != (cfg.Secret == nil) {
		cfg.Warnings = append(cfg.Warnings, "only one of KEY_ID/SECRET is set, falling back to the default AWS credential chain")
		cfg.KeyID, cfg.Secret = nil, nil
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with defaults. It is safe to call
// again after flags have overridden fields.
func (c *Config) ApplyDefaults() {
	if c.OutputSubpath == "" {
		c.OutputSubpath = DefaultOutputSubpath
	}
	if c.TemplateDir == "" {
		c.TemplateDir = DefaultTemplateDir
	}
	if c.Wait.PollInterval == 0 {
		c.Wait.PollInterval = DefaultPollInterval
	}
	if c.Wait.MaxPollInterval == 0 {
		c.Wait.MaxPollInterval = DefaultMaxPollInterval
		if c.Wait.MaxPollInterval < c.Wait.PollInterval {
			c.Wait.MaxPollInterval = c.Wait.PollInterval
		}
	}
	if c.Wait.PollMultiplier == 0 {
		c.Wait.PollMultiplier = DefaultPollMultiplier
	}
	if c.Wait.MaxPollAttempts == 0 {
		c.Wait.MaxPollAttempts = DefaultMaxPollAttempts
	}
	if c.Wait.TransientRetries < 0 {
		c.Wait.TransientRetries = DefaultTransientRetries
	}
	if c.Wait.Timeout == 0 {
		c.Wait.Timeout = DefaultWaitTimeout
	}
	if c.APIRequestsPerSecond == 0 {
		c.APIRequestsPerSecond = DefaultAPIRequestsPerS
	}
	if c.APIBurst == 0 {
		c.APIBurst = DefaultAPIBurst
	}
	if c.MaxResultRows == 0 {
		c.MaxResultRows = DefaultMaxResultRows
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

func (c *Config) durationEnv(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		c.Warnings = append(c.Warnings, fmt.Sprintf("ignoring %s=%q: %v", key, v, err))
		return 0
	}
	return d
}

func (c *Config) intEnv(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		c.Warnings = append(c.Warnings, fmt.Sprintf("ignoring %s=%q: not an integer", key, v))
		return 0
	}
	return n
}

func (c *Config) floatEnv(key string) float64 {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		c.Warnings = append(c.Warnings, fmt.Sprintf("ignoring %s=%q: not a number", key, v))
		return 0
	}
	return f
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
