package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidModes lists the supported content modes
var ValidModes = []string{"post", "like", "mix", "music", "allmix"}

// ModeCounts holds the per-mode maximum item count (0 = unlimited)
type ModeCounts struct {
	Post   int `yaml:"post"`
	Like   int `yaml:"like"`
	Mix    int `yaml:"mix"`
	Music  int `yaml:"music"`
	AllMix int `yaml:"allmix"`
}

// For returns the count cap for a mode name
func (m ModeCounts) For(mode string) int {
	switch mode {
	case "post":
		return m.Post
	case "like":
		return m.Like
	case "mix":
		return m.Mix
	case "music":
		return m.Music
	case "allmix":
		return m.AllMix
	default:
		return 0
	}
}

// ModeFlags holds per-mode boolean switches (incremental mode)
type ModeFlags struct {
	Post  bool `yaml:"post"`
	Like  bool `yaml:"like"`
	Mix   bool `yaml:"mix"`
	Music bool `yaml:"music"`
}

// For returns the flag for a mode name
func (m ModeFlags) For(mode string) bool {
	switch mode {
	case "post":
		return m.Post
	case "like":
		return m.Like
	case "mix":
		return m.Mix
	case "music":
		return m.Music
	default:
		return false
	}
}

// Config holds application configuration
type Config struct {
	// Output and content selection
	Path  string   `yaml:"path"`
	Links []string `yaml:"link"`
	Modes []string `yaml:"mode"`

	Number   ModeCounts `yaml:"number"`
	Increase ModeFlags  `yaml:"increase"`

	// Incremental early stop assumes newest-first feeds. Set false for
	// feeds that violate that ordering; dedup still applies either way.
	IncreaseStrict bool `yaml:"increase_strict"`

	// Inclusive time window, YYYY-MM-DD. "now" is accepted for EndTime.
	StartTime string `yaml:"start_time"`
	EndTime   string `yaml:"end_time"`

	Threads    int     `yaml:"thread"`
	RetryTimes int     `yaml:"retry_times"`
	Interval   float64 `yaml:"interval"` // seconds between listing requests

	// Optional asset toggles
	Cover  bool `yaml:"cover"`
	Music  bool `yaml:"music"`
	Avatar bool `yaml:"avatar"`
	JSON   bool `yaml:"json"`

	Database bool `yaml:"database"`

	CookiesFile string `yaml:"cookies"`
	CookieText  string `yaml:"cookie"`
	ProxyURL    string `yaml:"proxy"`

	TimeoutSeconds int `yaml:"timeout"`

	// Logging configuration
	LogLevel    string `yaml:"log_level"`
	EnableDebug bool   `yaml:"debug"`
	QuietMode   bool   `yaml:"quiet"`
	LogFile     string `yaml:"log_file"`

	// Parsed time window, populated by Validate
	startAt time.Time
	endAt   time.Time
	hasFrom bool
	hasTo   bool
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Path:           "./Downloaded",
		Modes:          []string{"post"},
		IncreaseStrict: true,
		Threads:        5,
		RetryTimes:     3,
		Interval:       1.0,
		Cover:          false,
		Music:          false,
		Avatar:         false,
		JSON:           false,
		Database:       true,
		TimeoutSeconds: 30,

		// Logging defaults
		LogLevel:    "info",
		EnableDebug: false,
		QuietMode:   false,
		LogFile:     "", // Empty means stderr
	}
}

// LoadConfigFile reads a YAML config file over the defaults
func LoadConfigFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewValidationError("config", "failed to read config file").
			WithContext("file", path).
			WithContext("error", err.Error())
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, NewValidationError("config", "failed to parse config file").
			WithSuggestion("Check the YAML syntax of the config file").
			WithContext("file", path).
			WithContext("error", err.Error())
	}
	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() {
	if threads := os.Getenv("DYFETCH_THREADS"); threads != "" {
		if t, err := strconv.Atoi(threads); err == nil && t > 0 && t <= 32 {
			c.Threads = t
		}
	}

	if timeout := os.Getenv("DYFETCH_TIMEOUT"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil && t > 0 {
			c.TimeoutSeconds = t
		}
	}

	if cookies := os.Getenv("DYFETCH_COOKIES"); cookies != "" {
		c.CookiesFile = cookies
	}

	if proxy := os.Getenv("DYFETCH_PROXY"); proxy != "" {
		c.ProxyURL = proxy
	}

	// Load logging configuration from environment
	if logLevel := os.Getenv("DYFETCH_LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}

	if debug := os.Getenv("DYFETCH_DEBUG"); debug != "" {
		c.EnableDebug = debug == "true" || debug == "1"
	}

	if quiet := os.Getenv("DYFETCH_QUIET"); quiet != "" {
		c.QuietMode = quiet == "true" || quiet == "1"
	}

	if logFile := os.Getenv("DYFETCH_LOG_FILE"); logFile != "" {
		c.LogFile = logFile
	}
}

// GetEnvWithDefault returns environment variable value or default
func GetEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Validate validates the configuration values and parses the time window
func (c *Config) Validate() error {
	if c.Threads < 1 || c.Threads > 32 {
		return NewValidationErrorWithValue("thread", "must be between 1 and 32", c.Threads)
	}

	if c.RetryTimes < 1 {
		return NewValidationErrorWithValue("retry_times", "must be >= 1", c.RetryTimes).
			WithSuggestion("Retry count of at least 1 is required; 3 is the usual value")
	}

	if c.Interval < 0 {
		return NewValidationErrorWithValue("interval", "must be >= 0", c.Interval)
	}

	if c.TimeoutSeconds < 1 {
		return NewValidationErrorWithValue("timeout", "must be > 0", c.TimeoutSeconds)
	}

	if len(c.Modes) == 0 {
		return NewValidationError("mode", "at least one mode is required").
			WithSuggestion(fmt.Sprintf("Valid modes: %s", strings.Join(ValidModes, ", ")))
	}
	for _, mode := range c.Modes {
		if !isValidMode(mode) {
			return NewValidationErrorWithValue("mode", "unknown mode", mode).
				WithSuggestion(fmt.Sprintf("Valid modes: %s", strings.Join(ValidModes, ", ")))
		}
	}

	if c.StartTime != "" {
		t, err := time.ParseInLocation("2006-01-02", c.StartTime, time.Local)
		if err != nil {
			return NewValidationErrorWithValue("start_time", "must be YYYY-MM-DD", c.StartTime)
		}
		c.startAt = t
		c.hasFrom = true
	}

	if c.EndTime != "" {
		if strings.EqualFold(c.EndTime, "now") {
			c.endAt = time.Now()
		} else {
			t, err := time.ParseInLocation("2006-01-02", c.EndTime, time.Local)
			if err != nil {
				return NewValidationErrorWithValue("end_time", "must be YYYY-MM-DD or 'now'", c.EndTime)
			}
			// Inclusive end of day
			c.endAt = t.Add(24*time.Hour - time.Second)
		}
		c.hasTo = true
	}

	if c.hasFrom && c.hasTo && c.endAt.Before(c.startAt) {
		return NewValidationError("end_time", "end_time is before start_time")
	}

	return nil
}

// TimeWindow returns the parsed inclusive filter window. A zero bound
// with ok=false means that side is unbounded.
func (c *Config) TimeWindow() (from time.Time, hasFrom bool, to time.Time, hasTo bool) {
	return c.startAt, c.hasFrom, c.endAt, c.hasTo
}

func isValidMode(mode string) bool {
	for _, m := range ValidModes {
		if m == mode {
			return true
		}
	}
	return false
}
