package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// Backend
	BaseURL string `yaml:"base_url"`
	BindKey string `yaml:"bind_key"` // database bind key sent with rule scoped reads

	// Per-call timeouts; streams never time out
	RequestTimeout      time.Duration `yaml:"request_timeout"`
	RuleRunTimeout      time.Duration `yaml:"rule_run_timeout"`
	SimulatorRunTimeout time.Duration `yaml:"simulator_run_timeout"`

	// Listing
	PageSize int `yaml:"page_size"`

	// Logging
	LogLevel string `yaml:"log_level"` // debug, info, warn, error
	LogFile  string `yaml:"log_file"`

	// UI settings
	NoColor bool `yaml:"no_color"`
	TUI     bool `yaml:"tui"`

	Telegram TelegramConfig `yaml:"telegram"`

	// Internal
	configPath string
}

// TelegramConfig forwards notifications to a Telegram chat
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
	MinLevel string `yaml:"min_level"` // info, success, error
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		BaseURL:             "http://localhost:8000/api",
		BindKey:             "cn_stocks",
		RequestTimeout:      30 * time.Second,
		RuleRunTimeout:      30 * time.Minute,
		SimulatorRunTimeout: 10 * time.Minute,
		PageSize:            50,
		LogLevel:            "info",
		TUI:                 true,
		Telegram: TelegramConfig{
			MinLevel: "error",
		},
	}
}

// Load builds the configuration from defaults, the yaml file at path (a
// missing file is not an error), a .env file in the working directory and
// STOCKCTL_* environment variables, in that order.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
		path = p
	}
	cfg.configPath = path

	if err := cfg.loadFromFile(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// .env only seeds variables that are not already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile builds the configuration from defaults and the yaml file at path
// only. Use it to edit the file without persisting environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
		path = p
	}
	cfg.configPath = path

	if err := cfg.loadFromFile(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// loadFromFile loads configuration from a yaml file
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return nil
}

// Path returns the file the configuration was loaded from
func (c *Config) Path() string {
	return c.configPath
}

// envKeys maps environment variable suffixes to config keys
var envKeys = map[string]string{
	"BASE_URL":              "base_url",
	"BIND_KEY":              "bind_key",
	"REQUEST_TIMEOUT":       "request_timeout",
	"RULE_RUN_TIMEOUT":      "rule_run_timeout",
	"SIMULATOR_RUN_TIMEOUT": "simulator_run_timeout",
	"PAGE_SIZE":             "page_size",
	"LOG_LEVEL":             "log_level",
	"LOG_FILE":              "log_file",
	"NO_COLOR":              "no_color",
	"TUI":                   "tui",
	"TELEGRAM_ENABLED":      "telegram.enabled",
	"TELEGRAM_BOT_TOKEN":    "telegram.bot_token",
	"TELEGRAM_CHAT_ID":      "telegram.chat_id",
	"TELEGRAM_MIN_LEVEL":    "telegram.min_level",
}

// ApplyEnv overrides fields from STOCKCTL_* variables found through lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for suffix, key := range envKeys {
		value, ok := lookup(EnvPrefix + suffix)
		if !ok {
			continue
		}
		if err := c.Set(key, value); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, suffix, err)
		}
	}
	return nil
}

// Set sets a configuration value from its string form
func (c *Config) Set(key, value string) error {
	value = strings.TrimSpace(value)

	switch key {
	case "base_url":
		c.BaseURL = strings.TrimRight(value, "/")
	case "bind_key":
		c.BindKey = value
	case "request_timeout":
		return setDuration(&c.RequestTimeout, value)
	case "rule_run_timeout":
		return setDuration(&c.RuleRunTimeout, value)
	case "simulator_run_timeout":
		return setDuration(&c.SimulatorRunTimeout, value)
	case "page_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("page_size: %w", err)
		}
		c.PageSize = n
	case "log_level":
		c.LogLevel = strings.ToLower(value)
	case "log_file":
		c.LogFile = value
	case "no_color":
		return setBool(&c.NoColor, value)
	case "tui":
		return setBool(&c.TUI, value)
	case "telegram.enabled":
		return setBool(&c.Telegram.Enabled, value)
	case "telegram.bot_token":
		c.Telegram.BotToken = value
	case "telegram.chat_id":
		c.Telegram.ChatID = value
	case "telegram.min_level":
		c.Telegram.MinLevel = strings.ToLower(value)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func setDuration(dst *time.Duration, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func setBool(dst *bool, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

// Save writes the configuration as yaml to path, or to the path it was
// loaded from when path is empty
func (c *Config) Save(path string) error {
	if path == "" {
		path = c.configPath
	}
	if path == "" {
		return errors.New("no config path")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error: %s - %s (value: %v)", e.Field, e.Message, e.Value)
}

// ValidationResult contains all validation errors
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no errors
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// HasWarnings returns true if there are warnings
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Validate validates the configuration and returns validation results
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{
		Errors:   make([]ValidationError, 0),
		Warnings: make([]ValidationError, 0),
	}

	// Validate base_url
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "base_url",
			Value:   c.BaseURL,
			Message: "must be an absolute http(s) URL",
		})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "base_url",
			Value:   c.BaseURL,
			Message: "scheme must be http or https",
		})
	}

	// Validate timeouts
	for _, tc := range []struct {
		field string
		value time.Duration
	}{
		{"request_timeout", c.RequestTimeout},
		{"rule_run_timeout", c.RuleRunTimeout},
		{"simulator_run_timeout", c.SimulatorRunTimeout},
	} {
		if tc.value <= 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   tc.field,
				Value:   tc.value,
				Message: "must be positive",
			})
		}
	}
	if c.RuleRunTimeout > 0 && c.RuleRunTimeout < c.RequestTimeout {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "rule_run_timeout",
			Value:   c.RuleRunTimeout,
			Message: "shorter than request_timeout, long agent runs will be cut off",
		})
	}

	// Validate page_size
	if c.PageSize <= 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "page_size",
			Value:   c.PageSize,
			Message: "must be positive",
		})
	}
	if c.PageSize > 1000 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "page_size",
			Value:   c.PageSize,
			Message: "backend caps pages at 1000",
		})
	}

	// Validate bind_key
	if c.BindKey == "" {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "bind_key",
			Value:   c.BindKey,
			Message: "empty, backend default database will be used",
		})
	}

	// Validate log_level
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "": true,
	}
	if !validLogLevels[c.LogLevel] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "log_level",
			Value:   c.LogLevel,
			Message: "must be one of: debug, info, warn, error",
		})
	}

	// Validate telegram
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" || c.Telegram.ChatID == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "telegram",
				Value:   c.Telegram.ChatID,
				Message: "bot_token and chat_id are required when enabled",
			})
		}
		validLevels := map[string]bool{"info": true, "success": true, "error": true, "": true}
		if !validLevels[c.Telegram.MinLevel] {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "telegram.min_level",
				Value:   c.Telegram.MinLevel,
				Message: "must be one of: info, success, error",
			})
		}
	}

	return result
}

// ValidateAndPrint validates and prints errors/warnings to w
func (c *Config) ValidateAndPrint(w io.Writer) bool {
	result := c.Validate()

	if len(result.Errors) > 0 {
		fmt.Fprintf(w, "Configuration errors:\n")
		for _, err := range result.Errors {
			fmt.Fprintf(w, "  ✗ %s: %s (value: %v)\n", err.Field, err.Message, err.Value)
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Fprintf(w, "Configuration warnings:\n")
		for _, warn := range result.Warnings {
			fmt.Fprintf(w, "  ⚠ %s: %s (value: %v)\n", warn.Field, warn.Message, warn.Value)
		}
	}

	return result.IsValid()
}
