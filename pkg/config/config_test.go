package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.BaseURL != "http://localhost:8000/api" {
		t.Errorf("expected default base url, got %s", cfg.BaseURL)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("expected request timeout 30s, got %s", cfg.RequestTimeout)
	}
	if cfg.RuleRunTimeout != 30*time.Minute {
		t.Errorf("expected rule run timeout 30m, got %s", cfg.RuleRunTimeout)
	}
	if cfg.SimulatorRunTimeout != 10*time.Minute {
		t.Errorf("expected simulator run timeout 10m, got %s", cfg.SimulatorRunTimeout)
	}
	if cfg.BindKey != "cn_stocks" {
		t.Errorf("expected bind key 'cn_stocks', got %s", cfg.BindKey)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.LogLevel)
	}
}

func TestConfigValidate_Valid(t *testing.T) {
	cfg := DefaultConfig()
	result := cfg.Validate()

	if !result.IsValid() {
		t.Errorf("default config should be valid, got errors: %v", result.Errors)
	}
	if result.HasWarnings() {
		t.Errorf("default config should have no warnings, got: %v", result.Warnings)
	}
}

func TestConfigValidate_InvalidBaseURL(t *testing.T) {
	tests := []string{"", "localhost:8000", "ftp://example.com/api", "/api"}

	for _, raw := range tests {
		cfg := DefaultConfig()
		cfg.BaseURL = raw

		result := cfg.Validate()
		if !hasField(result.Errors, "base_url") {
			t.Errorf("expected base_url error for %q", raw)
		}
	}
}

func TestConfigValidate_NonPositiveTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SimulatorRunTimeout = 0

	result := cfg.Validate()

	if result.IsValid() {
		t.Error("config with zero simulator timeout should be invalid")
	}
	if !hasField(result.Errors, "simulator_run_timeout") {
		t.Error("expected simulator_run_timeout validation error")
	}
}

func TestConfigValidate_ShortRunTimeoutWarns(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RuleRunTimeout = 10 * time.Second

	result := cfg.Validate()

	if !result.IsValid() {
		t.Errorf("short rule timeout is only a warning, got errors: %v", result.Errors)
	}
	if !hasField(result.Warnings, "rule_run_timeout") {
		t.Error("expected rule_run_timeout warning")
	}
}

func TestConfigValidate_InvalidLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "verbose"

	result := cfg.Validate()

	if !hasField(result.Errors, "log_level") {
		t.Error("expected log_level validation error")
	}
}

func TestConfigValidate_TelegramRequiresCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Telegram.Enabled = true

	result := cfg.Validate()
	if !hasField(result.Errors, "telegram") {
		t.Error("expected telegram validation error")
	}

	cfg.Telegram.BotToken = "123:abc"
	cfg.Telegram.ChatID = "42"
	result = cfg.Validate()
	if !result.IsValid() {
		t.Errorf("expected valid telegram config, got errors: %v", result.Errors)
	}
}

func TestConfigSet(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Set("base_url", "http://10.0.0.5:8000/api/"); err != nil {
		t.Fatalf("set base_url: %v", err)
	}
	if cfg.BaseURL != "http://10.0.0.5:8000/api" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.BaseURL)
	}

	if err := cfg.Set("rule_run_timeout", "45m"); err != nil {
		t.Fatalf("set rule_run_timeout: %v", err)
	}
	if cfg.RuleRunTimeout != 45*time.Minute {
		t.Errorf("expected 45m, got %s", cfg.RuleRunTimeout)
	}

	if err := cfg.Set("tui", "false"); err != nil {
		t.Fatalf("set tui: %v", err)
	}
	if cfg.TUI {
		t.Error("expected tui disabled")
	}

	if err := cfg.Set("page_size", "many"); err == nil {
		t.Error("expected error for non-numeric page_size")
	}
	if err := cfg.Set("model", "sonnet"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"STOCKCTL_BASE_URL":         "https://stocks.example.com/api",
		"STOCKCTL_BIND_KEY":         "us_stocks",
		"STOCKCTL_TELEGRAM_CHAT_ID": "99",
		"STOCKCTL_REQUEST_TIMEOUT":  "5s",
		"UNRELATED_REQUEST_TIMEOUT": "1h",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("apply env: %v", err)
	}

	if cfg.BaseURL != "https://stocks.example.com/api" {
		t.Errorf("unexpected base url %s", cfg.BaseURL)
	}
	if cfg.BindKey != "us_stocks" {
		t.Errorf("unexpected bind key %s", cfg.BindKey)
	}
	if cfg.Telegram.ChatID != "99" {
		t.Errorf("unexpected chat id %s", cfg.Telegram.ChatID)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("unexpected request timeout %s", cfg.RequestTimeout)
	}
}

func TestApplyEnv_BadValue(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(func(key string) (string, bool) {
		if key == "STOCKCTL_NO_COLOR" {
			return "sometimes", true
		}
		return "", false
	})

	if err == nil || !strings.Contains(err.Error(), "STOCKCTL_NO_COLOR") {
		t.Errorf("expected error naming the variable, got %v", err)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "base_url: http://backend:8000/api\nrule_run_timeout: 1h\npage_size: 20\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("STOCKCTL_PAGE_SIZE", "100")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.BaseURL != "http://backend:8000/api" {
		t.Errorf("expected base url from file, got %s", cfg.BaseURL)
	}
	if cfg.RuleRunTimeout != time.Hour {
		t.Errorf("expected 1h from file, got %s", cfg.RuleRunTimeout)
	}
	if cfg.PageSize != 100 {
		t.Errorf("expected env to override page size, got %d", cfg.PageSize)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("expected default request timeout, got %s", cfg.RequestTimeout)
	}
	if cfg.Path() != path {
		t.Errorf("expected path %s, got %s", path, cfg.Path())
	}
}

func TestLoadFile_IgnoresEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("page_size: 20\n"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("STOCKCTL_PAGE_SIZE", "100")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PageSize != 20 {
		t.Errorf("expected page size from file, got %d", cfg.PageSize)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if cfg.BindKey != "cn_stocks" {
		t.Errorf("expected defaults, got bind key %s", cfg.BindKey)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("base_url: [unterminated\n"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.BindKey = "hk_stocks"
	cfg.SimulatorRunTimeout = 20 * time.Minute
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.BindKey != "hk_stocks" {
		t.Errorf("expected hk_stocks, got %s", loaded.BindKey)
	}
	if loaded.SimulatorRunTimeout != 20*time.Minute {
		t.Errorf("expected 20m, got %s", loaded.SimulatorRunTimeout)
	}
}

func hasField(errs []ValidationError, field string) bool {
	for _, err := range errs {
		if err.Field == field {
			return true
		}
	}
	return false
}
