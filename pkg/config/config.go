package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Backend BackendConfig `json:"backend" yaml:"backend"`
	Widget  WidgetConfig  `json:"widget" yaml:"widget"`
	WebChat WebChatConfig `json:"webchat" yaml:"webchat"`
	Log     LogConfig     `json:"log" yaml:"log"`
	mu      sync.RWMutex
}

// BackendConfig points the widget at the banking assistant API.
type BackendConfig struct {
	BaseURL        string  `json:"base_url" yaml:"base_url" env:"BANKCHAT_BACKEND_BASE_URL"`
	TimeoutSeconds int     `json:"timeout_seconds" yaml:"timeout_seconds" env:"BANKCHAT_BACKEND_TIMEOUT_SECONDS"`
	RateLimit      float64 `json:"rate_limit" yaml:"rate_limit" env:"BANKCHAT_BACKEND_RATE_LIMIT"` // requests per second, 0 disables
	RateBurst      int     `json:"rate_burst" yaml:"rate_burst" env:"BANKCHAT_BACKEND_RATE_BURST"`
}

type WidgetConfig struct {
	Locale          string `json:"locale" yaml:"locale" env:"BANKCHAT_WIDGET_LOCALE"`
	AuthEnabled     bool   `json:"auth_enabled" yaml:"auth_enabled" env:"BANKCHAT_WIDGET_AUTH_ENABLED"`
	FeedbackEnabled bool   `json:"feedback_enabled" yaml:"feedback_enabled" env:"BANKCHAT_WIDGET_FEEDBACK_ENABLED"`
	Markdown        string `json:"markdown" yaml:"markdown" env:"BANKCHAT_WIDGET_MARKDOWN"` // "lite" or "full"
	Welcome         string `json:"welcome,omitempty" yaml:"welcome,omitempty" env:"BANKCHAT_WIDGET_WELCOME"`
}

type WebChatConfig struct {
	Host string `json:"host" yaml:"host" env:"BANKCHAT_WEBCHAT_HOST"`
	Port int    `json:"port" yaml:"port" env:"BANKCHAT_WEBCHAT_PORT"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" env:"BANKCHAT_LOG_LEVEL"`
	Pretty bool   `json:"pretty" yaml:"pretty" env:"BANKCHAT_LOG_PRETTY"`
	File   string `json:"file,omitempty" yaml:"file,omitempty" env:"BANKCHAT_LOG_FILE"`
}

func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:        "http://localhost:5000",
			TimeoutSeconds: 60,
			RateLimit:      5,
			RateBurst:      10,
		},
		Widget: WidgetConfig{
			Locale:          "en",
			AuthEnabled:     true,
			FeedbackEnabled: true,
			Markdown:        "lite",
		},
		WebChat: WebChatConfig{
			Host: "127.0.0.1",
			Port: 18800,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads a JSON or YAML file (chosen by extension) over the
// defaults, then applies BANKCHAT_* environment overrides. A missing file is
// not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Support full config from env var (for containers)
	if cfgJSON := os.Getenv("BANKCHAT_CONFIG_JSON"); cfgJSON != "" {
		if err := json.Unmarshal([]byte(cfgJSON), cfg); err != nil {
			return nil, fmt.Errorf("parsing BANKCHAT_CONFIG_JSON: %w", err)
		}
		if err := env.Parse(cfg); err != nil {
			return nil, err
		}
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate rejects settings the widget cannot run with.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	switch c.Widget.Markdown {
	case "", "lite", "full":
	default:
		return fmt.Errorf("widget.markdown must be \"lite\" or \"full\", got %q", c.Widget.Markdown)
	}
	if c.WebChat.Port < 0 || c.WebChat.Port > 65535 {
		return fmt.Errorf("webchat.port out of range: %d", c.WebChat.Port)
	}
	return nil
}

// RequestTimeout returns the per-request deadline for backend calls.
func (c *Config) RequestTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Backend.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

func (c *Config) WebChatAddr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fmt.Sprintf("%s:%d", c.WebChat.Host, c.WebChat.Port)
}

// LogFilePath expands a leading ~ in the configured log file.
func (c *Config) LogFilePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Log.File)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
