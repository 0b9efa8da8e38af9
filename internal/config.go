package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// EnvBaseURL overrides the configured base URL
	EnvBaseURL = "CHEF_CHAT_BASE_URL"

	configFileName = "config.yaml"
)

// Endpoints holds the backend paths, relative to BaseURL
type Endpoints struct {
	Stream           string `yaml:"stream"`
	OnboardingStream string `yaml:"onboarding_stream"`
	GuestStream      string `yaml:"guest_stream"`
	GuestNew         string `yaml:"guest_new"`
	Reset            string `yaml:"reset"`
	GuestReset       string `yaml:"guest_reset"`
	Refresh          string `yaml:"refresh"`
	History          string `yaml:"history"` // {thread_id} is substituted
}

// Config is the client configuration loaded from config.yaml
type Config struct {
	BaseURL        string        `yaml:"base_url"`
	Endpoints      Endpoints     `yaml:"endpoints"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	UserAgent      string        `yaml:"user_agent,omitempty"`
}

// DefaultConfig returns the configuration used when no file exists
func DefaultConfig() *Config {
	return &Config{
		BaseURL: "http://localhost:8000",
		Endpoints: Endpoints{
			Stream:           "/customer_dashboard/api/assistant/stream-message/",
			OnboardingStream: "/customer_dashboard/api/assistant/onboarding/stream-message/",
			GuestStream:      "/customer_dashboard/api/assistant/guest/stream-message/",
			GuestNew:         "/customer_dashboard/api/assistant/onboarding/new-chat/",
			Reset:            "/customer_dashboard/api/assistant/new-chat/",
			GuestReset:       "/customer_dashboard/api/assistant/onboarding/new-chat/",
			Refresh:          "/auth/api/token/refresh/",
			History:          "/customer_dashboard/api/thread_detail/{thread_id}/",
		},
		IdleTimeout:    90 * time.Second,
		RequestTimeout: 30 * time.Second,
		UserAgent:      "chef-chat/1.0",
	}
}

// ConfigPath returns the config file location inside dataDir
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, configFileName)
}

// LoadConfig reads path over the defaults. A missing file is not an error.
// The CHEF_CHAT_BASE_URL environment variable wins over the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &ConfigError{Path: path, Err: fmt.Errorf("failed to unmarshal config: %w", err)}
		}
	case errors.Is(err, os.ErrNotExist):
		LogDebug("No config at %s, using defaults", path)
	default:
		return nil, &ConfigError{Path: path, Err: err}
	}

	if env := strings.TrimSpace(os.Getenv(EnvBaseURL)); env != "" {
		cfg.BaseURL = env
	}

	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML, creating the directory when needed
func SaveConfig(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return &ConfigError{Path: path, Err: fmt.Errorf("failed to marshal config: %w", err)}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	return nil
}

// Validate checks that the base URL is absolute and the stream endpoints are set
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be http or https, got %q", c.BaseURL)
	}
	if c.Endpoints.Stream == "" || c.Endpoints.OnboardingStream == "" {
		return fmt.Errorf("stream and onboarding_stream endpoints are required")
	}
	if c.IdleTimeout < 0 || c.RequestTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

// URL joins an endpoint path onto the base URL. Empty paths stay empty so
// optional endpoints can be disabled.
func (c *Config) URL(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimSuffix(c.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

// HistoryURL returns the thread history URL for threadID
func (c *Config) HistoryURL(threadID string) string {
	path := strings.ReplaceAll(c.Endpoints.History, "{thread_id}", url.PathEscape(threadID))
	return c.URL(path)
}
