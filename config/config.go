// Package config provides configuration management for the application.
//
// Values are layered: built-in defaults, then an optional YAML file
// (with ${VAR} and ${VAR:-default} placeholders), then the process
// environment (a .env file in the working directory is loaded first).
// Azure connection values are read here but validated lazily by the
// settings package so a missing endpoint fails a request, not startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variable names. Where two names exist the first is the
// recommended one and the second is the legacy Azure OpenAI name.
const (
	EnvEndpoint           = "AZURE_AI_INFERENCE_ENDPOINT"
	EnvEndpointAlt        = "AZURE_OPENAI_ENDPOINT"
	EnvModel              = "AZURE_AI_MODEL"
	EnvModelAlt           = "AZURE_OPENAI_DEPLOYMENT"
	EnvAPIVersion         = "AZURE_AI_INFERENCE_API_VERSION"
	EnvAPIVersionAlt      = "AZURE_OPENAI_API_VERSION"
	EnvAPIKey             = "AZURE_AI_API_KEY"
	EnvAPIKeyAlt          = "AZURE_OPENAI_API_KEY"
	EnvKeyVaultURL        = "AZURE_KEY_VAULT_URL"
	EnvKeyVaultSecretName = "AZURE_KEY_VAULT_SECRET_NAME"
	EnvBackend            = "AZURE_AI_BACKEND"
)

const (
	// DefaultPort is the listen port when PORT is unset
	DefaultPort = "8000"

	// DefaultBodySizeLimit caps form submissions
	DefaultBodySizeLimit = "1M"

	// DefaultConfigFile is read when present and CONFIG_FILE is unset
	DefaultConfigFile = "config.yaml"

	// DefaultBackend selects the Azure AI Inference REST client
	DefaultBackend = "inference"

	// DefaultSystemPrompt is sent ahead of every user message
	DefaultSystemPrompt = "You are a helpful assistant. Be concise and stay respectful."

	// DefaultMaxTokens caps generated tokens per reply
	DefaultMaxTokens = 1024

	// DefaultFlashTTL bounds how long an unread previous result is kept
	DefaultFlashTTL = 10 * time.Minute
)

// Config holds the application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Azure   AzureConfig   `yaml:"azure"`
	Chat    ChatConfig    `yaml:"chat"`
	HTTP    HTTPConfig    `yaml:"http"`
	Flash   FlashConfig   `yaml:"flash"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port          string `yaml:"port"`
	BodySizeLimit string `yaml:"body_size_limit"`
}

// AzureConfig holds the raw chat API and Key Vault values.
// Nothing here is validated at load time.
type AzureConfig struct {
	Backend            string `yaml:"backend"`
	Endpoint           string `yaml:"endpoint"`
	Model              string `yaml:"model"`
	APIVersion         string `yaml:"api_version"`
	APIKey             string `yaml:"api_key"`
	KeyVaultURL        string `yaml:"key_vault_url"`
	KeyVaultSecretName string `yaml:"key_vault_secret_name"`
}

// ChatConfig holds per-request completion defaults
type ChatConfig struct {
	SystemPrompt string `yaml:"system_prompt"`
	MaxTokens    int    `yaml:"max_tokens"`
}

// HTTPConfig holds outbound HTTP client settings
type HTTPConfig struct {
	Timeout               time.Duration `yaml:"timeout"`
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout"`
	MaxRetries            int           `yaml:"max_retries"`
}

// FlashConfig selects where the previous result shown on GET / is kept
type FlashConfig struct {
	// Store is "local" (in-process) or "redis"
	Store    string        `yaml:"store"`
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
	// Format is "auto" (text on a terminal, JSON otherwise), "json" or "text"
	Format string `yaml:"format"`
}

// MetricsConfig holds Prometheus exposition settings
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns a Config populated with built-in defaults only.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          DefaultPort,
			BodySizeLimit: DefaultBodySizeLimit,
		},
		Azure: AzureConfig{
			Backend: DefaultBackend,
		},
		Chat: ChatConfig{
			SystemPrompt: DefaultSystemPrompt,
			MaxTokens:    DefaultMaxTokens,
		},
		HTTP: HTTPConfig{
			Timeout:               600 * time.Second,
			ResponseHeaderTimeout: 600 * time.Second,
			MaxRetries:            3,
		},
		Flash: FlashConfig{
			Store: "local",
			TTL:   DefaultFlashTTL,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Metrics: MetricsConfig{
			Endpoint: "/metrics",
		},
	}
}

// Load reads configuration from .env, the optional YAML file and environment
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = DefaultConfigFile
	}
	if err := loadYAML(path, cfg); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadHealth reads only what the standalone health process needs: the
// listen port and logging, from .env and the environment. Chat, flash
// and YAML settings are ignored so they can never keep the health check down.
func LoadHealth() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	setString := func(dst *string, name string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML merges the YAML file at path into cfg. A missing file is not an error.
func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := expandString(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString replaces ${VAR} with the variable's value and ${VAR:-def}
// with the value or def. ${VAR} is left untouched when VAR is unset or empty.
func expandString(s string) string {
	if s == "" {
		return s
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := placeholderPattern.FindStringSubmatch(match)
		name, hasDefault, def := parts[1], parts[2] != "", parts[3]

		if v := os.Getenv(name); v != "" {
			return v
		}
		if hasDefault {
			return def
		}
		return match
	})
}

// firstEnv returns the first non-empty value among the named variables.
func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// applyEnvOverrides copies set environment variables over cfg.
func applyEnvOverrides(cfg *Config) error {
	setString := func(dst *string, names ...string) {
		if v := firstEnv(names...); v != "" {
			*dst = v
		}
	}

	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.BodySizeLimit, "BODY_SIZE_LIMIT")

	setString(&cfg.Azure.Backend, EnvBackend)
	setString(&cfg.Azure.Endpoint, EnvEndpoint, EnvEndpointAlt)
	setString(&cfg.Azure.Model, EnvModel, EnvModelAlt)
	setString(&cfg.Azure.APIVersion, EnvAPIVersion, EnvAPIVersionAlt)
	setString(&cfg.Azure.APIKey, EnvAPIKey, EnvAPIKeyAlt)
	setString(&cfg.Azure.KeyVaultURL, EnvKeyVaultURL)
	setString(&cfg.Azure.KeyVaultSecretName, EnvKeyVaultSecretName)

	setString(&cfg.Chat.SystemPrompt, "CHAT_SYSTEM_PROMPT")
	if v := os.Getenv("CHAT_MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CHAT_MAX_TOKENS %q: %w", v, err)
		}
		cfg.Chat.MaxTokens = n
	}

	if v := os.Getenv("HTTP_TIMEOUT"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid HTTP_TIMEOUT %q: %w", v, err)
		}
		cfg.HTTP.Timeout = d
	}
	if v := os.Getenv("HTTP_RESPONSE_HEADER_TIMEOUT"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid HTTP_RESPONSE_HEADER_TIMEOUT %q: %w", v, err)
		}
		cfg.HTTP.ResponseHeaderTimeout = d
	}
	if v := os.Getenv("HTTP_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid HTTP_MAX_RETRIES %q: %w", v, err)
		}
		cfg.HTTP.MaxRetries = n
	}

	setString(&cfg.Flash.Store, "FLASH_STORE")
	setString(&cfg.Flash.RedisURL, "REDIS_URL")
	if v := os.Getenv("FLASH_TTL"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid FLASH_TTL %q: %w", v, err)
		}
		cfg.Flash.TTL = d
	}

	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")

	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid METRICS_ENABLED %q: %w", v, err)
		}
		cfg.Metrics.Enabled = enabled
	}
	setString(&cfg.Metrics.Endpoint, "METRICS_ENDPOINT")

	return nil
}

// parseDuration accepts plain integers (seconds) or Go duration strings.
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// Validate checks the values that must be correct for the process to start.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %q", c.Server.Port)
	}
	if c.Chat.MaxTokens <= 0 {
		return fmt.Errorf("chat max tokens must be positive, got %d", c.Chat.MaxTokens)
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http max retries must not be negative, got %d", c.HTTP.MaxRetries)
	}

	switch strings.ToLower(c.Flash.Store) {
	case "local":
	case "redis":
		if c.Flash.RedisURL == "" {
			return errors.New("REDIS_URL is required when the flash store is redis")
		}
	default:
		return fmt.Errorf("unknown flash store %q (want local or redis)", c.Flash.Store)
	}

	switch strings.ToLower(c.Log.Format) {
	case "auto", "json", "text":
	default:
		return fmt.Errorf("unknown log format %q (want auto, json or text)", c.Log.Format)
	}
	return nil
}
