package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the imageforge server.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	OpenAI  OpenAIConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type StorageConfig struct {
	ImagesDir string
}

type OpenAIConfig struct {
	// APIKey is resolved once at startup, either from OPENAI_API_KEY or from
	// the secret file at OPENAI_API_KEY_FILE. Empty means unconfigured: the
	// process still starts, /health reports it, and /generate fails fast.
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Configured reports whether a provider credential is present.
func (c OpenAIConfig) Configured() bool {
	return c.APIKey != ""
}

const defaultSecretFile = "/run/secrets/openai_api_key"

// Load reads configuration from environment variables and returns a validated
// Config. A missing provider credential is not an error; everything else that
// is invalid produces a descriptive one.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("IMAGEFORGE_PORT", 8080),
			Env:  envString("IMAGEFORGE_ENV", "development"),
		},
		Storage: StorageConfig{
			ImagesDir: envString("IMAGES_DIR", "./images"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  resolveAPIKey(),
			BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Timeout: envDurationSecs("OPENAI_TIMEOUT_SECS", 120*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("IMAGEFORGE_PORT must be a valid TCP port, got %d", c.Server.Port)
	}

	if c.Storage.ImagesDir == "" {
		return fmt.Errorf("IMAGES_DIR is required")
	}

	if !strings.HasPrefix(c.OpenAI.BaseURL, "http://") && !strings.HasPrefix(c.OpenAI.BaseURL, "https://") {
		return fmt.Errorf("OPENAI_BASE_URL must start with http:// or https://, got %q", c.OpenAI.BaseURL)
	}

	return nil
}

// resolveAPIKey prefers the environment variable and falls back to a secret
// file (a Docker secret in the original deployment). An unreadable or empty
// secret yields an empty key rather than a startup failure.
func resolveAPIKey() string {
	if key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); key != "" {
		return key
	}

	path := envString("OPENAI_API_KEY_FILE", defaultSecretFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
