package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxChars      = 10
	DefaultMaxCharsLimit = 50
	DefaultMaxUploadMB   = 500
)

// Config holds the service configuration.
type Config struct {
	Server struct {
		Host              string        `yaml:"host"`
		Port              int           `yaml:"port"`
		MaxUploadMB       int64         `yaml:"max_upload_mb"`
		AllowedOrigin     string        `yaml:"allowed_origin"`
		ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
		ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
		TempDir           string        `yaml:"temp_dir"`
	} `yaml:"server"`
	Auth struct {
		APISecretKey string `yaml:"api_secret_key"`
	} `yaml:"auth"`
	Transcription struct {
		Provider      string        `yaml:"provider"`
		APIKey        string        `yaml:"api_key"`
		Language      string        `yaml:"language"`
		DefaultModel  string        `yaml:"default_model"`
		Models        []string      `yaml:"models"`
		ChunkDuration time.Duration `yaml:"chunk_duration"`
		Concurrency   int           `yaml:"concurrency"`
	} `yaml:"transcription"`
	Subtitle struct {
		DefaultMaxChars int `yaml:"default_max_chars"`
		MaxCharsLimit   int `yaml:"max_chars_limit"`
	} `yaml:"subtitle"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 5000
	cfg.Server.MaxUploadMB = DefaultMaxUploadMB
	cfg.Server.AllowedOrigin = "*"
	cfg.Server.ReadHeaderTimeout = 10 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second
	cfg.Transcription.Provider = "openai"
	cfg.Transcription.Language = "ja"
	cfg.Transcription.ChunkDuration = 10 * time.Minute
	cfg.Transcription.Concurrency = 3
	cfg.Subtitle.DefaultMaxChars = DefaultMaxChars
	cfg.Subtitle.MaxCharsLimit = DefaultMaxCharsLimit
	return cfg
}

// Load reads the YAML file at path over the defaults and then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("open config: %w", err)
		default:
			defer file.Close()
			if err := yaml.NewDecoder(file).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("decode config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv("PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := getenv("API_SECRET_KEY"); v != "" {
		c.Auth.APISecretKey = v
	}
	if v := strings.TrimSpace(getenv("ALLOWED_ORIGIN")); v != "" {
		c.Server.AllowedOrigin = v
	}
	if v := strings.TrimSpace(getenv("JIMAKU_PROVIDER")); v != "" {
		c.Transcription.Provider = v
	}

	if c.Transcription.APIKey == "" {
		switch c.Transcription.Provider {
		case "openai":
			c.Transcription.APIKey = getenv("OPENAI_API_KEY")
		case "gemini":
			c.Transcription.APIKey = getenv("GEMINI_API_KEY")
		}
	}
	return nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1-65535, got %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be positive, got %d", c.Server.MaxUploadMB)
	}
	if c.Subtitle.MaxCharsLimit < 1 {
		return fmt.Errorf("subtitle.max_chars_limit must be positive, got %d", c.Subtitle.MaxCharsLimit)
	}
	if c.Subtitle.DefaultMaxChars < 1 || c.Subtitle.DefaultMaxChars > c.Subtitle.MaxCharsLimit {
		return fmt.Errorf(
			"subtitle.default_max_chars must be in 1-%d, got %d",
			c.Subtitle.MaxCharsLimit,
			c.Subtitle.DefaultMaxChars,
		)
	}
	switch c.Transcription.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unsupported transcription provider %q", c.Transcription.Provider)
	}
	if c.Transcription.ChunkDuration < 0 {
		return fmt.Errorf("transcription.chunk_duration must not be negative, got %v", c.Transcription.ChunkDuration)
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// MaxUploadBytes returns the upload cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB * 1024 * 1024
}

// ParseMaxChars turns a request supplied chunk length into a usable bound:
// absent or non-numeric values give def, anything else is clamped to [1, limit].
// Integers too large for an int clamp by sign.
func ParseMaxChars(raw string, def, limit int) int {
	raw = strings.TrimSpace(raw)
	n, err := strconv.Atoi(raw)
	if errors.Is(err, strconv.ErrRange) {
		if strings.HasPrefix(raw, "-") {
			return 1
		}
		return limit
	}
	if err != nil {
		return def
	}
	return max(1, min(n, limit))
}
