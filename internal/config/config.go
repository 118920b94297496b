package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the DebateLens server.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	OpenRouter OpenRouterConfig
	Whisper    WhisperConfig
	Files      FilesConfig
	Cleanup    CleanupConfig
}

type ServerConfig struct {
	Port            int
	Env             string
	RateLimitPerMin int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// OpenRouterConfig configures the reasoning backend. DefaultModel is tried
// first for every call; FallbackModel is tried once when the default model is
// rejected by the backend.
type OpenRouterConfig struct {
	APIKey        string
	BaseURL       string
	DefaultModel  string
	FallbackModel string
	MaxTokens     int
	Temperature   float64
	Timeout       time.Duration
}

type WhisperConfig struct {
	Python          string
	Model           string
	DefaultLanguage string
}

type FilesConfig struct {
	UploadDir      string
	TempDir        string
	MaxUploadBytes int64
}

type CleanupConfig struct {
	Interval time.Duration
	MaxAge   time.Duration
}

// Load reads configuration from environment variables and returns a validated
// Config. A .env file in the working directory is honored when present.
// Returns an error with a descriptive message if any required value is
// missing or invalid.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("DEBATELENS_PORT", 8080),
			Env:             envString("DEBATELENS_ENV", "development"),
			RateLimitPerMin: envInt("DEBATELENS_RATE_LIMIT_PER_MIN", 60),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		OpenRouter: OpenRouterConfig{
			APIKey:        os.Getenv("OPENROUTER_API_KEY"),
			BaseURL:       envString("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
			DefaultModel:  envString("OPENROUTER_MODEL", "google/gemini-2.0-flash-exp:free"),
			FallbackModel: envString("OPENROUTER_FALLBACK_MODEL", "google/gemini-1.5-flash:free"),
			MaxTokens:     envInt("OPENROUTER_MAX_TOKENS", 8000),
			Temperature:   envFloat("OPENROUTER_TEMPERATURE", 0.8),
			Timeout:       envDuration("OPENROUTER_TIMEOUT", 2*time.Minute),
		},
		Whisper: WhisperConfig{
			Python:          envString("WHISPER_PYTHON", "python3"),
			Model:           envString("WHISPER_MODEL", "base"),
			DefaultLanguage: envString("DEFAULT_LANGUAGE", "it"),
		},
		Files: FilesConfig{
			UploadDir:      envString("UPLOAD_DIR", "./uploads"),
			TempDir:        envString("TEMP_DIR", "./temp"),
			MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 100<<20),
		},
		Cleanup: CleanupConfig{
			Interval: envDuration("CLEANUP_INTERVAL", 24*time.Hour),
			MaxAge:   envDuration("CLEANUP_MAX_AGE", 48*time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

var validWhisperModels = map[string]bool{
	"tiny":   true,
	"base":   true,
	"small":  true,
	"medium": true,
	"large":  true,
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.OpenRouter.APIKey == "" {
		return fmt.Errorf("OPENROUTER_API_KEY is required")
	}
	if !strings.HasPrefix(c.OpenRouter.BaseURL, "http://") && !strings.HasPrefix(c.OpenRouter.BaseURL, "https://") {
		return fmt.Errorf("OPENROUTER_BASE_URL must start with http:// or https://, got %q", c.OpenRouter.BaseURL)
	}

	if !validWhisperModels[c.Whisper.Model] {
		return fmt.Errorf("WHISPER_MODEL must be one of tiny, base, small, medium, large; got %q", c.Whisper.Model)
	}

	if c.Files.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}

	return nil
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

func envInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
