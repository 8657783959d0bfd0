package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all process configuration, loaded once at startup and
// passed explicitly into the services that need it.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Engine   EngineConfig
	OpenAI   OpenAIConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        string
	MaxUploadMB int64
}

// DatabaseConfig holds Postgres settings. An empty URL disables
// persistence (run history and auth endpoints are not registered).
type DatabaseConfig struct {
	URL string
}

// JWTConfig holds token signing settings for the admin surface.
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

// EngineConfig holds the transformation engine tunables.
type EngineConfig struct {
	MaxPages       int     // reject inputs above this page count
	MaxFileBytes   int64   // reject inputs above this size
	LineGapFactor  float64 // paragraph break when gap > factor × line height
	DecorWidthFrac float64 // decoration image width as fraction of page width
	CatURL         string  // cat image service
	CatTimeout     time.Duration
	FontPath       string // optional UTF-8 TTF for emoji-capable output
	RewriteWorkers int    // bound on concurrent external rewrite calls
	RunDeadline    time.Duration
}

// OpenAIConfig holds the external rewrite service settings.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			MaxUploadMB: getEnvInt64("MAX_UPLOAD_MB", 25),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", ""),
			Expiration: getEnvDuration("JWT_EXPIRATION", 24*time.Hour),
		},
		Engine: EngineConfig{
			MaxPages:       getEnvInt("MAX_PAGES", 200),
			MaxFileBytes:   getEnvInt64("MAX_UPLOAD_MB", 25) << 20,
			LineGapFactor:  getEnvFloat("LINE_GAP_FACTOR", 1.5),
			DecorWidthFrac: getEnvFloat("DECOR_WIDTH_FRAC", 0.45),
			CatURL:         getEnv("CAT_URL", "https://cataas.com/cat"),
			CatTimeout:     getEnvDuration("CAT_TIMEOUT", 10*time.Second),
			FontPath:       os.Getenv("FONT_PATH"),
			RewriteWorkers: getEnvInt("REWRITE_WORKERS", 4),
			RunDeadline:    getEnvDuration("RUN_DEADLINE", 2*time.Minute),
		},
		OpenAI: OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Timeout: getEnvDuration("OPENAI_TIMEOUT", 10*time.Second),
		},
	}

	if cfg.Database.URL != "" && cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required when DATABASE_URL is set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
