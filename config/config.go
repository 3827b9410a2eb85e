package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Search   SearchConfig
	Analysis AnalysisConfig
	Cache    CacheConfig
	DataDir  string
	Env      string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string
	GinMode        string
	RateLimitRPS   float64
	RateLimitBurst float64
}

// DatabaseConfig selects the store driver; DSN is a file path for sqlite
type DatabaseConfig struct {
	Driver string
	DSN    string
}

// RedisConfig holds the optional Redis cache location
type RedisConfig struct {
	URL string
}

// SearchConfig holds the custom search API credentials
type SearchConfig struct {
	APIKey   string
	EngineID string
}

// AnalysisConfig bounds page fetching and the analysis pipelines
type AnalysisConfig struct {
	FetchTimeout          time.Duration
	Timeout               time.Duration
	MaxCompetitors        int
	CompetitorConcurrency int
}

// CacheConfig holds the feature cache TTL
type CacheConfig struct {
	TTL time.Duration
}

// LoadEnv loads .env.development, falling back to .env. Missing files are
// not an error; it reports whether any file was loaded.
func LoadEnv() bool {
	if err := godotenv.Load(".env.development"); err == nil {
		return true
	}
	return godotenv.Load() == nil
}

// Load reads configuration from the environment
func Load() (*Config, error) {
	dataDir := getEnv("DATA_DIR", "./data")
	dsn := getEnv("DATABASE_URL", filepath.Join(dataDir, "seo.db"))

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8082"),
			GinMode:        getEnv("GIN_MODE", "release"),
			RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 2),
			RateLimitBurst: getEnvAsFloat("RATE_LIMIT_BURST", 5),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DATABASE_DRIVER", inferDriver(dsn)),
			DSN:    dsn,
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Search: SearchConfig{
			APIKey:   getEnv("SEARCH_API_KEY", ""),
			EngineID: getEnv("SEARCH_ENGINE_ID", ""),
		},
		Analysis: AnalysisConfig{
			FetchTimeout:          getEnvAsDuration("FETCH_TIMEOUT", 12*time.Second),
			Timeout:               getEnvAsDuration("ANALYSIS_TIMEOUT", 60*time.Second),
			MaxCompetitors:        getEnvAsInt("MAX_COMPETITORS", 5),
			CompetitorConcurrency: getEnvAsInt("COMPETITOR_CONCURRENCY", 5),
		},
		Cache: CacheConfig{
			TTL: getEnvAsDuration("CACHE_TTL", 30*time.Minute),
		},
		DataDir: dataDir,
		Env:     getEnv("APP_ENV", "production"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}
	if c.Analysis.MaxCompetitors < 1 || c.Analysis.MaxCompetitors > 10 {
		return fmt.Errorf("MAX_COMPETITORS must be between 1 and 10, got %d", c.Analysis.MaxCompetitors)
	}
	if c.Analysis.CompetitorConcurrency < 1 {
		return fmt.Errorf("COMPETITOR_CONCURRENCY must be positive, got %d", c.Analysis.CompetitorConcurrency)
	}
	return nil
}

// SearchConfigured reports whether competitor search can run
func (c *Config) SearchConfigured() bool {
	return c.Search.APIKey != "" && c.Search.EngineID != ""
}

// inferDriver picks postgres for a postgres URL and sqlite for anything else
func inferDriver(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
