package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ServerConfig HTTP server settings
type ServerConfig struct {
	Port                string
	Env                 string
	Host                string // Swagger host
	LogLevel            string
	CORSAllowOrigins    string
	MetricsInternalOnly bool
}

// PlacesConfig upstream Places API settings
type PlacesConfig struct {
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 = unlimited
	RateBurst int
}

// RedisConfig Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig cache backend and expiry settings
type CacheConfig struct {
	Driver            string // memory | redis | postgres
	SearchTTL         time.Duration
	DetailTTL         time.Duration
	PhotoTTL          time.Duration
	DetailConcurrency int
	UnknownHoursState bool
}

type Config struct {
	Server ServerConfig
	Places PlacesConfig
	Cache  CacheConfig
	Redis  RedisConfig

	// Database (only used by the postgres cache driver)
	DatabaseURL string

	// SigNoz
	SigNozEndpoint string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                getEnv("SERVER_PORT", "5108"),
			Env:                 getEnv("SERVER_ENV", "development"),
			Host:                getEnv("SERVER_HOST", "localhost:5108"),
			LogLevel:            getEnv("LOG_LEVEL", "info"),
			CORSAllowOrigins:    getEnv("CORS_ALLOW_ORIGINS", "*"),
			MetricsInternalOnly: getEnvAsBool("METRICS_INTERNAL_ONLY", false),
		},

		Places: PlacesConfig{
			APIKey:    getEnvWithFallback("GOOGLE_PLACES_API_KEY", "GOOGLE_API_KEY", ""),
			BaseURL:   getEnv("PLACES_BASE_URL", "https://maps.googleapis.com/maps/api/place"),
			Timeout:   time.Duration(getEnvAsInt("PLACES_TIMEOUT_SECONDS", 10)) * time.Second,
			RateLimit: getEnvAsFloat("PLACES_RATE_LIMIT", 0),
			RateBurst: getEnvAsInt("PLACES_RATE_BURST", 10),
		},

		Cache: CacheConfig{
			Driver:            getEnv("CACHE_DRIVER", "memory"),
			SearchTTL:         time.Duration(getEnvAsInt("SEARCH_CACHE_TTL_MINUTES", 10)) * time.Minute,
			DetailTTL:         time.Duration(getEnvAsInt("DETAIL_CACHE_TTL_MINUTES", 30)) * time.Minute,
			PhotoTTL:          time.Duration(getEnvAsInt("PHOTO_CACHE_TTL_MINUTES", 60)) * time.Minute,
			DetailConcurrency: getEnvAsInt("DETAIL_CONCURRENCY", 4),
			UnknownHoursState: getEnvAsBool("OPENING_HOURS_UNKNOWN_STATE", false),
		},

		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},

		// DATABASE_URL wins, otherwise built from POSTGRES_*
		DatabaseURL: getDatabaseURL(),

		SigNozEndpoint: getEnv("SIGNOZ_ENDPOINT", ""),
	}
}

// IsDevelopment reports whether the server runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvWithFallback tries primary key first, then fallback key
func getEnvWithFallback(primary, fallback, defaultValue string) string {
	if value, exists := os.LookupEnv(primary); exists && value != "" {
		return value
	}
	if value, exists := os.LookupEnv(fallback); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getDatabaseURL returns DATABASE_URL or builds it from individual env vars
func getDatabaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	user := getEnv("POSTGRES_USER", "postgres")
	password := getEnv("POSTGRES_PASSWORD", "")
	dbname := getEnv("POSTGRES_DB", "shopfinder")
	sslmode := getEnv("POSTGRES_SSLMODE", "disable")

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		user, password, host, port, dbname, sslmode)
}
