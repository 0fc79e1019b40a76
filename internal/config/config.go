package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// External auth provider. Tokens are issued elsewhere and only verified here.
	AuthJWTSecret string
	AuthJWTIssuer string

	// Scheduler-triggered endpoints
	PipelineAPIKey string

	// Track catalog
	CatalogBaseURL      string
	CatalogTokenURL     string
	CatalogClientID     string
	CatalogClientSecret string
	CatalogMarket       string
	RequestTimeout      time.Duration

	// Leaderboard recompute fan-out
	LeaderboardConcurrency int
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "wav"),
		DBPassword: getEnv("DB_PASSWORD", "wav"),
		DBName:     getEnv("DB_NAME", "wav"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		AuthJWTSecret: getEnv("AUTH_JWT_SECRET", "fallback-secret-key-for-dev-only"),
		AuthJWTIssuer: getEnv("AUTH_JWT_ISSUER", ""),

		PipelineAPIKey: getEnv("PIPELINE_API_KEY", ""),

		CatalogBaseURL:      getEnv("CATALOG_BASE_URL", "https://api.spotify.com/v1"),
		CatalogTokenURL:     getEnv("CATALOG_TOKEN_URL", "https://accounts.spotify.com/api/token"),
		CatalogClientID:     getEnv("CATALOG_CLIENT_ID", ""),
		CatalogClientSecret: getEnv("CATALOG_CLIENT_SECRET", ""),
		CatalogMarket:       getEnv("CATALOG_MARKET", "US"),
	}

	timeoutStr := getEnv("REQUEST_TIMEOUT", "10s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil || timeout <= 0 {
		log.Printf("Warning: invalid REQUEST_TIMEOUT value '%s', falling back to 10s\n", timeoutStr)
		timeout = 10 * time.Second
	}
	config.RequestTimeout = timeout

	concStr := getEnv("LEADERBOARD_CONCURRENCY", "4")
	conc, err := strconv.Atoi(concStr)
	if err != nil || conc < 1 {
		log.Printf("Warning: invalid LEADERBOARD_CONCURRENCY value '%s', falling back to 4\n", concStr)
		conc = 4
	}
	config.LeaderboardConcurrency = conc

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
