package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "lookbook/backend/pkg/errors"
)

// Store backends
const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendNeo4j  = "neo4j"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Document store
	StoreBackend  string
	MongoURI      string
	MongoDatabase string
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// Caches (empty RedisAddr keeps caches in-process)
	RedisAddr       string
	RedisPassword   string
	PrivacyCacheTTL time.Duration
	FeedCacheTTL    time.Duration

	// Notification events (empty NatsURL disables publishing)
	NatsURL string

	// Engine tuning
	FeedPageSize                   int
	OwnerLookupConcurrency         int
	DedupeInteractionNotifications bool
	CascadeOnPrivacyChange         bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:                           getEnv("PORT", "8080"),
		Env:                            getEnv("ENV", "development"),
		StoreBackend:                   strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		MongoURI:                       getEnv("MONGO_URI", ""),
		MongoDatabase:                  getEnv("MONGO_DATABASE", "lookbook"),
		Neo4jURI:                       getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:                      getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:                  getEnv("NEO4J_PASSWORD", "password"),
		RedisAddr:                      getEnv("REDIS_ADDR", ""),
		RedisPassword:                  getEnv("REDIS_PASSWORD", ""),
		PrivacyCacheTTL:                getEnvDuration("PRIVACY_CACHE_TTL", time.Minute),
		FeedCacheTTL:                   getEnvDuration("FEED_CACHE_TTL", 30*time.Second),
		NatsURL:                        getEnv("NATS_URL", ""),
		FeedPageSize:                   getEnvInt("FEED_PAGE_SIZE", 50),
		OwnerLookupConcurrency:         getEnvInt("OWNER_LOOKUP_CONCURRENCY", 8),
		DedupeInteractionNotifications: getEnvBool("DEDUPE_INTERACTION_NOTIFICATIONS", true),
		CascadeOnPrivacyChange:         getEnvBool("CASCADE_ON_PRIVACY_CHANGE", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendMongo:
		if c.MongoURI == "" {
			return apperrors.NewConfigMissingRequired("MONGO_URI")
		}
		if c.MongoDatabase == "" {
			return apperrors.NewConfigMissingRequired("MONGO_DATABASE")
		}
	case BackendNeo4j:
		if c.Neo4jURI == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_URI")
		}
		if c.Neo4jUser == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_USER")
		}
		if c.Neo4jPassword == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_PASSWORD")
		}
	default:
		return apperrors.NewConfigValidationFailed("STORE_BACKEND", fmt.Sprintf("must be one of memory, mongo, neo4j (got %q)", c.StoreBackend))
	}
	if c.FeedPageSize <= 0 {
		return apperrors.NewConfigValidationFailed("FEED_PAGE_SIZE", "must be positive")
	}
	if c.OwnerLookupConcurrency <= 0 {
		return apperrors.NewConfigValidationFailed("OWNER_LOOKUP_CONCURRENCY", "must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
