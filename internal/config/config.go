package config

import (
	"os"
	"strconv"
	"time"

	"wallet-monitor/internal/models"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	LogLevel  string
	HTTP      HTTPConfig
	Kafka     KafkaConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Indexer   IndexerConfig
	Gateway   GatewayConfig
	Ingest    IngestConfig
	Explorers map[models.Network]ExplorerConfig
}

// HTTPConfig holds HTTP client configuration
type HTTPConfig struct {
	Timeout time.Duration
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	BrokerAddress string
	Topic         string
	Enabled       bool
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// IndexerConfig holds the upstream GraphQL indexer configuration
type IndexerConfig struct {
	Endpoint  string
	APIKey    string
	RateLimit float64
	// MinAmount is the server-side noise floor applied to transfer queries.
	MinAmount float64
	Limit     int
}

// GatewayConfig holds the HTTP gateway configuration
type GatewayConfig struct {
	ListenAddr string
}

// IngestConfig holds polling intervals for the background services
type IngestConfig struct {
	PollInterval      time.Duration
	BalanceInterval   time.Duration
	AggregateInterval time.Duration
}

// ExplorerConfig holds per-network explorer API configuration
type ExplorerConfig struct {
	BaseURL   string
	APIKey    string
	RateLimit float64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// Not fatal, as env vars might be set externally
	}

	config := &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		HTTP: HTTPConfig{
			Timeout: time.Duration(getEnvAsInt("HTTP_TIMEOUT", 30)) * time.Second,
		},
		Kafka: KafkaConfig{
			BrokerAddress: getEnv("KAFKA_BROKER_ADDRESS", "localhost:9092"),
			Topic:         getEnv("KAFKA_TOPIC", "whale-transfers"),
			Enabled:       getEnv("KAFKA_ENABLED", "false") == "true",
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "wallet_monitor"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Indexer: IndexerConfig{
			Endpoint:  getEnv("INDEXER_ENDPOINT", "https://streaming.bitquery.io/graphql"),
			APIKey:    getEnv("INDEXER_API_KEY", ""),
			RateLimit: getEnvAsFloat("INDEXER_RATE_LIMIT", 4),
			MinAmount: getEnvAsFloat("INDEXER_MIN_AMOUNT", 10000),
			Limit:     getEnvAsInt("INDEXER_QUERY_LIMIT", 50),
		},
		Gateway: GatewayConfig{
			ListenAddr: getEnv("GATEWAY_LISTEN_ADDR", ":8080"),
		},
		Ingest: IngestConfig{
			PollInterval:      time.Duration(getEnvAsInt("INGEST_POLL_INTERVAL", 10)) * time.Second,
			BalanceInterval:   time.Duration(getEnvAsInt("BALANCE_POLL_INTERVAL", 30)) * time.Second,
			AggregateInterval: time.Duration(getEnvAsInt("AGGREGATE_POLL_INTERVAL", 15)) * time.Second,
		},
		Explorers: make(map[models.Network]ExplorerConfig),
	}

	config.Explorers[models.Ethereum] = ExplorerConfig{
		BaseURL:   getEnv("ETHERSCAN_BASE_URL", "https://api.etherscan.io/api"),
		APIKey:    getEnv("ETHERSCAN_API_KEY", ""),
		RateLimit: getEnvAsFloat("ETHERSCAN_RATE_LIMIT", 4),
	}

	config.Explorers[models.BSC] = ExplorerConfig{
		BaseURL:   getEnv("BSCSCAN_BASE_URL", "https://api.bscscan.com/api"),
		APIKey:    getEnv("BSCSCAN_API_KEY", ""),
		RateLimit: getEnvAsFloat("BSCSCAN_RATE_LIMIT", 4),
	}

	config.Explorers[models.Polygon] = ExplorerConfig{
		BaseURL:   getEnv("POLYGONSCAN_BASE_URL", "https://api.polygonscan.com/api"),
		APIKey:    getEnv("POLYGONSCAN_API_KEY", ""),
		RateLimit: getEnvAsFloat("POLYGONSCAN_RATE_LIMIT", 4),
	}

	config.Explorers[models.Arbitrum] = ExplorerConfig{
		BaseURL:   getEnv("ARBISCAN_BASE_URL", "https://api.arbiscan.io/api"),
		APIKey:    getEnv("ARBISCAN_API_KEY", ""),
		RateLimit: getEnvAsFloat("ARBISCAN_RATE_LIMIT", 4),
	}

	config.Explorers[models.XRP] = ExplorerConfig{
		BaseURL:   getEnv("XRPSCAN_BASE_URL", "https://api.xrpscan.com/api/v1"),
		APIKey:    getEnv("XRPSCAN_API_KEY", ""),
		RateLimit: getEnvAsFloat("XRPSCAN_RATE_LIMIT", 4),
	}

	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as int or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsFloat gets an environment variable as float64 or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
