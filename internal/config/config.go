package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	MarketData MarketDataConfig
	Scheduler  SchedulerConfig
	LogLevel   string
	LogPretty  bool
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// KafkaConfig holds Kafka/Redpanda configuration
type KafkaConfig struct {
	Brokers       []string
	AlertsTopic   string
	TradesTopic   string
	ConsumerGroup string
}

// MarketDataConfig holds the upstream price provider settings
type MarketDataConfig struct {
	BaseURL           string
	RequestsPerMinute int
	MaxWait           time.Duration
	RequestTimeout    time.Duration
	RetryMaxAttempts  int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
}

// SchedulerConfig holds worker coordination settings. Cycle cadences are
// fixed contractual timings and live in the scheduler package, not here.
type SchedulerConfig struct {
	RefreshLeaseTTL  time.Duration
	SnapshotLeaseTTL time.Duration
	PriceTTL         time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8081"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "postgres"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "tracker"),
			Password: getEnv("DB_PASSWORD", "tracker"),
			DBName:   getEnv("DB_NAME", "investment_tracker"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       0,
		},
		Kafka: KafkaConfig{
			Brokers:       parseBrokers(getEnv("KAFKA_BROKERS", "localhost:19092")),
			AlertsTopic:   getEnv("KAFKA_ALERTS_TOPIC", "alerts.triggered"),
			TradesTopic:   getEnv("KAFKA_TRADES_TOPIC", "trading.trades"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "investment-tracker"),
		},
		MarketData: MarketDataConfig{
			BaseURL:           getEnv("MARKET_DATA_BASE_URL", "https://api.coingecko.com/api/v3"),
			RequestsPerMinute: getEnvInt("MARKET_DATA_RPM", 30),
			MaxWait:           getEnvDuration("MARKET_DATA_MAX_WAIT", 10*time.Second),
			RequestTimeout:    getEnvDuration("MARKET_DATA_TIMEOUT", 10*time.Second),
			RetryMaxAttempts:  getEnvInt("MARKET_DATA_RETRY_ATTEMPTS", 3),
			RetryBaseDelay:    getEnvDuration("MARKET_DATA_RETRY_BASE", 500*time.Millisecond),
			RetryMaxDelay:     getEnvDuration("MARKET_DATA_RETRY_MAX", 8*time.Second),
		},
		Scheduler: SchedulerConfig{
			RefreshLeaseTTL:  getEnvDuration("REFRESH_LEASE_TTL", 4*time.Minute),
			SnapshotLeaseTTL: getEnvDuration("SNAPSHOT_LEASE_TTL", 15*time.Minute),
			PriceTTL:         getEnvDuration("PRICE_TTL", 10*time.Minute),
		},
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnv("LOG_PRETTY", "false") == "true",
	}
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Address returns the Redis address in host:port format
func (r *RedisConfig) Address() string {
	return r.Host + ":" + r.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
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

// parseBrokers splits a comma-separated broker list
func parseBrokers(brokers string) []string {
	parts := strings.Split(brokers, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
