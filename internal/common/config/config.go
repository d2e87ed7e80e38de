package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Alexander-D-Karpov/tandem/internal/common/errors"
)

const (
	TransportTelegram  = "telegram"
	TransportWebSocket = "websocket"

	ProfileStorePostgres = "postgres"
	ProfileStoreMemory   = "memory"
)

type Config struct {
	Transport    string
	ProfileStore string
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Logging      LoggingConfig
	Telegram     TelegramConfig
	Gateway      GatewayConfig
	Chat         ChatConfig
}

type ServerConfig struct {
	HealthPort  int
	MetricsPort int
	GRPCPort    int
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	// Queries slower than this are logged; zero disables the tracer.
	SlowQueryThreshold time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

type LoggingConfig struct {
	Level      string
	Format     string
	Output     string
	EnableFile bool
	FilePath   string
}

type TelegramConfig struct {
	Token       string
	PollTimeout int
	Debug       bool
	// Outbound Bot API calls per second, shared by all recipients.
	SendRate  float64
	SendBurst int
}

type GatewayConfig struct {
	Host         string
	Port         int
	ReadLimit    int64
	PingInterval time.Duration
	SendBuffer   int
}

type ChatConfig struct {
	AnnounceDelay time.Duration
	RelayDelay    time.Duration
	UpdateTimeout time.Duration
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	cfg := Parse()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads the environment without validating. Tools that only need a
// subset of the settings use it directly.
func Parse() *Config {
	return &Config{
		Transport:    strings.ToLower(getEnv("TRANSPORT", TransportTelegram)),
		ProfileStore: strings.ToLower(getEnv("PROFILE_STORE", ProfileStorePostgres)),
		Server: ServerConfig{
			HealthPort:  getEnvInt("HEALTH_PORT", 8081),
			MetricsPort: getEnvInt("METRICS_PORT", 9100),
			GRPCPort:    getEnvInt("GRPC_PORT", 9090),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "postgres"),
			Password:           getEnv("DB_PASSWORD", "postgres"),
			Database:           getEnv("DB_NAME", "tandem"),
			MaxConns:           getEnvInt("DB_MAX_CONNS", 10),
			MinConns:           getEnvInt("DB_MIN_CONNS", 2),
			MaxConnLifetime:    getEnvDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:    getEnvDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			SlowQueryThreshold: getEnvDuration("DB_SLOW_QUERY_THRESHOLD", 200*time.Millisecond),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Enabled:  getEnvBool("REDIS_ENABLED", false),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			Output:     getEnv("LOG_OUTPUT", "stdout"),
			EnableFile: getEnvBool("LOG_ENABLE_FILE", false),
			FilePath:   getEnv("LOG_FILE_PATH", "/var/log/tandem/bot.log"),
		},
		Telegram: TelegramConfig{
			Token:       getEnv("BOT_TOKEN", ""),
			PollTimeout: getEnvInt("TELEGRAM_POLL_TIMEOUT", 60),
			Debug:       getEnvBool("TELEGRAM_DEBUG", false),
			SendRate:    getEnvFloat("TELEGRAM_SEND_RATE", 25),
			SendBurst:   getEnvInt("TELEGRAM_SEND_BURST", 5),
		},
		Gateway: GatewayConfig{
			Host:         getEnv("GATEWAY_HOST", "0.0.0.0"),
			Port:         getEnvInt("GATEWAY_PORT", 8080),
			ReadLimit:    int64(getEnvInt("GATEWAY_READ_LIMIT", 1<<16)),
			PingInterval: getEnvDuration("GATEWAY_PING_INTERVAL", 30*time.Second),
			SendBuffer:   getEnvInt("GATEWAY_SEND_BUFFER", 32),
		},
		Chat: ChatConfig{
			AnnounceDelay: getEnvDuration("MATCH_ANNOUNCE_DELAY", time.Second),
			RelayDelay:    getEnvDuration("RELAY_TYPING_DELAY", 500*time.Millisecond),
			UpdateTimeout: getEnvDuration("UPDATE_TIMEOUT", 30*time.Second),
		},
	}
}

// Validate reports missing startup secrets and unknown selectors as
// configuration errors.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportTelegram:
		if c.Telegram.Token == "" {
			return errors.Configuration("BOT_TOKEN is not set")
		}
	case TransportWebSocket:
	default:
		return errors.Configuration("unknown TRANSPORT " + strconv.Quote(c.Transport))
	}

	switch c.ProfileStore {
	case ProfileStorePostgres:
		if c.Database.URL == "" && c.Database.Host == "" {
			return errors.Configuration("DATABASE_URL or DB_HOST must be set")
		}
	case ProfileStoreMemory:
	default:
		return errors.Configuration("unknown PROFILE_STORE " + strconv.Quote(c.ProfileStore))
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}
