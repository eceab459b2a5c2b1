package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"` // host:port, host may be empty
}

type StoreConfig struct {
	Driver         string `yaml:"driver"`      // sqlite | postgres | mongo
	SQLitePath     string `yaml:"sqlite_path"` // event.db
	DatabaseURL    string `yaml:"database_url"`
	MaxConnections int    `yaml:"max_connections"`
	MaxIdle        int    `yaml:"max_idle"`
	MongoURI       string `yaml:"mongo_uri"`
	MongoDatabase  string `yaml:"mongo_database"`
}

// RedisConfig enables the response cache and write quota when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type RateLimitConfig struct {
	RPS          float64       `yaml:"rps"`
	Burst        int           `yaml:"burst"`
	IdleTTL      time.Duration `yaml:"idle_ttl"`
	WritesPerDay int           `yaml:"writes_per_day"` // 0 disables the quota
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
}

func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Store: StoreConfig{
			Driver:         DriverSQLite,
			SQLitePath:     "event.db",
			MaxConnections: 10,
			MaxIdle:        5,
			MongoDatabase:  "app",
		},
		Redis: RedisConfig{CacheTTL: 30 * time.Second},
		RateLimit: RateLimitConfig{
			RPS:     20,
			Burst:   40,
			IdleTTL: 3 * time.Minute,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load builds the config from defaults, then the YAML file at path (if
// path is not empty), then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Addr = getEnv("SERVER_ADDR", cfg.Server.Addr)

	cfg.Store.Driver = getEnv("STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.SQLitePath = getEnv("SQLITE_PATH", cfg.Store.SQLitePath)
	cfg.Store.DatabaseURL = getEnv("DATABASE_URL", cfg.Store.DatabaseURL)
	cfg.Store.MaxConnections = getEnvInt("DATABASE_MAX_CONNECTIONS", cfg.Store.MaxConnections)
	cfg.Store.MaxIdle = getEnvInt("DATABASE_MAX_IDLE_CONNECTIONS", cfg.Store.MaxIdle)
	cfg.Store.MongoURI = getEnv("MONGO_URI", cfg.Store.MongoURI)
	cfg.Store.MongoDatabase = getEnv("MONGO_DATABASE", cfg.Store.MongoDatabase)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.CacheTTL = getEnvDuration("CACHE_TTL", cfg.Redis.CacheTTL)

	cfg.RateLimit.RPS = getEnvFloat("RATE_LIMIT_RPS", cfg.RateLimit.RPS)
	cfg.RateLimit.Burst = getEnvInt("RATE_LIMIT_BURST", cfg.RateLimit.Burst)
	cfg.RateLimit.WritesPerDay = getEnvInt("WRITE_QUOTA_PER_DAY", cfg.RateLimit.WritesPerDay)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)
}

func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case DriverMongo:
		if c.Store.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for the mongo store")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server address is required")
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
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
