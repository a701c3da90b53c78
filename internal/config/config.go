package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Server ServerConfig `json:"server"`

	// Database Configuration
	Database DatabaseConfig `json:"database"`

	// Redis Configuration (presence/typing state)
	Redis RedisConfig `json:"redis"`

	// Mongo Configuration (attachment object storage)
	Mongo MongoConfig `json:"mongo"`

	// Notification Configuration
	Notification NotificationConfig `json:"notification"`

	// Logging Configuration
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host        string `json:"host"`
	Port        string `json:"port"`
	Environment string `json:"environment"` // development, staging, production
}

// DatabaseConfig contains MySQL connection configuration
type DatabaseConfig struct {
	Host         string `json:"host"`
	Port         string `json:"port"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	DatabaseName string `json:"database_name"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
}

// RedisConfig contains the presence store connection configuration
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// MongoConfig contains the GridFS attachment store configuration
type MongoConfig struct {
	URI          string `json:"uri"`
	DatabaseName string `json:"database_name"`
	Bucket       string `json:"bucket"`
}

// NotificationConfig contains notification fan-out configuration
type NotificationConfig struct {
	Workers            int  `json:"workers"`             // Number of worker goroutines
	ChannelBufferSize  int  `json:"channel_buffer_size"` // Event channel buffer size
	SubscriberOverride bool `json:"subscriber_override"` // Feature flag: subscribers bypass messaging policy
	Enabled            bool `json:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

func (cfg *Config) DSN() string {
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "3306"
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DatabaseName,
	)
}

// Load builds a Config from environment variables with development defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			Port:        getEnvOrDefault("SERVER_PORT", "8080"),
			Environment: getEnvOrDefault("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:         getEnvOrDefault("DB_HOST", "localhost"),
			Port:         getEnvOrDefault("DB_PORT", "3306"),
			Username:     getEnvOrDefault("DB_USER", "converse_user"),
			Password:     getEnvOrDefault("DB_PASSWORD", ""),
			DatabaseName: getEnvOrDefault("DB_NAME", "converse_db"),
			MaxOpenConns: getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvIntOrDefault("DB_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getEnvIntOrDefault("REDIS_DB", 0),
		},
		Mongo: MongoConfig{
			URI:          getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017"),
			DatabaseName: getEnvOrDefault("MONGO_DB", "converse_media"),
			Bucket:       getEnvOrDefault("MONGO_BUCKET", "attachments"),
		},
		Notification: NotificationConfig{
			Workers:            getEnvIntOrDefault("NOTIF_WORKERS", 5),
			ChannelBufferSize:  getEnvIntOrDefault("NOTIF_BUFFER", 1000),
			SubscriberOverride: getEnvOrDefault("NOTIF_SUBSCRIBER_OVERRIDE", "false") == "true",
			Enabled:            getEnvOrDefault("NOTIF_ENABLED", "true") == "true",
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
