// Package config loads the engine configuration from formworks.yml
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config represents the Formworks configuration
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Server     ServerConfig     `mapstructure:"server"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Submission SubmissionConfig `mapstructure:"submission"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisConfig represents the session store configuration
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SubmissionConfig represents submission pipeline configuration
type SubmissionConfig struct {
	MultiValueDelimiter  string        `mapstructure:"multi_value_delimiter"`
	QueryStringSeparator string        `mapstructure:"query_string_separator"`
	DateFormat           string        `mapstructure:"date_format"`
	CaptchaParkTTL       time.Duration `mapstructure:"captcha_park_ttl"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads the configuration from formworks.yml or formworks.yaml
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 3000)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("submission.multi_value_delimiter", ", ")
	v.SetDefault("submission.query_string_separator", ",")
	v.SetDefault("submission.date_format", "2006-01-02 15:04:05")
	v.SetDefault("submission.captcha_park_ttl", 30*time.Minute)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetConfigName("formworks")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/formworks")

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		config.Database.URL = url
	}
	if config.Database.URL == "" {
		return nil, fmt.Errorf("database.url is required (or set DATABASE_URL)")
	}
	return &config, nil
}
