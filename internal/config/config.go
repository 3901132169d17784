package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	QueryService QueryServiceConfig `mapstructure:"query_service"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Evaluation   EvaluationConfig   `mapstructure:"evaluation"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
	Mode string `mapstructure:"mode"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// QueryServiceConfig points at the external aggregation service
type QueryServiceConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout string `mapstructure:"timeout"`
}

type CacheConfig struct {
	DistinctTTL string `mapstructure:"distinct_ttl"`
}

type EvaluationConfig struct {
	Timeout string `mapstructure:"timeout"`
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()

	// Override specific values from env
	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("logging.level", "LOG_LEVEL")
	viper.BindEnv("query_service.base_url", "QUERY_SERVICE_URL")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine, defaults and env cover everything
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 3301)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.mode", "development")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("query_service.base_url", "http://localhost:3300")
	viper.SetDefault("query_service.timeout", "15s")
	viper.SetDefault("cache.distinct_ttl", "10m")
	viper.SetDefault("evaluation.timeout", "30s")
}

// QueryTimeout returns the parsed query service timeout
func (c *Config) QueryTimeout() time.Duration {
	return parseDurationOr(c.QueryService.Timeout, 15*time.Second)
}

// DistinctTTL returns the parsed distinct-value cache TTL
func (c *Config) DistinctTTL() time.Duration {
	return parseDurationOr(c.Cache.DistinctTTL, 10*time.Minute)
}

// EvaluationTimeout returns the parsed per-evaluation timeout
func (c *Config) EvaluationTimeout() time.Duration {
	return parseDurationOr(c.Evaluation.Timeout, 30*time.Second)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
