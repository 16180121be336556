package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Query    QueryConfig    `mapstructure:"query"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Security SecurityConfig `mapstructure:"security"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	URI            string        `mapstructure:"uri"`
	Name           string        `mapstructure:"name"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// QueryConfig bounds every analytics execution. MaxRows caps the group
// count regardless of the limit a request declares; Timeout bounds how
// long a single aggregation may run before it fails.
type QueryConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	DefaultLimit int           `mapstructure:"default_limit"`
	MaxRows      int           `mapstructure:"max_rows"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RateLimit      int      `mapstructure:"rate_limit"`
	RateBurst      int      `mapstructure:"rate_burst"`
}

// Load reads configuration from ./configs/config.yaml (or ./config.yaml)
// with environment variable overrides.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()
	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("database.uri", "MONGODB_URI")
	viper.BindEnv("database.name", "MONGODB_DB")
	viper.BindEnv("logging.level", "LOG_LEVEL")

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional; defaults plus env are enough to run.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.mode", "development")

	viper.SetDefault("database.uri", "mongodb://localhost:27018")
	viper.SetDefault("database.name", "apms")
	viper.SetDefault("database.connect_timeout", "10s")

	viper.SetDefault("query.timeout", "15s")
	viper.SetDefault("query.default_limit", 200)
	viper.SetDefault("query.max_rows", 5000)

	viper.SetDefault("logging.level", "info")

	viper.SetDefault("security.allowed_origins", []string{"*"})
	viper.SetDefault("security.rate_limit", 100)
	viper.SetDefault("security.rate_burst", 200)
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Database.URI == "" {
		return fmt.Errorf("database.uri must not be empty")
	}
	if cfg.Database.Name == "" {
		return fmt.Errorf("database.name must not be empty")
	}
	if cfg.Query.Timeout <= 0 {
		return fmt.Errorf("query.timeout must be positive")
	}
	if cfg.Query.DefaultLimit <= 0 || cfg.Query.MaxRows <= 0 {
		return fmt.Errorf("query.default_limit and query.max_rows must be positive")
	}
	return nil
}
