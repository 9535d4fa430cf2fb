package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      string `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// JWTConfig carries the signing key and token lifetimes.
type JWTConfig struct {
	TokenKey                 string `mapstructure:"token_key"`
	Issuer                   string `mapstructure:"issuer"`
	Audience                 string `mapstructure:"audience"`
	AccessTokenExpiryMinutes int    `mapstructure:"access_token_expiry_minutes"`
	RefreshTokenExpiryDays   int    `mapstructure:"refresh_token_expiry_days"`
}

type TokenStoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type CleanupConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type RateLimitConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	RefreshPerMinute int  `mapstructure:"refresh_per_minute"`
	AuthPerMinute    int  `mapstructure:"auth_per_minute"`
}

type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Server     ServerConfig     `mapstructure:"server"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	TokenStore TokenStoreConfig `mapstructure:"token_store"`
	Cleanup    CleanupConfig    `mapstructure:"cleanup"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
}

const (
	TokenStorePostgres = "postgres"
	TokenStoreRedis    = "redis"
)

var AppConfig Config

func LoadConfig(path string) {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("Error loading configuration, %s", err)
	}
	AppConfig = *cfg
}

// Load reads config.yml from path, applies environment overrides
// (jwt.token_key -> JWT_TOKEN_KEY) and fills in defaults.
// A missing config file is not an error; everything can come from the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	switch cfg.TokenStore.Driver {
	case TokenStorePostgres, TokenStoreRedis:
	default:
		return nil, fmt.Errorf("unsupported token_store.driver %q", cfg.TokenStore.Driver)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_timeout", "5s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "drawapi")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "rt")

	// token_key has no default on purpose; startup fails without it.
	v.SetDefault("jwt.token_key", "")
	v.SetDefault("jwt.issuer", "go-draw-api")
	v.SetDefault("jwt.audience", "go-draw-client")
	v.SetDefault("jwt.access_token_expiry_minutes", 15)
	v.SetDefault("jwt.refresh_token_expiry_days", 7)

	v.SetDefault("token_store.driver", TokenStorePostgres)
	v.SetDefault("cleanup.interval", "24h")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.refresh_per_minute", 10)
	v.SetDefault("rate_limit.auth_per_minute", 5)
}
