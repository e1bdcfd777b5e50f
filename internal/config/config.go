package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "USERS_API"

// Config holds every setting the service needs. It is loaded once at
// startup and passed explicitly to the components that need it.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	API       APIConfig       `mapstructure:"api"`
	Token     TokenConfig     `mapstructure:"token"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// APIConfig describes the /<mount>/<version>/<resource> path layout.
type APIConfig struct {
	Mount        string `mapstructure:"mount"`
	Version      string `mapstructure:"version"`
	Resource     string `mapstructure:"resource"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`
}

// TokenConfig controls issuance and verification of bearer tokens.
// NotBefore is added to the issue time to form the nbf claim and is the
// grace window for clock drift. Leeway lets a verifier accept a token that
// early before nbf; exp is never extended.
type TokenConfig struct {
	Secret    string        `mapstructure:"secret"`
	Algorithm string        `mapstructure:"algorithm"`
	Issuer    string        `mapstructure:"issuer"`
	Audience  string        `mapstructure:"audience"`
	NotBefore time.Duration `mapstructure:"not_before"`
	TTL       time.Duration `mapstructure:"ttl"`
	Leeway    time.Duration `mapstructure:"leeway"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// RedisConfig is optional. An empty Addr disables Redis and the rate
// limiter falls back to process memory.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
}

type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("api.mount", "api")
	v.SetDefault("api.version", "v1")
	v.SetDefault("api.resource", "users")
	v.SetDefault("api.max_body_bytes", int64(1<<20))

	v.SetDefault("token.secret", "")
	v.SetDefault("token.algorithm", "HS512")
	v.SetDefault("token.issuer", "THE_ISSUER")
	v.SetDefault("token.audience", "THE_AUDIENCE")
	v.SetDefault("token.not_before", 10*time.Second)
	v.SetDefault("token.ttl", time.Hour)
	v.SetDefault("token.leeway", time.Duration(0))

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./users.db")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", 15*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "logs")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "otel-collector:4317")
	v.SetDefault("telemetry.service_name", "user-service")
}

// Load reads defaults, the optional YAML file at path and USERS_API_*
// environment variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that would make the service unusable.
func (c *Config) Validate() error {
	if c.Token.Secret == "" {
		return errors.New("config: token.secret must be set")
	}
	switch c.Token.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("config: unsupported token.algorithm %q", c.Token.Algorithm)
	}
	if c.Token.TTL <= 0 {
		return errors.New("config: token.ttl must be positive")
	}
	if c.Token.NotBefore < 0 || c.Token.Leeway < 0 {
		return errors.New("config: token.not_before and token.leeway must not be negative")
	}
	if c.API.Version == "" || c.API.Resource == "" {
		return errors.New("config: api.version and api.resource must be set")
	}
	switch c.Database.Driver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("config: unsupported database.driver %q", c.Database.Driver)
	}
	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		return errors.New("config: rate_limit.requests and rate_limit.window must be positive")
	}
	return nil
}
