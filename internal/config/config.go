package config

import (
	"errors"
	"time"

	"tailorly/internal/logger"
)

// Defaults
const (
	DefaultWebPort        = "3000"
	DefaultAPIServiceName = "api"
	DefaultAPITimeout     = 15 * time.Second
	DefaultSessionMaxAge  = 24 * time.Hour
	DefaultAllowedOrigin  = "http://localhost:3000"
)

// Config is the environment of the web process
type Config struct {
	Env     string
	WebHost string
	WebPort string

	// APIBaseURL is used when Consul is not configured
	APIBaseURL     string
	APIServiceName string
	APITimeout     time.Duration

	// RedisAddr empty selects the in-memory session store
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionMaxAge time.Duration

	AllowedOrigins []string

	ConsulAddr  string
	ConsulToken string

	// KafkaBrokers empty disables audit events
	KafkaBrokers string

	LogLevel  string
	LogFormat string
}

// Load reads the configuration from the environment and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Env:            GetEnvOrDefault("APP_ENV", "development"),
		WebHost:        GetEnvOrDefault("WEB_HOST", "localhost"),
		WebPort:        GetEnvOrDefault("WEB_PORT", DefaultWebPort),
		APIBaseURL:     GetEnvOrDefault("API_BASE_URL", ""),
		APIServiceName: GetEnvOrDefault("API_SERVICE_NAME", DefaultAPIServiceName),
		RedisAddr:      GetEnvOrDefault("REDIS_ADDR", ""),
		RedisPassword:  GetEnvOrDefault("REDIS_PASSWORD", ""),
		AllowedOrigins: splitList(GetEnvOrDefault("CORS_ALLOWED_ORIGINS", DefaultAllowedOrigin)),
		ConsulAddr:     GetEnvOrDefault("CONSUL_HTTP_ADDR", ""),
		ConsulToken:    GetEnvOrDefault("CONSUL_HTTP_TOKEN", ""),
		KafkaBrokers:   GetEnvOrDefault("KAFKA_BROKERS", ""),
		LogLevel:       GetEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:      GetEnvOrDefault("LOG_FORMAT", "json"),
	}

	var errs []error
	var err error

	if cfg.RedisDB, err = getIntOrDefault("REDIS_DB", 0); err != nil {
		errs = append(errs, err)
	}
	if cfg.APITimeout, err = getDurationOrDefault("API_TIMEOUT", DefaultAPITimeout); err != nil {
		errs = append(errs, err)
	}
	if cfg.SessionMaxAge, err = getDurationOrDefault("SESSION_MAX_AGE", DefaultSessionMaxAge); err != nil {
		errs = append(errs, err)
	}

	// Without Consul there is nowhere else to find the API
	if cfg.ConsulAddr == "" {
		if err := ValidateEnv([]string{"API_BASE_URL"}); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Production reports whether APP_ENV is production
func (c *Config) Production() bool {
	return c.Env == "production"
}

// UseConsul reports whether the API is discovered through Consul
func (c *Config) UseConsul() bool {
	return c.ConsulAddr != ""
}

// UseRedis reports whether sessions live in Redis
func (c *Config) UseRedis() bool {
	return c.RedisAddr != ""
}

// LogOptions returns the logger settings chosen by LOG_LEVEL and LOG_FORMAT
func (c *Config) LogOptions() logger.Options {
	return logger.Options{Level: c.LogLevel, Format: c.LogFormat}
}
