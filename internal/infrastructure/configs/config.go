package configs

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/seeker014/SilentRoom/internal/infrastructure/env"
	"github.com/seeker014/SilentRoom/internal/infrastructure/logging"
)

type Config struct {
	HTTP        HTTPConfig           `koanf:"http"`
	RateLimiter RateLimiterConfig    `koanf:"rateLimiter"`
	Store       StoreConfig          `koanf:"store"`
	Identity    IdentityConfig       `koanf:"identity"`
	Auth        AuthConfig           `koanf:"auth"`
	Messaging   MessagingConfig      `koanf:"messaging"`
	WS          WSConfig             `koanf:"ws"`
	Tracing     TracingConfig        `koanf:"tracing"`
	Logger      logging.LoggerConfig `koanf:"logger"`
}

type HTTPConfig struct {
	Host           string        `koanf:"host"`
	Port           uint16        `koanf:"port"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	AllowedHeaders []string      `koanf:"allowed_headers"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
}

type RateLimiterConfig struct {
	MaxRatePerSecond int           `koanf:"maxRatePerSecond"`
	MaxBurst         int           `koanf:"maxBurst"`
	CacheTTL         time.Duration `koanf:"cacheTTL"`
	SourceHeaderKey  string        `koanf:"sourceHeaderKey"`
}

// StoreConfig selects the conversation store backend: memory, sqlite or mongo.
type StoreConfig struct {
	Driver     string `koanf:"driver"`
	SQLitePath string `koanf:"sqlite_path"`
	MongoURI   string `koanf:"mongo_uri"`
	MongoDB    string `koanf:"mongo_database"`
}

// IdentityConfig selects where display names come from: memory or mongo.
// Seed maps participant ids to nicknames for the memory directory.
type IdentityConfig struct {
	Driver string            `koanf:"driver"`
	Seed   map[string]string `koanf:"seed"`
}

type AuthConfig struct {
	JWTSecret  string `koanf:"jwt_secret"`
	CookieName string `koanf:"cookie_name"`
}

type MessagingConfig struct {
	RabbitMQURI string `koanf:"rabbitmq_uri"`
}

type WSConfig struct {
	SendBufferSize  int           `koanf:"send_buffer_size"`
	PingInterval    time.Duration `koanf:"ping_interval"`
	MaxMessageBytes int64         `koanf:"max_message_bytes"`
	SendLimit       int           `koanf:"send_limit"`
	SendWindow      time.Duration `koanf:"send_window"`
}

type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	Environment string `koanf:"environment"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load from YAML file if it exists
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyDefaults(k)
	applyEnvOverrides(k)

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite", "mongo":
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}

	switch c.Identity.Driver {
	case "memory", "mongo":
	default:
		return fmt.Errorf("unsupported identity driver %q", c.Identity.Driver)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	return nil
}

func applyDefaults(k *koanf.Koanf) {
	// HTTP defaults
	setDefault(k, "http.host", "0.0.0.0")
	setDefault(k, "http.port", 5000)
	setDefault(k, "http.read_timeout", 10*time.Second)
	setDefault(k, "http.write_timeout", 30*time.Second)
	setDefault(k, "http.allowed_origins", []string{"*"})
	setDefault(k, "http.allowed_headers", []string{"Content-Type", "Authorization"})

	// Rate limiter defaults
	setDefault(k, "rateLimiter.maxRatePerSecond", 10)
	setDefault(k, "rateLimiter.maxBurst", 20)
	setDefault(k, "rateLimiter.cacheTTL", 5*time.Minute)
	setDefault(k, "rateLimiter.sourceHeaderKey", "X-Forwarded-For")

	// Store defaults
	setDefault(k, "store.driver", "memory")
	setDefault(k, "store.sqlite_path", "./data/silentroom.db")
	setDefault(k, "store.mongo_uri", "mongodb://localhost:27017")
	setDefault(k, "store.mongo_database", "silentroom")

	setDefault(k, "identity.driver", "memory")

	setDefault(k, "auth.cookie_name", "token")

	// WebSocket defaults
	setDefault(k, "ws.send_buffer_size", 64)
	setDefault(k, "ws.ping_interval", 25*time.Second)
	setDefault(k, "ws.max_message_bytes", 8192)
	setDefault(k, "ws.send_limit", 10)
	setDefault(k, "ws.send_window", time.Second)

	setDefault(k, "tracing.enabled", false)
	setDefault(k, "tracing.endpoint", "http://jaeger:4318/v1/traces")
	setDefault(k, "tracing.environment", "development")

	setDefault(k, "logger.encoding", "json")
	setDefault(k, "logger.level", "info")
	setDefault(k, "logger.logger", "zap")
}

func applyEnvOverrides(k *koanf.Koanf) {
	// HTTP config from env
	if host := env.GetString("HTTP_HOST", ""); host != "" {
		k.Set("http.host", host)
	}
	if port := env.GetInt("PORT", 0); port > 0 {
		k.Set("http.port", port)
	}
	if port := env.GetInt("HTTP_PORT", 0); port > 0 {
		k.Set("http.port", port)
	}
	if origins := env.GetStrings("CLIENT_URL", nil); len(origins) > 0 {
		k.Set("http.allowed_origins", origins)
	}
	if readTimeout := env.GetInt("HTTP_READ_TIMEOUT_SECONDS", 0); readTimeout > 0 {
		k.Set("http.read_timeout", time.Duration(readTimeout)*time.Second)
	}
	if writeTimeout := env.GetInt("HTTP_WRITE_TIMEOUT_SECONDS", 0); writeTimeout > 0 {
		k.Set("http.write_timeout", time.Duration(writeTimeout)*time.Second)
	}

	// Rate limiter config from env
	if maxRate := env.GetInt("RATE_LIMIT_MAX_RATE_PER_SECOND", 0); maxRate > 0 {
		k.Set("rateLimiter.maxRatePerSecond", maxRate)
	}
	if maxBurst := env.GetInt("RATE_LIMIT_MAX_BURST", 0); maxBurst > 0 {
		k.Set("rateLimiter.maxBurst", maxBurst)
	}
	if cacheTTL := env.GetInt("RATE_LIMIT_CACHE_TTL_MINUTES", 0); cacheTTL > 0 {
		k.Set("rateLimiter.cacheTTL", time.Duration(cacheTTL)*time.Minute)
	}
	if sourceKey := env.GetString("RATE_LIMIT_SOURCE_HEADER_KEY", ""); sourceKey != "" {
		k.Set("rateLimiter.sourceHeaderKey", sourceKey)
	}

	// Store and identity
	if driver := env.GetString("STORE_DRIVER", ""); driver != "" {
		k.Set("store.driver", driver)
	}
	if path := env.GetString("SQLITE_PATH", ""); path != "" {
		k.Set("store.sqlite_path", path)
	}
	if uri := env.GetString("MONGODB_URI", ""); uri != "" {
		k.Set("store.mongo_uri", uri)
	}
	if database := env.GetString("MONGODB_DATABASE", ""); database != "" {
		k.Set("store.mongo_database", database)
	}
	if driver := env.GetString("IDENTITY_DRIVER", ""); driver != "" {
		k.Set("identity.driver", driver)
	}

	if secret := env.GetString("JWT_SECRET", ""); secret != "" {
		k.Set("auth.jwt_secret", secret)
	}
	if uri := env.GetString("RABBITMQ_URI", ""); uri != "" {
		k.Set("messaging.rabbitmq_uri", uri)
	}

	if endpoint := env.GetString("JAEGER_ENDPOINT", ""); endpoint != "" {
		k.Set("tracing.endpoint", endpoint)
		k.Set("tracing.enabled", true)
	}
	if environment := env.GetString("ENVIRONMENT", ""); environment != "" {
		k.Set("tracing.environment", environment)
	}

	if level := env.GetString("LOGGER_LEVEL", ""); level != "" {
		k.Set("logger.level", level)
	}
	if backend := env.GetString("LOGGER_LOGGER", ""); backend != "" {
		k.Set("logger.logger", backend)
	}
	if path := env.GetString("LOGGER_FILE_PATH", ""); path != "" {
		k.Set("logger.file_path", path)
	}
}

// setDefault only sets the value if the key doesn't already exist
func setDefault(k *koanf.Koanf, key string, value any) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}
