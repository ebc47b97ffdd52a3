// Package config loads the catalog.yaml file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/character-catalog/pkg/catalog"
	"github.com/Sternrassler/character-catalog/pkg/logging"
)

// DefaultPath is the config file looked up when no path is given.
const DefaultPath = "catalog.yaml"

// Environment variables that override file values.
const (
	EnvBaseURL   = "CATALOG_BASE_URL"
	EnvUserAgent = "CATALOG_USER_AGENT"
	EnvRedisURL  = "REDIS_URL"
	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
)

// DefaultUserAgent identifies the catalog tools when nothing else is set.
const DefaultUserAgent = "character-catalog/0.1.0"

type Config struct {
	Catalog struct {
		BaseURL     string  `yaml:"baseURL"`
		UserAgent   string  `yaml:"userAgent"`
		Timeout     string  `yaml:"timeout"`
		RateLimit   float64 `yaml:"rateLimit"`
		Burst       int     `yaml:"burst"`
		Conditional *bool   `yaml:"conditionalRequests"`
		Retry       struct {
			MaxAttempts    int     `yaml:"maxAttempts"`
			InitialBackoff string  `yaml:"initialBackoff"`
			MaxBackoff     string  `yaml:"maxBackoff"`
			Multiplier     float64 `yaml:"multiplier"`
		} `yaml:"retry"`
	} `yaml:"catalog"`

	Redis struct {
		// URL is either a redis:// URL or a host:port address. Empty disables
		// the shared backoff state.
		URL string `yaml:"url"`
	} `yaml:"redis"`

	Server struct {
		Port            int    `yaml:"port"`
		ShutdownTimeout string `yaml:"shutdownTimeout"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`

	// compiled
	timeout         time.Duration
	initialBackoff  time.Duration
	maxBackoff      time.Duration
	shutdownTimeout time.Duration
	logLevel        logging.LogLevel
}

// Default returns the configuration used when no file exists.
func Default() Config {
	var cfg Config
	if err := cfg.finish(); err != nil {
		// defaults are valid by construction
		panic(err)
	}
	return cfg
}

// Load reads path, applies defaults and environment overrides and validates
// the result. A missing file is not an error when path is DefaultPath.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath
	}

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == DefaultPath:
	default:
		return Config{}, err
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.finish(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Overrides are values given on the command line. Empty fields keep the
// loaded value.
type Overrides struct {
	BaseURL  string
	LogLevel string
	Pretty   bool
}

// Override applies o on top of cfg and validates the result again.
func (cfg Config) Override(o Overrides) (Config, error) {
	if o.BaseURL != "" {
		cfg.Catalog.BaseURL = o.BaseURL
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.Pretty {
		cfg.Log.Pretty = true
	}
	if err := cfg.finish(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) applyEnv(getenv func(string) string) error {
	if v := getenv(EnvBaseURL); v != "" {
		cfg.Catalog.BaseURL = v
	}
	if v := getenv(EnvUserAgent); v != "" {
		cfg.Catalog.UserAgent = v
	}
	if v := getenv(EnvRedisURL); v != "" {
		cfg.Redis.URL = v
	}
	if v := getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid port %q", EnvPort, v)
		}
		cfg.Server.Port = port
	}
	if v := getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	return nil
}

// finish applies defaults, parses durations and validates.
func (cfg *Config) finish() error {
	def := catalog.DefaultConfig(DefaultUserAgent)

	if cfg.Catalog.BaseURL == "" {
		cfg.Catalog.BaseURL = def.BaseURL
	}
	cfg.Catalog.BaseURL = strings.TrimRight(cfg.Catalog.BaseURL, "/")
	if cfg.Catalog.UserAgent == "" {
		cfg.Catalog.UserAgent = def.UserAgent
	}
	if cfg.Catalog.RateLimit == 0 {
		cfg.Catalog.RateLimit = def.RateLimit
	}
	if cfg.Catalog.Burst == 0 {
		cfg.Catalog.Burst = def.Burst
	}
	if cfg.Catalog.Retry.MaxAttempts == 0 {
		cfg.Catalog.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if cfg.Catalog.Retry.Multiplier == 0 {
		cfg.Catalog.Retry.Multiplier = def.Retry.BackoffMultiplier
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	var err error
	if cfg.timeout, err = duration("catalog.timeout", cfg.Catalog.Timeout, def.Timeout); err != nil {
		return err
	}
	if cfg.initialBackoff, err = duration("catalog.retry.initialBackoff", cfg.Catalog.Retry.InitialBackoff, def.Retry.InitialBackoff); err != nil {
		return err
	}
	if cfg.maxBackoff, err = duration("catalog.retry.maxBackoff", cfg.Catalog.Retry.MaxBackoff, def.Retry.MaxBackoff); err != nil {
		return err
	}
	if cfg.shutdownTimeout, err = duration("server.shutdownTimeout", cfg.Server.ShutdownTimeout, 10*time.Second); err != nil {
		return err
	}
	if cfg.logLevel, err = logging.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port: out of range (got %d)", cfg.Server.Port)
	}
	if cfg.maxBackoff < cfg.initialBackoff {
		return fmt.Errorf("catalog.retry.maxBackoff: must be >= initialBackoff (%s < %s)", cfg.maxBackoff, cfg.initialBackoff)
	}
	if _, err := cfg.redisOptions(); err != nil {
		return fmt.Errorf("redis.url: %w", err)
	}
	if err := cfg.ClientConfig(nil).Validate(); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	return nil
}

func duration(field, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be > 0 (got %s)", field, d)
	}
	return d, nil
}

// ClientConfig returns the catalog client configuration. rdb may be nil.
func (cfg Config) ClientConfig(rdb *redis.Client) catalog.Config {
	conditional := true
	if cfg.Catalog.Conditional != nil {
		conditional = *cfg.Catalog.Conditional
	}
	return catalog.Config{
		BaseURL:   cfg.Catalog.BaseURL,
		UserAgent: cfg.Catalog.UserAgent,
		Timeout:   cfg.timeout,
		RateLimit: cfg.Catalog.RateLimit,
		Burst:     cfg.Catalog.Burst,
		Retry: catalog.RetryConfig{
			MaxAttempts:       cfg.Catalog.Retry.MaxAttempts,
			InitialBackoff:    cfg.initialBackoff,
			MaxBackoff:        cfg.maxBackoff,
			BackoffMultiplier: cfg.Catalog.Retry.Multiplier,
		},
		ConditionalRequests: conditional,
		Redis:               rdb,
	}
}

// LogConfig returns the logging configuration.
func (cfg Config) LogConfig() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = cfg.logLevel
	lc.Pretty = cfg.Log.Pretty
	return lc
}

// Addr is the listen address of the HTTP server.
func (cfg Config) Addr() string {
	return ":" + strconv.Itoa(cfg.Server.Port)
}

// ShutdownTimeout bounds graceful server shutdown.
func (cfg Config) ShutdownTimeout() time.Duration {
	return cfg.shutdownTimeout
}

// RedisClient returns a client for the configured redis, or nil when none is
// configured.
func (cfg Config) RedisClient() *redis.Client {
	opts, _ := cfg.redisOptions()
	if opts == nil {
		return nil
	}
	return redis.NewClient(opts)
}

func (cfg Config) redisOptions() (*redis.Options, error) {
	raw := strings.TrimSpace(cfg.Redis.URL)
	if raw == "" {
		return nil, nil
	}
	if strings.Contains(raw, "://") {
		return redis.ParseURL(raw)
	}
	return &redis.Options{Addr: raw}, nil
}
