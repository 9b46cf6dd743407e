// Package config loads proxy settings from defaults, an optional JSON or
// YAML file, and environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Server struct {
	Port              string   `mapstructure:"port" validate:"required,numeric"`
	RequestTimeoutSec int      `mapstructure:"request_timeout_sec" validate:"gte=1"`
	AllowedOrigins    []string `mapstructure:"allowed_origins" validate:"dive,required"`
}

type AlphaVantage struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint" validate:"required,url"`
	// TimeoutSec bounds one provider round trip.
	TimeoutSec            int `mapstructure:"timeout_sec" validate:"gte=1"`
	MaxRequestsPerMinute  int `mapstructure:"max_requests_per_minute" validate:"gte=0"`
	Burst                 int `mapstructure:"burst" validate:"gte=1"`
	MinRequestIntervalSec int `mapstructure:"min_request_interval_sec" validate:"gte=0"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	Prefix   string `mapstructure:"prefix"`
}

type Cache struct {
	Backend string `mapstructure:"backend" validate:"oneof=memory redis"`
	TTLSec  int    `mapstructure:"ttl_sec" validate:"gte=1"`
	Redis   Redis  `mapstructure:"redis"`
}

type Log struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

type Config struct {
	Server       Server       `mapstructure:"server"`
	AlphaVantage AlphaVantage `mapstructure:"alphavantage"`
	Cache        Cache        `mapstructure:"cache"`
	Log          Log          `mapstructure:"log"`
}

// APIKeyMissing reports whether no provider key was configured.
func (c Config) APIKeyMissing() bool {
	return strings.TrimSpace(c.AlphaVantage.APIKey) == ""
}

func Default() Config {
	return Config{
		Server: Server{
			Port:              "8000",
			RequestTimeoutSec: 15,
			AllowedOrigins:    []string{"http://localhost:4321", "https://your-vercel-app.vercel.app"},
		},
		AlphaVantage: AlphaVantage{
			Endpoint:   "https://www.alphavantage.co/query",
			TimeoutSec: 10,
			Burst:      1,
		},
		Cache: Cache{
			Backend: "memory",
			TTLSec:  300,
			Redis:   Redis{Addr: "localhost:6379", Prefix: "stockproxy:"},
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// env maps config keys to the environment variables that override them.
var env = map[string]string{
	"server.port":                           "PORT",
	"server.request_timeout_sec":            "REQUEST_TIMEOUT_SEC",
	"server.allowed_origins":                "ALLOWED_ORIGINS",
	"alphavantage.api_key":                  "ALPHA_VANTAGE_API_KEY",
	"alphavantage.endpoint":                 "ALPHA_VANTAGE_ENDPOINT",
	"alphavantage.timeout_sec":              "ALPHA_VANTAGE_TIMEOUT_SEC",
	"alphavantage.max_requests_per_minute":  "ALPHA_VANTAGE_MAX_RPM",
	"alphavantage.burst":                    "ALPHA_VANTAGE_BURST",
	"alphavantage.min_request_interval_sec": "ALPHA_VANTAGE_MIN_INTERVAL_SEC",
	"cache.backend":                         "CACHE_BACKEND",
	"cache.ttl_sec":                         "CACHE_TTL_SEC",
	"cache.redis.addr":                      "REDIS_ADDR",
	"cache.redis.password":                  "REDIS_PASSWORD",
	"cache.redis.db":                        "REDIS_DB",
	"cache.redis.prefix":                    "REDIS_PREFIX",
	"log.level":                             "LOG_LEVEL",
	"log.format":                            "LOG_FORMAT",
}

// Load reads config from path. An empty path falls back to $CONFIG_FILE,
// then ./config.json or ./config.yaml if present; with no file at all the
// defaults apply. Environment variables override file values.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", name, err)
		}
	}

	if path == "" {
		path = discover()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.Server.AllowedOrigins = splitCSV(cfg.Server.AllowedOrigins)
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field rules.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Cache.Backend == "redis" && cfg.Cache.Redis.Addr == "" {
		return errors.New("invalid config: cache.redis.addr is required for the redis backend")
	}
	return nil
}

func discover() string {
	if p := os.Getenv("CONFIG_FILE"); p != "" {
		return p
	}
	for _, p := range []string{"config.json", "config.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.request_timeout_sec", d.Server.RequestTimeoutSec)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("alphavantage.api_key", d.AlphaVantage.APIKey)
	v.SetDefault("alphavantage.endpoint", d.AlphaVantage.Endpoint)
	v.SetDefault("alphavantage.timeout_sec", d.AlphaVantage.TimeoutSec)
	v.SetDefault("alphavantage.max_requests_per_minute", d.AlphaVantage.MaxRequestsPerMinute)
	v.SetDefault("alphavantage.burst", d.AlphaVantage.Burst)
	v.SetDefault("alphavantage.min_request_interval_sec", d.AlphaVantage.MinRequestIntervalSec)
	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.ttl_sec", d.Cache.TTLSec)
	v.SetDefault("cache.redis.addr", d.Cache.Redis.Addr)
	v.SetDefault("cache.redis.password", d.Cache.Redis.Password)
	v.SetDefault("cache.redis.db", d.Cache.Redis.DB)
	v.SetDefault("cache.redis.prefix", d.Cache.Redis.Prefix)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// splitCSV flattens entries that hold comma-separated lists, as env values do.
func splitCSV(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
