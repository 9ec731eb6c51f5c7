package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2beens/formcheck/internal/form"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// redis, backs the rate limiter
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`

	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	RateLimitPerMin    int      `toml:"rate_limit_per_min"`
	CorsAllowedOrigins []string `toml:"cors_allowed_origins"`

	// sessions
	SessionCacheSizeMB int           `toml:"session_cache_size_mb"`
	SessionTTL         time.Duration `toml:"session_ttl"`

	// analysis
	KeypointMinVisibility float64              `toml:"keypoint_min_visibility"`
	RepThreshold          float64              `toml:"rep_threshold"`
	Calibration           form.Calibration     `toml:"calibration"`
	Tempo                 form.TempoThresholds `toml:"tempo"`
}

// Default is the base every environment table is decoded over, so a config
// file only needs the keys it changes.
func Default() *Config {
	return &Config{
		Environment:           "development",
		Host:                  "localhost",
		Port:                  9000,
		LogLevel:              "debug",
		LogToStdout:           true,
		RedisHost:             "localhost",
		RedisPort:             "6379",
		PrometheusMetricsHost: "localhost",
		PrometheusMetricsPort: "2112",
		RateLimitPerMin:       600,
		SessionCacheSizeMB:    64,
		SessionTTL:            15 * time.Minute,
		KeypointMinVisibility: 0.5,
		RepThreshold:          form.DefaultRepThreshold,
		Calibration:           form.DefaultCalibration(),
		Tempo:                 form.DefaultTempoThresholds(),
	}
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config for env: %s", env)
	}
	return cfg, nil
}

// Load reads the TOML file at path and returns the validated config of env.
func Load(env, path string) (*Config, error) {
	devCfg := Default()
	prodCfg := Default()
	prodCfg.Environment = "production"

	t := &Toml{
		Development: devCfg,
		Production:  prodCfg,
	}
	md, err := toml.DecodeFile(path, t)
	if err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		log.Warnf("config: unknown key [%s]", key.String())
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", env, err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var err error
	if c.Port <= 0 || c.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("port out of range: %d", c.Port))
	}
	if c.RedisHost == "" || c.RedisPort == "" {
		err = multierr.Append(err, errors.New("redis host and port must be set"))
	}
	if c.PrometheusMetricsPort == "" {
		err = multierr.Append(err, errors.New("prometheus metrics port must be set"))
	}
	if c.RateLimitPerMin <= 0 {
		err = multierr.Append(err, fmt.Errorf("rate_limit_per_min must be positive, got %d", c.RateLimitPerMin))
	}
	if c.SessionCacheSizeMB <= 0 {
		err = multierr.Append(err, fmt.Errorf("session_cache_size_mb must be positive, got %d", c.SessionCacheSizeMB))
	}
	if c.SessionTTL < time.Second {
		err = multierr.Append(err, fmt.Errorf("session_ttl must be at least 1s, got %s", c.SessionTTL))
	}
	if c.KeypointMinVisibility < 0 || c.KeypointMinVisibility > 1 {
		err = multierr.Append(err, fmt.Errorf("keypoint_min_visibility must be within [0, 1], got %.2f", c.KeypointMinVisibility))
	}
	if c.RepThreshold < 0 {
		err = multierr.Append(err, fmt.Errorf("rep_threshold must not be negative, got %.2f", c.RepThreshold))
	}
	return multierr.Append(err, c.Calibration.Validate())
}
