// Package config loads service configuration from a YAML file validated against an
// embedded CUE schema, then applies ORBITSCREEN_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Log         LogConfig         `yaml:"log"`
	Propagation PropagationConfig `yaml:"propagation"`
	Screening   ScreeningConfig   `yaml:"screening"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Server      ServerConfig      `yaml:"server"`
	Alerts      AlertsConfig      `yaml:"alerts"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type PropagationConfig struct {
	Gravity string `yaml:"gravity"`
	Workers int    `yaml:"workers"`
}

type ScreeningConfig struct {
	ThresholdKm     float64 `yaml:"threshold_km"`
	HorizonHours    float64 `yaml:"horizon_hours"`
	IntervalMinutes int     `yaml:"interval_minutes"`
	ReportCacheSize int     `yaml:"report_cache_size"`
}

// Horizon returns the screened window length.
func (s ScreeningConfig) Horizon() time.Duration {
	return time.Duration(s.HorizonHours * float64(time.Hour))
}

// Interval returns the time between periodic screenings.
func (s ScreeningConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// CatalogConfig controls where TLEs come from. A File takes precedence over
// fetching.
type CatalogConfig struct {
	File          string   `yaml:"file"`
	Fetch         bool     `yaml:"fetch"`
	SourceURL     string   `yaml:"source_url"`
	ExtraURLs     []string `yaml:"extra_urls"`
	CacheDir      string   `yaml:"cache_dir"`
	CacheMaxFiles int      `yaml:"cache_max_files"`
	MaxAgeHours   float64  `yaml:"max_age_hours"`
}

// MaxAge returns how old the catalog may get before it is refetched.
func (c CatalogConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeHours * float64(time.Hour))
}

type ServerConfig struct {
	Addr                   string `yaml:"addr"`
	AuthEnabled            bool   `yaml:"auth_enabled"`
	AuthToken              string `yaml:"auth_token"`
	TrustProxy             bool   `yaml:"trust_proxy"`
	StreamMaxPerIP         int    `yaml:"stream_max_per_ip"`
	StreamKeepaliveSeconds int    `yaml:"stream_keepalive_seconds"`
}

// AlertsConfig selects the alert broker. Alerts are logged when NATSURL is empty.
type AlertsConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:         LogConfig{Level: "info", Format: "json"},
		Propagation: PropagationConfig{Gravity: "wgs72", Workers: runtime.NumCPU()},
		Screening: ScreeningConfig{
			ThresholdKm:     10,
			HorizonHours:    24,
			IntervalMinutes: 60,
			ReportCacheSize: 32,
		},
		Catalog: CatalogConfig{
			Fetch:         true,
			SourceURL:     "https://celestrak.org/NORAD/elements/gp.php?GROUP=active&FORMAT=tle",
			CacheDir:      "/tmp/orbitscreen/tle",
			CacheMaxFiles: 5,
			MaxAgeHours:   24,
		},
		Server: ServerConfig{
			Addr:                   ":8080",
			StreamMaxPerIP:         10,
			StreamKeepaliveSeconds: 30,
		},
		Alerts: AlertsConfig{Subject: "orbitscreen.alerts"},
	}
}

// Load reads path (if non-empty) over the defaults and applies environment
// overrides. Invalid environment values are logged and ignored; an invalid file
// is an error.
func Load(path string, logger *slog.Logger) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("cannot read config: %w", err)
		}
		if err := Validate(path, data); err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("cannot unmarshal config: %w", err)
		}
	}

	applyEnv(&cfg, logger)

	if cfg.Server.AuthEnabled && cfg.Server.AuthToken == "" {
		return cfg, errors.New("server.auth_token (ORBITSCREEN_AUTH_TOKEN) is required when auth is enabled")
	}

	logger.Info("configuration loaded",
		"file", path,
		"gravity", cfg.Propagation.Gravity,
		"workers", cfg.Propagation.Workers,
		"threshold_km", cfg.Screening.ThresholdKm,
		"horizon_hours", cfg.Screening.HorizonHours,
		"catalog_file", cfg.Catalog.File,
		"catalog_fetch", cfg.Catalog.Fetch,
		"auth_enabled", cfg.Server.AuthEnabled,
		"nats_url", cfg.Alerts.NATSURL,
	)
	return cfg, nil
}

func applyEnv(cfg *Config, logger *slog.Logger) {
	envString("ORBITSCREEN_LOG_LEVEL", &cfg.Log.Level)
	envString("ORBITSCREEN_LOG_FORMAT", &cfg.Log.Format)

	if v := os.Getenv("ORBITSCREEN_GRAVITY"); v != "" {
		switch g := strings.ToLower(v); g {
		case "wgs72", "wgs84":
			cfg.Propagation.Gravity = g
		default:
			logger.Warn("invalid ORBITSCREEN_GRAVITY value, using default", "value", v, "default", cfg.Propagation.Gravity)
		}
	}
	envInt(logger, "ORBITSCREEN_WORKERS", 1, &cfg.Propagation.Workers)

	envFloat(logger, "ORBITSCREEN_THRESHOLD_KM", &cfg.Screening.ThresholdKm)
	envFloat(logger, "ORBITSCREEN_HORIZON_HOURS", &cfg.Screening.HorizonHours)
	envInt(logger, "ORBITSCREEN_INTERVAL_MINUTES", 1, &cfg.Screening.IntervalMinutes)
	envInt(logger, "ORBITSCREEN_REPORT_CACHE_SIZE", 1, &cfg.Screening.ReportCacheSize)

	envString("ORBITSCREEN_CATALOG_FILE", &cfg.Catalog.File)
	envBool(logger, "ORBITSCREEN_ENABLE_TLE_FETCH", &cfg.Catalog.Fetch)
	envString("ORBITSCREEN_TLE_SOURCE_URL", &cfg.Catalog.SourceURL)
	if v := os.Getenv("ORBITSCREEN_TLE_EXTRA_URLS"); v != "" {
		var urls []string
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		cfg.Catalog.ExtraURLs = urls
	}
	envString("ORBITSCREEN_TLE_CACHE_DIR", &cfg.Catalog.CacheDir)
	envFloat(logger, "ORBITSCREEN_TLE_MAX_AGE_HOURS", &cfg.Catalog.MaxAgeHours)

	envString("ORBITSCREEN_HTTP_ADDR", &cfg.Server.Addr)
	envBool(logger, "ORBITSCREEN_AUTH_ENABLED", &cfg.Server.AuthEnabled)
	envString("ORBITSCREEN_AUTH_TOKEN", &cfg.Server.AuthToken)
	envBool(logger, "ORBITSCREEN_TRUST_PROXY", &cfg.Server.TrustProxy)
	envInt(logger, "ORBITSCREEN_STREAM_MAX_CONCURRENT", 1, &cfg.Server.StreamMaxPerIP)
	envInt(logger, "ORBITSCREEN_STREAM_KEEPALIVE_INTERVAL", 1, &cfg.Server.StreamKeepaliveSeconds)

	envString("ORBITSCREEN_NATS_URL", &cfg.Alerts.NATSURL)
	envString("ORBITSCREEN_ALERT_SUBJECT", &cfg.Alerts.Subject)
}

func envString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func envInt(logger *slog.Logger, name string, min int, dst *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min {
		logger.Warn("invalid "+name+" value, using default", "value", v, "default", *dst)
		return
	}
	*dst = n
}

func envFloat(logger *slog.Logger, name string, dst *float64) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		logger.Warn("invalid "+name+" value, using default", "value", v, "default", *dst)
		return
	}
	*dst = f
}

func envBool(logger *slog.Logger, name string, dst *bool) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid "+name+" value, using default", "value", v, "default", *dst)
		return
	}
	*dst = b
}
