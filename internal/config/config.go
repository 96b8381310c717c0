package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/covid-data-explorer/internal/common"
	"github.com/i474232898/covid-data-explorer/internal/epidata"
)

type AppConfig struct {
	// DataSourceURL is the OWID CSV export; empty means the public default.
	DataSourceURL   string        `yaml:"data_source_url"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"` // 0 = no client timeout
	FetchMaxRetries int           `yaml:"fetch_max_retries"`

	// CacheTTL is how long a loaded dataset is served before refetching.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// RefreshInterval controls background refreshes (0 = disabled).
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	DefaultCountries       []string       `yaml:"default_countries"`
	DefaultMetric          epidata.Metric `yaml:"default_metric"`
	ForecastSeasonalPeriod int            `yaml:"forecast_seasonal_period"`

	Port            string        `yaml:"port"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func defaults() *AppConfig {
	return &AppConfig{
		CacheTTL:         time.Hour,
		DefaultCountries: []string{"India"},
		DefaultMetric:    epidata.MetricNewCases,
		Port:             "8080",
		LogLevel:         "info",
		LogFormat:        "json",
		ShutdownTimeout:  10 * time.Second,
	}
}

// Load reads configuration from .env, an optional YAML file named by
// CONFIG_FILE and the environment, in that order of increasing precedence.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *AppConfig) loadEnv() error {
	c.DataSourceURL = getenvDefault("DATA_SOURCE_URL", c.DataSourceURL)
	c.Port = getenvDefault("PORT", c.Port)
	c.LogLevel = getenvDefault("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getenvDefault("LOG_FORMAT", c.LogFormat)

	if v := os.Getenv("DEFAULT_COUNTRIES"); v != "" {
		c.DefaultCountries = common.Dedupe(common.SplitList(v))
	}

	if v := os.Getenv("DEFAULT_METRIC"); v != "" {
		m, err := epidata.ParseMetric(v)
		if err != nil {
			return fmt.Errorf("invalid DEFAULT_METRIC: %w", err)
		}
		c.DefaultMetric = m
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"FETCH_TIMEOUT", &c.FetchTimeout},
		{"CACHE_TTL", &c.CacheTTL},
		{"REFRESH_INTERVAL", &c.RefreshInterval},
		{"SHUTDOWN_TIMEOUT", &c.ShutdownTimeout},
	}
	for _, d := range durations {
		if err := getenvDuration(d.key, d.dst); err != nil {
			return err
		}
	}

	if err := getenvInt("FETCH_MAX_RETRIES", &c.FetchMaxRetries); err != nil {
		return err
	}
	return getenvInt("FORECAST_SEASONAL_PERIOD", &c.ForecastSeasonalPeriod)
}

func (c *AppConfig) validate() error {
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if !c.DefaultMetric.Valid() {
		return fmt.Errorf("default_metric %q is not a known metric", c.DefaultMetric)
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("FETCH_TIMEOUT must not be negative, got %s", c.FetchTimeout)
	}
	if c.FetchMaxRetries < 0 {
		return fmt.Errorf("FETCH_MAX_RETRIES must not be negative, got %d", c.FetchMaxRetries)
	}
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func getenvInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}
