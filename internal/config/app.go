package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment identifies the runtime environment.
type Environment string

const (
	EnvDev     Environment = "dev"
	EnvStaging Environment = "staging"
	EnvProd    Environment = "prod"
)

// AppConfig is the root application configuration loaded at startup,
// covering the stable configuration inputs named in spec.md §6.
type AppConfig struct {
	Environment             Environment   `yaml:"environment"`
	DatabaseDSN             string        `yaml:"database_dsn"`
	TargetCatalogPath       string        `yaml:"target_catalog_path"`
	ScoringModelPath        string        `yaml:"scoring_model_path"`
	ScraperCBThreshold      int           `yaml:"scraper_cb_threshold"`
	ScraperCBCooldownMS     int           `yaml:"scraper_cb_cooldown_ms"`
	VolatilePollIntervalMS  int           `yaml:"volatile_poll_interval_ms"`
	MaxParallelPerPool      int           `yaml:"max_parallel_per_pool"`
	DefaultMaxEventsPerHour int           `yaml:"default_max_events_per_hour"`
	Telemetry               TelemetryConfig `yaml:"telemetry"`
	ControlAddr             string        `yaml:"control_addr"`
}

// TelemetryConfig configures the OTel exporter from the app config file;
// it is layered under the process-wide defaults in internal/telemetry.
type TelemetryConfig struct {
	OTLPEndpoint  string `yaml:"otlp_endpoint"`
	OTLPInsecure  bool   `yaml:"otlp_insecure"`
	ServiceName   string `yaml:"service_name"`
	EnableMetrics bool   `yaml:"enable_metrics"`
}

// Default returns the pipeline's documented defaults (spec.md §6).
func Default() AppConfig {
	return AppConfig{
		Environment:             EnvProd,
		DatabaseDSN:             "",
		TargetCatalogPath:       "config/targets.yaml",
		ScoringModelPath:        "config/scoring.yaml",
		ScraperCBThreshold:      3,
		ScraperCBCooldownMS:     900000,
		VolatilePollIntervalMS:  45000,
		MaxParallelPerPool:      6,
		DefaultMaxEventsPerHour: 20,
		ControlAddr:             ":8089",
	}
}

// LoadOrDefault reads path if present, merges it over the documented
// defaults, then applies environment variable overrides. It returns
// whether a file was actually found.
func LoadOrDefault(path string) (AppConfig, bool, error) {
	cfg := Default()
	path = resolvePath(path, "RELEASECORE_CONFIG", "config/app.yaml")

	loadedFromFile := false
	if data, err := os.ReadFile(path); err == nil {
		loadedFromFile = true
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return AppConfig{}, false, fmt.Errorf("unmarshal app config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return AppConfig{}, false, fmt.Errorf("read app config %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	return cfg, loadedFromFile, nil
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv("RELEASECORE_ENV")); v != "" {
		cfg.Environment = Environment(strings.ToLower(v))
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_DSN")); v != "" {
		cfg.DatabaseDSN = v
	}
	if v := strings.TrimSpace(os.Getenv("SCRAPER_CB_THRESHOLD")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ScraperCBThreshold = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SCRAPER_CB_COOLDOWN_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ScraperCBCooldownMS = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MAX_PARALLEL_PER_POOL")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxParallelPerPool = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("DEFAULT_MAX_EVENTS_PER_HOUR")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultMaxEventsPerHour = n
		}
	}
}

// CBCooldown returns ScraperCBCooldownMS as a time.Duration.
func (c AppConfig) CBCooldown() time.Duration {
	return time.Duration(c.ScraperCBCooldownMS) * time.Millisecond
}

// VolatilePollInterval returns VolatilePollIntervalMS as a time.Duration.
func (c AppConfig) VolatilePollInterval() time.Duration {
	return time.Duration(c.VolatilePollIntervalMS) * time.Millisecond
}
