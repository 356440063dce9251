package application

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	alerts "pmu-monitor/internal/alerts/domain"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultLookback     = 15 * time.Second
)

// Config defines alert scanning configuration.
type Config struct {
	Defaults     alerts.Thresholds            `yaml:"defaults"`
	PMUs         map[string]alerts.Thresholds `yaml:"pmus"`
	PollInterval time.Duration                `yaml:"poll_interval"`
	Lookback     time.Duration                `yaml:"lookback"`
}

// DefaultConfig returns the factory configuration.
func DefaultConfig() Config {
	return Config{
		Defaults:     alerts.DefaultThresholds(),
		PollInterval: DefaultPollInterval,
		Lookback:     DefaultLookback,
	}
}

// LoadConfig loads config from yaml (ALERTS_CONFIG) and env overrides.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("ALERTS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.Defaults.VoltageMin = getenvFloatDefault("ALERT_VOLTAGE_MIN", cfg.Defaults.VoltageMin)
	cfg.Defaults.VoltageMax = getenvFloatDefault("ALERT_VOLTAGE_MAX", cfg.Defaults.VoltageMax)
	cfg.Defaults.CurrentMax = getenvFloatDefault("ALERT_CURRENT_MAX", cfg.Defaults.CurrentMax)
	cfg.PollInterval = getenvDuration("ALERT_POLL_INTERVAL", cfg.PollInterval)
	cfg.Lookback = getenvDuration("ALERT_LOOKBACK", cfg.Lookback)

	return cfg, cfg.Validate()
}

// Validate checks config invariants.
func (c Config) Validate() error {
	if c.PollInterval <= 0 {
		return errors.New("alerts: poll interval must be positive")
	}
	if c.Lookback <= 0 {
		return errors.New("alerts: lookback must be positive")
	}
	if err := c.Defaults.Validate(); err != nil {
		return err
	}
	for _, override := range c.PMUs {
		if err := mergeThresholds(c.Defaults, override).Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ThresholdsForPMU returns thresholds for a PMU.
func (c Config) ThresholdsForPMU(pmuID string) alerts.Thresholds {
	if c.PMUs != nil {
		if override, ok := c.PMUs[pmuID]; ok {
			return mergeThresholds(c.Defaults, override)
		}
	}
	return c.Defaults
}

func mergeThresholds(base, override alerts.Thresholds) alerts.Thresholds {
	if override.VoltageMin != 0 {
		base.VoltageMin = override.VoltageMin
	}
	if override.VoltageMax != 0 {
		base.VoltageMax = override.VoltageMax
	}
	if override.CurrentMax != 0 {
		base.CurrentMax = override.CurrentMax
	}
	return base
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
