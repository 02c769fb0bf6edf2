package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Scoring struct {
		BasePoints            int   `yaml:"base_points"`
		MaxSpeedBonus         int   `yaml:"max_speed_bonus"`
		SpeedThresholdPercent int   `yaml:"speed_threshold_percent"`
		TimeBonus             *bool `yaml:"time_bonus"`
	} `yaml:"scoring"`
	RateLimit struct {
		MaxSubmissions int    `yaml:"max_submissions"`
		Window         string `yaml:"window"`
	} `yaml:"rate_limit"`
	Ranking struct {
		RecomputeInterval string `yaml:"recompute_interval"`
		LeaseTTL          string `yaml:"lease_ttl"`
	} `yaml:"ranking"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// IntOr returns v unless it is zero.
func IntOr(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}
