// Package config loads the attendance client configuration from an optional
// YAML file, a .env file and environment variables, in increasing order of
// precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full client configuration.
type Config struct {
	// APIBaseURL is the backend base URL, e.g. https://api.example.com/api.
	APIBaseURL string `yaml:"api_base_url"`
	// RequestTimeout applies to JSON calls, UploadTimeout to photo uploads.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	UploadTimeout  time.Duration `yaml:"upload_timeout"`
	// RequestsPerSecond caps outbound traffic; 0 disables the limiter.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// KeystorePath locates the encrypted session store on disk.
	KeystorePath string `yaml:"keystore_path"`
	// KeystoreSecret derives the keystore sealing key.
	KeystoreSecret string `yaml:"keystore_secret"`

	// RefreshSpec is the cron spec for the background auto-refresh
	// ("" disables it).
	RefreshSpec string `yaml:"refresh_spec"`

	// MetricsAddr serves Prometheus metrics when non-empty.
	MetricsAddr string `yaml:"metrics_addr"`
}

// UnmarshalYAML decodes the YAML form, where timeouts are duration strings
// like "15s". Absent keys keep whatever value the Config already holds.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		APIBaseURL        string   `yaml:"api_base_url"`
		RequestTimeout    string   `yaml:"request_timeout"`
		UploadTimeout     string   `yaml:"upload_timeout"`
		RequestsPerSecond *float64 `yaml:"requests_per_second"`
		KeystorePath      string   `yaml:"keystore_path"`
		KeystoreSecret    string   `yaml:"keystore_secret"`
		RefreshSpec       string   `yaml:"refresh_spec"`
		MetricsAddr       string   `yaml:"metrics_addr"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.APIBaseURL != "" {
		c.APIBaseURL = raw.APIBaseURL
	}
	if raw.RequestTimeout != "" {
		d, err := time.ParseDuration(raw.RequestTimeout)
		if err != nil {
			return fmt.Errorf("invalid request_timeout: %w", err)
		}
		c.RequestTimeout = d
	}
	if raw.UploadTimeout != "" {
		d, err := time.ParseDuration(raw.UploadTimeout)
		if err != nil {
			return fmt.Errorf("invalid upload_timeout: %w", err)
		}
		c.UploadTimeout = d
	}
	if raw.RequestsPerSecond != nil {
		c.RequestsPerSecond = *raw.RequestsPerSecond
	}
	if raw.KeystorePath != "" {
		c.KeystorePath = raw.KeystorePath
	}
	if raw.KeystoreSecret != "" {
		c.KeystoreSecret = raw.KeystoreSecret
	}
	if raw.RefreshSpec != "" {
		c.RefreshSpec = raw.RefreshSpec
	}
	if raw.MetricsAddr != "" {
		c.MetricsAddr = raw.MetricsAddr
	}
	return nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		RequestTimeout:    15 * time.Second,
		UploadTimeout:     60 * time.Second,
		RequestsPerSecond: 10,
		KeystorePath:      defaultKeystorePath(),
		RefreshSpec:       "",
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// any), then .env, then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	// .env is for local runs; absence is fine.
	_ = godotenv.Load()

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("API_BASE_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RequestTimeout = d
		}
	}
	if v := os.Getenv("UPLOAD_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.UploadTimeout = d
		}
	}
	if v := os.Getenv("REQUESTS_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RequestsPerSecond = f
		}
	}
	if v := os.Getenv("KEYSTORE_PATH"); v != "" {
		cfg.KeystorePath = v
	}
	if v := os.Getenv("KEYSTORE_SECRET"); v != "" {
		cfg.KeystoreSecret = v
	}
	if v := os.Getenv("REFRESH_SPEC"); v != "" {
		cfg.RefreshSpec = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
}

func (c Config) validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api_base_url is required (set API_BASE_URL)")
	}
	if c.KeystorePath == "" {
		return fmt.Errorf("keystore_path is required")
	}
	if c.KeystoreSecret == "" {
		return fmt.Errorf("keystore_secret is required (set KEYSTORE_SECRET)")
	}
	if c.RequestTimeout <= 0 || c.UploadTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

func defaultKeystorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".crewmark/keystore.bin"
	}
	return home + "/.crewmark/keystore.bin"
}
