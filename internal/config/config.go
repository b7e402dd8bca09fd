// Package config assembles runtime settings from defaults, an optional YAML file,
// environment variables (with .env support) and command-line flags, in that order of
// increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the finder.
type Config struct {
	MaxPatterns          int           `yaml:"max_patterns_per_lead"`
	ValidationDelay      time.Duration `yaml:"validation_delay"`
	IncludeRisky         bool          `yaml:"include_risky"`
	MaxRetries           int           `yaml:"max_retries"`
	RequestTimeout       time.Duration `yaml:"request_timeout"`
	MaxConsecutiveErrors int           `yaml:"max_consecutive_errors"`

	Reacher Reacher `yaml:"reacher"`
	Cache   Cache   `yaml:"cache"`

	OutputDir string `yaml:"output_dir"`
	Log       Log    `yaml:"log"`

	Gemini             Gemini  `yaml:"gemini"`
	ProductDescription string  `yaml:"product_description"`
	Workers            int     `yaml:"workers"`
	RateLimitRPS       float64 `yaml:"rate_limit_rps"`
	FailFast           bool    `yaml:"fail_fast"`
}

type Reacher struct {
	URL string `yaml:"url"`
	// APIKey is never read from YAML; use REACHER_API_KEY or a key file.
	APIKey     string `yaml:"-"`
	APIKeyPath string `yaml:"api_key_file"`
	CAPath     string `yaml:"ca_path"`
}

type Cache struct {
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Gemini struct {
	APIKey  string `yaml:"-"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// Defaults returns the built-in settings.
func Defaults() Config {
	return Config{
		MaxPatterns:          20,
		ValidationDelay:      1500 * time.Millisecond,
		IncludeRisky:         false,
		MaxRetries:           2,
		RequestTimeout:       30 * time.Second,
		MaxConsecutiveErrors: 50,
		Reacher:              Reacher{URL: "https://api.reacher.email"},
		Cache:                Cache{TTL: 7 * 24 * time.Hour},
		OutputDir:            "output",
		Log:                  Log{Level: "info", Format: "console"},
		Workers:              1,
	}
}

// LoadDotEnv loads KEY=VALUE files into the process environment without overriding
// variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds a Config from defaults, the YAML file at path (or $FINDER_CONFIG when path
// is empty) and the environment. Flags are applied separately with ApplyFlags.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if strings.TrimSpace(path) == "" {
		path = strings.TrimSpace(os.Getenv("FINDER_CONFIG"))
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := decodeYAML(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	var errs []error
	if c.MaxPatterns <= 0 {
		errs = append(errs, fmt.Errorf("max_patterns_per_lead must be > 0 (got %d)", c.MaxPatterns))
	}
	if c.ValidationDelay < 0 {
		errs = append(errs, fmt.Errorf("validation_delay must be >= 0 (got %s)", c.ValidationDelay))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max_retries must be >= 0 (got %d)", c.MaxRetries))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be > 0 (got %s)", c.RequestTimeout))
	}
	if c.MaxConsecutiveErrors < 0 {
		errs = append(errs, fmt.Errorf("max_consecutive_errors must be >= 0 (got %d)", c.MaxConsecutiveErrors))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be > 0 (got %d)", c.Workers))
	}
	if c.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("rate_limit_rps must be >= 0 (got %g)", c.RateLimitRPS))
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log format must be console or json (got %q)", c.Log.Format))
	}
	return errors.Join(errs...)
}
