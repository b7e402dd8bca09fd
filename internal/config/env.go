package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

func applyEnv(c *Config) error {
	var err error
	if c.MaxPatterns, err = envInt("MAX_PATTERNS_PER_LEAD", c.MaxPatterns); err != nil {
		return err
	}
	if c.ValidationDelay, err = envSeconds("VALIDATION_DELAY_SECONDS", c.ValidationDelay); err != nil {
		return err
	}
	if c.IncludeRisky, err = envBool("INCLUDE_RISKY", c.IncludeRisky); err != nil {
		return err
	}
	if c.MaxRetries, err = envInt("MAX_RETRIES", c.MaxRetries); err != nil {
		return err
	}
	if c.RequestTimeout, err = envDuration("REQUEST_TIMEOUT", c.RequestTimeout); err != nil {
		return err
	}
	if c.MaxConsecutiveErrors, err = envInt("MAX_CONSECUTIVE_ERRORS", c.MaxConsecutiveErrors); err != nil {
		return err
	}

	c.Reacher.URL = envString("REACHER_API_URL", c.Reacher.URL)
	c.Reacher.APIKey = envString("REACHER_API_KEY", c.Reacher.APIKey)
	c.Reacher.APIKeyPath = envString("REACHER_API_KEY_FILE", c.Reacher.APIKeyPath)
	c.Reacher.CAPath = envString("REACHER_CA_PATH", c.Reacher.CAPath)

	c.Cache.RedisURL = envString("REDIS_URL", c.Cache.RedisURL)
	if c.Cache.TTL, err = envDuration("CACHE_TTL", c.Cache.TTL); err != nil {
		return err
	}

	c.OutputDir = envString("OUTPUT_DIR", c.OutputDir)
	c.Log.Level = envString("LOG_LEVEL", c.Log.Level)
	c.Log.Format = envString("LOG_FORMAT", c.Log.Format)

	c.Gemini.APIKey = envString("GEMINI_API_KEY", c.Gemini.APIKey)
	c.Gemini.Model = envString("GEMINI_MODEL", c.Gemini.Model)
	c.Gemini.BaseURL = envString("GEMINI_BASE_URL", c.Gemini.BaseURL)
	c.ProductDescription = envString("PRODUCT_DESCRIPTION", c.ProductDescription)

	if c.Workers, err = envInt("WORKERS", c.Workers); err != nil {
		return err
	}
	if c.RateLimitRPS, err = envFloat("RATE_LIMIT_RPS", c.RateLimitRPS); err != nil {
		return err
	}
	if c.FailFast, err = envBool("FAIL_FAST", c.FailFast); err != nil {
		return err
	}
	return nil
}

func envString(varName, fallback string) string {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(varName string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envFloat(varName string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

// envSeconds reads a float number of seconds ("1.5").
func envSeconds(varName string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs < 0 {
		return 0, fmt.Errorf("invalid %s=%q: must be a non-negative number of seconds", varName, v)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func envDuration(varName string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envBool(varName string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}
