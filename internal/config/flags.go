package config

import (
	"github.com/spf13/pflag"
)

// BindFlags registers the overridable settings on fs. Defaults shown in help are the
// built-in ones; ApplyFlags copies only flags the user actually set.
func BindFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("config", "", "YAML config file (env: FINDER_CONFIG)")

	fs.Int("max-patterns", d.MaxPatterns, "Max candidate addresses per lead (env: MAX_PATTERNS_PER_LEAD)")
	fs.Duration("delay", d.ValidationDelay, "Delay between validator calls (env: VALIDATION_DELAY_SECONDS)")
	fs.Bool("include-risky", d.IncludeRisky, "Accept a risky address when no safe one is found (env: INCLUDE_RISKY)")
	fs.Int("max-retries", d.MaxRetries, "Max retries for transient failures (env: MAX_RETRIES)")
	fs.Duration("request-timeout", d.RequestTimeout, "Per-request timeout (env: REQUEST_TIMEOUT)")
	fs.Int("max-consecutive-errors", d.MaxConsecutiveErrors, "Stop after this many consecutive validator failures, 0 disables (env: MAX_CONSECUTIVE_ERRORS)")

	fs.String("reacher-url", d.Reacher.URL, "Reacher API base URL (env: REACHER_API_URL)")
	fs.String("reacher-ca-path", "", "PEM bundle trusted for the Reacher API (env: REACHER_CA_PATH)")
	fs.String("redis-url", "", "Redis URL for the verdict cache, empty disables (env: REDIS_URL)")
	fs.Duration("cache-ttl", d.Cache.TTL, "Verdict cache TTL (env: CACHE_TTL)")

	fs.String("output-dir", d.OutputDir, "Directory for timestamped output files (env: OUTPUT_DIR)")
	fs.String("log-level", d.Log.Level, "Log level: debug, info, warn, error (env: LOG_LEVEL)")
	fs.String("log-format", d.Log.Format, "Log format: console or json (env: LOG_FORMAT)")

	fs.String("gemini-model", "", "Gemini model name (env: GEMINI_MODEL)")
	fs.String("gemini-base-url", "", "Gemini API base URL override (env: GEMINI_BASE_URL)")
	fs.String("product", "", "Product description pitched in drafted emails (env: PRODUCT_DESCRIPTION)")
	fs.Int("workers", d.Workers, "Concurrent drafting workers (env: WORKERS)")
	fs.Float64("rate-limit-rps", 0, "Global drafting rate limit in RPS, 0 disables (env: RATE_LIMIT_RPS)")
	fs.Bool("fail-fast", false, "Stop on the first drafting error (env: FAIL_FAST)")
}

// ApplyFlags overlays explicitly set flags onto c. Flags that were not registered on fs
// are skipped.
func ApplyFlags(fs *pflag.FlagSet, c *Config) error {
	var err error
	set := func(name string, apply func() error) {
		if err != nil || fs.Lookup(name) == nil || !fs.Changed(name) {
			return
		}
		err = apply()
	}

	set("max-patterns", func() (e error) { c.MaxPatterns, e = fs.GetInt("max-patterns"); return })
	set("delay", func() (e error) { c.ValidationDelay, e = fs.GetDuration("delay"); return })
	set("include-risky", func() (e error) { c.IncludeRisky, e = fs.GetBool("include-risky"); return })
	set("max-retries", func() (e error) { c.MaxRetries, e = fs.GetInt("max-retries"); return })
	set("request-timeout", func() (e error) { c.RequestTimeout, e = fs.GetDuration("request-timeout"); return })
	set("max-consecutive-errors", func() (e error) {
		c.MaxConsecutiveErrors, e = fs.GetInt("max-consecutive-errors")
		return
	})

	set("reacher-url", func() (e error) { c.Reacher.URL, e = fs.GetString("reacher-url"); return })
	set("reacher-ca-path", func() (e error) { c.Reacher.CAPath, e = fs.GetString("reacher-ca-path"); return })
	set("redis-url", func() (e error) { c.Cache.RedisURL, e = fs.GetString("redis-url"); return })
	set("cache-ttl", func() (e error) { c.Cache.TTL, e = fs.GetDuration("cache-ttl"); return })

	set("output-dir", func() (e error) { c.OutputDir, e = fs.GetString("output-dir"); return })
	set("log-level", func() (e error) { c.Log.Level, e = fs.GetString("log-level"); return })
	set("log-format", func() (e error) { c.Log.Format, e = fs.GetString("log-format"); return })

	set("gemini-model", func() (e error) { c.Gemini.Model, e = fs.GetString("gemini-model"); return })
	set("gemini-base-url", func() (e error) { c.Gemini.BaseURL, e = fs.GetString("gemini-base-url"); return })
	set("product", func() (e error) { c.ProductDescription, e = fs.GetString("product"); return })
	set("workers", func() (e error) { c.Workers, e = fs.GetInt("workers"); return })
	set("rate-limit-rps", func() (e error) { c.RateLimitRPS, e = fs.GetFloat64("rate-limit-rps"); return })
	set("fail-fast", func() (e error) { c.FailFast, e = fs.GetBool("fail-fast"); return })
	return err
}
