// Package rediscache caches definitive validator verdicts in Redis so reruns over the
// same leads do not repeat SMTP checks.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shpitdev/email-pattern-finder/internal/redact"
	"github.com/shpitdev/email-pattern-finder/internal/verify"
)

const (
	DefaultTTL    = 7 * 24 * time.Hour
	DefaultPrefix = "email-finder:verify:"
)

// Open parses a redis:// or rediss:// URL and pings the server.
func Open(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %s", redact.Secrets(err.Error()))
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Options configures Wrap.
type Options struct {
	TTL    time.Duration
	Prefix string
	Logger *zap.Logger
}

// Cache is a verify.Validator decorator backed by Redis.
type Cache struct {
	rdb    redis.Cmdable
	next   verify.Validator
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

var _ verify.Validator = (*Cache)(nil)

// Wrap returns next with a read-through cache in front of it. Redis failures never fail
// a validation: they are logged and the call falls through to next.
func Wrap(rdb redis.Cmdable, next verify.Validator, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Cache{rdb: rdb, next: next, ttl: opts.TTL, prefix: opts.Prefix, logger: opts.Logger}
}

func (c *Cache) key(address string) string {
	return c.prefix + strings.ToLower(strings.TrimSpace(address))
}

func (c *Cache) Validate(ctx context.Context, address string) (verify.Result, error) {
	key := c.key(address)

	b, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var res verify.Result
		if jerr := json.Unmarshal(b, &res); jerr == nil && res.Status.Definitive() {
			res.Cached = true
			c.logger.Debug("validator cache hit", zap.String("address", address), zap.String("status", string(res.Status)))
			return res, nil
		}
		c.logger.Warn("validator cache entry unreadable; ignoring", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	case ctx.Err() != nil:
		return verify.Result{Address: address, Status: verify.StatusUnknown}, ctx.Err()
	default:
		c.logger.Warn("validator cache read failed", zap.String("error", redact.Secrets(err.Error())))
	}

	res, err := c.next.Validate(ctx, address)
	if err != nil || !res.Status.Definitive() {
		return res, err
	}

	stored := res
	stored.Cached = false
	payload, merr := json.Marshal(stored)
	if merr != nil {
		return res, nil
	}
	if serr := c.rdb.Set(ctx, key, payload, c.ttl).Err(); serr != nil {
		c.logger.Warn("validator cache write failed", zap.String("error", redact.Secrets(serr.Error())))
	}
	return res, nil
}
