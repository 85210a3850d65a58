package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("key not found in cache")
	ErrClosed   = errors.New("cache is closed")
)

const (
	ProviderRedis  = "redis"
	ProviderMemory = "memory"
	ProviderNone   = "none"
)

// Cache is a byte oriented key/value backend with per-entry expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

type Options struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DialTimeout   time.Duration
}

func DefaultOptions() Options {
	return Options{
		RedisAddr:   "localhost:6379",
		DialTimeout: 10 * time.Second,
	}
}
