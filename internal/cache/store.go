package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
)

const defaultOpTimeout = 2 * time.Second

// Store wraps a backend as a best-effort capability. It never returns errors:
// callers learn whether the cache could be consulted through the available flag
// and fall back to the source of truth otherwise.
type Store struct {
	backend   Cache
	logger    *zap.Logger
	opTimeout time.Duration
}

// NewStore accepts a nil backend, in which case every operation reports the cache as unavailable.
func NewStore(backend Cache, logger *zap.Logger, opTimeout time.Duration) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}

	return &Store{
		backend:   backend,
		logger:    logger,
		opTimeout: opTimeout,
	}
}

// TryGet decodes the cached value for key into dst.
func (s *Store) TryGet(ctx context.Context, key string, dst any) (found bool, available bool) {
	if s == nil || s.backend == nil {
		return false, false
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	raw, err := s.backend.Get(opCtx, key)
	if errors.Is(err, ErrNotFound) {
		return false, true
	}
	if err != nil {
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false, false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		// A corrupt entry is treated as a miss; the next write replaces it.
		s.logger.Warn("cache entry could not be decoded", zap.String("key", key), zap.Error(err))
		return false, true
	}

	return true, true
}

// TrySet stores v under key with the given TTL.
func (s *Store) TrySet(ctx context.Context, key string, v any, ttl time.Duration) (available bool) {
	if s == nil || s.backend == nil {
		return false
	}

	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("cache entry could not be encoded", zap.String("key", key), zap.Error(err))
		return false
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.backend.Set(opCtx, key, raw, ttl); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		return false
	}

	return true
}

// Ping reports the backend health for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.backend == nil {
		return errors.New("cache disabled")
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	return s.backend.Ping(opCtx)
}
