package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"autopress/internal/logger"
)

var (
	// ErrMiss means no live entry exists for the fingerprint.
	ErrMiss = errors.New("cache miss")
	// ErrUnavailable means the backing store could not be reached. Callers
	// treat it as a miss; the pipeline never fails on cache trouble.
	ErrUnavailable = errors.New("cache unavailable")
)

const keyPrefix = "cache:"

// Backend is the storage medium behind a Store. Implementations must be safe
// for concurrent use.
type Backend interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, val interface{}, ttl time.Duration) error
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

// Store is a content-addressed cache for expensive stage results, keyed by
// the Fingerprint of (stage, normalized input).
type Store struct {
	backend Backend
	log     *logger.Logger
}

func NewStore(backend Backend) *Store {
	return &Store{backend: backend, log: logger.New("Cache")}
}

// Fingerprint derives the deterministic cache key for a stage call. Input is
// normalized (lowercased, whitespace collapsed) before hashing so trivially
// different spellings of a keyword share an entry.
func Fingerprint(stage, input string) string {
	sum := sha256.Sum256([]byte(stage + "\n" + Normalize(input)))
	return keyPrefix + stage + ":" + hex.EncodeToString(sum[:])
}

// Normalize lowercases and collapses runs of whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Get loads the payload for fingerprint into dest. Returns ErrMiss when the
// entry is absent or expired, ErrUnavailable when the backend is down.
func (s *Store) Get(ctx context.Context, fingerprint string, dest interface{}) error {
	err := s.backend.Get(ctx, fingerprint, dest)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrMiss) {
		return ErrMiss
	}
	s.log.LogDebugf("backend get %s: %v", fingerprint, err)
	return ErrUnavailable
}

// Put stores a payload best-effort. Failures are logged and swallowed; a
// cache write never fails a pipeline stage. A ttl of zero skips the write.
func (s *Store) Put(ctx context.Context, fingerprint string, val interface{}, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := s.backend.Set(ctx, fingerprint, val, ttl); err != nil {
		s.log.LogWarnf("cache write failed for %s: %v", fingerprint, err)
	}
}

// Purge removes entries for one stage, or every entry when stage is empty.
// Returns the number of entries removed.
func (s *Store) Purge(ctx context.Context, stage string) (int, error) {
	pattern := keyPrefix + "*"
	if stage != "" {
		pattern = keyPrefix + stage + ":*"
	}
	n, err := s.backend.DeletePattern(ctx, pattern)
	if err != nil {
		return n, ErrUnavailable
	}
	s.log.LogInfof("purged %d cache entr(ies) matching %s", n, pattern)
	return n, nil
}
