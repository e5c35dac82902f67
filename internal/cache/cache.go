// Package cache stores rendered images keyed by a hash of the render request.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache miss")

// Cache holds rendered image bytes.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Key hashes the parts of a render request into a cache key.
func Key(parts ...any) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%v\x00", p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// New selects the redis cache when addr is set and the in-memory cache
// otherwise.
func New(addr string, opts ...Option) Cache {
	if strings.TrimSpace(addr) == "" {
		return NewMemory(DefaultMemoryEntries)
	}
	return NewRedis(addr, opts...)
}
