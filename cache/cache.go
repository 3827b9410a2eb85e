// Package cache stores serialized page feature records keyed by URL.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"time"
)

// Cache is a byte-oriented TTL cache. Misses and backend failures both report ok=false.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// DefaultTTL is how long a fetched page stays cached when no TTL is configured
const DefaultTTL = 30 * time.Minute

// Key creates a unique, fixed-length key for the URL
func Key(url string) string {
	hash := md5.Sum([]byte(url))
	return hex.EncodeToString(hash[:])
}
