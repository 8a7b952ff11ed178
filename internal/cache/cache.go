// Package cache records recently admitted event fingerprints with a fixed TTL.
//
// The cache is not authoritative: a miss only means "not seen recently", and
// callers fall back to the historical event search.
package cache

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// TTL is how long an admitted fingerprint stays present.
const TTL = 3600 * time.Second

// PrefixFingerprint namespaces fingerprint keys in shared backends.
const PrefixFingerprint = "dedup:v1:"

// ErrUnavailable marks transient backend failures.
var ErrUnavailable = errors.New("fingerprint cache unavailable")

// Cache is a presence store: a key is either marked and unexpired, or absent.
type Cache interface {
	// Get reports whether key is present and unexpired.
	Get(ctx context.Context, key string) (bool, error)

	// Set marks key present for ttl from now, refreshing any existing marker.
	Set(ctx context.Context, key string, ttl time.Duration) error

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error
}
