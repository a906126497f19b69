package ports

import (
	"context"
	"time"
)

// ResponseCache stores raw backend responses keyed by model and payload
// fingerprint, so an identical request does not hit the backend twice.
type ResponseCache interface {
	// Get returns the cached response and true, or "" and false on a miss.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores a response. A zero ttl means no expiry.
	Set(ctx context.Context, key, response string, ttl time.Duration) error
}
