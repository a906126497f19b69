package backend

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/aqueduct/internal/logging"
	"github.com/aretw0/aqueduct/pkg/ports"
	"github.com/aretw0/aqueduct/pkg/prompt"
)

// CacheKey identifies a response by model and payload fingerprint.
func CacheKey(model string, payload prompt.RequestPayload) string {
	return model + ":" + payload.Fingerprint()
}

// Cached serves repeated payloads from a ResponseCache. Only successful
// answers are stored. Cache failures are logged and never fail the call.
type Cached struct {
	next   Backend
	cache  ports.ResponseCache
	model  string
	ttl    time.Duration
	logger *slog.Logger
}

// NewCached decorates next. A nil logger discards output.
func NewCached(next Backend, cache ports.ResponseCache, model string, ttl time.Duration, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Cached{next: next, cache: cache, model: model, ttl: ttl, logger: logger}
}

func (c *Cached) Generate(ctx context.Context, payload prompt.RequestPayload) (string, error) {
	out, _, err := c.generate(ctx, payload)
	return out, err
}

// generate also reports whether the answer came from the cache.
func (c *Cached) generate(ctx context.Context, payload prompt.RequestPayload) (string, bool, error) {
	key := CacheKey(c.model, payload)

	if out, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warn("response cache lookup failed", "model", c.model, "err", err)
	} else if ok {
		return out, true, nil
	}

	out, err := c.next.Generate(ctx, payload)
	if err != nil {
		return "", false, err
	}
	if err := c.cache.Set(ctx, key, out, c.ttl); err != nil {
		c.logger.Warn("response cache store failed", "model", c.model, "err", err)
	}
	return out, false, nil
}
