package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/aqueduct/internal/logging"
	"github.com/aretw0/aqueduct/pkg/domain"
	"github.com/aretw0/aqueduct/pkg/ports"
	"github.com/aretw0/aqueduct/pkg/prompt"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultTimeout bounds a single backend call.
	DefaultTimeout = 60 * time.Second
	// DefaultBreakerThreshold is the number of consecutive failures that
	// opens a provider's circuit.
	DefaultBreakerThreshold = 5
	// DefaultBreakerCooldown is how long an open circuit rejects calls.
	DefaultBreakerCooldown = 30 * time.Second
)

type provider struct {
	name    string
	factory Factory
	breaker *gobreaker.CircuitBreaker
	client  Backend
}

// Dispatcher routes calls to providers by model name prefix.
type Dispatcher struct {
	mu        sync.Mutex
	providers map[string]*provider // keyed by prefix

	timeout   time.Duration
	threshold uint32
	cooldown  time.Duration

	cache    ports.ResponseCache
	cacheTTL time.Duration

	logger *slog.Logger
	hooks  domain.LifecycleHooks
	tracer trace.Tracer
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithProvider registers factory for models starting with prefix. The
// provider name defaults to the prefix.
func WithProvider(prefix string, factory Factory) Option {
	return WithNamedProvider(prefix, prefix, factory)
}

// WithNamedProvider registers factory under an explicit provider name, used
// in errors, logs and metrics.
func WithNamedProvider(prefix, name string, factory Factory) Option {
	return func(d *Dispatcher) {
		d.providers[prefix] = &provider{name: name, factory: factory}
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithBreaker tunes the circuit breaker of every provider.
func WithBreaker(threshold uint32, cooldown time.Duration) Option {
	return func(d *Dispatcher) {
		if threshold > 0 {
			d.threshold = threshold
		}
		if cooldown > 0 {
			d.cooldown = cooldown
		}
	}
}

// WithCache serves repeated payloads from cache.
func WithCache(cache ports.ResponseCache, ttl time.Duration) Option {
	return func(d *Dispatcher) {
		d.cache = cache
		d.cacheTTL = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithHooks registers the OnBackendCall hook.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(d *Dispatcher) {
		d.hooks = hooks
	}
}

// WithTracer overrides the global OpenTelemetry tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) {
		if tracer != nil {
			d.tracer = tracer
		}
	}
}

// NewDispatcher creates a dispatcher. Without providers every model is
// rejected.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		providers: make(map[string]*provider),
		timeout:   DefaultTimeout,
		threshold: DefaultBreakerThreshold,
		cooldown:  DefaultBreakerCooldown,
		logger:    logging.NewNop(),
		tracer:    otel.Tracer("github.com/aretw0/aqueduct/pkg/backend"),
	}
	for _, opt := range opts {
		opt(d)
	}
	for _, p := range d.providers {
		p.breaker = d.newBreaker(p.name)
	}
	return d
}

func (d *Dispatcher) newBreaker(name string) *gobreaker.CircuitBreaker {
	threshold := d.threshold
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     d.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up says nothing about the provider's health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			d.logger.Warn("circuit breaker state changed",
				"backend", name, "from", from.String(), "to", to.String())
		},
	})
}

// Prefixes lists the registered model prefixes.
func (d *Dispatcher) Prefixes() []string {
	out := make([]string, 0, len(d.providers))
	for prefix := range d.providers {
		out = append(out, prefix)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether model selects a registered provider.
func (d *Dispatcher) Supports(model string) bool {
	_, err := d.lookup(model)
	return err == nil
}

func (d *Dispatcher) lookup(model string) (*provider, error) {
	if model == "" {
		return nil, &domain.ValidationError{Field: "model", Msg: "Не указана ИИ-модель."}
	}
	// Longest prefix wins so "gpt-4o" can be routed apart from "gpt".
	var best string
	for prefix := range d.providers {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return nil, &domain.ValidationError{Field: "model", Msg: fmt.Sprintf("Неподдерживаемая ИИ-модель %q.", model)}
	}
	return d.providers[best], nil
}

// client returns the provider's backend, constructing it on first use. One
// client serves every model of the provider, so caller-chosen model names
// never accumulate state. A failed construction is retried on the next call.
func (d *Dispatcher) client(ctx context.Context, p *provider) (Backend, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	b, err := p.factory(ctx)
	if err != nil {
		return nil, &domain.UpstreamError{Backend: p.name, Err: err}
	}
	p.client = b
	return b, nil
}

// Generate sends payload to the backend selected by model.
func (d *Dispatcher) Generate(ctx context.Context, model string, payload prompt.RequestPayload) (string, error) {
	p, err := d.lookup(model)
	if err != nil {
		return "", err
	}

	ctx, span := d.tracer.Start(ctx, "backend.Generate",
		trace.WithAttributes(
			attribute.String("backend.name", p.name),
			attribute.String("backend.model", model),
		))
	defer span.End()

	start := time.Now()
	out, cached, err := d.generate(ctx, p, model, payload)
	elapsed := time.Since(start)

	span.SetAttributes(attribute.Bool("backend.cached", cached))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.Warn("backend call failed", "backend", p.name, "model", model, "duration", elapsed, "err", err)
	} else {
		span.SetAttributes(attribute.Int("backend.response_bytes", len(out)))
		d.logger.Debug("backend call", "backend", p.name, "model", model, "duration", elapsed, "cached", cached)
	}

	if d.hooks.OnBackendCall != nil {
		d.hooks.OnBackendCall(ctx, &domain.BackendEvent{
			Model:    model,
			Backend:  p.name,
			Duration: elapsed,
			Cached:   cached,
			Err:      err,
		})
	}
	return out, err
}

func (d *Dispatcher) generate(ctx context.Context, p *provider, model string, payload prompt.RequestPayload) (string, bool, error) {
	b, err := d.client(ctx, p)
	if err != nil {
		return "", false, err
	}
	payload.Model = model

	var guarded Backend = Func(func(ctx context.Context, payload prompt.RequestPayload) (string, error) {
		return d.guard(ctx, p, b, payload)
	})
	if d.cache == nil {
		out, err := guarded.Generate(ctx, payload)
		return out, false, err
	}
	return NewCached(guarded, d.cache, model, d.cacheTTL, d.logger).generate(ctx, payload)
}

// guard applies the timeout and the circuit breaker and maps every failure
// to an UpstreamError.
func (d *Dispatcher) guard(ctx context.Context, p *provider, b Backend, payload prompt.RequestPayload) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	res, err := p.breaker.Execute(func() (interface{}, error) {
		return b.Generate(callCtx, payload)
	})
	if err != nil {
		var upstream *domain.UpstreamError
		if errors.As(err, &upstream) {
			return "", err
		}
		timeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded)
		return "", &domain.UpstreamError{Backend: p.name, Timeout: timeout, Err: err}
	}
	return res.(string), nil
}

// Bind returns a Backend that always dispatches to model.
func (d *Dispatcher) Bind(model string) (Backend, error) {
	if _, err := d.lookup(model); err != nil {
		return nil, err
	}
	return Func(func(ctx context.Context, payload prompt.RequestPayload) (string, error) {
		return d.Generate(ctx, model, payload)
	}), nil
}
