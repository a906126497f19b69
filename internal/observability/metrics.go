package observability

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aretw0/aqueduct/internal/logging"
	"github.com/aretw0/aqueduct/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aqueduct"

// Metrics holds the Prometheus collectors fed by lifecycle hooks.
type Metrics struct {
	graphEvents     *prometheus.CounterVec
	graphVersion    prometheus.Gauge
	proposals       *prometheus.CounterVec
	backendCalls    *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		graphEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graph_events_total",
				Help:      "Total number of graph mutations by event type",
			},
			[]string{"type"},
		),
		graphVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_version",
			Help:      "Version of the graph after the latest mutation",
		}),
		proposals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "proposal_transitions_total",
				Help:      "Proposal state machine transitions by target state",
			},
			[]string{"state"},
		),
		backendCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_calls_total",
				Help:      "Backend calls by backend and outcome",
			},
			[]string{"backend", "outcome"},
		),
		backendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_call_duration_seconds",
				Help:      "Duration of backend calls",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"backend"},
		),
	}

	for _, c := range []prometheus.Collector{m.graphEvents, m.graphVersion, m.proposals, m.backendCalls, m.backendDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// outcome classifies a backend call for the outcome label.
func outcome(e *domain.BackendEvent) string {
	var upstream *domain.UpstreamError
	switch {
	case e.Err == nil && e.Cached:
		return "cached"
	case e.Err == nil:
		return "ok"
	case errors.As(e.Err, &upstream) && upstream.Timeout:
		return "timeout"
	default:
		return "error"
	}
}

// Hooks records every event in the collectors and logs it. A nil logger
// disables logging.
func (m *Metrics) Hooks(logger *slog.Logger) domain.LifecycleHooks {
	if logger == nil {
		logger = logging.NewNop()
	}
	return domain.LifecycleHooks{
		OnGraphChanged: func(ctx context.Context, e *domain.GraphEvent) {
			m.graphEvents.WithLabelValues(string(e.Type)).Inc()
			m.graphVersion.Set(float64(e.Version))
			logger.Debug("graph_changed", "type", e.Type, "entity_id", e.EntityID, "version", e.Version)
		},
		OnProposalChanged: func(ctx context.Context, e *domain.ProposalEvent) {
			m.proposals.WithLabelValues(string(e.To)).Inc()
			if e.Err != nil {
				logger.Info("proposal_changed", "generation", e.Generation, "from", e.From, "to", e.To, "err", e.Err)
				return
			}
			logger.Debug("proposal_changed", "generation", e.Generation, "from", e.From, "to", e.To)
		},
		OnBackendCall: func(ctx context.Context, e *domain.BackendEvent) {
			m.backendCalls.WithLabelValues(e.Backend, outcome(e)).Inc()
			if !e.Cached {
				m.backendDuration.WithLabelValues(e.Backend).Observe(e.Duration.Seconds())
			}
			logger.Info("backend_call",
				"backend", e.Backend,
				"model", e.Model,
				"duration", e.Duration,
				"cached", e.Cached,
				"is_error", e.Err != nil,
			)
		},
	}
}

// Combine returns hooks that invoke each set in order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks

	var graph []func(context.Context, *domain.GraphEvent)
	var proposal []func(context.Context, *domain.ProposalEvent)
	var backend []func(context.Context, *domain.BackendEvent)
	for _, h := range sets {
		if h.OnGraphChanged != nil {
			graph = append(graph, h.OnGraphChanged)
		}
		if h.OnProposalChanged != nil {
			proposal = append(proposal, h.OnProposalChanged)
		}
		if h.OnBackendCall != nil {
			backend = append(backend, h.OnBackendCall)
		}
	}

	if len(graph) > 0 {
		out.OnGraphChanged = func(ctx context.Context, e *domain.GraphEvent) {
			for _, fn := range graph {
				fn(ctx, e)
			}
		}
	}
	if len(proposal) > 0 {
		out.OnProposalChanged = func(ctx context.Context, e *domain.ProposalEvent) {
			for _, fn := range proposal {
				fn(ctx, e)
			}
		}
	}
	if len(backend) > 0 {
		out.OnBackendCall = func(ctx context.Context, e *domain.BackendEvent) {
			for _, fn := range backend {
				fn(ctx, e)
			}
		}
	}
	return out
}
