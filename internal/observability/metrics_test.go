package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/aqueduct/internal/observability"
	"github.com/aretw0/aqueduct/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	hooks := m.Hooks(nil)
	ctx := context.Background()

	hooks.OnGraphChanged(ctx, &domain.GraphEvent{Type: domain.EventNodeAdded, Version: 3})
	hooks.OnGraphChanged(ctx, &domain.GraphEvent{Type: domain.EventNodeAdded, Version: 4})
	hooks.OnProposalChanged(ctx, &domain.ProposalEvent{To: domain.StateCommitted})
	hooks.OnBackendCall(ctx, &domain.BackendEvent{Backend: "openai", Duration: time.Second})
	hooks.OnBackendCall(ctx, &domain.BackendEvent{Backend: "openai", Cached: true})
	hooks.OnBackendCall(ctx, &domain.BackendEvent{Backend: "openai", Err: &domain.UpstreamError{Backend: "openai", Timeout: true}})
	hooks.OnBackendCall(ctx, &domain.BackendEvent{Backend: "gemini", Err: errors.New("boom")})

	count, err := testutil.GatherAndCount(reg, "aqueduct_graph_events_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "one series per event type")

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			key := f.GetName()
			for _, l := range metric.GetLabel() {
				key += "|" + l.GetValue()
			}
			switch {
			case metric.GetCounter() != nil:
				values[key] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				values[key] = metric.GetGauge().GetValue()
			}
		}
	}

	assert.Equal(t, 2.0, values["aqueduct_graph_events_total|node_added"])
	assert.Equal(t, 4.0, values["aqueduct_graph_version"])
	assert.Equal(t, 1.0, values["aqueduct_proposal_transitions_total|committed"])
	assert.Equal(t, 1.0, values["aqueduct_backend_calls_total|openai|ok"])
	assert.Equal(t, 1.0, values["aqueduct_backend_calls_total|openai|cached"])
	assert.Equal(t, 1.0, values["aqueduct_backend_calls_total|openai|timeout"])
	assert.Equal(t, 1.0, values["aqueduct_backend_calls_total|gemini|error"])
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	_, err = observability.NewMetrics(reg)
	assert.Error(t, err)
}

func TestCombine(t *testing.T) {
	var order []string
	a := domain.LifecycleHooks{
		OnGraphChanged: func(context.Context, *domain.GraphEvent) { order = append(order, "a") },
	}
	b := domain.LifecycleHooks{
		OnGraphChanged: func(context.Context, *domain.GraphEvent) { order = append(order, "b") },
		OnBackendCall:  func(context.Context, *domain.BackendEvent) { order = append(order, "b-backend") },
	}

	h := observability.Combine(a, domain.LifecycleHooks{}, b)
	h.OnGraphChanged(context.Background(), &domain.GraphEvent{})
	h.OnBackendCall(context.Background(), &domain.BackendEvent{})
	assert.Nil(t, h.OnProposalChanged)
	assert.Equal(t, []string{"a", "b", "b-backend"}, order)
}
