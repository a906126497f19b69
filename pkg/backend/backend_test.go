package backend_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/aqueduct/pkg/adapters/memory"
	"github.com/aretw0/aqueduct/pkg/backend"
	"github.com/aretw0/aqueduct/pkg/domain"
	"github.com/aretw0/aqueduct/pkg/prompt"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel records the messages and options it receives.
type fakeModel struct {
	messages []llms.MessageContent
	opts     llms.CallOptions
	answer   string
	err      error
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	f.opts = llms.CallOptions{}
	for _, opt := range options {
		opt(&f.opts)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.answer == "" {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.answer}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, p string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, p, options...)
}

var payload = prompt.RequestPayload{
	System: prompt.SystemInstruction,
	Prompt: "Проанализируйте схему",
}

func TestChat_OpenAIStyle(t *testing.T) {
	m := &fakeModel{answer: "ok"}
	out, err := backend.NewChat(m, "gpt-4o-mini", true).Generate(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	require.Len(t, m.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, m.messages[0].Role)
	assert.Equal(t, llms.TextPart(prompt.SystemInstruction), m.messages[0].Parts[0])
	assert.Equal(t, llms.ChatMessageTypeHuman, m.messages[1].Role)

	assert.Equal(t, "gpt-4o-mini", m.opts.Model)
	assert.Equal(t, backend.MaxTokens, m.opts.MaxTokens)
	assert.InDelta(t, backend.Temperature, m.opts.Temperature, 1e-9)
}

func TestChat_GeminiStyle(t *testing.T) {
	m := &fakeModel{answer: "ok"}
	_, err := backend.NewChat(m, "gemini-1.5-pro", false).Generate(context.Background(), payload)
	require.NoError(t, err)
	require.Len(t, m.messages, 1)
	assert.Equal(t, llms.ChatMessageTypeHuman, m.messages[0].Role)
}

func TestChat_PayloadModelWins(t *testing.T) {
	m := &fakeModel{answer: "ok"}
	chat := backend.NewChat(m, "gpt-4o-mini", true)

	p := payload
	p.Model = "gpt-4o"
	_, err := chat.Generate(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", m.opts.Model)

	_, err = backend.NewChat(m, "", true).Generate(context.Background(), payload)
	require.NoError(t, err)
	assert.Empty(t, m.opts.Model, "no model option without a model")
}

func TestChat_EmptyResponse(t *testing.T) {
	_, err := backend.NewChat(&fakeModel{}, "gpt-4o", true).Generate(context.Background(), payload)
	assert.ErrorIs(t, err, backend.ErrEmptyResponse)
}

func TestFactories_RequireKey(t *testing.T) {
	_, err := backend.OpenAI("", "")(context.Background())
	assert.ErrorIs(t, err, backend.ErrMissingAPIKey)
	_, err = backend.Gemini("")(context.Background())
	assert.ErrorIs(t, err, backend.ErrMissingAPIKey)
}

func TestStatic_Script(t *testing.T) {
	s := backend.NewStatic("one", "two")
	ctx := context.Background()
	for _, want := range []string{"one", "two", "two"} {
		got, err := s.Generate(ctx, payload)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Len(t, s.Calls(), 3)

	boom := errors.New("boom")
	_, err := backend.Failing(boom).Generate(ctx, payload)
	assert.ErrorIs(t, err, boom)
}

func TestDispatcher_Routing(t *testing.T) {
	gpt := backend.NewStatic("from gpt")
	gemini := backend.NewStatic("from gemini")
	d := backend.NewDispatcher(
		backend.WithNamedProvider("gpt", "openai", gpt.Factory()),
		backend.WithNamedProvider("gemini", "gemini", gemini.Factory()),
	)
	ctx := context.Background()

	tests := []struct {
		model   string
		want    string
		wantErr error
	}{
		{"gpt-4o-mini", "from gpt", nil},
		{"gemini-1.5-pro", "from gemini", nil},
		{"claude-3", "", domain.ErrValidation},
		{"", "", domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got, err := d.Generate(ctx, tt.model, payload)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, d.Supports(tt.model))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, d.Supports(tt.model))
		})
	}
	assert.Equal(t, []string{"gemini", "gpt"}, d.Prefixes())
}

func TestDispatcher_Timeout(t *testing.T) {
	slow := backend.Func(func(ctx context.Context, _ prompt.RequestPayload) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	d := backend.NewDispatcher(
		backend.WithProvider("gpt", func(context.Context) (backend.Backend, error) { return slow, nil }),
		backend.WithTimeout(20*time.Millisecond),
	)

	_, err := d.Generate(context.Background(), "gpt-4o", payload)
	require.Error(t, err)
	var upstream *domain.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.True(t, upstream.Timeout)
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestDispatcher_BreakerOpens(t *testing.T) {
	var calls int32
	failing := backend.Func(func(context.Context, prompt.RequestPayload) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", errors.New("503 Service Unavailable")
	})
	d := backend.NewDispatcher(
		backend.WithProvider("gpt", func(context.Context) (backend.Backend, error) { return failing, nil }),
		backend.WithBreaker(2, time.Minute),
	)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := d.Generate(ctx, "gpt-4o", payload)
		assert.ErrorIs(t, err, domain.ErrUpstream)
	}
	_, err := d.Generate(ctx, "gpt-4o", payload)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "open circuit must not reach the backend")
}

func TestDispatcher_FactoryError(t *testing.T) {
	d := backend.NewDispatcher(backend.WithNamedProvider("gpt", "openai", backend.OpenAI("", "")))
	_, err := d.Generate(context.Background(), "gpt-4o", payload)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.ErrorIs(t, err, backend.ErrMissingAPIKey)
}

func TestDispatcher_CacheAndHooks(t *testing.T) {
	static := backend.NewStatic("answer")
	var events []domain.BackendEvent
	d := backend.NewDispatcher(
		backend.WithProvider("gpt", static.Factory()),
		backend.WithCache(memory.NewCache(), time.Minute),
		backend.WithHooks(domain.LifecycleHooks{
			OnBackendCall: func(_ context.Context, e *domain.BackendEvent) {
				events = append(events, *e)
			},
		}),
	)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		got, err := d.Generate(ctx, "gpt-4o", payload)
		require.NoError(t, err)
		assert.Equal(t, "answer", got)
	}
	assert.Len(t, static.Calls(), 1, "second call must be served from the cache")

	require.Len(t, events, 2)
	assert.False(t, events[0].Cached)
	assert.True(t, events[1].Cached)
	assert.Equal(t, "gpt", events[1].Backend)

	// A different model never shares cache entries.
	_, err := d.Generate(ctx, "gpt-4o-mini", payload)
	require.NoError(t, err)
	assert.Len(t, static.Calls(), 2)
}

func TestCached_SkipsFailures(t *testing.T) {
	cache := memory.NewCache()
	boom := errors.New("boom")
	c := backend.NewCached(backend.Failing(boom), cache, "gpt-4o", time.Minute, nil)

	_, err := c.Generate(context.Background(), payload)
	assert.ErrorIs(t, err, boom)

	_, ok, err := cache.Get(context.Background(), backend.CacheKey("gpt-4o", payload))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDispatcher_Bind(t *testing.T) {
	d := backend.NewDispatcher(backend.WithProvider("gemini", backend.NewStatic("g").Factory()))
	b, err := d.Bind("gemini-pro")
	require.NoError(t, err)
	out, err := b.Generate(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "g", out)

	_, err = d.Bind("gpt-4o")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDispatcher_OneClientPerProvider(t *testing.T) {
	var built int32
	static := backend.NewStatic("answer")
	d := backend.NewDispatcher(backend.WithProvider("gpt", func(context.Context) (backend.Backend, error) {
		atomic.AddInt32(&built, 1)
		return static, nil
	}))
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		_, err := d.Generate(ctx, fmt.Sprintf("gpt-%d", i), payload)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&built), "distinct model names must share the provider client")

	calls := static.Calls()
	require.Len(t, calls, 1000)
	assert.Equal(t, "gpt-0", calls[0].Model)
	assert.Equal(t, "gpt-999", calls[999].Model)
	assert.Empty(t, payload.Model)
}

func TestDispatcher_RetriesFailedFactory(t *testing.T) {
	var attempts int32
	d := backend.NewDispatcher(backend.WithProvider("gpt", func(context.Context) (backend.Backend, error) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			return nil, backend.ErrMissingAPIKey
		}
		return backend.NewStatic("ok"), nil
	}))
	ctx := context.Background()

	_, err := d.Generate(ctx, "gpt-4o", payload)
	assert.ErrorIs(t, err, backend.ErrMissingAPIKey)

	out, err := d.Generate(ctx, "gpt-4o", payload)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}
