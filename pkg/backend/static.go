package backend

import (
	"context"
	"sync"

	"github.com/aretw0/aqueduct/pkg/prompt"
)

// Static answers with scripted responses. It is used for tests and offline
// demos. Once the script is exhausted the last response repeats.
type Static struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     []prompt.RequestPayload
}

// NewStatic returns a backend answering with responses in order.
func NewStatic(responses ...string) *Static {
	return &Static{responses: responses}
}

// Failing returns a backend whose every call fails with err.
func Failing(err error) *Static {
	return &Static{err: err}
}

// Generate records the payload and returns the next scripted response.
func (s *Static) Generate(ctx context.Context, payload prompt.RequestPayload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.calls)
	s.calls = append(s.calls, payload)

	if s.err != nil {
		return "", s.err
	}
	if len(s.responses) == 0 {
		return "", ErrEmptyResponse
	}
	if n >= len(s.responses) {
		n = len(s.responses) - 1
	}
	return s.responses[n], nil
}

// Calls returns the payloads received so far.
func (s *Static) Calls() []prompt.RequestPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]prompt.RequestPayload, len(s.calls))
	copy(out, s.calls)
	return out
}

// Factory exposes s as a Factory.
func (s *Static) Factory() Factory {
	return func(context.Context) (Backend, error) {
		return s, nil
	}
}
