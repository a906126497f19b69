package http

import (
	"log/slog"
	"sync"

	"github.com/aretw0/aqueduct/internal/logging"
)

// Message is one server-sent event.
type Message struct {
	Event string
	Data  string
}

// StreamManager handles active SSE connections
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- Message]struct{} // WorkspaceID -> Set of Channels
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- Message]struct{}),
		logger:      logger,
	}
}

func (sm *StreamManager) Subscribe(workspaceID string) (chan Message, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan Message, 10)
	if _, ok := sm.subscribers[workspaceID]; !ok {
		sm.subscribers[workspaceID] = make(map[chan<- Message]struct{})
	}
	sm.subscribers[workspaceID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[workspaceID]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, workspaceID)
			}
		}
	}
}

func (sm *StreamManager) Broadcast(workspaceID string, msg Message) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[workspaceID] {
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping message", "workspace_id", workspaceID, "event", msg.Event)
		}
	}
}

// Count returns the number of subscribers of a workspace.
func (sm *StreamManager) Count(workspaceID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[workspaceID])
}
