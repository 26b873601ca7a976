package web

import (
	"encoding/json"
	"sync"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
	"steward/agent"
)

const sseStdMsgType = "message" // JS EventSource only picks up the "message" event type

// A client whose channel stays full across this many consecutive broadcasts
// is treated as disconnected and evicted. SetupSSE holds the connection
// outside the handler, so a disconnect surfaces only as a channel nobody
// drains anymore.
const sseEvictAfterMisses = 3

// SSEEvent represents a server-sent event
type SSEEvent struct {
	Type      string      `json:"type"`
	SessionId string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data"`
}

// SSEHub fans pipeline events out to connected SSE clients. It satisfies
// agent.Notifier so the service can publish without knowing about HTTP.
type SSEHub struct {
	mu      sync.Mutex
	clients map[chan any]int // consecutive missed broadcasts per client
}

var _ agent.Notifier = (*SSEHub)(nil)

func NewSSEHub() *SSEHub {
	return &SSEHub{clients: make(map[chan any]int)}
}

// Register adds a new SSE client
func (h *SSEHub) Register(client chan any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = 0
}

// Unregister removes an SSE client
func (h *SSEHub) Unregister(client chan any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client)
	}
}

// ClientCount reports the number of registered clients
func (h *SSEHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish implements agent.Notifier
func (h *SSEHub) Publish(event, sessionID string, data map[string]interface{}) {
	h.Broadcast(SSEEvent{Type: event, SessionId: sessionID, Data: data})
}

// Broadcast sends an event to all connected clients, evicting any that
// have stopped draining their channel
func (h *SSEHub) Broadcast(event SSEEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	payload, err := json.Marshal(map[string]interface{}{
		"type":      event.Type,
		"sessionId": event.SessionId,
		"data":      event.Data,
	})
	if err != nil {
		logger.LogErr(err, "On broadcast, failed to marshal SSE event")
		return
	}

	rEvent := rweb.SSEvent{
		Type: sseStdMsgType, // fixed bc that's what EventSource expects
		Data: string(payload),
	}

	for client, misses := range h.clients {
		select {
		case client <- rEvent:
			h.clients[client] = 0
		default:
			misses++
			if misses >= sseEvictAfterMisses {
				logger.Log("warn", "SSE client gone, evicting")
				delete(h.clients, client)
				close(client)
				continue
			}
			logger.Log("warn", "SSE client channel full, skipping")
			h.clients[client] = misses
		}
	}
}
