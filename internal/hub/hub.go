package hub

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

const clientBufferSize = 100

// Event is one observer-facing event frame.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewEvent marshals data into an Event. Marshal failures are logged and
// produce an event with null data rather than losing the event type.
func NewEvent(eventType string, data any) Event {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("eventType", eventType).Msg("failed to marshal event data")
		raw = []byte("null")
	}
	return Event{Type: eventType, Data: raw}
}

// Client is one connected observer.
type Client struct {
	Events chan Event
	Done   chan struct{}
}

// Hub fans every published event out to all connected observers. Delivery is
// best effort: a client whose buffer is full misses the event rather than
// stalling the pipeline.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	closed  bool
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
	}
}

func (h *Hub) Subscribe() *Client {
	client := &Client{
		Events: make(chan Event, clientBufferSize),
		Done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		close(client.Done)
	} else {
		h.clients[client] = true
	}
	clientCount := len(h.clients)
	h.mu.Unlock()

	log.Info().Int("clientCount", clientCount).Msg("observer subscribed")
	return client
}

func (h *Hub) Unsubscribe(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Done)

	log.Info().Int("clientCount", len(h.clients)).Msg("observer unsubscribed")
}

// Broadcast delivers event to every connected observer without blocking.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !send(client, event) {
			log.Warn().Str("eventType", event.Type).Msg("observer buffer full, dropping event")
		}
	}
}

// SendTo delivers event to a single observer without blocking, typically a
// direct reply to a command that observer issued.
func (h *Hub) SendTo(client *Client, event Event) {
	if !send(client, event) {
		log.Warn().Str("eventType", event.Type).Msg("observer buffer full, dropping direct event")
	}
}

func send(client *Client, event Event) bool {
	select {
	case client.Events <- event:
		return true
	default:
		return false
	}
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for client := range h.clients {
		close(client.Done)
	}
	h.clients = make(map[*Client]bool)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
