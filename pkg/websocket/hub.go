package websocket

import (
	"sync"
	"time"

	"pulseboard/pkg/logging"
	"pulseboard/pkg/models"
)

// Message is the frame sent to live-feed clients.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Gauge tracks the connected-client count, satisfied by a Prometheus gauge.
type Gauge interface {
	Inc()
	Dec()
}

// Hub maintains the live-feed client connections and broadcasts polled
// activities to them. It implements services.ActivitySink.
type Hub struct {
	logger      *logging.Logger
	clientGauge Gauge

	mu      sync.RWMutex
	clients map[*Client]bool
	stopped bool
}

// NewHub creates a new hub
func NewHub(logger *logging.Logger, clientGauge Gauge) *Hub {
	return &Hub{
		logger:      logger,
		clientGauge: clientGauge,
		clients:     make(map[*Client]bool),
	}
}

// PublishActivities broadcasts freshly polled activities to every client.
func (h *Hub) PublishActivities(activities []models.CanonicalActivity) {
	h.Broadcast(&Message{
		Type:      "activity",
		Data:      activities,
		Timestamp: time.Now(),
	})
}

// Broadcast sends a message to all connected clients. Slow clients whose send
// buffer is full are dropped rather than blocking the broadcast.
func (h *Hub) Broadcast(msg *Message) {
	h.mu.RLock()
	var slow []*Client
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn("dropping slow live-feed client")
		h.unregister(client)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop closes every client connection.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true
	for client := range h.clients {
		client.close()
		delete(h.clients, client)
	}
	h.logger.Info("live-feed hub stopped")
}

func (h *Hub) register(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	h.clients[client] = true
	if h.clientGauge != nil {
		h.clientGauge.Inc()
	}
	return true
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.close()
		if h.clientGauge != nil {
			h.clientGauge.Dec()
		}
	}
}
