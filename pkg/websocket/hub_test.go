package websocket

import (
	"sync"
	"testing"

	"pulseboard/pkg/logging"
	"pulseboard/pkg/models"
)

// countingGauge stands in for the Prometheus client gauge
type countingGauge struct {
	mu    sync.Mutex
	value int
}

func (g *countingGauge) Inc() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value++
}

func (g *countingGauge) Dec() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value--
}

func (g *countingGauge) current() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

func newBufferedClient(buffer int) *Client {
	return &Client{send: make(chan *Message, buffer)}
}

// TestRegisterUnregister verifies client bookkeeping and the gauge
func TestRegisterUnregister(t *testing.T) {
	gauge := &countingGauge{}
	h := NewHub(logging.NewNop(), gauge)

	c := newBufferedClient(1)
	if !h.register(c) {
		t.Fatal("register must succeed on a running hub")
	}
	if h.ClientCount() != 1 || gauge.current() != 1 {
		t.Errorf("expected 1 client and gauge 1, got %d/%d", h.ClientCount(), gauge.current())
	}

	h.unregister(c)
	if h.ClientCount() != 0 || gauge.current() != 0 {
		t.Errorf("expected 0 clients and gauge 0, got %d/%d", h.ClientCount(), gauge.current())
	}
	if _, ok := <-c.send; ok {
		t.Error("unregister must close the client's send channel")
	}

	// Double unregister is a no-op.
	h.unregister(c)
	if gauge.current() != 0 {
		t.Errorf("expected gauge 0 after repeated unregister, got %d", gauge.current())
	}
}

// TestPublishActivitiesBroadcasts verifies every client receives the frame
func TestPublishActivitiesBroadcasts(t *testing.T) {
	h := NewHub(logging.NewNop(), nil)

	c1 := newBufferedClient(4)
	c2 := newBufferedClient(4)
	h.register(c1)
	h.register(c2)

	h.PublishActivities([]models.CanonicalActivity{{ID: "r1", UserID: "u1"}})

	for i, c := range []*Client{c1, c2} {
		select {
		case msg := <-c.send:
			if msg.Type != "activity" {
				t.Errorf("client %d: expected activity frame, got %q", i, msg.Type)
			}
		default:
			t.Errorf("client %d: expected a buffered frame", i)
		}
	}
}

// TestBroadcastDropsSlowClient verifies a full send buffer disconnects the
// client instead of blocking the broadcast
func TestBroadcastDropsSlowClient(t *testing.T) {
	gauge := &countingGauge{}
	h := NewHub(logging.NewNop(), gauge)

	fast := newBufferedClient(4)
	slow := newBufferedClient(1)
	slow.send <- &Message{Type: "activity"} // fill the buffer
	h.register(fast)
	h.register(slow)

	h.Broadcast(&Message{Type: "activity"})

	if h.ClientCount() != 1 {
		t.Errorf("expected the slow client to be dropped, got %d clients", h.ClientCount())
	}
	if gauge.current() != 1 {
		t.Errorf("expected gauge 1 after drop, got %d", gauge.current())
	}
	select {
	case <-fast.send:
	default:
		t.Error("fast client must still receive the frame")
	}
}

// TestStopClosesClients verifies Stop disconnects everyone and refuses new
// registrations
func TestStopClosesClients(t *testing.T) {
	h := NewHub(logging.NewNop(), nil)

	c := newBufferedClient(1)
	h.register(c)
	h.Stop()

	if h.ClientCount() != 0 {
		t.Errorf("expected 0 clients after Stop, got %d", h.ClientCount())
	}
	if _, ok := <-c.send; ok {
		t.Error("Stop must close the client's send channel")
	}
	if h.register(newBufferedClient(1)) {
		t.Error("register must fail on a stopped hub")
	}
}
