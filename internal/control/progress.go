package control

import (
	"encoding/json"
	"sync"
	"time"
)

// Progress is one stage update from the suite runner. Completed/Total
// count frame sizes within the stage.
type Progress struct {
	Type      string  `json:"type"`
	RunID     string  `json:"run_id"`
	Stage     string  `json:"stage"`
	Detail    string  `json:"detail,omitempty"`
	FrameSize int     `json:"frame_size,omitempty"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
	Timestamp int64   `json:"timestamp"`
}

// Tracker holds the latest progress snapshot and fans updates out to
// websocket subscribers. A nil Tracker is safe to publish to, so the
// suite does not care whether the status server is enabled.
type Tracker struct {
	mu      sync.Mutex
	current Progress
	hub     *statusHub
}

func NewTracker(ctxDone <-chan struct{}) *Tracker {
	return &Tracker{hub: newStatusHub(ctxDone)}
}

// Publish records the update and broadcasts it to subscribers.
func (t *Tracker) Publish(update Progress) {
	if t == nil {
		return
	}
	update.Type = "progress"
	update.Timestamp = time.Now().UnixMilli()
	if update.Total > 0 {
		update.Percent = 100 * float64(update.Completed) / float64(update.Total)
	}
	t.mu.Lock()
	t.current = update
	t.mu.Unlock()
	t.hub.broadcast(update)
}

// Snapshot returns the most recent update.
func (t *Tracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

type statusClient struct {
	send      chan []byte
	closeOnce sync.Once
}

func (c *statusClient) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

type statusHub struct {
	mu       sync.Mutex
	clients  map[*statusClient]struct{}
	messages chan []byte
	ctxDone  <-chan struct{}
}

func newStatusHub(ctxDone <-chan struct{}) *statusHub {
	h := &statusHub{
		clients:  make(map[*statusClient]struct{}),
		messages: make(chan []byte, 128),
		ctxDone:  ctxDone,
	}
	go h.run()
	return h
}

func (h *statusHub) run() {
	for {
		select {
		case <-h.ctxDone:
			h.mu.Lock()
			for client := range h.clients {
				client.close()
			}
			h.clients = make(map[*statusClient]struct{})
			h.mu.Unlock()
			return
		case data := <-h.messages:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *statusHub) register(client *statusClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
}

func (h *statusHub) unregister(client *statusClient) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	client.close()
}

// broadcast drops the update when the channel is full; a slow consumer
// never stalls a measurement.
func (h *statusHub) broadcast(update Progress) {
	data, err := json.Marshal(update)
	if err != nil {
		return
	}
	select {
	case h.messages <- data:
	default:
	}
}
