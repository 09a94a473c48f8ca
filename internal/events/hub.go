// Package events fans transfer and training notifications out to websocket
// subscribers.
package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/theblitlabs/parity-ml/pkg/logger"
)

const (
	TypeTransferPrimed    = "transfer_primed"
	TypeTransferFinished  = "transfer_finished"
	TypeTransferRejected  = "transfer_rejected"
	TypeTrainingCompleted = "training_completed"
	TypePredictionDone    = "prediction_completed"
)

const (
	sendBuffer   = 32
	writeTimeout = 5 * time.Second
)

type Event struct {
	Type    string          `json:"type"`
	Time    time.Time       `json:"time"`
	Payload json.RawMessage `json:"payload"`
}

// Publisher accepts events for fan-out.
type Publisher interface {
	Publish(eventType string, payload interface{})
}

type subscriber struct {
	conn *websocket.Conn
	send chan Event
}

// Hub broadcasts events to every connected websocket. A subscriber whose
// buffer is full is dropped rather than blocking the publisher.
type Hub struct {
	upgrader websocket.Upgrader

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	closed      bool
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		subscribers: make(map[*subscriber]struct{}),
	}
}

func (h *Hub) Publish(eventType string, payload interface{}) {
	log := logger.WithComponent("events")

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("Failed to encode event")
		return
	}
	ev := Event{Type: eventType, Time: time.Now().UTC(), Payload: data}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		select {
		case sub.send <- ev:
		default:
			log.Warn().Str("remote_addr", sub.conn.RemoteAddr().String()).Msg("Dropping slow event subscriber")
			h.removeLocked(sub)
		}
	}
}

func (h *Hub) removeLocked(sub *subscriber) {
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.send)
	}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	h.removeLocked(sub)
	h.mu.Unlock()
}

// Subscribers returns the number of connected websockets.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// ServeHTTP upgrades the request and streams events until the peer leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("events")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Upgrade failed")
		return
	}

	sub := &subscriber{conn: conn, send: make(chan Event, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	log.Debug().Str("remote_addr", conn.RemoteAddr().String()).Msg("Event subscriber connected")

	go h.writeLoop(sub)

	// Drain reads so close frames are processed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(sub)
	log.Debug().Str("remote_addr", conn.RemoteAddr().String()).Msg("Event subscriber disconnected")
}

func (h *Hub) writeLoop(sub *subscriber) {
	defer sub.conn.Close()
	for ev := range sub.send {
		sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := sub.conn.WriteJSON(ev); err != nil {
			h.remove(sub)
			return
		}
	}
	sub.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subscribers {
		h.removeLocked(sub)
	}
}
