package httpapi

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"

	"golang.org/x/net/websocket"

	"github.com/mhersch/gametable/internal/broadcast"
)

// sseSubscriber buffers events for one event-stream connection. A full
// buffer means the client stopped reading; the send fails and the hub
// prunes the subscriber.
type sseSubscriber struct {
	events chan broadcast.Event
	closed atomic.Bool
}

func newSSESubscriber() *sseSubscriber {
	return &sseSubscriber{events: make(chan broadcast.Event, 32)}
}

func (s *sseSubscriber) TrySend(event broadcast.Event) error {
	if s.closed.Load() {
		return fmt.Errorf("subscriber is closed")
	}
	select {
	case s.events <- event:
		return nil
	default:
		return fmt.Errorf("subscriber buffer is full")
	}
}

func (s *sseSubscriber) Closed() bool {
	return s.closed.Load()
}

func (h *Handler) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming is not supported", http.StatusInternalServerError)
		return
	}

	subscriber := newSSESubscriber()
	unsubscribe, err := h.gateway.Subscribe(r.Context(), r.PathValue("session"), subscriber)
	if err != nil {
		writeError(w, err)
		return
	}
	defer unsubscribe()
	defer subscriber.closed.Store(true)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event := <-subscriber.events:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, event.Data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// wsFrame is one event as sent over a WebSocket connection.
type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// wsSubscriber writes frames onto one WebSocket connection. Writes are
// serialized; the first failed write closes the subscriber.
type wsSubscriber struct {
	mu      sync.Mutex
	encoder *json.Encoder
	closed  atomic.Bool
}

func newWSSubscriber(conn *websocket.Conn) *wsSubscriber {
	return &wsSubscriber{encoder: json.NewEncoder(conn)}
}

func (s *wsSubscriber) TrySend(event broadcast.Event) error {
	if s.closed.Load() {
		return fmt.Errorf("subscriber is closed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.encoder.Encode(wsFrame{Event: event.Name, Data: event.Data}); err != nil {
		s.closed.Store(true)
		return err
	}
	return nil
}

func (s *wsSubscriber) Closed() bool {
	return s.closed.Load()
}

func (h *Handler) wsHandler() http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		defer conn.Close()

		sessionID := conn.Request().PathValue("session")
		subscriber := newWSSubscriber(conn)
		unsubscribe, err := h.gateway.Subscribe(conn.Request().Context(), sessionID, subscriber)
		if err != nil {
			log.Printf("httpapi: websocket subscribe: session=%s err=%v", sessionID, err)
			return
		}
		defer unsubscribe()
		defer subscriber.closed.Store(true)

		// Drain inbound frames until the client hangs up. The stream is
		// one-way; actions go over the JSON endpoints.
		buf := make([]byte, 512)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	})
}
