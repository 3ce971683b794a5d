package opsserver

import (
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/labstack/echo/v4"

	"github.com/cloudwright/cloudwright/internal/notify"
)

// Hub fans session events out to connected watchers. A watcher that
// cannot keep up misses events rather than backing up the pipeline.
type Hub struct {
	mu   sync.Mutex
	subs map[chan notify.Event]struct{}
}

func newHub() *Hub {
	return &Hub{subs: make(map[chan notify.Event]struct{})}
}

func (h *Hub) subscribe() chan notify.Event {
	ch := make(chan notify.Event, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan notify.Event) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

func (h *Hub) broadcast(ev notify.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Server) handleEvents(c echo.Context) error {
	conn, err := websocket.Accept(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = conn.CloseNow() }()

	sub := s.hub.subscribe()
	defer s.hub.unsubscribe(sub)

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return conn.Close(websocket.StatusNormalClosure, "")
		case <-s.done:
			return conn.Close(websocket.StatusGoingAway, "server shutting down")
		case ev := <-sub:
			if err := wsjson.Write(ctx, conn, ev); err != nil {
				return nil
			}
		}
	}
}
