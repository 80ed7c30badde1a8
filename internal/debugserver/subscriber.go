package debugserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/novaops/livemetrics-agent/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Local developer tool; no browser-facing deployment to protect.
		return true
	},
}

const writeDeadline = 10 * time.Second

// wsSubscriber adapts a websocket connection to realtime.EventSubscriber.
type wsSubscriber struct {
	id     string
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

func newWSSubscriber(id string, conn *websocket.Conn) *wsSubscriber {
	ctx, cancel := context.WithCancel(context.Background())
	return &wsSubscriber{id: id, conn: conn, ctx: ctx, cancel: cancel}
}

func (s *wsSubscriber) ID() string { return s.id }

func (s *wsSubscriber) Context() context.Context { return s.ctx }

func (s *wsSubscriber) Send(event realtime.Event) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return s.conn.WriteJSON(event)
}

func (s *wsSubscriber) Close() error {
	s.cancel()
	return s.conn.Close()
}

// readPump discards incoming frames but keeps the connection alive with
// pong handling; it exits (closing the subscriber) once the peer goes away.
func (s *wsSubscriber) readPump(bus realtime.EventBus) {
	defer func() {
		_ = bus.Unsubscribe(s)
	}()

	s.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline))
			}
		}
	}()

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
