package eventsink

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/royalbidz/bidcore/core"
)

const (
	wsWriteBuffer   = 256
	wsPingInterval  = 30 * time.Second
	wsWriteDeadline = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSHub fans engine events out to connected WebSocket viewers as JSON
// frames. It is an http.Handler; the host application mounts it wherever
// it routes live-auction traffic. Slow clients get frames dropped rather
// than stalling the engine.
type WSHub struct {
	log *logrus.Entry

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	quit chan struct{}
}

// NewWSHub returns a hub logging through log.
func NewWSHub(log *logrus.Logger) *WSHub {
	return &WSHub{
		log:     log.WithField("component", "wshub"),
		clients: make(map[*wsClient]struct{}),
	}
}

// Publish broadcasts the event to every connected client. Never blocks:
// a client whose send buffer is full simply misses the frame and
// resynchronizes from its next snapshot fetch.
func (h *WSHub) Publish(ev core.Event) {
	frame, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).Error("failed to encode event frame")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			h.log.Debug("dropping frame for slow client")
		}
	}
}

// ClientCount returns the number of connected viewers.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WSHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	c := &wsClient{
		conn: conn,
		send: make(chan []byte, wsWriteBuffer),
		quit: make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.WithField("remote", conn.RemoteAddr().String()).Debug("viewer connected")

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		_ = conn.Close()
		h.log.WithField("remote", conn.RemoteAddr().String()).Debug("viewer disconnected")
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case frame := <-c.send:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
				if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-c.quit:
				return
			}
		}
	}()

	// Viewers are read-only; the read loop only detects disconnect.
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * wsPingInterval))
	})
	_ = conn.SetReadDeadline(time.Now().Add(2 * wsPingInterval))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(c.quit)
	<-done
}
