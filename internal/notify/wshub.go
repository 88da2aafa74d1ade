package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/costea32/rdz-thermostats-monitor/internal/registry"
)

const (
	wsSinkName     = "websocket"
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingPeriod   = 30 * time.Second
	wsSendBuffer   = 64
	wsMaxFrameSize = 512
)

// Hub broadcasts events to connected WebSocket clients. A client that
// cannot keep up is disconnected instead of stalling the broadcast.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*wsClient]struct{}
	upgrader websocket.Upgrader
	observer Observer
	logger   *zap.Logger
	closed   bool
}

type wsClient struct {
	conn  *websocket.Conn
	sendC chan []byte
	once  sync.Once
	doneC chan struct{}
}

func (c *wsClient) shutdown() {
	c.once.Do(func() { close(c.doneC) })
}

func NewHub(observer Observer, logger *zap.Logger) *Hub {
	if observer == nil {
		observer = NopObserver()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		observer: observer,
		logger:   logger,
	}
}

func (h *Hub) OnSlaveUpdated(slaveID byte, snap registry.Snapshot) {
	h.broadcast(updatedEvent(slaveID, snap))
}

func (h *Hub) OnAvailabilityChanged(slaveID byte, available bool) {
	h.broadcast(availabilityEvent(slaveID, available))
}

func (h *Hub) broadcast(ev Event) {
	data, err := json.Marshal(&ev)
	if err != nil {
		h.logger.Error("marshal event", zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.sendC <- data:
		default:
			// slow consumer, kick it
			h.observer.Record(wsSinkName, "dropped")
			c.shutdown()
		}
	}
}

// ServeHTTP upgrades the request and pumps events until the client
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &wsClient{
		conn:  conn,
		sendC: make(chan []byte, wsSendBuffer),
		doneC: make(chan struct{}),
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("websocket client connected",
		zap.String("remote", conn.RemoteAddr().String()),
		zap.Int("clients", n))

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) readLoop(c *wsClient) {
	defer h.drop(c)
	c.conn.SetReadLimit(wsMaxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		// inbound payloads are ignored, the stream is one-way
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.doneC:
			_ = c.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(wsWriteWait))
			_ = c.conn.Close()
			return
		case data := <-c.sendC:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.shutdown()
				return
			}
			h.observer.Record(wsSinkName, "delivered")
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}
		}
	}
}

func (h *Hub) drop(c *wsClient) {
	c.shutdown()
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	_ = c.conn.Close()
}

// ClientCount reports connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.shutdown()
	}
}
