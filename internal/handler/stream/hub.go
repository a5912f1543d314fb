package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"PairWatch/internal/domain/models"
	"PairWatch/internal/service/metrics"
	"PairWatch/internal/usecase"
	xlogger "PairWatch/pkg/logger"
)

const (
	pingInterval = 45 * time.Second
	readTimeout  = 90 * time.Second
	writeTimeout = 10 * time.Second
	clientBuffer = 64
)

// SnapshotSource is satisfied by *usecase.PairMonitor.
type SnapshotSource interface {
	Snapshot() models.Snapshot
	Subscribe() (<-chan models.Snapshot, func())
}

// ChartSource is satisfied by *usecase.ChartSync.
type ChartSource interface {
	Views() usecase.ChartViews
	Subscribe() (<-chan usecase.ChartViews, func())
}

// Message is what clients receive. Type is one of status, snapshot or charts.
type Message struct {
	Type string      `json:"type"`
	Text string      `json:"text,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

type controlMsg struct {
	Type   string `json:"type"`
	Action string `json:"action"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(*http.Request) bool { return true },
	EnableCompression: true,
}

type client struct {
	conn   *websocket.Conn
	out    chan Message
	done   chan struct{}
	paused atomic.Bool
}

// Hub pushes snapshots and chart views to every connected websocket client.
// A client that cannot keep up misses messages instead of slowing the others.
type Hub struct {
	log       *xlogger.Logger
	snapshots SnapshotSource
	charts    ChartSource

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub(log *xlogger.Logger, snapshots SnapshotSource, charts ChartSource) *Hub {
	metrics.Register()
	return &Hub{
		log:       log.With(xlogger.String("component", "ws_hub")),
		snapshots: snapshots,
		charts:    charts,
		clients:   make(map[*client]struct{}),
	}
}

func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.Serve)
}

// Run forwards updates until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	snaps, stopSnaps := h.snapshots.Subscribe()
	defer stopSnaps()
	views, stopViews := h.charts.Subscribe()
	defer stopViews()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case s, ok := <-snaps:
			if !ok {
				return
			}
			h.broadcast(Message{Type: "snapshot", Data: s})
		case v, ok := <-views:
			if !ok {
				return
			}
			h.broadcast(Message{Type: "charts", Data: v})
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(m Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.paused.Load() {
			send(c, m)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = c.conn.Close()
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.StreamClients.Inc()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		metrics.StreamClients.Dec()
	}
}

// Serve upgrades the request and streams until the client goes away.
func (h *Hub) Serve(ec echo.Context) error {
	conn, err := upgrader.Upgrade(ec.Response(), ec.Request(), nil)
	if err != nil {
		h.log.Warn("websocket upgrade", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	c := &client{conn: conn, out: make(chan Message, clientBuffer), done: make(chan struct{})}
	h.add(c)
	defer h.remove(c)

	h.catchUp(c, "connected")

	go h.write(c)
	h.read(c)
	close(c.done)
	return nil
}

func (h *Hub) write(c *client) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case m := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(m); err != nil {
				_ = c.conn.Close()
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				_ = c.conn.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (h *Hub) read(c *client) {
	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var ctrl controlMsg
		if err := json.Unmarshal(data, &ctrl); err != nil || ctrl.Type != "control" {
			continue
		}
		switch strings.ToLower(ctrl.Action) {
		case "pause":
			c.paused.Store(true)
			send(c, Message{Type: "status", Text: "paused"})
		case "resume":
			c.paused.Store(false)
			h.catchUp(c, "resumed")
		}
	}
}

// catchUp queues a status line followed by the current snapshot and chart views.
func (h *Hub) catchUp(c *client, status string) {
	send(c, Message{Type: "status", Text: status})
	send(c, Message{Type: "snapshot", Data: h.snapshots.Snapshot()})
	send(c, Message{Type: "charts", Data: h.charts.Views()})
}

func send(c *client, m Message) {
	select {
	case c.out <- m:
	default:
	}
}
