package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/luftujha/luftujha-core/internal/hru"
	"github.com/luftujha/luftujha-core/internal/infrastructure/config"
	"github.com/luftujha/luftujha-core/internal/infrastructure/logging"
	"github.com/luftujha/luftujha-core/internal/valve"
)

// WebSocket frame types pushed to clients.
const (
	WSTypeSnapshot = "snapshot"
	WSTypeUpdate   = "update"
	WSTypeDevice   = "device"
	WSTypeStatus   = "status"
	WSTypePing     = "ping"
	WSTypePong     = "pong"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 64
)

// WSFrame is the envelope for every message pushed to WebSocket clients.
type WSFrame struct {
	Type      string           `json:"type"`
	Timestamp string           `json:"timestamp,omitempty"`
	Valves    []valve.Snapshot `json:"valves,omitempty"`
	Valve     *valve.Snapshot  `json:"valve,omitempty"`
	Device    *hru.State       `json:"device,omitempty"`
	Upstream  string           `json:"upstream,omitempty"`
}

// SnapshotFunc produces the valve table sent to a client on connect.
type SnapshotFunc func() []valve.Snapshot

// Hub manages WebSocket connections and pushes valve, device, and
// upstream-status frames to every connected client.
//
// Sends are fire-and-forget: a client whose buffer is full misses the
// frame, and a disconnected client is pruned on the next interaction.
type Hub struct {
	cfg      config.WebSocketConfig
	logger   *logging.Logger
	snapshot SnapshotFunc
	clients  map[*WSClient]struct{}
	mu       sync.RWMutex

	// Last known device state and upstream status, replayed in the
	// snapshot frame so new clients do not start blank.
	lastDevice *hru.State
	lastStatus string
}

// WSClient represents a connected WebSocket client.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// SetSnapshotFunc registers the provider of the valve table for the
// initial frame. Call before the first client connects.
func (h *Hub) SetSnapshotFunc(fn SnapshotFunc) {
	h.snapshot = fn
}

// Run starts the hub's main loop. It blocks until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub and sends it the snapshot frame.
func (h *Hub) Register(client *WSClient) {
	frame := WSFrame{
		Type:      WSTypeSnapshot,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	frame.Device = h.lastDevice
	frame.Upstream = h.lastStatus
	h.mu.Unlock()

	if h.snapshot != nil {
		frame.Valves = h.snapshot()
	}
	if data, err := json.Marshal(frame); err == nil {
		client.trySend(data)
	}

	h.logger.Debug("websocket client connected", "clients", h.ClientCount())
}

// Unregister removes a client from the hub.
// Only the goroutine that successfully removes the client from the map
// closes the send channel, preventing double-close panics during shutdown.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// BroadcastValve pushes a valve update frame to all clients.
func (h *Hub) BroadcastValve(snap valve.Snapshot) {
	h.broadcast(WSFrame{Type: WSTypeUpdate, Valve: &snap})
}

// BroadcastDevice pushes a ventilation unit state frame to all clients
// and remembers it for future snapshot frames.
func (h *Hub) BroadcastDevice(state hru.State) {
	h.mu.Lock()
	h.lastDevice = &state
	h.mu.Unlock()
	h.broadcast(WSFrame{Type: WSTypeDevice, Device: &state})
}

// BroadcastStatus pushes an upstream link status frame to all clients.
func (h *Hub) BroadcastStatus(status string) {
	h.mu.Lock()
	h.lastStatus = status
	h.mu.Unlock()
	h.broadcast(WSFrame{Type: WSTypeStatus, Upstream: status})
}

// broadcast fans a frame out to every connected client. The client
// list is snapshotted under the hub lock, then released before sending.
func (h *Hub) broadcast(frame WSFrame) {
	frame.Timestamp = time.Now().UTC().Format(time.RFC3339)

	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("failed to marshal broadcast frame", "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.trySend(data)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects all clients and closes their send channels
// so writePump goroutines can exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// handleWebSocket upgrades the HTTP connection to a WebSocket connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, wsSendBufferSize),
	}

	s.hub.Register(client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readPump reads messages from the WebSocket connection. Clients are
// not expected to send anything beyond keepalive pings; any message
// resets the read deadline and ping frames get a pong reply.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Any client message resets the read deadline (keeps connection alive
		// even if browser doesn't respond to protocol-level pings).
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	pongWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming WebSocket message.
func (c *WSClient) handleMessage(data []byte) {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	if msg.Type == WSTypePing {
		if reply, err := json.Marshal(WSFrame{
			Type:      WSTypePong,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}); err == nil {
			c.trySend(reply)
		}
	}
}

// trySend attempts to send data to the client's send channel.
// It silently handles closed channels (client disconnected during broadcast)
// and full buffers (slow client).
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
		// Client buffer full, skip
	}
}
