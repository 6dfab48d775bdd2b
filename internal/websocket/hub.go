package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"astra-chat/internal/chat"
	"astra-chat/internal/middleware"
	"astra-chat/internal/models"
	"astra-chat/internal/render"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const (
	// Time allowed to write one message to the peer.
	writeWait = 10 * time.Second

	// Updates queued per page before it is treated as stalled and dropped.
	sendBuffer = 32
)

// client owns one page's connection. Only writePump writes to conn; the hub
// hands it updates through send so a slow page never blocks the publisher.
type client struct {
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, send: make(chan []byte, sendBuffer)}
}

func (c *client) writePump() {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("WebSocket write failed: %v", err)
			c.conn.Close()
			// Keep draining so enqueue never sees a full buffer for a dead page.
			for range c.send {
			}
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
	c.conn.Close()
}

// enqueue never blocks. A page whose buffer is full is closed, which ends its
// reader goroutine and unregisters it.
func (c *client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		c.conn.Close()
		return false
	}
}

// stop must be called with the hub lock held so no broadcast is mid-send.
func (c *client) stop() {
	c.closeOnce.Do(func() { close(c.send) })
}

// Hub pushes conversation updates to the pages open for a session. With a
// Redis client, updates travel through pub/sub so any instance can deliver
// them; without one they are delivered in-process.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID][]*client
	redisClient *redis.Client
	renderer    *render.Renderer
	cancelFuncs map[uuid.UUID]context.CancelFunc
}

func NewHub(redisClient *redis.Client, renderer *render.Renderer) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID][]*client),
		redisClient: redisClient,
		renderer:    renderer,
		cancelFuncs: make(map[uuid.UUID]context.CancelFunc),
	}
}

// HandleWebSocket expects the session ID in the request context.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())
	if sessionID == uuid.Nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := newClient(conn)
	h.registerConnection(sessionID, c)
	go c.writePump()

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(sessionID, c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (h *Hub) registerConnection(sessionID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[sessionID] = append(h.connections[sessionID], c)

	// Start pub/sub subscription if this is the first connection for this session
	if h.redisClient != nil && len(h.connections[sessionID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[sessionID] = cancel
		go h.subscribeToPubSub(ctx, sessionID)
	}

	log.Printf("WebSocket connected: session %s (total: %d)", sessionID, len(h.connections[sessionID]))
}

func (h *Hub) unregisterConnection(sessionID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.stop()

	conns := h.connections[sessionID]
	for i, existing := range conns {
		if existing == c {
			h.connections[sessionID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	// If no more connections, cancel pub/sub
	if len(h.connections[sessionID]) == 0 {
		delete(h.connections, sessionID)
		if cancel, ok := h.cancelFuncs[sessionID]; ok {
			cancel()
			delete(h.cancelFuncs, sessionID)
		}
	}

	log.Printf("WebSocket disconnected: session %s", sessionID)
}

func (h *Hub) ConnectionCount(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[sessionID])
}

func channelName(sessionID uuid.UUID) string {
	return "session_updates:" + sessionID.String()
}

func (h *Hub) subscribeToPubSub(ctx context.Context, sessionID uuid.UUID) {
	pubsub := h.redisClient.Subscribe(ctx, channelName(sessionID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(sessionID, []byte(msg.Payload))
		}
	}
}

// broadcast holds the read lock while enqueueing so unregisterConnection
// cannot close a send channel underneath it.
func (h *Hub) broadcast(sessionID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.connections[sessionID] {
		if !c.enqueue(data) {
			log.Printf("WebSocket client too slow, dropping: session %s", sessionID)
		}
	}
}

// Publish sends msg to every page open for the session.
func (h *Hub) Publish(ctx context.Context, sessionID uuid.UUID, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	if h.redisClient == nil {
		h.broadcast(sessionID, data)
		return
	}

	if err := h.redisClient.Publish(ctx, channelName(sessionID), string(data)).Err(); err != nil {
		log.Printf("Redis publish failed: session %s: %v", sessionID, err)
	}
}

// MessageAppended implements chat.Listener.
func (h *Hub) MessageAppended(ctx context.Context, conversationID uuid.UUID, m chat.Message) {
	h.Publish(ctx, conversationID, models.WSMessage{
		Type:    models.WSMessageAppended,
		Payload: h.renderer.Message(m),
	})
}

// SubmitFailed implements chat.Listener.
func (h *Hub) SubmitFailed(ctx context.Context, conversationID uuid.UUID, err error) {
	h.Publish(ctx, conversationID, models.WSMessage{
		Type:    models.WSSubmitFailed,
		Payload: models.SubmitFailedEvent{Message: "Failed to get AI response"},
	})
}
