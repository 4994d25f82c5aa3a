package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"chatwidget-backend/internal/middleware"
	"chatwidget-backend/internal/models"
)

const (
	writeWait     = 10 * time.Second
	subscribeWait = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client serializes writes; gorilla connections allow one writer at a time.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// subscription is one Redis channel subscription shared by a session's views.
type subscription struct {
	stop context.CancelFunc
	refs int
}

// Hub pushes session events to every open view of that session. With a
// Redis client events travel through the session's pub/sub channel.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID][]*client
	redisClient *redis.Client
	auth        *middleware.SessionAuth

	subMu sync.Mutex
	subs  map[uuid.UUID]*subscription
}

// NewHub creates a hub. With a nil redisClient events are delivered locally.
func NewHub(redisClient *redis.Client, auth *middleware.SessionAuth) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID][]*client),
		redisClient: redisClient,
		auth:        auth,
		subs:        make(map[uuid.UUID]*subscription),
	}
}

func channelName(sessionID uuid.UUID) string {
	return "session_updates:" + sessionID.String()
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Authenticate via token query param
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sessionID, err := h.auth.Verify(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// The view must not open before events published to it can arrive.
	if err := h.acquire(r.Context(), sessionID); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("redis subscribe failed")
		http.Error(w, "Realtime updates unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		h.release(sessionID)
		return
	}

	c := &client{conn: conn}
	h.registerConnection(sessionID, c)

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

	log.Debug().Str("session_id", sessionID.String()).Int("total", len(h.connections[sessionID])).Msg("websocket connected")
}

func (h *Hub) unregisterConnection(sessionID uuid.UUID, c *client) {
	defer h.release(sessionID)

	h.mu.Lock()
	defer h.mu.Unlock()

	c.conn.Close()

	conns := h.connections[sessionID]
	for i, existing := range conns {
		if existing == c {
			h.connections[sessionID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	if len(h.connections[sessionID]) == 0 {
		delete(h.connections, sessionID)
	}

	log.Debug().Str("session_id", sessionID.String()).Msg("websocket disconnected")
}

// acquire holds the session's Redis subscription for one more view. The
// first view subscribes and waits for Redis to confirm it.
func (h *Hub) acquire(ctx context.Context, sessionID uuid.UUID) error {
	if h.redisClient == nil {
		return nil
	}
	h.subMu.Lock()
	defer h.subMu.Unlock()

	if s, ok := h.subs[sessionID]; ok {
		s.refs++
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, subscribeWait)
	defer cancel()
	pubsub := h.redisClient.Subscribe(ctx, channelName(sessionID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return err
	}

	runCtx, stop := context.WithCancel(context.Background())
	h.subs[sessionID] = &subscription{stop: stop, refs: 1}
	go h.consume(runCtx, sessionID, pubsub)
	return nil
}

// release drops one view's hold; the last one unsubscribes.
func (h *Hub) release(sessionID uuid.UUID) {
	if h.redisClient == nil {
		return
	}
	h.subMu.Lock()
	defer h.subMu.Unlock()

	s, ok := h.subs[sessionID]
	if !ok {
		return
	}
	s.refs--
	if s.refs == 0 {
		s.stop()
		delete(h.subs, sessionID)
	}
}

func (h *Hub) consume(ctx context.Context, sessionID uuid.UUID, pubsub *redis.PubSub) {
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

func (h *Hub) broadcast(sessionID uuid.UUID, data []byte) {
	h.mu.RLock()
	conns := append([]*client(nil), h.connections[sessionID]...)
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(data); err != nil {
			log.Debug().Err(err).Str("session_id", sessionID.String()).Msg("websocket write failed")
		}
	}
}

// Publish delivers msg to every view of the session.
func (h *Hub) Publish(sessionID uuid.UUID, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type).Msg("marshal websocket event")
		return
	}

	if h.redisClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := h.redisClient.Publish(ctx, channelName(sessionID), data).Err()
		if err == nil {
			return
		}
		log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("redis publish failed, delivering locally")
	}
	h.broadcast(sessionID, data)
}

// CloseSession drops every view of the session.
func (h *Hub) CloseSession(sessionID uuid.UUID) {
	h.mu.RLock()
	conns := append([]*client(nil), h.connections[sessionID]...)
	h.mu.RUnlock()

	for _, c := range conns {
		c.mu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
			time.Now().Add(writeWait))
		c.mu.Unlock()
		c.conn.Close()
	}
}

// ConnectionCount returns the number of open views of the session.
func (h *Hub) ConnectionCount(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[sessionID])
}
