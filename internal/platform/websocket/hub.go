// Package websocket is the relay side of the notification channel. It
// implements a hub-and-spoke pattern where sessions subscribe to topics
// and receive events broadcast to those topics.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medhya/medhya/internal/platform/auth"
	"github.com/medhya/medhya/internal/platform/eventbus"
	"github.com/medhya/medhya/internal/platform/realtime"
)

const (
	sendBuffer     = 256
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10
)

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client represents a single WebSocket session.
type Client struct {
	ID     string
	UserID string
	Roles  []string
	Topics []string
	Send   chan []byte
	hub    *Hub
	conn   Conn
}

// mayJoin reports whether topic is one of the client's identity topics, or not
// an identity topic at all. Sessions may not listen in on other users or on
// roles they do not hold.
func (c *Client) mayJoin(topic string) bool {
	switch {
	case strings.HasPrefix(topic, "user:"):
		return topic == realtime.UserTopic(c.UserID)
	case strings.HasPrefix(topic, "role:"):
		for _, r := range c.Roles {
			if topic == realtime.RoleTopic(r) {
				return true
			}
		}
		return false
	default:
		return topic != ""
	}
}

// Hub is the central connection manager that tracks clients and their topic
// subscriptions. All operations are thread-safe via sync.RWMutex.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // topic -> set of clients
	all     map[*Client]struct{}
	logger  zerolog.Logger
	now     func() time.Time
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		logger:  logger,
		now:     time.Now,
	}
}

// NewClient builds a session for claims subscribed to its user and role
// topics. It is not registered yet.
func (h *Hub) NewClient(claims *auth.Claims, conn Conn) *Client {
	c := &Client{
		ID:     uuid.New().String(),
		UserID: claims.UserIDOrSubject(),
		Roles:  claims.AllRoles(),
		Send:   make(chan []byte, sendBuffer),
		hub:    h,
		conn:   conn,
	}
	c.Topics = append(c.Topics, realtime.UserTopic(c.UserID))
	for _, r := range c.Roles {
		c.Topics = append(c.Topics, realtime.RoleTopic(r))
	}
	return c
}

// Register adds a client to the hub and subscribes it to its initial topics.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}

	for _, topic := range client.Topics {
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		h.clients[topic][client] = struct{}{}
	}
	h.logger.Debug().Str("client_id", client.ID).Str("user_id", client.UserID).Msg("session registered")
}

// Unregister removes a client from the hub and all topic subscriptions, and
// closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}

	for _, topic := range client.Topics {
		if subscribers, ok := h.clients[topic]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.clients, topic)
			}
		}
	}

	delete(h.all, client)
	close(client.Send)
	h.logger.Debug().Str("client_id", client.ID).Str("user_id", client.UserID).Msg("session unregistered")
}

// Subscribe adds topics to a registered client. Topics the client may not
// join are skipped; the accepted ones are returned.
func (h *Hub) Subscribe(client *Client, topics []string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	accepted := make([]string, 0, len(topics))
	for _, topic := range topics {
		if !client.mayJoin(topic) {
			h.logger.Warn().Str("client_id", client.ID).Str("topic", topic).Msg("subscription refused")
			continue
		}
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		if _, dup := h.clients[topic][client]; dup {
			continue
		}
		h.clients[topic][client] = struct{}{}
		accepted = append(accepted, topic)
	}
	client.Topics = append(client.Topics, accepted...)
	return accepted
}

// Unsubscribe removes topics from a registered client.
func (h *Hub) Unsubscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	removeSet := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		removeSet[t] = struct{}{}
	}

	for _, topic := range topics {
		if subscribers, ok := h.clients[topic]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.clients, topic)
			}
		}
	}

	remaining := make([]string, 0, len(client.Topics))
	for _, t := range client.Topics {
		if _, rm := removeSet[t]; !rm {
			remaining = append(remaining, t)
		}
	}
	client.Topics = remaining
}

// ProcessMessage handles an inbound frame from client.
func (h *Hub) ProcessMessage(client *Client, msg realtime.Frame) {
	switch msg.Action {
	case realtime.ActionSubscribe:
		h.Subscribe(client, msg.Topics)
	case realtime.ActionUnsubscribe:
		h.Unsubscribe(client, msg.Topics)
	case realtime.ActionEmit:
		if !realtime.ClientEvents[msg.Event] {
			h.logger.Warn().Str("client_id", client.ID).Str("event", msg.Event).Msg("client emitted a server-only event")
			return
		}
		ev := h.newEvent(msg.Event, msg.Data)
		ev.From = client.UserID
		h.broadcastExcept(client, ev)
	}
}

func (h *Hub) newEvent(name string, data json.RawMessage) realtime.Event {
	return realtime.Event{
		ID:        uuid.New().String(),
		Name:      name,
		Data:      data,
		Timestamp: h.now().UTC(),
	}
}

func (h *Hub) marshal(event realtime.Event) ([]byte, bool) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event.Name).Msg("failed to marshal event")
		return nil, false
	}
	return data, true
}

// deliver queues data for client without blocking. A full buffer drops the
// event for that client.
func (h *Hub) deliver(client *Client, data []byte) bool {
	select {
	case client.Send <- data:
		return true
	default:
		h.logger.Warn().Str("client_id", client.ID).Msg("send buffer full, dropping event")
		return false
	}
}

// Broadcast sends an event to all clients subscribed to topic.
func (h *Hub) Broadcast(topic string, event realtime.Event) int {
	data, ok := h.marshal(event)
	if !ok {
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for client := range h.clients[topic] {
		if h.deliver(client, data) {
			n++
		}
	}
	return n
}

// BroadcastAll sends an event to every connected client regardless of topic.
func (h *Hub) BroadcastAll(event realtime.Event) int {
	return h.broadcastExcept(nil, event)
}

func (h *Hub) broadcastExcept(skip *Client, event realtime.Event) int {
	data, ok := h.marshal(event)
	if !ok {
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for client := range h.all {
		if client == skip {
			continue
		}
		if h.deliver(client, data) {
			n++
		}
	}
	return n
}

// Route fans env out to its topics, each session at most once, or to every
// session when env names no recipients or roles. It returns the number of
// sessions the event was queued for.
func (h *Hub) Route(env eventbus.Envelope) int {
	event := h.newEvent(env.Event, env.Data)
	topics := env.Topics()
	if len(topics) == 0 {
		return h.BroadcastAll(event)
	}

	data, ok := h.marshal(event)
	if !ok {
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*Client]struct{})
	for _, topic := range topics {
		for client := range h.clients[topic] {
			if _, dup := seen[client]; dup {
				continue
			}
			seen[client] = struct{}{}
			h.deliver(client, data)
		}
	}
	return len(seen)
}

// Deliver implements eventbus.Sink.
func (h *Hub) Deliver(_ context.Context, env eventbus.Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	n := h.Route(env)
	h.logger.Debug().Str("event", env.Event).Int("sessions", n).Msg("event routed")
	return nil
}

// Shutdown unregisters every client, closing their send channels so write
// pumps send a close frame and exit.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.all))
	for c := range h.all {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.Unregister(c)
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// TopicCount returns the number of clients subscribed to a specific topic.
func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// Online reports whether userID has at least one session.
func (h *Hub) Online(userID string) bool {
	return h.TopicCount(realtime.UserTopic(userID)) > 0
}

// ---------------------------------------------------------------------------
// WebSocketHandler: Echo HTTP handler for WebSocket connections
// ---------------------------------------------------------------------------

// WebSocketHandler handles HTTP-to-WebSocket upgrades and message routing.
type WebSocketHandler struct {
	hub      *Hub
	upgrader gorillawebsocket.Upgrader
	logger   zerolog.Logger
}

// NewWebSocketHandler creates a handler bound to hub. An empty
// allowedOrigins accepts any origin.
func NewWebSocketHandler(hub *Hub, allowedOrigins []string, logger zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		logger: logger,
	}
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}

// RegisterRoutes registers GET /ws on e. mw must include the JWT
// middleware.
func (wsh *WebSocketHandler) RegisterRoutes(e *echo.Echo, mw ...echo.MiddlewareFunc) {
	e.GET("/ws", wsh.HandleConnect, mw...)
}

// HandleConnect upgrades an authenticated request to a WebSocket session,
// registers it with the hub and starts the read and write pumps.
func (wsh *WebSocketHandler) HandleConnect(c echo.Context) error {
	claims := auth.ClaimsFromContext(c)
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		wsh.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return nil
	}

	client := wsh.hub.NewClient(claims, ws)
	wsh.hub.Register(client)
	wsh.logger.Info().Str("client_id", client.ID).Str("user_id", client.UserID).Strs("roles", client.Roles).Msg("session connected")

	go wsh.writePump(client, ws)
	go wsh.readPump(client, ws)

	return nil
}

// readPump reads frames from the session and processes them.
func (wsh *WebSocketHandler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		wsh.hub.Unregister(client)
		ws.Close()
		wsh.logger.Info().Str("client_id", client.ID).Str("user_id", client.UserID).Msg("session closed")
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if gorillawebsocket.IsUnexpectedCloseError(err, gorillawebsocket.CloseGoingAway, gorillawebsocket.CloseNormalClosure) {
				wsh.logger.Debug().Err(err).Str("client_id", client.ID).Msg("session read error")
			}
			return
		}

		var msg realtime.Frame
		if err := json.Unmarshal(message, &msg); err != nil {
			continue // Ignore malformed messages.
		}

		wsh.hub.ProcessMessage(client, msg)
	}
}

// writePump writes queued events to the session and keeps it alive with
// pings.
func (wsh *WebSocketHandler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
