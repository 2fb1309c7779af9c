// Package realtime is the client side of the notification channel: one
// websocket per session delivering named events to registered handlers.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	// ErrNotConnected is returned by Emit and Subscribe without a live connection.
	ErrNotConnected = errors.New("realtime channel not connected")
	// ErrConnectAborted is returned by a Connect that Disconnect overtook
	// while it was still dialing.
	ErrConnectAborted = errors.New("realtime connect aborted by disconnect")
)

const writeWait = 10 * time.Second

// Handler receives one event. Handlers run on the channel's read goroutine
// in registration order and must not block for long.
type Handler func(Event)

// HandlerID identifies a registration for Off.
type HandlerID uint64

type registration struct {
	id HandlerID
	fn Handler
}

// Channel is a session's connection to the relay. Its zero value is not
// usable; create one with NewChannel.
type Channel struct {
	url    string
	dialer *websocket.Dialer
	logger zerolog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{}
	// gen is bumped by every Disconnect so a dial that started earlier
	// does not install its connection.
	gen uint64

	writeMu sync.Mutex

	handlersMu sync.RWMutex
	handlers   map[string][]registration
	nextID     HandlerID
}

type Option func(*Channel)

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Channel) { c.dialer = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Channel) { c.logger = l }
}

// NewChannel returns a disconnected channel for the relay at rawURL
// (ws:// or wss://).
func NewChannel(rawURL string, opts ...Option) *Channel {
	c := &Channel{
		url: rawURL,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		logger:   zerolog.Nop(),
		handlers: make(map[string][]registration),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Connect opens the websocket authenticated with token. Calling it while
// connected is a no-op. Failures are logged and returned; the caller keeps
// working without live updates. The dial happens without holding the
// channel's lock, so Connected, Emit and Disconnect stay responsive.
func (c *Channel) Connect(ctx context.Context, token string) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	gen := c.gen
	c.mu.Unlock()

	u, err := url.Parse(c.url)
	if err != nil {
		c.logger.Error().Err(err).Str("url", c.url).Msg("invalid realtime url")
		return fmt.Errorf("parse realtime url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		ev := c.logger.Warn().Err(err).Str("url", c.url)
		if resp != nil {
			ev = ev.Int("status", resp.StatusCode)
		}
		ev.Msg("realtime connect failed")
		return fmt.Errorf("connect realtime: %w", err)
	}

	c.mu.Lock()
	switch {
	case c.gen != gen:
		c.mu.Unlock()
		conn.Close()
		c.logger.Debug().Str("url", c.url).Msg("realtime connect overtaken by disconnect")
		return ErrConnectAborted
	case c.conn != nil:
		// A concurrent Connect won.
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.done = make(chan struct{})
	go c.readLoop(conn, c.done)
	c.mu.Unlock()

	c.logger.Info().Str("url", c.url).Msg("realtime connected")
	return nil
}

// Connected reports whether a connection is currently open.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Done is closed when the current connection ends. Without a connection it
// returns a closed channel.
func (c *Channel) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Disconnect closes the connection and aborts any Connect still dialing. No
// handler is invoked for events read after it returns. Calling it when not
// connected is a no-op.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.gen++
	c.mu.Unlock()

	if conn == nil {
		return
	}

	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	if err := conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("realtime close")
	}
	c.logger.Info().Msg("realtime disconnected")
}

// On registers h for event. Several handlers may share one event.
func (c *Channel) On(event string, h Handler) HandlerID {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.nextID++
	c.handlers[event] = append(c.handlers[event], registration{id: c.nextID, fn: h})
	return c.nextID
}

// Off removes a registration. Unknown ids are ignored.
func (c *Channel) Off(event string, id HandlerID) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	regs := c.handlers[event]
	for i, r := range regs {
		if r.id == id {
			c.handlers[event] = append(regs[:i:i], regs[i+1:]...)
			break
		}
	}
	if len(c.handlers[event]) == 0 {
		delete(c.handlers, event)
	}
}

// Emit sends a client event. data is marshalled to JSON.
func (c *Channel) Emit(ctx context.Context, event string, data interface{}) error {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", event, err)
		}
		raw = b
	}
	return c.send(ctx, Frame{Action: ActionEmit, Event: event, Data: raw})
}

// Subscribe asks the relay for events published to topics beyond the
// session's own user and role topics.
func (c *Channel) Subscribe(ctx context.Context, topics ...string) error {
	return c.send(ctx, Frame{Action: ActionSubscribe, Topics: topics})
}

func (c *Channel) Unsubscribe(ctx context.Context, topics ...string) error {
	return c.send(ctx, Frame{Action: ActionUnsubscribe, Topics: topics})
}

func (c *Channel) send(ctx context.Context, f Frame) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		c.logger.Warn().Err(err).Str("action", f.Action).Str("event", f.Event).Msg("realtime write failed")
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (c *Channel) current(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn == conn
}

func (c *Channel) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			dropped := c.conn == conn
			if dropped {
				c.conn = nil
			}
			c.mu.Unlock()
			if dropped {
				c.logger.Warn().Err(err).Msg("realtime connection lost")
				conn.Close()
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Name == "" {
			c.logger.Debug().Err(err).Msg("ignoring malformed realtime frame")
			continue
		}
		if !c.current(conn) {
			return
		}
		c.dispatch(ev)
	}
}

func (c *Channel) dispatch(ev Event) {
	c.handlersMu.RLock()
	regs := append([]registration(nil), c.handlers[ev.Name]...)
	c.handlersMu.RUnlock()

	for _, r := range regs {
		c.invoke(r.fn, ev)
	}
}

func (c *Channel) invoke(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Str("event", ev.Name).Msg("realtime handler panicked")
		}
	}()
	h(ev)
}
