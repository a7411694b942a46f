package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is a single WebSocket connection attempt.
type Conn interface {
	// Dial establishes the connection. A nil return means the connection
	// is open; a non-nil return means the attempt failed and no events
	// will ever be delivered.
	Dial(ctx context.Context) error

	// Send writes one text frame. Fails with ErrNotOpen if the
	// connection is not currently open.
	Send(data []byte) error

	// Probe sends a liveness probe (ping control frame) carrying the
	// given application data. The remote's reply surfaces asynchronously
	// as a KindProbeAck event.
	Probe(payload []byte) error

	// Close initiates a graceful shutdown with the given close code and
	// reason. The resulting KindClosed event carries the same code and
	// reason. Safe to call more than once.
	Close(code int, reason string) error

	// Terminate drops the connection abruptly, with no close handshake.
	// The resulting KindClosed event reports an abnormal closure.
	Terminate()

	// Events returns the ordered event stream for this attempt. The
	// channel is closed after the KindClosed event; consumers must drain
	// it until then.
	Events() <-chan Event

	// IsOpen reports whether the connection is currently open.
	IsOpen() bool
}

// conn implements the Conn interface on a gorilla websocket.
type conn struct {
	cfg    Config
	logger *slog.Logger

	ws     *websocket.Conn
	events chan Event

	// Write serialization
	writeMu sync.Mutex

	// State
	mu          sync.RWMutex
	open        bool
	closed      bool // caller requested a graceful close
	closeCode   int
	closeReason string
}

// New creates a connection for one dial attempt.
func New(cfg Config, logger *slog.Logger) Conn {
	if logger == nil {
		logger = slog.Default()
	}

	return &conn{
		cfg:    cfg,
		logger: logger,
		events: make(chan Event, cfg.BufferSize),
	}
}

// Dial establishes the WebSocket connection.
func (c *conn) Dial(ctx context.Context) error {
	c.mu.Lock()
	if c.ws != nil {
		c.mu.Unlock()
		return ErrAlreadyDialed
	}
	c.mu.Unlock()

	endpoint, err := url.Parse(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("parse endpoint url: %w", err)
	}
	if c.cfg.Token != "" {
		q := endpoint.Query()
		q.Set("token", c.cfg.Token)
		endpoint.RawQuery = q.Encode()
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	ws, _, err := dialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("dial websocket: %w", err)
	}

	ws.SetPongHandler(func(appData string) error {
		c.events <- Event{Kind: KindProbeAck, Raw: []byte(appData)}
		return nil
	})

	c.mu.Lock()
	c.ws = ws
	c.open = true
	c.mu.Unlock()

	go c.readLoop()

	c.logger.Debug("websocket connected", "url", c.cfg.URL)

	return nil
}

// Send writes one text frame to the connection.
func (c *conn) Send(data []byte) error {
	c.mu.RLock()
	if !c.open {
		c.mu.RUnlock()
		return ErrNotOpen
	}
	c.mu.RUnlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Probe sends a ping control frame.
func (c *conn) Probe(payload []byte) error {
	c.mu.RLock()
	if !c.open {
		c.mu.RUnlock()
		return ErrNotOpen
	}
	c.mu.RUnlock()

	deadline := time.Now().Add(c.cfg.WriteTimeout)
	return c.ws.WriteControl(websocket.PingMessage, payload, deadline)
}

// Close initiates a graceful shutdown. The caller-initiated mark is set
// before the close frame is written, so the closed event can never be
// observed without it.
func (c *conn) Close(code int, reason string) error {
	c.mu.Lock()
	if c.ws == nil || c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.open = false
	c.closeCode = code
	c.closeReason = reason
	c.mu.Unlock()

	deadline := time.Now().Add(c.cfg.WriteTimeout)
	c.writeMu.Lock()
	c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	c.writeMu.Unlock()

	return c.ws.Close()
}

// Terminate drops the connection without a close handshake. The read
// loop reports the result as an abnormal closure, the same path any
// unexpected disconnect takes.
func (c *conn) Terminate() {
	c.mu.Lock()
	if c.ws == nil || c.closed {
		c.mu.Unlock()
		return
	}
	c.open = false
	c.mu.Unlock()

	c.ws.Close()
}

// Events returns the event channel.
func (c *conn) Events() <-chan Event {
	return c.events
}

// IsOpen returns the current connection state.
func (c *conn) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.open
}

// readLoop reads frames until the connection dies, then emits the
// single closed event and closes the event channel.
func (c *conn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.open = false
			callerClosed := c.closed
			code, reason := c.closeCode, c.closeReason
			c.mu.Unlock()

			if !callerClosed {
				var closeErr *websocket.CloseError
				if errors.As(err, &closeErr) {
					code = closeErr.Code
					reason = closeErr.Text
				} else {
					code = websocket.CloseAbnormalClosure
					reason = err.Error()
					c.events <- Event{Kind: KindError, Err: fmt.Errorf("websocket read: %w", err)}
				}
			}

			c.events <- Event{Kind: KindClosed, Code: code, Reason: reason}
			close(c.events)
			return
		}

		ev := Event{Kind: KindMessage, Raw: data}

		// Best-effort decode; non-JSON payloads pass through raw.
		var decoded any
		if json.Unmarshal(data, &decoded) == nil {
			ev.Decoded = decoded
		}

		c.events <- ev
	}
}
