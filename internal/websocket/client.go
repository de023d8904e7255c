package websocket

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gunturawaludins/mkbd-new/internal/infrastructure"
)

const (
	writeWait = 10 * time.Second

	// clients only send heartbeats
	maxMessageSize = 512

	sendQueue = 64
)

// Connection is the part of a websocket connection a Client uses.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
}

// Timing controls keepalive.
type Timing struct {
	PingPeriod time.Duration
	PongWait   time.Duration
}

// DefaultTiming pings every 54s and waits 60s for a pong.
var DefaultTiming = Timing{PingPeriod: 54 * time.Second, PongWait: 60 * time.Second}

// Client is a middleman between one connection and the hub.
type Client struct {
	hub  *Hub
	conn Connection
	send chan []byte

	id          string
	traceID     string
	remoteAddr  string
	connectedAt time.Time
	timing      Timing

	logger *slog.Logger
}

// NewClient wraps conn. remoteAddr is informational.
func NewClient(ctx context.Context, hub *Hub, conn Connection, remoteAddr string, timing Timing, logger *slog.Logger) *Client {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if timing.PongWait <= 0 {
		timing = DefaultTiming
	}
	if timing.PingPeriod <= 0 || timing.PingPeriod >= timing.PongWait {
		timing.PingPeriod = timing.PongWait * 9 / 10
	}
	id := uuid.NewString()
	traceID := infrastructure.GetTraceID(ctx)
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendQueue),
		id:          id,
		traceID:     traceID,
		remoteAddr:  remoteAddr,
		connectedAt: time.Now(),
		timing:      timing,
		logger: logger.With(
			slog.String("component", "websocket.client"),
			slog.String("client_id", id),
			slog.String("trace_id", traceID)),
	}
}

// ID returns the client ID.
func (c *Client) ID() string { return c.id }

// Serve registers the client and runs both pumps. It returns when the read
// side closes.
func (c *Client) Serve() {
	c.hub.Register(c)
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.timing.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.timing.PongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("unexpected close", slog.String("error", err.Error()))
			}
			return
		}
		// any frame counts as a heartbeat
		c.conn.SetReadDeadline(time.Now().Add(c.timing.PongWait))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.timing.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("write failed", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
