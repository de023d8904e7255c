// Package websocket streams extraction progress to browser clients.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gunturawaludins/mkbd-new/internal/infrastructure"
	"github.com/gunturawaludins/mkbd-new/internal/pipeline"
)

// Message types
const (
	TypeConnection = "connection"
	TypeProgress   = "extraction:progress"
	TypeJob        = "extraction:job"
	TypeMaster     = "master:loaded"
)

// broadcastQueue bounds pending broadcasts; publishers never block on it.
const broadcastQueue = 256

// Envelope is the JSON frame sent to clients.
type Envelope struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
	TraceID   string `json:"trace_id,omitempty"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	running bool
	quit    chan struct{}
	done    chan struct{}

	logger *slog.Logger

	totalConnections atomic.Int64
	messagesSent     atomic.Int64
	dropped          atomic.Int64
}

// NewHub creates a hub. Call Start before clients connect.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastQueue),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "websocket.hub")),
	}
}

// Start runs the hub loop. It is a no-op when already running.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	go h.run()
}

// Stop ends the hub loop and closes every client queue.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
	<-h.done
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			h.logger.Info("hub stopped")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.totalConnections.Add(1)

			h.logger.Info("client registered",
				slog.String("client_id", c.id),
				slog.String("remote_addr", c.remoteAddr),
				slog.Int("total_clients", count))

			if msg, err := marshal(TypeConnection, map[string]any{
				"status":    "connected",
				"client_id": c.id,
			}, c.traceID); err == nil {
				select {
				case c.send <- msg:
				default:
				}
			}

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client unregistered",
				slog.String("client_id", c.id),
				slog.Int("total_clients", count),
				slog.Duration("connection_duration", time.Since(c.connectedAt)))

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
					h.messagesSent.Add(1)
				default:
					// slow consumer
					close(c.send)
					delete(h.clients, c)
					h.logger.Warn("client send buffer full, disconnecting", slog.String("client_id", c.id))
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register adds a client. It blocks until the hub loop accepts it.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.quit:
	}
}

// Unregister removes a client and closes its queue.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// Broadcast queues a typed message for every client. A full queue drops
// the message.
func (h *Hub) Broadcast(msgType string, data any) {
	h.BroadcastWithTrace(context.Background(), msgType, data)
}

// BroadcastWithTrace is Broadcast carrying the trace ID of ctx.
func (h *Hub) BroadcastWithTrace(ctx context.Context, msgType string, data any) {
	msg, err := marshal(msgType, data, infrastructure.GetTraceID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "marshal broadcast",
			slog.String("type", msgType),
			slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.dropped.Add(1)
		h.logger.WarnContext(ctx, "broadcast queue full, message dropped", slog.String("type", msgType))
	}
}

// Publish implements pipeline.EventSink.
func (h *Hub) Publish(e pipeline.ProgressEvent) {
	h.Broadcast(TypeProgress, e)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns hub counters.
func (h *Hub) Stats() map[string]any {
	return map[string]any{
		"active_clients":    h.ClientCount(),
		"total_connections": h.totalConnections.Load(),
		"messages_sent":     h.messagesSent.Load(),
		"messages_dropped":  h.dropped.Load(),
	}
}

func marshal(msgType string, data any, traceID string) ([]byte, error) {
	return json.Marshal(Envelope{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		TraceID:   traceID,
	})
}

var _ pipeline.EventSink = (*Hub)(nil)
