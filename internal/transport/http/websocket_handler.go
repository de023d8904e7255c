package http

import (
	"log/slog"
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"

	apierrors "github.com/gunturawaludins/mkbd-new/internal/errors"
	"github.com/gunturawaludins/mkbd-new/internal/middleware"
	"github.com/gunturawaludins/mkbd-new/internal/websocket"
)

// WebSocketConfig sizes the upgrader and keepalive.
type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	PingPeriod      time.Duration
	PongWait        time.Duration
	AllowedOrigins  []string
}

// WebSocketHandler upgrades /ws connections and attaches them to the hub.
type WebSocketHandler struct {
	hub      *websocket.Hub
	upgrader gorillaws.Upgrader
	timing   websocket.Timing
	errors   *apierrors.ErrorHandler
	logger   *slog.Logger
}

// NewWebSocketHandler creates a WebSocketHandler.
func NewWebSocketHandler(hub *websocket.Hub, cfg WebSocketConfig, errors *apierrors.ErrorHandler, logger *slog.Logger) *WebSocketHandler {
	logger = logger.With(slog.String("handler", "websocket"))
	origins := cfg.AllowedOrigins
	return &WebSocketHandler{
		hub: hub,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// non-browser clients send no Origin
				if origin == "" {
					return true
				}
				return middleware.OriginAllowed(origins, origin)
			},
			// the upgrader's own 403/400 response is replaced by a problem
			Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
				apiErr := *apierrors.ErrWebSocketUpgrade
				apiErr.StatusCode = status
				apiErr.Details = reason.Error()
				errors.HandleError(w, r, &apiErr)
			},
		},
		timing: websocket.Timing{PingPeriod: cfg.PingPeriod, PongWait: cfg.PongWait},
		errors: errors,
		logger: logger,
	}
}

// ServeHTTP handles GET /ws. It blocks for the lifetime of the connection.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()))
		return
	}
	client := websocket.NewClient(r.Context(), h.hub, conn, r.RemoteAddr, h.timing, h.logger)
	client.Serve()
}
