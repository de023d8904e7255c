package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

// Health states.
const (
	StatusOK       = "ok"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
	StatusAlive    = "alive"
)

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// StorePinger reports whether the table store is reachable.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// MasterChecker reports whether master data is loaded.
type MasterChecker interface {
	IsLoaded() bool
}

// HubStats exposes websocket hub counters.
type HubStats interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	store     StorePinger
	master    MasterChecker
	hub       HubStats
	startTime time.Time
	logger    *slog.Logger
}

// NewHealthService creates a HealthService. Any dependency may be nil and
// is then omitted from readiness.
func NewHealthService(version string, store StorePinger, master MasterChecker, hub HubStats, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		store:     store,
		master:    master,
		hub:       hub,
		startTime: time.Now(),
		logger:    logger.With(slog.String("service", "health")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    StatusOK,
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck reports not_ready when the table store is unreachable.
// Unloaded master data is reported but does not block readiness, since
// extraction runs without enrichment.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    StatusReady,
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]ServiceHealth),
	}

	if hs.store != nil {
		if err := hs.store.Ping(ctx); err != nil {
			hs.logger.WarnContext(ctx, "storage not ready", slog.String("error", err.Error()))
			status.Services["storage"] = ServiceHealth{Status: StatusNotReady, Message: err.Error()}
			status.Status = StatusNotReady
		} else {
			status.Services["storage"] = ServiceHealth{Status: StatusReady}
		}
	}
	if hs.master != nil {
		if hs.master.IsLoaded() {
			status.Services["master"] = ServiceHealth{Status: StatusReady}
		} else {
			status.Services["master"] = ServiceHealth{Status: "not_loaded", Message: "extractions run without enrichment"}
		}
	}
	if hs.hub != nil {
		status.Services["websocket"] = ServiceHealth{Status: StatusReady}
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	runtimeInfo := map[string]interface{}{
		"uptime":     time.Since(hs.startTime).Seconds(),
		"go_version": runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
	}
	if hs.hub != nil {
		runtimeInfo["websocket_clients"] = hs.hub.ClientCount()
	}
	return HealthStatus{
		Status:    StatusAlive,
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime:   runtimeInfo,
	}
}
