package infrastructure

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// RuntimeStats is a point-in-time view of process resources.
type RuntimeStats struct {
	Goroutines    int64         `json:"goroutines"`
	HeapAlloc     int64         `json:"heap_alloc_bytes"`
	SysBytes      int64         `json:"sys_bytes"`
	GCCount       uint32        `json:"gc_count"`
	ProcessUptime time.Duration `json:"uptime"`
	Timestamp     time.Time     `json:"timestamp"`
}

// RuntimeMetrics records goroutine, heap and uptime gauges. The readiness
// endpoint reports the last collected sample.
type RuntimeMetrics struct {
	startedAt time.Time

	goroutines metric.Int64Gauge
	heapAlloc  metric.Int64Gauge
	sysBytes   metric.Int64Gauge
	uptime     metric.Float64Gauge
}

// NewRuntimeMetrics creates the runtime gauges on meter.
func NewRuntimeMetrics(meter metric.Meter, startedAt time.Time) (*RuntimeMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(MeterName)
	}

	rm := &RuntimeMetrics{startedAt: startedAt}
	var err error

	if rm.goroutines, err = meter.Int64Gauge(
		"system_goroutines",
		metric.WithDescription("Number of active goroutines"),
	); err != nil {
		return nil, err
	}

	if rm.heapAlloc, err = meter.Int64Gauge(
		"system_memory_usage_bytes",
		metric.WithDescription("Heap bytes in use"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	if rm.sysBytes, err = meter.Int64Gauge(
		"system_memory_system_bytes",
		metric.WithDescription("Memory obtained from the OS in bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	if rm.uptime, err = meter.Float64Gauge(
		"system_process_uptime_seconds",
		metric.WithDescription("Process uptime in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return rm, nil
}

// Collect samples the runtime and records the gauges.
func (rm *RuntimeMetrics) Collect(ctx context.Context) RuntimeStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := RuntimeStats{
		Goroutines:    int64(runtime.NumGoroutine()),
		HeapAlloc:     int64(ms.Alloc),
		SysBytes:      int64(ms.Sys),
		GCCount:       ms.NumGC,
		ProcessUptime: time.Since(rm.startedAt),
		Timestamp:     time.Now(),
	}

	rm.goroutines.Record(ctx, stats.Goroutines)
	rm.heapAlloc.Record(ctx, stats.HeapAlloc)
	rm.sysBytes.Record(ctx, stats.SysBytes)
	rm.uptime.Record(ctx, stats.ProcessUptime.Seconds())

	return stats
}

// Run collects every interval until ctx is done.
func (rm *RuntimeMetrics) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	rm.Collect(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rm.Collect(ctx)
		}
	}
}
