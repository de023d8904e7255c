package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/gunturawaludins/mkbd-new/internal/archive"
	"github.com/gunturawaludins/mkbd-new/internal/config"
	apierrors "github.com/gunturawaludins/mkbd-new/internal/errors"
	"github.com/gunturawaludins/mkbd-new/internal/formula"
	"github.com/gunturawaludins/mkbd-new/internal/infrastructure"
	"github.com/gunturawaludins/mkbd-new/internal/masterdata"
	customMiddleware "github.com/gunturawaludins/mkbd-new/internal/middleware"
	"github.com/gunturawaludins/mkbd-new/internal/operations"
	"github.com/gunturawaludins/mkbd-new/internal/pipeline"
	"github.com/gunturawaludins/mkbd-new/internal/services"
	"github.com/gunturawaludins/mkbd-new/internal/store"
	handlers "github.com/gunturawaludins/mkbd-new/internal/transport/http"
	ws "github.com/gunturawaludins/mkbd-new/internal/websocket"
)

const (
	// finished jobs kept for GET /api/v1/extractions
	maxRetainedJobs = 500
	runtimeInterval = 15 * time.Second
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	Errors        *apierrors.ErrorHandler
	WebSocketHub  *ws.Hub
	Registry      *masterdata.Registry
	Store         store.TableStore
	Runner        *operations.Runner
	Scheduler     *masterdata.Scheduler
	Services      *ServiceContainer

	runtime     *infrastructure.RuntimeMetrics
	stopRuntime context.CancelFunc
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Extraction *services.ExtractionService
	Master     *services.MasterService
	Tables     *services.TableService
	Formulas   *services.FormulaService
	Health     *services.HealthService
}

// NewApplication loads configuration and the logger, then builds the
// application.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(ctx, cfg, logger)
}

// New wires every component from cfg. Nothing is started; call Start.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.InfoContext(ctx, "Application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("storage", cfg.Storage.Driver))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Otel), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	runtimeMetrics, err := infrastructure.NewRuntimeMetrics(otelProviders.Meter, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime metrics: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		Errors:        apierrors.NewErrorHandler(logger, false, handlers.ErrorMappings()...),
		runtime:       runtimeMetrics,
	}

	if err := a.initializeServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a.setupRouter()
	a.createServer()

	return a, nil
}

// initializeServices builds the stores, runner and services.
func (a *Application) initializeServices(ctx context.Context) error {
	a.WebSocketHub = ws.NewHub(a.Logger)
	a.Registry = masterdata.NewRegistry(a.Config.Master.DefaultPath, a.Logger)

	tableStore, err := store.Open(ctx, a.Config.Storage, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to open table store: %w", err)
	}
	a.Store = tableStore

	extractor := pipeline.New(a.Registry,
		pipeline.WithEventSink(a.WebSocketHub),
		pipeline.WithMetrics(a.Metrics),
		pipeline.WithLogger(a.Logger))

	runnerOpts := []operations.RunnerOption{
		operations.WithTableStore(a.Store),
		operations.WithNotifier(a.WebSocketHub),
		operations.WithRunnerLogger(a.Logger),
	}
	archiver, err := archive.New(ctx, a.Config.Archive, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize archive: %w", err)
	}
	// a nil *S3Archiver must not become a non-nil Archiver
	if archiver != nil {
		runnerOpts = append(runnerOpts, operations.WithArchiver(archiver))
	}
	a.Runner = operations.NewRunner(extractor, operations.NewMemoryJobStore(maxRetainedJobs), runnerOpts...)

	evaluator := formula.NewEvaluator()
	master := services.NewMasterService(a.Registry, a.WebSocketHub, a.Metrics, a.Logger)
	a.Services = &ServiceContainer{
		Extraction: services.NewExtractionService(a.Runner, a.Logger),
		Master:     master,
		Tables:     services.NewTableService(a.Store, evaluator, a.Metrics, a.Logger),
		Formulas:   services.NewFormulaService(evaluator),
		Health:     services.NewHealthService(config.AppVersion, a.Store, a.Registry, a.WebSocketHub, a.Logger),
	}

	if spec := a.Config.Master.RefreshSchedule; spec != "" {
		a.Scheduler, err = masterdata.NewScheduler(a.Registry, spec, a.Config.Master.TimeZone, a.Logger,
			masterdata.WithLoadHook(func(res masterdata.LoadResult, err error) {
				if err == nil {
					master.Loaded(context.Background(), res)
				}
			}))
		if err != nil {
			return fmt.Errorf("failed to create master data scheduler: %w", err)
		}
	}

	return nil
}

// setupRouter configures middleware and routes.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Minimal middleware that does not wrap the ResponseWriter
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	wsHandler := handlers.NewWebSocketHandler(a.WebSocketHub, handlers.WebSocketConfig{
		ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
		PingPeriod:      a.Config.WebSocket.PingPeriod,
		PongWait:        a.Config.WebSocket.PongWait,
		AllowedOrigins:  a.Config.Security.AllowedOrigins,
	}, a.Errors, a.Logger)
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).Handle("/ws", wsHandler)

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → OTel → Logger → Recoverer
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics, a.Logger).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(apierrors.RecoveryMiddleware(a.Errors))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.CORS(a.corsConfig()))

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Errors,
				a.Logger,
			).Handler)
		}

		health := handlers.NewHealthHandler(a.Services.Health, a.Logger)
		r.Get("/healthz", health.HealthCheck)
		r.Get("/readyz", health.ReadinessCheck)
		r.Get("/livez", health.LivenessCheck)

		a.setupAPIRoutes(r)
	})

	r.NotFound(a.Errors.NotFound)
	r.MethodNotAllowed(a.Errors.MethodNotAllowed)

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	validator := customMiddleware.NewValidator(a.Logger, a.Errors)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.MaxBodySize(a.Config.Server.MaxUploadBytes))
		// the audit log reads the client label set by APIKeyAuth
		r.Use(customMiddleware.APIKeyAuth(a.Config.Security.APIKeys, a.Errors, a.Logger))
		r.Use(customMiddleware.AuditLog(a.Logger))

		r.Mount("/extractions", handlers.NewExtractionHandler(a.Services.Extraction, a.Errors, a.Logger).Routes())
		r.Mount("/master", handlers.NewMasterHandler(a.Services.Master, a.Errors, a.Logger).Routes())
		r.Mount("/tables", handlers.NewTableHandler(a.Services.Tables, validator, a.Errors, a.Logger).Routes())
		r.Mount("/formulas", handlers.NewFormulaHandler(a.Services.Formulas, validator, a.Errors, a.Logger).Routes())
	})
}

func (a *Application) corsConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-API-Key",
			"X-Request-ID",
		},
		ExposedHeaders: []string{
			"Location",
			"X-Request-ID",
		},
		MaxAge: 300,
		Logger: a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         a.Config.Server.Addr(),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start starts background services, loads master data when configured and
// begins serving. Serve errors cancel the application through cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("address", a.Server.Addr),
		slog.String("level", a.Config.Logging.Level))

	a.WebSocketHub.Start()

	runtimeCtx, stop := context.WithCancel(context.Background())
	a.stopRuntime = stop
	go a.runtime.Run(runtimeCtx, runtimeInterval)

	if a.Config.Master.LoadOnStartup {
		// a missing reference workbook only disables enrichment
		if _, err := a.Services.Master.LoadDefault(ctx); err != nil {
			a.Logger.WarnContext(ctx, "Master data not loaded at startup",
				slog.String("path", a.Config.Master.DefaultPath),
				slog.String("error", err.Error()))
		}
	}

	if a.Scheduler != nil {
		a.Scheduler.Start()
		a.Logger.InfoContext(ctx, "Master data refresh scheduled",
			slog.String("schedule", a.Config.Master.RefreshSchedule),
			slog.Time("next", a.Scheduler.Next()))
	}

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started successfully", slog.String("address", a.Server.Addr))
	return nil
}

// Stop gracefully stops the application. In-flight extractions are given
// the shutdown timeout to finish.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}

	if a.Scheduler != nil {
		a.Scheduler.Stop(shutdownCtx)
	}

	if err := a.Runner.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("runner shutdown: %w", err))
	}

	a.WebSocketHub.Stop()
	if a.stopRuntime != nil {
		a.stopRuntime()
	}

	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run starts the application and blocks until ctx is cancelled or the
// server fails, then shuts down.
func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.Info("Received shutdown signal")

	return a.Stop(context.Background())
}
