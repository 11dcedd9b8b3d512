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
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/sync/errgroup"

	_ "salescli/docs"
	"salescli/internal/config"
	apperrors "salescli/internal/errors"
	"salescli/internal/infrastructure"
	customMiddleware "salescli/internal/middleware"
	"salescli/internal/operations"
	"salescli/internal/services"
	handlers "salescli/internal/transport/http"
	ws "salescli/internal/websocket"
	"salescli/pkg/contracts"
)

// AppName is the service name used in logs
const AppName = "sales-web"

// Application represents the main application container
type Application struct {
	Config          *config.Config
	Paths           *config.Paths
	Router          *chi.Mux
	Server          *http.Server
	WebSocketHub    *ws.Hub
	Broadcaster     *operations.StatusBroadcaster
	RunStore        *operations.MemoryRunStore
	Manager         *operations.Manager
	AnalysisService *services.AnalysisService
	HealthService   *services.HealthService
	Logger          *slog.Logger
	OTelProviders   *infrastructure.OTelProviders
}

// NewApplication wires every component from cfg. providers may be nil, in
// which case tracing and metrics are no-ops and /metrics is not served.
func NewApplication(cfg *config.Config, providers *infrastructure.OTelProviders, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		return nil, apperrors.NewConfigError("configuration is required", nil)
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version))

	paths, err := config.GetPaths(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to get paths: %w", err)
	}
	logger.Info("Ensuring required directories exist",
		slog.String("runs_dir", paths.RunsDir),
		slog.String("uploads_dir", paths.UploadsDir))
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: providers,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	if err := app.setupRouter(); err != nil {
		return nil, fmt.Errorf("failed to set up router: %w", err)
	}
	app.createServer()

	return app, nil
}

// initializeServices creates the hub, the pipeline manager and the services
func (a *Application) initializeServices() error {
	var hubMetrics *ws.HubMetrics
	if a.OTelProviders != nil {
		m, err := ws.NewHubMetrics(a.OTelProviders.Meter)
		if err != nil {
			return fmt.Errorf("failed to create websocket metrics: %w", err)
		}
		hubMetrics = m
	}
	hub := ws.NewHub(a.Logger, hubMetrics)
	hub.Start()
	a.WebSocketHub = hub

	tracer, err := operations.NewRunTracer(a.OTelProviders)
	if err != nil {
		return fmt.Errorf("failed to create run tracer: %w", err)
	}

	a.Broadcaster = operations.NewStatusBroadcaster(hub, a.Logger)
	a.RunStore = operations.NewMemoryRunStore()
	a.Manager = operations.NewManager(a.RunStore, a.Broadcaster, tracer, a.Logger)

	a.AnalysisService = services.NewAnalysisService(a.Manager, a.Config, a.Paths, a.Logger)
	a.HealthService = services.NewHealthService(a.Paths, hub, a.Logger)
	return nil
}

func (a *Application) setupRouter() error {
	r := chi.NewRouter()
	errorHandler := apperrors.NewErrorHandler(a.Logger)

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
	if err != nil {
		return fmt.Errorf("failed to create OpenTelemetry middleware: %w", err)
	}

	// RequestID must come first so every later middleware sees the trace ID
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(otelMiddleware.Handler)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.Logger))
	r.Use(customMiddleware.SecurityHeaders)
	r.Use(customMiddleware.CORS(a.Config.Server.AllowedOrigins))

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	r.Get("/ws", ws.Handler(a.WebSocketHub, a.Config.Server.AllowedOrigins, a.Logger))

	if a.OTelProviders != nil && a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	a.setupAPIRoutes(r, errorHandler)

	a.Router = r
	return nil
}

func (a *Application) setupAPIRoutes(r chi.Router, errorHandler *apperrors.ErrorHandler) {
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)

		r.Group(func(r chi.Router) {
			if a.Config.Server.RateLimit.Enabled {
				r.Use(customMiddleware.NewRateLimiter(
					a.Config.Server.RateLimit.RPS,
					a.Config.Server.RateLimit.Burst,
					a.Logger,
				).Handler)
			}
			r.Use(customMiddleware.MaxBodySize(a.Config.Server.MaxUploadBytes))

			analysisHandler := handlers.NewAnalysisHandler(
				a.AnalysisService,
				customMiddleware.NewValidator(a.Logger),
				errorHandler,
				a.Config.Server.MaxUploadBytes,
				a.Logger,
			)
			r.Mount("/v1/analyses", analysisHandler.Routes())
		})
	})
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Run serves HTTP until ctx is cancelled or the server fails, then shuts
// everything down
func (a *Application) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(gctx, "Application started",
			slog.String("address", a.Server.Addr),
			slog.String("level", a.Config.Logging.Level))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if retention := a.Config.Server.RunRetention; retention > 0 {
		g.Go(func() error {
			a.cleanupLoop(gctx, retention)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.Logger.InfoContext(ctx, "Shutdown requested")
		return a.Stop(context.Background())
	})

	return g.Wait()
}

// cleanupLoop forgets finished runs older than retention. Artifacts on
// disk are kept.
func (a *Application) cleanupLoop(ctx context.Context, retention time.Duration) {
	interval := retention / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.cleanupRuns(ctx, retention)
		}
	}
}

func (a *Application) cleanupRuns(ctx context.Context, retention time.Duration) {
	runs := a.RunStore.CleanupOldRuns(retention)
	snapshots := a.Broadcaster.CleanupOldRuns(retention)
	if runs > 0 || snapshots > 0 {
		a.Logger.InfoContext(ctx, "Expired runs removed",
			slog.Int("runs", runs),
			slog.Int("snapshots", snapshots))
	}
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	a.Broadcaster.Stop()
	a.WebSocketHub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}
