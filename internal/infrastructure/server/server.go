package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	api "github.com/GriffinCanCode/WidgetHost/internal/api/http"
	"github.com/GriffinCanCode/WidgetHost/internal/api/middleware"
	"github.com/GriffinCanCode/WidgetHost/internal/api/ws"
	"github.com/GriffinCanCode/WidgetHost/internal/domain/broker"
	"github.com/GriffinCanCode/WidgetHost/internal/domain/permission"
	"github.com/GriffinCanCode/WidgetHost/internal/domain/ratelimit"
	"github.com/GriffinCanCode/WidgetHost/internal/domain/registry"
	"github.com/GriffinCanCode/WidgetHost/internal/domain/sandbox"
	"github.com/GriffinCanCode/WidgetHost/internal/domain/state"
	"github.com/GriffinCanCode/WidgetHost/internal/domain/supervisor"
	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/config"
	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/WidgetHost/internal/providers/network"
	"github.com/GriffinCanCode/WidgetHost/internal/providers/permissions"
	"github.com/GriffinCanCode/WidgetHost/internal/providers/storage"
	"github.com/GriffinCanCode/WidgetHost/internal/providers/system"
	"github.com/GriffinCanCode/WidgetHost/internal/providers/window"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
	"github.com/GriffinCanCode/WidgetHost/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router      *gin.Engine
	config      *config.Config
	logger      *logging.Logger
	metrics     *monitoring.Metrics
	tracer      *tracing.Tracer
	db          *store.Store
	limiter     *ratelimit.Limiter
	permissions *permission.Broker
	registry    *registry.Registry
	state       *state.Manager
	supervisor  *supervisor.Supervisor
	broker      *broker.Broker
	hub         *ws.Hub
}

// NewServer wires every component of the host. Nothing is launched until
// Start is called.
func NewServer(cfg *config.Config, logger *logging.Logger, version string) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info("Initializing widget host",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("widgets", cfg.Widgets.Dir),
		zap.String("db", cfg.State.DBPath),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New(logger.Logger)

	db, err := store.New(cfg.State.DBPath)
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	limiter := ratelimit.New(ratelimit.Config{
		Limit:         cfg.Capability.RateLimit,
		Window:        cfg.Capability.RateWindow,
		SweepInterval: cfg.Capability.SweepInterval,
		TTL:           cfg.Capability.EntryTTL,
		Metrics:       metrics,
	}, logger.Logger)

	grants := permission.NewBroker(db, limiter, permission.Config{
		PromptTimeout: cfg.Capability.PromptTimeout,
		Metrics:       metrics,
	}, logger.Logger)

	catalog := registry.New(cfg.Widgets.Dir, logger.Logger, metrics)

	stateMgr := state.NewManager(db, state.Config{
		Debounce: cfg.State.Debounce,
		Defaults: types.Settings{
			AutoRestore: cfg.State.AutoRestore,
			MaxWidgets:  cfg.Widgets.MaxInstances,
		},
		Metrics: metrics,
	}, logger.Logger)

	sup := supervisor.New(catalog, grants, stateMgr, supervisor.Config{
		Capacity: cfg.Widgets.MaxInstances,
		FadeIn:   cfg.Widgets.FadeIn,
		FadeOut:  cfg.Widgets.FadeOut,
		Sandbox:  sandbox.DefaultConfig(),
		Metrics:  metrics,
	}, logger.Logger)

	msgs := broker.New(grants, broker.Config{
		CallTimeout: cfg.Widgets.CallTimeout,
		Metrics:     metrics,
	}, logger.Logger)

	providers := []broker.Provider{
		system.NewProvider(nil),
		network.NewProvider(network.DefaultConfig(), logger.Logger),
		storage.NewProvider(db),
		window.NewProvider(sup),
		permissions.NewProvider(grants),
	}
	for _, p := range providers {
		if err := msgs.Register(p); err != nil {
			stateMgr.Close()
			limiter.Destroy()
			db.Close()
			tracer.Close()
			return nil, fmt.Errorf("failed to register %s provider: %w", p.Definition().ID, err)
		}
	}
	sup.SetHandler(msgs)

	hub := ws.NewHub(ws.LoopbackOrigin, metrics, logger.Logger)
	grants.SetPrompter(hub)
	sup.Subscribe(hub.PublishEvent)
	grants.OnDecision(func(d permission.Decision) {
		sup.RefreshPermissions(context.Background(), d.WidgetID)
		hub.PublishDecision(d)
	})

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlers := api.NewHandlers(api.Deps{
		Supervisor:  sup,
		Catalog:     catalog,
		Broker:      msgs,
		Permissions: grants,
		Settings:    stateMgr,
	}, version, logger.Logger)
	handlers.Register(router)

	router.GET("/stream", hub.HandleConnection)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router:      router,
		config:      cfg,
		logger:      logger,
		metrics:     metrics,
		tracer:      tracer,
		db:          db,
		limiter:     limiter,
		permissions: grants,
		registry:    catalog,
		state:       stateMgr,
		supervisor:  sup,
		broker:      msgs,
		hub:         hub,
	}, nil
}

// Handler exposes the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start scans the widgets directory, applies the persisted capacity and
// restores the widgets that were running at the last shutdown
func (s *Server) Start(ctx context.Context) error {
	res, err := s.registry.Rescan(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan widgets: %w", err)
	}
	s.logger.Info("Widgets loaded",
		zap.Int("accepted", len(res.Accepted)),
		zap.Int("rejected", len(res.Rejected)),
	)

	settings, err := s.state.Settings(ctx)
	if err != nil {
		s.logger.Warn("Settings unavailable, using configured capacity", zap.Error(err))
	} else if err := s.supervisor.SetCapacity(settings.MaxWidgets); err != nil {
		s.logger.Warn("Ignoring stored capacity", zap.Error(err))
	}

	restored, err := s.state.RestoreAll(ctx, s.supervisor, s.registry)
	if err != nil {
		return fmt.Errorf("failed to restore widgets: %w", err)
	}
	s.logger.Info("Restore complete",
		zap.Int("restored", restored.Restored),
		zap.Int("skipped", restored.Skipped),
		zap.Int("failed", restored.Failed),
	)
	return nil
}

// Run serves HTTP until ctx is cancelled, then shuts everything down
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		s.Close()
		return err
	}

	srv := &http.Server{
		Addr:              s.config.Server.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close stops every instance, keeping them flagged for restore, then
// releases the stores. Connected presenters are dropped first so pending
// prompts resolve as denials.
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.hub.Close()
	var errList []error
	if err := s.supervisor.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to stop widgets", zap.Error(err))
		errList = append(errList, err)
	}
	s.state.Close()
	s.limiter.Destroy()
	s.tracer.Close()
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close state store", zap.Error(err))
		errList = append(errList, err)
	}

	s.logger.Sync()
	return errors.Join(errList...)
}
