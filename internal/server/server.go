package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/slateos/backend/internal/api/http"
	"github.com/slateos/backend/internal/api/middleware"
	"github.com/slateos/backend/internal/domain/eviction"
	"github.com/slateos/backend/internal/domain/ownership"
	"github.com/slateos/backend/internal/domain/registry"
	"github.com/slateos/backend/internal/domain/scope"
	"github.com/slateos/backend/internal/domain/snapshot"
	"github.com/slateos/backend/internal/infrastructure/config"
	"github.com/slateos/backend/internal/infrastructure/logging"
	"github.com/slateos/backend/internal/infrastructure/monitoring"
	"github.com/slateos/backend/internal/persistence"
	"github.com/slateos/backend/internal/shared/clock"
	"github.com/slateos/backend/internal/ws"
)

// Server wraps the HTTP server and its dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	registry *registry.Manager
	saver    *persistence.Saver
	hub      *ws.Hub
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	logger.Info("Initializing Workspace Runtime Manager",
		zap.String("port", cfg.Server.Port),
		zap.Int("capacity", cfg.Registry.Capacity),
		zap.String("storage_root", cfg.Storage.Root),
	)

	metrics := monitoring.NewMetrics()

	// Eviction weights: defaults, optionally overridden from file
	weights := eviction.DefaultWeights()
	if cfg.Eviction.WeightsFile != "" {
		w, err := config.LoadScoreWeights(cfg.Eviction.WeightsFile)
		if err != nil {
			logger.Warn("failed to load eviction weights, using defaults", zap.Error(err))
		} else {
			weights = eviction.Weights{
				ActiveComponent:     w.ActiveComponent,
				DefaultRuntime:      w.DefaultRuntime,
				ContentBase:         w.ContentBase,
				ContentPerComponent: w.ContentPerComponent,
				RecencyMax:          w.RecencyMax,
			}
			logger.Info("loaded eviction weights", zap.String("file", cfg.Eviction.WeightsFile))
		}
	}
	policy := eviction.New(weights, cfg.Eviction.RecencyWindow)

	gateway, err := persistence.NewFileGateway(cfg.Storage.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize snapshot storage: %w", err)
	}

	clk := clock.NewMonotonic()
	saver := persistence.NewSaver(gateway, cfg.Registry.SaveQueueSize, logger).WithMetrics(metrics)
	capturer := snapshot.NewCapturer(cfg.Registry.CaptureTimeout, clk, logger).WithMetrics(metrics)
	hub := ws.NewHub(logger).WithMetrics(metrics)
	owners := ownership.NewTable(logger).WithMetrics(metrics).WithEvents(hub)

	reg := registry.NewManager(
		cfg.Registry.Capacity,
		policy,
		gateway,
		saver,
		capturer,
		owners,
		clk,
		logger,
	).WithMetrics(metrics).WithEvents(hub)

	deactivator := scope.NewDeactivator(reg, logger).WithEvents(hub)

	// Router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	router.Use(metrics.Middleware())
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(reg, deactivator, clk)
	registerRoutes(router, handlers, hub)

	srv := &Server{
		router:   router,
		registry: reg,
		saver:    saver,
		hub:      hub,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}
	srv.http = &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
		Handler: router,
	}

	return srv, nil
}

// registerRoutes wires the HTTP surface
func registerRoutes(router *gin.Engine, h *apihttp.Handlers, hub *ws.Hub) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", hub.HandleConnection)

	contexts := router.Group("/contexts")
	{
		contexts.GET("", h.ListContexts)
		contexts.POST("", h.CreateContext)
		contexts.POST("/:id/open", h.OpenContext)
		contexts.POST("/:id/visible", h.SetVisible)
		contexts.POST("/:id/evict", h.EvictContext)
		contexts.POST("/:id/pin", h.PinContext)
		contexts.DELETE("/:id", h.DestroyContext)

		contexts.POST("/:id/components", h.RegisterComponent)
		contexts.PUT("/:id/components/:cid", h.UpdateComponent)
		contexts.DELETE("/:id/components/:cid", h.UnregisterComponent)

		contexts.POST("/:id/entities", h.OpenEntity)
		contexts.DELETE("/:id/entities/:eid", h.CloseEntity)

		contexts.PUT("/:id/camera", h.UpdateCamera)
	}

	ownershipGroup := router.Group("/ownership")
	{
		ownershipGroup.POST("/claim", h.ClaimEntity)
		ownershipGroup.POST("/release", h.ReleaseEntity)
		ownershipGroup.GET("/:eid", h.OwnerOf)
	}

	router.POST("/scopes/:id/deactivate", h.DeactivateScope)
}

// Run starts the HTTP server and blocks until it stops
func (s *Server) Run() error {
	s.logger.Info("Server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts the server down gracefully: stop accepting requests, then
// capture and persist every hot runtime before exiting
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown error", zap.Error(err))
	}

	if err := s.registry.Shutdown(ctx); err != nil {
		s.logger.Error("failed to persist runtimes on shutdown", zap.Error(err))
		return err
	}

	s.logger.Info("Server stopped")
	return s.logger.Sync()
}
