package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/widgetshell/internal/api/http"
	"github.com/GriffinCanCode/widgetshell/internal/api/middleware"
	"github.com/GriffinCanCode/widgetshell/internal/api/ws"
	"github.com/GriffinCanCode/widgetshell/internal/bridge"
	"github.com/GriffinCanCode/widgetshell/internal/cache"
	"github.com/GriffinCanCode/widgetshell/internal/content"
	"github.com/GriffinCanCode/widgetshell/internal/env"
	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/config"
	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/httpclient"
	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/widgetshell/internal/session"
	"github.com/GriffinCanCode/widgetshell/internal/storage/prefs"
)

const shutdownTimeout = 10 * time.Second

// Options carries collaborators the host application supplies. Zero values
// run the shell headless.
type Options struct {
	Platform session.Platform
	Hooks    session.Hooks
	Logger   *logging.Logger
}

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	config   *config.Config
	env      env.Env
	logger   *logging.Logger
	registry *prometheus.Registry
	metrics  *monitoring.Metrics
	tracer   *tracing.Tracer
	client   *httpclient.Client
	cache    *cache.Cache
	prefs    *prefs.Store
	looper   *bridge.Looper
	sessions *session.Manager
	content  *content.Host
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = newLogger(cfg.Logging)
	}

	widgetEnv, err := env.Parse(cfg.Widget.Env)
	if err != nil {
		return nil, err
	}

	logger.Info("Initializing widget shell",
		zap.String("port", cfg.Server.Port),
		zap.String("env", widgetEnv.Name),
		zap.String("app_id", cfg.Widget.AppID),
	)

	// Metrics first; every component reports into them.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)
	tracer := tracing.New("widgetshell", logger)

	client := httpclient.New(httpclient.Config{
		Timeout: cfg.HTTP.Timeout,
		Retries: cfg.HTTP.Retries,
		RPS:     cfg.HTTP.RPS,
		Logger:  logger,
	})

	policy := cache.DefaultPolicy()
	if cfg.Cache.PolicyFile != "" {
		policy, err = cache.LoadPolicy(cfg.Cache.PolicyFile)
		if err != nil {
			tracer.Close()
			return nil, fmt.Errorf("load cache policy: %w", err)
		}
		logger.Info("Loaded cache policy", zap.String("file", cfg.Cache.PolicyFile))
	}

	resourceCache, err := cache.New(cache.Options{
		Dir:     cfg.Cache.Dir,
		MaxAge:  cfg.Cache.MaxAge,
		Workers: cfg.Cache.Workers,
		Policy:  policy,
		Fetcher: client,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("open cache: %w", err)
	}

	store, err := prefs.Open(cfg.Storage.PrefsPath)
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("open preferences: %w", err)
	}

	looper := bridge.NewLooper(logger)
	sessions := session.NewManager(session.Options{
		Env:     widgetEnv,
		AppID:   cfg.Widget.AppID,
		Version: cfg.Widget.Version,
		Mode:    session.Mode(strings.ToLower(cfg.Widget.Mode)),
		Layout: session.Layout{
			Width:  float64(cfg.Widget.Width),
			Height: float64(cfg.Widget.Height),
			Top:    float64(cfg.Widget.Top),
			Left:   float64(cfg.Widget.Left),
		},
		Platform: opts.Platform,
		Hooks:    opts.Hooks,
		Prefs:    store,
		Executor: looper,
		Logger:   logger,
		Metrics:  metrics,
	})

	var host *content.Host
	if cfg.Widget.ContentScript != "" {
		hostCfg := content.DefaultConfig()
		hostCfg.Logger = logger
		hostCfg.Metrics = metrics
		host, err = content.New(hostCfg)
		if err != nil {
			_ = store.Close()
			tracer.Close()
			return nil, fmt.Errorf("create content host: %w", err)
		}
		host.Follow(sessions)
	}

	s := &Server{
		config:   cfg,
		env:      widgetEnv,
		logger:   logger,
		registry: registry,
		metrics:  metrics,
		tracer:   tracer,
		client:   client,
		cache:    resourceCache,
		prefs:    store,
		looper:   looper,
		sessions: sessions,
		content:  host,
	}
	s.router = s.routes()

	logger.Info("Server initialized successfully")
	return s, nil
}

func newLogger(cfg config.LogConfig) *logging.Logger {
	if cfg.Development {
		return logging.NewDevelopment()
	}
	logger, err := logging.New(logging.Config{Level: cfg.Level})
	if err != nil {
		return logging.NewDefault()
	}
	return logger
}

func (s *Server) routes() *gin.Engine {
	if !s.config.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(s.tracer))
	router.Use(monitoring.Middleware(s.metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if s.config.RateLimit.Enabled {
		s.logger.Info("Rate limiting enabled",
			zap.Int("rps", s.config.RateLimit.RequestsPerSecond),
			zap.Int("burst", s.config.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: s.config.RateLimit.RequestsPerSecond,
			Burst:             s.config.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(s.sessions, s.cache, s.client, s.prefs, s.logger)
	handlers.AllowHosts(s.config.Widget.ResourceHosts...)
	wsHandler := ws.NewHandler(s.sessions, s.logger, s.metrics)

	router.GET("/health", handlers.Health)
	router.GET("/resource", middleware.Gzip(gzip.DefaultCompression), handlers.Resource)

	router.GET("/session", handlers.Session)
	router.POST("/session/commands/:name", handlers.SendCommand)
	router.POST("/session/reload", handlers.Reload)
	router.POST("/referrer", handlers.Referrer)

	router.GET("/bridge", wsHandler.HandleConnection)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	return router
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions returns the session manager.
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// Start launches the background workers: the host looper, cache fills, the
// content host and, if enabled, the prefetch of the widget page.
func (s *Server) Start(ctx context.Context) error {
	s.looper.Start(ctx)
	s.cache.Start(ctx)

	if s.config.Widget.Prefetch {
		go func() {
			n, err := s.cache.Prefetch(ctx, s.env.PageURL())
			if err != nil {
				s.logger.Warn("Prefetch failed", zap.Error(err))
				return
			}
			s.logger.Info("Prefetch queued", zap.Int("resources", n))
		}()
	}

	if s.content != nil {
		s.content.Start(ctx)
		script, err := os.ReadFile(s.config.Widget.ContentScript)
		if err != nil {
			return fmt.Errorf("read content script: %w", err)
		}
		if err := s.content.Load(ctx, string(script)); err != nil {
			return fmt.Errorf("run content script: %w", err)
		}
		s.logger.Info("Content script loaded", zap.String("file", s.config.Widget.ContentScript))
	}

	s.logger.Info("Widget load URL", zap.String("url", s.sessions.LoadURL()))
	return nil
}

// Run starts the workers and serves HTTP until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	addr := s.config.Server.Host + ":" + s.config.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if s.content != nil {
		if err := s.content.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close content host: %w", err))
		}
	}
	if err := s.sessions.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sessions: %w", err))
	}
	s.looper.Stop()
	s.cache.Stop()
	if err := s.prefs.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close preferences: %w", err))
	}
	s.tracer.Close()

	// Sync logger before exit
	_ = s.logger.Sync()

	return errors.Join(errs...)
}
