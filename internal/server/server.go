package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/GriffinCanCode/jsbridge/internal/bridge"
	"github.com/GriffinCanCode/jsbridge/internal/bridge/assets"
	"github.com/GriffinCanCode/jsbridge/internal/demo"
	"github.com/GriffinCanCode/jsbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/jsbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/jsbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsbridge/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/jsbridge/internal/transport"
	"github.com/GriffinCanCode/jsbridge/internal/transport/grpcpipe"
	"github.com/GriffinCanCode/jsbridge/internal/transport/ws"
)

// Server hosts one bridge per connected remote environment.
type Server struct {
	router   *gin.Engine
	hub      *Hub
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
	tracer   *tracing.Tracer
	scripts  []string
	upgrader *websocket.Upgrader
	wsOpts   ws.Options
	pipeOpts grpcpipe.Options
}

// NewServer creates a server with its own logger, metrics and bootstrap
// scripts.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Initializing bridge server",
		zap.String("port", cfg.Server.Port),
		zap.String("grpc_port", cfg.Server.GRPCPort),
	)

	metrics := monitoring.NewMetrics()
	bundle := assets.Load(ctx, cfg.Scripts, logger.Logger)
	logger.Info("Bootstrap scripts loaded", zap.String("source", bundle.Source))

	return New(cfg, logger, metrics, bundle), nil
}

// New creates a server from prepared parts.
func New(cfg *config.Config, logger *logging.Logger, metrics *monitoring.Metrics, bundle assets.Bundle) *Server {
	s := &Server{
		hub:      NewHub(),
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		tracer:   tracing.New("bridged", logger.Logger),
		scripts:  bundle.Scripts(cfg.Bridge.ConsoleHook),
		upgrader: ws.NewUpgrader(cfg.Server.AllowedOrigins),
		wsOpts:   ws.OptionsFromConfig(cfg, logger.Logger, metrics),
		pipeOpts: grpcpipe.Options{Logger: logger.Logger, Metrics: metrics},
	}
	if cfg.RateLimit.Enabled {
		s.pipeOpts.MessagesPerSecond = float64(cfg.RateLimit.MessagesPerSecond)
		s.pipeOpts.Burst = cfg.RateLimit.Burst
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(s.tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(corsMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", s.health)
	router.GET("/bridges", s.listBridges)
	router.PUT("/log-level", s.setLogLevel)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Gatherer(), promhttp.HandlerOpts{})))

	connect := router.Group("/bridge")
	if cfg.RateLimit.Enabled {
		logger.Info("Connection rate limiting enabled",
			zap.Int("per_second", cfg.RateLimit.ConnectsPerSecond),
			zap.Int("burst", cfg.RateLimit.ConnectBurst),
		)
		connect.Use(connectLimit(cfg.RateLimit.ConnectsPerSecond, cfg.RateLimit.ConnectBurst))
	}
	connect.GET("", s.handleBridge)

	s.router = router
	return s
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the live bridge table.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run listens on the configured ports and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	host := s.config.Server.Host
	httpLis, err := net.Listen("tcp", net.JoinHostPort(host, s.config.Server.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	var grpcLis net.Listener
	if s.config.Server.GRPCPort != "" {
		grpcLis, err = net.Listen("tcp", net.JoinHostPort(host, s.config.Server.GRPCPort))
		if err != nil {
			httpLis.Close()
			return fmt.Errorf("failed to listen for gRPC: %w", err)
		}
	}
	return s.Serve(ctx, httpLis, grpcLis)
}

// Serve serves HTTP on httpLis and, when grpcLis is not nil, the gRPC pipe
// on grpcLis. It shuts everything down once ctx is done.
func (s *Server) Serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	httpSrv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 2)

	s.logger.Info("Starting HTTP server", zap.String("addr", httpLis.Addr().String()))
	go func() {
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	var grpcSrv *grpc.Server
	if grpcLis != nil {
		grpcSrv = grpc.NewServer(grpc.StreamInterceptor(tracing.StreamServerInterceptor(s.tracer)))
		grpcpipe.NewServer(s.acceptPipe, s.pipeOpts).Register(grpcSrv)

		s.logger.Info("Starting gRPC pipe server", zap.String("addr", grpcLis.Addr().String()))
		go func() {
			if err := grpcSrv.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errc <- err
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errc:
		s.logger.Error("Server failed", zap.Error(serveErr))
	}

	if err := s.shutdown(httpSrv, grpcSrv); err != nil && serveErr == nil {
		serveErr = err
	}
	return serveErr
}

func (s *Server) shutdown(httpSrv *http.Server, grpcSrv *grpc.Server) error {
	s.logger.Info("Shutting down server...")

	// Hijacked websocket connections are not tracked by http.Server.
	s.hub.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	var err error
	if shutdownErr := httpSrv.Shutdown(ctx); shutdownErr != nil {
		s.logger.Error("Failed to shut down HTTP server", zap.Error(shutdownErr))
		err = fmt.Errorf("failed to shut down HTTP server: %w", shutdownErr)
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
		s.logger.Info("Stopped gRPC pipe server")
	}

	s.tracer.Close()
	_ = s.logger.Sync()
	return err
}

func (s *Server) handleBridge(c *gin.Context) {
	raw, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	conn := ws.NewConn(raw, s.wsOpts)
	if _, err := s.attach(c.Request.Context(), conn, conn, conn.ID(), "ws"); err != nil {
		s.logger.Error("Failed to attach bridge", zap.Error(err))
		conn.Close()
		return
	}
	defer s.detach(conn.ID())

	if err := conn.Serve(c.Request.Context()); err != nil {
		s.logger.Warn("Bridge connection ended", zap.String("conn_id", conn.ID()), zap.Error(err))
	}
}

func (s *Server) acceptPipe(c *grpcpipe.Conn) {
	if _, err := s.attach(c.Context(), c, c, c.ID(), "grpc"); err != nil {
		s.logger.Error("Failed to attach bridge", zap.Error(err))
		c.Close()
		return
	}
	go func() {
		<-c.Done()
		s.detach(c.ID())
	}()
}

func (s *Server) attach(ctx context.Context, t transport.Transport, conn io.Closer, connID, kind string) (*bridge.Bridge, error) {
	logger := s.logger.With(
		zap.String("conn_id", connID),
		zap.String("trace_id", string(tracing.GetTraceID(ctx))),
	)
	b := bridge.New(t, bridge.Options{
		Logger:                logger,
		Metrics:               s.metrics,
		Scripts:               s.scripts,
		MaxConcurrentDispatch: s.config.Bridge.MaxConcurrentDispatch,
	})
	if err := demo.Register(b); err != nil {
		b.Close()
		return nil, err
	}

	s.hub.add(connID, session{bridge: b, conn: conn, transport: kind})
	s.logger.Info("Bridge attached",
		zap.String("conn_id", connID),
		zap.String("bridge_id", b.ID().String()),
		zap.String("transport", kind),
	)
	return b, nil
}

func (s *Server) detach(connID string) {
	sess, ok := s.hub.remove(connID)
	if !ok {
		return
	}
	sess.bridge.Close()
	s.logger.Info("Bridge detached", zap.String("conn_id", connID))
}
