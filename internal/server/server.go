package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/tradedeck/relay/internal/config"
	"github.com/tradedeck/relay/internal/relay"
	"github.com/tradedeck/relay/internal/version"
)

// Server owns the HTTP listener and the WebSocket upgrade endpoints. It hands
// upgraded connections to the relay engine and blocks in the handler for the
// life of each session.
type Server struct {
	cfg      config.RelayConfig
	engine   *relay.Engine
	pool     *pgxpool.Pool // nil disables the database health check
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New creates a server around an engine. pool may be nil when the engine's
// auth backends do not use Postgres.
func New(cfg config.RelayConfig, engine *relay.Engine, pool *pgxpool.Pool, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	return &Server{
		cfg:    cfg,
		engine: engine,
		pool:   pool,
		logger: logger,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: cfg.Relay.HandshakeTimeout,
			CheckOrigin:      originChecker(cfg.Server.AllowedOrigins),
		},
	}
}

// originChecker builds the Upgrader's origin policy. An empty allow list
// accepts any origin.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients (the connector process) send no Origin.
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Routes builds the gin router.
func (s *Server) Routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/ws/connector", s.handleConnector)
	r.GET("/api/ws/client", s.handleClient)
	r.GET("/healthz", s.handleHealth)

	return r
}

// handleConnector upgrades a connector process. Parameter validation happens
// before the upgrade so a bad request gets a plain HTTP status, not a close
// frame.
func (s *Server) handleConnector(c *gin.Context) {
	token := c.Query("token")
	connectionID := c.Query("connection_id")
	broker := c.Query("broker")

	if token == "" || connectionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token and connection_id are required"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		s.logger.Warn("connector upgrade failed", "error", err)
		return
	}

	peer := relay.NewPeer(conn, s.cfg.Relay.WriteTimeout, s.cfg.Relay.MaxMessageBytes)
	s.engine.HandleConnector(c.Request.Context(), peer, token, connectionID, broker)
}

// handleClient upgrades a dashboard session.
func (s *Server) handleClient(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("client upgrade failed", "error", err)
		return
	}

	peer := relay.NewPeer(conn, s.cfg.Relay.WriteTimeout, s.cfg.Relay.MaxMessageBytes)
	s.engine.HandleClient(c.Request.Context(), peer, token)
}

// handleHealth reports registry occupancy and database reachability.
func (s *Server) handleHealth(c *gin.Context) {
	stats := s.engine.Registry().Stats()

	health := gin.H{
		"status":     "healthy",
		"version":    version.Version,
		"connectors": stats.Connectors,
		"clients":    stats.Clients,
		"users":      stats.Users,
	}
	code := http.StatusOK

	if s.pool != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := s.pool.Ping(ctx); err != nil {
			health["status"] = "unhealthy"
			health["database"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			health["database"] = "connected"
		}
	}

	c.JSON(code, health)
}

// Run serves until ctx is canceled, then shuts the listener down and closes
// every live session so blocked handlers can return.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler: s.Routes(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		// Shutdown does not touch hijacked connections; close the sessions
		// explicitly so their read loops exit.
		s.engine.Registry().CloseAll()
		return err
	})

	return g.Wait()
}
