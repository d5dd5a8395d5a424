// Package api serves the login handshake over a loopback HTTP API so
// browser-extension style frontends can drive it.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/cursor-login/internal/config"
	"github.com/router-for-me/cursor-login/internal/logging"
	log "github.com/sirupsen/logrus"
)

// Server is the loopback HTTP server.
type Server struct {
	engine  *gin.Engine
	server  *http.Server
	cfg     *config.Config
	handler *Handler

	mu      sync.Mutex
	running bool
	errChan chan error
}

// NewServer builds the gin engine and registers the routes.
func NewServer(cfg *config.Config, handler *Handler) *Server {
	if cfg != nil && cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(logging.GinLogrusLogger(), logging.GinLogrusRecovery())

	s := &Server{
		engine:  engine,
		cfg:     cfg,
		handler: handler,
		errChan: make(chan error, 1),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	v0 := s.engine.Group("/v0/cursor")
	{
		v0.POST("/sessions", s.handler.PostSession)
		v0.POST("/sessions/:uuid/poll", s.handler.PostPoll)
		v0.GET("/credential", s.handler.GetCredential)
		v0.PUT("/credential", s.handler.PutCredential)
	}
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the loopback listen address.
func (s *Server) Addr() string {
	port := config.DefaultPort
	if s.cfg != nil && s.cfg.Port > 0 {
		port = s.cfg.Port
	}
	return net.JoinHostPort("127.0.0.1", fmt.Sprintf("%d", port))
}

// Start begins listening in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("api server: listen on %s: %w", s.Addr(), err)
	}

	// Poll requests block for up to maxAttempts * interval, so no write timeout.
	s.server = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.running = true

	go func() {
		if errServe := s.server.Serve(listener); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			log.Errorf("api server stopped: %v", errServe)
			s.errChan <- errServe
		}
	}()
	log.Infof("API server listening on http://%s", s.Addr())
	return nil
}

// Errors reports fatal serve errors.
func (s *Server) Errors() <-chan error {
	return s.errChan
}

// Stop gracefully terminates the listener.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.server == nil {
		return nil
	}
	defer func() {
		s.running = false
		s.server = nil
	}()
	return s.server.Shutdown(ctx)
}
