package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-entities/internal/auth"
	"github.com/nerrad567/gray-logic-entities/internal/entitystore"
	"github.com/nerrad567/gray-logic-entities/internal/feature"
	"github.com/nerrad567/gray-logic-entities/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-entities/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-entities/internal/infrastructure/mqtt"
)

const shutdownTimeout = 10 * time.Second

// Deps are the server's collaborators. Logger and Store are required.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Store    *entitystore.Store

	// Numbers may be nil when no plugs are configured.
	Numbers *feature.Numbers

	// MQTT and DB feed /health and /metrics when set.
	MQTT *mqtt.Client
	DB   *sql.DB

	Version string
}

// Server serves the REST API and the WebSocket event stream.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	store     *entitystore.Store
	numbers   *feature.Numbers
	mqtt      *mqtt.Client
	db        *sql.DB
	version   string
	startTime time.Time

	tokens  *auth.Tokens
	tickets *ticketStore
	hub     *Hub

	server *http.Server
	cancel context.CancelFunc
}

// New creates a server. Nothing listens until Start.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, errors.New("api: logger is required")
	case deps.Store == nil:
		return nil, errors.New("api: entity store is required")
	}

	numbers := deps.Numbers
	if numbers == nil {
		numbers = feature.NewNumbers()
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		store:     deps.Store,
		numbers:   numbers,
		mqtt:      deps.MQTT,
		db:        deps.DB,
		version:   deps.Version,
		startTime: time.Now(),
		tokens:    auth.NewTokens(deps.Security.JWT.Secret, deps.Security.JWT.AccessTokenTTL),
		tickets:   newTicketStore(),
		hub:       NewHub(deps.Logger),
	}, nil
}

// Numbers returns the number registry served under /numbers.
func (s *Server) Numbers() *feature.Numbers {
	return s.numbers
}

// Start binds the listen address and serves in the background. A bind
// failure is returned; later serve errors are logged.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api: listening on %s: %w", addr, err)
	}

	bg, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.hub.Run(bg)
	go s.tickets.run(bg)

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       seconds(s.cfg.Timeouts.Read),
		ReadHeaderTimeout: seconds(s.cfg.Timeouts.Read),
		WriteTimeout:      seconds(s.cfg.Timeouts.Write),
		IdleTimeout:       seconds(s.cfg.Timeouts.Idle),
	}

	tls := s.cfg.TLS
	s.logger.Info("API server listening", "address", ln.Addr().String(), "tls", tls.Enabled)
	go func() {
		var err error
		if tls.Enabled {
			err = s.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server stopped", "error", err)
		}
	}()
	return nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Close stops background work and drains in-flight requests for up to
// shutdownTimeout. It is a no-op before Start.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	return nil
}

// HealthCheck fails before Start.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.server == nil {
		return errors.New("api: server not started")
	}
	return nil
}
