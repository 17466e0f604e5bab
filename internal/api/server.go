package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/goodwe-gw/internal/infrastructure/config"
	"github.com/nerrad567/goodwe-gw/internal/infrastructure/logging"
	"github.com/nerrad567/goodwe-gw/internal/poller"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 5 * time.Second

// HTTP server timeouts. Every response is small.
const (
	readTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
)

// StatusSource reports the current poller status. *poller.Supervisor
// implements it.
type StatusSource interface {
	Status() poller.Status
}

// Deps holds the dependencies required by the status server.
type Deps struct {
	Config   config.StatusConfig
	Logger   *logging.Logger
	Source   StatusSource
	Gatherer prometheus.Gatherer
	Version  string
}

// Server is the status HTTP server.
//
// It is created with New and started with Start.
type Server struct {
	cfg       config.StatusConfig
	logger    *logging.Logger
	source    StatusSource
	gatherer  prometheus.Gatherer
	version   string
	startTime time.Time

	server   *http.Server
	listener net.Listener
}

// New creates a status server with the given dependencies.
//
// The server is not started until Start is called. A nil Gatherer serves
// the default Prometheus registry.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Source == nil {
		return nil, fmt.Errorf("status source is required")
	}
	if deps.Config.Listen == "" {
		return nil, fmt.Errorf("listen address is required")
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		source:    deps.Source,
		gatherer:  gatherer,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Start binds the listen address and serves in a background goroutine.
//
// Binding happens before Start returns, so an address in use is reported
// here rather than logged later.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Listen, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	s.logger.Info("status server starting", "address", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler returns the router without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Close gracefully shuts down the server, waiting briefly for in-flight
// requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("status server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down status server: %w", err)
	}
	return nil
}
