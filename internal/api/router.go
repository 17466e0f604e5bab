package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/goodwe-gw/internal/poller"
)

// Health status values.
const (
	healthOK          = "ok"
	healthDegraded    = "degraded"
	healthUnavailable = "unavailable"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string        `json:"status"`
	Version       string        `json:"version"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Poller        poller.Status `json:"poller"`
}

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
		ErrorLog: promErrorLogger{s},
	}))

	return r
}

// handleHealth reports the poller status.
//
// A running poller with a connected bus is "ok". Connecting, or running
// while the bus reconnects, is "degraded". A poller that has stopped
// answers 503.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.source.Status()

	code := http.StatusOK
	health := healthOK
	switch {
	case st.State == poller.StateExhausted || st.State == poller.StateStopped:
		code = http.StatusServiceUnavailable
		health = healthUnavailable
	case st.State != poller.StateRunning || !st.BusConnected:
		health = healthDegraded
	}

	writeJSON(w, code, HealthResponse{
		Status:        health,
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Poller:        st,
	})
}

// promErrorLogger routes promhttp errors to the server logger.
type promErrorLogger struct{ s *Server }

func (l promErrorLogger) Println(v ...any) {
	l.s.logger.Error("metrics handler error", "error", v)
}
