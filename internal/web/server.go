// Package web serves the radaemon HTTP surface: health and readiness probes,
// the JSON status API, spectrum snapshots and a live spectrum websocket, the
// Prometheus /metrics endpoint, and the gain and recording controls.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kv9n/radaemon/internal/observe"
	"github.com/kv9n/radaemon/internal/receiver"
)

// Controller is the receiver surface the API drives. *receiver.Receiver
// implements it; tests substitute a stub.
type Controller interface {
	Telemetry() *receiver.Telemetry
	SetGainDB(db float64)
	StartRecording(path string) error
	StopRecording()
}

// Checker is a named readiness check, evaluated on every /readyz request.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Option customises a [Server].
type Option func(*Server)

// WithRecordingDir sets the directory new recordings are created in.
// Defaults to the working directory.
func WithRecordingDir(dir string) Option {
	return func(s *Server) { s.recDir = dir }
}

// WithCheckers registers readiness checks for /readyz.
func WithCheckers(checkers ...Checker) Option {
	return func(s *Server) { s.checkers = append(s.checkers, checkers...) }
}

// WithMetrics overrides the metrics instance used by the request middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.met = m }
}

// Server owns the HTTP listener lifecycle around the radaemon API.
type Server struct {
	ctl      Controller
	recDir   string
	checkers []Checker
	met      *observe.Metrics
	srv      *http.Server
}

// New creates a server bound to addr, driving ctl.
func New(addr string, ctl Controller, opts ...Option) *Server {
	s := &Server{ctl: ctl, recDir: "."}
	for _, o := range opts {
		o(s)
	}
	if s.met == nil {
		s.met = observe.DefaultMetrics()
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler builds the full route table wrapped in the request middleware.
// Exposed so tests can drive the API through httptest without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/spectrum", s.handleSpectrum)
	mux.HandleFunc("GET /api/spectrum/live", s.handleSpectrumLive)
	mux.HandleFunc("POST /api/gain", s.handleGain)
	mux.HandleFunc("POST /api/recording/start", s.handleRecordingStart)
	mux.HandleFunc("POST /api/recording/stop", s.handleRecordingStop)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.met)(mux)
}

// Serve blocks in the listener until Shutdown is called. A clean shutdown
// returns nil.
func (s *Server) Serve() error {
	slog.Info("http server listening", "addr", s.srv.Addr)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("web: serve: %w", err)
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
