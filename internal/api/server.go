// Package api serves the port list, system stats and kill operation as JSON
// over a loopback HTTP listener, for desktop frontends that prefer HTTP to
// spawning the CLI.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/lu-zhengda/portsniper/internal/port"
	"github.com/lu-zhengda/portsniper/internal/process"
	"github.com/lu-zhengda/portsniper/internal/stats"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Backend is the set of operations the API exposes. *app.App satisfies it.
type Backend interface {
	ActivePorts(ctx context.Context) ([]port.PortInfo, error)
	GlobalStats(ctx context.Context) stats.GlobalStats
	KillProcess(ctx context.Context, pid uint32) error
}

// Server routes API requests to a Backend.
type Server struct {
	backend Backend
	metrics *Metrics
	logger  *zap.Logger
	mux     *http.ServeMux
}

// KillRequest is the body of POST /api/kill.
type KillRequest struct {
	PID uint32 `json:"pid"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New creates a Server. A nil logger discards output.
func New(backend Backend, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		backend: backend,
		metrics: NewMetrics(),
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /api/ports", s.handlePorts)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("POST /api/kill", s.handleKill)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. addr must resolve to a loopback host.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if err := checkLoopback(addr); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          zap.NewStdLog(s.logger.Named("http")),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("api shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down api server: %w", err)
	}
	return nil
}

func (s *Server) handlePorts(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ports, err := s.backend.ActivePorts(r.Context())
	s.metrics.observeScan(start, len(ports), err)
	if err != nil {
		s.logger.Warn("list ports failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ports)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.backend.GlobalStats(r.Context())
	s.metrics.observeStats(st)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	var req KillRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.PID == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "pid must be positive"})
		return
	}

	err := s.backend.KillProcess(r.Context(), req.PID)
	s.metrics.observeKill(err)
	if err != nil {
		s.logger.Warn("kill failed", zap.Uint32("pid", req.PID), zap.Error(err))
		var kerr *process.KillError
		if errors.As(err, &kerr) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: kerr.Message})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// checkLoopback rejects listen addresses reachable from other hosts.
func checkLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("listen address %q is not loopback", addr)
	}
	return nil
}
