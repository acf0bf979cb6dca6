// Package server exposes health, Prometheus metrics and the latest monitoring
// report over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/rewired-gh/seismoalert/internal/logger"
	"github.com/rewired-gh/seismoalert/internal/metrics"
	"github.com/rewired-gh/seismoalert/internal/models"
	"github.com/rewired-gh/seismoalert/internal/monitor"
)

// Reporter provides the latest cycle result. *monitor.Monitor implements it.
type Reporter interface {
	Latest() (*monitor.CycleResult, bool)
}

// AlertHistory lists sent alerts. *storage.Storage implements it.
type AlertHistory interface {
	RecentAlerts(ctx context.Context, limit int) ([]models.Alert, error)
}

const defaultAlertLimit = 50

// Server is the monitoring HTTP endpoint.
type Server struct {
	httpServer *http.Server
	reporter   Reporter
	history    AlertHistory
	started    time.Time
}

// New builds a server listening on addr. collector may be nil, in which case
// /metrics is not registered.
func New(addr string, reporter Reporter, collector *metrics.Collector) *Server {
	s := &Server{
		reporter: reporter,
		started:  time.Now(),
	}

	r := mux.NewRouter()
	r.Use(requestLoggingMiddleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/report", s.handleReport).Methods(http.MethodGet)
	r.HandleFunc("/alerts", s.handleAlerts).Methods(http.MethodGet)
	if collector != nil {
		r.Handle("/metrics", collector.Handler()).Methods(http.MethodGet)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// SetHistory enables the /alerts endpoint.
func (s *Server) SetHistory(h AlertHistory) { s.history = h }

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	}
	if s.reporter != nil {
		if latest, ok := s.reporter.Latest(); ok {
			resp["last_cycle"] = latest.At
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReport(w http.ResponseWriter, _ *http.Request) {
	if s.reporter == nil {
		writeError(w, http.StatusServiceUnavailable, "no report available yet")
		return
	}
	latest, ok := s.reporter.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no report available yet")
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "alert history disabled")
		return
	}

	limit := defaultAlertLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	list, err := s.history.RecentAlerts(r.Context(), limit)
	if err != nil {
		logger.Error("Failed to list alerts: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": list})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		logger.Debug("%s %s status=%d duration=%v", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}
