package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utrading/utrading-sol-agent/pkg/goplus"
	"github.com/utrading/utrading-sol-agent/pkg/logger"
)

// ConnRef is anything with a connection state worth reporting.
type ConnRef interface {
	IsConnected() bool
}

// StatusRef contributes a named section to /status.
type StatusRef interface {
	Status() map[string]any
}

// HealthServer serves health, metrics and status, plus mounted handlers such
// as the webhook receiver, on one listener.
type HealthServer struct {
	addr      string
	publisher ConnRef
	stream    ConnRef
	status    StatusRef

	mux    *http.ServeMux
	server *http.Server

	mu           sync.RWMutex
	healthy      bool
	healthySince time.Time
	startTime    time.Time
}

// NewHealthServer accepts nil refs for disabled components.
func NewHealthServer(addr string, publisher, stream ConnRef, status StatusRef) *HealthServer {
	h := &HealthServer{
		addr:         addr,
		publisher:    publisher,
		stream:       stream,
		status:       status,
		mux:          http.NewServeMux(),
		healthy:      true,
		healthySince: time.Now(),
		startTime:    time.Now(),
	}

	h.mux.HandleFunc("/health", h.healthHandler)
	h.mux.HandleFunc("/health/ready", h.readyHandler)
	h.mux.HandleFunc("/health/live", h.liveHandler)
	h.mux.Handle("/metrics", promhttp.Handler())
	h.mux.HandleFunc("/status", h.statusHandler)
	return h
}

// Handle mounts an extra handler; call before Start.
func (h *HealthServer) Handle(pattern string, handler http.Handler) {
	h.mux.Handle(pattern, handler)
}

func (h *HealthServer) Handler() http.Handler {
	return h.mux
}

func (h *HealthServer) Start(ctx context.Context) error {
	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      h.mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Info().Str("addr", h.addr).Msg("http server starting")

	goplus.GoNamed("http-server", func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	})
	return nil
}

func (h *HealthServer) Stop(ctx context.Context) error {
	h.mu.Lock()
	h.healthy = false
	h.mu.Unlock()

	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

func (h *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := h.getHealthStatus()
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (h *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if !h.isReady() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *HealthServer) liveHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *HealthServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"health": h.getHealthStatus()}
	if h.status != nil {
		body["agent"] = h.status.Status()
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *HealthServer) isReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.healthy
}

func (h *HealthServer) getHealthStatus() HealthStatus {
	h.mu.RLock()
	healthy := h.healthy
	healthySince := h.healthySince
	h.mu.RUnlock()

	return HealthStatus{
		Healthy:      healthy,
		HealthySince: healthySince.Format(time.RFC3339),
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		NATS:         connStatus(h.publisher),
		Stream:       connStatus(h.stream),
	}
}

func connStatus(ref ConnRef) ConnStatus {
	if ref == nil {
		return ConnStatus{}
	}
	return ConnStatus{Enabled: true, Connected: ref.IsConnected()}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn().Err(err).Msg("write json response failed")
	}
}

type HealthStatus struct {
	Healthy      bool       `json:"healthy"`
	HealthySince string     `json:"healthy_since"`
	Uptime       string     `json:"uptime"`
	NATS         ConnStatus `json:"nats"`
	Stream       ConnStatus `json:"stream"`
}

type ConnStatus struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}
