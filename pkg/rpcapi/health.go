package rpcapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/lekkodev/sidecar/pkg/metrics"
	"github.com/lekkodev/sidecar/pkg/store"
)

// HealthServer exposes the sidecar's liveness, readiness, and Prometheus
// scrape endpoints over plain HTTP, independent of the gRPC evaluation
// surface.
type HealthServer struct {
	st  *store.Store
	mux *http.ServeMux
}

// NewHealthServer wires the /health, /ready, and /metrics endpoints.
// Readiness is tied to st holding an active snapshot rather than to any
// cluster membership state.
func NewHealthServer(st *store.Store) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{st: st, mux: mux}

	mux.HandleFunc("/health", hs.healthHandler)
	mux.HandleFunc("/ready", hs.readyHandler)
	mux.Handle("/metrics", metrics.Handler())

	return hs
}

// Start serves the health endpoints on addr. It blocks until the
// listener closes.
func (hs *HealthServer) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      hs.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// HealthResponse is the /health response body.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse is the /ready response body.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// healthHandler is a liveness check: it returns 200 as long as the
// process can answer HTTP requests at all.
func (hs *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{Status: "healthy", Timestamp: time.Now()}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// readyHandler reports whether the store holds an active snapshot. Until
// the first successful poll or watch cycle, the sidecar answers
// evaluation requests with no data and so is not ready to serve.
func (hs *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	checks := make(map[string]string)
	ready := true
	var message string

	if hs.st == nil {
		checks["store"] = "not initialized"
		ready = false
		message = "store not initialized"
	} else if commit := hs.st.Commit(); commit == "" {
		checks["store"] = "no snapshot loaded"
		ready = false
		message = "waiting for first repository snapshot"
	} else {
		checks["store"] = "ok"
	}

	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadyResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
		Message:   message,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}
