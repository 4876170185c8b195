package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Platform-LSS/beneficiarios/internal/auth"
	"github.com/Platform-LSS/beneficiarios/internal/metrics"
	"github.com/Platform-LSS/beneficiarios/internal/realtime"
	"github.com/Platform-LSS/beneficiarios/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

// WebServer serves the JSON API used by the React client and the event stream.
type WebServer struct {
	store    store.Store
	events   *realtime.Manager
	verifier auth.Verifier
	registry *prometheus.Registry
}

// New creates a WebServer. registry may be nil to leave /metrics unrouted.
func New(s store.Store, events *realtime.Manager, verifier auth.Verifier, registry *prometheus.Registry) *WebServer {
	return &WebServer{
		store:    s,
		events:   events,
		verifier: verifier,
		registry: registry,
	}
}

// Routes returns the HTTP handler with all routes registered.
func (ws *WebServer) Routes() http.Handler {
	mux := http.NewServeMux()

	// Event stream: the credential travels in ?token= since EventSource cannot set headers.
	mux.Handle("GET /api/events", realtime.NewStreamHandler(ws.events, realtime.NewGate(ws.verifier)))
	mux.Handle("GET /api/events/status", ws.requireAuth(ws.handleEventStatus))
	mux.Handle("GET /api/events/recent", ws.requireAuth(ws.handleRecentEvents))

	// Beneficiaries
	mux.Handle("GET /api/pessoas", ws.requireAuth(ws.handleListPessoas))
	mux.Handle("GET /api/pessoas/{id}", ws.requireAuth(ws.handleGetPessoa))
	mux.Handle("POST /api/pessoas", ws.requireAuth(ws.handleCreatePessoa))
	mux.Handle("PUT /api/pessoas/{id}", ws.requireAuth(ws.handleUpdatePessoa))
	mux.Handle("DELETE /api/pessoas/{id}", ws.requireAuth(ws.handleDeletePessoa))
	mux.Handle("POST /api/pessoas/transferir", ws.requireAuth(ws.handleTransferPessoas))

	mux.HandleFunc("GET /api/health", ws.handleHealth)
	if ws.registry != nil {
		mux.Handle("GET /metrics", metrics.Handler(ws.registry))
	}

	return requestLogger(mux)
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"instancia": ws.events.InstanceID(),
		"conexoes":  ws.events.Size(),
	})
}

func (ws *WebServer) handleEventStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ws.events.Status())
}

func (ws *WebServer) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"instancia": ws.events.InstanceID(),
		"eventos":   ws.events.RecentEvents(),
	})
}

// notify broadcasts a change. The outcome never affects the response, but a
// stalled subscriber can delay it by up to the stream write timeout.
func (ws *WebServer) notify(name string, payload any) {
	res := ws.events.Broadcast(name, payload)
	slog.Debug("change notified", "event", name, "eventId", res.EventID, "delivered", res.Delivered)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryParam(r *http.Request, name, fallback string) string {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	return v
}

func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
