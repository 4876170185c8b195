package realtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// StreamHandler serves GET requests that open an event stream.
type StreamHandler struct {
	manager *Manager
	gate    *Gate
	logger  *slog.Logger
}

// NewStreamHandler creates the event stream endpoint.
func NewStreamHandler(m *Manager, gate *Gate) *StreamHandler {
	return &StreamHandler{
		manager: m,
		gate:    gate,
		logger:  m.logger.With("handler", "stream"),
	}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := h.gate.Authenticate(r)
	if err != nil {
		h.logger.Warn("stream rejected", "remote", r.RemoteAddr, "error", err)
		writeJSONError(w, http.StatusUnauthorized, "Token de autenticação inválido ou ausente")
		return
	}

	if _, ok := w.(http.Flusher); !ok {
		h.logger.Error("stream rejected", "error", ErrStreamingUnsupported)
		writeJSONError(w, http.StatusInternalServerError, ErrStreamingUnsupported.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	stream := &httpStream{
		w:       w,
		rc:      http.NewResponseController(w),
		timeout: h.manager.writeTimeout,
	}
	conn, err := h.manager.Connect(stream, claims.Identity())
	if err != nil {
		h.logger.Warn("stream closed during connect", "userId", claims.Identity(), "error", err)
		return
	}

	select {
	case <-r.Context().Done():
		h.manager.Unregister(conn)
	case <-conn.Done():
	}
	conn.waitIdle()
}

// httpStream writes frames to a response, bounding each write with a
// deadline so a stalled client surfaces as a write error.
type httpStream struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	timeout time.Duration
}

func (s *httpStream) Write(p []byte) (int, error) {
	if s.timeout > 0 {
		err := s.rc.SetWriteDeadline(time.Now().Add(s.timeout))
		if err != nil && !errors.Is(err, http.ErrNotSupported) {
			return 0, err
		}
	}
	return s.w.Write(p)
}

func (s *httpStream) Flush() error {
	return s.rc.Flush()
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg}) //nolint:errcheck
}
