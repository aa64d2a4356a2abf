package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/batchlens/batchlens-ai/internal/metrics"
)

// defaultAllowedOrigins permit local frontend development when no explicit
// allow list is configured.
var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:5173",
}

// newUpgrader builds a WebSocket upgrader whose origin check enforces the
// configured allow list. "*" allows all origins (development only). Requests
// without an Origin header (non-browser clients) are allowed.
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := allowedOrigins
	if len(allowed) == 0 {
		allowed = defaultAllowedOrigins
	}

	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, err := url.Parse(origin); err != nil {
				return false
			}
			for _, o := range allowed {
				if o == "*" || strings.EqualFold(o, origin) {
					return true
				}
			}
			return false
		},
	}
}

// handleAnalysisStream streams run events over WebSocket.
// URL pattern: /ws/analyses/{id}
func (s *Server) handleAnalysisStream(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/ws/analyses/")
	id = strings.TrimSuffix(id, "/")
	if id == "" {
		http.Error(w, "analysis ID required", http.StatusBadRequest)
		return
	}

	// Check the run exists before upgrading.
	if _, err := s.engine.GetAnalysis(r.Context(), id); err != nil {
		http.Error(w, "analysis not found: "+id, http.StatusNotFound)
		return
	}

	upgrader := newUpgrader(s.config.Server.AllowedOrigins)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	metrics.WebSocketConnections.Inc()
	defer metrics.WebSocketConnections.Dec()

	sub := s.engine.Subscribe(id)

	// Stream events until the run finishes or the client goes away.
	for ev := range sub.Ch {
		_ = conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
		metrics.WebSocketMessagesTotal.WithLabelValues("out").Inc()
		if ev.Type == "result" || ev.Type == "error" {
			return
		}
	}
}
