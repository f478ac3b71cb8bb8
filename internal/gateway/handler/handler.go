// Package handler exposes the HTTP surface: chat runs over SSE, conversation
// CRUD, run inspection, trace export, and websocket watch.
package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"edgejury/internal/council"
	"edgejury/internal/gateway/runfeed"
	"edgejury/internal/gateway/repository/runstore"
)

// Service implements all gateway endpoints. It holds the store, the
// orchestrator, and the watcher feed as its dependencies.
type Service struct {
	store       runstore.Store
	orch        *council.Orchestrator
	feed        *runfeed.Broker
	defaultSize int
}

func NewService(store runstore.Store, orch *council.Orchestrator, feed *runfeed.Broker, defaultSize int) *Service {
	if defaultSize < council.MinCouncilSize || defaultSize > council.MaxCouncilSize {
		defaultSize = 3
	}
	return &Service{store: store, orch: orch, feed: feed, defaultSize: defaultSize}
}

const serviceVersion = "1.0.0"

// HandleIndex answers the root probe with service identity.
func (s *Service) HandleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      "edgejury",
		"version":   serviceVersion,
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Service) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Service) HandleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

// ownerFromRequest resolves the request's owner identity. Bearer tokens are
// opaque owner handles here; absent auth falls back to a shared identity.
func ownerFromRequest(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
		if token := strings.TrimSpace(after); token != "" {
			return token
		}
	}
	return "anonymous"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
