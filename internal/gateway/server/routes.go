package server

import (
	"net/http"

	"edgejury/internal/gateway/handler"
	"edgejury/internal/gateway/middleware"
)

func NewMux(svc *handler.Service) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat", svc.HandleChat)

	mux.HandleFunc("GET /api/conversations", svc.HandleListConversations)
	mux.HandleFunc("POST /api/conversations", svc.HandleCreateConversation)
	mux.HandleFunc("GET /api/conversations/{id}", svc.HandleGetConversation)
	mux.HandleFunc("DELETE /api/conversations/{id}", svc.HandleDeleteConversation)

	mux.HandleFunc("GET /api/runs/{id}", svc.HandleGetRun)
	mux.HandleFunc("GET /api/runs/{id}/trace", svc.HandleGetRunTrace)
	mux.HandleFunc("GET /api/runs/{id}/watch", svc.HandleWatchRun)
	mux.HandleFunc("GET /api/traces", svc.HandleListTraces)

	mux.HandleFunc("GET /healthz", svc.HandleHealth)
	mux.HandleFunc("GET /{$}", svc.HandleIndex)
	mux.HandleFunc("/", svc.HandleNotFound)

	return middleware.CORS(mux)
}
