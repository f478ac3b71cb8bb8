package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"edgejury/internal/gateway/repository/runstore"
)

const maxListedConversations = 50

func (s *Service) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)
	list, err := s.store.ListConversations(r.Context(), owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(list) > maxListedConversations {
		list = list[:maxListedConversations]
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": list})
}

func (s *Service) HandleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title,omitempty"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "New Conversation"
	}
	conv := runstore.Conversation{
		ID:      uuid.NewString(),
		OwnerID: ownerFromRequest(r),
		Title:   title,
	}
	if err := s.store.CreateConversation(r.Context(), conv); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	created, err := s.store.GetConversation(r.Context(), conv.ID)
	if err != nil {
		created = conv
	}
	writeJSON(w, http.StatusCreated, map[string]any{"conversation": created})
}

func (s *Service) HandleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	conv, err := s.store.GetConversation(r.Context(), id)
	if err != nil {
		if errors.Is(err, runstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if conv.OwnerID != ownerFromRequest(r) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	msgs, err := s.store.ListMessages(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation": conv,
		"messages":     msgs,
	})
}

func (s *Service) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	conv, err := s.store.GetConversation(r.Context(), id)
	if err != nil {
		if errors.Is(err, runstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if conv.OwnerID != ownerFromRequest(r) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err := s.store.DeleteConversation(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}
