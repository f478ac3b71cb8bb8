package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"edgejury/internal/council"
	"edgejury/internal/gateway/repository/runstore"
)

const maxTitleChars = 50

type chatRequest struct {
	ConversationID string       `json:"conversation_id,omitempty"`
	Message        string       `json:"message"`
	Settings       *settingsDTO `json:"settings,omitempty"`
}

// settingsDTO uses pointers so an absent field falls back to the default
// while an explicit false/zero is honored.
type settingsDTO struct {
	CouncilSize       *int    `json:"council_size,omitempty"`
	VerificationMode  *string `json:"verification_mode,omitempty"`
	EnableCrossReview *bool   `json:"enable_cross_review,omitempty"`
	AnonymizeReviews  *bool   `json:"anonymize_reviews,omitempty"`
}

func (s *Service) resolveSettings(dto *settingsDTO) council.Settings {
	settings := council.DefaultSettings(s.defaultSize)
	if dto == nil {
		return settings
	}
	if dto.CouncilSize != nil {
		settings.CouncilSize = *dto.CouncilSize
	}
	if dto.VerificationMode != nil {
		settings.VerificationMode = council.VerificationMode(*dto.VerificationMode)
	}
	if dto.EnableCrossReview != nil {
		settings.EnableCrossReview = *dto.EnableCrossReview
	}
	if dto.AnonymizeReviews != nil {
		settings.AnonymizeReviews = *dto.AnonymizeReviews
	}
	return settings
}

// HandleChat validates the request, prepares the conversation and run rows,
// and then streams the full council run as server-sent events.
func (s *Service) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	question := strings.TrimSpace(req.Message)
	if question == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if len(req.Message) > council.MaxQuestionChars {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("message exceeds %d characters", council.MaxQuestionChars))
		return
	}
	settings := s.resolveSettings(req.Settings)
	if err := council.ValidateSettings(settings); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	owner := ownerFromRequest(r)
	s.ensureUser(ctx, owner)

	conv, history, err := s.prepareConversation(ctx, owner, req.ConversationID, req.Message)
	if err != nil {
		if errors.Is(err, runstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	runID := uuid.NewString()
	if err := s.createRun(ctx, runID, conv.ID, question, settings); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	sink := council.SinkFunc(func(ev council.Event) error {
		s.feed.Publish(runID, ev)
		data, err := json.Marshal(ev.Data)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})

	in := council.RunInput{
		RunID:          runID,
		ConversationID: conv.ID,
		UserID:         owner,
		Question:       question,
		Settings:       settings,
		History:        history,
	}
	// The run outlives a dropped SSE connection; results still persist.
	runCtx := context.WithoutCancel(ctx)
	if err := s.orch.Run(runCtx, in, sink); err != nil {
		log.Printf("handler: run %s failed: %v", runID, err)
		if ferr := s.store.FinishRun(runCtx, runID, runstore.RunStatusFailed, 0); ferr != nil {
			log.Printf("handler: run %s: mark failed: %v", runID, ferr)
		}
	}
	s.feed.ScheduleCleanup(runID)
}

// prepareConversation loads or creates the conversation, collects its prior
// messages as run history, and appends the incoming user message.
func (s *Service) prepareConversation(ctx context.Context, owner, conversationID, message string) (runstore.Conversation, []council.HistoryMessage, error) {
	var conv runstore.Conversation
	var history []council.HistoryMessage

	if strings.TrimSpace(conversationID) == "" {
		conv = runstore.Conversation{
			ID:      uuid.NewString(),
			OwnerID: owner,
			Title:   autoTitle(message),
		}
		if err := s.store.CreateConversation(ctx, conv); err != nil {
			return runstore.Conversation{}, nil, fmt.Errorf("create conversation: %w", err)
		}
	} else {
		var err error
		conv, err = s.store.GetConversation(ctx, strings.TrimSpace(conversationID))
		if err != nil {
			return runstore.Conversation{}, nil, err
		}
		msgs, err := s.store.ListMessages(ctx, conv.ID)
		if err != nil {
			return runstore.Conversation{}, nil, fmt.Errorf("list messages: %w", err)
		}
		history = historyFromMessages(msgs)
	}

	if _, err := s.store.AppendMessage(ctx, runstore.Message{
		ConversationID: conv.ID,
		Role:           "user",
		Content:        message,
	}); err != nil {
		return runstore.Conversation{}, nil, fmt.Errorf("append user message: %w", err)
	}
	return conv, history, nil
}

func (s *Service) createRun(ctx context.Context, runID, conversationID, question string, settings council.Settings) error {
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	modelsJSON, err := json.Marshal(council.CouncilModels(settings.CouncilSize))
	if err != nil {
		return fmt.Errorf("encode council models: %w", err)
	}
	chairman := s.orch.Params.ChairmanModel
	if chairman == "" {
		chairman = council.DefaultChairmanModel
	}
	if err := s.store.CreateRun(ctx, runstore.Run{
		ID:             runID,
		ConversationID: conversationID,
		Question:       question,
		Settings:       settingsJSON,
		CouncilModels:  modelsJSON,
		ChairmanModel:  chairman,
		Status:         runstore.RunStatusRunning,
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// ensureUser provisions a user row for the owner handle on first contact.
// Best-effort: a racing insert or a store error never blocks the chat.
func (s *Service) ensureUser(ctx context.Context, owner string) {
	if _, err := s.store.GetUserByEmail(ctx, owner); err == nil {
		return
	}
	if err := s.store.CreateUser(ctx, runstore.User{ID: uuid.NewString(), Email: owner}); err != nil {
		log.Printf("handler: ensure user %s: %v", owner, err)
	}
}

func autoTitle(message string) string {
	message = strings.TrimSpace(message)
	runes := []rune(message)
	if len(runes) <= maxTitleChars {
		return message
	}
	return string(runes[:maxTitleChars]) + "..."
}

func historyFromMessages(msgs []runstore.Message) []council.HistoryMessage {
	out := make([]council.HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		role := "assistant"
		if m.Role == "user" {
			role = "user"
		}
		out = append(out, council.HistoryMessage{Role: role, Content: m.Content})
	}
	return out
}
