package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"edgejury/internal/council"
	"edgejury/internal/gateway/runfeed"
	"edgejury/internal/gateway/repository/runstore"
	"edgejury/internal/llm"
)

func testService(t *testing.T, gw llm.Gateway) (*Service, runstore.Store) {
	t.Helper()
	store := runstore.NewMemory()
	orch := &council.Orchestrator{
		Gateway: gw,
		Params: council.Params{
			MaxTokensStage1: 400,
			MaxTokensStage2: 300,
			MaxTokensStage3: 600,
			MaxTokensStage4: 400,
		},
		Persist: council.PersistFuncs{
			StageOutput: func(ctx context.Context, runID, stage, status string, result any) error {
				data, err := json.Marshal(result)
				if err != nil {
					return err
				}
				return store.UpdateRunStage(ctx, runID, stage, status, data)
			},
			ChairmanMessage: func(ctx context.Context, conversationID, modelID, content string) error {
				_, err := store.AppendMessage(ctx, runstore.Message{
					ConversationID: conversationID,
					Role:           "chairman",
					Content:        content,
					ModelID:        modelID,
				})
				return err
			},
			FinishRun: func(ctx context.Context, runID string, latencyMS int64) error {
				return store.FinishRun(ctx, runID, runstore.RunStatusCompleted, latencyMS)
			},
			SaveTrace: func(ctx context.Context, trace *council.RunTrace) error {
				data, err := json.Marshal(trace)
				if err != nil {
					return err
				}
				return store.SaveTrace(ctx, trace.RunID, data)
			},
		},
	}
	return NewService(store, orch, runfeed.NewBroker(), 3), store
}

func defaultFake() *llm.FakeGateway {
	gw := llm.NewFakeGateway()
	gw.Default = "a considered opinion"
	gw.Script(council.DefaultChairmanModel,
		"a considered opinion", // stage 1, chairman sits on the council too
		`{"accuracy_issues":[],"rankings":[{"candidate":"A","accuracy":8,"insight":7,"clarity":9}],"best_bits":[]}`,
		`{"final_answer":"the council answer","rationale":["agreement"],"open_questions":[],"disagreements":[]}`,
		`{"claims":[{"text":"claim one","label":"consistent"}]}`,
	)
	return gw
}

type ssePayload struct {
	event string
	data  string
}

func parseSSE(body string) []ssePayload {
	out := []ssePayload{}
	for _, block := range strings.Split(body, "\n\n") {
		var p ssePayload
		for _, line := range strings.Split(block, "\n") {
			if after, ok := strings.CutPrefix(line, "event: "); ok {
				p.event = after
			}
			if after, ok := strings.CutPrefix(line, "data: "); ok {
				p.data = after
			}
		}
		if p.event != "" {
			out = append(out, p)
		}
	}
	return out
}

func postChat(t *testing.T, svc *Service, payload string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	svc.HandleChat(w, req)
	return w
}

func TestChatStreamsFullRun(t *testing.T) {
	svc, store := testService(t, defaultFake())

	w := postChat(t, svc, `{"message":"Why do leaves change color?","settings":{"council_size":3}}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := parseSSE(w.Body.String())
	names := make([]string, len(events))
	for i, ev := range events {
		names[i] = ev.event
	}
	require.Equal(t, []string{
		"stage1.start",
		"stage1.model_result", "stage1.model_result", "stage1.model_result",
		"stage1.complete",
		"stage2.start",
		"stage2.review_result", "stage2.review_result", "stage2.review_result",
		"stage2.complete",
		"stage3.start", "stage3.chairman_result", "stage3.complete",
		"stage4.start", "stage4.verification_result", "stage4.complete",
		"done",
	}, names)

	var done struct {
		RunID          string `json:"run_id"`
		ConversationID string `json:"conversation_id"`
		LatencyMS      int64  `json:"latency_ms"`
	}
	require.NoError(t, json.Unmarshal([]byte(events[len(events)-1].data), &done))
	require.NotEmpty(t, done.RunID)
	require.NotEmpty(t, done.ConversationID)

	// Durable state: conversation, user + chairman messages, completed run.
	ctx := context.Background()
	conv, err := store.GetConversation(ctx, done.ConversationID)
	require.NoError(t, err)
	require.Equal(t, "Why do leaves change color?", conv.Title)

	msgs, err := store.ListMessages(ctx, done.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "user", msgs[0].Role)
	require.Equal(t, "chairman", msgs[1].Role)

	run, err := store.GetRun(ctx, done.RunID)
	require.NoError(t, err)
	require.Equal(t, runstore.RunStatusCompleted, run.Status)
	require.Equal(t, "completed", run.Stage1.Status)
	require.Equal(t, "completed", run.Stage4.Status)

	trace, err := store.GetTrace(ctx, done.RunID)
	require.NoError(t, err)
	require.Contains(t, string(trace.Trace), `"council_size":3`)
}

func TestChatValidation(t *testing.T) {
	svc, _ := testService(t, defaultFake())

	w := postChat(t, svc, `{"message":"  "}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = postChat(t, svc, `{"message":"`+strings.Repeat("a", council.MaxQuestionChars+1)+`"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = postChat(t, svc, `{"message":"hi","settings":{"council_size":11}}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = postChat(t, svc, `{"message":"hi","settings":{"verification_mode":"vibes"}}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = postChat(t, svc, `{"message":"hi","conversation_id":"ghost"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatContinuesConversation(t *testing.T) {
	svc, store := testService(t, defaultFake())
	ctx := context.Background()

	require.NoError(t, store.CreateConversation(ctx, runstore.Conversation{
		ID: "c1", OwnerID: "anonymous", Title: "Leaves",
	}))
	_, err := store.AppendMessage(ctx, runstore.Message{ConversationID: "c1", Role: "user", Content: "first question"})
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, runstore.Message{ConversationID: "c1", Role: "chairman", Content: "first answer"})
	require.NoError(t, err)

	w := postChat(t, svc, `{"message":"And in autumn?","conversation_id":"c1","settings":{"council_size":1,"enable_cross_review":false,"verification_mode":"off"}}`)
	require.Equal(t, http.StatusOK, w.Code)

	msgs, err := store.ListMessages(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 4, "prior two plus new user and chairman")
}

func TestChatSkipsStagesPerSettings(t *testing.T) {
	svc, _ := testService(t, defaultFake())

	w := postChat(t, svc, `{"message":"quick one","settings":{"council_size":2,"enable_cross_review":false,"verification_mode":"off"}}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	require.NotContains(t, body, "stage2.start")
	require.NotContains(t, body, "stage4.start")
	require.Contains(t, body, "event: done")
}

func TestConversationEndpoints(t *testing.T) {
	svc, store := testService(t, defaultFake())
	ctx := context.Background()
	require.NoError(t, store.CreateConversation(ctx, runstore.Conversation{ID: "c1", OwnerID: "anonymous", Title: "One"}))
	require.NoError(t, store.CreateConversation(ctx, runstore.Conversation{ID: "c2", OwnerID: "someone-else", Title: "Two"}))

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	w := httptest.NewRecorder()
	svc.HandleListConversations(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var listResp struct {
		Conversations []runstore.Conversation `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	require.Len(t, listResp.Conversations, 1, "only the caller's conversations")

	// Owner isolation: someone else's conversation reads as missing.
	req = httptest.NewRequest(http.MethodGet, "/api/conversations/c2", nil)
	req.SetPathValue("id", "c2")
	w = httptest.NewRecorder()
	svc.HandleGetConversation(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/conversations/c1", nil)
	req.SetPathValue("id", "c1")
	w = httptest.NewRecorder()
	svc.HandleDeleteConversation(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	_, err := store.GetConversation(ctx, "c1")
	require.ErrorIs(t, err, runstore.ErrNotFound)
}

func TestRunEndpoints(t *testing.T) {
	svc, store := testService(t, defaultFake())
	ctx := context.Background()
	require.NoError(t, store.CreateRun(ctx, runstore.Run{ID: "r1", ConversationID: "c1", Question: "q"}))
	require.NoError(t, store.SaveTrace(ctx, "r1", []byte(`{"run_id":"r1"}`)))

	req := httptest.NewRequest(http.MethodGet, "/api/runs/r1", nil)
	req.SetPathValue("id", "r1")
	w := httptest.NewRecorder()
	svc.HandleGetRun(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/runs/r1/trace", nil)
	req.SetPathValue("id", "r1")
	w = httptest.NewRecorder()
	svc.HandleGetRunTrace(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"run_id":"r1"}`, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/runs/ghost", nil)
	req.SetPathValue("id", "ghost")
	w = httptest.NewRecorder()
	svc.HandleGetRun(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/traces?limit=10", nil)
	w = httptest.NewRecorder()
	svc.HandleListTraces(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))
}

func TestCreateConversationEndpoint(t *testing.T) {
	svc, store := testService(t, defaultFake())

	req := httptest.NewRequest(http.MethodPost, "/api/conversations", strings.NewReader(`{"title":"My chat"}`))
	w := httptest.NewRecorder()
	svc.HandleCreateConversation(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Conversation runstore.Conversation `json:"conversation"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "My chat", resp.Conversation.Title)
	require.Equal(t, "anonymous", resp.Conversation.OwnerID)

	_, err := store.GetConversation(context.Background(), resp.Conversation.ID)
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodPost, "/api/conversations", strings.NewReader(`{}`))
	w = httptest.NewRecorder()
	svc.HandleCreateConversation(w, req)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "New Conversation", resp.Conversation.Title)
}

func TestIndexAndNotFound(t *testing.T) {
	svc, _ := testService(t, defaultFake())

	w := httptest.NewRecorder()
	svc.HandleIndex(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"name":"edgejury"`)

	w = httptest.NewRecorder()
	svc.HandleNotFound(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestAutoTitle(t *testing.T) {
	require.Equal(t, "short", autoTitle("short"))
	long := strings.Repeat("x", 80)
	require.Equal(t, strings.Repeat("x", 50)+"...", autoTitle(long))
}

func TestOwnerFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Equal(t, "anonymous", ownerFromRequest(req))

	req.Header.Set("Authorization", "Bearer alice-token")
	require.Equal(t, "alice-token", ownerFromRequest(req))
}
