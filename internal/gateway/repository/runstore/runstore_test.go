package runstore

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLite(filepath.Join(t.TempDir(), "runstore.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func TestConversationLifecycle(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.CreateConversation(ctx, Conversation{
				ID: "c1", OwnerID: "alice", Title: "What is Raft?",
			}))
			require.NoError(t, store.CreateConversation(ctx, Conversation{
				ID: "c2", OwnerID: "alice", Title: "Second",
			}))
			require.NoError(t, store.CreateConversation(ctx, Conversation{
				ID: "c3", OwnerID: "bob", Title: "Other owner",
			}))

			got, err := store.GetConversation(ctx, "c1")
			require.NoError(t, err)
			require.Equal(t, "What is Raft?", got.Title)
			require.False(t, got.CreatedAt.IsZero())

			list, err := store.ListConversations(ctx, "alice")
			require.NoError(t, err)
			require.Len(t, list, 2)

			require.NoError(t, store.DeleteConversation(ctx, "c2"))
			list, err = store.ListConversations(ctx, "alice")
			require.NoError(t, err)
			require.Len(t, list, 1)

			err = store.DeleteConversation(ctx, "c2")
			require.ErrorIs(t, err, ErrNotFound)

			_, err = store.GetConversation(ctx, "missing")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestMessagesOrderedAndTouchConversation(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.CreateConversation(ctx, Conversation{
				ID: "c1", OwnerID: "alice",
				CreatedAt: time.Now().Add(-time.Hour),
				UpdatedAt: time.Now().Add(-time.Hour),
			}))

			first, err := store.AppendMessage(ctx, Message{ConversationID: "c1", Role: "user", Content: "hi"})
			require.NoError(t, err)
			require.NotEmpty(t, first.ID, "store assigns ids")

			_, err = store.AppendMessage(ctx, Message{
				ConversationID: "c1", Role: "chairman", Content: "hello", ModelID: "groq/llama-3.1-8b-instant",
				CreatedAt: first.CreatedAt.Add(time.Second),
			})
			require.NoError(t, err)

			msgs, err := store.ListMessages(ctx, "c1")
			require.NoError(t, err)
			require.Len(t, msgs, 2)
			require.Equal(t, "user", msgs[0].Role)
			require.Equal(t, "chairman", msgs[1].Role)
			require.Equal(t, "groq/llama-3.1-8b-instant", msgs[1].ModelID)

			conv, err := store.GetConversation(ctx, "c1")
			require.NoError(t, err)
			require.True(t, conv.UpdatedAt.After(conv.CreatedAt), "append bumps updated_at")

			_, err = store.AppendMessage(ctx, Message{ConversationID: "nope", Role: "user", Content: "x"})
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestRunStagePersistence(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.CreateRun(ctx, Run{
				ID:             "r1",
				ConversationID: "c1",
				Question:       "why is the sky blue?",
				Settings:       json.RawMessage(`{"council_size":3}`),
				CouncilModels:  json.RawMessage(`["m1","m2","m3"]`),
				ChairmanModel:  "m1",
			}))

			got, err := store.GetRun(ctx, "r1")
			require.NoError(t, err)
			require.Equal(t, RunStatusRunning, got.Status)
			require.JSONEq(t, `{"council_size":3}`, string(got.Settings))
			require.Empty(t, got.Stage1.Status)

			require.NoError(t, store.UpdateRunStage(ctx, "r1", "stage1", "completed", []byte(`[{"model":"m1"}]`)))
			require.NoError(t, store.UpdateRunStage(ctx, "r1", "stage3", "completed", []byte(`{"final_answer":"because"}`)))

			got, err = store.GetRun(ctx, "r1")
			require.NoError(t, err)
			require.Equal(t, "completed", got.Stage1.Status)
			require.JSONEq(t, `[{"model":"m1"}]`, string(got.Stage1.Results))
			require.Empty(t, got.Stage2.Status)
			require.JSONEq(t, `{"final_answer":"because"}`, string(got.Stage3.Results))

			require.Error(t, store.UpdateRunStage(ctx, "r1", "stage9", "completed", nil))

			require.NoError(t, store.FinishRun(ctx, "r1", RunStatusCompleted, 1234))
			got, err = store.GetRun(ctx, "r1")
			require.NoError(t, err)
			require.Equal(t, RunStatusCompleted, got.Status)
			require.Equal(t, int64(1234), got.LatencyMS)
			require.False(t, got.CompletedAt.IsZero())

			err = store.FinishRun(ctx, "ghost", RunStatusFailed, 0)
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestTraceUpsertAndList(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.SaveTrace(ctx, "r1", []byte(`{"run_id":"r1","total_tokens":10}`)))
			require.NoError(t, store.SaveTrace(ctx, "r2", []byte(`{"run_id":"r2"}`)))
			// Second save for the same run replaces the first.
			require.NoError(t, store.SaveTrace(ctx, "r1", []byte(`{"run_id":"r1","total_tokens":99}`)))

			rec, err := store.GetTrace(ctx, "r1")
			require.NoError(t, err)
			require.JSONEq(t, `{"run_id":"r1","total_tokens":99}`, string(rec.Trace))

			all, err := store.ListTraces(ctx, 10)
			require.NoError(t, err)
			require.Len(t, all, 2)

			one, err := store.ListTraces(ctx, 1)
			require.NoError(t, err)
			require.Len(t, one, 1)

			_, err = store.GetTrace(ctx, "ghost")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestUsers(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.CreateUser(ctx, User{ID: "u1", Email: "a@example.com"}))

			u, err := store.GetUserByEmail(ctx, "a@example.com")
			require.NoError(t, err)
			require.Equal(t, "u1", u.ID)

			_, err = store.GetUserByEmail(ctx, "nobody@example.com")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestRebindDollar(t *testing.T) {
	q := rebindDollar(`UPDATE runs SET status=?, latency_ms=? WHERE id=?`)
	require.Equal(t, `UPDATE runs SET status=$1, latency_ms=$2 WHERE id=$3`, q)
}
