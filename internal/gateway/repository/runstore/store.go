// Package runstore persists conversations, messages, runs, and run traces.
// Three backends share the interface: Postgres for deployments, SQLite for
// single-node installs, and an in-memory store for tests and local runs.
package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("runstore: not found")

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type Conversation struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	ModelID        string    `json:"model_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// StageRecord is one stage's persisted slot on a run row.
type StageRecord struct {
	Status  string          `json:"status,omitempty"`
	Results json.RawMessage `json:"results,omitempty"`
}

type Run struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	Question       string          `json:"question"`
	Settings       json.RawMessage `json:"settings"`
	CouncilModels  json.RawMessage `json:"council_models"`
	ChairmanModel  string          `json:"chairman_model"`
	Status         string          `json:"status"`
	Stage1         StageRecord     `json:"stage1"`
	Stage2         StageRecord     `json:"stage2"`
	Stage3         StageRecord     `json:"stage3"`
	Stage4         StageRecord     `json:"stage4"`
	LatencyMS      int64           `json:"latency_ms"`
	CreatedAt      time.Time       `json:"created_at"`
	CompletedAt    time.Time       `json:"completed_at,omitzero"`
}

// TraceRecord is one archived run trace, stored as its JSON document.
type TraceRecord struct {
	RunID     string          `json:"run_id"`
	Trace     json.RawMessage `json:"trace"`
	CreatedAt time.Time       `json:"created_at"`
}

// Run statuses. A run is created running and ends completed or failed.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Stage names accepted by UpdateRunStage.
var runStages = map[string]bool{
	"stage1": true,
	"stage2": true,
	"stage3": true,
	"stage4": true,
}

// Store is the persistence surface the gateway and the orchestrator write
// through. Implementations must be safe for concurrent use.
type Store interface {
	CreateUser(ctx context.Context, u User) error
	GetUserByEmail(ctx context.Context, email string) (User, error)

	CreateConversation(ctx context.Context, c Conversation) error
	GetConversation(ctx context.Context, id string) (Conversation, error)
	ListConversations(ctx context.Context, ownerID string) ([]Conversation, error)
	DeleteConversation(ctx context.Context, id string) error

	AppendMessage(ctx context.Context, m Message) (Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)

	CreateRun(ctx context.Context, r Run) error
	GetRun(ctx context.Context, id string) (Run, error)
	UpdateRunStage(ctx context.Context, runID, stage, status string, results []byte) error
	FinishRun(ctx context.Context, runID, status string, latencyMS int64) error

	SaveTrace(ctx context.Context, runID string, trace []byte) error
	GetTrace(ctx context.Context, runID string) (TraceRecord, error)
	ListTraces(ctx context.Context, limit int) ([]TraceRecord, error)

	Close() error
}
