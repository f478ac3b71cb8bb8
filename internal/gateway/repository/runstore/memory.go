package runstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is the in-process backend. It holds everything under one lock;
// the write rates here are a handful of rows per run.
type Memory struct {
	mu            sync.RWMutex
	users         map[string]User
	conversations map[string]Conversation
	messages      map[string][]Message // keyed by conversation id
	runs          map[string]Run
	traces        map[string]TraceRecord
	traceOrder    []string
}

func NewMemory() *Memory {
	return &Memory{
		users:         make(map[string]User),
		conversations: make(map[string]Conversation),
		messages:      make(map[string][]Message),
		runs:          make(map[string]Run),
		traces:        make(map[string]TraceRecord),
	}
}

func (s *Memory) CreateUser(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.ID] = u
	return nil
}

func (s *Memory) GetUserByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *Memory) CreateConversation(_ context.Context, c Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	s.conversations[c.ID] = c
	return nil
}

func (s *Memory) GetConversation(_ context.Context, id string) (Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return c, nil
}

func (s *Memory) ListConversations(_ context.Context, ownerID string) ([]Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Conversation{}
	for _, c := range s.conversations {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	// Most recently touched first.
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *Memory) DeleteConversation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return ErrNotFound
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

func (s *Memory) AppendMessage(_ context.Context, m Message) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[m.ConversationID]; !ok {
		return Message{}, fmt.Errorf("append message: conversation %s: %w", m.ConversationID, ErrNotFound)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.messages[m.ConversationID] = append(s.messages[m.ConversationID], m)

	c := s.conversations[m.ConversationID]
	c.UpdatedAt = time.Now().UTC()
	s.conversations[m.ConversationID] = c
	return m, nil
}

func (s *Memory) ListMessages(_ context.Context, conversationID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *Memory) CreateRun(_ context.Context, r Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Status == "" {
		r.Status = RunStatusRunning
	}
	s.runs[r.ID] = r
	return nil
}

func (s *Memory) GetRun(_ context.Context, id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return Run{}, ErrNotFound
	}
	return r, nil
}

func (s *Memory) UpdateRunStage(_ context.Context, runID, stage, status string, results []byte) error {
	if !runStages[stage] {
		return fmt.Errorf("update run stage: unknown stage %q", stage)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("update run stage: run %s: %w", runID, ErrNotFound)
	}
	rec := StageRecord{Status: status, Results: append([]byte(nil), results...)}
	switch stage {
	case "stage1":
		r.Stage1 = rec
	case "stage2":
		r.Stage2 = rec
	case "stage3":
		r.Stage3 = rec
	case "stage4":
		r.Stage4 = rec
	}
	s.runs[runID] = r
	return nil
}

func (s *Memory) FinishRun(_ context.Context, runID, status string, latencyMS int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("finish run: run %s: %w", runID, ErrNotFound)
	}
	r.Status = status
	r.LatencyMS = latencyMS
	r.CompletedAt = time.Now().UTC()
	s.runs[runID] = r
	return nil
}

func (s *Memory) SaveTrace(_ context.Context, runID string, trace []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.traces[runID]; !ok {
		s.traceOrder = append(s.traceOrder, runID)
	}
	s.traces[runID] = TraceRecord{
		RunID:     runID,
		Trace:     append([]byte(nil), trace...),
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (s *Memory) GetTrace(_ context.Context, runID string) (TraceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.traces[runID]
	if !ok {
		return TraceRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *Memory) ListTraces(_ context.Context, limit int) ([]TraceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	out := []TraceRecord{}
	// Newest first.
	for i := len(s.traceOrder) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.traces[s.traceOrder[i]])
	}
	return out, nil
}

func (s *Memory) Close() error { return nil }
