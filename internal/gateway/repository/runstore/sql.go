package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// sqlStore backs Store with database/sql. The same queries serve both
// drivers; rebind rewrites ? placeholders into the driver's form.
type sqlStore struct {
	db     *sql.DB
	rebind func(string) string
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_owner ON conversations(owner_id);`,
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		model_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		question TEXT NOT NULL,
		settings TEXT NOT NULL DEFAULT '{}',
		council_models TEXT NOT NULL DEFAULT '[]',
		chairman_model TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		stage1_status TEXT NOT NULL DEFAULT '',
		stage1_results TEXT NOT NULL DEFAULT '',
		stage2_status TEXT NOT NULL DEFAULT '',
		stage2_results TEXT NOT NULL DEFAULT '',
		stage3_status TEXT NOT NULL DEFAULT '',
		stage3_results TEXT NOT NULL DEFAULT '',
		stage4_status TEXT NOT NULL DEFAULT '',
		stage4_results TEXT NOT NULL DEFAULT '',
		latency_ms BIGINT NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		completed_at TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE TABLE IF NOT EXISTS eval_runs (
		run_id TEXT PRIMARY KEY,
		trace TEXT NOT NULL,
		created_at TEXT NOT NULL
	);`,
}

func (s *sqlStore) initSchema() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// rebindDollar rewrites ? placeholders to $1..$n for pgx.
func rebindDollar(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *sqlStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *sqlStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s *sqlStore) CreateUser(ctx context.Context, u User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx,
		`INSERT INTO users(id,email,created_at) VALUES(?,?,?)`,
		u.ID, u.Email, encodeTime(u.CreatedAt),
	)
	return err
}

func (s *sqlStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	var created string
	err := s.queryRow(ctx,
		`SELECT id, email, created_at FROM users WHERE email=?`, email,
	).Scan(&u.ID, &u.Email, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.CreatedAt = decodeTime(created)
	return u, nil
}

func (s *sqlStore) CreateConversation(ctx context.Context, c Conversation) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	_, err := s.exec(ctx,
		`INSERT INTO conversations(id,owner_id,title,created_at,updated_at) VALUES(?,?,?,?,?)`,
		c.ID, c.OwnerID, c.Title, encodeTime(c.CreatedAt), encodeTime(c.UpdatedAt),
	)
	return err
}

func (s *sqlStore) GetConversation(ctx context.Context, id string) (Conversation, error) {
	var c Conversation
	var created, updated string
	err := s.queryRow(ctx,
		`SELECT id, owner_id, title, created_at, updated_at FROM conversations WHERE id=?`, id,
	).Scan(&c.ID, &c.OwnerID, &c.Title, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, err
	}
	c.CreatedAt = decodeTime(created)
	c.UpdatedAt = decodeTime(updated)
	return c, nil
}

func (s *sqlStore) ListConversations(ctx context.Context, ownerID string) ([]Conversation, error) {
	rows, err := s.query(ctx,
		`SELECT id, owner_id, title, created_at, updated_at
		 FROM conversations WHERE owner_id=? ORDER BY updated_at DESC`, ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Conversation{}
	for rows.Next() {
		var c Conversation
		var created, updated string
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Title, &created, &updated); err != nil {
			return nil, err
		}
		c.CreatedAt = decodeTime(created)
		c.UpdatedAt = decodeTime(updated)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqlStore) DeleteConversation(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `DELETE FROM conversations WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	_, err = s.exec(ctx, `DELETE FROM messages WHERE conversation_id=?`, id)
	return err
}

func (s *sqlStore) AppendMessage(ctx context.Context, m Message) (Message, error) {
	if _, err := s.GetConversation(ctx, m.ConversationID); err != nil {
		return Message{}, fmt.Errorf("append message: conversation %s: %w", m.ConversationID, err)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if _, err := s.exec(ctx,
		`INSERT INTO messages(id,conversation_id,role,content,model_id,created_at) VALUES(?,?,?,?,?,?)`,
		m.ID, m.ConversationID, m.Role, m.Content, m.ModelID, encodeTime(m.CreatedAt),
	); err != nil {
		return Message{}, err
	}
	_, err := s.exec(ctx,
		`UPDATE conversations SET updated_at=? WHERE id=?`,
		encodeTime(time.Now().UTC()), m.ConversationID,
	)
	return m, err
}

func (s *sqlStore) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.query(ctx,
		`SELECT id, conversation_id, role, content, model_id, created_at
		 FROM messages WHERE conversation_id=? ORDER BY created_at ASC, id ASC`, conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Message{}
	for rows.Next() {
		var m Message
		var created string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.ModelID, &created); err != nil {
			return nil, err
		}
		m.CreatedAt = decodeTime(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *sqlStore) CreateRun(ctx context.Context, r Run) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Status == "" {
		r.Status = RunStatusRunning
	}
	settings := string(r.Settings)
	if settings == "" {
		settings = "{}"
	}
	models := string(r.CouncilModels)
	if models == "" {
		models = "[]"
	}
	_, err := s.exec(ctx,
		`INSERT INTO runs(id,conversation_id,question,settings,council_models,chairman_model,status,created_at)
		 VALUES(?,?,?,?,?,?,?,?)`,
		r.ID, r.ConversationID, r.Question, settings, models, r.ChairmanModel, r.Status, encodeTime(r.CreatedAt),
	)
	return err
}

func (s *sqlStore) GetRun(ctx context.Context, id string) (Run, error) {
	var r Run
	var settings, models, created, completed string
	var s1s, s1r, s2s, s2r, s3s, s3r, s4s, s4r string
	err := s.queryRow(ctx,
		`SELECT id, conversation_id, question, settings, council_models, chairman_model, status,
		        stage1_status, stage1_results, stage2_status, stage2_results,
		        stage3_status, stage3_results, stage4_status, stage4_results,
		        latency_ms, created_at, completed_at
		 FROM runs WHERE id=?`, id,
	).Scan(&r.ID, &r.ConversationID, &r.Question, &settings, &models, &r.ChairmanModel, &r.Status,
		&s1s, &s1r, &s2s, &s2r, &s3s, &s3r, &s4s, &s4r,
		&r.LatencyMS, &created, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, err
	}
	r.Settings = rawOrNil(settings)
	r.CouncilModels = rawOrNil(models)
	r.Stage1 = StageRecord{Status: s1s, Results: rawOrNil(s1r)}
	r.Stage2 = StageRecord{Status: s2s, Results: rawOrNil(s2r)}
	r.Stage3 = StageRecord{Status: s3s, Results: rawOrNil(s3r)}
	r.Stage4 = StageRecord{Status: s4s, Results: rawOrNil(s4r)}
	r.CreatedAt = decodeTime(created)
	r.CompletedAt = decodeTime(completed)
	return r, nil
}

func (s *sqlStore) UpdateRunStage(ctx context.Context, runID, stage, status string, results []byte) error {
	if !runStages[stage] {
		return fmt.Errorf("update run stage: unknown stage %q", stage)
	}
	// stage is whitelisted above; the column names are not caller data.
	q := fmt.Sprintf(`UPDATE runs SET %s_status=?, %s_results=? WHERE id=?`, stage, stage)
	res, err := s.exec(ctx, q, status, string(results), runID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update run stage: run %s: %w", runID, ErrNotFound)
	}
	return nil
}

func (s *sqlStore) FinishRun(ctx context.Context, runID, status string, latencyMS int64) error {
	res, err := s.exec(ctx,
		`UPDATE runs SET status=?, latency_ms=?, completed_at=? WHERE id=?`,
		status, latencyMS, encodeTime(time.Now().UTC()), runID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run: run %s: %w", runID, ErrNotFound)
	}
	return nil
}

func (s *sqlStore) SaveTrace(ctx context.Context, runID string, trace []byte) error {
	_, err := s.exec(ctx,
		`INSERT INTO eval_runs(run_id,trace,created_at) VALUES(?,?,?)
		 ON CONFLICT(run_id) DO UPDATE SET trace=excluded.trace, created_at=excluded.created_at`,
		runID, string(trace), encodeTime(time.Now().UTC()),
	)
	return err
}

func (s *sqlStore) GetTrace(ctx context.Context, runID string) (TraceRecord, error) {
	var rec TraceRecord
	var trace, created string
	err := s.queryRow(ctx,
		`SELECT run_id, trace, created_at FROM eval_runs WHERE run_id=?`, runID,
	).Scan(&rec.RunID, &trace, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return TraceRecord{}, ErrNotFound
	}
	if err != nil {
		return TraceRecord{}, err
	}
	rec.Trace = rawOrNil(trace)
	rec.CreatedAt = decodeTime(created)
	return rec, nil
}

func (s *sqlStore) ListTraces(ctx context.Context, limit int) ([]TraceRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.query(ctx,
		`SELECT run_id, trace, created_at FROM eval_runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []TraceRecord{}
	for rows.Next() {
		var rec TraceRecord
		var trace, created string
		if err := rows.Scan(&rec.RunID, &trace, &created); err != nil {
			return nil, err
		}
		rec.Trace = rawOrNil(trace)
		rec.CreatedAt = decodeTime(created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *sqlStore) Close() error { return s.db.Close() }

func rawOrNil(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(s)
}
