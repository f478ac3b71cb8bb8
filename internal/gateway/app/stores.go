package app

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"edgejury/internal/council"
	"edgejury/internal/gateway/config"
	"edgejury/internal/gateway/repository/archive"
	"edgejury/internal/gateway/repository/runstore"
)

// initStore selects the persistence backend: Postgres when DATABASE_URL is
// set, SQLite when SQLITE_PATH is set, otherwise in-memory.
func initStore(cfg *config.Config) (runstore.Store, error) {
	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		store, err := runstore.NewPostgres(dsn)
		if err != nil {
			return nil, err
		}
		log.Printf("run store: postgres")
		return store, nil
	}
	if path := strings.TrimSpace(cfg.SQLitePath); path != "" {
		store, err := runstore.NewSQLite(path)
		if err != nil {
			return nil, err
		}
		log.Printf("run store: sqlite path=%s", path)
		return store, nil
	}
	log.Printf("run store: in-memory (set DATABASE_URL or SQLITE_PATH to persist)")
	return runstore.NewMemory(), nil
}

// persistFuncs adapts the run store to the orchestrator's persistence bag.
func persistFuncs(store runstore.Store) council.PersistFuncs {
	return council.PersistFuncs{
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
	}
}

// initArchiveSink builds the best-effort S3 trace exporter, or nil when the
// archive is not configured.
func initArchiveSink(cfg *config.Config) func(ctx context.Context, trace *council.RunTrace) {
	if !cfg.Archive.Enabled() {
		return nil
	}
	arch, err := archive.New(cfg.Archive)
	if err != nil {
		log.Printf("trace archive disabled: %v", err)
		return nil
	}
	log.Printf("trace archive: s3 bucket=%s endpoint=%s", cfg.Archive.Bucket, cfg.Archive.Endpoint)
	return func(ctx context.Context, trace *council.RunTrace) {
		data, err := json.Marshal(trace)
		if err != nil {
			return
		}
		if err := arch.PutTrace(ctx, trace.RunID, data); err != nil {
			log.Printf("trace archive: run %s: %v", trace.RunID, err)
		}
	}
}
