package council

import (
	"encoding/json"
	"time"
)

// StageTiming is the per-stage observability record.
type StageTiming struct {
	Stage        string `json:"stage"`
	StartTime    int64  `json:"start_time"` // unix millis
	EndTime      int64  `json:"end_time"`
	DurationMS   int64  `json:"duration_ms"`
	Success      bool   `json:"success"`
	Retries      int    `json:"retries"`
	FallbackUsed bool   `json:"fallback_used"`
	TokenCount   int    `json:"token_count"`
	OutputLength int    `json:"output_length"`
}

// RunTrace aggregates everything observable about one run. It is created at
// run start and finalized at run end regardless of the success/failure path.
type RunTrace struct {
	RunID     string `json:"run_id"`
	Timestamp string `json:"timestamp"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	Question          string `json:"question"`
	CouncilSize       int    `json:"council_size"`
	EnableCrossReview bool   `json:"enable_cross_review"`
	VerificationMode  string `json:"verification_mode"`

	Stages []StageTiming `json:"stages"`

	Stage1Results []Stage1Result `json:"stage1_results,omitempty"`
	Stage2Results []Stage2Result `json:"stage2_results,omitempty"`
	Stage3Result  *Stage3Result  `json:"stage3_result,omitempty"`
	Stage4Result  *Stage4Result  `json:"stage4_result,omitempty"`

	TotalLatencyMS int64  `json:"total_latency_ms"`
	TotalTokens    int    `json:"total_tokens"`
	CacheHit       bool   `json:"cache_hit"`
	Error          string `json:"error,omitempty"`
}

// StageOutcome is what a finished stage reports back to the recorder.
type StageOutcome struct {
	Success      bool
	Retries      int
	FallbackUsed bool
	TokenCount   int
	OutputLength int
}

// TraceRecorder accumulates one RunTrace. It is run-scoped and not
// goroutine-safe: only the orchestrator writes to it, at stage boundaries.
type TraceRecorder struct {
	trace       RunTrace
	stageStarts map[string]time.Time
	now         func() time.Time
}

func NewTraceRecorder(runID string) *TraceRecorder {
	return &TraceRecorder{
		trace: RunTrace{
			RunID:     runID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Stages:    []StageTiming{},
		},
		stageStarts: map[string]time.Time{},
		now:         time.Now,
	}
}

// SetRequestInfo records the caller-facing request parameters.
func (r *TraceRecorder) SetRequestInfo(userID, sessionID, question string, settings Settings) {
	r.trace.UserID = userID
	r.trace.SessionID = sessionID
	r.trace.Question = question
	r.trace.CouncilSize = settings.CouncilSize
	r.trace.EnableCrossReview = settings.EnableCrossReview
	r.trace.VerificationMode = string(settings.VerificationMode)
}

func (r *TraceRecorder) StartStage(stage string) {
	r.stageStarts[stage] = r.now()
}

func (r *TraceRecorder) EndStage(stage string, outcome StageOutcome) {
	start, ok := r.stageStarts[stage]
	if !ok {
		start = r.now()
	}
	end := r.now()
	r.trace.Stages = append(r.trace.Stages, StageTiming{
		Stage:        stage,
		StartTime:    start.UnixMilli(),
		EndTime:      end.UnixMilli(),
		DurationMS:   end.Sub(start).Milliseconds(),
		Success:      outcome.Success,
		Retries:      outcome.Retries,
		FallbackUsed: outcome.FallbackUsed,
		TokenCount:   outcome.TokenCount,
		OutputLength: outcome.OutputLength,
	})
	r.trace.TotalTokens += outcome.TokenCount
}

func (r *TraceRecorder) SetStage1(results []Stage1Result) { r.trace.Stage1Results = results }
func (r *TraceRecorder) SetStage2(results []Stage2Result) { r.trace.Stage2Results = results }
func (r *TraceRecorder) SetStage3(result Stage3Result)    { r.trace.Stage3Result = &result }
func (r *TraceRecorder) SetStage4(result Stage4Result)    { r.trace.Stage4Result = &result }
func (r *TraceRecorder) SetCacheHit(hit bool)             { r.trace.CacheHit = hit }
func (r *TraceRecorder) SetError(msg string)              { r.trace.Error = msg }

// Finalize computes the total latency from the earliest stage start to the
// latest stage end and returns the completed trace.
func (r *TraceRecorder) Finalize() *RunTrace {
	if len(r.trace.Stages) > 0 {
		first := r.trace.Stages[0].StartTime
		last := r.trace.Stages[0].EndTime
		for _, s := range r.trace.Stages {
			if s.StartTime < first {
				first = s.StartTime
			}
			if s.EndTime > last {
				last = s.EndTime
			}
		}
		r.trace.TotalLatencyMS = last - first
	}
	return &r.trace
}

// JSONL renders the finalized trace as a single JSON line for archive export.
func (r *TraceRecorder) JSONL() string {
	b, err := json.Marshal(r.Finalize())
	if err != nil {
		return "{}"
	}
	return string(b)
}
