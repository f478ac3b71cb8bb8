package council

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"edgejury/internal/llm"
)

// RunState tracks the linear run lifecycle. There is no branching back:
// a run moves forward until done or failed.
type RunState string

const (
	StateValidating    RunState = "validating"
	StateStage1Running RunState = "stage1_running"
	StateStage1Done    RunState = "stage1_done"
	StateStage2Running RunState = "stage2_running"
	StateStage2Done    RunState = "stage2_done"
	StateStage3Running RunState = "stage3_running"
	StateStage3Done    RunState = "stage3_done"
	StateStage4Running RunState = "stage4_running"
	StateStage4Done    RunState = "stage4_done"
	StateFinalizing    RunState = "finalizing"
	StateDone          RunState = "done"
	StateFailed        RunState = "failed"
)

// StageStatusCompleted is the status written alongside each persisted stage
// output.
const StageStatusCompleted = "completed"

// Params are the orchestration knobs resolved from configuration.
type Params struct {
	MaxTokensStage1 int
	MaxTokensStage2 int
	MaxTokensStage3 int
	MaxTokensStage4 int
	ChairmanModel   string
	VerifierModel   string
}

// PersistFuncs is the dependency bag the orchestrator persists through.
// StageOutput runs at every stage boundary, before the next stage starts;
// its failure is the one unrecoverable error class inside a run.
type PersistFuncs struct {
	StageOutput     func(ctx context.Context, runID, stage, status string, result any) error
	ChairmanMessage func(ctx context.Context, conversationID, modelID, content string) error
	FinishRun       func(ctx context.Context, runID string, latencyMS int64) error
	SaveTrace       func(ctx context.Context, trace *RunTrace) error
}

// CacheFuncs is the optional answer cache. Lookup runs before stage 1; a hit
// short-circuits the council and replays the cached synthesis.
type CacheFuncs struct {
	Lookup func(question string, settings Settings) (Stage3Result, bool)
	Store  func(question string, settings Settings, result Stage3Result)
}

// Orchestrator sequences stages 1-4 for one run, streams events to a sink,
// and persists each stage's output at its boundary. One orchestrator may
// serve many runs: all mutable run state lives in the Run call.
type Orchestrator struct {
	Gateway llm.Gateway
	Params  Params
	Persist PersistFuncs
	Cache   CacheFuncs
	// Archive, when set, receives the finalized trace. Best-effort.
	Archive func(ctx context.Context, trace *RunTrace)
}

// RunInput carries everything a validated run needs. History is read-only.
type RunInput struct {
	RunID          string
	ConversationID string
	UserID         string
	SessionID      string
	Question       string
	Settings       Settings
	History        []HistoryMessage
}

// Run executes one full council run. The returned error is non-nil only for
// run-level failures (persistence or an unrecoverable internal error);
// per-model and parse failures are recovered inside their stages.
func (o *Orchestrator) Run(ctx context.Context, in RunInput, sink Sink) error {
	state := StateValidating
	rec := NewTraceRecorder(in.RunID)
	rec.SetRequestInfo(in.UserID, in.SessionID, in.Question, in.Settings)
	start := time.Now()

	emit := func(t EventType, data any) {
		if sink == nil {
			return
		}
		// A gone caller must not halt the run; results still persist.
		if err := sink.Emit(Event{Type: t, Data: data}); err != nil {
			log.Printf("council: run %s: sink dropped %s: %v", in.RunID, t, err)
		}
	}

	fail := func(err error) error {
		log.Printf("council: run %s failed in state %s: %v", in.RunID, state, err)
		state = StateFailed
		rec.SetError(err.Error())
		emit(EventError, ErrorPayload{Message: err.Error()})
		o.saveTrace(ctx, rec)
		return err
	}

	finish := func(answer Stage3Result, chairman string) error {
		state = StateFinalizing
		if o.Persist.ChairmanMessage != nil {
			if err := o.Persist.ChairmanMessage(ctx, in.ConversationID, chairman, answer.FinalAnswer); err != nil {
				return fail(fmt.Errorf("persist chairman message: %w", err))
			}
		}
		latency := time.Since(start).Milliseconds()
		if o.Persist.FinishRun != nil {
			if err := o.Persist.FinishRun(ctx, in.RunID, latency); err != nil {
				return fail(fmt.Errorf("finish run: %w", err))
			}
		}
		emit(EventDone, DonePayload{
			RunID:          in.RunID,
			ConversationID: in.ConversationID,
			LatencyMS:      latency,
		})
		state = StateDone
		o.saveTrace(ctx, rec)
		return nil
	}

	chairman := o.Params.ChairmanModel
	if chairman == "" {
		chairman = DefaultChairmanModel
	}
	verifier := o.Params.VerifierModel
	if verifier == "" {
		verifier = chairman
	}

	// Cached answer: replay the synthesis without convening the council.
	if o.Cache.Lookup != nil {
		if cached, ok := o.Cache.Lookup(in.Question, in.Settings); ok {
			rec.SetCacheHit(true)
			rec.SetStage3(cached)
			emit(EventStage3Chairman, cached)
			emit(EventStage3Complete, Stage3CompletePayload{Result: cached})
			return finish(cached, chairman)
		}
	}

	// Stage 1: first opinions.
	state = StateStage1Running
	emit(EventStage1Start, StartPayload{RunID: in.RunID})
	rec.StartStage("stage1")
	opinions := &OpinionStage{Gateway: o.Gateway, MaxTokens: o.Params.MaxTokensStage1}
	stage1 := opinions.Run(ctx, in.Question, in.Settings, in.History, func(r Stage1Result) {
		emit(EventStage1ModelResult, r)
	})
	rec.EndStage("stage1", stageOutcomeFor(stage1))
	rec.SetStage1(stage1)
	if err := o.persistStage(ctx, in.RunID, "stage1", stage1); err != nil {
		return fail(err)
	}
	emit(EventStage1Complete, Stage1CompletePayload{Results: stage1})
	state = StateStage1Done

	labels := NewLabelMap(len(stage1))

	// Stage 2: cross-review, optional.
	var stage2 []Stage2Result
	if in.Settings.EnableCrossReview {
		state = StateStage2Running
		emit(EventStage2Start, StartPayload{})
		rec.StartStage("stage2")
		reviews := &ReviewStage{Gateway: o.Gateway, MaxTokens: o.Params.MaxTokensStage2}
		stage2 = reviews.Run(ctx, stage1, labels, in.Settings.AnonymizeReviews, func(r Stage2Result) {
			emit(EventStage2ReviewResult, r)
		})
		rec.EndStage("stage2", outcomeFromJSON(stage2))
		rec.SetStage2(stage2)
		if err := o.persistStage(ctx, in.RunID, "stage2", stage2); err != nil {
			return fail(err)
		}
		emit(EventStage2Complete, Stage2CompletePayload{Results: stage2})
		state = StateStage2Done
	}

	// Stage 3: chairman synthesis.
	state = StateStage3Running
	emit(EventStage3Start, StartPayload{})
	rec.StartStage("stage3")
	synth := &SynthesisStage{Gateway: o.Gateway, Model: chairman, MaxTokens: o.Params.MaxTokensStage3}
	stage3, fallbackUsed := synth.Run(ctx, in.Question, stage1, stage2, in.History, labels)
	rec.EndStage("stage3", StageOutcome{
		Success:      !fallbackUsed,
		FallbackUsed: fallbackUsed,
		TokenCount:   EstimateTokens(stage3.FinalAnswer),
		OutputLength: len(stage3.FinalAnswer),
	})
	rec.SetStage3(stage3)
	if err := o.persistStage(ctx, in.RunID, "stage3", stage3); err != nil {
		return fail(err)
	}
	emit(EventStage3Chairman, stage3)
	emit(EventStage3Complete, Stage3CompletePayload{Result: stage3})
	state = StateStage3Done

	// Stage 4: verification, optional.
	if in.Settings.VerificationMode != VerificationOff {
		state = StateStage4Running
		emit(EventStage4Start, StartPayload{})
		rec.StartStage("stage4")
		verify := &VerifyStage{Gateway: o.Gateway, Model: verifier, MaxTokens: o.Params.MaxTokensStage4}
		stage4 := verify.Run(ctx, stage3.FinalAnswer, stage1, labels, in.Settings.VerificationMode)
		rec.EndStage("stage4", outcomeFromJSON(stage4))
		rec.SetStage4(stage4)
		if err := o.persistStage(ctx, in.RunID, "stage4", stage4); err != nil {
			return fail(err)
		}
		emit(EventStage4Verification, stage4)
		emit(EventStage4Complete, Stage4CompletePayload{Result: stage4})
		state = StateStage4Done
	}

	if o.Cache.Store != nil && !fallbackUsed {
		o.Cache.Store(in.Question, in.Settings, stage3)
	}
	return finish(stage3, chairman)
}

func (o *Orchestrator) persistStage(ctx context.Context, runID, stage string, result any) error {
	if o.Persist.StageOutput == nil {
		return nil
	}
	if err := o.Persist.StageOutput(ctx, runID, stage, StageStatusCompleted, result); err != nil {
		return fmt.Errorf("persist %s output: %w", stage, err)
	}
	return nil
}

// saveTrace writes the finalized trace. Best-effort on every exit path, like
// the rest of the observability pipeline.
func (o *Orchestrator) saveTrace(ctx context.Context, rec *TraceRecorder) {
	trace := rec.Finalize()
	if o.Persist.SaveTrace != nil {
		if err := o.Persist.SaveTrace(ctx, trace); err != nil {
			log.Printf("council: run %s: save trace failed: %v", trace.RunID, err)
		}
	}
	if o.Archive != nil {
		o.Archive(ctx, trace)
	}
}

func stageOutcomeFor(results []Stage1Result) StageOutcome {
	tokens := 0
	outLen := 0
	for _, r := range results {
		tokens += r.TokensUsed
		outLen += len(r.Response)
	}
	return StageOutcome{Success: true, TokenCount: tokens, OutputLength: outLen}
}

// outcomeFromJSON sizes a stage's output by its serialized form; stages 2 and
// 4 have no per-member token accounting of their own.
func outcomeFromJSON(v any) StageOutcome {
	b, err := json.Marshal(v)
	if err != nil {
		return StageOutcome{Success: true}
	}
	return StageOutcome{
		Success:      true,
		TokenCount:   EstimateTokens(string(b)),
		OutputLength: len(b),
	}
}
