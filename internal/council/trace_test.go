package council

import (
	"strings"
	"testing"
	"time"

	"edgejury/internal/tester"
)

func TestTraceRecorderTimings(t *testing.T) {
	rec := NewTraceRecorder("run-t")
	clock := time.Unix(1700000000, 0)
	rec.now = func() time.Time {
		clock = clock.Add(100 * time.Millisecond)
		return clock
	}
	rec.SetRequestInfo("u1", "s1", "q", Settings{CouncilSize: 4, EnableCrossReview: true, VerificationMode: VerificationEvidence})

	rec.StartStage("stage1")
	rec.EndStage("stage1", StageOutcome{Success: true, TokenCount: 12, OutputLength: 48})
	rec.StartStage("stage3")
	rec.EndStage("stage3", StageOutcome{Success: false, FallbackUsed: true, TokenCount: 5})

	trace := rec.Finalize()
	tester.Eq(t, trace.RunID, "run-t")
	tester.Eq(t, trace.CouncilSize, 4)
	tester.Eq(t, trace.VerificationMode, "evidence")
	tester.Eq(t, len(trace.Stages), 2)
	tester.Eq(t, trace.Stages[0].DurationMS, int64(100))
	tester.True(t, trace.Stages[1].FallbackUsed)
	tester.Eq(t, trace.TotalTokens, 17)
	// First stage start to last stage end.
	tester.Eq(t, trace.TotalLatencyMS, int64(300))
}

func TestTraceRecorderEndWithoutStart(t *testing.T) {
	rec := NewTraceRecorder("run-t")
	rec.EndStage("stage4", StageOutcome{Success: true})
	tester.Eq(t, len(rec.Finalize().Stages), 1)
	tester.Eq(t, rec.Finalize().Stages[0].DurationMS, int64(0))
}

func TestTraceJSONL(t *testing.T) {
	rec := NewTraceRecorder("run-j")
	rec.SetError("boom")
	line := rec.JSONL()
	tester.False(t, strings.Contains(line, "\n"))
	tester.True(t, strings.Contains(line, `"run_id":"run-j"`))
	tester.True(t, strings.Contains(line, `"error":"boom"`))
}
