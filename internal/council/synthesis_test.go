package council

import (
	"context"
	"errors"
	"strings"
	"testing"

	"edgejury/internal/llm"
	"edgejury/internal/tester"
)

const chairmanModel = "test/chairman"

func TestSynthesizeParsesChairmanJSON(t *testing.T) {
	gw := llm.NewFakeGateway()
	gw.Script(chairmanModel, `{"final_answer":"the synthesis","rationale":["chose A"],"open_questions":[],"disagreements":[{"topic":"t","positions":[{"model":"A","stance":"yes"}],"resolution":"went with A"}]}`)

	stage := &SynthesisStage{Gateway: gw, Model: chairmanModel, MaxTokens: 600}
	res, fallback := stage.Run(context.Background(), "q", stage1Fixture(2), nil, nil, NewLabelMap(2))

	tester.False(t, fallback)
	tester.Eq(t, res.FinalAnswer, "the synthesis")
	tester.Eq(t, res.Rationale, []string{"chose A"})
	tester.Eq(t, len(res.Disagreements), 1)
}

func TestSynthesizeRawTextFallbackOnParseFailure(t *testing.T) {
	gw := llm.NewFakeGateway()
	gw.Script(chairmanModel, "Here is my answer, sans JSON.")

	stage := &SynthesisStage{Gateway: gw, Model: chairmanModel, MaxTokens: 600}
	res, fallback := stage.Run(context.Background(), "q", stage1Fixture(2), nil, nil, NewLabelMap(2))

	tester.False(t, fallback, "parse slip is not the hard-failure fallback")
	tester.Eq(t, res.FinalAnswer, "Here is my answer, sans JSON.")
	tester.Eq(t, len(res.Rationale), 0)
	tester.Eq(t, len(res.Disagreements), 0)
}

func TestSynthesizeHardFailureFallsBackToFirstOpinion(t *testing.T) {
	gw := llm.NewFakeGateway()
	gw.FailWith(chairmanModel, errors.New("upstream 503"))

	stage1 := stage1Fixture(3)
	stage := &SynthesisStage{Gateway: gw, Model: chairmanModel, MaxTokens: 600}
	res, fallback := stage.Run(context.Background(), "q", stage1, nil, nil, NewLabelMap(3))

	tester.True(t, fallback)
	tester.Eq(t, res.FinalAnswer, stage1[0].Response)
	tester.Eq(t, len(res.Rationale), 1)
	tester.True(t, strings.Contains(res.Rationale[0], "Fallback"), "fallback flagged in rationale")
}

func TestSynthesisContextAssembly(t *testing.T) {
	stage1 := stage1Fixture(2)
	stage2 := []Stage2Result{
		{
			ReviewerModelID: stage1[0].ModelID,
			Rankings:        []Ranking{{Candidate: "A", Accuracy: 8, Insight: 7, Clarity: 6}, {Candidate: "B", Accuracy: 5, Insight: 5, Clarity: 5}},
			Issues:          []Issue{{Candidate: "B", Type: "unclear", Detail: "rambling"}},
			BestBits:        []BestBit{{Candidate: "A", Extract: "crisp opener"}},
		},
		{
			ReviewerModelID: stage1[1].ModelID,
			Rankings:        []Ranking{{Candidate: "A", Accuracy: 6, Insight: 9, Clarity: 8}},
		},
	}
	history := []HistoryMessage{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: strings.Repeat("y", 250)},
	}

	body := buildSynthesisContext("current q", stage1, stage2, history, NewLabelMap(2))

	tester.True(t, strings.Contains(body, "# Conversation History"), "history block")
	tester.True(t, strings.Contains(body, "[USER]: earlier question"), "history roles upper-cased")
	tester.True(t, strings.Contains(body, strings.Repeat("y", 200)+"..."), "entries capped at 200 chars with marker")
	tester.False(t, strings.Contains(body, strings.Repeat("y", 201)), "no overlong entries")
	tester.True(t, strings.Contains(body, "# Current Question\ncurrent q"), "question block")
	tester.True(t, strings.Contains(body, "## Model A (direct_answerer)"), "labeled opinions with persona")
	tester.True(t, strings.Contains(body, "- Candidate A: 44 points"), "aggregated score block")
	tester.True(t, strings.Contains(body, "- [B] unclear: rambling"), "issues block")
	tester.True(t, strings.Contains(body, `- [A]: "crisp opener"`), "best elements block")
}

func TestSynthesisHistorySummaryLimits(t *testing.T) {
	history := make([]HistoryMessage, 15)
	for i := range history {
		history[i] = HistoryMessage{Role: "user", Content: "turn " + string(rune('a'+i))}
	}
	summary := formatHistorySummary(history)
	tester.Eq(t, strings.Count(summary, "\n")+1, 6, "only the most recent 6 entries")
	tester.False(t, strings.Contains(summary, "turn i"), "older turns dropped")
	tester.True(t, strings.Contains(summary, "turn o"), "newest turns kept")
	tester.Eq(t, formatHistorySummary(nil), "No prior conversation.")
}

func TestSynthesisWithoutReviews(t *testing.T) {
	body := buildSynthesisContext("q", stage1Fixture(1), nil, nil, NewLabelMap(1))
	tester.True(t, strings.Contains(body, "No reviews available."), "review block placeholder")
}
