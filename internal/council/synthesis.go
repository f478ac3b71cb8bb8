package council

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"edgejury/internal/llm"
	"edgejury/internal/util/jsonutil"
)

// SynthesisStage runs the single chairman call that folds every opinion and
// critique into one final answer. It degrades rather than fails: a formatting
// slip keeps the raw text as the answer, a hard inference failure falls back
// to the first member's response with the fallback flagged in the rationale.
type SynthesisStage struct {
	Gateway   llm.Gateway
	Model     string
	MaxTokens int
}

const synthesisTemperature = 0.5

// Run returns the chairman's synthesis and whether the hard-failure fallback
// was taken.
func (s *SynthesisStage) Run(ctx context.Context, question string, stage1 []Stage1Result, stage2 []Stage2Result, history []HistoryMessage, labels *LabelMap) (Stage3Result, bool) {
	body := buildSynthesisContext(question, stage1, stage2, history, labels)

	text, err := s.Gateway.Invoke(ctx, s.Model, []llm.Message{
		{Role: "system", Content: stage3ChairmanPrompt},
		{Role: "user", Content: body},
	}, llm.Options{MaxTokens: s.MaxTokens, Temperature: synthesisTemperature})
	if err != nil {
		log.Printf("council: chairman synthesis failed: %v", err)
		fallback := "Unable to generate response."
		if len(stage1) > 0 {
			fallback = stage1[0].Response
		}
		return Stage3Result{
			FinalAnswer:   fallback,
			Rationale:     []string{"Fallback: used first model response due to synthesis error"},
			OpenQuestions: []string{},
			Disagreements: []Disagreement{},
		}, true
	}

	return parseSynthesis(text), false
}

// parseSynthesis decodes the chairman's JSON. When no decodable object is
// present the entire raw text becomes the final answer.
func parseSynthesis(text string) Stage3Result {
	var parsed Stage3Result
	if err := jsonutil.ExtractInto(text, &parsed); err != nil || parsed.FinalAnswer == "" {
		return Stage3Result{
			FinalAnswer:   text,
			Rationale:     []string{},
			OpenQuestions: []string{},
			Disagreements: []Disagreement{},
		}
	}
	if parsed.Rationale == nil {
		parsed.Rationale = []string{}
	}
	if parsed.OpenQuestions == nil {
		parsed.OpenQuestions = []string{}
	}
	if parsed.Disagreements == nil {
		parsed.Disagreements = []Disagreement{}
	}
	return parsed
}

func buildSynthesisContext(question string, stage1 []Stage1Result, stage2 []Stage2Result, history []HistoryMessage, labels *LabelMap) string {
	var b strings.Builder
	b.WriteString("# Conversation History\n")
	b.WriteString(formatHistorySummary(history))
	b.WriteString("\n\n# Current Question\n")
	b.WriteString(question)
	b.WriteString("\n\n# Model Responses\n")
	b.WriteString(formatOpinions(stage1, labels))
	b.WriteString("\n\n# Review Summary\n")
	b.WriteString(formatReviewSummary(stage2))
	return b.String()
}

func formatOpinions(stage1 []Stage1Result, labels *LabelMap) string {
	sections := make([]string, 0, len(stage1))
	for i, r := range stage1 {
		sections = append(sections, fmt.Sprintf("## Model %s (%s)\n%s", labels.Letter(i), r.Role, r.Response))
	}
	return strings.Join(sections, "\n\n---\n\n")
}

func formatReviewSummary(reviews []Stage2Result) string {
	if len(reviews) == 0 {
		return "No reviews available."
	}

	scores := AggregateRankings(reviews)
	candidates := make([]string, 0, len(scores))
	for c := range scores {
		candidates = append(candidates, c)
	}
	sort.Strings(candidates)

	var b strings.Builder
	b.WriteString("## Aggregated Rankings\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "- Candidate %s: %d points\n", c, scores[c])
	}

	b.WriteString("\n## Issues Identified\n")
	for _, review := range reviews {
		for _, issue := range review.Issues {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", issue.Candidate, issue.Type, issue.Detail)
		}
	}

	b.WriteString("\n## Best Elements\n")
	for _, review := range reviews {
		for _, bit := range review.BestBits {
			fmt.Fprintf(&b, "- [%s]: %q\n", bit.Candidate, bit.Extract)
		}
	}
	return b.String()
}
