package council

import (
	"context"
	"log"
	"strings"
	"sync"

	"edgejury/internal/llm"
	"edgejury/internal/util/jsonutil"
)

// ReviewStage has every council member critique the full (anonymized)
// candidate set, including its own answer. Reviewer failures are local: a
// malformed or missing critique becomes an empty-shaped result.
type ReviewStage struct {
	Gateway   llm.Gateway
	MaxTokens int
}

// Low temperature: we want parseable JSON, not creativity.
const reviewTemperature = 0.3

// Run returns one Stage2Result per reviewer, ordered by member index.
// onResult, when non-nil, fires per reviewer in completion order.
func (s *ReviewStage) Run(ctx context.Context, stage1 []Stage1Result, labels *LabelMap, anonymize bool, onResult func(Stage2Result)) []Stage2Result {
	candidates := formatCandidates(stage1, labels, anonymize)
	results := make([]Stage2Result, len(stage1))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i, r := range stage1 {
		wg.Add(1)
		go func(index int, reviewerID string) {
			defer wg.Done()
			res := s.review(ctx, reviewerID, candidates)
			results[index] = res
			if onResult != nil {
				mu.Lock()
				onResult(res)
				mu.Unlock()
			}
		}(i, r.ModelID)
	}
	wg.Wait()
	return results
}

func (s *ReviewStage) review(ctx context.Context, reviewerID, candidates string) Stage2Result {
	empty := Stage2Result{
		ReviewerModelID: reviewerID,
		Rankings:        []Ranking{},
		Issues:          []Issue{},
		BestBits:        []BestBit{},
	}

	text, err := s.Gateway.Invoke(ctx, reviewerID, []llm.Message{
		{Role: "system", Content: stage2ReviewPrompt},
		{Role: "user", Content: "Review these candidate responses:\n\n" + candidates},
	}, llm.Options{MaxTokens: s.MaxTokens, Temperature: reviewTemperature})
	if err != nil {
		log.Printf("council: review by %s failed: %v", reviewerID, err)
		return empty
	}

	var parsed struct {
		Rankings []Ranking `json:"rankings"`
		Issues   []Issue   `json:"issues"`
		BestBits []BestBit `json:"best_bits"`
	}
	if err := jsonutil.ExtractInto(text, &parsed); err != nil {
		log.Printf("council: review by %s returned unparseable JSON: %v", reviewerID, err)
		return empty
	}
	out := Stage2Result{
		ReviewerModelID: reviewerID,
		Rankings:        parsed.Rankings,
		Issues:          parsed.Issues,
		BestBits:        parsed.BestBits,
	}
	if out.Rankings == nil {
		out.Rankings = []Ranking{}
	}
	if out.Issues == nil {
		out.Issues = []Issue{}
	}
	if out.BestBits == nil {
		out.BestBits = []BestBit{}
	}
	return out
}

// formatCandidates labels each stage-1 response either by positional letter
// or by literal model id. The same rendering is shown to every reviewer, so
// no reviewer can spot its own entry.
func formatCandidates(stage1 []Stage1Result, labels *LabelMap, anonymize bool) string {
	sections := make([]string, 0, len(stage1))
	for i, r := range stage1 {
		header := r.ModelID
		if anonymize {
			header = "Candidate " + labels.Letter(i)
		}
		sections = append(sections, "## "+header+"\n"+r.Response)
	}
	return strings.Join(sections, "\n\n---\n\n")
}

// AggregateRankings sums accuracy+insight+clarity per candidate label across
// all reviewers. Candidates no reviewer ranked are absent from the map.
func AggregateRankings(reviews []Stage2Result) map[string]int {
	scores := map[string]int{}
	for _, review := range reviews {
		for _, r := range review.Rankings {
			scores[r.Candidate] += r.Accuracy + r.Insight + r.Clarity
		}
	}
	return scores
}
