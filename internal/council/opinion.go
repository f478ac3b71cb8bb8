package council

import (
	"context"
	"fmt"
	"sync"
	"time"

	"edgejury/internal/llm"
)

// OpinionStage fans a question out to every council member concurrently.
// It never fails: a member whose call errors contributes a synthetic result
// carrying an inline error marker instead of aborting the stage.
type OpinionStage struct {
	Gateway   llm.Gateway
	MaxTokens int
}

const opinionTemperature = 0.7

// Run returns exactly one Stage1Result per council member, ordered by member
// index. onResult, when non-nil, is called once per member in completion
// order (whichever model responds first).
func (s *OpinionStage) Run(ctx context.Context, question string, settings Settings, history []HistoryMessage, onResult func(Stage1Result)) []Stage1Result {
	models := CouncilModels(settings.CouncilSize)
	results := make([]Stage1Result, len(models))

	historyMsgs := historyToMessages(history)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i, modelID := range models {
		wg.Add(1)
		go func(index int, modelID string) {
			defer wg.Done()
			res := s.ask(ctx, modelID, index, question, historyMsgs)
			results[index] = res
			if onResult != nil {
				mu.Lock()
				onResult(res)
				mu.Unlock()
			}
		}(i, modelID)
	}
	wg.Wait()
	return results
}

func (s *OpinionStage) ask(ctx context.Context, modelID string, index int, question string, historyMsgs []llm.Message) Stage1Result {
	role := RoleFor(index)
	msgs := make([]llm.Message, 0, len(historyMsgs)+2)
	msgs = append(msgs, llm.Message{Role: "system", Content: PromptFor(role)})
	msgs = append(msgs, historyMsgs...)
	msgs = append(msgs, llm.Message{Role: "user", Content: question})

	start := time.Now()
	text, err := s.Gateway.Invoke(ctx, modelID, msgs, llm.Options{
		MaxTokens:   s.MaxTokens,
		Temperature: opinionTemperature,
	})
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return Stage1Result{
			ModelID:    modelID,
			Role:       role,
			Response:   fmt.Sprintf("[Error: Model %s failed to respond - %v]", modelID, err),
			TokensUsed: 0,
			LatencyMS:  latency,
		}
	}
	return Stage1Result{
		ModelID:    modelID,
		Role:       role,
		Response:   text,
		TokensUsed: EstimateTokens(text),
		LatencyMS:  latency,
	}
}

// historyToMessages converts the trimmed history (oldest-first) into
// alternating user/assistant turns for the generation context.
func historyToMessages(history []HistoryMessage) []llm.Message {
	recent := trimHistory(history, generationHistoryLimit)
	msgs := make([]llm.Message, 0, len(recent))
	for _, m := range recent {
		role := "assistant"
		if m.Role == "user" {
			role = "user"
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Content})
	}
	return msgs
}
