package council

import (
	"fmt"
	"strings"
)

const (
	// generationHistoryLimit caps how many prior turns reach a stage-1 call.
	generationHistoryLimit = 10
	// summaryHistoryLimit caps the chairman's formatted history summary.
	summaryHistoryLimit = 6
	// summaryEntryMaxChars truncates each summarized turn.
	summaryEntryMaxChars = 200
)

// trimHistory returns the most recent k entries without mutating the input.
func trimHistory(history []HistoryMessage, k int) []HistoryMessage {
	if len(history) <= k {
		return history
	}
	return history[len(history)-k:]
}

// formatHistorySummary renders the last entries oldest-first, each capped at
// summaryEntryMaxChars with an ellipsis marker when truncated.
func formatHistorySummary(history []HistoryMessage) string {
	if len(history) == 0 {
		return "No prior conversation."
	}
	recent := trimHistory(history, summaryHistoryLimit)
	lines := make([]string, 0, len(recent))
	for _, msg := range recent {
		content := msg.Content
		if len(content) > summaryEntryMaxChars {
			content = content[:summaryEntryMaxChars] + "..."
		}
		lines = append(lines, fmt.Sprintf("[%s]: %s", strings.ToUpper(msg.Role), content))
	}
	return strings.Join(lines, "\n")
}
