package council

import (
	"context"
	"fmt"
	"log"
	"strings"

	"edgejury/internal/llm"
	"edgejury/internal/util/jsonutil"
)

// VerifyStage extracts factual claims from the chairman's answer and labels
// each one. Consistency mode cross-checks against the stage-1 answers;
// evidence mode judges the answer alone (no retrieval is wired in yet, so
// evidence text is always model-asserted). Failures of any kind degrade to an
// empty claim list; verification never blocks the run.
type VerifyStage struct {
	Gateway   llm.Gateway
	Model     string
	MaxTokens int
}

const verifyTemperature = 0.2

func (s *VerifyStage) Run(ctx context.Context, finalAnswer string, stage1 []Stage1Result, labels *LabelMap, mode VerificationMode) Stage4Result {
	var prompt, body string
	switch mode {
	case VerificationConsistency:
		prompt = stage4ConsistencyPrompt
		body = consistencyContext(finalAnswer, stage1, labels)
	default:
		mode = VerificationEvidence
		prompt = stage4EvidencePrompt
		body = evidenceContext(finalAnswer)
	}

	empty := Stage4Result{Mode: mode, Claims: []Claim{}}

	text, err := s.Gateway.Invoke(ctx, s.Model, []llm.Message{
		{Role: "system", Content: prompt},
		{Role: "user", Content: body},
	}, llm.Options{MaxTokens: s.MaxTokens, Temperature: verifyTemperature})
	if err != nil {
		log.Printf("council: %s verification failed: %v", mode, err)
		return empty
	}

	var parsed struct {
		Claims []Claim `json:"claims"`
	}
	if err := jsonutil.ExtractInto(text, &parsed); err != nil {
		log.Printf("council: verification returned unparseable JSON: %v", err)
		return empty
	}
	return Stage4Result{Mode: mode, Claims: NormalizeClaims(parsed.Claims)}
}

func consistencyContext(finalAnswer string, stage1 []Stage1Result, labels *LabelMap) string {
	var b strings.Builder
	b.WriteString("# Chairman's Final Answer\n")
	b.WriteString(finalAnswer)
	b.WriteString("\n\n# Individual Model Responses\n")
	for i, r := range stage1 {
		fmt.Fprintf(&b, "## Model %s\n%s\n\n", labels.Letter(i), r.Response)
	}
	b.WriteString("Extract factual claims from the Chairman's answer and check for consistency with individual model responses.")
	return b.String()
}

func evidenceContext(finalAnswer string) string {
	return "# Answer to Verify\n" + finalAnswer +
		"\n\nExtract factual claims and assess their verifiability. Mark claims that would require external verification as \"uncertain\"."
}

// NormalizeClaims returns a copy of claims with every label normalized.
func NormalizeClaims(claims []Claim) []Claim {
	out := make([]Claim, len(claims))
	for i, c := range claims {
		c.Label = NormalizeLabel(c.Label)
		out[i] = c
	}
	return out
}

// NormalizeLabel lower-cases and trims a verifier label. verified and
// consistent are both legal and preserved as produced; contradicted passes
// through; anything else collapses to uncertain.
func NormalizeLabel(label string) string {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case LabelVerified:
		return LabelVerified
	case LabelConsistent:
		return LabelConsistent
	case LabelContradicted:
		return LabelContradicted
	default:
		return LabelUncertain
	}
}

// VerifiedCount is the display aggregation: verified and consistent count
// together, even though storage keeps the two labels distinct.
func VerifiedCount(claims []Claim) int {
	n := 0
	for _, c := range claims {
		if c.Label == LabelVerified || c.Label == LabelConsistent {
			n++
		}
	}
	return n
}
