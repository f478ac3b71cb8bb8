// Package council implements the four-stage deliberation pipeline: parallel
// first opinions, anonymized cross-review, chairman synthesis, and claim
// verification, plus the orchestrator that sequences them for one run.
package council

// VerificationMode selects how (and whether) stage 4 checks the final answer.
type VerificationMode string

const (
	VerificationOff         VerificationMode = "off"
	VerificationConsistency VerificationMode = "consistency"
	VerificationEvidence    VerificationMode = "evidence"
)

func (m VerificationMode) Valid() bool {
	switch m {
	case VerificationOff, VerificationConsistency, VerificationEvidence:
		return true
	}
	return false
}

// Settings are immutable per run. Callers supply them; missing fields are
// defaulted by the handler before a run starts.
type Settings struct {
	CouncilSize       int              `json:"council_size"`
	VerificationMode  VerificationMode `json:"verification_mode"`
	EnableCrossReview bool             `json:"enable_cross_review"`
	AnonymizeReviews  bool             `json:"anonymize_reviews"`
}

// HistoryMessage is one prior turn of the conversation. History is read-only:
// stages trim it, never mutate it.
type HistoryMessage struct {
	Role    string `json:"role"` // user | assistant
	Content string `json:"content"`
}

// Stage1Result is one council member's independent opinion.
type Stage1Result struct {
	ModelID    string `json:"model_id"`
	Role       Role   `json:"role"`
	Response   string `json:"response"`
	TokensUsed int    `json:"tokens_used"`
	LatencyMS  int64  `json:"latency_ms"`
}

// Ranking scores one anonymized candidate on three axes, 1-10 each.
type Ranking struct {
	Candidate string `json:"candidate"`
	Accuracy  int    `json:"accuracy"`
	Insight   int    `json:"insight"`
	Clarity   int    `json:"clarity"`
}

// Issue flags a problem a reviewer found in one candidate's answer.
type Issue struct {
	Candidate string `json:"candidate"`
	Type      string `json:"type"` // factual_risk | missing_edge_case | unclear | incomplete
	Detail    string `json:"detail"`
}

// BestBit is an extract a reviewer wants carried into the final answer.
type BestBit struct {
	Candidate string `json:"candidate"`
	Extract   string `json:"extract"`
}

// Stage2Result is one reviewer's structured critique of the whole candidate
// set. Candidates are referred to by their positional letter, never by model
// identity.
type Stage2Result struct {
	ReviewerModelID string    `json:"reviewer_model_id"`
	Rankings        []Ranking `json:"rankings"`
	Issues          []Issue   `json:"issues"`
	BestBits        []BestBit `json:"best_bits"`
}

// Position records one model's stance inside a disagreement.
type Position struct {
	Model  string `json:"model"`
	Stance string `json:"stance"`
}

// Disagreement captures a topic the council split on and how the chairman
// resolved it.
type Disagreement struct {
	Topic      string     `json:"topic"`
	Positions  []Position `json:"positions"`
	Resolution string     `json:"resolution"`
}

// Stage3Result is the chairman's synthesis. Exactly one per run.
type Stage3Result struct {
	FinalAnswer   string         `json:"final_answer"`
	Rationale     []string       `json:"rationale"`
	OpenQuestions []string       `json:"open_questions"`
	Disagreements []Disagreement `json:"disagreements"`
}

// Claim labels. The stored label preserves whichever token the verifier
// produced; only display aggregation collapses consistent into verified.
const (
	LabelVerified     = "verified"
	LabelConsistent   = "consistent"
	LabelUncertain    = "uncertain"
	LabelContradicted = "contradicted"
)

// Claim is one factual assertion extracted from the final answer.
type Claim struct {
	Text     string `json:"text"`
	Label    string `json:"label"`
	Evidence string `json:"evidence,omitempty"`
	Source   string `json:"source,omitempty"`
	Note     string `json:"note,omitempty"`
}

// Stage4Result is the verifier's labeled claim list. Exactly one per run when
// verification is enabled.
type Stage4Result struct {
	Mode   VerificationMode `json:"mode"`
	Claims []Claim          `json:"claims"`
}
