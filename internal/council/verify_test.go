package council

import (
	"context"
	"errors"
	"strings"
	"testing"

	"edgejury/internal/llm"
	"edgejury/internal/tester"
)

const verifierModel = "test/verifier"

func TestVerifyConsistencyMode(t *testing.T) {
	gw := llm.NewFakeGateway()
	gw.Script(verifierModel, `{"claims":[{"text":"TCP uses three segments","label":"consistent","note":"all models agree"},{"text":"SYN stands for synchronize","label":"Consistent"},{"text":"handshake takes 4 RTTs","label":"contradicted"}]}`)

	stage1 := stage1Fixture(3)
	stage := &VerifyStage{Gateway: gw, Model: verifierModel, MaxTokens: 400}
	res := stage.Run(context.Background(), "final answer", stage1, NewLabelMap(3), VerificationConsistency)

	tester.Eq(t, res.Mode, VerificationConsistency)
	tester.Eq(t, len(res.Claims), 3)
	// Stored labels preserve the verifier's token; no collapse into verified.
	tester.Eq(t, res.Claims[0].Label, LabelConsistent)
	tester.Eq(t, res.Claims[1].Label, LabelConsistent, "case-normalized only")
	tester.Eq(t, res.Claims[2].Label, LabelContradicted)
	// Display aggregation counts consistent as verified.
	tester.Eq(t, VerifiedCount(res.Claims), 2)

	body := gw.Calls[0].Messages[1].Content
	tester.True(t, strings.Contains(body, "# Chairman's Final Answer"), "answer supplied")
	tester.True(t, strings.Contains(body, "## Model A"), "stage-1 responses labeled by letter")
	tester.True(t, strings.Contains(body, "## Model C"), "all members present")
}

func TestVerifyEvidenceMode(t *testing.T) {
	gw := llm.NewFakeGateway()
	gw.Script(verifierModel, `{"claims":[{"text":"released in 1981","label":"verified","evidence":"RFC 793 is dated September 1981","source":"RFC 793"},{"text":"invented by one person","label":"no idea"}]}`)

	stage := &VerifyStage{Gateway: gw, Model: verifierModel, MaxTokens: 400}
	res := stage.Run(context.Background(), "final answer", stage1Fixture(2), NewLabelMap(2), VerificationEvidence)

	tester.Eq(t, res.Mode, VerificationEvidence)
	tester.Eq(t, res.Claims[0].Label, LabelVerified)
	tester.Eq(t, res.Claims[0].Evidence, "RFC 793 is dated September 1981")
	tester.Eq(t, res.Claims[1].Label, LabelUncertain, "unrecognized labels collapse")

	body := gw.Calls[0].Messages[1].Content
	tester.False(t, strings.Contains(body, "## Model"), "evidence mode omits member responses")
}

func TestVerifyDegradesToEmptyClaims(t *testing.T) {
	gw := llm.NewFakeGateway()
	gw.FailWith(verifierModel, errors.New("timeout"))
	stage := &VerifyStage{Gateway: gw, Model: verifierModel, MaxTokens: 400}

	res := stage.Run(context.Background(), "answer", stage1Fixture(1), NewLabelMap(1), VerificationConsistency)
	tester.Eq(t, res.Mode, VerificationConsistency)
	tester.Eq(t, len(res.Claims), 0)

	gw2 := llm.NewFakeGateway()
	gw2.Script(verifierModel, "not json")
	stage2 := &VerifyStage{Gateway: gw2, Model: verifierModel, MaxTokens: 400}
	res2 := stage2.Run(context.Background(), "answer", stage1Fixture(1), NewLabelMap(1), VerificationEvidence)
	tester.Eq(t, res2.Mode, VerificationEvidence)
	tester.Eq(t, len(res2.Claims), 0)
}

func TestNormalizeLabel(t *testing.T) {
	tester.Eq(t, NormalizeLabel("verified"), LabelVerified)
	tester.Eq(t, NormalizeLabel("  Verified "), LabelVerified)
	tester.Eq(t, NormalizeLabel("consistent"), LabelConsistent, "consistent preserved in storage")
	tester.Eq(t, NormalizeLabel("CONSISTENT"), LabelConsistent)
	tester.Eq(t, NormalizeLabel("contradicted"), LabelContradicted)
	tester.Eq(t, NormalizeLabel("plausible"), LabelUncertain)
	tester.Eq(t, NormalizeLabel(""), LabelUncertain)
}

func TestVerifiedCountCollapsesForDisplay(t *testing.T) {
	claims := []Claim{
		{Label: LabelVerified},
		{Label: LabelConsistent},
		{Label: LabelUncertain},
		{Label: LabelContradicted},
	}
	tester.Eq(t, VerifiedCount(claims), 2)
}
