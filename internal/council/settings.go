package council

import "fmt"

const (
	MinCouncilSize = 1
	MaxCouncilSize = 10

	// MaxQuestionChars bounds an incoming message before any run starts.
	MaxQuestionChars = 10000
)

// DefaultSettings fills a full settings struct around a default council size.
func DefaultSettings(councilSize int) Settings {
	return Settings{
		CouncilSize:       councilSize,
		VerificationMode:  VerificationConsistency,
		EnableCrossReview: true,
		AnonymizeReviews:  true,
	}
}

// ValidateSettings rejects out-of-range settings before a run record exists.
func ValidateSettings(s Settings) error {
	if s.CouncilSize < MinCouncilSize || s.CouncilSize > MaxCouncilSize {
		return fmt.Errorf("council_size must be between %d and %d", MinCouncilSize, MaxCouncilSize)
	}
	if !s.VerificationMode.Valid() {
		return fmt.Errorf("verification_mode must be one of: off, consistency, evidence")
	}
	return nil
}
