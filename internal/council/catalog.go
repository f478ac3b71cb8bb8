package council

// Role is the persona a council member answers under.
type Role string

const (
	RoleDirectAnswerer       Role = "direct_answerer"
	RoleEdgeCaseFinder       Role = "edge_case_finder"
	RoleStepByStepExplainer  Role = "step_by_step_explainer"
	RolePragmaticImplementer Role = "pragmatic_implementer"
)

var roles = []Role{
	RoleDirectAnswerer,
	RoleEdgeCaseFinder,
	RoleStepByStepExplainer,
	RolePragmaticImplementer,
}

// councilCatalog is the fixed ordered list of available models. Membership is
// deterministic: a run of size N uses the first N entries. Prefixes select
// the gateway provider.
var councilCatalog = []string{
	"groq/llama-3.1-8b-instant",
	"groq/llama-3.3-70b-versatile",
	"gemini/gemini-2.0-flash",
	"anthropic/claude-3-5-haiku-20241022",
	"groq/gemma2-9b-it",
	"gemini/gemini-2.0-flash-lite",
	"anthropic/claude-3-5-sonnet-20241022",
	"groq/llama-3.2-3b-preview",
	"gemini/gemini-1.5-flash",
	"groq/mixtral-8x7b-32768",
}

// DefaultChairmanModel also serves as the default verifier model.
const DefaultChairmanModel = "groq/llama-3.1-8b-instant"

// CouncilModels returns the member model ids for a council of the given size,
// clamped to the catalog.
func CouncilModels(size int) []string {
	if size < 1 {
		size = 1
	}
	if size > len(councilCatalog) {
		size = len(councilCatalog)
	}
	out := make([]string, size)
	copy(out, councilCatalog[:size])
	return out
}

// RoleFor assigns a persona by member index. Personas repeat when the council
// outgrows the four-role catalog.
func RoleFor(index int) Role {
	return roles[index%len(roles)]
}

// EstimateTokens approximates token usage as ceil(len/4). Not a tokenizer,
// just the bookkeeping estimate carried in Stage1Result and the trace.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}
