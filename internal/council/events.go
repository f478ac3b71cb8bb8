package council

// EventType discriminates stream events explicitly rather than by payload
// shape, so consumers can switch exhaustively.
type EventType string

const (
	EventStage1Start        EventType = "stage1.start"
	EventStage1ModelResult  EventType = "stage1.model_result"
	EventStage1Complete     EventType = "stage1.complete"
	EventStage2Start        EventType = "stage2.start"
	EventStage2ReviewResult EventType = "stage2.review_result"
	EventStage2Complete     EventType = "stage2.complete"
	EventStage3Start        EventType = "stage3.start"
	EventStage3Chairman     EventType = "stage3.chairman_result"
	EventStage3Complete     EventType = "stage3.complete"
	EventStage4Start        EventType = "stage4.start"
	EventStage4Verification EventType = "stage4.verification_result"
	EventStage4Complete     EventType = "stage4.complete"
	EventDone               EventType = "done"
	EventError              EventType = "error"
)

// Event is one unit of the ordered run stream.
type Event struct {
	Type EventType `json:"event"`
	Data any       `json:"data"`
}

// Sink receives the event stream in emission order. Sink failures never stop
// a run: the caller may be gone, the run still persists.
type Sink interface {
	Emit(ev Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev Event) error

func (f SinkFunc) Emit(ev Event) error { return f(ev) }

// Payloads for events that are not raw stage results.

type StartPayload struct {
	RunID string `json:"run_id,omitempty"`
}

type Stage1CompletePayload struct {
	Results []Stage1Result `json:"results"`
}

type Stage2CompletePayload struct {
	Results []Stage2Result `json:"results"`
}

type Stage3CompletePayload struct {
	Result Stage3Result `json:"result"`
}

type Stage4CompletePayload struct {
	Result Stage4Result `json:"result"`
}

type DonePayload struct {
	RunID          string `json:"run_id"`
	ConversationID string `json:"conversation_id"`
	LatencyMS      int64  `json:"latency_ms"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
