package models

// Outcome kinds for a dispatched generation. A clarification request from the
// downstream agent is ordinary data here, not an error to sniff for.
const (
	OutcomeSuccess       = "success"
	OutcomeClarification = "clarification"
	OutcomeFailure       = "failure"
)

// GenerationResult is the typed payload parsed at the dispatcher boundary.
// Loosely structured model output never crosses into the Job model.
type GenerationResult struct {
	Content   string `json:"content"`
	Score     int    `json:"score"`
	Hook      string `json:"hook"`
	RecordURL string `json:"record_url,omitempty"`
}

// Outcome is the tagged result of one dispatch.
type Outcome struct {
	Kind   string            `json:"kind"`
	Result *GenerationResult `json:"result,omitempty"`
	Reason string            `json:"reason,omitempty"`
	Err    string            `json:"error,omitempty"`
}

// SuccessOutcome wraps a parsed generation result.
func SuccessOutcome(res GenerationResult) Outcome {
	return Outcome{Kind: OutcomeSuccess, Result: &res}
}

// ClarificationOutcome signals the downstream agent needs more input.
func ClarificationOutcome(reason string) Outcome {
	return Outcome{Kind: OutcomeClarification, Reason: reason}
}

// FailureOutcome wraps a downstream error message.
func FailureOutcome(err error) Outcome {
	return Outcome{Kind: OutcomeFailure, Err: err.Error()}
}
