package models

// Score bounds for the rubric axes and their total.
const (
	AxisScoreMax  = 5
	TotalScoreMax = 25
)

// Assessment decisions returned by the scorer.
const (
	DecisionAccept = "accept"
	DecisionRevise = "revise"
	DecisionReject = "reject"
	DecisionError  = "error"
)

// Issue severities, highest first.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Issue categories the gate treats specially: fabricated or unverifiable
// claims are flagged but never sent to the fixer.
const (
	CategoryFabrication = "fabrication"
	CategoryUnverified  = "unverified_claim"
)

// Issue is one problem the scorer found in a piece of content.
type Issue struct {
	Severity  string `json:"severity"`
	Category  string `json:"category"`
	Original  string `json:"original,omitempty"`
	Suggested string `json:"suggested,omitempty"`
	Rationale string `json:"rationale,omitempty"`
}

// Fixable reports whether the gate may hand this issue to the fixer.
func (i Issue) Fixable() bool {
	return i.Category != CategoryFabrication && i.Category != CategoryUnverified
}

// Blocking reports whether this issue alone prevents an accept.
func (i Issue) Blocking() bool {
	return i.Severity == SeverityCritical || i.Severity == SeverityHigh
}

// AIDetection carries the optional external AI-detection result.
type AIDetection struct {
	Percent float64  `json:"percent"`
	Flagged []string `json:"flagged,omitempty"`
}

// Assessment is the transient value object produced by one scorer call.
// It is consumed by a single gate iteration and discarded.
type Assessment struct {
	Scores      map[string]int `json:"scores"`
	Total       int            `json:"total"`
	Decision    string         `json:"decision"`
	Issues      []Issue        `json:"issues,omitempty"`
	AIDetection *AIDetection   `json:"ai_detection,omitempty"`
}
