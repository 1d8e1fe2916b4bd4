package models

import (
	"time"
)

// Context richness classifications for a batch plan, derived from the
// average context-text length across its post specs.
const (
	RichnessSparse = "sparse"
	RichnessMedium = "medium"
	RichnessRich   = "rich"
)

// BatchPlan is an ordered collection of post specs sharing one accumulator.
type BatchPlan struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Specs       []PostSpec `json:"specs"`
	Richness    string     `json:"richness"`
	CreatedAt   time.Time  `json:"created_at"`
}

// PostSummary records the outcome of one completed post inside a batch.
type PostSummary struct {
	Sequence  int    `json:"sequence"`
	Score     int    `json:"score"`
	Hook      string `json:"hook"`
	Platform  string `json:"platform"`
	RecordURL string `json:"record_url,omitempty"`
}

// Trend classifications for a batch score history.
const (
	TrendImproving    = "improving"
	TrendDeclining    = "declining"
	TrendStable       = "stable"
	TrendInsufficient = "insufficient data"
)

// BatchStats is a point-in-time view of a batch's score history.
type BatchStats struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Min     int     `json:"min"`
	Max     int     `json:"max"`
	Recent  []int   `json:"recent"`
	Trend   string  `json:"trend"`
}

// PostOutcome is the structured result of running one post in a batch.
// Downstream failures surface here as Success=false rather than as errors,
// so a batch-driving loop stays uniform.
type PostOutcome struct {
	Index     int    `json:"index"`
	Success   bool   `json:"success"`
	Score     int    `json:"score,omitempty"`
	Hook      string `json:"hook,omitempty"`
	RecordURL string `json:"record_url,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BatchSummary is emitted once when a full batch run finishes.
type BatchSummary struct {
	PlanID    string        `json:"plan_id"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Cancelled int           `json:"cancelled"`
	Elapsed   time.Duration `json:"elapsed"`
	Average   float64       `json:"average"`
	Trend     string        `json:"trend"`
	Outcomes  []PostOutcome `json:"outcomes"`
}
