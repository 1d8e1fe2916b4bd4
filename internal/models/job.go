package models

import (
	"time"
)

// JobStatus enumerates lifecycle states for a content job.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusRetrying   = "retrying"
	StatusCancelled  = "cancelled"
)

// TerminalStatus reports whether a status admits no further transitions.
func TerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Platform tags understood by the dispatcher.
const (
	PlatformLinkedIn = "linkedin"
	PlatformTwitter  = "twitter"
	PlatformEmail    = "email"
	PlatformVideo    = "video"
)

// Job represents one unit of content-generation work tracked through the queue.
type Job struct {
	ID          string     `json:"id"`
	Platform    string     `json:"platform"`
	Topic       string     `json:"topic"`
	Context     string     `json:"context"`
	Style       string     `json:"style"`
	PublishAt   *time.Time `json:"publish_at,omitempty"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	Result      string     `json:"result,omitempty"`
	Score       int        `json:"score,omitempty"`
	RecordURL   string     `json:"record_url,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// PostSpec is the plain-data request for one post inside a batch plan.
type PostSpec struct {
	Platform  string     `json:"platform"`
	Topic     string     `json:"topic"`
	Context   string     `json:"context"`
	Style     string     `json:"style"`
	PublishAt *time.Time `json:"publish_at,omitempty"`
}
