package record

import (
	"context"
)

// ContentRecord is one finished piece of content bound for a persistent store.
type ContentRecord struct {
	Content  string `json:"content"`
	Platform string `json:"platform"`
	Hook     string `json:"hook"`
	Score    int    `json:"score"`
	Status   string `json:"status"`
	Notes    string `json:"notes,omitempty"`
}

// Ref points at a stored record.
type Ref struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// Store persists content records. Implementations must be safe for
// concurrent use; callers treat failures as non-fatal.
type Store interface {
	Create(ctx context.Context, rec ContentRecord) (Ref, error)
}
