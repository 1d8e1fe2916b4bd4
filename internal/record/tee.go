package record

import (
	"context"
	"errors"

	"github.com/heymitch/ai-content-agent-beta-sub000/internal/logging"
)

// Tee writes every record to all configured stores. The first successful ref
// wins; a store being down degrades to the remaining stores rather than
// failing the write. Create errors only when every store failed.
type Tee struct {
	stores []Store
	log    *logging.Logger
}

// NewTee builds a fan-out store, skipping nil members.
func NewTee(log *logging.Logger, stores ...Store) *Tee {
	kept := make([]Store, 0, len(stores))
	for _, s := range stores {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Tee{stores: kept, log: log}
}

// Empty reports whether no stores are configured.
func (t *Tee) Empty() bool {
	return len(t.stores) == 0
}

// Create fans the record out to every store.
func (t *Tee) Create(ctx context.Context, rec ContentRecord) (Ref, error) {
	var first Ref
	var got bool
	var errs []error
	for _, s := range t.stores {
		ref, err := s.Create(ctx, rec)
		if err != nil {
			t.log.Warn("record store write failed", "error", err)
			errs = append(errs, err)
			continue
		}
		if !got {
			first = ref
			got = true
		}
	}
	if !got {
		if len(errs) == 0 {
			return Ref{}, errors.New("no record stores configured")
		}
		return Ref{}, errors.Join(errs...)
	}
	return first, nil
}
