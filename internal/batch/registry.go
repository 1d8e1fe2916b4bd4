package batch

import (
	"sync"
	"time"

	"github.com/heymitch/ai-content-agent-beta-sub000/internal/models"
)

// planEntry pairs a plan with its accumulator and run state.
type planEntry struct {
	plan      models.BatchPlan
	acc       *Accumulator
	cancelled bool
	done      bool
	touched   time.Time
}

// Registry is the explicit plan store. Plans are registered at creation and
// removed after their run completes, or swept once they outlive the TTL, so
// the process does not accumulate finished plans forever.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*planEntry
	ttl     time.Duration
}

// NewRegistry builds a registry; ttl <= 0 disables sweeping.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		entries: make(map[string]*planEntry),
		ttl:     ttl,
	}
}

// Put registers a plan with a fresh entry.
func (r *Registry) Put(plan models.BatchPlan, acc *Accumulator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[plan.ID] = &planEntry{plan: plan, acc: acc, touched: time.Now()}
}

// get returns the entry for a plan ID, refreshing its touch time.
func (r *Registry) get(id string) (*planEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if ok {
		e.touched = time.Now()
	}
	return e, ok
}

// Plan returns a copy of the stored plan.
func (r *Registry) Plan(id string) (models.BatchPlan, bool) {
	e, ok := r.get(id)
	if !ok {
		return models.BatchPlan{}, false
	}
	return e.plan, true
}

// Remove evicts a plan and its accumulator.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Sweep evicts finished plans that have not been touched within the TTL.
// Returns how many were evicted.
func (r *Registry) Sweep(now time.Time) int {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, e := range r.entries {
		if e.done && now.Sub(e.touched) > r.ttl {
			delete(r.entries, id)
			evicted++
		}
	}
	return evicted
}

// Len reports how many plans are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
