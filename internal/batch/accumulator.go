package batch

import (
	"fmt"
	"strings"
	"sync"

	"github.com/heymitch/ai-content-agent-beta-sub000/internal/models"
)

const (
	defaultDigestBudget = 1000
	recentWindow        = 10
	trendThreshold      = 1.0
)

// Accumulator keeps the growing record of per-post outcomes for one batch and
// derives the learnings digest and quality target injected into the next job.
// One writer mutates it per batch; the mutex covers read-side API callers.
type Accumulator struct {
	mu           sync.Mutex
	summaries    []models.PostSummary
	digestBudget int
}

// NewAccumulator builds an empty accumulator with the given digest character
// budget (<=0 selects the default).
func NewAccumulator(digestBudget int) *Accumulator {
	if digestBudget <= 0 {
		digestBudget = defaultDigestBudget
	}
	return &Accumulator{digestBudget: digestBudget}
}

// Record appends a completed-post summary in completion order.
func (a *Accumulator) Record(s models.PostSummary) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.summaries = append(a.summaries, s)
}

// TargetScore returns the quality bar for the next post: running average
// plus one, clamped to the rubric range.
func (a *Accumulator) TargetScore() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.summaries) == 0 {
		return models.TotalScoreMax * 3 / 5
	}
	target := int(a.averageLocked()) + 1
	if target > models.TotalScoreMax {
		target = models.TotalScoreMax
	}
	return target
}

// LearningsDigest compacts all prior summaries into a bounded blob suitable
// for prompt injection. Higher-scoring and more recent posts are kept first;
// the character budget is the load-bearing part.
func (a *Accumulator) LearningsDigest() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.summaries) == 0 {
		return ""
	}

	var b strings.Builder
	stats := a.statsLocked()
	fmt.Fprintf(&b, "Prior posts: %d, avg score %.1f/25, trend %s.\n", stats.Count, stats.Average, stats.Trend)

	// Walk newest-first so the freshest learnings survive the budget cut.
	for i := len(a.summaries) - 1; i >= 0; i-- {
		s := a.summaries[i]
		line := fmt.Sprintf("#%d %s scored %d: %q\n", s.Sequence, s.Platform, s.Score, s.Hook)
		if b.Len()+len(line) > a.digestBudget {
			break
		}
		b.WriteString(line)
	}
	out := b.String()
	if len(out) > a.digestBudget {
		out = out[:a.digestBudget]
	}
	return out
}

// Stats returns count, average, min, max, the last ten scores, and the trend
// classification.
func (a *Accumulator) Stats() models.BatchStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.statsLocked()
}

func (a *Accumulator) statsLocked() models.BatchStats {
	n := len(a.summaries)
	stats := models.BatchStats{Count: n, Trend: models.TrendInsufficient}
	if n == 0 {
		return stats
	}
	scores := make([]int, n)
	min, max, sum := a.summaries[0].Score, a.summaries[0].Score, 0
	for i, s := range a.summaries {
		scores[i] = s.Score
		sum += s.Score
		if s.Score < min {
			min = s.Score
		}
		if s.Score > max {
			max = s.Score
		}
	}
	stats.Average = float64(sum) / float64(n)
	stats.Min = min
	stats.Max = max
	if n > recentWindow {
		stats.Recent = scores[n-recentWindow:]
	} else {
		stats.Recent = scores
	}
	stats.Trend = classifyTrend(scores)
	return stats
}

func (a *Accumulator) averageLocked() float64 {
	sum := 0
	for _, s := range a.summaries {
		sum += s.Score
	}
	return float64(sum) / float64(len(a.summaries))
}

// classifyTrend splits the history into halves (first half takes the
// remainder when odd) and compares their means against a one-point threshold.
func classifyTrend(scores []int) string {
	if len(scores) < 2 {
		return models.TrendInsufficient
	}
	split := len(scores) - len(scores)/2
	first := mean(scores[:split])
	second := mean(scores[split:])
	switch {
	case second-first > trendThreshold:
		return models.TrendImproving
	case first-second > trendThreshold:
		return models.TrendDeclining
	default:
		return models.TrendStable
	}
}

func mean(scores []int) float64 {
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return float64(sum) / float64(len(scores))
}
