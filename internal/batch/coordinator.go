package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heymitch/ai-content-agent-beta-sub000/internal/config"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/logging"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/models"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/notify"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/queue"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/telemetry"
)

var (
	ErrNoSpecs         = errors.New("batch plan needs at least one post spec")
	ErrPlanNotFound    = errors.New("plan not found")
	ErrIndexOutOfRange = errors.New("post index out of range")
)

// Archiver persists a finished batch summary somewhere durable. Failures are
// logged and swallowed; archiving never fails a batch.
type Archiver interface {
	Archive(ctx context.Context, summary models.BatchSummary) error
}

// Coordinator drives strictly sequential execution of a batch plan, threading
// each completed post's learnings into the next one's generation context.
// This is deliberately a different concurrency domain from the bounded queue:
// the learning chain requires that post k observes posts 0..k-1.
type Coordinator struct {
	cfg        config.Config
	registry   *Registry
	dispatcher queue.Dispatcher
	log        *logging.Logger
	observe    notify.Observer
	archiver   Archiver
}

// NewCoordinator wires the sequential batch engine.
func NewCoordinator(cfg config.Config, reg *Registry, d queue.Dispatcher, log *logging.Logger, obs notify.Observer, arch Archiver) *Coordinator {
	return &Coordinator{
		cfg:        cfg,
		registry:   reg,
		dispatcher: d,
		log:        log,
		observe:    obs,
		archiver:   arch,
	}
}

// CreatePlan validates the specs, classifies context richness, and registers
// the plan with a fresh accumulator.
func (c *Coordinator) CreatePlan(specs []models.PostSpec, description string) (models.BatchPlan, error) {
	if len(specs) == 0 {
		return models.BatchPlan{}, ErrNoSpecs
	}
	for i, s := range specs {
		if s.Topic == "" {
			return models.BatchPlan{}, fmt.Errorf("spec %d: %w", i, queue.ErrEmptyTopic)
		}
	}
	plan := models.BatchPlan{
		ID:          uuid.New().String(),
		Description: description,
		Specs:       specs,
		Richness:    c.classifyRichness(specs),
		CreatedAt:   time.Now().UTC(),
	}
	c.registry.Put(plan, NewAccumulator(c.cfg.DigestBudget))
	c.log.Info("batch plan created", "plan_id", plan.ID, "posts", len(specs), "richness", plan.Richness)
	return plan, nil
}

// classifyRichness buckets the average per-post context length. The
// thresholds are empirically chosen constants carried over as configuration.
func (c *Coordinator) classifyRichness(specs []models.PostSpec) string {
	total := 0
	for _, s := range specs {
		total += len(s.Context)
	}
	avg := total / len(specs)
	sparse, medium := c.cfg.SparseThreshold, c.cfg.MediumThreshold
	if sparse <= 0 {
		sparse = 100
	}
	if medium <= 0 {
		medium = 300
	}
	switch {
	case avg < sparse:
		return models.RichnessSparse
	case avg < medium:
		return models.RichnessMedium
	default:
		return models.RichnessRich
	}
}

// Stats reports the plan's current accumulator view.
func (c *Coordinator) Stats(planID string) (models.BatchStats, error) {
	entry, ok := c.registry.get(planID)
	if !ok {
		return models.BatchStats{}, ErrPlanNotFound
	}
	return entry.acc.Stats(), nil
}

// Cancel flags a running batch; RunAll stops before the next index. Posts
// already dispatched finish normally.
func (c *Coordinator) Cancel(planID string) error {
	entry, ok := c.registry.get(planID)
	if !ok {
		return ErrPlanNotFound
	}
	c.registry.mu.Lock()
	entry.cancelled = true
	c.registry.mu.Unlock()
	return nil
}

// RunOne executes the post at index, reading the accumulator before dispatch
// and recording into it after. Downstream failures come back as a structured
// outcome with Success=false, never as an error: the batch must survive
// individual post failures.
func (c *Coordinator) RunOne(ctx context.Context, planID string, index int) (models.PostOutcome, error) {
	entry, ok := c.registry.get(planID)
	if !ok {
		return models.PostOutcome{}, ErrPlanNotFound
	}
	if index < 0 || index >= len(entry.plan.Specs) {
		return models.PostOutcome{}, ErrIndexOutOfRange
	}
	spec := entry.plan.Specs[index]

	digest := entry.acc.LearningsDigest()
	target := entry.acc.TargetScore()
	enriched := enrichContext(spec.Context, digest, target, entry.plan.Richness)

	job := models.Job{
		ID:        uuid.New().String(),
		Platform:  spec.Platform,
		Topic:     spec.Topic,
		Context:   enriched,
		Style:     spec.Style,
		PublishAt: spec.PublishAt,
		Status:    models.StatusProcessing,
		CreatedAt: time.Now().UTC(),
	}

	outcome := c.dispatcher.Dispatch(ctx, job)
	switch outcome.Kind {
	case models.OutcomeSuccess:
		res := outcome.Result
		entry.acc.Record(models.PostSummary{
			Sequence:  index + 1,
			Score:     res.Score,
			Hook:      res.Hook,
			Platform:  spec.Platform,
			RecordURL: res.RecordURL,
		})
		return models.PostOutcome{
			Index:     index,
			Success:   true,
			Score:     res.Score,
			Hook:      res.Hook,
			RecordURL: res.RecordURL,
		}, nil
	case models.OutcomeClarification:
		return models.PostOutcome{Index: index, Success: false, Error: "clarification needed: " + outcome.Reason}, nil
	default:
		return models.PostOutcome{Index: index, Success: false, Error: outcome.Err}, nil
	}
}

// RunAll drives every index in order, emitting a checkpoint every
// CheckpointEvery completions and exactly one final summary.
func (c *Coordinator) RunAll(ctx context.Context, planID string) (models.BatchSummary, error) {
	entry, ok := c.registry.get(planID)
	if !ok {
		return models.BatchSummary{}, ErrPlanNotFound
	}
	every := c.cfg.CheckpointEvery
	if every <= 0 {
		every = 10
	}

	telemetry.BatchesStarted.Inc()
	start := time.Now()
	summary := models.BatchSummary{PlanID: planID}
	total := len(entry.plan.Specs)

	for i := 0; i < total; i++ {
		c.registry.mu.RLock()
		cancelled := entry.cancelled
		c.registry.mu.RUnlock()
		if cancelled || ctx.Err() != nil {
			summary.Cancelled = total - i
			break
		}

		outcome, err := c.RunOne(ctx, planID, i)
		if err != nil {
			// Registry errors mean the plan itself vanished mid-run.
			return summary, err
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
		if outcome.Success {
			summary.Completed++
		} else {
			summary.Failed++
			c.log.Warn("batch post failed", "plan_id", planID, "index", i, "error", outcome.Error)
		}

		done := i + 1
		if done%every == 0 && done < total {
			stats := entry.acc.Stats()
			c.observe.Emit(notify.Event{
				Status:    "checkpoint",
				PlanID:    planID,
				Completed: done,
				Total:     total,
				Message:   checkpointMessage(stats),
			})
		}
	}

	stats := entry.acc.Stats()
	summary.Elapsed = time.Since(start)
	summary.Average = stats.Average
	summary.Trend = stats.Trend

	c.registry.mu.Lock()
	entry.done = true
	c.registry.mu.Unlock()

	telemetry.BatchesFinished.Inc()
	c.observe.Emit(notify.Event{
		Status:    "summary",
		PlanID:    planID,
		Completed: summary.Completed,
		Total:     total,
		Message: fmt.Sprintf("completed=%d failed=%d cancelled=%d avg=%.1f trend=%s elapsed=%s",
			summary.Completed, summary.Failed, summary.Cancelled, summary.Average, summary.Trend, summary.Elapsed.Round(time.Second)),
	})

	if c.archiver != nil {
		if err := c.archiver.Archive(ctx, summary); err != nil {
			c.log.Warn("batch archive failed", "plan_id", planID, "error", err)
		}
	}
	return summary, nil
}

// enrichContext assembles the generation context handed downstream: the
// original context, then the learnings digest, the score target, and a hint
// keyed by the plan's richness classification.
func enrichContext(original, digest string, target int, richness string) string {
	var b strings.Builder
	b.WriteString(original)
	if digest != "" {
		b.WriteString("\n\nLearnings from earlier posts in this batch:\n")
		b.WriteString(digest)
	}
	fmt.Fprintf(&b, "\n\nAim to beat a quality score of %d/25.", target)
	switch richness {
	case models.RichnessSparse:
		b.WriteString("\nContext is thin; favor broadly relatable angles over specifics.")
	case models.RichnessRich:
		b.WriteString("\nContext is detailed; anchor claims in the specifics provided.")
	}
	return b.String()
}

func checkpointMessage(stats models.BatchStats) string {
	return fmt.Sprintf("avg=%.1f trend=%s recent=%v", stats.Average, stats.Trend, stats.Recent)
}
