package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/heymitch/ai-content-agent-beta-sub000/internal/config"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/logging"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/models"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/notify"
)

// scriptedDispatcher returns canned outcomes and captures the contexts it saw.
type scriptedDispatcher struct {
	mu       sync.Mutex
	contexts []string
	failAt   map[int]bool
	calls    int
}

func (d *scriptedDispatcher) Dispatch(_ context.Context, job models.Job) models.Outcome {
	d.mu.Lock()
	d.calls++
	call := d.calls
	d.contexts = append(d.contexts, job.Context)
	d.mu.Unlock()

	if d.failAt != nil && d.failAt[call-1] {
		return models.FailureOutcome(errors.New("generation blew up"))
	}
	return models.SuccessOutcome(models.GenerationResult{
		Content:   "content " + job.Topic,
		Score:     10 + call,
		Hook:      fmt.Sprintf("hook-%d", call),
		RecordURL: fmt.Sprintf("https://records/%d", call),
	})
}

func testCoordinator(t *testing.T, d *scriptedDispatcher, obs notify.Observer) *Coordinator {
	t.Helper()
	cfg := config.Config{
		CheckpointEvery: 10,
		DigestBudget:    1000,
		SparseThreshold: 100,
		MediumThreshold: 300,
	}
	return NewCoordinator(cfg, NewRegistry(time.Hour), d, logging.NewNop(), obs, nil)
}

func specs(n int) []models.PostSpec {
	out := make([]models.PostSpec, n)
	for i := range out {
		out[i] = models.PostSpec{
			Platform: models.PlatformLinkedIn,
			Topic:    fmt.Sprintf("topic %d", i),
			Context:  "some context",
		}
	}
	return out
}

func TestCreatePlanValidation(t *testing.T) {
	c := testCoordinator(t, &scriptedDispatcher{}, nil)

	if _, err := c.CreatePlan(nil, "empty"); !errors.Is(err, ErrNoSpecs) {
		t.Fatalf("expected ErrNoSpecs, got %v", err)
	}
	if _, err := c.CreatePlan([]models.PostSpec{{Platform: models.PlatformEmail}}, "no topic"); err == nil {
		t.Fatalf("expected error for empty topic")
	}
}

func TestRichnessClassification(t *testing.T) {
	c := testCoordinator(t, &scriptedDispatcher{}, nil)
	cases := []struct {
		contextLen int
		want       string
	}{
		{50, models.RichnessSparse},
		{150, models.RichnessMedium},
		{400, models.RichnessRich},
	}
	for _, tc := range cases {
		plan, err := c.CreatePlan([]models.PostSpec{{
			Platform: models.PlatformTwitter,
			Topic:    "t",
			Context:  strings.Repeat("x", tc.contextLen),
		}}, "")
		if err != nil {
			t.Fatalf("create plan: %v", err)
		}
		if plan.Richness != tc.want {
			t.Fatalf("context len %d: richness %q, want %q", tc.contextLen, plan.Richness, tc.want)
		}
	}
}

func TestRunOneErrors(t *testing.T) {
	c := testCoordinator(t, &scriptedDispatcher{}, nil)
	ctx := context.Background()

	if _, err := c.RunOne(ctx, "no-such-plan", 0); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}

	plan, _ := c.CreatePlan(specs(2), "")
	if _, err := c.RunOne(ctx, plan.ID, 5); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	if _, err := c.RunOne(ctx, plan.ID, -1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange for negative index, got %v", err)
	}
}

func TestBatchSurvivesFailures(t *testing.T) {
	d := &scriptedDispatcher{failAt: map[int]bool{2: true}}
	c := testCoordinator(t, d, nil)

	plan, _ := c.CreatePlan(specs(5), "one bad apple")
	summary, err := c.RunAll(context.Background(), plan.ID)
	if err != nil {
		t.Fatalf("run all: %v", err)
	}

	if summary.Completed != 4 || summary.Failed != 1 {
		t.Fatalf("completed=%d failed=%d, want 4/1", summary.Completed, summary.Failed)
	}
	if summary.Outcomes[2].Success || summary.Outcomes[2].Error == "" {
		t.Fatalf("failed outcome should carry the error: %+v", summary.Outcomes[2])
	}
	for _, i := range []int{3, 4} {
		if !summary.Outcomes[i].Success || summary.Outcomes[i].Hook == "" {
			t.Fatalf("job %d should have run normally after the failure: %+v", i, summary.Outcomes[i])
		}
	}
}

func TestLearningOrderNoLookahead(t *testing.T) {
	d := &scriptedDispatcher{}
	c := testCoordinator(t, d, nil)

	plan, _ := c.CreatePlan(specs(4), "")
	if _, err := c.RunAll(context.Background(), plan.ID); err != nil {
		t.Fatalf("run all: %v", err)
	}

	// The context handed to post k may reference hooks 1..k only, never later.
	for k, ctx := range d.contexts {
		for call := 1; call <= 4; call++ {
			hook := fmt.Sprintf("hook-%d", call)
			if call <= k && !strings.Contains(ctx, hook) {
				t.Fatalf("post %d context missing prior %s", k, hook)
			}
			if call > k && strings.Contains(ctx, hook) {
				t.Fatalf("post %d context leaked future %s", k, hook)
			}
		}
	}

	// First post gets no digest at all.
	if strings.Contains(d.contexts[0], "Learnings from earlier posts") {
		t.Fatalf("first post should not receive a digest")
	}
}

func TestCheckpointAndSummaryEvents(t *testing.T) {
	var mu sync.Mutex
	var events []notify.Event
	obs := func(ev notify.Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}

	d := &scriptedDispatcher{}
	c := testCoordinator(t, d, notify.Observer(obs))

	plan, _ := c.CreatePlan(specs(12), "")
	if _, err := c.RunAll(context.Background(), plan.ID); err != nil {
		t.Fatalf("run all: %v", err)
	}

	var checkpoints, summaries int
	for _, ev := range events {
		switch ev.Status {
		case "checkpoint":
			checkpoints++
			if ev.Completed != 10 {
				t.Fatalf("checkpoint at %d completions, want 10", ev.Completed)
			}
			if !strings.Contains(ev.Message, "avg=") || !strings.Contains(ev.Message, "trend=") {
				t.Fatalf("checkpoint missing running stats: %q", ev.Message)
			}
		case "summary":
			summaries++
		}
	}
	if checkpoints != 1 {
		t.Fatalf("expected 1 checkpoint for 12 posts, got %d", checkpoints)
	}
	if summaries != 1 {
		t.Fatalf("final summary must fire exactly once, got %d", summaries)
	}
}

func TestCancelStopsBeforeNextIndex(t *testing.T) {
	d := &scriptedDispatcher{}
	c := testCoordinator(t, d, nil)

	plan, _ := c.CreatePlan(specs(10), "")

	// Run three posts by hand, then cancel the rest.
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := c.RunOne(ctx, plan.ID, i); err != nil {
			t.Fatalf("run one: %v", err)
		}
	}
	if err := c.Cancel(plan.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	summary, err := c.RunAll(ctx, plan.ID)
	if err != nil {
		t.Fatalf("run all: %v", err)
	}
	if summary.Cancelled != 10 {
		t.Fatalf("cancelled before any RunAll index, want 10 remaining, got %d", summary.Cancelled)
	}

	stats, _ := c.Stats(plan.ID)
	if stats.Count != 3 {
		t.Fatalf("the three hand-run posts should be recorded, got %d", stats.Count)
	}
}

func TestRegistrySweepEvictsFinishedPlans(t *testing.T) {
	reg := NewRegistry(time.Minute)
	cfg := config.Config{CheckpointEvery: 10, DigestBudget: 1000, SparseThreshold: 100, MediumThreshold: 300}
	c := NewCoordinator(cfg, reg, &scriptedDispatcher{}, logging.NewNop(), nil, nil)

	plan, _ := c.CreatePlan(specs(1), "")
	if _, err := c.RunAll(context.Background(), plan.ID); err != nil {
		t.Fatalf("run all: %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("plan should remain until swept")
	}
	if n := reg.Sweep(time.Now().Add(2 * time.Minute)); n != 1 {
		t.Fatalf("sweep evicted %d, want 1", n)
	}
	if reg.Len() != 0 {
		t.Fatalf("registry should be empty after sweep")
	}
}
