package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/heymitch/ai-content-agent-beta-sub000/internal/logging"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/models"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/quality"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/record"
)

// ErrUnknownPlatform is returned for a platform tag with no registered workflow.
var ErrUnknownPlatform = errors.New("unknown platform")

// ParseError means downstream output could not be turned into a typed result.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse generation result: " + e.Reason
}

// Generation is a workflow's raw product before gating.
type Generation struct {
	Content string
	// NeedsClarification, when non-empty, means the downstream agent wants
	// more input before it can produce content.
	NeedsClarification string
}

// Workflow produces content for one platform.
type Workflow interface {
	Generate(ctx context.Context, job models.Job) (Generation, error)
}

const hookLimit = 80

// Dispatcher routes jobs to platform workflows, gates the output, persists a
// record, and returns a strictly parsed, tagged outcome. Loose model text
// never leaks past this boundary.
type Dispatcher struct {
	workflows map[string]Workflow
	gate      *quality.Gate
	records   record.Store
	log       *logging.Logger
}

// New builds a dispatcher. The record store may be nil when persistence is
// not configured.
func New(gate *quality.Gate, records record.Store, log *logging.Logger) *Dispatcher {
	return &Dispatcher{
		workflows: make(map[string]Workflow),
		gate:      gate,
		records:   records,
		log:       log,
	}
}

// Register binds a workflow to a platform tag.
func (d *Dispatcher) Register(platform string, wf Workflow) {
	if platform == "" || wf == nil {
		return
	}
	d.workflows[platform] = wf
}

// Platforms lists the registered platform tags.
func (d *Dispatcher) Platforms() []string {
	out := make([]string, 0, len(d.workflows))
	for p := range d.workflows {
		out = append(out, p)
	}
	return out
}

// Dispatch runs the full per-job pipeline: workflow, quality gate, record
// store, strict parse. Record-store failures degrade to "succeeded but
// unsaved" and never fail the job.
func (d *Dispatcher) Dispatch(ctx context.Context, job models.Job) models.Outcome {
	wf, ok := d.workflows[job.Platform]
	if !ok {
		return models.FailureOutcome(fmt.Errorf("%w: %q", ErrUnknownPlatform, job.Platform))
	}

	gen, err := wf.Generate(ctx, job)
	if err != nil {
		return models.FailureOutcome(fmt.Errorf("generate %s content: %w", job.Platform, err))
	}
	if gen.NeedsClarification != "" {
		return models.ClarificationOutcome(gen.NeedsClarification)
	}

	gated, err := d.gate.Review(ctx, gen.Content)
	if err != nil {
		return models.FailureOutcome(err)
	}

	res, err := parseResult(gated)
	if err != nil {
		return models.FailureOutcome(err)
	}

	if d.records != nil {
		ref, err := d.records.Create(ctx, record.ContentRecord{
			Content:  gated.Content,
			Platform: job.Platform,
			Hook:     res.Hook,
			Score:    gated.Score,
			Status:   gated.Decision,
			Notes:    annotate(gated),
		})
		if err != nil {
			d.log.Warn("record store failed, continuing unsaved", "job_id", job.ID, "error", err)
		} else {
			res.RecordURL = ref.URL
		}
	}
	return models.SuccessOutcome(res)
}

// parseResult converts a gate result into the typed generation result.
func parseResult(gated quality.Result) (models.GenerationResult, error) {
	content := strings.TrimSpace(gated.Content)
	if content == "" {
		return models.GenerationResult{}, &ParseError{Reason: "empty content"}
	}
	return models.GenerationResult{
		Content: content,
		Score:   gated.Score,
		Hook:    extractHook(content),
	}, nil
}

// extractHook takes the first non-empty line, bounded for display.
func extractHook(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > hookLimit {
			return line[:hookLimit]
		}
		return line
	}
	return ""
}

// annotate renders unresolved and flagged issues for the record notes field.
func annotate(gated quality.Result) string {
	if len(gated.Remaining) == 0 && len(gated.Flagged) == 0 {
		return ""
	}
	var b strings.Builder
	for _, issue := range gated.Flagged {
		fmt.Fprintf(&b, "[flagged %s/%s] %s\n", issue.Severity, issue.Category, issue.Rationale)
	}
	for _, issue := range gated.Remaining {
		fmt.Fprintf(&b, "[unresolved %s/%s] %s\n", issue.Severity, issue.Category, issue.Rationale)
	}
	return strings.TrimRight(b.String(), "\n")
}
