package quality

import (
	"context"
	"testing"

	"github.com/heymitch/ai-content-agent-beta-sub000/internal/logging"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/models"
)

type stubScorer struct {
	calls       int
	assessments []models.Assessment
}

func (s *stubScorer) Score(_ context.Context, _ string) (models.Assessment, error) {
	idx := s.calls
	if idx >= len(s.assessments) {
		idx = len(s.assessments) - 1
	}
	s.calls++
	return s.assessments[idx], nil
}

type stubFixer struct {
	calls int
}

func (f *stubFixer) Fix(_ context.Context, content string, _ []models.Issue, _ int) (string, error) {
	f.calls++
	return content + " (revised)", nil
}

func accept(score int) models.Assessment {
	return models.Assessment{Total: score, Decision: models.DecisionAccept}
}

func reject(issues ...models.Issue) models.Assessment {
	return models.Assessment{Total: 8, Decision: models.DecisionReject, Issues: issues}
}

func criticalIssue() models.Issue {
	return models.Issue{Severity: models.SeverityCritical, Category: "structure", Rationale: "no hook"}
}

func TestAcceptFirstPassSkipsFixer(t *testing.T) {
	scorer := &stubScorer{assessments: []models.Assessment{accept(22)}}
	fixer := &stubFixer{}
	gate := NewGate(scorer, fixer, 2, logging.NewNop())

	res, err := gate.Review(context.Background(), "fine content")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if res.Content != "fine content" || res.Score != 22 {
		t.Fatalf("content must pass through untouched: %+v", res)
	}
	if fixer.calls != 0 {
		t.Fatalf("fixer must not run on first-pass accept, got %d calls", fixer.calls)
	}
	if scorer.calls != 1 {
		t.Fatalf("expected single scorer call, got %d", scorer.calls)
	}
}

func TestBoundedIteration(t *testing.T) {
	// Always rejecting: the loop must stop after 3 scores and 2 fixes.
	scorer := &stubScorer{assessments: []models.Assessment{
		reject(criticalIssue()),
		reject(criticalIssue()),
		reject(criticalIssue()),
	}}
	fixer := &stubFixer{}
	gate := NewGate(scorer, fixer, 2, logging.NewNop())

	res, err := gate.Review(context.Background(), "bad content")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if scorer.calls != 3 {
		t.Fatalf("scorer calls = %d, want 3", scorer.calls)
	}
	if fixer.calls != 2 {
		t.Fatalf("fixer calls = %d, want 2", fixer.calls)
	}
	if res.Revisions != 2 {
		t.Fatalf("revisions = %d, want 2", res.Revisions)
	}
	if len(res.Remaining) == 0 {
		t.Fatalf("remaining issues must be annotated on the final attempt")
	}
	if res.Content != "bad content (revised) (revised)" {
		t.Fatalf("final content should be the last revision: %q", res.Content)
	}
}

func TestFabricationFlaggedNeverFixed(t *testing.T) {
	fabrication := models.Issue{
		Severity:  models.SeverityCritical,
		Category:  models.CategoryFabrication,
		Rationale: "cites a study that does not exist",
	}
	scorer := &stubScorer{assessments: []models.Assessment{
		{Total: 14, Decision: models.DecisionRevise, Issues: []models.Issue{fabrication}},
	}}
	fixer := &stubFixer{}
	gate := NewGate(scorer, fixer, 2, logging.NewNop())

	res, err := gate.Review(context.Background(), "dubious content")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if fixer.calls != 0 {
		t.Fatalf("fabrication must not be sent to the fixer")
	}
	if len(res.Flagged) != 1 || res.Flagged[0].Category != models.CategoryFabrication {
		t.Fatalf("fabrication should be flagged in the result: %+v", res.Flagged)
	}
	if res.Content != "dubious content" {
		t.Fatalf("content must be returned unmodified")
	}
}

func TestAIDetectionBlocksAccept(t *testing.T) {
	flagged := models.Assessment{
		Total:    21,
		Decision: models.DecisionAccept,
		Issues: []models.Issue{
			{Severity: models.SeverityMedium, Category: "voice", Rationale: "reads machine-written"},
		},
		AIDetection: &models.AIDetection{Percent: 80, Flagged: []string{"this sentence"}},
	}
	scorer := &stubScorer{assessments: []models.Assessment{flagged, accept(23)}}
	fixer := &stubFixer{}
	gate := NewGate(scorer, fixer, 2, logging.NewNop())

	res, err := gate.Review(context.Background(), "robotic content")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if scorer.calls != 2 {
		t.Fatalf("expected rescore after detection deduction, got %d calls", scorer.calls)
	}
	if res.Score != 23 {
		t.Fatalf("final score should come from the accepting pass, got %d", res.Score)
	}
}

func TestReviseWithFixableIssues(t *testing.T) {
	scorer := &stubScorer{assessments: []models.Assessment{
		reject(models.Issue{Severity: models.SeverityHigh, Category: "cta", Rationale: "no call to action"}),
		accept(20),
	}}
	fixer := &stubFixer{}
	gate := NewGate(scorer, fixer, 2, logging.NewNop())

	res, err := gate.Review(context.Background(), "draft")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if fixer.calls != 1 {
		t.Fatalf("fixer calls = %d, want 1", fixer.calls)
	}
	if res.Content != "draft (revised)" || res.Revisions != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Remaining) != 0 {
		t.Fatalf("accepted content should carry no remaining issues")
	}
}
