package quality

import (
	"context"
	"fmt"

	"github.com/heymitch/ai-content-agent-beta-sub000/internal/logging"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/models"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/telemetry"
)

// Scorer grades a piece of content against the rubric.
type Scorer interface {
	Score(ctx context.Context, content string) (models.Assessment, error)
}

// Fixer revises content given the issues to address and its current score.
type Fixer interface {
	Fix(ctx context.Context, content string, issues []models.Issue, score int) (string, error)
}

// Result is what survives the gate: the final content, its last score, and
// any issues left unresolved when the loop hit its bound.
type Result struct {
	Content   string
	Score     int
	Decision  string
	Revisions int
	Remaining []models.Issue
	Flagged   []models.Issue
}

// Gate runs the bounded score -> fix -> rescore loop. It trades perfection
// for bounded latency: after maxRevisions fixer rounds the best attempt is
// returned with remaining issues annotated, never an endless loop.
type Gate struct {
	scorer       Scorer
	fixer        Fixer
	maxRevisions int
	log          *logging.Logger
}

// NewGate builds a gate; maxRevisions <= 0 selects the default of 2.
func NewGate(scorer Scorer, fixer Fixer, maxRevisions int, log *logging.Logger) *Gate {
	if maxRevisions <= 0 {
		maxRevisions = 2
	}
	return &Gate{scorer: scorer, fixer: fixer, maxRevisions: maxRevisions, log: log}
}

// Review gates one piece of content. With maxRevisions=2 the loop makes at
// most 3 scorer calls and 2 fixer calls for any input.
func (g *Gate) Review(ctx context.Context, content string) (Result, error) {
	res := Result{Content: content}

	for round := 0; ; round++ {
		assessment, err := g.scorer.Score(ctx, res.Content)
		if err != nil {
			return res, fmt.Errorf("score content: %w", err)
		}
		res.Score = assessment.Total
		res.Decision = assessment.Decision

		// Fabricated or unverifiable claims are surfaced, never regenerated:
		// a rewrite would simply invent different unverifiable content.
		fixable := make([]models.Issue, 0, len(assessment.Issues))
		res.Flagged = nil
		for _, issue := range assessment.Issues {
			if issue.Fixable() {
				fixable = append(fixable, issue)
			} else {
				res.Flagged = append(res.Flagged, issue)
			}
		}

		if accepted(assessment) {
			res.Remaining = nil
			return res, nil
		}
		if round >= g.maxRevisions || len(fixable) == 0 {
			res.Remaining = fixable
			return res, nil
		}

		revised, err := g.fixer.Fix(ctx, res.Content, fixable, assessment.Total)
		if err != nil {
			return res, fmt.Errorf("fix content: %w", err)
		}
		res.Content = revised
		res.Revisions++
		telemetry.GateRevisions.Inc()
		g.log.Debug("content revised", "round", round+1, "score", assessment.Total, "issues", len(fixable))
	}
}

// accepted is true when the scorer accepts with no high or critical issues
// and no AI-detection deductions.
func accepted(a models.Assessment) bool {
	if a.Decision != models.DecisionAccept {
		return false
	}
	for _, issue := range a.Issues {
		if issue.Blocking() {
			return false
		}
	}
	if a.AIDetection != nil && len(a.AIDetection.Flagged) > 0 {
		return false
	}
	return true
}
