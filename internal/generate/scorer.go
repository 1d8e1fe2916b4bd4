package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/heymitch/ai-content-agent-beta-sub000/internal/models"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/quality"
)

const scorerSystem = "You are a strict content reviewer. Score the content on five axes " +
	"(hook, structure, proof, cta, clarity), each 0-5. Respond with JSON only, no prose, shaped as " +
	`{"scores":{"hook":0,"structure":0,"proof":0,"cta":0,"clarity":0},"total":0,` +
	`"decision":"accept|revise|reject","issues":[{"severity":"critical|high|medium|low",` +
	`"category":"...","original":"...","suggested":"...","rationale":"..."}],` +
	`"ai_detection":{"percent":0,"flagged":[]}}`

const fixerSystem = "You are a copy editor. Rewrite the content to resolve every listed issue while " +
	"keeping the message and voice intact. Reply with the revised content only."

// RubricScorer implements quality.Scorer against the LLM backend with a
// strict-JSON contract.
type RubricScorer struct {
	client *Client
}

var _ quality.Scorer = (*RubricScorer)(nil)

func NewRubricScorer(client *Client) *RubricScorer {
	return &RubricScorer{client: client}
}

func (s *RubricScorer) Score(ctx context.Context, content string) (models.Assessment, error) {
	text, err := s.client.Complete(ctx, "scorer", scorerSystem, content)
	if err != nil {
		return models.Assessment{}, err
	}
	return parseAssessment(text)
}

// parseAssessment decodes the scorer's JSON reply, tolerating a fenced code
// block but nothing looser than that.
func parseAssessment(text string) (models.Assessment, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var a models.Assessment
	if err := json.Unmarshal([]byte(text), &a); err != nil {
		return models.Assessment{}, fmt.Errorf("scorer returned malformed json: %w", err)
	}

	if a.Total == 0 && len(a.Scores) > 0 {
		for _, v := range a.Scores {
			a.Total += v
		}
	}
	if a.Total < 0 {
		a.Total = 0
	}
	if a.Total > models.TotalScoreMax {
		a.Total = models.TotalScoreMax
	}
	switch a.Decision {
	case models.DecisionAccept, models.DecisionRevise, models.DecisionReject:
	default:
		a.Decision = models.DecisionError
	}
	return a, nil
}

// RubricFixer implements quality.Fixer against the LLM backend.
type RubricFixer struct {
	client *Client
}

var _ quality.Fixer = (*RubricFixer)(nil)

func NewRubricFixer(client *Client) *RubricFixer {
	return &RubricFixer{client: client}
}

func (f *RubricFixer) Fix(ctx context.Context, content string, issues []models.Issue, score int) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Current score: %d/%d. Issues to resolve:\n", score, models.TotalScoreMax)
	for i, issue := range issues {
		fmt.Fprintf(&b, "%d. [%s/%s] %s", i+1, issue.Severity, issue.Category, issue.Rationale)
		if issue.Suggested != "" {
			fmt.Fprintf(&b, " (suggested: %s)", issue.Suggested)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nContent:\n")
	b.WriteString(content)

	revised, err := f.client.Complete(ctx, "fixer", fixerSystem, b.String())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(revised), nil
}
