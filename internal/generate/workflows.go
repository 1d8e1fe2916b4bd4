package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/heymitch/ai-content-agent-beta-sub000/internal/dispatch"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/models"
)

// clarifyPrefix marks a model reply that asks for more input instead of
// producing content; the dispatcher surfaces it as a clarification outcome.
const clarifyPrefix = "CLARIFY:"

// platformWorkflow generates content for a single platform with its own
// framing instructions.
type platformWorkflow struct {
	client   *Client
	platform string
	system   string
}

var _ dispatch.Workflow = (*platformWorkflow)(nil)

// NewWorkflow builds the generation workflow for a platform tag.
func NewWorkflow(client *Client, platform string) dispatch.Workflow {
	return &platformWorkflow{
		client:   client,
		platform: platform,
		system:   systemPromptFor(platform),
	}
}

// RegisterAll wires workflows for every supported platform into the dispatcher.
func RegisterAll(d *dispatch.Dispatcher, client *Client) {
	for _, platform := range []string{
		models.PlatformLinkedIn,
		models.PlatformTwitter,
		models.PlatformEmail,
		models.PlatformVideo,
	} {
		d.Register(platform, NewWorkflow(client, platform))
	}
}

func (w *platformWorkflow) Generate(ctx context.Context, job models.Job) (dispatch.Generation, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", job.Topic)
	if job.Style != "" {
		fmt.Fprintf(&b, "Style: %s\n", job.Style)
	}
	if job.PublishAt != nil {
		fmt.Fprintf(&b, "Scheduled publish date: %s\n", job.PublishAt.Format("2006-01-02"))
	}
	if job.Context != "" {
		fmt.Fprintf(&b, "\nContext:\n%s\n", job.Context)
	}

	text, err := w.client.Complete(ctx, w.platform, w.system, b.String())
	if err != nil {
		return dispatch.Generation{}, err
	}

	text = strings.TrimSpace(text)
	if reason, ok := strings.CutPrefix(text, clarifyPrefix); ok {
		return dispatch.Generation{NeedsClarification: strings.TrimSpace(reason)}, nil
	}
	return dispatch.Generation{Content: text}, nil
}

func systemPromptFor(platform string) string {
	base := "You are a marketing copywriter. Write only the finished piece, no commentary. " +
		"If the brief is too thin to write anything credible, reply with a single line starting with " +
		clarifyPrefix + " and the question you need answered."
	switch platform {
	case models.PlatformLinkedIn:
		return base + " Produce a LinkedIn post: strong first line, short paragraphs, a clear call to action."
	case models.PlatformTwitter:
		return base + " Produce a tweet thread: numbered tweets, each under 280 characters, first tweet is the hook."
	case models.PlatformEmail:
		return base + " Produce a marketing email: subject line on the first line, then the body."
	case models.PlatformVideo:
		return base + " Produce a short-form video script: spoken lines only, with a hook in the first sentence."
	default:
		return base
	}
}
