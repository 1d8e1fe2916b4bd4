package generate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/heymitch/ai-content-agent-beta-sub000/internal/config"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/logging"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/models"
)

type allowAll struct{}

func (allowAll) Allow(context.Context, string) (bool, error) { return true, nil }

type denyAll struct{}

func (denyAll) Allow(context.Context, string) (bool, error) { return false, nil }

func chatReply(text string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": text}},
		},
	})
	return string(body)
}

func testClient(t *testing.T, url string, limiter Limiter) *Client {
	t.Helper()
	cfg := config.Config{
		LLMBaseURL:    url,
		LLMAPIKey:     "test-key",
		LLMModel:      "test-model",
		LLMTimeout:    5 * time.Second,
		LLMMaxRetries: 3,
	}
	return NewClient(cfg, limiter, logging.NewNop())
}

func TestCompleteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing auth header: %q", got)
		}
		_, _ = w.Write([]byte(chatReply("generated copy")))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, allowAll{})
	text, err := c.Complete(context.Background(), models.PlatformLinkedIn, "sys", "user")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if text != "generated copy" {
		t.Fatalf("text = %q", text)
	}
}

func TestCompleteRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(chatReply("eventually")))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, nil)
	text, err := c.Complete(context.Background(), "scorer", "sys", "user")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if text != "eventually" {
		t.Fatalf("text = %q", text)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 wire attempts, got %d", calls)
	}
}

func TestCompleteDoesNotRetryBadRequest(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, nil)
	if _, err := c.Complete(context.Background(), "fixer", "sys", "user"); err == nil {
		t.Fatalf("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("client retried a non-retryable status: %d calls", calls)
	}
}

func TestCompleteRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("request should never reach the backend")
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, denyAll{})
	_, err := c.Complete(context.Background(), models.PlatformTwitter, "sys", "user")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestParseAssessment(t *testing.T) {
	raw := "```json\n" + `{"scores":{"hook":4,"structure":4,"proof":3,"cta":4,"clarity":5},` +
		`"decision":"revise","issues":[{"severity":"high","category":"proof","rationale":"thin evidence"}]}` + "\n```"
	a, err := parseAssessment(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a.Total != 20 {
		t.Fatalf("total should be summed from axes, got %d", a.Total)
	}
	if a.Decision != models.DecisionRevise {
		t.Fatalf("decision = %q", a.Decision)
	}
	if len(a.Issues) != 1 || a.Issues[0].Severity != models.SeverityHigh {
		t.Fatalf("issues = %+v", a.Issues)
	}
}

func TestParseAssessmentRejectsProse(t *testing.T) {
	if _, err := parseAssessment("Sure! The content scores about 18/25."); err == nil {
		t.Fatalf("prose must be a parse error")
	}
}

func TestParseAssessmentNormalizesDecision(t *testing.T) {
	a, err := parseAssessment(`{"total":12,"decision":"maybe"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a.Decision != models.DecisionError {
		t.Fatalf("unknown decision should normalize to error, got %q", a.Decision)
	}
}

func TestWorkflowClarification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(chatReply("CLARIFY: what is the product called?")))
	}))
	defer srv.Close()

	wf := NewWorkflow(testClient(t, srv.URL, nil), models.PlatformLinkedIn)
	gen, err := wf.Generate(context.Background(), models.Job{Topic: "launch"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if gen.NeedsClarification != "what is the product called?" {
		t.Fatalf("clarification = %q", gen.NeedsClarification)
	}
	if gen.Content != "" {
		t.Fatalf("clarification reply must carry no content")
	}
}
