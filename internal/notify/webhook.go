package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/heymitch/ai-content-agent-beta-sub000/internal/logging"
)

// Webhook posts progress events to a chat/automation webhook. Delivery is
// fire-and-forget; a dead webhook must never slow the batch down.
type Webhook struct {
	url        string
	httpClient *http.Client
	log        *logging.Logger
}

// NewWebhook builds a webhook observer; returns nil when no URL is configured.
func NewWebhook(url string, log *logging.Logger) *Webhook {
	if url == "" {
		return nil
	}
	return &Webhook{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// Observer returns the Observer func for this webhook; safe on a nil receiver.
func (w *Webhook) Observer() Observer {
	if w == nil {
		return nil
	}
	return func(ev Event) {
		go w.post(ev)
	}
}

func (w *Webhook) post(ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.log.Debug("webhook delivery failed", "error", err)
		return
	}
	_ = resp.Body.Close()
}
