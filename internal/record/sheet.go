package record

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SheetClient writes records to the spreadsheet-like content API over HTTP.
type SheetClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewSheetClient builds a client; returns nil when no URL is configured so
// callers can treat the mirror as absent.
func NewSheetClient(baseURL, apiKey string) *SheetClient {
	if baseURL == "" {
		return nil
	}
	return &SheetClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type sheetResponse struct {
	Success  bool   `json:"success"`
	RecordID string `json:"record_id"`
	URL      string `json:"url"`
	Error    string `json:"error"`
}

// Create posts the record as a new row.
func (c *SheetClient) Create(ctx context.Context, rec ContentRecord) (Ref, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return Ref{}, fmt.Errorf("marshal record: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/records", bytes.NewReader(body))
	if err != nil {
		return Ref{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Ref{}, fmt.Errorf("post record: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Ref{}, fmt.Errorf("sheet api %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var out sheetResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Ref{}, fmt.Errorf("decode sheet response: %w", err)
	}
	if !out.Success {
		return Ref{}, fmt.Errorf("sheet api rejected record: %s", out.Error)
	}
	return Ref{ID: out.RecordID, URL: out.URL}, nil
}
