package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/heymitch/ai-content-agent-beta-sub000/internal/config"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/logging"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/models"
)

func TestArchiveWritesLocalJSON(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{ArchiveDir: dir}
	arch, err := New(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("new archiver: %v", err)
	}

	summary := models.BatchSummary{
		PlanID:    "plan-1",
		Completed: 3,
		Failed:    1,
		Average:   17.5,
		Trend:     models.TrendImproving,
	}
	if err := arch.Archive(context.Background(), summary); err != nil {
		t.Fatalf("archive: %v", err)
	}

	date := time.Now().UTC().Format("2006-01-02")
	path := filepath.Join(dir, "batches", date, "plan-1.json")
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("archive file missing: %v", err)
	}
	var got models.BatchSummary
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("archive is not valid json: %v", err)
	}
	if got.PlanID != "plan-1" || got.Completed != 3 || got.Trend != models.TrendImproving {
		t.Fatalf("round-tripped summary mismatch: %+v", got)
	}
}
