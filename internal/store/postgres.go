package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heymitch/ai-content-agent-beta-sub000/internal/models"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/record"
)

// Store wraps pgxpool for Postgres persistence of jobs and content records.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a pooled connection to Postgres.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// SaveJob upserts a job row mirroring the in-process queue state. The queue
// remains the source of truth; this is an audit trail.
func (s *Store) SaveJob(ctx context.Context, job models.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO content_jobs (id, platform, topic, style, status, attempts, score, record_url, last_error, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			attempts = EXCLUDED.attempts,
			score = EXCLUDED.score,
			record_url = EXCLUDED.record_url,
			last_error = EXCLUDED.last_error,
			completed_at = EXCLUDED.completed_at
	`, job.ID, job.Platform, job.Topic, job.Style, job.Status, job.Attempts,
		job.Score, emptyToNil(job.RecordURL), emptyToNil(job.LastError), job.CreatedAt, job.CompletedAt)
	return err
}

// GetJob fetches a mirrored job row by id.
func (s *Store) GetJob(ctx context.Context, id string) (models.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, platform, topic, style, status, attempts, score, record_url, last_error, created_at, completed_at
		FROM content_jobs WHERE id = $1
	`, id)

	var job models.Job
	var recordURL, lastErr pgtype.Text
	var completedAt pgtype.Timestamptz
	if err := row.Scan(&job.ID, &job.Platform, &job.Topic, &job.Style, &job.Status, &job.Attempts,
		&job.Score, &recordURL, &lastErr, &job.CreatedAt, &completedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Job{}, fmt.Errorf("job not found: %w", err)
		}
		return models.Job{}, fmt.Errorf("scan job: %w", err)
	}
	job.RecordURL = textValue(recordURL)
	job.LastError = textValue(lastErr)
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return job, nil
}

// Create inserts a content record and returns its ref. Implements
// record.Store so the store can sit behind the dispatcher's tee.
func (s *Store) Create(ctx context.Context, rec record.ContentRecord) (record.Ref, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO content_records (id, platform, hook, content, score, status, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`, id, rec.Platform, rec.Hook, rec.Content, rec.Score, rec.Status, emptyToNil(rec.Notes))
	if err != nil {
		return record.Ref{}, fmt.Errorf("insert content record: %w", err)
	}
	return record.Ref{ID: id, URL: "pg://content_records/" + id}, nil
}

// RecordRow is a stored content record as listed by the API.
type RecordRow struct {
	ID        string    `json:"id"`
	Platform  string    `json:"platform"`
	Hook      string    `json:"hook"`
	Content   string    `json:"content"`
	Score     int       `json:"score"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordFilter narrows ListRecords output.
type RecordFilter struct {
	Platform string
	Status   string
	MinScore int
	Limit    int
}

// ListRecords returns recent records matching the filter, newest first.
func (s *Store) ListRecords(ctx context.Context, f RecordFilter) ([]RecordRow, error) {
	builder := sq.Select("id", "platform", "hook", "content", "score", "status", "notes", "created_at").
		From("content_records").
		OrderBy("created_at DESC").
		PlaceholderFormat(sq.Dollar)
	if f.Platform != "" {
		builder = builder.Where(sq.Eq{"platform": f.Platform})
	}
	if f.Status != "" {
		builder = builder.Where(sq.Eq{"status": f.Status})
	}
	if f.MinScore > 0 {
		builder = builder.Where(sq.GtOrEq{"score": f.MinScore})
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	builder = builder.Limit(uint64(limit))

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build records query: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []RecordRow
	for rows.Next() {
		var r RecordRow
		var notes pgtype.Text
		if err := rows.Scan(&r.ID, &r.Platform, &r.Hook, &r.Content, &r.Score, &r.Status, &notes, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Notes = textValue(notes)
		out = append(out, r)
	}
	return out, rows.Err()
}

func textValue(t pgtype.Text) string {
	if t.Valid {
		return t.String
	}
	return ""
}

func emptyToNil(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
