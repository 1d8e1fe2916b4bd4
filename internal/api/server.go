package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/heymitch/ai-content-agent-beta-sub000/internal/batch"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/config"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/logging"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/models"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/queue"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/store"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/telemetry"
)

// Server wires HTTP handlers for the content agent.
type Server struct {
	cfg         config.Config
	coordinator *batch.Coordinator
	queue       *queue.Queue
	store       *store.Store
	log         *logging.Logger
}

// New constructs the API server. The store may be nil when Postgres is not
// configured; record listing then returns 503.
func New(cfg config.Config, c *batch.Coordinator, q *queue.Queue, st *store.Store, log *logging.Logger) *Server {
	return &Server{cfg: cfg, coordinator: c, queue: q, store: st, log: log}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Mount("/metrics", telemetry.Handler())

	r.Post("/batches", s.handleCreateBatch)
	r.Post("/batches/{id}/run", s.handleRunBatch)
	r.Post("/batches/{id}/step", s.handleStepBatch)
	r.Get("/batches/{id}", s.handleBatchStats)
	r.Post("/batches/{id}/cancel", s.handleCancelBatch)

	r.Post("/jobs", s.handleSubmitJob)
	r.Get("/jobs/{id}", s.handleGetJob)
	r.Get("/queue", s.handleQueueStatus)
	r.Post("/queue/cancel", s.handleCancelQueue)

	r.Get("/records", s.handleListRecords)
	return r
}

type createBatchRequest struct {
	Description string            `json:"description"`
	Specs       []models.PostSpec `json:"specs"`
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	plan, err := s.coordinator.CreatePlan(req.Specs, req.Description)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

// handleRunBatch starts a full sequential run in the background; progress is
// observable via GET /batches/{id} and the configured webhook.
func (s *Server) handleRunBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.coordinator.Stats(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	runCtx := context.WithoutCancel(r.Context())
	go func() {
		if _, err := s.coordinator.RunAll(runCtx, id); err != nil {
			s.log.Error("batch run failed", "plan_id", id, "error", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"plan_id": id, "status": "running"})
}

type stepRequest struct {
	Index int `json:"index"`
}

func (s *Server) handleStepBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req stepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	outcome, err := s.coordinator.RunOne(r.Context(), id, req.Index)
	if err != nil {
		writeError(w, statusForBatchErr(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleBatchStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	stats, err := s.coordinator.Stats(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCancelBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.coordinator.Cancel(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"plan_id": id, "status": "cancelling"})
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var spec models.PostSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	id, err := s.queue.Submit(spec)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := s.queue.Get(id)
	if !ok {
		// Jobs from earlier process lifetimes only exist in the mirror.
		if s.store != nil {
			if mirrored, err := s.store.GetJob(r.Context(), id); err == nil {
				writeJSON(w, http.StatusOK, mirrored)
				return
			}
		}
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.queue.Status())
}

func (s *Server) handleCancelQueue(w http.ResponseWriter, _ *http.Request) {
	if !s.queue.Cancel() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "noop", "reason": "queue is idle"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "record store not configured")
		return
	}
	q := r.URL.Query()
	filter := store.RecordFilter{
		Platform: q.Get("platform"),
		Status:   q.Get("status"),
	}
	if v := q.Get("min_score"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.MinScore = n
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	rows, err := s.store.ListRecords(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": rows})
}

func statusForBatchErr(err error) int {
	switch {
	case errors.Is(err, batch.ErrPlanNotFound):
		return http.StatusNotFound
	case errors.Is(err, batch.ErrIndexOutOfRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
