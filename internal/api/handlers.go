package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/multibar/internal/history"
	"github.com/JakeFAU/multibar/internal/sinks"
)

const (
	defaultRunLimit = 50
	maxRunLimit     = 500
	historyTimeout  = 3 * time.Second
)

// getRun handles GET /api/run. It returns {"run": {...}} for the live
// run, or 404 before the first update has been observed.
func (s *Server) getRun(w http.ResponseWriter, _ *http.Request) {
	if s.snapshot == nil {
		s.writeError(w, http.StatusServiceUnavailable, "run snapshot unavailable")
		return
	}
	run, ok := s.snapshot.Run()
	if !ok {
		s.writeError(w, http.StatusNotFound, "no run observed yet")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"run": toRunViewDTO(run)})
}

// getRunWorkers handles GET /api/run/workers.
func (s *Server) getRunWorkers(w http.ResponseWriter, _ *http.Request) {
	if s.snapshot == nil {
		s.writeError(w, http.StatusServiceUnavailable, "run snapshot unavailable")
		return
	}
	if _, ok := s.snapshot.Run(); !ok {
		s.writeError(w, http.StatusNotFound, "no run observed yet")
		return
	}
	workers := s.snapshot.Workers()
	out := make([]workerViewDTO, 0, len(workers))
	for _, wv := range workers {
		out = append(out, toWorkerViewDTO(wv))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"workers": out})
}

// listRuns handles GET /api/history?status=&limit=&offset=.
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		s.writeError(w, http.StatusServiceUnavailable, "history unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultRunLimit, maxRunLimit)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var status *history.RunStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		parsed, parseErr := parseStatus(raw)
		if parseErr != nil {
			s.writeError(w, http.StatusBadRequest, parseErr.Error())
			return
		}
		status = &parsed
	}
	ctx, cancel := context.WithTimeout(r.Context(), historyTimeout)
	defer cancel()

	runs, err := s.repo.ListRuns(ctx, status, limit, offset)
	if err != nil {
		s.logger.Error("list runs failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	out := make([]runDTO, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunDTO(run))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

// getHistoryRun handles GET /api/history/{run_id}.
func (s *Server) getHistoryRun(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		s.writeError(w, http.StatusServiceUnavailable, "history unavailable")
		return
	}
	runID, err := parseRunID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), historyTimeout)
	defer cancel()

	run, err := s.repo.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.logger.Error("get run failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"run": toRunDTO(run)})
}

// getHistoryRunWorkers handles GET /api/history/{run_id}/workers.
func (s *Server) getHistoryRunWorkers(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		s.writeError(w, http.StatusServiceUnavailable, "history unavailable")
		return
	}
	runID, err := parseRunID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), historyTimeout)
	defer cancel()

	workers, err := s.repo.ListRunWorkers(ctx, runID)
	if err != nil {
		s.logger.Error("list run workers failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list run workers")
		return
	}
	out := make([]workerResultDTO, 0, len(workers))
	for _, res := range workers {
		out = append(out, toWorkerResultDTO(res))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"workers": out})
}

func parseRunID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "run_id")
	if raw == "" {
		return uuid.UUID{}, errors.New("run_id is required")
	}
	runID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errors.New("invalid run_id")
	}
	return runID, nil
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if raw := q.Get("limit"); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if raw := q.Get("offset"); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func parseStatus(input string) (history.RunStatus, error) {
	switch strings.ToLower(input) {
	case "running":
		return history.RunRunning, nil
	case "complete", "success":
		return history.RunComplete, nil
	case "canceled", "cancelled":
		return history.RunCanceled, nil
	default:
		return "", errors.New("invalid status")
	}
}

type runViewDTO struct {
	RunID          string `json:"run_id"`
	StartedAt      string `json:"started_at"`
	UpdatedAt      string `json:"updated_at"`
	Done           bool   `json:"done"`
	AggregateCount int64  `json:"aggregate_count"`
	AggregateTotal int64  `json:"aggregate_total"`
	ActiveWorkers  int    `json:"active_workers"`
}

type workerViewDTO struct {
	Worker    int    `json:"worker"`
	Count     int64  `json:"count"`
	Length    int64  `json:"length"`
	Offset    int    `json:"offset"`
	Done      bool   `json:"done"`
	Canceled  bool   `json:"canceled"`
	UpdatedAt string `json:"updated_at"`
}

type runDTO struct {
	ID             string  `json:"id"`
	StartedAt      string  `json:"started_at"`
	FinishedAt     *string `json:"finished_at,omitempty"`
	Status         string  `json:"status"`
	Workers        int     `json:"workers"`
	AggregateCount int64   `json:"aggregate_count"`
	AggregateTotal int64   `json:"aggregate_total"`
}

type workerResultDTO struct {
	RunID      string `json:"run_id"`
	Worker     int    `json:"worker"`
	Count      int64  `json:"count"`
	Length     int64  `json:"length"`
	Canceled   bool   `json:"canceled"`
	FinishedAt string `json:"finished_at"`
}

func toRunViewDTO(run sinks.RunView) runViewDTO {
	return runViewDTO{
		RunID:          run.RunID.String(),
		StartedAt:      run.StartedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      run.UpdatedAt.UTC().Format(time.RFC3339),
		Done:           run.Done,
		AggregateCount: run.AggregateCount,
		AggregateTotal: run.AggregateTotal,
		ActiveWorkers:  run.ActiveWorkers,
	}
}

func toWorkerViewDTO(wv sinks.WorkerView) workerViewDTO {
	return workerViewDTO{
		Worker:    wv.Worker,
		Count:     wv.Count,
		Length:    wv.Length,
		Offset:    wv.Offset,
		Done:      wv.Done,
		Canceled:  wv.Canceled,
		UpdatedAt: wv.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toRunDTO(run history.Run) runDTO {
	dto := runDTO{
		ID:             run.ID.String(),
		StartedAt:      run.StartedAt.UTC().Format(time.RFC3339),
		Status:         string(run.Status),
		Workers:        run.Workers,
		AggregateCount: run.AggregateCount,
		AggregateTotal: run.AggregateTotal,
	}
	if run.FinishedAt != nil {
		finished := run.FinishedAt.UTC().Format(time.RFC3339)
		dto.FinishedAt = &finished
	}
	return dto
}

func toWorkerResultDTO(res history.WorkerResult) workerResultDTO {
	return workerResultDTO{
		RunID:      res.RunID.String(),
		Worker:     res.Worker,
		Count:      res.Count,
		Length:     res.Length,
		Canceled:   res.Canceled,
		FinishedAt: res.FinishedAt.UTC().Format(time.RFC3339),
	}
}
