package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aedworks/coverplan/internal/modules/snapshots"
)

// RunHandlers serves persisted run snapshots.
type RunHandlers struct {
	repo *snapshots.Repository
	log  zerolog.Logger
}

// NewRunHandlers creates run snapshot handlers.
func NewRunHandlers(repo *snapshots.Repository, log zerolog.Logger) *RunHandlers {
	return &RunHandlers{
		repo: repo,
		log:  log.With().Str("component", "run_handlers").Logger(),
	}
}

// HandleLatest returns the most recent run summary.
// GET /api/runs/latest
func (h *RunHandlers) HandleLatest(w http.ResponseWriter, r *http.Request) {
	summary, err := h.repo.LatestRun()
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "No runs recorded yet", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load latest run")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, summary)
}

// HandleRiskScores returns the per-zone risk rows of a run.
// GET /api/runs/{runID}/risk
func (h *RunHandlers) HandleRiskScores(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	rows, err := h.repo.RiskScores(runID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to load risk scores")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if len(rows) == 0 {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, rows)
}

// HandleAllocations returns the device allocation rows of a run.
// GET /api/runs/{runID}/allocations
func (h *RunHandlers) HandleAllocations(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	rows, err := h.repo.Allocations(runID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to load allocations")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if len(rows) == 0 {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, rows)
}

// HandleAssignments returns the responder assignment rows of a run,
// including unassigned responders.
// GET /api/runs/{runID}/assignments
func (h *RunHandlers) HandleAssignments(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	rows, err := h.repo.Assignments(runID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to load assignments")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if len(rows) == 0 {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, rows)
}

// HandleImportance returns the model's feature-importance ranking.
// GET /api/runs/{runID}/importance
func (h *RunHandlers) HandleImportance(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	rows, err := h.repo.FeatureImportance(runID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to load feature importance")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if len(rows) == 0 {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, rows)
}

func (h *RunHandlers) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
