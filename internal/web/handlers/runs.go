package handlers

import (
	"context"
	"log"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/picbest/picbest/internal/cluster"
	"github.com/picbest/picbest/internal/config"
	"github.com/picbest/picbest/internal/store"
)

// RunsHandler starts clustering runs and reports their progress. At most one
// run executes at a time; a second start request while one is active gets a
// conflict response.
type RunsHandler struct {
	store   store.Store
	cfg     config.ClusteringConfig
	photos  *PhotosHandler
	running atomic.Bool
}

// NewRunsHandler creates a runs handler. photos may be nil; when set, its
// similarity index is invalidated after every completed run.
func NewRunsHandler(st store.Store, cfg config.ClusteringConfig, photos *PhotosHandler) *RunsHandler {
	return &RunsHandler{store: st, cfg: cfg, photos: photos}
}

// RunResponse is the JSON shape of a clustering run.
type RunResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Phase   string `json:"phase,omitempty"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Start launches a clustering run in the background and returns its id.
func (h *RunsHandler) Start(w http.ResponseWriter, r *http.Request) {
	if !h.running.CompareAndSwap(false, true) {
		respondError(w, http.StatusConflict, "a clustering run is already in progress")
		return
	}

	run := &store.Run{ID: uuid.NewString(), Status: store.RunPending}
	if err := h.store.CreateRun(r.Context(), run); err != nil {
		h.running.Store(false)
		respondError(w, http.StatusInternalServerError, "failed to create run")
		return
	}

	go h.execute(run.ID)

	respondJSON(w, http.StatusAccepted, RunResponse{ID: run.ID, Status: run.Status})
}

// execute runs the clustering pipeline to completion in the background.
// The request context is long gone by then, so it uses its own.
func (h *RunsHandler) execute(runID string) {
	defer h.running.Store(false)
	ctx := context.Background()

	engine := cluster.New(h.store, h.cfg)
	result, err := engine.Run(ctx, cluster.RunOptions{
		OnProgress: func(info cluster.ProgressInfo) {
			if err := h.store.UpdateRunProgress(ctx, runID, info.Phase, info.Current, info.Total, info.Message); err != nil {
				log.Printf("warning: failed to update run %s progress: %v", runID, err)
			}
		},
	})
	if err != nil {
		log.Printf("clustering run %s failed: %v", runID, err)
		if ferr := h.store.FinishRun(ctx, runID, store.RunFailed, err.Error()); ferr != nil {
			log.Printf("warning: failed to mark run %s failed: %v", runID, ferr)
		}
		return
	}

	log.Printf("clustering run %s completed: %d photos, %d duplicate groups, %d clusters, %d persons",
		runID, result.PhotoCount, result.DuplicateGroups, result.ClusterCount, result.PersonCount)
	if err := h.store.FinishRun(ctx, runID, store.RunCompleted, ""); err != nil {
		log.Printf("warning: failed to mark run %s completed: %v", runID, err)
	}
	if h.photos != nil {
		h.photos.InvalidateIndex()
	}
}

// Status returns the current state of a run.
func (h *RunsHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		respondError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := h.store.GetRun(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}

	respondJSON(w, http.StatusOK, RunResponse{
		ID:      run.ID,
		Status:  run.Status,
		Phase:   run.Phase,
		Current: run.Current,
		Total:   run.Total,
		Message: run.Message,
		Error:   run.Error,
	})
}
