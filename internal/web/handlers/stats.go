package handlers

import (
	"net/http"

	"github.com/picbest/picbest/internal/store"
)

// StatsHandler reports collection-level counters.
type StatsHandler struct {
	store store.Store
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(st store.Store) *StatsHandler {
	return &StatsHandler{store: st}
}

// StatsResponse summarizes the state of the collection.
type StatsResponse struct {
	Photos     int `json:"photos"`
	Embeddings int `json:"embeddings"`
	Faces      int `json:"faces"`
	Clusters   int `json:"clusters"`
	Persons    int `json:"persons"`
	Starred    int `json:"starred"`
	Rejected   int `json:"rejected"`
	Rated      int `json:"rated"`
}

// Get returns the collection stats.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var stats StatsResponse
	var err error

	if stats.Photos, err = h.store.CountPhotos(ctx); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count photos")
		return
	}
	if stats.Embeddings, err = h.store.CountEmbeddings(ctx); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count embeddings")
		return
	}
	if stats.Faces, err = h.store.CountFaces(ctx); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count faces")
		return
	}

	clusters, err := h.store.ListClusters(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list clusters")
		return
	}
	stats.Clusters = len(clusters)

	persons, err := h.store.ListPersons(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list persons")
		return
	}
	stats.Persons = len(persons)

	photos, err := h.store.ListPhotos(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list photos")
		return
	}
	for _, p := range photos {
		if p.IsStarred {
			stats.Starred++
		}
		if p.IsRejected {
			stats.Rejected++
		}
		if p.Rating > 0 {
			stats.Rated++
		}
	}

	respondJSON(w, http.StatusOK, stats)
}
