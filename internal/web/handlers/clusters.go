package handlers

import (
	"net/http"
	"sort"

	"github.com/picbest/picbest/internal/cluster"
	"github.com/picbest/picbest/internal/store"
)

// ClustersHandler serves cluster listings for the grid view.
type ClustersHandler struct {
	store store.Store
}

// NewClustersHandler creates a clusters handler.
func NewClustersHandler(st store.Store) *ClustersHandler {
	return &ClustersHandler{store: st}
}

// ClusterResponse is the JSON shape of a cluster card.
type ClusterResponse struct {
	ID                    int64 `json:"id"`
	PhotoCount            int   `json:"photo_count"`
	RepresentativePhotoID int64 `json:"representative_photo_id"`
}

// List returns all clusters, largest first so the grid shows the most
// interesting groups on top.
func (h *ClustersHandler) List(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.store.ListClusters(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list clusters")
		return
	}
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].PhotoCount != clusters[j].PhotoCount {
			return clusters[i].PhotoCount > clusters[j].PhotoCount
		}
		return clusters[i].ID < clusters[j].ID
	})

	out := make([]ClusterResponse, len(clusters))
	for i, c := range clusters {
		out[i] = ClusterResponse{
			ID:                    c.ID,
			PhotoCount:            c.PhotoCount,
			RepresentativePhotoID: c.RepresentativePhotoID,
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"clusters": out})
}

// Get returns one cluster by id.
func (h *ClustersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid cluster id")
		return
	}

	c, err := h.store.GetCluster(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load cluster")
		return
	}
	if c == nil {
		respondError(w, http.StatusNotFound, "cluster not found")
		return
	}
	respondJSON(w, http.StatusOK, ClusterResponse{
		ID:                    c.ID,
		PhotoCount:            c.PhotoCount,
		RepresentativePhotoID: c.RepresentativePhotoID,
	})
}

// Photos returns the cluster's members, best quality first.
func (h *ClustersHandler) Photos(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid cluster id")
		return
	}

	c, err := h.store.GetCluster(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load cluster")
		return
	}
	if c == nil {
		respondError(w, http.StatusNotFound, "cluster not found")
		return
	}

	photos, err := h.store.ListClusterPhotos(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list cluster photos")
		return
	}
	cluster.SortByQuality(photos)
	respondJSON(w, http.StatusOK, map[string]any{"photos": toPhotoResponses(photos)})
}
