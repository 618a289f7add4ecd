package handlers

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/picbest/picbest/internal/store"
)

// PhotosHandler serves photo metadata, curation actions, and similarity
// search.
type PhotosHandler struct {
	store store.Store

	// Lazily built HNSW index over photo embeddings; invalidated after each
	// clustering run or indexing pass.
	indexMu    sync.Mutex
	index      *store.SimilarityIndex
	indexStale bool
}

// NewPhotosHandler creates a photos handler.
func NewPhotosHandler(st store.Store) *PhotosHandler {
	return &PhotosHandler{store: st, indexStale: true}
}

// PhotoResponse is the JSON shape of a photo.
type PhotoResponse struct {
	ID                      int64      `json:"id"`
	FilePath                string     `json:"file_path"`
	FileName                string     `json:"file_name"`
	Folder                  string     `json:"folder"`
	TakenAt                 *time.Time `json:"taken_at,omitempty"`
	Width                   int        `json:"width"`
	Height                  int        `json:"height"`
	Sharpness               *float64   `json:"sharpness,omitempty"`
	Rating                  int        `json:"rating"`
	IsStarred               bool       `json:"is_starred"`
	IsRejected              bool       `json:"is_rejected"`
	Notes                   string     `json:"notes,omitempty"`
	ClusterID               *int64     `json:"cluster_id,omitempty"`
	DuplicateGroupID        *int64     `json:"duplicate_group_id,omitempty"`
	IsClusterRepresentative bool       `json:"is_cluster_representative"`
}

func toPhotoResponse(p store.Photo) PhotoResponse {
	return PhotoResponse{
		ID:                      p.ID,
		FilePath:                p.FilePath,
		FileName:                p.FileName,
		Folder:                  p.Folder,
		TakenAt:                 p.TakenAt,
		Width:                   p.Width,
		Height:                  p.Height,
		Sharpness:               p.Sharpness,
		Rating:                  p.Rating,
		IsStarred:               p.IsStarred,
		IsRejected:              p.IsRejected,
		Notes:                   p.Notes,
		ClusterID:               p.ClusterID,
		DuplicateGroupID:        p.DuplicateGroupID,
		IsClusterRepresentative: p.IsClusterRepresentative,
	}
}

func toPhotoResponses(photos []store.Photo) []PhotoResponse {
	out := make([]PhotoResponse, len(photos))
	for i, p := range photos {
		out[i] = toPhotoResponse(p)
	}
	return out
}

// List returns all photos, or only the starred ones with ?starred=true.
func (h *PhotosHandler) List(w http.ResponseWriter, r *http.Request) {
	var photos []store.Photo
	var err error
	if r.URL.Query().Get("starred") == "true" {
		photos, err = h.store.ListStarredPhotos(r.Context())
	} else {
		photos, err = h.store.ListPhotos(r.Context())
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list photos")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"photos": toPhotoResponses(photos)})
}

// Get returns one photo by id.
func (h *PhotosHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid photo id")
		return
	}

	photo, err := h.store.GetPhoto(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load photo")
		return
	}
	if photo == nil {
		respondError(w, http.StatusNotFound, "photo not found")
		return
	}
	respondJSON(w, http.StatusOK, toPhotoResponse(*photo))
}

// File streams the original image from disk.
func (h *PhotosHandler) File(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid photo id")
		return
	}

	photo, err := h.store.GetPhoto(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load photo")
		return
	}
	if photo == nil {
		respondError(w, http.StatusNotFound, "photo not found")
		return
	}
	http.ServeFile(w, r, photo.FilePath)
}

type ratingRequest struct {
	Rating int `json:"rating"`
}

// Rate sets a photo's star rating (0-5).
func (h *PhotosHandler) Rate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid photo id")
		return
	}

	var req ratingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Rating < 0 || req.Rating > 5 {
		respondError(w, http.StatusBadRequest, "rating must be between 0 and 5")
		return
	}

	if err := h.store.SetRating(r.Context(), id, req.Rating); err != nil {
		respondStoreError(w, err, "failed to set rating")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": id, "rating": req.Rating})
}

type notesRequest struct {
	Notes string `json:"notes"`
}

// Notes replaces a photo's free-form notes. An empty string clears them.
func (h *PhotosHandler) Notes(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid photo id")
		return
	}

	var req notesRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	if err := h.store.SetNotes(r.Context(), id, req.Notes); err != nil {
		respondStoreError(w, err, "failed to set notes")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": id, "notes": req.Notes})
}

type flagRequest struct {
	Value bool `json:"value"`
}

// Star toggles the starred flag.
func (h *PhotosHandler) Star(w http.ResponseWriter, r *http.Request) {
	h.setFlag(w, r, h.store.SetStarred, "starred")
}

// Reject toggles the rejected flag.
func (h *PhotosHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.setFlag(w, r, h.store.SetRejected, "rejected")
}

func (h *PhotosHandler) setFlag(w http.ResponseWriter, r *http.Request, set func(ctx context.Context, id int64, value bool) error, field string) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid photo id")
		return
	}

	var req flagRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	if err := set(r.Context(), id, req.Value); err != nil {
		respondStoreError(w, err, "failed to update photo")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": id, field: req.Value})
}

// SimilarPhoto is one similarity search hit.
type SimilarPhoto struct {
	Photo    PhotoResponse `json:"photo"`
	Distance float64       `json:"distance"`
}

// Similar returns the k photos nearest to the given one by embedding
// distance. ?limit= controls k (default 12).
func (h *PhotosHandler) Similar(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid photo id")
		return
	}

	limit := 12
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}

	index, err := h.similarityIndex(r)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to build similarity index")
		return
	}

	ids, distances, err := index.SearchSimilarTo(id, limit)
	if err != nil {
		respondError(w, http.StatusNotFound, "photo has no embedding")
		return
	}

	results := make([]SimilarPhoto, 0, len(ids))
	for i, photoID := range ids {
		photo, err := h.store.GetPhoto(r.Context(), photoID)
		if err != nil || photo == nil {
			continue
		}
		results = append(results, SimilarPhoto{
			Photo:    toPhotoResponse(*photo),
			Distance: distances[i],
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"results": results})
}

// Faces returns the detected faces of one photo.
func (h *PhotosHandler) Faces(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid photo id")
		return
	}

	faces, err := h.store.GetPhotoFaces(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load faces")
		return
	}

	type faceResponse struct {
		ID       int64     `json:"id"`
		BBox     []float64 `json:"bbox"`
		DetScore float64   `json:"det_score"`
		PersonID *int64    `json:"person_id,omitempty"`
	}
	out := make([]faceResponse, len(faces))
	for i, f := range faces {
		out[i] = faceResponse{ID: f.ID, BBox: f.BBox, DetScore: f.DetScore, PersonID: f.PersonID}
	}
	respondJSON(w, http.StatusOK, map[string]any{"faces": out})
}

// InvalidateIndex marks the similarity index stale; the next search rebuilds
// it from the store. Called after indexing and clustering runs.
func (h *PhotosHandler) InvalidateIndex() {
	h.indexMu.Lock()
	h.indexStale = true
	h.indexMu.Unlock()
}

func (h *PhotosHandler) similarityIndex(r *http.Request) (*store.SimilarityIndex, error) {
	h.indexMu.Lock()
	defer h.indexMu.Unlock()

	if h.index != nil && !h.indexStale {
		return h.index, nil
	}

	embeddings, err := h.store.ListEmbeddings(r.Context())
	if err != nil {
		return nil, err
	}
	index := store.NewSimilarityIndex()
	if err := index.Build(embeddings); err != nil {
		return nil, err
	}
	h.index = index
	h.indexStale = false
	return index, nil
}
