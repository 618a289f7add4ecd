package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

// TextEmbedder turns a text query into a vector in the image embedding space.
type TextEmbedder interface {
	ComputeTextEmbedding(ctx context.Context, text string) ([]float32, error)
}

// SearchHandler serves free-text photo search: the query is embedded by the
// sidecar and matched against photo embeddings in the similarity index.
type SearchHandler struct {
	embedder TextEmbedder
	photos   *PhotosHandler
}

// NewSearchHandler creates a search handler.
func NewSearchHandler(embedder TextEmbedder, photos *PhotosHandler) *SearchHandler {
	return &SearchHandler{embedder: embedder, photos: photos}
}

// Search returns the photos best matching a text query, nearest first.
// ?limit= controls the result count (default 24).
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respondError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	limit := 24
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}

	vec, err := h.embedder.ComputeTextEmbedding(r.Context(), query)
	if err != nil {
		respondError(w, http.StatusBadGateway, "failed to embed query")
		return
	}

	index, err := h.photos.similarityIndex(r)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to build similarity index")
		return
	}
	if index.Len() == 0 {
		respondJSON(w, http.StatusOK, map[string]any{"results": []SimilarPhoto{}})
		return
	}

	ids, distances, err := index.Search(vec, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "search failed")
		return
	}

	results := make([]SimilarPhoto, 0, len(ids))
	for i, photoID := range ids {
		photo, err := h.photos.store.GetPhoto(r.Context(), photoID)
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
