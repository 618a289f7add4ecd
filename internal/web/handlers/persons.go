package handlers

import (
	"net/http"
	"strings"

	"github.com/picbest/picbest/internal/store"
)

// PersonsHandler serves person identities and naming.
type PersonsHandler struct {
	store store.Store
}

// NewPersonsHandler creates a persons handler.
func NewPersonsHandler(st store.Store) *PersonsHandler {
	return &PersonsHandler{store: st}
}

// PersonResponse is the JSON shape of a person.
type PersonResponse struct {
	ID                   int64  `json:"id"`
	Name                 string `json:"name,omitempty"`
	PhotoCount           int    `json:"photo_count"`
	RepresentativeFaceID int64  `json:"representative_face_id"`
}

func toPersonResponse(p store.Person) PersonResponse {
	return PersonResponse{
		ID:                   p.ID,
		Name:                 p.Name,
		PhotoCount:           p.PhotoCount,
		RepresentativeFaceID: p.RepresentativeFaceID,
	}
}

// List returns all persons.
func (h *PersonsHandler) List(w http.ResponseWriter, r *http.Request) {
	persons, err := h.store.ListPersons(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list persons")
		return
	}

	out := make([]PersonResponse, len(persons))
	for i, p := range persons {
		out[i] = toPersonResponse(p)
	}
	respondJSON(w, http.StatusOK, map[string]any{"persons": out})
}

// Get returns one person by id.
func (h *PersonsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid person id")
		return
	}

	p, err := h.store.GetPerson(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load person")
		return
	}
	if p == nil {
		respondError(w, http.StatusNotFound, "person not found")
		return
	}
	respondJSON(w, http.StatusOK, toPersonResponse(*p))
}

type renameRequest struct {
	Name string `json:"name"`
}

// Rename assigns a display name to a person. A name matching an existing
// person after normalization (lowercase, diacritics stripped) is rejected so
// "Tomáš" and "tomas" cannot become two different people.
func (h *PersonsHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid person id")
		return
	}

	var req renameRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(w, http.StatusBadRequest, "name must not be empty")
		return
	}

	normalized := store.NormalizePersonName(name)
	persons, err := h.store.ListPersons(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list persons")
		return
	}
	for _, p := range persons {
		if p.ID != id && p.Name != "" && store.NormalizePersonName(p.Name) == normalized {
			respondError(w, http.StatusConflict, "another person already has this name")
			return
		}
	}

	if err := h.store.SetPersonName(r.Context(), id, name); err != nil {
		respondStoreError(w, err, "failed to rename person")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": id, "name": name})
}
