package web

import (
	"context"
	"net/http"
	"testing"

	"github.com/picbest/picbest/internal/store"
	"github.com/picbest/picbest/internal/store/memory"
)

func TestListPhotos(t *testing.T) {
	st := memory.New()
	seedPhoto(t, st, store.Photo{FilePath: "/photos/a.jpg", FileName: "a.jpg"})
	seedPhoto(t, st, store.Photo{FilePath: "/photos/b.jpg", FileName: "b.jpg", IsStarred: true})
	s := newTestServer(t, st)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/photos", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Photos []struct {
			ID       int64  `json:"id"`
			FileName string `json:"file_name"`
		} `json:"photos"`
	}
	decodeBody(t, rec, &body)
	if len(body.Photos) != 2 {
		t.Fatalf("expected 2 photos, got %d", len(body.Photos))
	}
	if body.Photos[0].ID != 1 || body.Photos[1].ID != 2 {
		t.Errorf("expected photos ordered by id, got %+v", body.Photos)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/photos?starred=true", nil)
	decodeBody(t, rec, &body)
	if len(body.Photos) != 1 || body.Photos[0].FileName != "b.jpg" {
		t.Errorf("expected only the starred photo, got %+v", body.Photos)
	}
}

func TestGetPhoto(t *testing.T) {
	st := memory.New()
	id := seedPhoto(t, st, store.Photo{FilePath: "/photos/a.jpg", FileName: "a.jpg", Width: 800, Height: 600})
	s := newTestServer(t, st)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/photos/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var photo struct {
		ID     int64 `json:"id"`
		Width  int   `json:"width"`
		Height int   `json:"height"`
	}
	decodeBody(t, rec, &photo)
	if photo.ID != id || photo.Width != 800 || photo.Height != 600 {
		t.Errorf("unexpected photo response: %+v", photo)
	}
}

func TestGetPhotoErrors(t *testing.T) {
	s := newTestServer(t, memory.New())

	tests := []struct {
		name string
		path string
		want int
	}{
		{"missing photo", "/api/v1/photos/42", http.StatusNotFound},
		{"non-numeric id", "/api/v1/photos/abc", http.StatusBadRequest},
		{"zero id", "/api/v1/photos/0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodGet, tt.path, nil)
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestRatePhoto(t *testing.T) {
	st := memory.New()
	seedPhoto(t, st, store.Photo{FilePath: "/photos/a.jpg"})
	s := newTestServer(t, st)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/photos/1/rating", map[string]int{"rating": 4})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	photo, err := st.GetPhoto(context.Background(), 1)
	if err != nil || photo == nil {
		t.Fatalf("failed to load photo: %v", err)
	}
	if photo.Rating != 4 {
		t.Errorf("expected rating 4, got %d", photo.Rating)
	}
}

func TestRatePhotoValidation(t *testing.T) {
	st := memory.New()
	seedPhoto(t, st, store.Photo{FilePath: "/photos/a.jpg"})
	s := newTestServer(t, st)

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"rating too high", "/api/v1/photos/1/rating", map[string]int{"rating": 6}, http.StatusBadRequest},
		{"negative rating", "/api/v1/photos/1/rating", map[string]int{"rating": -1}, http.StatusBadRequest},
		{"unknown field", "/api/v1/photos/1/rating", map[string]int{"stars": 3}, http.StatusBadRequest},
		{"missing photo", "/api/v1/photos/42/rating", map[string]int{"rating": 3}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestStarAndRejectPhoto(t *testing.T) {
	st := memory.New()
	seedPhoto(t, st, store.Photo{FilePath: "/photos/a.jpg"})
	s := newTestServer(t, st)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/photos/1/star", map[string]bool{"value": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("star: expected status 200, got %d", rec.Code)
	}
	rec = doRequest(t, s, http.MethodPost, "/api/v1/photos/1/reject", map[string]bool{"value": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("reject: expected status 200, got %d", rec.Code)
	}

	photo, _ := st.GetPhoto(context.Background(), 1)
	if !photo.IsStarred || !photo.IsRejected {
		t.Errorf("expected photo starred and rejected, got starred=%v rejected=%v", photo.IsStarred, photo.IsRejected)
	}

	// Unstar again.
	doRequest(t, s, http.MethodPost, "/api/v1/photos/1/star", map[string]bool{"value": false})
	photo, _ = st.GetPhoto(context.Background(), 1)
	if photo.IsStarred {
		t.Error("expected photo unstarred")
	}
}

func TestPhotoNotes(t *testing.T) {
	st := memory.New()
	seedPhoto(t, st, store.Photo{FilePath: "/photos/a.jpg"})
	s := newTestServer(t, st)

	rec := doRequest(t, s, http.MethodPut, "/api/v1/photos/1/notes", map[string]string{"notes": "best of the hike, print this"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	photo, _ := st.GetPhoto(context.Background(), 1)
	if photo.Notes != "best of the hike, print this" {
		t.Errorf("notes not saved: %q", photo.Notes)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/photos/1", nil)
	var got struct {
		Notes string `json:"notes"`
	}
	decodeBody(t, rec, &got)
	if got.Notes != "best of the hike, print this" {
		t.Errorf("notes missing from photo response: %q", got.Notes)
	}

	// Empty string clears them.
	doRequest(t, s, http.MethodPut, "/api/v1/photos/1/notes", map[string]string{"notes": ""})
	photo, _ = st.GetPhoto(context.Background(), 1)
	if photo.Notes != "" {
		t.Errorf("notes not cleared: %q", photo.Notes)
	}

	rec = doRequest(t, s, http.MethodPut, "/api/v1/photos/999/notes", map[string]string{"notes": "x"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404 for missing photo, got %d", rec.Code)
	}
}

func TestSimilarPhotos(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	for _, p := range []string{"/photos/a.jpg", "/photos/b.jpg", "/photos/c.jpg"} {
		seedPhoto(t, st, store.Photo{FilePath: p})
	}
	// b is nearly parallel to a, c is orthogonal.
	vectors := map[int64][]float32{
		1: {1, 0, 0, 0},
		2: {0.99, 0.14, 0, 0},
		3: {0, 0, 1, 0},
	}
	for id, v := range vectors {
		if err := st.SaveEmbedding(ctx, store.StoredEmbedding{PhotoID: id, Embedding: v, Dim: len(v)}); err != nil {
			t.Fatalf("failed to seed embedding: %v", err)
		}
	}
	s := newTestServer(t, st)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/photos/1/similar?limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Results []struct {
			Photo struct {
				ID int64 `json:"id"`
			} `json:"photo"`
			Distance float64 `json:"distance"`
		} `json:"results"`
	}
	decodeBody(t, rec, &body)
	if len(body.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(body.Results))
	}
	if body.Results[0].Photo.ID != 2 {
		t.Errorf("expected photo 2 as nearest neighbor, got %d", body.Results[0].Photo.ID)
	}
	if body.Results[0].Distance >= body.Results[1].Distance {
		t.Errorf("expected results ordered by distance: %+v", body.Results)
	}
	for _, r := range body.Results {
		if r.Photo.ID == 1 {
			t.Error("query photo must not appear in its own results")
		}
	}
}

func TestSimilarPhotoWithoutEmbedding(t *testing.T) {
	st := memory.New()
	seedPhoto(t, st, store.Photo{FilePath: "/photos/a.jpg"})
	seedPhoto(t, st, store.Photo{FilePath: "/photos/b.jpg"})
	ctx := context.Background()
	if err := st.SaveEmbedding(ctx, store.StoredEmbedding{PhotoID: 2, Embedding: []float32{1, 0}, Dim: 2}); err != nil {
		t.Fatalf("failed to seed embedding: %v", err)
	}
	s := newTestServer(t, st)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/photos/1/similar", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for photo without embedding, got %d", rec.Code)
	}
}

func TestPhotoFaces(t *testing.T) {
	st := memory.New()
	seedPhoto(t, st, store.Photo{FilePath: "/photos/a.jpg"})
	ctx := context.Background()
	faces := []store.StoredFace{
		{FaceIndex: 0, Embedding: []float32{1, 0}, BBox: []float64{10, 10, 50, 60}, DetScore: 0.98},
		{FaceIndex: 1, Embedding: []float32{0, 1}, BBox: []float64{80, 20, 120, 70}, DetScore: 0.91},
	}
	if err := st.SaveFaces(ctx, 1, faces); err != nil {
		t.Fatalf("failed to seed faces: %v", err)
	}
	s := newTestServer(t, st)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/photos/1/faces", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Faces []struct {
			ID       int64     `json:"id"`
			BBox     []float64 `json:"bbox"`
			DetScore float64   `json:"det_score"`
		} `json:"faces"`
	}
	decodeBody(t, rec, &body)
	if len(body.Faces) != 2 {
		t.Fatalf("expected 2 faces, got %d", len(body.Faces))
	}
	if body.Faces[0].DetScore != 0.98 || len(body.Faces[0].BBox) != 4 {
		t.Errorf("unexpected first face: %+v", body.Faces[0])
	}
}
