package web

import (
	"context"
	"net/http"
	"testing"

	"github.com/picbest/picbest/internal/store"
	"github.com/picbest/picbest/internal/store/memory"
)

// seedAssignment publishes a two-cluster, one-person assignment over four
// photos: cluster 1 = {1, 2, 3} represented by 2, cluster 2 = {4}.
func seedAssignment(t *testing.T, st *memory.Store) {
	t.Helper()
	ctx := context.Background()

	sharp := func(v float64) *float64 { return &v }
	seedPhoto(t, st, store.Photo{FilePath: "/photos/a.jpg", Sharpness: sharp(50)})
	seedPhoto(t, st, store.Photo{FilePath: "/photos/b.jpg", Sharpness: sharp(200)})
	seedPhoto(t, st, store.Photo{FilePath: "/photos/c.jpg", Sharpness: sharp(120)})
	seedPhoto(t, st, store.Photo{FilePath: "/photos/d.jpg"})

	faces := []store.StoredFace{
		{FaceIndex: 0, Embedding: []float32{1, 0}, BBox: []float64{0, 0, 100, 100}, DetScore: 0.99},
	}
	if err := st.SaveFaces(ctx, 2, faces); err != nil {
		t.Fatalf("failed to seed faces: %v", err)
	}

	a := &store.Assignment{
		DuplicateGroups: map[int64]int64{},
		Clusters: []store.AssignedCluster{
			{PhotoIDs: []int64{1, 2, 3}, RepresentativePhotoID: 2},
			{PhotoIDs: []int64{4}, RepresentativePhotoID: 4},
		},
		Persons: []store.AssignedPerson{
			{FaceIDs: []int64{1}, PhotoIDs: []int64{2}, RepresentativeFaceID: 1},
		},
	}
	if err := st.ReplaceAssignment(ctx, a); err != nil {
		t.Fatalf("failed to seed assignment: %v", err)
	}
}

func TestListClusters(t *testing.T) {
	st := memory.New()
	seedAssignment(t, st)
	s := newTestServer(t, st)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/clusters", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Clusters []struct {
			ID                    int64 `json:"id"`
			PhotoCount            int   `json:"photo_count"`
			RepresentativePhotoID int64 `json:"representative_photo_id"`
		} `json:"clusters"`
	}
	decodeBody(t, rec, &body)
	if len(body.Clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(body.Clusters))
	}
	// Largest cluster first.
	if body.Clusters[0].PhotoCount != 3 || body.Clusters[1].PhotoCount != 1 {
		t.Errorf("expected clusters ordered by size, got %+v", body.Clusters)
	}
	if body.Clusters[0].RepresentativePhotoID != 2 {
		t.Errorf("expected representative photo 2, got %d", body.Clusters[0].RepresentativePhotoID)
	}
}

func TestGetCluster(t *testing.T) {
	st := memory.New()
	seedAssignment(t, st)
	s := newTestServer(t, st)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/clusters/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/clusters/99", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for missing cluster, got %d", rec.Code)
	}
}

func TestClusterPhotosOrderedByQuality(t *testing.T) {
	st := memory.New()
	seedAssignment(t, st)
	s := newTestServer(t, st)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/clusters/1/photos", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Photos []struct {
			ID int64 `json:"id"`
		} `json:"photos"`
	}
	decodeBody(t, rec, &body)
	if len(body.Photos) != 3 {
		t.Fatalf("expected 3 photos, got %d", len(body.Photos))
	}
	// Sharpness 200, 120, 50 -> photo ids 2, 3, 1.
	want := []int64{2, 3, 1}
	for i, w := range want {
		if body.Photos[i].ID != w {
			t.Errorf("position %d: expected photo %d, got %d", i, w, body.Photos[i].ID)
		}
	}
}

func TestListAndGetPersons(t *testing.T) {
	st := memory.New()
	seedAssignment(t, st)
	s := newTestServer(t, st)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/persons", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Persons []struct {
			ID                   int64 `json:"id"`
			PhotoCount           int   `json:"photo_count"`
			RepresentativeFaceID int64 `json:"representative_face_id"`
		} `json:"persons"`
	}
	decodeBody(t, rec, &body)
	if len(body.Persons) != 1 {
		t.Fatalf("expected 1 person, got %d", len(body.Persons))
	}
	if body.Persons[0].RepresentativeFaceID != 1 {
		t.Errorf("expected representative face 1, got %d", body.Persons[0].RepresentativeFaceID)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/persons/99", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for missing person, got %d", rec.Code)
	}
}

func TestRenamePerson(t *testing.T) {
	st := memory.New()
	seedAssignment(t, st)
	s := newTestServer(t, st)

	rec := doRequest(t, s, http.MethodPut, "/api/v1/persons/1/name", map[string]string{"name": "Tomáš"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	p, err := st.GetPerson(context.Background(), 1)
	if err != nil || p == nil {
		t.Fatalf("failed to load person: %v", err)
	}
	if p.Name != "Tomáš" {
		t.Errorf("expected raw display name preserved, got %q", p.Name)
	}
}

func TestRenamePersonValidation(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	seedPhoto(t, st, store.Photo{FilePath: "/photos/a.jpg"})
	faces := []store.StoredFace{
		{FaceIndex: 0, Embedding: []float32{1, 0}, BBox: []float64{0, 0, 10, 10}},
		{FaceIndex: 1, Embedding: []float32{0, 1}, BBox: []float64{20, 0, 30, 10}},
	}
	if err := st.SaveFaces(ctx, 1, faces); err != nil {
		t.Fatalf("failed to seed faces: %v", err)
	}
	a := &store.Assignment{
		DuplicateGroups: map[int64]int64{},
		Persons: []store.AssignedPerson{
			{FaceIDs: []int64{1}, PhotoIDs: []int64{1}, RepresentativeFaceID: 1},
			{FaceIDs: []int64{2}, PhotoIDs: []int64{1}, RepresentativeFaceID: 2},
		},
	}
	if err := st.ReplaceAssignment(ctx, a); err != nil {
		t.Fatalf("failed to seed assignment: %v", err)
	}
	if err := st.SetPersonName(ctx, 1, "Tomáš"); err != nil {
		t.Fatalf("failed to name person: %v", err)
	}
	s := newTestServer(t, st)

	tests := []struct {
		name string
		path string
		body map[string]string
		want int
	}{
		{"empty name", "/api/v1/persons/2/name", map[string]string{"name": "   "}, http.StatusBadRequest},
		{"duplicate after normalization", "/api/v1/persons/2/name", map[string]string{"name": "tomas"}, http.StatusConflict},
		{"rename to own name", "/api/v1/persons/1/name", map[string]string{"name": "TOMAS"}, http.StatusOK},
		{"missing person", "/api/v1/persons/99/name", map[string]string{"name": "Alice"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPut, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestStats(t *testing.T) {
	st := memory.New()
	seedAssignment(t, st)
	ctx := context.Background()
	if err := st.SaveEmbedding(ctx, store.StoredEmbedding{PhotoID: 1, Embedding: []float32{1, 0}, Dim: 2}); err != nil {
		t.Fatalf("failed to seed embedding: %v", err)
	}
	if err := st.SetStarred(ctx, 1, true); err != nil {
		t.Fatalf("failed to star photo: %v", err)
	}
	if err := st.SetRating(ctx, 2, 5); err != nil {
		t.Fatalf("failed to rate photo: %v", err)
	}
	s := newTestServer(t, st)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var stats struct {
		Photos     int `json:"photos"`
		Embeddings int `json:"embeddings"`
		Faces      int `json:"faces"`
		Clusters   int `json:"clusters"`
		Persons    int `json:"persons"`
		Starred    int `json:"starred"`
		Rated      int `json:"rated"`
	}
	decodeBody(t, rec, &stats)
	if stats.Photos != 4 || stats.Embeddings != 1 || stats.Faces != 1 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	if stats.Clusters != 2 || stats.Persons != 1 {
		t.Errorf("unexpected assignment counts: %+v", stats)
	}
	if stats.Starred != 1 || stats.Rated != 1 {
		t.Errorf("unexpected curation counts: %+v", stats)
	}
}
