// Package memory provides an in-memory implementation of store.Store for
// tests and offline experimentation. It mirrors the Postgres backend's
// semantics, including atomic assignment replacement, and supports error
// injection for failure-path tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/picbest/picbest/internal/store"
)

// Store is an in-memory store.Store.
type Store struct {
	mu sync.RWMutex

	photos     map[int64]*store.Photo
	embeddings map[int64]*store.StoredEmbedding
	faces      map[int64]*store.StoredFace
	clusters   map[int64]*store.Cluster
	persons    map[int64]*store.Person
	runs       map[string]*store.Run

	nextPhotoID   int64
	nextFaceID    int64
	nextClusterID int64
	nextPersonID  int64

	// Error injection
	LoadSnapshotError      error
	ReplaceAssignmentError error
	UpsertPhotoError       error
	SaveEmbeddingError     error
	SaveFacesError         error
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		photos:     make(map[int64]*store.Photo),
		embeddings: make(map[int64]*store.StoredEmbedding),
		faces:      make(map[int64]*store.StoredFace),
		clusters:   make(map[int64]*store.Cluster),
		persons:    make(map[int64]*store.Person),
		runs:       make(map[string]*store.Run),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// --- photos ---

func (s *Store) GetPhoto(ctx context.Context, id int64) (*store.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.photos[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *Store) GetPhotoByPath(ctx context.Context, path string) (*store.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.photos {
		if p.FilePath == path {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) ListPhotos(ctx context.Context) ([]store.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.photosWhere(func(p *store.Photo) bool { return true }), nil
}

func (s *Store) ListClusterPhotos(ctx context.Context, clusterID int64) ([]store.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.photosWhere(func(p *store.Photo) bool {
		return p.ClusterID != nil && *p.ClusterID == clusterID
	}), nil
}

func (s *Store) ListStarredPhotos(ctx context.Context) ([]store.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.photosWhere(func(p *store.Photo) bool { return p.IsStarred }), nil
}

// photosWhere returns copies of matching photos in ascending id order.
// Callers must hold at least a read lock.
func (s *Store) photosWhere(match func(*store.Photo) bool) []store.Photo {
	out := make([]store.Photo, 0, len(s.photos))
	for _, p := range s.photos {
		if match(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) CountPhotos(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.photos), nil
}

func (s *Store) UpsertPhoto(ctx context.Context, photo *store.Photo) error {
	if s.UpsertPhotoError != nil {
		return s.UpsertPhotoError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, existing := range s.photos {
		if existing.FilePath == photo.FilePath {
			photo.ID = existing.ID
			photo.CreatedAt = existing.CreatedAt
			photo.UpdatedAt = now
			cp := *photo
			s.photos[existing.ID] = &cp
			return nil
		}
	}

	s.nextPhotoID++
	photo.ID = s.nextPhotoID
	photo.CreatedAt = now
	photo.UpdatedAt = now
	cp := *photo
	s.photos[photo.ID] = &cp
	return nil
}

func (s *Store) SetRating(ctx context.Context, id int64, rating int) error {
	return s.updatePhoto(id, func(p *store.Photo) { p.Rating = rating })
}

func (s *Store) SetStarred(ctx context.Context, id int64, starred bool) error {
	return s.updatePhoto(id, func(p *store.Photo) { p.IsStarred = starred })
}

func (s *Store) SetRejected(ctx context.Context, id int64, rejected bool) error {
	return s.updatePhoto(id, func(p *store.Photo) { p.IsRejected = rejected })
}

func (s *Store) SetNotes(ctx context.Context, id int64, notes string) error {
	return s.updatePhoto(id, func(p *store.Photo) { p.Notes = notes })
}

func (s *Store) updatePhoto(id int64, mutate func(*store.Photo)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.photos[id]
	if !ok {
		return store.ErrNotFound
	}
	mutate(p)
	p.UpdatedAt = time.Now()
	return nil
}

// --- embeddings ---

func (s *Store) GetEmbedding(ctx context.Context, photoID int64) (*store.StoredEmbedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.embeddings[photoID]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (s *Store) ListEmbeddings(ctx context.Context) ([]store.StoredEmbedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.StoredEmbedding, 0, len(s.embeddings))
	for _, e := range s.embeddings {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PhotoID < out[j].PhotoID })
	return out, nil
}

func (s *Store) CountEmbeddings(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.embeddings), nil
}

func (s *Store) SaveEmbedding(ctx context.Context, emb store.StoredEmbedding) error {
	if s.SaveEmbeddingError != nil {
		return s.SaveEmbeddingError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	emb.CreatedAt = time.Now()
	s.embeddings[emb.PhotoID] = &emb
	return nil
}

// --- faces ---

func (s *Store) GetPhotoFaces(ctx context.Context, photoID int64) ([]store.StoredFace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.StoredFace
	for _, f := range s.faces {
		if f.PhotoID == photoID {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FaceIndex < out[j].FaceIndex })
	return out, nil
}

func (s *Store) ListFaces(ctx context.Context) ([]store.StoredFace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.StoredFace, 0, len(s.faces))
	for _, f := range s.faces {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CountFaces(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.faces), nil
}

func (s *Store) SaveFaces(ctx context.Context, photoID int64, faces []store.StoredFace) error {
	if s.SaveFacesError != nil {
		return s.SaveFacesError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, f := range s.faces {
		if f.PhotoID == photoID {
			delete(s.faces, id)
		}
	}
	for i := range faces {
		s.nextFaceID++
		f := faces[i]
		f.ID = s.nextFaceID
		f.PhotoID = photoID
		f.CreatedAt = time.Now()
		s.faces[f.ID] = &f
	}
	return nil
}

// --- assignments ---

func (s *Store) GetCluster(ctx context.Context, id int64) (*store.Cluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clusters[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *Store) ListClusters(ctx context.Context) ([]store.Cluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Cluster, 0, len(s.clusters))
	for _, c := range s.clusters {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetPerson(ctx context.Context, id int64) (*store.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.persons[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *Store) ListPersons(ctx context.Context) ([]store.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Person, 0, len(s.persons))
	for _, p := range s.persons {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ReplaceAssignment(ctx context.Context, a *store.Assignment) error {
	if s.ReplaceAssignmentError != nil {
		return s.ReplaceAssignmentError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Clear previous assignment.
	s.clusters = make(map[int64]*store.Cluster)
	s.persons = make(map[int64]*store.Person)
	for _, p := range s.photos {
		p.ClusterID = nil
		p.DuplicateGroupID = nil
		p.IsClusterRepresentative = false
	}
	for _, f := range s.faces {
		f.PersonID = nil
	}

	for photoID, groupID := range a.DuplicateGroups {
		if p, ok := s.photos[photoID]; ok {
			gid := groupID
			p.DuplicateGroupID = &gid
		}
	}

	for _, ac := range a.Clusters {
		s.nextClusterID++
		id := s.nextClusterID
		s.clusters[id] = &store.Cluster{
			ID:                    id,
			PhotoCount:            len(ac.PhotoIDs),
			RepresentativePhotoID: ac.RepresentativePhotoID,
		}
		for _, photoID := range ac.PhotoIDs {
			if p, ok := s.photos[photoID]; ok {
				cid := id
				p.ClusterID = &cid
				p.IsClusterRepresentative = photoID == ac.RepresentativePhotoID
			}
		}
	}

	for _, ap := range a.Persons {
		s.nextPersonID++
		id := s.nextPersonID
		s.persons[id] = &store.Person{
			ID:                   id,
			PhotoCount:           len(ap.PhotoIDs),
			RepresentativeFaceID: ap.RepresentativeFaceID,
		}
		for _, faceID := range ap.FaceIDs {
			if f, ok := s.faces[faceID]; ok {
				pid := id
				f.PersonID = &pid
			}
		}
	}

	return nil
}

func (s *Store) SetPersonName(ctx context.Context, id int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Name = name
	return nil
}

// --- runs ---

func (s *Store) CreateRun(ctx context.Context, run *store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *Store) UpdateRunProgress(ctx context.Context, id, phase string, current, total int, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return store.ErrNotFound
	}
	r.Status = store.RunRunning
	r.Phase = phase
	r.Current = current
	r.Total = total
	r.Message = message
	return nil
}

func (s *Store) FinishRun(ctx context.Context, id, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return store.ErrNotFound
	}
	r.Status = status
	r.Error = errMsg
	now := time.Now()
	r.CompletedAt = &now
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

// --- snapshot ---

func (s *Store) LoadSnapshot(ctx context.Context) (*store.Snapshot, error) {
	if s.LoadSnapshotError != nil {
		return nil, s.LoadSnapshotError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &store.Snapshot{
		Embeddings: make(map[int64][]float32, len(s.embeddings)),
	}
	snap.Photos = s.photosWhere(func(p *store.Photo) bool { return true })
	for id, e := range s.embeddings {
		snap.Embeddings[id] = e.Embedding
	}
	faces, _ := s.listFacesLocked()
	snap.Faces = faces
	return snap, nil
}

func (s *Store) listFacesLocked() ([]store.StoredFace, error) {
	out := make([]store.StoredFace, 0, len(s.faces))
	for _, f := range s.faces {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
