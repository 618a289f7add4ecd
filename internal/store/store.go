package store

import "context"

// PhotoReader provides read access to indexed photos.
type PhotoReader interface {
	// GetPhoto retrieves a photo by id, returns nil if not found.
	GetPhoto(ctx context.Context, id int64) (*Photo, error)
	// GetPhotoByPath retrieves a photo by file path, returns nil if not found.
	GetPhotoByPath(ctx context.Context, path string) (*Photo, error)
	// ListPhotos returns all photos ordered by ascending id.
	ListPhotos(ctx context.Context) ([]Photo, error)
	// ListClusterPhotos returns the photos of one cluster ordered by ascending id.
	ListClusterPhotos(ctx context.Context, clusterID int64) ([]Photo, error)
	// ListStarredPhotos returns all starred photos ordered by ascending id.
	ListStarredPhotos(ctx context.Context) ([]Photo, error)
	// CountPhotos returns the total number of indexed photos.
	CountPhotos(ctx context.Context) (int, error)
}

// PhotoWriter provides write access to photos and their curation state.
type PhotoWriter interface {
	PhotoReader

	// UpsertPhoto inserts a photo or updates the existing row with the same
	// file path. The photo's ID field is populated on return.
	UpsertPhoto(ctx context.Context, photo *Photo) error
	// SetRating sets the 0-5 star rating of a photo.
	SetRating(ctx context.Context, id int64, rating int) error
	// SetStarred marks or unmarks a photo as starred.
	SetStarred(ctx context.Context, id int64, starred bool) error
	// SetRejected marks or unmarks a photo as rejected.
	SetRejected(ctx context.Context, id int64, rejected bool) error
	// SetNotes replaces the free-form notes of a photo.
	SetNotes(ctx context.Context, id int64, notes string) error
}

// EmbeddingReader provides read access to image embeddings.
type EmbeddingReader interface {
	// GetEmbedding retrieves the embedding for a photo, returns nil if not found.
	GetEmbedding(ctx context.Context, photoID int64) (*StoredEmbedding, error)
	// ListEmbeddings returns all embeddings ordered by ascending photo id.
	ListEmbeddings(ctx context.Context) ([]StoredEmbedding, error)
	// CountEmbeddings returns the number of stored embeddings.
	CountEmbeddings(ctx context.Context) (int, error)
}

// EmbeddingWriter provides write access to image embeddings.
type EmbeddingWriter interface {
	EmbeddingReader

	// SaveEmbedding stores or replaces the embedding for a photo.
	SaveEmbedding(ctx context.Context, emb StoredEmbedding) error
}

// FaceReader provides read access to detected faces.
type FaceReader interface {
	// GetPhotoFaces returns the faces of one photo ordered by face index.
	GetPhotoFaces(ctx context.Context, photoID int64) ([]StoredFace, error)
	// ListFaces returns all faces ordered by ascending face id.
	ListFaces(ctx context.Context) ([]StoredFace, error)
	// CountFaces returns the number of stored faces.
	CountFaces(ctx context.Context) (int, error)
}

// FaceWriter provides write access to detected faces.
type FaceWriter interface {
	FaceReader

	// SaveFaces replaces all faces of a photo.
	SaveFaces(ctx context.Context, photoID int64, faces []StoredFace) error
}

// AssignmentReader provides read access to the current grouping assignment.
type AssignmentReader interface {
	// GetCluster retrieves a cluster by id, returns nil if not found.
	GetCluster(ctx context.Context, id int64) (*Cluster, error)
	// ListClusters returns all clusters ordered by ascending id.
	ListClusters(ctx context.Context) ([]Cluster, error)
	// ListPersons returns all persons ordered by ascending id.
	ListPersons(ctx context.Context) ([]Person, error)
	// GetPerson retrieves a person by id, returns nil if not found.
	GetPerson(ctx context.Context, id int64) (*Person, error)
}

// AssignmentWriter persists the output of a clustering run.
type AssignmentWriter interface {
	AssignmentReader

	// ReplaceAssignment atomically replaces the previous duplicate-group,
	// cluster, and person assignment with the given one. On error the
	// previous assignment must remain untouched.
	ReplaceAssignment(ctx context.Context, a *Assignment) error
	// SetPersonName assigns a display name to a person. Names are normalized
	// (lowercase, no diacritics) for duplicate detection before saving.
	SetPersonName(ctx context.Context, id int64, name string) error
}

// RunWriter tracks clustering job progress for the web API.
type RunWriter interface {
	// CreateRun records a new run in pending state.
	CreateRun(ctx context.Context, run *Run) error
	// UpdateRunProgress updates phase/current/total/message of a running job.
	UpdateRunProgress(ctx context.Context, id, phase string, current, total int, message string) error
	// FinishRun marks a run completed or failed.
	FinishRun(ctx context.Context, id, status, errMsg string) error
	// GetRun retrieves a run by id, returns nil if not found.
	GetRun(ctx context.Context, id string) (*Run, error)
}

// Store is the full persistence surface used by the CLI and web layers.
type Store interface {
	PhotoWriter
	EmbeddingWriter
	FaceWriter
	AssignmentWriter
	RunWriter

	// LoadSnapshot materializes the read-only input of one clustering run.
	LoadSnapshot(ctx context.Context) (*Snapshot, error)

	Close() error
}
