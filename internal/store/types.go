// Package store defines the persistent data model of the curator: photos and
// their fingerprints, embedding vectors, detected faces, and the grouping
// assignments (duplicate groups, clusters, persons) produced by a clustering
// run. Backends implement the interfaces in store.go; the clustering engine
// only ever sees an immutable Snapshot and hands back a complete Assignment.
package store

import "time"

// Photo is a single indexed image. The clustering engine treats it as
// read-only input; only the indexer and the rating API mutate photo rows.
type Photo struct {
	ID       int64
	FilePath string
	FileName string
	Folder   string

	FileHash  string     // MD5 of file bytes
	DHash     string     // 64-bit difference hash as hex, empty when unavailable
	TakenAt   *time.Time // EXIF capture time, nil when unknown
	Width     int
	Height    int
	FileSize  int64
	Sharpness *float64 // Laplacian variance, nil when not computed

	// Curation state owned by the rating API.
	Rating     int
	IsStarred  bool
	IsRejected bool
	Notes      string

	// Grouping state owned by the clustering engine.
	ClusterID               *int64
	DuplicateGroupID        *int64
	IsClusterRepresentative bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PixelArea returns width*height, the resolution tie-breaker for
// representative selection.
func (p *Photo) PixelArea() int64 {
	return int64(p.Width) * int64(p.Height)
}

// StoredEmbedding is a fixed-dimension image embedding produced by the
// external embedding sidecar.
type StoredEmbedding struct {
	PhotoID   int64
	Embedding []float32
	Model     string
	Dim       int
	CreatedAt time.Time
}

// StoredFace is a detected face with its embedding vector.
type StoredFace struct {
	ID        int64
	PhotoID   int64
	FaceIndex int
	Embedding []float32
	BBox      []float64 // [x1, y1, x2, y2] in pixel coordinates
	DetScore  float64
	PersonID  *int64 // assigned by identity clustering, nil before the first run
	CreatedAt time.Time
}

// BBoxArea returns the area of the face bounding box in square pixels.
func (f *StoredFace) BBoxArea() float64 {
	if len(f.BBox) != 4 {
		return 0
	}
	w := f.BBox[2] - f.BBox[0]
	h := f.BBox[3] - f.BBox[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Cluster is a group of visually/temporally/identity-related photos.
type Cluster struct {
	ID                    int64
	PhotoCount            int
	RepresentativePhotoID int64
}

// Person is a cluster of face embeddings believed to be the same individual.
type Person struct {
	ID                   int64
	Name                 string // user-assigned via the rating API, empty until named
	PhotoCount           int
	RepresentativeFaceID int64
}

// Run records the progress and outcome of one clustering job.
type Run struct {
	ID          string // UUID
	Status      string // pending, running, completed, failed
	Phase       string
	Current     int
	Total       int
	Message     string
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// Run status values.
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Snapshot is the read-only input of one clustering run: all photos plus
// their embeddings and faces, keyed for direct lookup. Backends materialize
// it fully before the run starts so the engine never touches the database.
type Snapshot struct {
	Photos     []Photo
	Embeddings map[int64][]float32 // photo id -> embedding
	Faces      []StoredFace
}

// AssignedCluster is one output cluster of a run, listed in persist order.
type AssignedCluster struct {
	PhotoIDs              []int64
	RepresentativePhotoID int64
}

// AssignedPerson is one output person of a run.
type AssignedPerson struct {
	FaceIDs              []int64
	PhotoIDs             []int64
	RepresentativeFaceID int64
}

// Assignment is the complete output of one clustering run. It entirely
// replaces the previous assignment; backends must persist it atomically so a
// failed run leaves the old assignment intact.
type Assignment struct {
	// DuplicateGroups maps photo id to its duplicate-group ordinal (1-based,
	// assigned in ascending order of each group's smallest photo id).
	DuplicateGroups map[int64]int64

	Clusters []AssignedCluster
	Persons  []AssignedPerson
}
