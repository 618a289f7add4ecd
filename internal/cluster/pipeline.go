package cluster

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/picbest/picbest/internal/config"
	"github.com/picbest/picbest/internal/store"
)

// Store is the slice of the storage layer the engine needs: a consistent
// snapshot in, a full replacement assignment out.
type Store interface {
	LoadSnapshot(ctx context.Context) (*store.Snapshot, error)
	ReplaceAssignment(ctx context.Context, a *store.Assignment) error
}

// Engine runs one full grouping pass: duplicate detection and the
// distance/cluster/refine chain run concurrently, then the combined
// assignment replaces the previous one in a single atomic write.
type Engine struct {
	store Store
	cfg   config.ClusteringConfig
}

// ProgressInfo contains progress information for callbacks
type ProgressInfo struct {
	Phase   string // "loading", "duplicates", "clustering", "refining", "saving"
	Current int
	Total   int
	Message string
}

type RunOptions struct {
	// OnProgress receives phase transitions. It is only ever invoked from
	// the goroutine calling Run, never concurrently, so callbacks need no
	// locking of their own.
	OnProgress func(ProgressInfo) // Optional progress callback for web UI
}

type RunResult struct {
	PhotoCount      int
	DuplicateGroups int
	ClusterCount    int
	NoiseCount      int // Photos the Cluster Engine left unclustered, persisted as singletons
	PersonCount     int
	FaceCount       int
	UsedFallback    bool // True when DBSCAN ran instead of the hierarchical method
}

func New(st Store, cfg config.ClusteringConfig) *Engine {
	return &Engine{store: st, cfg: cfg}
}

// Run executes the pipeline over the current snapshot. On any error the
// previous assignment remains valid; partial results are never published.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	progress := opts.OnProgress
	if progress == nil {
		progress = func(ProgressInfo) {}
	}

	progress(ProgressInfo{Phase: "loading"})
	snap, err := e.store.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	result := &RunResult{PhotoCount: len(snap.Photos), FaceCount: len(snap.Faces)}
	if len(snap.Photos) == 0 {
		// Degenerate input reports an empty result, it is not an error.
		if err := e.store.ReplaceAssignment(ctx, &store.Assignment{
			DuplicateGroups: map[int64]int64{},
		}); err != nil {
			return nil, fmt.Errorf("failed to save empty assignment: %w", err)
		}
		return result, nil
	}

	// Duplicate grouping and visual clustering never read each other's
	// output, so the two branches run concurrently.
	var (
		wg           sync.WaitGroup
		dupGroups    map[int64]int64
		labels       []int
		clustered    []store.Photo
		usedFallback bool
		clusterErr   error
	)

	// Both phases are announced up front: the callback must stay on this
	// goroutine while the workers run.
	progress(ProgressInfo{Phase: "duplicates", Total: len(snap.Photos)})
	wg.Add(1)
	go func() {
		defer wg.Done()
		dupGroups = GroupDuplicates(snap.Photos, e.cfg.DHashThreshold)
	}()

	progress(ProgressInfo{Phase: "clustering", Total: len(snap.Photos)})
	wg.Add(1)
	go func() {
		defer wg.Done()
		clustered, labels, usedFallback, clusterErr = e.clusterPhotos(snap)
	}()
	wg.Wait()

	if clusterErr != nil {
		return nil, clusterErr
	}
	result.UsedFallback = usedFallback
	for _, l := range labels {
		if l == NoiseLabel {
			result.NoiseCount++
		}
	}

	// Identity refinement is active only when at least one face embedding
	// exists anywhere in the collection.
	persons := buildPersons(snap.Faces, e.cfg.FaceDistanceThreshold)
	if len(persons) > 0 {
		progress(ProgressInfo{Phase: "refining", Total: len(clustered)})
		labels = RefineClusters(labels, photoIDsOf(clustered), personSetsOf(clustered, persons))
	}

	assignment := buildAssignment(dupGroups, clustered, labels, persons)
	result.DuplicateGroups = countGroups(dupGroups)
	result.ClusterCount = len(assignment.Clusters)
	result.PersonCount = len(assignment.Persons)

	progress(ProgressInfo{Phase: "saving"})
	if err := e.store.ReplaceAssignment(ctx, assignment); err != nil {
		return nil, fmt.Errorf("failed to save assignment: %w", err)
	}

	return result, nil
}

// clusterPhotos runs the distance/cluster chain over photos that have an
// embedding. Photos without one are excluded here but still receive a
// duplicate-group id from the other branch.
func (e *Engine) clusterPhotos(snap *store.Snapshot) ([]store.Photo, []int, bool, error) {
	var clustered []store.Photo
	for _, p := range snap.Photos {
		if len(snap.Embeddings[p.ID]) > 0 {
			clustered = append(clustered, p)
		}
	}
	sort.Slice(clustered, func(i, j int) bool { return clustered[i].ID < clustered[j].ID })

	if len(clustered) == 0 {
		return nil, nil, false, nil
	}

	embeddings := make([][]float32, len(clustered))
	dim := len(snap.Embeddings[clustered[0].ID])
	for i, p := range clustered {
		emb := snap.Embeddings[p.ID]
		if len(emb) != dim {
			// Corrupt matrix shape is the one fatal input condition.
			return nil, nil, false, fmt.Errorf("embedding dimension mismatch: photo %d has %d, expected %d", p.ID, len(emb), dim)
		}
		embeddings[i] = emb
	}

	timestamps := make([]*time.Time, len(clustered))
	for i, p := range clustered {
		timestamps[i] = p.TakenAt
	}

	visual := VisualDistanceMatrix(embeddings)
	temporal := TimeDistanceMatrix(timestamps, e.cfg.TimeWindow, e.cfg.MaxTimeWindow)
	combined, err := CombineDistances(visual, temporal, e.cfg.TimeWeight)
	if err != nil {
		return nil, nil, false, err
	}

	labels, usedFallback := e.runClustering(combined)
	return clustered, labels, usedFallback, nil
}

// runClustering picks the configured algorithm. A panic inside the
// hierarchical method degrades to the fixed-epsilon fallback with a logged
// warning rather than failing the run.
func (e *Engine) runClustering(dist [][]float64) (labels []int, usedFallback bool) {
	if e.cfg.Algorithm == config.AlgorithmDBSCAN {
		return DBSCAN(dist, e.cfg.FallbackEps, e.cfg.MinSamples), true
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("warning: hierarchical clustering failed (%v), falling back to dbscan", r)
			labels = DBSCAN(dist, e.cfg.FallbackEps, e.cfg.MinSamples)
			usedFallback = true
		}
	}()
	return HDBSCAN(dist, e.cfg.MinClusterSize, e.cfg.MinSamples), false
}

// buildPersons clusters all face embeddings into identities. Faces are
// processed in (photo id, face index) order so person numbering is stable.
// The representative face is the one with the largest bounding-box area,
// lowest face id on ties.
func buildPersons(faces []store.StoredFace, threshold float64) []store.AssignedPerson {
	withEmbedding := make([]store.StoredFace, 0, len(faces))
	for _, f := range faces {
		if len(f.Embedding) > 0 {
			withEmbedding = append(withEmbedding, f)
		}
	}
	if len(withEmbedding) == 0 {
		return nil
	}
	sort.Slice(withEmbedding, func(i, j int) bool {
		if withEmbedding[i].PhotoID != withEmbedding[j].PhotoID {
			return withEmbedding[i].PhotoID < withEmbedding[j].PhotoID
		}
		return withEmbedding[i].FaceIndex < withEmbedding[j].FaceIndex
	})

	embeddings := make([][]float32, len(withEmbedding))
	for i, f := range withEmbedding {
		embeddings[i] = f.Embedding
	}
	labels := ClusterFaces(embeddings, threshold)

	byLabel := make(map[int][]store.StoredFace)
	maxLabel := -1
	for i, l := range labels {
		if l == NoiseLabel {
			continue
		}
		byLabel[l] = append(byLabel[l], withEmbedding[i])
		if l > maxLabel {
			maxLabel = l
		}
	}

	persons := make([]store.AssignedPerson, 0, len(byLabel))
	for l := 0; l <= maxLabel; l++ {
		members := byLabel[l]
		if len(members) == 0 {
			continue
		}

		rep := members[0]
		for _, f := range members[1:] {
			if f.BBoxArea() > rep.BBoxArea() || (f.BBoxArea() == rep.BBoxArea() && f.ID < rep.ID) {
				rep = f
			}
		}

		p := store.AssignedPerson{RepresentativeFaceID: rep.ID}
		seen := make(map[int64]bool)
		for _, f := range members {
			p.FaceIDs = append(p.FaceIDs, f.ID)
			if !seen[f.PhotoID] {
				seen[f.PhotoID] = true
				p.PhotoIDs = append(p.PhotoIDs, f.PhotoID)
			}
		}
		persons = append(persons, p)
	}

	return persons
}

func photoIDsOf(photos []store.Photo) []int64 {
	ids := make([]int64, len(photos))
	for i, p := range photos {
		ids[i] = p.ID
	}
	return ids
}

// personSetsOf maps each photo to the person ordinals present in it. Person
// ordinals are positions in the persons slice, which is all the refiner
// needs to compare sets.
func personSetsOf(photos []store.Photo, persons []store.AssignedPerson) [][]int64 {
	byPhoto := make(map[int64][]int64)
	for ordinal, p := range persons {
		for _, photoID := range p.PhotoIDs {
			byPhoto[photoID] = append(byPhoto[photoID], int64(ordinal))
		}
	}

	sets := make([][]int64, len(photos))
	for i, p := range photos {
		sets[i] = byPhoto[p.ID]
	}
	return sets
}

// buildAssignment turns labels into the persisted output. Noise photos
// become singleton clusters, and final cluster ordering follows each
// cluster's lowest member photo id.
func buildAssignment(dupGroups map[int64]int64, clustered []store.Photo, labels []int, persons []store.AssignedPerson) *store.Assignment {
	byLabel := make(map[int][]store.Photo)
	var singletons [][]store.Photo
	for i, p := range clustered {
		if labels[i] == NoiseLabel {
			singletons = append(singletons, []store.Photo{p})
			continue
		}
		byLabel[labels[i]] = append(byLabel[labels[i]], p)
	}

	groups := make([][]store.Photo, 0, len(byLabel)+len(singletons))
	for _, members := range byLabel {
		groups = append(groups, members)
	}
	groups = append(groups, singletons...)
	for _, members := range groups {
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0].ID < groups[j][0].ID })

	clusters := make([]store.AssignedCluster, 0, len(groups))
	for _, members := range groups {
		clusters = append(clusters, store.AssignedCluster{
			PhotoIDs:              photoIDsOf(members),
			RepresentativePhotoID: SelectRepresentative(members),
		})
	}

	return &store.Assignment{
		DuplicateGroups: dupGroups,
		Clusters:        clusters,
		Persons:         persons,
	}
}

func countGroups(groups map[int64]int64) int {
	seen := make(map[int64]bool, len(groups))
	for _, g := range groups {
		seen[g] = true
	}
	return len(seen)
}
