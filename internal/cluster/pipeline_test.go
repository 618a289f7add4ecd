package cluster

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/picbest/picbest/internal/config"
	"github.com/picbest/picbest/internal/store"
	"github.com/picbest/picbest/internal/store/memory"
)

// unitVec returns a 2D unit vector at the given angle, handy for building
// embeddings with a known cosine distance (1 - cos of the angle between).
func unitVec(angle float64) []float32 {
	return []float32{float32(math.Cos(angle)), float32(math.Sin(angle))}
}

type seedSpec struct {
	path    string
	dhash   string
	takenAt *time.Time
	emb     []float32
	faces   [][]float32
}

func seedStore(t *testing.T, specs []seedSpec) *memory.Store {
	t.Helper()
	ctx := context.Background()
	st := memory.New()

	for _, s := range specs {
		photo := &store.Photo{
			FilePath: s.path,
			FileName: s.path,
			DHash:    s.dhash,
			TakenAt:  s.takenAt,
			Width:    100,
			Height:   100,
		}
		if err := st.UpsertPhoto(ctx, photo); err != nil {
			t.Fatalf("seeding photo %s: %v", s.path, err)
		}
		if s.emb != nil {
			err := st.SaveEmbedding(ctx, store.StoredEmbedding{
				PhotoID:   photo.ID,
				Embedding: s.emb,
				Dim:       len(s.emb),
			})
			if err != nil {
				t.Fatalf("seeding embedding for %s: %v", s.path, err)
			}
		}
		if len(s.faces) > 0 {
			faces := make([]store.StoredFace, len(s.faces))
			for i, femb := range s.faces {
				faces[i] = store.StoredFace{
					FaceIndex: i,
					Embedding: femb,
					BBox:      []float64{0, 0, 50, 50},
				}
			}
			if err := st.SaveFaces(ctx, photo.ID, faces); err != nil {
				t.Fatalf("seeding faces for %s: %v", s.path, err)
			}
		}
	}

	return st
}

func runEngine(t *testing.T, st *memory.Store, cfg config.ClusteringConfig) *RunResult {
	t.Helper()
	result, err := New(st, cfg).Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("pipeline run failed: %v", err)
	}
	return result
}

// clusterPartition maps each photo id to the set of photo ids sharing its
// cluster, independent of cluster numbering.
func clusterPartition(t *testing.T, st *memory.Store) map[int64][]int64 {
	t.Helper()
	ctx := context.Background()
	photos, err := st.ListPhotos(ctx)
	if err != nil {
		t.Fatalf("listing photos: %v", err)
	}

	byCluster := make(map[int64][]int64)
	for _, p := range photos {
		if p.ClusterID != nil {
			byCluster[*p.ClusterID] = append(byCluster[*p.ClusterID], p.ID)
		}
	}
	partition := make(map[int64][]int64)
	for _, members := range byCluster {
		for _, id := range members {
			partition[id] = members
		}
	}
	return partition
}

func TestRunIdenticalHashesOneDuplicateGroup(t *testing.T) {
	st := seedStore(t, []seedSpec{
		{path: "a.jpg", dhash: "a1b2c3d4e5f60789"},
		{path: "b.jpg", dhash: "a1b2c3d4e5f60789"},
		{path: "c.jpg", dhash: "a1b2c3d4e5f60789"},
	})

	result := runEngine(t, st, config.DefaultClustering())
	if result.DuplicateGroups != 1 {
		t.Errorf("got %d duplicate groups, want 1", result.DuplicateGroups)
	}

	photos, _ := st.ListPhotos(context.Background())
	for _, p := range photos {
		if p.DuplicateGroupID == nil || *p.DuplicateGroupID != 1 {
			t.Errorf("photo %d: duplicate group %v, want 1", p.ID, p.DuplicateGroupID)
		}
	}
}

func TestRunNearPhotosShareCluster(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	later := base.Add(2 * time.Minute)

	// Cosine distance ~0.01, timestamps 2 minutes apart, w=0.3 gives a
	// combined distance around 0.007.
	st := seedStore(t, []seedSpec{
		{path: "a.jpg", dhash: "0000000000000000", takenAt: &base, emb: unitVec(0)},
		{path: "b.jpg", dhash: "ffffffffffffffff", takenAt: &later, emb: unitVec(0.1415)},
	})

	result := runEngine(t, st, config.DefaultClustering())
	if result.ClusterCount != 1 {
		t.Fatalf("got %d clusters, want 1", result.ClusterCount)
	}

	partition := clusterPartition(t, st)
	if len(partition[1]) != 2 {
		t.Errorf("photos 1 and 2 should share a cluster, partition: %v", partition)
	}
}

func TestRunIdentitySplitsVisualCluster(t *testing.T) {
	// Visually near-identical pair, but each photo shows a different person.
	st := seedStore(t, []seedSpec{
		{path: "a.jpg", dhash: "0000000000000000", emb: unitVec(0), faces: [][]float32{{0, 0}}},
		{path: "b.jpg", dhash: "ffffffffffffffff", emb: unitVec(0.02), faces: [][]float32{{1, 1}}},
	})

	result := runEngine(t, st, config.DefaultClustering())
	if result.PersonCount != 2 {
		t.Errorf("got %d persons, want 2", result.PersonCount)
	}
	if result.ClusterCount != 2 {
		t.Errorf("got %d clusters after refinement, want 2", result.ClusterCount)
	}

	partition := clusterPartition(t, st)
	if len(partition[1]) != 1 || len(partition[2]) != 1 {
		t.Errorf("identity refinement should split the pair, partition: %v", partition)
	}

	faces, _ := st.ListFaces(context.Background())
	for _, f := range faces {
		if f.PersonID == nil {
			t.Errorf("face %d has no person assigned", f.ID)
		}
	}
}

func TestRunMissingEmbeddingStillGetsDuplicateGroup(t *testing.T) {
	st := seedStore(t, []seedSpec{
		{path: "a.jpg", dhash: "a1b2c3d4e5f60789", emb: unitVec(0)},
		{path: "b.jpg", dhash: "a1b2c3d4e5f60789"}, // No embedding
	})

	runEngine(t, st, config.DefaultClustering())

	photos, _ := st.ListPhotos(context.Background())
	for _, p := range photos {
		if p.DuplicateGroupID == nil {
			t.Errorf("photo %d missing duplicate group", p.ID)
		}
	}
	// The embedding-less photo is excluded from clustering entirely.
	if photos[1].ClusterID != nil {
		t.Errorf("photo without embedding got cluster %d", *photos[1].ClusterID)
	}
	if photos[0].ClusterID == nil {
		t.Error("photo with embedding got no cluster")
	}
}

func TestRunNoiseBecomesSingletonCluster(t *testing.T) {
	// Two tight pairs plus one outlier far from both.
	st := seedStore(t, []seedSpec{
		{path: "a1.jpg", dhash: "0000000000000000", emb: unitVec(0)},
		{path: "a2.jpg", dhash: "000000000000000f", emb: unitVec(0.05)},
		{path: "b1.jpg", dhash: "00000000ffffffff", emb: unitVec(0.70)},
		{path: "b2.jpg", dhash: "0000000fffffffff", emb: unitVec(0.75)},
		{path: "x.jpg", dhash: "ffffffffffffffff", emb: unitVec(2.8)},
	})

	result := runEngine(t, st, config.DefaultClustering())
	if result.NoiseCount != 1 {
		t.Errorf("got %d noise photos, want 1", result.NoiseCount)
	}
	if result.ClusterCount != 3 {
		t.Errorf("got %d clusters, want 3 (two pairs and a singleton)", result.ClusterCount)
	}

	photos, _ := st.ListPhotos(context.Background())
	for _, p := range photos {
		if p.ClusterID == nil {
			t.Errorf("photo %d left without a cluster", p.ID)
		}
	}

	partition := clusterPartition(t, st)
	if len(partition[5]) != 1 {
		t.Errorf("outlier should be a singleton cluster, got members %v", partition[5])
	}
}

func TestRunZeroTimeWeightIgnoresTimestamps(t *testing.T) {
	early := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	embeddings := [][]float32{unitVec(0), unitVec(0.05), unitVec(1.5), unitVec(1.55)}
	timestampSets := [][]*time.Time{
		{&early, &late, &early, &late},
		{nil, nil, nil, nil},
		{&late, &late, &early, &early},
	}

	cfg := config.DefaultClustering()
	cfg.TimeWeight = 0

	var first map[int64][]int64
	for i, timestamps := range timestampSets {
		specs := make([]seedSpec, len(embeddings))
		for j, emb := range embeddings {
			specs[j] = seedSpec{
				path:    string(rune('a'+j)) + ".jpg",
				dhash:   "0000000000000000",
				takenAt: timestamps[j],
				emb:     emb,
			}
		}
		st := seedStore(t, specs)
		runEngine(t, st, cfg)

		partition := clusterPartition(t, st)
		if first == nil {
			first = partition
			continue
		}
		for id, members := range partition {
			want := first[id]
			same := len(members) == len(want)
			for k := 0; same && k < len(members); k++ {
				same = members[k] == want[k]
			}
			if !same {
				t.Errorf("timestamp set %d changed clustering for photo %d: %v vs %v", i, id, members, want)
			}
		}
	}
}

func TestRunEmptyCollection(t *testing.T) {
	st := memory.New()
	result := runEngine(t, st, config.DefaultClustering())

	if result.PhotoCount != 0 || result.ClusterCount != 0 || result.DuplicateGroups != 0 {
		t.Errorf("empty collection should report an empty result, got %+v", result)
	}
}

func TestRunEmbeddingDimensionMismatchIsFatal(t *testing.T) {
	st := seedStore(t, []seedSpec{
		{path: "a.jpg", dhash: "0000000000000000", emb: []float32{1, 0}},
		{path: "b.jpg", dhash: "ffffffffffffffff", emb: []float32{1, 0, 0}},
	})

	_, err := New(st, config.DefaultClustering()).Run(context.Background(), RunOptions{})
	if err == nil {
		t.Fatal("expected dimension-mismatch error, got nil")
	}

	// The failed run must not publish anything.
	clusters, _ := st.ListClusters(context.Background())
	if len(clusters) != 0 {
		t.Errorf("failed run published %d clusters", len(clusters))
	}
}

func TestRunFailedSaveKeepsPreviousAssignment(t *testing.T) {
	ctx := context.Background()
	st := seedStore(t, []seedSpec{
		{path: "a.jpg", dhash: "0000000000000000", emb: unitVec(0)},
		{path: "b.jpg", dhash: "0000000000000001", emb: unitVec(0.05)},
	})

	runEngine(t, st, config.DefaultClustering())
	before, _ := st.ListClusters(ctx)
	if len(before) == 0 {
		t.Fatal("first run produced no clusters")
	}

	st.ReplaceAssignmentError = errors.New("disk full")
	if _, err := New(st, config.DefaultClustering()).Run(ctx, RunOptions{}); err == nil {
		t.Fatal("expected save error, got nil")
	}

	after, _ := st.ListClusters(ctx)
	if len(after) != len(before) || after[0].ID != before[0].ID {
		t.Errorf("failed run changed the assignment: before %v, after %v", before, after)
	}
}

func TestRunDBSCANFallbackConfigured(t *testing.T) {
	cfg := config.DefaultClustering()
	cfg.Algorithm = config.AlgorithmDBSCAN

	st := seedStore(t, []seedSpec{
		{path: "a.jpg", dhash: "0000000000000000", emb: unitVec(0)},
		{path: "b.jpg", dhash: "0000000000000001", emb: unitVec(0.01)},
	})

	result := runEngine(t, st, cfg)
	if !result.UsedFallback {
		t.Error("expected fallback flag when dbscan is configured")
	}
	if result.ClusterCount != 1 {
		t.Errorf("got %d clusters, want 1", result.ClusterCount)
	}
}

func TestRunReportsProgressPhases(t *testing.T) {
	st := seedStore(t, []seedSpec{
		{path: "a.jpg", dhash: "0000000000000000", emb: unitVec(0), faces: [][]float32{{0, 0}}},
		{path: "b.jpg", dhash: "0000000000000001", emb: unitVec(0.05), faces: [][]float32{{0.1, 0}}},
	})

	// The callback deliberately uses an unsynchronized slice: OnProgress is
	// contractually invoked from the calling goroutine only.
	var phases []string
	_, err := New(st, config.DefaultClustering()).Run(context.Background(), RunOptions{
		OnProgress: func(info ProgressInfo) { phases = append(phases, info.Phase) },
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	want := []string{"loading", "duplicates", "clustering", "refining", "saving"}
	if len(phases) != len(want) {
		t.Fatalf("got phases %v, want %v", phases, want)
	}
	for i, phase := range want {
		if phases[i] != phase {
			t.Errorf("phase %d: got %q, want %q", i, phases[i], phase)
		}
	}
}
