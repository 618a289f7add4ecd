package store

import (
	"errors"
	"sync"

	"github.com/coder/hnsw"
)

// HNSW parameters for image embeddings.
const (
	// hnswMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	hnswMaxNeighbors = 16
)

// SimilarityIndex is an in-memory HNSW graph over photo embeddings, backing
// the "similar photos" API without a database round trip per comparison.
// Safe for concurrent use; rebuilt after each indexing pass.
type SimilarityIndex struct {
	mu          sync.RWMutex
	graph       *hnsw.Graph[int64]
	idToVector  map[int64][]float32
	vectorCount int
}

// NewSimilarityIndex creates an empty similarity index.
func NewSimilarityIndex() *SimilarityIndex {
	return &SimilarityIndex{
		idToVector: make(map[int64][]float32),
	}
}

// Build replaces the index contents with the given embeddings.
// Embeddings with no vector are skipped.
func (s *SimilarityIndex) Build(embeddings []StoredEmbedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(embeddings) == 0 {
		s.graph = nil
		s.idToVector = make(map[int64][]float32)
		s.vectorCount = 0
		return nil
	}

	g := hnsw.NewGraph[int64]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance

	idToVector := make(map[int64][]float32, len(embeddings))
	for i := range embeddings {
		emb := &embeddings[i]
		if len(emb.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(emb.PhotoID, emb.Embedding))
		idToVector[emb.PhotoID] = emb.Embedding
	}

	s.graph = g
	s.idToVector = idToVector
	s.vectorCount = len(idToVector)
	return nil
}

// Search finds the k nearest photos to the query embedding.
// Returns photo ids and their cosine distances, nearest first.
func (s *SimilarityIndex) Search(query []float32, k int) ([]int64, []float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.graph == nil {
		return nil, nil, errors.New("similarity index not built")
	}

	neighbors := s.graph.Search(query, k)

	ids := make([]int64, len(neighbors))
	distances := make([]float64, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.Key
		// HNSW returns approximate ordering; recompute the exact distance
		// from the stored vector for stable API output.
		distances[i] = CosineDistance(query, s.idToVector[n.Key])
	}

	return ids, distances, nil
}

// SearchSimilarTo finds the k nearest photos to an already-indexed photo,
// excluding the photo itself.
func (s *SimilarityIndex) SearchSimilarTo(photoID int64, k int) ([]int64, []float64, error) {
	s.mu.RLock()
	query, ok := s.idToVector[photoID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, errors.New("photo has no embedding in the index")
	}

	// Request one extra so the photo itself can be dropped from the results.
	ids, distances, err := s.Search(query, k+1)
	if err != nil {
		return nil, nil, err
	}

	outIDs := make([]int64, 0, k)
	outDist := make([]float64, 0, k)
	for i, id := range ids {
		if id == photoID {
			continue
		}
		outIDs = append(outIDs, id)
		outDist = append(outDist, distances[i])
		if len(outIDs) == k {
			break
		}
	}
	return outIDs, outDist, nil
}

// Len returns the number of indexed photos.
func (s *SimilarityIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vectorCount
}
