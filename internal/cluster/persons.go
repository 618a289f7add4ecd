package cluster

import (
	"math"

	"github.com/picbest/picbest/internal/store"
)

// ClusterFaces groups face embeddings into person identities using
// agglomerative clustering with average linkage over Euclidean distance. The
// closest pair of groups merges first; merging stops once the closest pair is
// farther apart than threshold. Ties break on the lower group index, so the
// result is deterministic for a given input order.
//
// Returns a label per face, numbered from 0 by each group's smallest face
// index. Faces with a missing embedding get NoiseLabel and never merge.
func ClusterFaces(embeddings [][]float32, threshold float64) []int {
	n := len(embeddings)
	labels := make([]int, n)
	if n == 0 {
		return labels
	}

	// Active groups; each starts as a singleton. Groups with no embedding are
	// excluded from the merge loop entirely.
	members := make([][]int, 0, n)
	valid := make([]int, 0, n)
	for i, emb := range embeddings {
		labels[i] = NoiseLabel
		if len(emb) == 0 {
			continue
		}
		members = append(members, []int{i})
		valid = append(valid, i)
	}
	m := len(members)

	// Pairwise group distances, kept current with the Lance-Williams update
	// for average linkage: d(k, i∪j) = (|i|·d(k,i) + |j|·d(k,j)) / (|i|+|j|).
	dist := newMatrix(m)
	for a := 0; a < m; a++ {
		for b := a + 1; b < m; b++ {
			d := store.EuclideanDistance(embeddings[valid[a]], embeddings[valid[b]])
			dist[a][b] = d
			dist[b][a] = d
		}
	}
	alive := make([]bool, m)
	for i := range alive {
		alive[i] = true
	}

	for {
		bi, bj := -1, -1
		best := math.Inf(1)
		for a := 0; a < m; a++ {
			if !alive[a] {
				continue
			}
			for b := a + 1; b < m; b++ {
				if !alive[b] {
					continue
				}
				if dist[a][b] < best {
					best = dist[a][b]
					bi, bj = a, b
				}
			}
		}
		if bi == -1 || best > threshold {
			break
		}

		ni := float64(len(members[bi]))
		nj := float64(len(members[bj]))
		for k := 0; k < m; k++ {
			if !alive[k] || k == bi || k == bj {
				continue
			}
			d := (ni*dist[k][bi] + nj*dist[k][bj]) / (ni + nj)
			dist[k][bi] = d
			dist[bi][k] = d
		}
		members[bi] = append(members[bi], members[bj]...)
		alive[bj] = false
	}

	// Number surviving groups by their smallest face index. Merges always
	// fold the higher-index group into the lower one, so scanning in
	// ascending group order visits groups by smallest member.
	next := 0
	for a := 0; a < m; a++ {
		if !alive[a] {
			continue
		}
		for _, idx := range members[a] {
			labels[idx] = next
		}
		next++
	}

	return labels
}
