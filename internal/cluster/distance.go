package cluster

import (
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"
)

// normalizeEmbeddings returns L2-normalized copies of the input vectors.
// Zero-norm vectors are copied unchanged (divide-by-zero guard); their dot
// product with everything is 0, which puts them at maximal cosine distance.
func normalizeEmbeddings(embeddings [][]float32) [][]float32 {
	out := make([][]float32, len(embeddings))
	for i, emb := range embeddings {
		cp := make([]float32, len(emb))
		copy(cp, emb)

		var sum float64
		for _, v := range emb {
			sum += float64(v) * float64(v)
		}
		if norm := math.Sqrt(sum); norm > 0 {
			scale := float32(1 / norm)
			for j := range cp {
				cp[j] *= scale
			}
		}
		out[i] = cp
	}
	return out
}

// VisualDistanceMatrix computes the pairwise cosine-distance matrix over the
// given embeddings. Vectors are L2-normalized first, so distance reduces to
// 1 - dot product, clamped to [0, 2] to absorb floating-point error. The
// result is symmetric with a zero diagonal.
//
// Rows are computed on a worker per CPU; each cell is written exactly once,
// so no synchronization beyond the final wait is needed.
func VisualDistanceMatrix(embeddings [][]float32) [][]float64 {
	n := len(embeddings)
	dist := newMatrix(n)
	if n == 0 {
		return dist
	}

	normalized := normalizeEmbeddings(embeddings)

	workers := runtime.NumCPU()
	if workers > n {
		workers = n
	}

	var wg sync.WaitGroup
	rows := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rows {
				for j := i + 1; j < n; j++ {
					d := 1 - dot(normalized[i], normalized[j])
					if d < 0 {
						d = 0
					}
					if d > 2 {
						d = 2
					}
					dist[i][j] = d
					dist[j][i] = d
				}
				dist[i][i] = 0
			}
		}()
	}
	for i := 0; i < n; i++ {
		rows <- i
	}
	close(rows)
	wg.Wait()

	return dist
}

func dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return -1 // Maximal distance after 1-x
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// neutralTimeDistance is used when either timestamp is missing: the pair is
// neither rewarded nor penalized temporally.
const neutralTimeDistance = 0.5

// TimeDistanceMatrix computes the pairwise temporal-distance matrix.
// Pairs within window are at distance 0, pairs beyond maxWindow at 1, with
// linear interpolation between. Missing timestamps yield the neutral 0.5.
func TimeDistanceMatrix(timestamps []*time.Time, window, maxWindow time.Duration) [][]float64 {
	n := len(timestamps)
	dist := newMatrix(n)

	windowSec := window.Seconds()
	maxSec := maxWindow.Seconds()

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var d float64
			t1, t2 := timestamps[i], timestamps[j]
			switch {
			case t1 == nil || t2 == nil:
				d = neutralTimeDistance
			default:
				delta := math.Abs(t1.Sub(*t2).Seconds())
				switch {
				case delta <= windowSec:
					d = 0
				case delta >= maxSec:
					d = 1
				default:
					d = (delta - windowSec) / (maxSec - windowSec)
				}
			}
			dist[i][j] = d
			dist[j][i] = d
		}
		dist[i][i] = 0
	}

	return dist
}

// CombineDistances blends visual and temporal distances:
// combined = (1-w)*visual + w*temporal. With w=0 clustering is purely visual,
// with w=1 purely temporal. Returns an error on shape mismatch, which is the
// one unrecoverable input corruption the pipeline refuses to paper over.
func CombineDistances(visual, temporal [][]float64, w float64) ([][]float64, error) {
	n := len(visual)
	if len(temporal) != n {
		return nil, fmt.Errorf("distance matrix shape mismatch: visual %d rows, temporal %d rows", n, len(temporal))
	}

	combined := newMatrix(n)
	for i := 0; i < n; i++ {
		if len(visual[i]) != n || len(temporal[i]) != n {
			return nil, fmt.Errorf("distance matrix row %d is not square", i)
		}
		for j := 0; j < n; j++ {
			combined[i][j] = (1-w)*visual[i][j] + w*temporal[i][j]
		}
		combined[i][i] = 0
	}

	return combined, nil
}

func newMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	return m
}
