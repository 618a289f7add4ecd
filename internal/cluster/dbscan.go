package cluster

// NoiseLabel marks points that no density-based cluster claimed. The pipeline
// later turns each noise point into its own singleton cluster.
const NoiseLabel = -1

const unvisited = -2

// DBSCAN runs density-based clustering over a precomputed distance matrix.
// A point is a core point when at least minSamples points (itself included)
// lie within eps of it; clusters grow by expanding the neighborhoods of core
// points. Labels start at 0, noise points get NoiseLabel.
//
// Seed points are expanded in ascending index order, so labels are
// deterministic for a given matrix.
func DBSCAN(dist [][]float64, eps float64, minSamples int) []int {
	n := len(dist)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}

	clusterID := 0
	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}

		neighbors := regionQuery(dist, i, eps)
		if len(neighbors) < minSamples {
			labels[i] = NoiseLabel
			continue
		}

		labels[i] = clusterID
		expandCluster(dist, labels, neighbors, clusterID, eps, minSamples)
		clusterID++
	}

	return labels
}

// expandCluster grows cluster clusterID from the seed neighborhood, pulling
// in border points and recursively expanding through core points.
func expandCluster(dist [][]float64, labels []int, seeds []int, clusterID int, eps float64, minSamples int) {
	for k := 0; k < len(seeds); k++ {
		p := seeds[k]

		if labels[p] == NoiseLabel {
			labels[p] = clusterID // Border point
			continue
		}
		if labels[p] != unvisited {
			continue
		}

		labels[p] = clusterID
		neighbors := regionQuery(dist, p, eps)
		if len(neighbors) >= minSamples {
			seeds = append(seeds, neighbors...)
		}
	}
}

// regionQuery returns all points within eps of p, p itself included.
func regionQuery(dist [][]float64, p int, eps float64) []int {
	var neighbors []int
	for q, d := range dist[p] {
		if d <= eps {
			neighbors = append(neighbors, q)
		}
	}
	return neighbors
}
