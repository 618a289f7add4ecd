package cluster

import (
	"math"
	"sort"
)

// HDBSCAN runs hierarchical density-based clustering over a precomputed
// distance matrix and flattens the hierarchy with excess-of-mass cluster
// selection. Labels start at 0 and are numbered by each cluster's smallest
// point index; points outside every selected cluster get NoiseLabel.
//
// minClusterSize is the smallest group the condensed hierarchy keeps as a
// cluster; minSamples controls the core-distance smoothing (1 means mutual
// reachability equals the raw distance).
func HDBSCAN(dist [][]float64, minClusterSize, minSamples int) []int {
	n := len(dist)
	labels := make([]int, n)
	if n == 0 {
		return labels
	}
	if minClusterSize < 2 {
		minClusterSize = 2
	}
	if minSamples < 1 {
		minSamples = 1
	}
	if n == 1 {
		labels[0] = NoiseLabel
		return labels
	}

	core := coreDistances(dist, minSamples)
	edges := buildMST(dist, core)
	merges := singleLinkage(edges, n)
	condensed := condenseTree(merges, n, minClusterSize)
	selected := selectClustersEOM(condensed, n)

	return labelSelected(condensed, selected, n)
}

// coreDistances returns, per point, the distance to its minSamples-th
// nearest neighbor with the point itself counted first.
func coreDistances(dist [][]float64, minSamples int) []float64 {
	n := len(dist)
	core := make([]float64, n)
	row := make([]float64, n)
	for i := 0; i < n; i++ {
		copy(row, dist[i])
		sort.Float64s(row)
		k := minSamples - 1
		if k >= n {
			k = n - 1
		}
		core[i] = row[k]
	}
	return core
}

type mstEdge struct {
	a, b   int
	weight float64
}

// buildMST computes a minimum spanning tree over the mutual-reachability
// graph using Prim's algorithm: dense input, so the O(n²) variant without a
// heap is the right fit.
func buildMST(dist [][]float64, core []float64) []mstEdge {
	n := len(dist)
	inTree := make([]bool, n)
	best := make([]float64, n)
	bestFrom := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
	}

	edges := make([]mstEdge, 0, n-1)
	current := 0
	inTree[0] = true
	for len(edges) < n-1 {
		next := -1
		for v := 0; v < n; v++ {
			if inTree[v] {
				continue
			}
			w := mutualReachability(dist[current][v], core[current], core[v])
			if w < best[v] {
				best[v] = w
				bestFrom[v] = current
			}
			if next == -1 || best[v] < best[next] {
				next = v
			}
		}
		inTree[next] = true
		edges = append(edges, mstEdge{a: bestFrom[next], b: next, weight: best[next]})
		current = next
	}

	return edges
}

func mutualReachability(d, coreA, coreB float64) float64 {
	m := d
	if coreA > m {
		m = coreA
	}
	if coreB > m {
		m = coreB
	}
	return m
}

// linkageMerge is one agglomeration step of the single-linkage dendrogram.
// Leaves are nodes 0..n-1; merge k creates node n+k.
type linkageMerge struct {
	left, right int
	distance    float64
	size        int
}

// singleLinkage converts the sorted MST edges into a dendrogram.
func singleLinkage(edges []mstEdge, n int) []linkageMerge {
	sorted := make([]mstEdge, len(edges))
	copy(sorted, edges)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].weight < sorted[j].weight })

	uf := newUnionFind(2*n - 1)
	node := make([]int, 2*n-1) // Current dendrogram node per union-find root
	size := make([]int, 2*n-1)
	for i := 0; i < n; i++ {
		node[i] = i
		size[i] = 1
	}

	merges := make([]linkageMerge, 0, n-1)
	for k, e := range sorted {
		ra, rb := uf.find(e.a), uf.find(e.b)
		merged := linkageMerge{
			left:     node[ra],
			right:    node[rb],
			distance: e.weight,
			size:     size[ra] + size[rb],
		}
		merges = append(merges, merged)

		uf.union(ra, rb)
		root := uf.find(ra)
		node[root] = n + k
		size[root] = merged.size
	}

	return merges
}

// condensedEdge is one row of the condensed tree. A child below n is a point
// falling out of its parent cluster at lambda; a child at or above n is a
// nested cluster being born.
type condensedEdge struct {
	parent, child int
	lambda        float64
	childSize     int
}

// condenseTree walks the dendrogram top-down and keeps only splits where both
// sides reach minClusterSize. Smaller sides are recorded as points leaving
// the parent cluster at that density level. Cluster ids are assigned from n
// upward with the root at n.
func condenseTree(merges []linkageMerge, n, minClusterSize int) []condensedEdge {
	numNodes := n + len(merges)
	root := numNodes - 1

	var condensed []condensedEdge
	nextLabel := n + 1

	// Iterative preorder walk; each frame carries the condensed cluster the
	// dendrogram node currently belongs to.
	type frame struct {
		node, cluster int
	}
	stack := []frame{{node: root, cluster: n}}

	// collectLeaves gathers all leaf points under a dendrogram node.
	var collectLeaves func(node int, out *[]int)
	collectLeaves = func(node int, out *[]int) {
		if node < n {
			*out = append(*out, node)
			return
		}
		m := merges[node-n]
		collectLeaves(m.left, out)
		collectLeaves(m.right, out)
	}

	nodeSize := func(node int) int {
		if node < n {
			return 1
		}
		return merges[node-n].size
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.node < n {
			continue
		}
		m := merges[f.node-n]
		lambda := distanceToLambda(m.distance)

		leftSize, rightSize := nodeSize(m.left), nodeSize(m.right)
		switch {
		case leftSize >= minClusterSize && rightSize >= minClusterSize:
			// True split: two new condensed clusters are born.
			for _, child := range []int{m.left, m.right} {
				label := nextLabel
				nextLabel++
				condensed = append(condensed, condensedEdge{
					parent:    f.cluster,
					child:     label,
					lambda:    lambda,
					childSize: nodeSize(child),
				})
				stack = append(stack, frame{node: child, cluster: label})
			}
		case leftSize < minClusterSize && rightSize < minClusterSize:
			// Whole cluster dissolves into points.
			var points []int
			collectLeaves(f.node, &points)
			for _, p := range points {
				condensed = append(condensed, condensedEdge{
					parent: f.cluster, child: p, lambda: lambda, childSize: 1,
				})
			}
		default:
			// One side falls out as points, the other continues the cluster.
			small, big := m.left, m.right
			if leftSize >= minClusterSize {
				small, big = m.right, m.left
			}
			var points []int
			collectLeaves(small, &points)
			for _, p := range points {
				condensed = append(condensed, condensedEdge{
					parent: f.cluster, child: p, lambda: lambda, childSize: 1,
				})
			}
			stack = append(stack, frame{node: big, cluster: f.cluster})
		}
	}

	return condensed
}

// distanceToLambda converts a merge distance to a density level. Distances
// are clamped away from zero so identical points get a large finite lambda.
func distanceToLambda(d float64) float64 {
	const minDistance = 1e-10
	if d < minDistance {
		d = minDistance
	}
	return 1 / d
}

// selectClustersEOM flattens the condensed tree with excess-of-mass
// selection: a cluster is kept when its stability exceeds the summed
// stability of its children. The root is normally excluded so the result is
// not one all-encompassing cluster, but when no other cluster survives
// selection the root is used so that tight collections still cluster.
func selectClustersEOM(condensed []condensedEdge, n int) map[int]bool {
	if len(condensed) == 0 {
		return map[int]bool{}
	}

	birth := make(map[int]float64)  // Lambda at which each cluster was born
	birth[n] = 0                    // Root exists from the start
	children := make(map[int][]int) // Cluster children per cluster
	stability := make(map[int]float64)

	for _, e := range condensed {
		if e.child >= n {
			birth[e.child] = e.lambda
			children[e.parent] = append(children[e.parent], e.child)
		}
	}
	for _, e := range condensed {
		stability[e.parent] += (e.lambda - birth[e.parent]) * float64(e.childSize)
	}

	// Process clusters from deepest to shallowest: larger labels are always
	// descendants of smaller ones by construction.
	clusters := make([]int, 0, len(stability))
	for c := range stability {
		clusters = append(clusters, c)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(clusters)))

	selected := make(map[int]bool, len(clusters))
	subtree := make(map[int]float64, len(clusters)) // Best stability below

	var deselectDescendants func(c int)
	deselectDescendants = func(c int) {
		for _, child := range children[c] {
			selected[child] = false
			deselectDescendants(child)
		}
	}

	for _, c := range clusters {
		var childSum float64
		for _, child := range children[c] {
			childSum += subtree[child]
		}

		if c == n {
			// Root fallback: select it only when nothing else was.
			anySelected := false
			for _, ok := range selected {
				if ok {
					anySelected = true
					break
				}
			}
			if !anySelected {
				selected[c] = true
			}
			continue
		}

		if len(children[c]) == 0 || stability[c] >= childSum {
			selected[c] = true
			deselectDescendants(c)
			subtree[c] = stability[c]
		} else {
			subtree[c] = childSum
		}
	}

	return selected
}

// labelSelected assigns final labels: each point belongs to the deepest
// selected cluster above it, noise otherwise. Labels are renumbered by each
// cluster's smallest member point so output is deterministic.
func labelSelected(condensed []condensedEdge, selected map[int]bool, n int) []int {
	parent := make(map[int]int) // Point or cluster -> parent cluster
	for _, e := range condensed {
		parent[e.child] = e.parent
	}

	labels := make([]int, n)
	clusterOf := make([]int, n)
	for p := 0; p < n; p++ {
		labels[p] = NoiseLabel
		clusterOf[p] = -1
		node, ok := parent[p]
		for ok {
			if selected[node] {
				clusterOf[p] = node
				break
			}
			node, ok = parent[node]
		}
	}

	next := 0
	labelFor := make(map[int]int)
	for p := 0; p < n; p++ {
		c := clusterOf[p]
		if c == -1 {
			continue
		}
		l, ok := labelFor[c]
		if !ok {
			l = next
			next++
			labelFor[c] = l
		}
		labels[p] = l
	}

	return labels
}
