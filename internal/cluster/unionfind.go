// Package cluster implements the two-stage grouping engine: near-duplicate
// detection over perceptual hashes, density-based clustering over combined
// visual/temporal distance matrices, identity-aware cluster refinement, and
// deterministic representative selection.
package cluster

// unionFind is an array-backed disjoint-set with path compression and union
// by rank. Indices are positions in the caller's photo slice.
type unionFind struct {
	parent []int
	rank   []uint8
}

func newUnionFind(n int) *unionFind {
	u := &unionFind{
		parent: make([]int, n),
		rank:   make([]uint8, n),
	}
	for i := range u.parent {
		u.parent[i] = i
	}
	return u
}

// find returns the root of x, compressing the path along the way.
func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]] // Halve the path
		x = u.parent[x]
	}
	return x
}

// union merges the sets containing x and y.
func (u *unionFind) union(x, y int) {
	rx, ry := u.find(x), u.find(y)
	if rx == ry {
		return
	}
	switch {
	case u.rank[rx] < u.rank[ry]:
		u.parent[rx] = ry
	case u.rank[rx] > u.rank[ry]:
		u.parent[ry] = rx
	default:
		u.parent[ry] = rx
		u.rank[rx]++
	}
}

// same reports whether x and y are in the same set.
func (u *unionFind) same(x, y int) bool {
	return u.find(x) == u.find(y)
}
