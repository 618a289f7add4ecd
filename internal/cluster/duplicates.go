package cluster

import (
	"sort"

	"github.com/picbest/picbest/internal/fingerprint"
	"github.com/picbest/picbest/internal/store"
)

// GroupDuplicates partitions photos into near-duplicate groups. Any two
// photos whose dHash Hamming distance is at or below threshold end up in the
// same group, transitively: an A-B-C chain merges even when A and C alone
// exceed the threshold. Photos with a missing or malformed hash are never
// merged and form singleton groups.
//
// Returns a 1-based group id per photo id. Group ids are assigned in
// ascending order of each group's smallest member photo id, so results are
// stable across runs regardless of map iteration order.
func GroupDuplicates(photos []store.Photo, threshold int) map[int64]int64 {
	if len(photos) == 0 {
		return map[int64]int64{}
	}

	// Work over an id-sorted copy so group numbering is deterministic.
	sorted := make([]store.Photo, len(photos))
	copy(sorted, photos)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	hashes := make([]uint64, len(sorted))
	valid := make([]bool, len(sorted))
	for i := range sorted {
		hashes[i], valid[i] = fingerprint.ParseDHash(sorted[i].DHash)
	}

	// O(n²) pairwise comparison: Hamming distance on fixed-width integers is
	// a single XOR plus popcount, cheap enough for collection-sized n.
	uf := newUnionFind(len(sorted))
	for i := 0; i < len(sorted); i++ {
		if !valid[i] {
			continue
		}
		for j := i + 1; j < len(sorted); j++ {
			if !valid[j] {
				continue
			}
			if fingerprint.Similar(hashes[i], hashes[j], threshold) {
				uf.union(i, j)
			}
		}
	}

	// Number groups by first appearance in ascending photo-id order.
	groupByRoot := make(map[int]int64, len(sorted))
	result := make(map[int64]int64, len(sorted))
	var nextGroup int64
	for i := range sorted {
		root := uf.find(i)
		group, ok := groupByRoot[root]
		if !ok {
			nextGroup++
			group = nextGroup
			groupByRoot[root] = group
		}
		result[sorted[i].ID] = group
	}

	return result
}
