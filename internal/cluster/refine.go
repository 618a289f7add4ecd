package cluster

import (
	"sort"
	"strconv"
	"strings"
)

// RefineClusters splits visual clusters whose members disagree on which
// persons appear in them. For every multi-photo cluster, members are
// partitioned by their exact person-id set. The largest partition keeps the
// original label; partitions whose set is a subset or superset of the
// dominant set stay with it too, since a missed face detection should not
// split an otherwise consistent cluster. Every remaining partition is split
// off under a fresh label. Refinement only keeps or splits clusters, it
// never merges two previously distinct ones.
//
// labels holds one Cluster Engine label per photo (NoiseLabel passes through
// untouched), photoIDs the photo id at each index, and persons the person ids
// present in each photo (order and duplicates do not matter). The dominant
// partition on a size tie is the one appearing first in ascending photo-id
// order; new labels are handed out above the current maximum, ordered by each
// split partition's lowest member photo id.
func RefineClusters(labels []int, photoIDs []int64, persons [][]int64) []int {
	refined := make([]int, len(labels))
	copy(refined, labels)

	byLabel := make(map[int][]int)
	maxLabel := -1
	for i, l := range labels {
		if l == NoiseLabel {
			continue
		}
		byLabel[l] = append(byLabel[l], i)
		if l > maxLabel {
			maxLabel = l
		}
	}

	clusterLabels := make([]int, 0, len(byLabel))
	for l := range byLabel {
		clusterLabels = append(clusterLabels, l)
	}
	sort.Ints(clusterLabels)

	nextLabel := maxLabel + 1
	for _, l := range clusterLabels {
		members := byLabel[l]
		if len(members) < 2 {
			continue
		}

		sort.Slice(members, func(a, b int) bool {
			return photoIDs[members[a]] < photoIDs[members[b]]
		})

		// Partition by exact person set, in order of first appearance.
		type partition struct {
			set     map[int64]bool
			members []int
		}
		var parts []*partition
		index := make(map[string]*partition)
		for _, idx := range members {
			set := personSet(persons[idx])
			key := personSetKey(set)
			p, ok := index[key]
			if !ok {
				p = &partition{set: set}
				index[key] = p
				parts = append(parts, p)
			}
			p.members = append(p.members, idx)
		}
		if len(parts) == 1 {
			continue // All members agree, including the all-empty case
		}

		// Largest partition wins; earlier first-member on ties.
		dominant := parts[0]
		for _, p := range parts[1:] {
			if len(p.members) > len(dominant.members) {
				dominant = p
			}
		}

		for _, p := range parts {
			if p == dominant || isSubset(p.set, dominant.set) || isSubset(dominant.set, p.set) {
				continue
			}
			for _, idx := range p.members {
				refined[idx] = nextLabel
			}
			nextLabel++
		}
	}

	return refined
}

func personSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// personSetKey canonicalizes a person set into a comparable string.
func personSetKey(set map[int64]bool) string {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

	var sb strings.Builder
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatInt(id, 10))
	}
	return sb.String()
}

func isSubset(a, b map[int64]bool) bool {
	for id := range a {
		if !b[id] {
			return false
		}
	}
	return true
}
