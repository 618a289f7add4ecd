package cluster

import (
	"sort"

	"github.com/picbest/picbest/internal/store"
)

// SelectRepresentative picks the photo that stands for a cluster in grid
// views. Criteria in descending priority, first non-tied one wins: highest
// sharpness (photos without a score lose to any scored photo), largest pixel
// area, earliest taken-at timestamp (missing timestamps sort last), lowest
// photo id. The id tie-break makes the order total, so there is always a
// single winner.
//
// Returns 0 for an empty slice.
func SelectRepresentative(photos []store.Photo) int64 {
	if len(photos) == 0 {
		return 0
	}
	best := photos[0]
	for _, p := range photos[1:] {
		if betterRepresentative(p, best) {
			best = p
		}
	}
	return best.ID
}

// SortByQuality orders photos in-place by the representative criteria, best
// first. The rating API uses this to lay out cluster members.
func SortByQuality(photos []store.Photo) {
	sort.Slice(photos, func(i, j int) bool {
		return betterRepresentative(photos[i], photos[j])
	})
}

func betterRepresentative(a, b store.Photo) bool {
	as, bs := sharpnessOf(a), sharpnessOf(b)
	if as != bs {
		return as > bs
	}
	if aa, ba := a.PixelArea(), b.PixelArea(); aa != ba {
		return aa > ba
	}
	switch {
	case a.TakenAt != nil && b.TakenAt == nil:
		return true
	case a.TakenAt == nil && b.TakenAt != nil:
		return false
	case a.TakenAt != nil && b.TakenAt != nil && !a.TakenAt.Equal(*b.TakenAt):
		return a.TakenAt.Before(*b.TakenAt)
	}
	return a.ID < b.ID
}

func sharpnessOf(p store.Photo) float64 {
	if p.Sharpness == nil {
		return -1
	}
	return *p.Sharpness
}
