package cluster

import (
	"testing"
	"time"

	"github.com/picbest/picbest/internal/store"
)

func fptr(v float64) *float64 { return &v }

func tptr(t time.Time) *time.Time { return &t }

func TestSelectRepresentative(t *testing.T) {
	early := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	late := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		photos []store.Photo
		want   int64
	}{
		{
			name: "highest sharpness wins",
			photos: []store.Photo{
				{ID: 1, Sharpness: fptr(100), Width: 100, Height: 100},
				{ID: 2, Sharpness: fptr(300), Width: 10, Height: 10},
			},
			want: 2,
		},
		{
			name: "scored photo beats unscored",
			photos: []store.Photo{
				{ID: 1, Width: 4000, Height: 3000},
				{ID: 2, Sharpness: fptr(5), Width: 100, Height: 100},
			},
			want: 2,
		},
		{
			name: "sharpness tie falls through to pixel area",
			photos: []store.Photo{
				{ID: 1, Sharpness: fptr(100), Width: 100, Height: 100},
				{ID: 2, Sharpness: fptr(100), Width: 200, Height: 200},
			},
			want: 2,
		},
		{
			name: "area tie falls through to earliest timestamp",
			photos: []store.Photo{
				{ID: 1, Sharpness: fptr(100), Width: 100, Height: 100, TakenAt: tptr(late)},
				{ID: 2, Sharpness: fptr(100), Width: 100, Height: 100, TakenAt: tptr(early)},
			},
			want: 2,
		},
		{
			name: "timestamped photo beats missing timestamp",
			photos: []store.Photo{
				{ID: 1, Sharpness: fptr(100), Width: 100, Height: 100},
				{ID: 2, Sharpness: fptr(100), Width: 100, Height: 100, TakenAt: tptr(late)},
			},
			want: 2,
		},
		{
			name: "full tie resolves to lowest id",
			photos: []store.Photo{
				{ID: 7, Sharpness: fptr(100), Width: 100, Height: 100, TakenAt: tptr(early)},
				{ID: 3, Sharpness: fptr(100), Width: 100, Height: 100, TakenAt: tptr(early)},
			},
			want: 3,
		},
		{
			name:   "singleton is trivially the representative",
			photos: []store.Photo{{ID: 42}},
			want:   42,
		},
		{
			name:   "empty cluster",
			photos: nil,
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectRepresentative(tt.photos); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSortByQuality(t *testing.T) {
	photos := []store.Photo{
		{ID: 1, Sharpness: fptr(50), Width: 100, Height: 100},
		{ID: 2, Sharpness: fptr(200), Width: 100, Height: 100},
		{ID: 3, Sharpness: fptr(200), Width: 400, Height: 400},
	}
	SortByQuality(photos)

	want := []int64{3, 2, 1}
	for i, id := range want {
		if photos[i].ID != id {
			t.Errorf("position %d: got photo %d, want %d", i, photos[i].ID, id)
		}
	}
}
