package cluster

import "testing"

func TestClusterFaces(t *testing.T) {
	tests := []struct {
		name       string
		embeddings [][]float32
		threshold  float64
		want       []int
	}{
		{
			name: "two near faces merge",
			embeddings: [][]float32{
				{0, 0},
				{0.1, 0},
			},
			threshold: 0.5,
			want:      []int{0, 0},
		},
		{
			name: "far face stays separate",
			embeddings: [][]float32{
				{0, 0},
				{0.1, 0},
				{5, 5},
			},
			threshold: 0.5,
			want:      []int{0, 0, 1},
		},
		{
			name: "threshold is a hard cutoff",
			embeddings: [][]float32{
				{0, 0},
				{0.6, 0},
			},
			threshold: 0.5,
			want:      []int{0, 1},
		},
		{
			name: "missing embedding never merges",
			embeddings: [][]float32{
				{0, 0},
				nil,
				{0.1, 0},
			},
			threshold: 0.5,
			want:      []int{0, NoiseLabel, 0},
		},
		{
			name:       "empty input",
			embeddings: nil,
			threshold:  0.5,
			want:       []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClusterFaces(tt.embeddings, tt.threshold)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d labels, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("face %d: got label %d, want %d (all: %v)", i, got[i], tt.want[i], got)
				}
			}
		})
	}
}

func TestClusterFacesAverageLinkage(t *testing.T) {
	// Three collinear faces at 0, 0.4, 0.8. Pairs (0,1) and (1,2) are each
	// within the 0.5 threshold; after they merge, the average distance from
	// the merged group to the remaining face decides further merging. With
	// average linkage the {0, 0.4} group sits at (0.8 + 0.4)/2 = 0.6 from the
	// last face, above threshold, so it stays out.
	embeddings := [][]float32{
		{0, 0},
		{0.4, 0},
		{0.8, 0},
	}
	labels := ClusterFaces(embeddings, 0.5)

	if labels[0] != labels[1] {
		t.Errorf("closest pair should merge first: %v", labels)
	}
	if labels[2] == labels[0] {
		t.Errorf("average linkage should keep the far face separate: %v", labels)
	}
}
