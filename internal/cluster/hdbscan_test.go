package cluster

import "testing"

func TestHDBSCAN(t *testing.T) {
	tests := []struct {
		name           string
		points         []float64
		minClusterSize int
		minSamples     int
		want           []int
	}{
		{
			name:           "tight pair clusters together",
			points:         []float64{0, 0.007},
			minClusterSize: 2,
			minSamples:     1,
			want:           []int{0, 0},
		},
		{
			name:           "two separated pairs become two clusters",
			points:         []float64{0, 0.01, 1.0, 1.01},
			minClusterSize: 2,
			minSamples:     1,
			want:           []int{0, 0, 1, 1},
		},
		{
			name:           "outlier between two pairs is noise",
			points:         []float64{0, 0.01, 1.0, 1.01, 5},
			minClusterSize: 2,
			minSamples:     1,
			want:           []int{0, 0, 1, 1, NoiseLabel},
		},
		{
			name:           "single point is noise",
			points:         []float64{0},
			minClusterSize: 2,
			minSamples:     1,
			want:           []int{NoiseLabel},
		},
		{
			name:           "identical points cluster despite zero distances",
			points:         []float64{0.5, 0.5, 0.5},
			minClusterSize: 2,
			minSamples:     1,
			want:           []int{0, 0, 0},
		},
		{
			name:           "empty input",
			points:         nil,
			minClusterSize: 2,
			minSamples:     1,
			want:           []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HDBSCAN(lineMatrix(tt.points), tt.minClusterSize, tt.minSamples)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d labels, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("point %d: got label %d, want %d (all: %v)", i, got[i], tt.want[i], got)
				}
			}
		})
	}
}

func TestHDBSCANVariableDensity(t *testing.T) {
	// A dense triple and a looser pair: both should survive as clusters even
	// though no single epsilon separates them cleanly.
	points := []float64{0, 0.01, 0.02, 3.0, 3.2}
	labels := HDBSCAN(lineMatrix(points), 2, 1)

	if labels[0] != labels[1] || labels[1] != labels[2] {
		t.Errorf("dense triple split apart: %v", labels)
	}
	if labels[3] != labels[4] {
		t.Errorf("loose pair split apart: %v", labels)
	}
	if labels[0] == labels[3] {
		t.Errorf("distinct groups merged: %v", labels)
	}
}

func TestHDBSCANLabelsDeterministic(t *testing.T) {
	points := []float64{0, 0.01, 1.0, 1.01}
	first := HDBSCAN(lineMatrix(points), 2, 1)
	for run := 0; run < 10; run++ {
		got := HDBSCAN(lineMatrix(points), 2, 1)
		for i := range first {
			if got[i] != first[i] {
				t.Fatalf("run %d: labels changed from %v to %v", run, first, got)
			}
		}
	}
}
