package dataset

import (
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"volslice/pkg/grid"
)

func newFramedDataSet(t *testing.T, durations ...float64) *DataSet {
	t.Helper()
	ds := newTestDataSet(t, grid.NewVoxel(1, 1, 1, len(durations)), unitVoxel, func(v grid.Voxel) float64 {
		return float64(v.T)
	})
	for i, d := range durations {
		if err := ds.SetFrameDuration(i, d); err != nil {
			t.Fatalf("SetFrameDuration(%d) failed: %v", i, err)
		}
	}
	return ds
}

// TestFrameTiming verifies frame start, end and lookup for contiguous frames
func TestFrameTiming(t *testing.T) {
	ds := newFramedDataSet(t, 10, 5, 20)
	ds.SetScanStart(100)

	starts := []float64{100, 110, 115}
	ends := []float64{110, 115, 135}
	for i := range starts {
		if ds.FrameStart(i) != starts[i] || ds.FrameEnd(i) != ends[i] {
			t.Errorf("Frame %d: expected [%f, %f), got [%f, %f)", i, starts[i], ends[i], ds.FrameStart(i), ds.FrameEnd(i))
		}
	}

	tests := []struct {
		time float64
		want int
	}{
		{0, 0},
		{100, 0},
		{109.9, 0},
		{110, 1},
		{114, 1},
		{115, 2},
		{134.9, 2},
		{500, 2},
	}
	for _, tc := range tests {
		if got := ds.FrameAt(tc.time); got != tc.want {
			t.Errorf("FrameAt(%f): expected %d, got %d", tc.time, tc.want, got)
		}
	}
}

// TestSetFrameDurationInvalid verifies bad frame indices and durations are
// rejected
func TestSetFrameDurationInvalid(t *testing.T) {
	ds := newFramedDataSet(t, 1, 1)
	if err := ds.SetFrameDuration(2, 1); err == nil {
		t.Error("Expected error for frame out of range")
	}
	if err := ds.SetFrameDuration(0, -1); err == nil {
		t.Error("Expected error for negative duration")
	}
}

// TestFrameWeights verifies the weight each frame receives for a time window
func TestFrameWeights(t *testing.T) {
	ds := newFramedDataSet(t, 10, 10, 10)

	tests := []struct {
		name            string
		start, duration float64
		frames          []int
		weights         []float64
	}{
		{"straddle", 5, 10, []int{0, 1}, []float64{0.5, 0.5}},
		{"inside one frame", 2, 5, []int{0}, []float64{1}},
		{"exact frame", 10, 10, []int{1}, []float64{1}},
		{"three frames", 5, 20, []int{0, 1, 2}, []float64{0.25, 0.5, 0.25}},
		{"zero duration", 12, 0, []int{1}, []float64{1}},
		{"before scan", -50, 10, []int{0}, []float64{1}},
		{"past the end", 25, 10, []int{2}, []float64{1}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ds.frameWeights(tc.start, tc.duration)
			if len(got) != len(tc.frames) {
				t.Fatalf("Expected %d frames, got %v", len(tc.frames), got)
			}
			for i, fw := range got {
				if fw.frame != tc.frames[i] {
					t.Errorf("Entry %d: expected frame %d, got %d", i, tc.frames[i], fw.frame)
				}
				if !scalar.EqualWithinAbs(fw.weight, tc.weights[i], 1e-12) {
					t.Errorf("Entry %d: expected weight %f, got %f", i, tc.weights[i], fw.weight)
				}
			}
		})
	}
}
