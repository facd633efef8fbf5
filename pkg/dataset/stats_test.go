package dataset

import (
	"math"
	"testing"

	"volslice/pkg/grid"
	"volslice/pkg/progress"
)

// TestComputeFrameMinMax verifies each frame's bounds come from the finite
// values present in that frame
func TestComputeFrameMinMax(t *testing.T) {
	dim := grid.NewVoxel(5, 4, 3, 3)
	ds := newTestDataSet(t, dim, unitVoxel, func(v grid.Voxel) float64 {
		// frame t ranges over [-10*t, -10*t + 59]
		return float64(v.X+dim.X*(v.Y+dim.Y*v.Z)) - 10*float64(v.T)
	})

	ds.ComputeFrameMinMax(nil)

	for tt := 0; tt < dim.T; tt++ {
		wantMin := -10 * float64(tt)
		wantMax := wantMin + float64(dim.X*dim.Y*dim.Z-1)
		if ds.FrameMin(tt) != wantMin {
			t.Errorf("Frame %d: expected min %f, got %f", tt, wantMin, ds.FrameMin(tt))
		}
		if ds.FrameMax(tt) != wantMax {
			t.Errorf("Frame %d: expected max %f, got %f", tt, wantMax, ds.FrameMax(tt))
		}
		if ds.FrameMin(tt) > ds.FrameMax(tt) {
			t.Errorf("Frame %d: min above max", tt)
		}
	}

	if ds.GlobalMax() != 59 {
		t.Errorf("Expected global max 59, got %f", ds.GlobalMax())
	}
	if ds.GlobalMin() != -20 {
		t.Errorf("Expected global min -20, got %f", ds.GlobalMin())
	}
}

// TestFrameMinMaxNonFinite verifies NaN and infinities never affect the bounds
func TestFrameMinMaxNonFinite(t *testing.T) {
	dim := grid.NewVoxel(3, 3, 1, 3)
	ds := newTestDataSet(t, dim, unitVoxel, func(v grid.Voxel) float64 {
		switch v.T {
		case 0:
			// non-finite seed voxel, finite values elsewhere
			if v.X == 0 && v.Y == 0 {
				return math.NaN()
			}
			if v.X == 2 && v.Y == 2 {
				return math.Inf(1)
			}
			return float64(5 + v.X + v.Y)
		case 1:
			// nothing finite at all
			if v.X%2 == 0 {
				return math.Inf(-1)
			}
			return math.NaN()
		default:
			if v.Y == 1 {
				return math.Inf(-1)
			}
			return float64(-v.X)
		}
	})

	ds.ComputeFrameMinMax(nil)

	if ds.FrameMin(0) != 6 || ds.FrameMax(0) != 8 {
		t.Errorf("Frame 0: expected [6, 8], got [%f, %f]", ds.FrameMin(0), ds.FrameMax(0))
	}
	if ds.FrameMin(1) != 0 || ds.FrameMax(1) != 0 {
		t.Errorf("Frame 1: expected [0, 0] for all non-finite frame, got [%f, %f]", ds.FrameMin(1), ds.FrameMax(1))
	}
	if ds.FrameMin(2) != -2 || ds.FrameMax(2) != 0 {
		t.Errorf("Frame 2: expected [-2, 0], got [%f, %f]", ds.FrameMin(2), ds.FrameMax(2))
	}
}

// TestFrameMinMaxNotCancellable verifies the statistics pass ignores a
// callback asking it to stop
func TestFrameMinMaxNotCancellable(t *testing.T) {
	dim := grid.NewVoxel(4, 4, 8, 2)
	ds := newTestDataSet(t, dim, unitVoxel, func(v grid.Voxel) float64 {
		return float64(v.Z * (v.T + 1))
	})

	var fractions []float64
	var message string
	ds.ComputeFrameMinMax(func(msg string, fraction float64) bool {
		if msg != "" {
			message = msg
		}
		fractions = append(fractions, fraction)
		return false
	})

	if !ds.HasFrameMinMax() {
		t.Fatal("Statistics must be cached even when the callback says stop")
	}
	if ds.FrameMax(1) != 14 {
		t.Errorf("Expected frame 1 max 14, got %f", ds.FrameMax(1))
	}
	if message == "" {
		t.Error("Expected an opening message")
	}
	if len(fractions) < 2 || fractions[len(fractions)-1] != progress.Done {
		t.Errorf("Expected last report to be Done, got %v", fractions)
	}
	for _, f := range fractions[:len(fractions)-1] {
		if f < 0 || f > 1 {
			t.Errorf("Fraction %f outside [0,1]", f)
		}
	}
}

// TestEmptyValue verifies the fill policy for negative-only data sets
func TestEmptyValue(t *testing.T) {
	neg := newTestDataSet(t, grid.NewVoxel(2, 2, 1, 1), unitVoxel, func(v grid.Voxel) float64 {
		return -1 - float64(v.X+v.Y)
	})
	if neg.emptyValue() != -3 {
		t.Errorf("Expected empty value -3 for negative data, got %f", neg.emptyValue())
	}

	mixed := newTestDataSet(t, grid.NewVoxel(2, 2, 1, 1), unitVoxel, func(v grid.Voxel) float64 {
		return float64(v.X) - 0.5
	})
	if mixed.emptyValue() != 0 {
		t.Errorf("Expected empty value 0, got %f", mixed.emptyValue())
	}
}
