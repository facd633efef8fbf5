package visualization

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"

	"volslice/pkg/dataset"
	"volslice/pkg/grid"
	"volslice/pkg/space"
)

// newTestVolume creates a float64 volume in the base frame filled by pattern
func newTestVolume(t *testing.T, dim grid.Voxel, pattern func(v grid.Voxel) float64) *dataset.DataSet {
	t.Helper()
	ds, err := dataset.NewWithData(grid.Float64, dim, space.Base(), r3.Vec{X: 1, Y: 1, Z: 1})
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	ds.Name = t.Name()
	var v grid.Voxel
	for v.T = 0; v.T < dim.T; v.T++ {
		for v.Z = 0; v.Z < dim.Z; v.Z++ {
			for v.Y = 0; v.Y < dim.Y; v.Y++ {
				for v.X = 0; v.X < dim.X; v.X++ {
					if err := ds.Grid().SetValue(v, pattern(v)); err != nil {
						t.Fatalf("Failed to set voxel %v: %v", v, err)
					}
				}
			}
		}
	}
	ds.Invalidate()
	return ds
}

func gradient(v grid.Voxel) float64 {
	return float64(v.X + 10*v.Y + 100*v.Z)
}

// TestExtractSlice verifies orthogonal slices read the expected source voxels
func TestExtractSlice(t *testing.T) {
	dim := grid.NewVoxel(5, 4, 3, 1)
	viewer := NewViewer(newTestVolume(t, dim, gradient), 1)

	tests := []struct {
		axis     string
		position int
		wantDim  grid.Voxel
		source   func(x, y int) grid.Voxel
	}{
		{"z", 2, grid.NewVoxel(5, 4, 1, 1), func(x, y int) grid.Voxel { return grid.NewVoxel(x, y, 2, 0) }},
		{"y", 1, grid.NewVoxel(5, 3, 1, 1), func(x, y int) grid.Voxel { return grid.NewVoxel(x, 1, y, 0) }},
		{"x", 3, grid.NewVoxel(4, 3, 1, 1), func(x, y int) grid.Voxel { return grid.NewVoxel(3, x, y, 0) }},
	}

	for _, tc := range tests {
		t.Run(tc.axis, func(t *testing.T) {
			slice, err := viewer.ExtractSlice(tc.axis, tc.position)
			if err != nil {
				t.Fatalf("Failed to extract %s slice at position %d: %v", tc.axis, tc.position, err)
			}
			if slice.Dim() != tc.wantDim {
				t.Fatalf("Expected dim %v, got %v", tc.wantDim, slice.Dim())
			}
			for y := 0; y < tc.wantDim.Y; y++ {
				for x := 0; x < tc.wantDim.X; x++ {
					got, _ := slice.Value(grid.NewVoxel(x, y, 0, 0))
					want := gradient(tc.source(x, y))
					if !scalar.EqualWithinAbs(got, want, 1e-9) {
						t.Errorf("Voxel (%d,%d): expected %f, got %f", x, y, want, got)
					}
				}
			}
		})
	}

	// Test invalid positions and axes
	if _, err := viewer.ExtractSlice("z", 3); err == nil {
		t.Error("Expected error for out of bounds position, got nil")
	}
	if _, err := viewer.ExtractSlice("z", -1); err == nil {
		t.Error("Expected error for negative position, got nil")
	}
	if _, err := viewer.ExtractSlice("w", 0); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
}

// TestRender verifies the window maps onto the full 16-bit range
func TestRender(t *testing.T) {
	vol := newTestVolume(t, grid.NewVoxel(3, 1, 1, 1), func(v grid.Voxel) float64 { return float64(v.X) * 5 })
	slice, err := NewViewer(vol, 1).ExtractSlice("z", 0)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}

	img, err := Render(slice)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if img.Bounds().Dx() != 3 || img.Bounds().Dy() != 1 {
		t.Fatalf("Unexpected image bounds %v", img.Bounds())
	}
	want := []uint16{0, math.MaxUint16 / 2, math.MaxUint16}
	for x, w := range want {
		if got := img.Gray16At(x, 0).Y; got != w {
			t.Errorf("Pixel %d: expected %d, got %d", x, w, got)
		}
	}

	// an explicit threshold window clips
	slice.SetThresholding(dataset.ThresholdPerSlice, 5, 6)
	img, err = Render(slice)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if img.Gray16At(0, 0).Y != 0 || img.Gray16At(2, 0).Y != math.MaxUint16 {
		t.Errorf("Expected clipped pixels, got %d and %d", img.Gray16At(0, 0).Y, img.Gray16At(2, 0).Y)
	}
}

// TestWindow verifies each thresholding mode picks its bounds
func TestWindow(t *testing.T) {
	vol := newTestVolume(t, grid.NewVoxel(2, 2, 2, 2), func(v grid.Voxel) float64 {
		return float64(v.X+v.Y+v.Z) + 100*float64(v.T)
	})
	viewer := NewViewer(vol, 1)
	viewer.SetTimeWindow(1, 1)
	slice, err := viewer.ExtractSlice("z", 0)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}

	tests := []struct {
		mode   dataset.Thresholding
		lo, hi float64
	}{
		{dataset.ThresholdPerSlice, 100, 102},
		{dataset.ThresholdPerFrame, 100, 103},
		{dataset.ThresholdGlobal, 0, 103},
	}
	for _, tc := range tests {
		slice.SetThresholding(tc.mode, 0, 0)
		lo, hi := Window(slice)
		if lo != tc.lo || hi != tc.hi {
			t.Errorf("Mode %d: expected [%f, %f], got [%f, %f]", tc.mode, tc.lo, tc.hi, lo, hi)
		}
	}

	// without a source every mode falls back to the slice itself
	vol.Release()
	slice.SetThresholding(dataset.ThresholdGlobal, 0, 0)
	if lo, hi := Window(slice); lo != 100 || hi != 102 {
		t.Errorf("Expected slice bounds after release, got [%f, %f]", lo, hi)
	}
}

// TestSaveSlice verifies that slices can be saved to disk
func TestSaveSlice(t *testing.T) {
	// Skip this test in short mode
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	tempDir := t.TempDir()
	vol := newTestVolume(t, grid.NewVoxel(10, 8, 5, 1), gradient)
	viewer := NewViewer(vol, 1)

	slice, err := viewer.ExtractSlice("z", 0)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}
	img, err := Render(slice)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	for _, name := range []string{"test_slice.png", "test_slice.jpg"} {
		filename := filepath.Join(tempDir, name)
		if err := viewer.SaveSlice(img, filename); err != nil {
			t.Fatalf("Failed to save slice: %v", err)
		}
		back, err := imaging.Open(filename)
		if err != nil {
			t.Fatalf("Failed to reopen %s: %v", name, err)
		}
		if back.Bounds().Dx() != 10 || back.Bounds().Dy() != 8 {
			t.Errorf("%s: unexpected bounds %v", name, back.Bounds())
		}
	}

	if err := viewer.SaveSlice(img, filepath.Join(tempDir, "test_slice.unknown")); err == nil {
		t.Error("Expected error for unknown extension, got nil")
	}
}

// TestSaveSliceSequence verifies that a sequence of slices can be saved
func TestSaveSliceSequence(t *testing.T) {
	// Skip this test in short mode
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	tempDir := t.TempDir()
	depth := 3
	vol := newTestVolume(t, grid.NewVoxel(5, 5, depth, 1), gradient)
	viewer := NewViewer(vol, 1)

	outputDir := filepath.Join(tempDir, "slices")
	if err := viewer.SaveSliceSequence("z", outputDir, "png"); err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}

	for z := 0; z < depth; z++ {
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_z_%03d.png", z))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			t.Errorf("Expected slice file does not exist: %s", filename)
		}
	}

	if err := viewer.SaveSliceSequence("invalid", outputDir, "png"); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
}

// TestSummarize verifies slice statistics skip non-finite values
func TestSummarize(t *testing.T) {
	vol := newTestVolume(t, grid.NewVoxel(5, 1, 1, 1), func(v grid.Voxel) float64 {
		if v.X == 4 {
			return math.NaN()
		}
		return float64(2 * v.X)
	})

	s := Summarize(vol)
	if s.Count != 4 {
		t.Errorf("Expected 4 finite values, got %d", s.Count)
	}
	if s.Mean != 3 || s.Min != 0 || s.Max != 6 {
		t.Errorf("Unexpected summary %v", s)
	}
	// sample standard deviation of 0, 2, 4, 6
	if !scalar.EqualWithinAbs(s.StdDev, math.Sqrt(20.0/3), 1e-12) {
		t.Errorf("Expected sd %f, got %f", math.Sqrt(20.0/3), s.StdDev)
	}
}

// TestPrintHistogram verifies histograms are written for slices and
// distributions
func TestPrintHistogram(t *testing.T) {
	vol := newTestVolume(t, grid.NewVoxel(8, 8, 1, 1), func(v grid.Voxel) float64 { return float64(v.X * v.Y) })

	var buf bytes.Buffer
	if err := PrintHistogram(&buf, vol, 5, 20); err != nil {
		t.Fatalf("PrintHistogram failed: %v", err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 5 {
		t.Errorf("Expected 5 rows, got %d:\n%s", lines, buf.String())
	}

	if err := vol.ComputeDistribution(t.Context(), nil); err != nil {
		t.Fatalf("ComputeDistribution failed: %v", err)
	}
	buf.Reset()
	if err := PrintDistribution(&buf, vol.Distribution(), 8, 20); err != nil {
		t.Fatalf("PrintDistribution failed: %v", err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 8 {
		t.Errorf("Expected 8 rows, got %d:\n%s", lines, buf.String())
	}

	if err := PrintDistribution(&buf, nil, 8, 20); err == nil {
		t.Error("Expected error for missing distribution")
	}
}
