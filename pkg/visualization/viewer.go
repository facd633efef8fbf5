package visualization

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/spatial/r3"

	"volslice/pkg/dataset"
	"volslice/pkg/grid"
	"volslice/pkg/progress"
	"volslice/pkg/space"
)

// Viewer cuts orthogonal slices out of a data set and renders them as 16-bit
// grayscale images.
type Viewer struct {
	// source is the volume slices are cut from
	source *dataset.DataSet

	// pixelSize is the in-plane size of a slice voxel in mm
	pixelSize float64

	// time window blended into every slice
	startTime float64
	duration  float64

	// Progress, if set, receives extraction progress
	Progress progress.Func
}

// NewViewer creates a viewer over source. A non-positive pixelSize uses the
// smallest voxel dimension of the source. The time window defaults to the
// first frame.
func NewViewer(source *dataset.DataSet, pixelSize float64) *Viewer {
	return &Viewer{
		source:    source,
		pixelSize: pixelSize,
		startTime: source.FrameStart(0),
		duration:  source.FrameDuration(0),
	}
}

// SetTimeWindow selects the interval blended into each slice.
func (v *Viewer) SetTimeWindow(start, duration float64) {
	v.startTime = start
	v.duration = duration
}

// AxisLength returns the number of source planes along axis.
func (v *Viewer) AxisLength(axis string) (int, error) {
	dim := v.source.Dim()
	switch axis {
	case "x", "X":
		return dim.X, nil
	case "y", "Y":
		return dim.Y, nil
	case "z", "Z":
		return dim.Z, nil
	}
	return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
}

// OrthogonalView returns the viewing volume covering one source plane
// perpendicular to axis. The view is one voxel thick and spans the whole
// data set in-plane:
//
//	x: slice x along source y, slice y along source z
//	y: slice x along source x, slice y along source z
//	z: slice x along source x, slice y along source y
func (v *Viewer) OrthogonalView(axis string, position int) (space.Box, error) {
	n, err := v.AxisLength(axis)
	if err != nil {
		return space.Box{}, err
	}
	if position < 0 || position >= n {
		return space.Box{}, fmt.Errorf("position %d outside [0,%d) along %s", position, n, axis)
	}

	vs := v.source.VoxelSize()
	c := v.source.Corner()
	pos := float64(position)

	var local space.Space
	var extent r3.Vec
	switch axis {
	case "x", "X":
		local, err = space.New(r3.Vec{X: pos * vs.X}, [3]r3.Vec{{Y: 1}, {Z: 1}, {X: 1}})
		extent = r3.Vec{X: c.Y, Y: c.Z, Z: vs.X}
	case "y", "Y":
		// z points towards -y, so the slab starts at the far side of the plane
		local, err = space.New(r3.Vec{Y: (pos + 1) * vs.Y}, [3]r3.Vec{{X: 1}, {Z: 1}, {Y: -1}})
		extent = r3.Vec{X: c.X, Y: c.Z, Z: vs.Y}
	default:
		local = space.AtOffset(r3.Vec{Z: pos * vs.Z})
		extent = r3.Vec{X: c.X, Y: c.Y, Z: vs.Z}
	}
	if err != nil {
		return space.Box{}, err
	}

	return space.NewBox(space.Compose(v.source.Space(), local), extent), nil
}

// ExtractSlice resamples the source plane at position along axis.
func (v *Viewer) ExtractSlice(axis string, position int) (*dataset.DataSet, error) {
	view, err := v.OrthogonalView(axis, position)
	if err != nil {
		return nil, err
	}
	return v.Slice(view)
}

// Slice resamples the source through an arbitrary viewing volume.
func (v *Viewer) Slice(view space.Box) (*dataset.DataSet, error) {
	return v.source.ExtractSlice(v.startTime, v.duration, v.pixelSize, view, v.Progress)
}

// Render maps a slice onto a 16-bit grayscale image using the window chosen
// by Window. Slice voxel (x, y) becomes pixel (x, y).
func Render(slice *dataset.DataSet) (*image.Gray16, error) {
	dim := slice.Dim()
	if dim.Z != 1 || dim.T != 1 {
		return nil, fmt.Errorf("can only render single-plane data sets, got %v", dim)
	}
	lo, hi := Window(slice)

	img := image.NewGray16(image.Rect(0, 0, dim.X, dim.Y))
	for y := 0; y < dim.Y; y++ {
		for x := 0; x < dim.X; x++ {
			val, err := slice.Value(grid.NewVoxel(x, y, 0, 0))
			if err != nil {
				return nil, err
			}
			img.SetGray16(x, y, color.Gray16{Y: toGray(val, lo, hi)})
		}
	}
	return img, nil
}

func toGray(val, lo, hi float64) uint16 {
	if math.IsNaN(val) || hi <= lo {
		return 0
	}
	scaled := (val - lo) / (hi - lo) * math.MaxUint16
	return uint16(math.Max(0, math.Min(math.MaxUint16, scaled)))
}

// Window returns the intensity range mapped onto black..white for a slice.
// An explicit threshold window wins; otherwise the thresholding mode picks
// the bounds of the slice itself, of the source frame under the slice's time
// window, or of the whole source. Modes that need the source fall back to the
// slice once the source has been released or collected.
func Window(slice *dataset.DataSet) (lo, hi float64) {
	mode, tmin, tmax := slice.Thresholding()
	if tmax > tmin {
		return tmin, tmax
	}

	src := slice.Parent()
	if src != nil {
		switch mode {
		case dataset.ThresholdGlobal:
			return src.GlobalMin(), src.GlobalMax()
		case dataset.ThresholdPerFrame, dataset.ThresholdInterpolateFrames:
			f := src.FrameAt(slice.ScanStart() + slice.FrameDuration(0)/2)
			return src.FrameMin(f), src.FrameMax(f)
		}
	}
	return slice.FrameMin(0), slice.FrameMax(0)
}

// SaveImage writes img to filename. The format follows the extension
// (.png, .jpg, .tif, ...).
func SaveImage(img image.Image, filename string) error {
	return imaging.Save(img, filename, imaging.JPEGQuality(90))
}

// SaveSlice is SaveImage for images rendered by the viewer.
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	return SaveImage(img, filename)
}

// SaveSliceSequence extracts, renders and saves every plane along axis into
// outputDir as slice_<axis>_<nnn>.<ext>.
func (v *Viewer) SaveSliceSequence(axis, outputDir, ext string) error {
	n, err := v.AxisLength(axis)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for pos := 0; pos < n; pos++ {
		slice, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}
		img, err := Render(slice)
		slice.Release()
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.%s", axis, pos, ext))
		if err := v.SaveSlice(img, filename); err != nil {
			return fmt.Errorf("error saving %s: %w", filename, err)
		}
	}

	return nil
}
