package dataset

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"volslice/pkg/grid"
	"volslice/pkg/progress"
	"volslice/pkg/space"
)

// ExtractSlice resamples the data set through the viewing volume view and
// returns a new, independent single-plane data set of
// ceil(|ex|/pixelSize) x ceil(|ey|/pixelSize) x 1 x 1 float64 voxels.
//
// The slice spans the time window [startTime, startTime+duration). Every
// source frame overlapping the window contributes, weighted by the part of
// the window it covers. The slice is view.Corner.Z thick; when that is more
// than one source voxel along the view's z axis, evenly spaced planes
// through the thickness are averaged.
//
// Sampling follows the data set's interpolation mode. Slice voxels outside
// the intersection of the viewing volume and the data set's bounding box
// hold the empty value (the global minimum for entirely negative data sets,
// zero otherwise); samples that map outside the source grid contribute it.
//
// Degenerate requests are clamped: a zero extent yields one voxel along that
// axis, a zero or negative duration selects a single frame, a zero thickness
// becomes one source voxel and a non-positive pixel size falls back to the
// smallest source voxel dimension. The only failure is the output grid
// allocation.
//
// The pass is not cancellable; fn is informed of progress only. The result
// holds a non-owning link to ds, cleared if ds is released first.
func (ds *DataSet) ExtractSlice(startTime, duration, pixelSize float64, view space.Box, fn progress.Func) (*DataSet, error) {
	if duration < 0 {
		duration = 0
	}
	if !(pixelSize > 0) {
		pixelSize = math.Min(ds.voxelSize.X, math.Min(ds.voxelSize.Y, ds.voxelSize.Z))
	}
	frames := ds.frameWeights(startTime, duration)

	// voxelLength is the length of a source voxel seen along the slice's
	// z axis; it sets how many planes are compressed into the slice.
	alt := space.TransformDirection(view.Space, ds.space, r3.Vec{Z: 1})
	alt = r3.Vec{X: alt.X * ds.voxelSize.X, Y: alt.Y * ds.voxelSize.Y, Z: alt.Z * ds.voxelSize.Z}
	voxelLength := r3.Norm(alt)

	extent := r3.Vec{X: math.Abs(view.Corner.X), Y: math.Abs(view.Corner.Y), Z: math.Abs(view.Corner.Z)}
	if extent.Z == 0 {
		extent.Z = voxelLength
	}
	view = space.NewBox(view.Space, extent)

	nx, errX := sliceExtent(extent.X, pixelSize)
	ny, errY := sliceExtent(extent.Y, pixelSize)
	dim := grid.Voxel{X: nx, Y: ny, Z: 1, T: 1}
	out, err := grid.New[float64](dim)
	if err = errors.Join(errX, errY, err); err != nil {
		logger().Warn("couldn't allocate space for the slice", "dataset", ds.Name,
			"dim", dim.String(), "error", err)
		return nil, fmt.Errorf("slice of %q: %w", ds.Name, err)
	}

	slice, err := New(out, view.Space, r3.Vec{X: pixelSize, Y: pixelSize, Z: extent.Z})
	if err != nil {
		return nil, err
	}
	center := view.Center()
	slice.Name = fmt.Sprintf("slice from %s @ x %5.3f y %5.3f z %5.3f", ds.Name, center.X, center.Y, center.Z)
	slice.Modality = ds.Modality
	slice.scanStart = startTime
	slice.frameDuration[0] = duration
	slice.interpolation = ds.interpolation
	slice.thresholding = ds.thresholding
	slice.thresholdMin = ds.thresholdMin
	slice.thresholdMax = ds.thresholdMax
	slice.setParent(ds)

	empty := ds.emptyValue()
	data := out.Slice()

	// Only slice voxels inside the intersection are sampled; the rest are
	// empty.
	bounds, ok := space.Intersection(view, ds.Box())
	if !ok {
		out.Fill(empty)
		return slice, nil
	}
	start := pointToVoxel(bounds.Min, slice.voxelSize, 0)
	end := pointToVoxel(bounds.Max, slice.voxelSize, 0)
	start.X, start.Y = max(start.X, 0), max(start.Y, 0)
	end.X, end.Y = min(end.X, dim.X-1), min(end.Y, dim.Y-1)

	for y := 0; y < dim.Y; y++ {
		for x := 0; x < dim.X; x++ {
			if x < start.X || x > end.X || y < start.Y || y > end.Y {
				data[x+dim.X*y] = empty
			}
		}
	}

	r := &resampler{
		src:         ds,
		view:        view.Space,
		pixel:       slice.voxelSize,
		voxelLength: voxelLength,
		zSteps:      extent.Z / voxelLength,
		start:       start,
		end:         end,
		empty:       empty,
		out:         data,
		stride:      dim.X,
	}
	r.run(frames, fn)

	return slice, nil
}

// sliceExtent returns the number of pixels covering length, at least one.
// Counts beyond grid.MaxElements fail with grid.ErrAllocation.
func sliceExtent(length, pixelSize float64) (int, error) {
	n := math.Ceil(length / pixelSize)
	if math.IsNaN(n) || n < 1 {
		return 1, nil
	}
	if n > float64(grid.MaxElements) {
		return 1, fmt.Errorf("%w: %g pixels along one axis", grid.ErrAllocation, n)
	}
	return int(n), nil
}

// resampler holds the state shared by both interpolation modes for one
// extraction.
type resampler struct {
	src         *DataSet
	view        space.Space
	pixel       r3.Vec
	voxelLength float64
	zSteps      float64
	start, end  grid.Voxel
	empty       float64
	out         []float64
	stride      int
}

func (r *resampler) run(frames []frameWeight, fn progress.Func) {
	planes := int(math.Ceil(r.zSteps))
	rows := r.end.Y - r.start.Y + 1
	rep := progress.NewReporter(fn, len(frames)*planes*rows, false)
	rep.Start(fmt.Sprintf("Generating slice from:\n   %s", r.src.Name))

	// One step in the slice along each axis, expressed in the source frame.
	// Points are advanced by these rather than transformed per voxel.
	strideX := space.TransformDirection(r.view, r.src.space, r3.Vec{X: r.pixel.X})
	strideY := space.TransformDirection(r.view, r.src.space, r3.Vec{Y: r.pixel.Y})
	strideZ := space.TransformDirection(r.view, r.src.space, r3.Vec{Z: r.voxelLength})
	origin := space.TransformPoint(r.view, r.src.space, r3.Vec{
		X: (float64(r.start.X) + 0.5) * r.pixel.X,
		Y: (float64(r.start.Y) + 0.5) * r.pixel.Y,
		Z: r.voxelLength / 2,
	})

	sample := r.nearest
	if r.src.interpolation == Trilinear {
		sample = r.trilinear
	}

	unit := 0
	for _, f := range frames {
		planeStart := origin
		for z := 0; z < planes; z++ {
			// The last plane is weighted by the part of it inside the slice.
			weight := f.weight / r.zSteps
			if float64(z) >= math.Floor(r.zSteps) {
				weight = f.weight * (r.zSteps - math.Floor(r.zSteps)) / r.zSteps
			}

			rowStart := planeStart
			for y := r.start.Y; y <= r.end.Y; y++ {
				rep.Step(unit)
				unit++

				p := rowStart
				i := r.start.X + r.stride*y
				for x := r.start.X; x <= r.end.X; x++ {
					r.out[i] += weight * sample(p, f.frame)
					p = r3.Add(p, strideX)
					i++
				}
				rowStart = r3.Add(rowStart, strideY)
			}
			planeStart = r3.Add(planeStart, strideZ)
		}
	}

	rep.Finish()
}

// nearest returns the value of the source voxel containing p, or the empty
// value when p is outside the grid.
func (r *resampler) nearest(p r3.Vec, t int) float64 {
	v := pointToVoxel(p, r.src.voxelSize, t)
	if !r.src.grid.Includes(v) {
		return r.empty
	}
	return r.src.value(v)
}

// trilinear blends the eight source voxels whose centers surround p, first
// along x, then y, then z. Corners outside the grid count as empty.
func (r *resampler) trilinear(p r3.Vec, t int) float64 {
	vs := r.src.voxelSize
	fx := p.X/vs.X - 0.5
	fy := p.Y/vs.Y - 0.5
	fz := p.Z/vs.Z - 0.5
	x0, y0, z0 := math.Floor(fx), math.Floor(fy), math.Floor(fz)
	wx, wy, wz := fx-x0, fy-y0, fz-z0

	var box [8]float64
	for l := range box {
		v := grid.Voxel{
			X: int(x0) + l&1,
			Y: int(y0) + (l>>1)&1,
			Z: int(z0) + (l>>2)&1,
			T: t,
		}
		if r.src.grid.Includes(v) {
			box[l] = r.src.value(v)
		} else {
			box[l] = r.empty
		}
	}

	for l := 0; l < 8; l += 2 {
		box[l] = lerp(box[l], box[l+1], wx)
	}
	for l := 0; l < 8; l += 4 {
		box[l] = lerp(box[l], box[l+2], wy)
	}
	return lerp(box[0], box[4], wz)
}

func lerp(a, b, w float64) float64 {
	return a + (b-a)*w
}
