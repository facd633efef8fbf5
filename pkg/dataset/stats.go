package dataset

import (
	"fmt"
	"math"

	"volslice/pkg/grid"
	"volslice/pkg/progress"
)

// ComputeFrameMinMax recalculates the finite maximum and minimum of every
// frame. Non-finite values never affect the bounds; a frame without any
// finite value gets (0, 0).
//
// The bounds are seeded from the first finite value of the frame, not from
// its first voxel, so a non-finite (0,0,0,t) cannot pin a bound at zero.
//
// The pass cannot be cancelled: fn, if set, is informed of progress but its
// return value is ignored, so the cached bounds are always complete.
func (ds *DataSet) ComputeFrameMinMax(fn progress.Func) {
	dim := ds.grid.Dim()
	frameMax := make([]float64, dim.T)
	frameMin := make([]float64, dim.T)

	r := progress.NewReporter(fn, dim.Z*dim.T, false)
	r.Start(fmt.Sprintf("Calculating Max/Min Values for:\n   %s", ds.Name))

	var i grid.Voxel
	for i.T = 0; i.T < dim.T; i.T++ {
		seeded := false
		var max, min float64
		for i.Z = 0; i.Z < dim.Z; i.Z++ {
			r.Step(i.Z + i.T*dim.Z)
			for i.Y = 0; i.Y < dim.Y; i.Y++ {
				for i.X = 0; i.X < dim.X; i.X++ {
					v := ds.value(i)
					if math.IsNaN(v) || math.IsInf(v, 0) {
						continue
					}
					if !seeded {
						max, min = v, v
						seeded = true
						continue
					}
					if v > max {
						max = v
					}
					if v < min {
						min = v
					}
				}
			}
		}
		frameMax[i.T] = max
		frameMin[i.T] = min

		if dim.Z > 1 {
			logger().Debug("frame statistics", "dataset", ds.Name, "frame", i.T, "max", max, "min", min)
		}
	}

	r.Finish()

	ds.frameMax = frameMax
	ds.frameMin = frameMin
}

// HasFrameMinMax reports whether the per-frame bounds are cached.
func (ds *DataSet) HasFrameMinMax() bool {
	return ds.frameMax != nil
}

func (ds *DataSet) ensureFrameMinMax() {
	if ds.frameMax == nil {
		ds.ComputeFrameMinMax(nil)
	}
}

// FrameMax returns the largest finite value in frame t, computing the frame
// statistics first if needed.
func (ds *DataSet) FrameMax(t int) float64 {
	ds.ensureFrameMinMax()
	return ds.frameMax[clampFrame(t, len(ds.frameMax))]
}

// FrameMin returns the smallest finite value in frame t, computing the frame
// statistics first if needed.
func (ds *DataSet) FrameMin(t int) float64 {
	ds.ensureFrameMinMax()
	return ds.frameMin[clampFrame(t, len(ds.frameMin))]
}

// GlobalMax returns the largest frame maximum.
func (ds *DataSet) GlobalMax() float64 {
	ds.ensureFrameMinMax()
	max := ds.frameMax[0]
	for _, v := range ds.frameMax[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// GlobalMin returns the smallest frame minimum.
func (ds *DataSet) GlobalMin() float64 {
	ds.ensureFrameMinMax()
	min := ds.frameMin[0]
	for _, v := range ds.frameMin[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

// emptyValue is what slices hold wherever the source has no data: the global
// minimum for data sets that are entirely negative, zero otherwise.
func (ds *DataSet) emptyValue() float64 {
	if ds.GlobalMax() < 0 {
		return ds.GlobalMin()
	}
	return 0
}
