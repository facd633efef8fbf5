package dataset

import (
	"fmt"
)

// timeEpsilon keeps frame lookups at a window boundary from picking up the
// neighbouring frame.
const timeEpsilon = 1e-5

// ScanStart returns the time at which the first frame begins.
func (ds *DataSet) ScanStart() float64 { return ds.scanStart }

// SetScanStart moves the whole acquisition in time.
func (ds *DataSet) SetScanStart(start float64) { ds.scanStart = start }

// FrameDuration returns the length of frame t.
func (ds *DataSet) FrameDuration(t int) float64 {
	return ds.frameDuration[clampFrame(t, len(ds.frameDuration))]
}

// SetFrameDuration sets the length of frame t. Frames are contiguous, so this
// shifts every later frame.
func (ds *DataSet) SetFrameDuration(t int, duration float64) error {
	if t < 0 || t >= len(ds.frameDuration) {
		return fmt.Errorf("frame %d out of range [0,%d)", t, len(ds.frameDuration))
	}
	if duration < 0 {
		return fmt.Errorf("frame duration must not be negative, got %g", duration)
	}
	ds.frameDuration[t] = duration
	return nil
}

// FrameStart returns the start time of frame t.
func (ds *DataSet) FrameStart(t int) float64 {
	t = clampFrame(t, len(ds.frameDuration))
	start := ds.scanStart
	for i := 0; i < t; i++ {
		start += ds.frameDuration[i]
	}
	return start
}

// FrameEnd returns the end time of frame t.
func (ds *DataSet) FrameEnd(t int) float64 {
	return ds.FrameStart(t) + ds.FrameDuration(t)
}

// FrameAt returns the frame covering time. Times before the scan map to the
// first frame and times after it to the last.
func (ds *DataSet) FrameAt(time float64) int {
	start := ds.scanStart
	if time <= start {
		return 0
	}
	for t, d := range ds.frameDuration {
		if time < start+d {
			return t
		}
		start += d
	}
	return len(ds.frameDuration) - 1
}

// frameWeight is one source frame contributing to a time window.
type frameWeight struct {
	frame  int
	weight float64
}

// frameWeights selects the frames overlapping [start, start+duration) and
// weights each by the fraction of the window it covers. A single frame gets
// weight 1. Weights are not renormalised when the window runs past the data.
func (ds *DataSet) frameWeights(start, duration float64) []frameWeight {
	end := start + duration
	first := ds.FrameAt(start + timeEpsilon)
	last := ds.FrameAt(end - timeEpsilon)
	if last <= first {
		return []frameWeight{{frame: first, weight: 1}}
	}

	weights := make([]frameWeight, 0, last-first+1)
	for t := first; t <= last; t++ {
		var w float64
		switch t {
		case first:
			w = (ds.FrameEnd(first) - start) / duration
		case last:
			w = (end - ds.FrameStart(last)) / duration
		default:
			w = ds.FrameDuration(t) / duration
		}
		weights = append(weights, frameWeight{frame: t, weight: w})
	}
	return weights
}

func clampFrame(t, n int) int {
	if t < 0 {
		return 0
	}
	if t >= n {
		return n - 1
	}
	return t
}
