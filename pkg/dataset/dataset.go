// Package dataset holds the principal entity of the resampling engine: a
// scanned image volume made of a 4-D numeric grid, the coordinate frame it
// lives in, per-frame timing, voxel size and a scaling model.
//
// Three passes run over a data set. ComputeFrameMinMax scans every frame for
// its finite bounds, ComputeDistribution bins all intensities into a
// log-compressed histogram, and ExtractSlice resamples the grid through an
// arbitrary oriented plane into a new single-plane data set. Statistics and
// the distribution are cached on the data set and invalidated whenever its
// raw content changes.
//
// A data set is not safe for concurrent mutation. Concurrent extraction from
// one source is safe once its frame statistics have been computed.
package dataset

import (
	"fmt"
	"math"
	"runtime"
	"sync"
	"weak"

	"gonum.org/v1/gonum/spatial/r3"

	"volslice/pkg/grid"
	"volslice/pkg/space"
)

// Interpolation selects how ExtractSlice samples the source grid.
type Interpolation int

const (
	NearestNeighbor Interpolation = iota
	Trilinear
)

func (i Interpolation) String() string {
	switch i {
	case Trilinear:
		return "trilinear"
	default:
		return "nearest"
	}
}

// ParseInterpolation accepts "nearest" or "trilinear".
func ParseInterpolation(s string) (Interpolation, error) {
	switch s {
	case "nearest", "nearest-neighbor", "":
		return NearestNeighbor, nil
	case "trilinear":
		return Trilinear, nil
	}
	return NearestNeighbor, fmt.Errorf("unknown interpolation %q", s)
}

// Thresholding selects how display code derives its intensity window. The
// engine does not interpret it; slices inherit it from their source.
type Thresholding int

const (
	ThresholdPerSlice Thresholding = iota
	ThresholdPerFrame
	ThresholdInterpolateFrames
	ThresholdGlobal
)

// DataSet is a scanned volume together with its spatial and timing metadata.
type DataSet struct {
	// Name is a free-form label, used in progress messages.
	Name string

	// Modality is the acquisition modality (e.g. "PET", "MRI"). Slices
	// inherit it.
	Modality string

	grid      grid.Grid
	space     space.Space
	voxelSize r3.Vec

	scanStart     float64
	frameDuration []float64
	scaling       Scaling

	interpolation Interpolation
	thresholding  Thresholding
	thresholdMin  float64
	thresholdMax  float64

	// frameMax and frameMin are nil until computed.
	frameMax []float64
	frameMin []float64

	distribution *Distribution

	// mu guards the parent link and the dependents registry. Both hold
	// weak pointers: neither direction keeps the other data set alive.
	mu         sync.Mutex
	parent     weak.Pointer[DataSet]
	dependents map[weak.Pointer[DataSet]]struct{}
	released   bool
}

// New wraps an existing grid. Every frame gets a duration of 1 and the
// scaling model is the identity.
func New(g grid.Grid, s space.Space, voxelSize r3.Vec) (*DataSet, error) {
	if g == nil {
		return nil, fmt.Errorf("data set needs a grid")
	}
	if !(voxelSize.X > 0 && voxelSize.Y > 0 && voxelSize.Z > 0) {
		return nil, fmt.Errorf("voxel size must be positive, got %v", voxelSize)
	}
	dim := g.Dim()
	durations := make([]float64, dim.T)
	for i := range durations {
		durations[i] = 1.0
	}
	return &DataSet{
		grid:          g,
		space:         s,
		voxelSize:     voxelSize,
		frameDuration: durations,
		scaling:       IdentityScaling(),
		dependents:    make(map[weak.Pointer[DataSet]]struct{}),
	}, nil
}

// NewWithData allocates a zero-filled grid of the given kind and wraps it.
func NewWithData(kind grid.Kind, dim grid.Voxel, s space.Space, voxelSize r3.Vec) (*DataSet, error) {
	g, err := grid.NewOfKind(kind, dim)
	if err != nil {
		logger().Warn("couldn't allocate space for the data set", "dim", dim.String(), "kind", kind.String(), "error", err)
		return nil, err
	}
	return New(g, s, voxelSize)
}

// Grid returns the raw grid. Callers that write to it directly must call
// Invalidate afterwards.
func (ds *DataSet) Grid() grid.Grid { return ds.grid }

// Dim returns the grid extent.
func (ds *DataSet) Dim() grid.Voxel { return ds.grid.Dim() }

// Kind returns the grid element kind.
func (ds *DataSet) Kind() grid.Kind { return ds.grid.Kind() }

// Space returns the data set's coordinate frame.
func (ds *DataSet) Space() space.Space { return ds.space }

// SetSpace moves the data set to a new frame.
func (ds *DataSet) SetSpace(s space.Space) { ds.space = s }

// VoxelSize returns the physical size of a voxel (mm per voxel per axis).
func (ds *DataSet) VoxelSize() r3.Vec { return ds.voxelSize }

// Corner returns the far corner of the data set in its own frame.
func (ds *DataSet) Corner() r3.Vec {
	dim := ds.grid.Dim()
	return r3.Vec{
		X: float64(dim.X) * ds.voxelSize.X,
		Y: float64(dim.Y) * ds.voxelSize.Y,
		Z: float64(dim.Z) * ds.voxelSize.Z,
	}
}

// Box returns the bounding box of the data set.
func (ds *DataSet) Box() space.Box {
	return space.NewBox(ds.space, ds.Corner())
}

// Interpolation returns the sampling mode used by ExtractSlice.
func (ds *DataSet) Interpolation() Interpolation { return ds.interpolation }

// SetInterpolation changes the sampling mode used by ExtractSlice.
func (ds *DataSet) SetInterpolation(i Interpolation) { ds.interpolation = i }

// Thresholding returns the thresholding mode and window.
func (ds *DataSet) Thresholding() (mode Thresholding, min, max float64) {
	return ds.thresholding, ds.thresholdMin, ds.thresholdMax
}

// SetThresholding stores the thresholding mode and window.
func (ds *DataSet) SetThresholding(mode Thresholding, min, max float64) {
	ds.thresholding = mode
	ds.thresholdMin = min
	ds.thresholdMax = max
}

// Value returns the scaled value at v.
func (ds *DataSet) Value(v grid.Voxel) (float64, error) {
	if !ds.grid.Includes(v) {
		return 0, fmt.Errorf("%w: %v not in %v", grid.ErrOutOfBounds, v, ds.grid.Dim())
	}
	return ds.value(v), nil
}

// value returns the scaled value at v. The caller must have checked bounds.
func (ds *DataSet) value(v grid.Voxel) float64 {
	return ds.scaling.apply(ds.grid.At(ds.grid.Index(v)), v.Z, v.T, ds.grid.Dim().Z)
}

// SetValue stores a scaled value at v by inverting the scaling model, and
// drops the cached statistics.
func (ds *DataSet) SetValue(v grid.Voxel, val float64) error {
	raw := ds.scaling.invert(val, v.Z, v.T, ds.grid.Dim().Z)
	if err := ds.grid.SetValue(v, raw); err != nil {
		return err
	}
	ds.Invalidate()
	return nil
}

// Invalidate discards the cached frame statistics and distribution. It must
// be called after any direct write to the grid.
func (ds *DataSet) Invalidate() {
	ds.frameMax = nil
	ds.frameMin = nil
	ds.distribution = nil
}

// Parent returns the data set this one was sliced from, or nil if it was not
// derived, or the parent has since been released or collected. The link
// never keeps the parent alive.
func (ds *DataSet) Parent() *DataSet {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.parent.Value()
}

// dependentEntry identifies a registry entry to drop once the dependent has
// been collected.
type dependentEntry struct {
	parent weak.Pointer[DataSet]
	key    weak.Pointer[DataSet]
}

// setParent registers ds as a dependent of parent so that releasing the
// parent clears the link. A dependent dropped without Release leaves the
// registry when it is garbage collected.
func (ds *DataSet) setParent(parent *DataSet) {
	key := weak.Make(ds)
	parent.mu.Lock()
	if parent.released {
		parent.mu.Unlock()
		return
	}
	parent.dependents[key] = struct{}{}
	parent.mu.Unlock()

	ds.mu.Lock()
	ds.parent = weak.Make(parent)
	ds.mu.Unlock()

	runtime.AddCleanup(ds, dropDependent, dependentEntry{parent: weak.Make(parent), key: key})
}

func dropDependent(e dependentEntry) {
	parent := e.parent.Value()
	if parent == nil {
		return
	}
	parent.mu.Lock()
	delete(parent.dependents, e.key)
	parent.mu.Unlock()
}

// dependentCount returns the number of live entries in the registry.
func (ds *DataSet) dependentCount() int {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return len(ds.dependents)
}

// Release destroys the data set's relationships: every slice derived from it
// loses its parent link, and it is removed from its own parent's registry.
// Cached statistics are dropped. The data set must not be used afterwards.
func (ds *DataSet) Release() {
	ds.mu.Lock()
	if ds.released {
		ds.mu.Unlock()
		return
	}
	ds.released = true
	deps := ds.dependents
	ds.dependents = nil
	parent := ds.parent.Value()
	ds.parent = weak.Pointer[DataSet]{}
	ds.mu.Unlock()

	for key := range deps {
		dep := key.Value()
		if dep == nil {
			continue
		}
		dep.mu.Lock()
		if dep.parent.Value() == ds {
			dep.parent = weak.Pointer[DataSet]{}
		}
		dep.mu.Unlock()
	}

	if parent != nil {
		parent.mu.Lock()
		delete(parent.dependents, weak.Make(ds))
		parent.mu.Unlock()
	}

	ds.Invalidate()
}

// Released reports whether Release has been called.
func (ds *DataSet) Released() bool {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.released
}

// pointToVoxel returns the voxel containing p (data set frame) at frame t.
func pointToVoxel(p, voxelSize r3.Vec, t int) grid.Voxel {
	return grid.Voxel{
		X: int(math.Floor(p.X / voxelSize.X)),
		Y: int(math.Floor(p.Y / voxelSize.Y)),
		Z: int(math.Floor(p.Z / voxelSize.Z)),
		T: t,
	}
}
