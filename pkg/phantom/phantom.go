// Package phantom generates synthetic data sets with known content. They
// stand in for scanner data in tests and in the command line tool when no
// input volume is given.
package phantom

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"volslice/pkg/dataset"
	"volslice/pkg/grid"
	"volslice/pkg/space"
)

// Shape selects the pattern written into the phantom.
type Shape int

const (
	// Shells places a bright spherical shell around the volume center on a
	// faint gradient background. The shell grows by one voxel per frame.
	Shells Shape = iota
	// Ramp fills the volume with a linear gradient along x+y+z, offset by
	// frame.
	Ramp
)

func (s Shape) String() string {
	switch s {
	case Ramp:
		return "ramp"
	default:
		return "shells"
	}
}

// ParseShape accepts "shells" or "ramp".
func ParseShape(name string) (Shape, error) {
	switch strings.ToLower(name) {
	case "shells", "":
		return Shells, nil
	case "ramp":
		return Ramp, nil
	}
	return Shells, fmt.Errorf("unknown phantom shape %q", name)
}

// Amplitude is the peak value written by Shells and the range of Ramp.
const Amplitude = 1000.0

// Options describes the phantom to build.
type Options struct {
	Name          string
	Dim           grid.Voxel
	VoxelSize     r3.Vec
	Kind          grid.Kind
	Shape         Shape
	FrameDuration float64
	Space         space.Space
}

// DefaultOptions returns a 64x64x32 single-frame float32 shell phantom with
// 1 mm voxels.
func DefaultOptions() Options {
	return Options{
		Name:          "phantom",
		Dim:           grid.NewVoxel(64, 64, 32, 1),
		VoxelSize:     r3.Vec{X: 1, Y: 1, Z: 1},
		Kind:          grid.Float32,
		Shape:         Shells,
		FrameDuration: 1,
		Space:         space.Base(),
	}
}

// New builds a phantom data set.
func New(opts Options) (*dataset.DataSet, error) {
	ds, err := dataset.NewWithData(opts.Kind, opts.Dim, opts.Space, opts.VoxelSize)
	if err != nil {
		return nil, fmt.Errorf("error creating phantom: %w", err)
	}
	ds.Name = opts.Name
	ds.Modality = "phantom"

	if opts.FrameDuration > 0 {
		for t := 0; t < opts.Dim.T; t++ {
			if err := ds.SetFrameDuration(t, opts.FrameDuration); err != nil {
				return nil, err
			}
		}
	}

	pattern := shells(opts.Dim, opts.VoxelSize)
	if opts.Shape == Ramp {
		pattern = ramp(opts.Dim)
	}

	g := ds.Grid()
	var v grid.Voxel
	for v.T = 0; v.T < opts.Dim.T; v.T++ {
		for v.Z = 0; v.Z < opts.Dim.Z; v.Z++ {
			for v.Y = 0; v.Y < opts.Dim.Y; v.Y++ {
				for v.X = 0; v.X < opts.Dim.X; v.X++ {
					if err := g.SetValue(v, pattern(v)); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	ds.Invalidate()

	return ds, nil
}

// shells returns a pattern with a bright shell of about two voxels thickness
// around the volume center.
func shells(dim grid.Voxel, voxelSize r3.Vec) func(grid.Voxel) float64 {
	center := r3.Vec{
		X: float64(dim.X) * voxelSize.X / 2,
		Y: float64(dim.Y) * voxelSize.Y / 2,
		Z: float64(dim.Z) * voxelSize.Z / 2,
	}
	smallest := math.Min(float64(dim.X)*voxelSize.X, math.Min(float64(dim.Y)*voxelSize.Y, float64(dim.Z)*voxelSize.Z))
	step := math.Min(voxelSize.X, math.Min(voxelSize.Y, voxelSize.Z))
	span := float64(dim.X + dim.Y + dim.Z)

	return func(v grid.Voxel) float64 {
		p := r3.Vec{
			X: (float64(v.X) + 0.5) * voxelSize.X,
			Y: (float64(v.Y) + 0.5) * voxelSize.Y,
			Z: (float64(v.Z) + 0.5) * voxelSize.Z,
		}
		radius := smallest/4 + float64(v.T)*step
		if math.Abs(r3.Norm(r3.Sub(p, center))-radius) < step {
			return Amplitude
		}
		return float64(v.X+v.Y+v.Z) / span * Amplitude * 0.2
	}
}

// ramp returns x+y+z scaled to [0, Amplitude) plus 10% of Amplitude per frame.
func ramp(dim grid.Voxel) func(grid.Voxel) float64 {
	span := float64(dim.X + dim.Y + dim.Z)
	return func(v grid.Voxel) float64 {
		return float64(v.X+v.Y+v.Z)/span*Amplitude + float64(v.T)*Amplitude/10
	}
}
