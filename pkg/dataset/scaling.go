package dataset

import (
	"fmt"
	"slices"
)

// ScalingType describes how raw grid values map to physical intensity.
type ScalingType int

const (
	// Scaling0D applies one factor to the whole grid.
	Scaling0D ScalingType = iota
	// Scaling1D applies one factor per frame.
	Scaling1D
	// Scaling2D applies one factor per plane per frame.
	Scaling2D
	Scaling0DWithIntercept
	Scaling1DWithIntercept
	Scaling2DWithIntercept
)

// Scaling maps a raw value r at plane z, frame t to r*factor + intercept.
// Factor (and Intercept, for the intercept variants) hold 1, T or Z*T
// entries; 2-D entries are indexed z + Z*t.
type Scaling struct {
	Type      ScalingType
	Factor    []float64
	Intercept []float64
}

// IdentityScaling leaves raw values unchanged.
func IdentityScaling() Scaling {
	return Scaling{Type: Scaling0D, Factor: []float64{1}}
}

func (s Scaling) hasIntercept() bool {
	return s.Type >= Scaling0DWithIntercept
}

func (s Scaling) entries(dim [2]int) int {
	switch s.Type {
	case Scaling1D, Scaling1DWithIntercept:
		return dim[1]
	case Scaling2D, Scaling2DWithIntercept:
		return dim[0] * dim[1]
	default:
		return 1
	}
}

func (s Scaling) index(z, t, dimZ int) int {
	switch s.Type {
	case Scaling1D, Scaling1DWithIntercept:
		return t
	case Scaling2D, Scaling2DWithIntercept:
		return z + dimZ*t
	default:
		return 0
	}
}

func (s Scaling) apply(raw float64, z, t, dimZ int) float64 {
	i := s.index(z, t, dimZ)
	v := raw * s.Factor[i]
	if s.hasIntercept() {
		v += s.Intercept[i]
	}
	return v
}

func (s Scaling) invert(val float64, z, t, dimZ int) float64 {
	i := s.index(z, t, dimZ)
	if s.hasIntercept() {
		val -= s.Intercept[i]
	}
	if s.Factor[i] == 0 {
		return 0
	}
	return val / s.Factor[i]
}

// Scaling returns a copy of the current scaling model.
func (ds *DataSet) Scaling() Scaling {
	s := ds.scaling
	s.Factor = slices.Clone(s.Factor)
	s.Intercept = slices.Clone(s.Intercept)
	return s
}

// SetScaling replaces the scaling model after checking it has one entry per
// frame or plane as its type requires. Cached statistics are dropped.
func (ds *DataSet) SetScaling(s Scaling) error {
	dim := ds.grid.Dim()
	want := s.entries([2]int{dim.Z, dim.T})
	if len(s.Factor) != want {
		return fmt.Errorf("scaling type %d needs %d factors, got %d", s.Type, want, len(s.Factor))
	}
	if s.hasIntercept() && len(s.Intercept) != want {
		return fmt.Errorf("scaling type %d needs %d intercepts, got %d", s.Type, want, len(s.Intercept))
	}
	s.Factor = slices.Clone(s.Factor)
	s.Intercept = slices.Clone(s.Intercept)
	ds.scaling = s
	ds.Invalidate()
	return nil
}
