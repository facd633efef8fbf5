package space

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Box is an oriented bounding box: a Space plus the far corner of the box in
// that space's coordinates. The near corner is the space's origin. Both data
// set extents and requested viewing volumes are described as boxes.
type Box struct {
	Space  Space
	Corner r3.Vec
}

// NewBox returns a box anchored at the origin of s spanning extent.
func NewBox(s Space, extent r3.Vec) Box {
	return Box{Space: s, Corner: extent}
}

// Local returns the box in its own coordinates, with Min <= Max on each axis.
func (b Box) Local() r3.Box {
	return r3.Box{
		Min: r3.Vec{X: math.Min(0, b.Corner.X), Y: math.Min(0, b.Corner.Y), Z: math.Min(0, b.Corner.Z)},
		Max: r3.Vec{X: math.Max(0, b.Corner.X), Y: math.Max(0, b.Corner.Y), Z: math.Max(0, b.Corner.Z)},
	}
}

// Center returns the center of the box in base coordinates.
func (b Box) Center() r3.Vec {
	return b.Space.ToBase(r3.Scale(0.5, b.Corner))
}

// EnclosingCorners returns the axis-aligned bounds, in frame s, of the eight
// vertices of b.
func (b Box) EnclosingCorners(s Space) r3.Box {
	inf := math.Inf(1)
	out := r3.Box{
		Min: r3.Vec{X: inf, Y: inf, Z: inf},
		Max: r3.Vec{X: -inf, Y: -inf, Z: -inf},
	}
	for _, v := range b.Local().Vertices() {
		p := TransformPoint(b.Space, s, v)
		out.Min = r3.Vec{X: math.Min(out.Min.X, p.X), Y: math.Min(out.Min.Y, p.Y), Z: math.Min(out.Min.Z, p.Z)}
		out.Max = r3.Vec{X: math.Max(out.Max.X, p.X), Y: math.Max(out.Max.Y, p.Y), Z: math.Max(out.Max.Z, p.Z)}
	}
	return out
}

// Intersection returns the region, in a's coordinates, shared by a and the
// axis-aligned (in a's frame) bounds enclosing b. ok is false when the two
// boxes do not overlap with positive volume.
func Intersection(a, b Box) (r3.Box, bool) {
	la := a.Local()
	lb := b.EnclosingCorners(a.Space)
	out := r3.Box{
		Min: r3.Vec{X: math.Max(la.Min.X, lb.Min.X), Y: math.Max(la.Min.Y, lb.Min.Y), Z: math.Max(la.Min.Z, lb.Min.Z)},
		Max: r3.Vec{X: math.Min(la.Max.X, lb.Max.X), Y: math.Min(la.Max.Y, lb.Max.Y), Z: math.Min(la.Max.Z, lb.Max.Z)},
	}
	if out.Empty() {
		return r3.Box{}, false
	}
	return out, true
}
