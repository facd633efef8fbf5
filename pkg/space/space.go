// Package space implements orthonormal affine coordinate frames and the
// oriented bounding boxes built on them.
//
// A Space is an origin (offset) in the base frame plus three mutually
// orthogonal unit axes. Points expressed in a Space map to the base frame as
//
//	base = offset + p.X*axes[0] + p.Y*axes[1] + p.Z*axes[2]
//
// Transforms between two spaces always pass through the base frame and never
// mutate either space.
package space

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// orthoTolerance bounds the error accepted when checking that a set of axes is
// orthonormal.
const orthoTolerance = 1e-6

// ErrNotOrthonormal is returned when axes are not unit length or not mutually
// orthogonal.
var ErrNotOrthonormal = errors.New("axes are not orthonormal")

// Space is an orthonormal affine frame.
type Space struct {
	offset r3.Vec
	axes   [3]r3.Vec
}

// Base returns the identity frame: zero offset and the canonical axes.
func Base() Space {
	return Space{axes: [3]r3.Vec{{X: 1}, {Y: 1}, {Z: 1}}}
}

// AtOffset returns a frame with canonical axes and the given origin.
func AtOffset(offset r3.Vec) Space {
	s := Base()
	s.offset = offset
	return s
}

// New builds a frame from an origin and three axes, rejecting axes that are
// not orthonormal.
func New(offset r3.Vec, axes [3]r3.Vec) (Space, error) {
	for i := 0; i < 3; i++ {
		if math.Abs(r3.Norm(axes[i])-1) > orthoTolerance {
			return Space{}, fmt.Errorf("%w: axis %d has length %g", ErrNotOrthonormal, i, r3.Norm(axes[i]))
		}
		for j := i + 1; j < 3; j++ {
			if math.Abs(r3.Dot(axes[i], axes[j])) > orthoTolerance {
				return Space{}, fmt.Errorf("%w: axes %d and %d are not orthogonal", ErrNotOrthonormal, i, j)
			}
		}
	}
	return Space{offset: offset, axes: axes}, nil
}

// FromNormal builds a frame whose z axis points along normal. The x axis is
// chosen from the canonical axes so that it is as close as possible to the
// base x axis.
func FromNormal(offset, normal r3.Vec) (Space, error) {
	if r3.Norm(normal) == 0 {
		return Space{}, fmt.Errorf("%w: zero normal", ErrNotOrthonormal)
	}
	z := r3.Unit(normal)
	ref := r3.Vec{X: 1}
	if math.Abs(r3.Dot(z, ref)) > 0.9 {
		ref = r3.Vec{Y: 1}
	}
	x := r3.Unit(r3.Sub(ref, r3.Scale(r3.Dot(ref, z), z)))
	y := r3.Cross(z, x)
	return New(offset, [3]r3.Vec{x, y, z})
}

// Offset returns the origin of the frame in base coordinates.
func (s Space) Offset() r3.Vec { return s.offset }

// Axis returns axis i (0 = x, 1 = y, 2 = z) in base coordinates.
func (s Space) Axis(i int) r3.Vec { return s.axes[i] }

// Axes returns all three axes.
func (s Space) Axes() [3]r3.Vec { return s.axes }

// ToBase maps a point expressed in s into the base frame.
func (s Space) ToBase(p r3.Vec) r3.Vec {
	return r3.Add(s.offset, s.DirToBase(p))
}

// FromBase maps a base-frame point into s.
func (s Space) FromBase(p r3.Vec) r3.Vec {
	return s.DirFromBase(r3.Sub(p, s.offset))
}

// DirToBase maps a direction (no translation) expressed in s into the base
// frame.
func (s Space) DirToBase(d r3.Vec) r3.Vec {
	return r3.Add(r3.Add(r3.Scale(d.X, s.axes[0]), r3.Scale(d.Y, s.axes[1])), r3.Scale(d.Z, s.axes[2]))
}

// DirFromBase maps a base-frame direction into s.
func (s Space) DirFromBase(d r3.Vec) r3.Vec {
	return r3.Vec{
		X: r3.Dot(d, s.axes[0]),
		Y: r3.Dot(d, s.axes[1]),
		Z: r3.Dot(d, s.axes[2]),
	}
}

// TransformPoint maps p from src coordinates into dst coordinates.
func TransformPoint(src, dst Space, p r3.Vec) r3.Vec {
	return dst.FromBase(src.ToBase(p))
}

// TransformDirection maps a direction from src into dst, ignoring the
// translation between the two frames.
func TransformDirection(src, dst Space, d r3.Vec) r3.Vec {
	return dst.DirFromBase(src.DirToBase(d))
}

// Translate returns a copy of s with its origin moved by delta (base frame).
func (s Space) Translate(delta r3.Vec) Space {
	s.offset = r3.Add(s.offset, delta)
	return s
}

// SetOffset returns a copy of s with the given origin.
func (s Space) SetOffset(offset r3.Vec) Space {
	s.offset = offset
	return s
}

// Rotate returns a copy of s with its axes rotated by theta radians about
// axis (base frame), pivoting around the base-frame point center.
func (s Space) Rotate(axis r3.Vec, theta float64, center r3.Vec) Space {
	rot := r3.NewRotation(theta, axis)
	out := s
	for i := range out.axes {
		out.axes[i] = rot.Rotate(s.axes[i])
	}
	out.offset = r3.Add(center, rot.Rotate(r3.Sub(s.offset, center)))
	out.axes = orthonormalize(out.axes)
	return out
}

// Compose interprets inner as a frame expressed in outer's coordinates and
// returns the equivalent frame in base coordinates.
func Compose(outer, inner Space) Space {
	out := Space{offset: outer.ToBase(inner.offset)}
	for i := range inner.axes {
		out.axes[i] = outer.DirToBase(inner.axes[i])
	}
	out.axes = orthonormalize(out.axes)
	return out
}

// Equal reports whether two frames agree within tol on origin and axes.
func Equal(a, b Space, tol float64) bool {
	if r3.Norm(r3.Sub(a.offset, b.offset)) > tol {
		return false
	}
	for i := range a.axes {
		if r3.Norm(r3.Sub(a.axes[i], b.axes[i])) > tol {
			return false
		}
	}
	return true
}

// orthonormalize runs Gram-Schmidt over the axes and rebuilds z from x and y
// so accumulated rounding cannot break the frame.
func orthonormalize(axes [3]r3.Vec) [3]r3.Vec {
	x := r3.Unit(axes[0])
	y := r3.Unit(r3.Sub(axes[1], r3.Scale(r3.Dot(axes[1], x), x)))
	z := r3.Cross(x, y)
	if r3.Dot(z, axes[2]) < 0 {
		z = r3.Scale(-1, z)
	}
	return [3]r3.Vec{x, y, z}
}

func (s Space) String() string {
	return fmt.Sprintf("offset %v axes [%v %v %v]", s.offset, s.axes[0], s.axes[1], s.axes[2])
}
