// Package grid provides typed, rectangular 4-D numeric storage for image
// volumes. A grid is addressed by a Voxel (x, y, z, t) and holds one scalar of
// a fixed element kind per cell. All access through the Grid interface is
// bounds checked; out-of-range access is reported as ErrOutOfBounds.
package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

var (
	// ErrOutOfBounds is returned when a voxel lies outside the grid extent.
	ErrOutOfBounds = errors.New("voxel out of bounds")

	// ErrInvalidDim is returned when any requested extent is below 1.
	ErrInvalidDim = errors.New("grid extents must all be at least 1")

	// ErrAllocation is returned when the grid storage cannot be allocated,
	// either because the element count overflows or exceeds MaxElements.
	ErrAllocation = errors.New("could not allocate grid storage")
)

// MaxElements is the largest number of cells a single grid may hold.
// Requests above it fail with ErrAllocation instead of exhausting memory.
var MaxElements = 1 << 31

// Kind identifies the element type stored in a grid.
type Kind uint8

const (
	Uint8 Kind = iota
	Int8
	Uint16
	Int16
	Uint32
	Int32
	Float32
	Float64
)

var kindBytes = map[Kind]int{
	Uint8:   1,
	Int8:    1,
	Uint16:  2,
	Int16:   2,
	Uint32:  4,
	Int32:   4,
	Float32: 4,
	Float64: 8,
}

var kindNames = map[Kind]string{
	Uint8:   "uint8",
	Int8:    "int8",
	Uint16:  "uint16",
	Int16:   "int16",
	Uint32:  "uint32",
	Int32:   "int32",
	Float32: "float32",
	Float64: "float64",
}

// Bytes returns the size of one element of this kind.
func (k Kind) Bytes() int {
	return kindBytes[k]
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// IsFloat reports whether the kind can hold non-finite values.
func (k Kind) IsFloat() bool {
	return k == Float32 || k == Float64
}

// ParseKind converts a name such as "int16" into a Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown element kind %q", name)
}

// Voxel is an exact index into a grid. It carries no reference to any grid.
type Voxel struct {
	X, Y, Z, T int
}

// NewVoxel is a shorthand constructor.
func NewVoxel(x, y, z, t int) Voxel {
	return Voxel{X: x, Y: y, Z: z, T: t}
}

// Count returns the number of cells spanned when v is used as an extent.
func (v Voxel) Count() int {
	return v.X * v.Y * v.Z * v.T
}

func (v Voxel) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", v.X, v.Y, v.Z, v.T)
}

// Number is the set of element types a grid can be parameterized over.
type Number interface {
	~uint8 | ~int8 | ~uint16 | ~int16 | ~uint32 | ~int32 | ~float32 | ~float64
}

// Grid is the kind-agnostic view of a typed grid. Values cross this boundary
// as float64 regardless of the underlying element kind.
type Grid interface {
	// Kind returns the element kind tag.
	Kind() Kind

	// Dim returns the extent of the grid along each of the four axes.
	Dim() Voxel

	// Len returns the total number of cells.
	Len() int

	// Includes reports whether v addresses a cell of the grid.
	Includes(v Voxel) bool

	// Index returns the linear offset of v. The caller must have checked
	// Includes first.
	Index(v Voxel) int

	// At returns the value at a linear offset obtained from Index.
	At(i int) float64

	// Value returns the value at v, or ErrOutOfBounds.
	Value(v Voxel) (float64, error)

	// SetValue stores val at v, converting it to the element kind.
	SetValue(v Voxel, val float64) error

	// Fill sets every cell to val.
	Fill(val float64)
}

// Data is a grid whose cells are of element type T, stored contiguously in
// x-fastest order: index = x + dx*(y + dy*(z + dz*t)).
type Data[T Number] struct {
	dim  Voxel
	kind Kind
	data []T
}

// New allocates a zero-filled grid of element type T with the given extent.
func New[T Number](dim Voxel) (*Data[T], error) {
	if dim.X < 1 || dim.Y < 1 || dim.Z < 1 || dim.T < 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidDim, dim)
	}
	kind := kindOf[T]()
	n, ok := cellCount(dim)
	if !ok || n > MaxElements {
		return nil, fmt.Errorf("%w: wanted %dx%dx%dx%d %s elements (%s)", ErrAllocation,
			dim.X, dim.Y, dim.Z, dim.T, kind, describeBytes(dim, kind))
	}
	return &Data[T]{
		dim:  dim,
		kind: kind,
		data: make([]T, n),
	}, nil
}

// NewOfKind allocates a zero-filled grid for a kind chosen at runtime.
func NewOfKind(kind Kind, dim Voxel) (Grid, error) {
	switch kind {
	case Uint8:
		return New[uint8](dim)
	case Int8:
		return New[int8](dim)
	case Uint16:
		return New[uint16](dim)
	case Int16:
		return New[int16](dim)
	case Uint32:
		return New[uint32](dim)
	case Int32:
		return New[int32](dim)
	case Float32:
		return New[float32](dim)
	case Float64:
		return New[float64](dim)
	default:
		return nil, fmt.Errorf("unsupported element kind %v", kind)
	}
}

// cellCount multiplies the extents, reporting false on overflow.
func cellCount(dim Voxel) (int, bool) {
	n := 1
	for _, d := range [4]int{dim.X, dim.Y, dim.Z, dim.T} {
		if n > math.MaxInt/d {
			return 0, false
		}
		n *= d
	}
	return n, true
}

func describeBytes(dim Voxel, kind Kind) string {
	total := float64(kind.Bytes())
	for _, d := range [4]int{dim.X, dim.Y, dim.Z, dim.T} {
		total *= float64(d)
	}
	if total >= math.MaxUint64 {
		return "too large"
	}
	return humanize.Bytes(uint64(total))
}

func kindOf[T Number]() Kind {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return Uint8
	case int8:
		return Int8
	case uint16:
		return Uint16
	case int16:
		return Int16
	case uint32:
		return Uint32
	case int32:
		return Int32
	case float32:
		return Float32
	default:
		return Float64
	}
}

func (g *Data[T]) Kind() Kind { return g.kind }
func (g *Data[T]) Dim() Voxel { return g.dim }
func (g *Data[T]) Len() int { return len(g.data) }

// Slice exposes the backing storage. Writes through it bypass any caches
// kept by the owner of the grid.
func (g *Data[T]) Slice() []T { return g.data }

func (g *Data[T]) Includes(v Voxel) bool {
	return v.X >= 0 && v.X < g.dim.X &&
		v.Y >= 0 && v.Y < g.dim.Y &&
		v.Z >= 0 && v.Z < g.dim.Z &&
		v.T >= 0 && v.T < g.dim.T
}

func (g *Data[T]) Index(v Voxel) int {
	return v.X + g.dim.X*(v.Y+g.dim.Y*(v.Z+g.dim.Z*v.T))
}

func (g *Data[T]) At(i int) float64 {
	return float64(g.data[i])
}

// Get returns the typed value at v.
func (g *Data[T]) Get(v Voxel) (T, error) {
	if !g.Includes(v) {
		var zero T
		return zero, fmt.Errorf("%w: %v not in %v", ErrOutOfBounds, v, g.dim)
	}
	return g.data[g.Index(v)], nil
}

// Set stores a typed value at v.
func (g *Data[T]) Set(v Voxel, val T) error {
	if !g.Includes(v) {
		return fmt.Errorf("%w: %v not in %v", ErrOutOfBounds, v, g.dim)
	}
	g.data[g.Index(v)] = val
	return nil
}

func (g *Data[T]) Value(v Voxel) (float64, error) {
	val, err := g.Get(v)
	return float64(val), err
}

// SetValue converts val to T. Integer kinds round to nearest and saturate
// at the bounds of the element type.
func (g *Data[T]) SetValue(v Voxel, val float64) error {
	return g.Set(v, convert[T](g.kind, val))
}

func (g *Data[T]) Fill(val float64) {
	c := convert[T](g.kind, val)
	for i := range g.data {
		g.data[i] = c
	}
}

// Add accumulates val into the cell at linear offset i.
func (g *Data[T]) Add(i int, val T) {
	g.data[i] += val
}

func convert[T Number](kind Kind, val float64) T {
	if kind.IsFloat() {
		return T(val)
	}
	if math.IsNaN(val) {
		return 0
	}
	lo, hi := kindRange(kind)
	val = math.Round(val)
	if val < lo {
		val = lo
	} else if val > hi {
		val = hi
	}
	return T(val)
}

func kindRange(kind Kind) (lo, hi float64) {
	switch kind {
	case Uint8:
		return 0, math.MaxUint8
	case Int8:
		return math.MinInt8, math.MaxInt8
	case Uint16:
		return 0, math.MaxUint16
	case Int16:
		return math.MinInt16, math.MaxInt16
	case Uint32:
		return 0, math.MaxUint32
	case Int32:
		return math.MinInt32, math.MaxInt32
	default:
		return math.Inf(-1), math.Inf(1)
	}
}
