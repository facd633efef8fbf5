package main

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"volslice/internal/models"
	"volslice/pkg/dataset"
	"volslice/pkg/space"
)

// stackViews lays out req.Count parallel viewing volumes perpendicular to
// req.Normal, centred on req.Center (or the volume center) and spaced
// req.Spacing apart. Zero width or height spans the volume as seen from the
// slice plane; zero thickness is one source voxel along the normal.
func stackViews(src *dataset.DataSet, req models.SliceRequest) ([]space.Box, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	normal := r3.Vec{X: req.Normal[0], Y: req.Normal[1], Z: req.Normal[2]}
	frame, err := space.FromNormal(r3.Vec{}, normal)
	if err != nil {
		return nil, fmt.Errorf("invalid slice normal: %w", err)
	}

	center := src.Box().Center()
	if req.Center != nil {
		center = r3.Vec{X: req.Center[0], Y: req.Center[1], Z: req.Center[2]}
	}

	width, height := req.Width, req.Height
	if width == 0 || height == 0 {
		bounds := src.Box().EnclosingCorners(frame)
		if width == 0 {
			width = bounds.Max.X - bounds.Min.X
		}
		if height == 0 {
			height = bounds.Max.Y - bounds.Min.Y
		}
	}

	thickness := req.Thickness
	if thickness == 0 {
		d := space.TransformDirection(frame, src.Space(), r3.Vec{Z: 1})
		vs := src.VoxelSize()
		thickness = r3.Norm(r3.Vec{X: d.X * vs.X, Y: d.Y * vs.Y, Z: d.Z * vs.Z})
	}
	spacing := req.Spacing
	if spacing == 0 {
		spacing = thickness
	}

	// the near corner sits half an extent back from the slice center along
	// each view axis
	half := frame.DirToBase(r3.Vec{X: width / 2, Y: height / 2, Z: thickness / 2})
	step := r3.Scale(spacing, frame.Axis(2))
	first := -float64(req.Count-1) / 2

	views := make([]space.Box, req.Count)
	for i := range views {
		c := r3.Add(center, r3.Scale(first+float64(i), step))
		views[i] = space.NewBox(frame.SetOffset(r3.Sub(c, half)), r3.Vec{X: width, Y: height, Z: thickness})
	}
	return views, nil
}
