package main

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"volslice/pkg/config"
	"volslice/pkg/dataset"
	"volslice/pkg/grid"
	"volslice/pkg/phantom"
	"volslice/pkg/progress"
	"volslice/pkg/space"
)

// loadVolume reads the NIfTI file at path, or builds the configured phantom
// when path is empty.
func loadVolume(path string, cfg *config.Config) (*dataset.DataSet, error) {
	if path == "" {
		return buildPhantom(cfg)
	}

	ds, err := loadNifti(path)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".nii.gz")
	name = strings.TrimSuffix(name, ".nii")
	ds.Name = name
	return ds, nil
}

func buildPhantom(cfg *config.Config) (*dataset.DataSet, error) {
	p := cfg.Phantom
	kind, err := grid.ParseKind(p.Kind)
	if err != nil {
		return nil, fmt.Errorf("invalid phantom kind: %w", err)
	}
	shape, err := phantom.ParseShape(p.Shape)
	if err != nil {
		return nil, err
	}

	opts := phantom.Options{
		Name:          "phantom-" + shape.String(),
		Dim:           grid.NewVoxel(p.Dim[0], p.Dim[1], p.Dim[2], p.Frames),
		VoxelSize:     r3.Vec{X: p.VoxelSize[0], Y: p.VoxelSize[1], Z: p.VoxelSize[2]},
		Kind:          kind,
		Shape:         shape,
		FrameDuration: p.FrameDuration,
		Space:         space.Base(),
	}
	slog.Debug("building phantom", "shape", shape.String(), "dim", opts.Dim.String(), "kind", kind.String())
	return phantom.New(opts)
}

// applyInterpolation sets the sampling mode named in the request, keeping
// the current one when name is empty.
func applyInterpolation(ds *dataset.DataSet, name string) error {
	if name == "" {
		return nil
	}
	interp, err := dataset.ParseInterpolation(name)
	if err != nil {
		return err
	}
	ds.SetInterpolation(interp)
	return nil
}

// progressPrinter shows a percentage on w, one line per pass.
func progressPrinter(w io.Writer) progress.Func {
	return func(message string, fraction float64) bool {
		if message != "" {
			fmt.Fprintln(w, message)
		}
		if fraction == progress.Done {
			fmt.Fprintln(w, "\r100%")
			return true
		}
		fmt.Fprintf(w, "\r%3.0f%%", fraction*100)
		return true
	}
}
