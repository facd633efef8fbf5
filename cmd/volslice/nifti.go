package main

import (
	"fmt"

	"github.com/henghuang/nifti"
	"gonum.org/v1/gonum/spatial/r3"

	"volslice/pkg/dataset"
	"volslice/pkg/grid"
	"volslice/pkg/space"
)

// safelyNiftiParse consumes panics emitted by the nifti library, which are
// inappropriate and must be captured in order to turn them into recoverable
// errors.
func safelyNiftiParse(filename string) (parsed nifti.Nifti1Image, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("%v", panicErr)
		}
	}()

	parsed.LoadImage(filename, true)

	return
}

// safelyNiftiHeaderParse is safelyNiftiParse for the header only.
func safelyNiftiHeaderParse(filename string) (parsed nifti.Nifti1Header, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("%v", panicErr)
		}
	}()

	parsed.LoadHeader(filename)

	return
}

// loadNifti reads a .nii or .nii.gz file into a float32 data set in the base
// frame. Voxel sizes and the frame duration come from pixdim; missing or
// non-positive entries default to 1.
func loadNifti(filename string) (*dataset.DataSet, error) {
	img, err := safelyNiftiParse(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", filename, err)
	}
	header, err := safelyNiftiHeaderParse(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading header of %s: %w", filename, err)
	}

	dims := img.GetDims()
	xm, ym, zm, tm := dims[0], dims[1], dims[2], dims[3]
	if tm < 1 {
		tm = 1
	}
	if zm < 1 {
		zm = 1
	}

	pixdim := func(i int) float64 {
		if d := float64(header.Pixdim[i]); d > 0 {
			return d
		}
		return 1
	}
	voxelSize := r3.Vec{X: pixdim(1), Y: pixdim(2), Z: pixdim(3)}

	ds, err := dataset.NewWithData(grid.Float32, grid.NewVoxel(xm, ym, zm, tm), space.Base(), voxelSize)
	if err != nil {
		return nil, fmt.Errorf("error creating volume for %s: %w", filename, err)
	}

	g := ds.Grid()
	for t := 0; t < tm; t++ {
		for z := 0; z < zm; z++ {
			for y := 0; y < ym; y++ {
				for x := 0; x < xm; x++ {
					if err := g.SetValue(grid.NewVoxel(x, y, z, t), float64(img.GetAt(x, y, z, t))); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	ds.Invalidate()

	if tm > 1 {
		for t := 0; t < tm; t++ {
			if err := ds.SetFrameDuration(t, pixdim(4)); err != nil {
				return nil, err
			}
		}
	}

	return ds, nil
}
