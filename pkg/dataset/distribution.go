package dataset

import (
	"context"
	"errors"
	"fmt"
	"math"

	"volslice/pkg/grid"
	"volslice/pkg/progress"
)

// DistributionSize is the number of bins in newly computed distributions.
var DistributionSize = 1024

// ErrCanceled is returned when a cancellable pass is stopped by its progress
// callback or context. Nothing is cached in that case.
var ErrCanceled = errors.New("pass canceled")

// Distribution is a log-compressed intensity histogram spanning the global
// value range of a data set. Bin i covers
// [Min + i*width, Min + (i+1)*width) with width = (Max-Min)/(Len()-1), and
// holds log10(count+1).
type Distribution struct {
	min, max float64
	bins     *grid.Data[float64]
}

// Len returns the number of bins.
func (d *Distribution) Len() int { return d.bins.Len() }

// Min returns the value mapped to bin 0.
func (d *Distribution) Min() float64 { return d.min }

// Max returns the value mapped to the last bin.
func (d *Distribution) Max() float64 { return d.max }

// Bin returns the log-compressed weight of bin i.
func (d *Distribution) Bin(i int) float64 {
	return d.bins.Slice()[i]
}

// Bins returns a copy of all bin weights.
func (d *Distribution) Bins() []float64 {
	out := make([]float64, d.bins.Len())
	copy(out, d.bins.Slice())
	return out
}

// BinRange returns the intensity interval covered by bin i.
func (d *Distribution) BinRange(i int) (lo, hi float64) {
	if d.Len() < 2 || d.max == d.min {
		return d.min, d.max
	}
	width := (d.max - d.min) / float64(d.Len()-1)
	return d.min + width*float64(i), d.min + width*float64(i+1)
}

// Distribution returns the cached distribution or nil if none has been
// computed.
func (ds *DataSet) Distribution() *Distribution {
	return ds.distribution
}

// ComputeDistribution bins every finite value of the data set into
// DistributionSize bins between the global minimum and maximum, then
// replaces each count c with log10(c+1). It is a no-op when a distribution is
// already cached.
//
// Unlike the statistics pass this one is cancellable: if fn returns false, or
// ctx is done, the partial histogram is discarded, nothing is cached and
// ErrCanceled is returned. The caller may simply retry.
func (ds *DataSet) ComputeDistribution(ctx context.Context, fn progress.Func) error {
	if ds.distribution != nil {
		return nil
	}

	min, max := ds.GlobalMin(), ds.GlobalMax()
	diff := max - min
	scale := 0.0
	if diff != 0 {
		scale = float64(DistributionSize-1) / diff
	}

	bins, err := grid.New[float64](grid.Voxel{X: DistributionSize, Y: 1, Z: 1, T: 1})
	if err != nil {
		logger().Warn("couldn't allocate space for the distribution data", "dataset", ds.Name, "error", err)
		return fmt.Errorf("distribution for %q: %w", ds.Name, err)
	}
	counts := bins.Slice()

	dim := ds.grid.Dim()
	r := progress.NewReporter(fn, dim.Z*dim.T, true)
	cont := r.Start(fmt.Sprintf("Generating distribution data for:\n   %s", ds.Name))

	var i grid.Voxel
	for i.T = 0; i.T < dim.T && cont; i.T++ {
		for i.Z = 0; i.Z < dim.Z && cont; i.Z++ {
			cont = r.Step(i.Z+i.T*dim.Z) && ctx.Err() == nil
			if !cont {
				break
			}
			for i.Y = 0; i.Y < dim.Y; i.Y++ {
				for i.X = 0; i.X < dim.X; i.X++ {
					v := ds.value(i)
					if math.IsNaN(v) || math.IsInf(v, 0) {
						continue
					}
					j := int(scale * (v - min))
					if j < 0 {
						j = 0
					} else if j >= DistributionSize {
						j = DistributionSize - 1
					}
					counts[j]++
				}
			}
		}
	}

	r.Finish()

	if !cont {
		logger().Info("distribution canceled", "dataset", ds.Name)
		return ErrCanceled
	}

	for j := range counts {
		counts[j] = math.Log10(counts[j] + 1)
	}

	ds.distribution = &Distribution{min: min, max: max, bins: bins}
	return nil
}
