package visualization

import (
	"fmt"
	"io"
	"math"

	"github.com/aybabtme/uniplot/histogram"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"volslice/pkg/dataset"
	"volslice/pkg/grid"
)

// Summary describes the finite values of a slice.
type Summary struct {
	Count  int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// FiniteValues returns every finite value of a data set in grid order.
func FiniteValues(ds *dataset.DataSet) []float64 {
	dim := ds.Dim()
	values := make([]float64, 0, dim.Count())
	var v grid.Voxel
	for v.T = 0; v.T < dim.T; v.T++ {
		for v.Z = 0; v.Z < dim.Z; v.Z++ {
			for v.Y = 0; v.Y < dim.Y; v.Y++ {
				for v.X = 0; v.X < dim.X; v.X++ {
					val, err := ds.Value(v)
					if err != nil || math.IsNaN(val) || math.IsInf(val, 0) {
						continue
					}
					values = append(values, val)
				}
			}
		}
	}
	return values
}

// Summarize computes mean, standard deviation and range of the finite values
// of a data set.
func Summarize(ds *dataset.DataSet) Summary {
	values := FiniteValues(ds)
	s := Summary{Count: len(values)}
	if s.Count == 0 {
		return s
	}
	s.Min = floats.Min(values)
	s.Max = floats.Max(values)
	if s.Count == 1 {
		s.Mean = values[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("n=%d mean=%.4g sd=%.4g min=%.4g max=%.4g", s.Count, s.Mean, s.StdDev, s.Min, s.Max)
}

// PrintHistogram writes a terminal histogram of the finite values of a data
// set with the given number of bins, bars scaled to width characters.
func PrintHistogram(w io.Writer, ds *dataset.DataSet, bins, width int) error {
	values := FiniteValues(ds)
	if len(values) == 0 {
		_, err := fmt.Fprintln(w, "no finite values")
		return err
	}
	hist := histogram.Hist(bins, values)
	return histogram.Fprint(w, hist, histogram.Linear(width))
}

// PrintDistribution writes a cached distribution as a terminal histogram,
// merging its bins into rows buckets. Bin weights are converted back to
// voxel counts before merging.
func PrintDistribution(w io.Writer, d *dataset.Distribution, rows, width int) error {
	if d == nil || d.Len() == 0 || rows < 1 {
		return fmt.Errorf("no distribution to print")
	}
	if rows > d.Len() {
		rows = d.Len()
	}

	hist := histogram.Histogram{Buckets: make([]histogram.Bucket, rows)}
	per := int(math.Ceil(float64(d.Len()) / float64(rows)))
	for i := range hist.Buckets {
		b := &hist.Buckets[i]
		first, last := i*per, min((i+1)*per, d.Len())-1
		if first > last {
			b.Min, b.Max = d.Max(), d.Max()
			continue
		}
		b.Min, _ = d.BinRange(first)
		_, b.Max = d.BinRange(last)
		for j := first; j <= last; j++ {
			b.Count += int(math.Round(math.Pow(10, d.Bin(j)) - 1))
		}
		hist.Count += b.Count
		hist.Max = max(hist.Max, b.Count)
	}
	if hist.Count == 0 {
		_, err := fmt.Fprintln(w, "empty distribution")
		return err
	}
	return histogram.Fprint(w, hist, histogram.Linear(width))
}
