package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"volslice/internal/models"
	"volslice/pkg/dataset"
	"volslice/pkg/space"
	"volslice/pkg/visualization"
)

var (
	sliceInput    string
	sliceRequest  string
	sliceOutput   string
	sliceFormat   string
	sliceCenter   []float64
	sliceNormal   []float64
	sliceReq      models.SliceRequest
	sliceShowHist bool
	histMu        sync.Mutex

	sliceCmd = &cobra.Command{
		Use:   "slice",
		Short: "Cut a stack of parallel oblique slices out of a volume",
		Long: `slice resamples the volume through Count parallel planes perpendicular to
the given normal and writes each one as a grayscale image. Slices are
extracted concurrently, up to processing.numCores at a time.`,
		RunE: runSlice,
	}
)

func init() {
	f := sliceCmd.Flags()
	f.StringVarP(&sliceInput, "input", "i", "", "NIfTI volume (.nii or .nii.gz); a phantom is used when empty")
	f.StringVar(&sliceRequest, "request", "", "YAML file describing the stack; flags set explicitly override it")
	f.StringVarP(&sliceOutput, "output", "o", "slices", "Directory the rendered slices are written to")
	f.StringVar(&sliceFormat, "format", "png", "Image format extension (png, jpg, tif, bmp)")
	f.Float64SliceVar(&sliceCenter, "center", nil, "Stack center x,y,z in mm (default: volume center)")
	f.Float64SliceVar(&sliceNormal, "normal", []float64{0, 0, 1}, "Slice normal x,y,z")
	f.Float64Var(&sliceReq.Width, "width", 0, "Slice width in mm (0: span the volume)")
	f.Float64Var(&sliceReq.Height, "height", 0, "Slice height in mm (0: span the volume)")
	f.Float64Var(&sliceReq.Thickness, "thickness", 0, "Slice thickness in mm (0: config, then one voxel)")
	f.Float64Var(&sliceReq.PixelSize, "pixel", 0, "Output pixel size in mm (0: config, then smallest voxel)")
	f.IntVarP(&sliceReq.Count, "count", "n", 1, "Number of slices in the stack")
	f.Float64Var(&sliceReq.Spacing, "spacing", 0, "Distance between slices in mm (0: thickness)")
	f.Float64Var(&sliceReq.StartTime, "start", 0, "Start of the time window")
	f.Float64Var(&sliceReq.Duration, "duration", -1, "Length of the time window (negative: first frame)")
	f.StringVar(&sliceReq.Interpolation, "interpolation", "", "nearest or trilinear (default: config)")
	f.BoolVar(&sliceShowHist, "histogram", false, "Print a histogram of each slice")
}

// buildRequest merges the request file, the configuration and the flags set
// on the command line, in increasing order of precedence.
func buildRequest(cmd *cobra.Command) (models.SliceRequest, error) {
	req := sliceReq
	if len(sliceNormal) != 3 {
		return req, fmt.Errorf("--normal needs 3 values, got %d", len(sliceNormal))
	}
	req.Normal = [3]float64{sliceNormal[0], sliceNormal[1], sliceNormal[2]}
	req.Center = sliceCenter

	if req.PixelSize == 0 {
		req.PixelSize = cfg.Slice.PixelSize
	}
	if req.Thickness == 0 {
		req.Thickness = cfg.Slice.Thickness
	}
	if req.Interpolation == "" {
		req.Interpolation = cfg.Slice.Interpolation
	}

	if sliceRequest != "" {
		file, err := models.LoadSliceRequest(sliceRequest, req)
		if err != nil {
			return req, err
		}
		// flags given explicitly win over the file
		flags := cmd.Flags()
		override := func(name string, apply func()) {
			if flags.Changed(name) {
				apply()
			}
		}
		override("center", func() { file.Center = req.Center })
		override("normal", func() { file.Normal = req.Normal })
		override("width", func() { file.Width = req.Width })
		override("height", func() { file.Height = req.Height })
		override("thickness", func() { file.Thickness = req.Thickness })
		override("pixel", func() { file.PixelSize = req.PixelSize })
		override("count", func() { file.Count = req.Count })
		override("spacing", func() { file.Spacing = req.Spacing })
		override("start", func() { file.StartTime = req.StartTime })
		override("duration", func() { file.Duration = req.Duration })
		override("interpolation", func() { file.Interpolation = req.Interpolation })
		req = *file
	}

	return req, req.Validate()
}

func runSlice(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	req, err := buildRequest(cmd)
	if err != nil {
		return err
	}

	src, err := loadVolume(sliceInput, cfg)
	if err != nil {
		return err
	}
	defer src.Release()

	if err := applyInterpolation(src, req.Interpolation); err != nil {
		return err
	}
	if req.Duration < 0 {
		req.StartTime = src.FrameStart(0)
		req.Duration = src.FrameDuration(0)
	}

	views, err := stackViews(src, req)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(sliceOutput, 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}

	// Frame bounds are cached before the workers start so that concurrent
	// extractions only read the source.
	src.ComputeFrameMinMax(progressPrinter(cmd.ErrOrStderr()))

	start := time.Now()
	summaries, err := extractStack(ctx, src, req, views, cfg.Processing.NumCores)
	if err != nil {
		return err
	}
	slog.Info("stack extracted", "slices", len(summaries), "elapsed", time.Since(start).String())

	data, err := yaml.Marshal(summaries)
	if err != nil {
		return fmt.Errorf("error marshaling summaries: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

// extractStack extracts, renders and saves every view, at most workers at a
// time. The summaries are returned in stack order.
func extractStack(ctx context.Context, src *dataset.DataSet, req models.SliceRequest, views []space.Box, workers int) ([]models.SliceSummary, error) {
	summaries := make([]models.SliceSummary, len(views))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, view := range views {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, err := extractOne(src, req, i, view)
			if err != nil {
				return fmt.Errorf("slice %d: %w", i, err)
			}
			summaries[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func extractOne(src *dataset.DataSet, req models.SliceRequest, index int, view space.Box) (models.SliceSummary, error) {
	slice, err := src.ExtractSlice(req.StartTime, req.Duration, req.PixelSize, view, nil)
	if err != nil {
		return models.SliceSummary{}, err
	}
	defer slice.Release()

	img, err := visualization.Render(slice)
	if err != nil {
		return models.SliceSummary{}, err
	}
	filename := filepath.Join(sliceOutput, fmt.Sprintf("slice_%03d.%s", index, sliceFormat))
	if err := visualization.SaveImage(img, filename); err != nil {
		return models.SliceSummary{}, fmt.Errorf("error saving %s: %w", filename, err)
	}

	stats := visualization.Summarize(slice)
	center := view.Center()
	dim := slice.Dim()
	slog.Debug("slice saved", "index", index, "file", filename, "stats", stats.String())

	if sliceShowHist {
		histMu.Lock()
		defer histMu.Unlock()
		fmt.Fprintf(os.Stderr, "%s\n", slice.Name)
		if err := visualization.PrintHistogram(os.Stderr, slice, 10, 30); err != nil {
			return models.SliceSummary{}, err
		}
	}

	return models.SliceSummary{
		Index:    index,
		Name:     slice.Name,
		Filename: filename,
		Width:    dim.X,
		Height:   dim.Y,
		Center:   [3]float64{center.X, center.Y, center.Z},
		Mean:     stats.Mean,
		StdDev:   stats.StdDev,
		Min:      stats.Min,
		Max:      stats.Max,
	}, nil
}
