package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"volslice/internal/models"
	"volslice/pkg/dataset"
	"volslice/pkg/visualization"
)

var (
	statsInput    string
	statsRows     int
	statsBarWidth int
	statsSkipDist bool

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Print per-frame bounds and the intensity distribution of a volume",
		RunE:  runStats,
	}
)

func init() {
	statsCmd.Flags().StringVarP(&statsInput, "input", "i", "", "NIfTI volume (.nii or .nii.gz); a phantom is used when empty")
	statsCmd.Flags().IntVar(&statsRows, "rows", 16, "Rows of the printed distribution")
	statsCmd.Flags().IntVar(&statsBarWidth, "width", 40, "Width of the distribution bars")
	statsCmd.Flags().BoolVar(&statsSkipDist, "no-distribution", false, "Skip the distribution pass")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	src, err := loadVolume(statsInput, cfg)
	if err != nil {
		return err
	}
	defer src.Release()

	out := cmd.OutOrStdout()
	src.ComputeFrameMinMax(progressPrinter(cmd.ErrOrStderr()))

	summary := volumeSummary(src)
	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("error marshaling summary: %w", err)
	}
	fmt.Fprint(out, string(data))

	if statsSkipDist {
		return nil
	}
	return printDistribution(ctx, cmd, src)
}

func printDistribution(ctx context.Context, cmd *cobra.Command, src *dataset.DataSet) error {
	err := src.ComputeDistribution(ctx, progressPrinter(cmd.ErrOrStderr()))
	if errors.Is(err, dataset.ErrCanceled) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Distribution canceled")
		return nil
	}
	if err != nil {
		return err
	}

	d := src.Distribution()
	fmt.Fprintf(cmd.OutOrStdout(), "\nDistribution (%d bins, %.4g to %.4g):\n", d.Len(), d.Min(), d.Max())
	return visualization.PrintDistribution(cmd.OutOrStdout(), d, statsRows, statsBarWidth)
}

func volumeSummary(src *dataset.DataSet) models.VolumeSummary {
	dim := src.Dim()
	vs := src.VoxelSize()
	s := models.VolumeSummary{
		Name:      src.Name,
		Modality:  src.Modality,
		Kind:      src.Kind().String(),
		Dim:       [4]int{dim.X, dim.Y, dim.Z, dim.T},
		VoxelSize: [3]float64{vs.X, vs.Y, vs.Z},
		Size:      humanize.Bytes(uint64(dim.Count() * src.Kind().Bytes())),
		FrameMin:  make([]float64, dim.T),
		FrameMax:  make([]float64, dim.T),
	}
	for t := 0; t < dim.T; t++ {
		s.FrameMin[t] = src.FrameMin(t)
		s.FrameMax[t] = src.FrameMax(t)
	}
	return s
}
