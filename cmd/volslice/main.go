package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/natefinch/lumberjack"
	"github.com/spf13/cobra"

	"volslice/pkg/config"
	"volslice/pkg/dataset"
	"volslice/pkg/grid"
)

var (
	configPath string
	verbose    bool
	cfg        *config.Config

	rootCmd = &cobra.Command{
		Use:   "volslice",
		Short: "Resample image volumes through arbitrary oblique slices",
		Long: `volslice computes intensity statistics of 4-D image volumes and cuts
stacks of oblique slices out of them. Volumes are read from NIfTI files; when
no input is given a synthetic phantom is generated instead.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "volslice.yaml", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(statsCmd, sliceCmd, configCmd)
}

// setup loads the configuration and applies it to the library packages
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Output.Verbose = true
	}

	slog.SetDefault(newLogger(cfg))
	grid.MaxElements = cfg.Processing.MaxElements
	dataset.DistributionSize = cfg.Distribution.Bins

	slog.Debug("configuration loaded", "path", configPath, "cores", cfg.Processing.NumCores)
	return nil
}

// newLogger writes to stderr, or to a rotating log file when one is
// configured.
func newLogger(cfg *config.Config) *slog.Logger {
	var w io.Writer = os.Stderr
	if cfg.Output.LogFile != "" {
		w = &lumberjack.Logger{
			Filename: cfg.Output.LogFile,
			MaxSize:  cfg.Output.LogMaxSize, // megabytes
			MaxAge:   cfg.Output.LogMaxAge,  // days
		}
	}

	level := slog.LevelInfo
	if cfg.Output.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
