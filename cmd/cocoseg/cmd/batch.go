package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/cocoseg/internal/batch"
	"github.com/MeKo-Tech/cocoseg/internal/config"
	"github.com/spf13/cobra"
)

// batchCmd renders overlays for every image record of a store.
var batchCmd = &cobra.Command{
	Use:   "batch <annotations.json>",
	Short: "Render overlays for every image of an annotation store in parallel",
	Long: `Batch renders every image record of an annotation store. Image files are
discovered below --images-dir and matched to records by their file_name (the
relative path first, then the base name). One overlay per image is written to
--output-dir as <name>_<mode>.png.

Supported formats: JPEG, PNG, BMP, TIFF, WebP

Examples:
  cocoseg batch new_results.json --images-dir pages
  cocoseg batch new_results.json --images-dir pages --recursive --workers 8 --progress
  cocoseg batch results.json --images-dir pages --mode boxes --format json --output summary.json
  cocoseg batch new_results.json --images-dir pages --include "*.png" --continue-on-error`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runBatchCommand,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().String("images-dir", "", "directory containing the page images (required)")
	batchCmd.Flags().String("output-dir", "", "directory for rendered overlays (default from config)")
	batchCmd.Flags().IntP("workers", "w", 0, "number of parallel workers (default from config)")
	batchCmd.Flags().BoolP("recursive", "r", false, "search the images directory recursively")
	batchCmd.Flags().StringSlice("include", nil, "glob patterns of file names to include")
	batchCmd.Flags().StringSlice("exclude", nil, "glob patterns of file names to exclude")
	batchCmd.Flags().Bool("continue-on-error", false, "keep rendering when an image fails")
	batchCmd.Flags().Bool("progress", false, "show a progress bar")
	batchCmd.Flags().StringP("format", "f", "", "summary format: text, json or csv (default from config)")
	batchCmd.Flags().StringP("output", "o", "", "write the summary to this file instead of stdout")

	batchCmd.Flags().Float64P("alpha", "a", 0, "overlay opacity in [0, 1] (default from config)")
	batchCmd.Flags().StringP("color", "c", "", "overlay colour (default from config)")
	batchCmd.Flags().StringP("mode", "m", "", "what to draw: mask or boxes (default from config)")
	batchCmd.Flags().Int("box-thickness", 0, "outline thickness for --mode boxes (default from config)")

	_ = batchCmd.MarkFlagRequired("images-dir")
}

// configToBatchConfig maps centralized configuration to batch.Config with
// CLI flag overrides.
func configToBatchConfig(cfg config.Config, cmd *cobra.Command, annotationsPath string) (batch.Config, string, error) {
	bc := cfg.Batch
	if cmd.Flags().Changed("output-dir") {
		bc.OutputDir, _ = cmd.Flags().GetString("output-dir")
	}
	if cmd.Flags().Changed("workers") {
		bc.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("recursive") {
		bc.Recursive, _ = cmd.Flags().GetBool("recursive")
	}
	if cmd.Flags().Changed("include") {
		bc.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
	}
	if cmd.Flags().Changed("exclude") {
		bc.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")
	}
	if cmd.Flags().Changed("continue-on-error") {
		bc.ContinueOnError, _ = cmd.Flags().GetBool("continue-on-error")
	}
	if cmd.Flags().Changed("progress") {
		bc.ShowProgress, _ = cmd.Flags().GetBool("progress")
	}
	if cmd.Flags().Changed("format") {
		bc.Format, _ = cmd.Flags().GetString("format")
	}

	opts, err := renderOptionsFromFlags(&cfg, cmd)
	if err != nil {
		return batch.Config{}, "", err
	}
	imagesDir, _ := cmd.Flags().GetString("images-dir")

	var progress batch.ProgressCallback
	if bc.ShowProgress {
		progress = batch.NewBarProgressCallback(cmd.ErrOrStderr(), "Rendering")
	} else {
		progress = batch.NewLogProgressCallback(slog.Default(), slog.LevelDebug)
	}

	return batch.Config{
		AnnotationsPath: annotationsPath,
		ImagesDir:       imagesDir,
		OutputDir:       bc.OutputDir,
		Render:          opts,
		Workers:         bc.Workers,
		Recursive:       bc.Recursive,
		IncludePatterns: bc.IncludePatterns,
		ExcludePatterns: bc.ExcludePatterns,
		ContinueOnError: bc.ContinueOnError,
		Progress:        progress,
		Logger:          slog.Default(),
	}, bc.Format, nil
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	bcfg, format, err := configToBatchConfig(*GetConfig(), cmd, args[0])
	if err != nil {
		return err
	}

	result, err := batch.Process(cmd.Context(), bcfg)
	if err != nil {
		return err
	}

	summary, err := result.Format(format)
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output != "" {
		if err := os.WriteFile(output, []byte(summary), 0o600); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Summary written to %s\n", output)
	} else {
		_, _ = fmt.Fprint(cmd.OutOrStdout(), summary)
	}

	if failed := result.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(result.Images))
	}
	return nil
}
