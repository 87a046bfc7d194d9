package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/MeKo-Tech/cocoseg/internal/coco"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <annotations.json>",
	Short: "Check an annotation store for broken references and geometry",
	Long: `Validate reports duplicate ids, annotations that reference unknown images or
categories, negative box sizes, boxes and polygons outside their image, and
run-length masks whose size differs from the image record. Errors make the
command exit non-zero; warnings do not.

Examples:
  cocoseg validate new_results.json
  cocoseg validate new_results.json --format json`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("format", "f", "text", "report format: text or json")
}

func runValidate(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported format: %s", format)
	}

	store, err := coco.Load(args[0])
	if err != nil {
		return err
	}
	issues := coco.Validate(store)

	errCount := 0
	for _, issue := range issues {
		if issue.Severity == coco.SeverityError {
			errCount++
		}
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		if issues == nil {
			issues = []coco.Issue{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{
			"valid":  errCount == 0,
			"issues": issues,
		}); err != nil {
			return err
		}
	} else {
		red := color.New(color.FgRed)
		yellow := color.New(color.FgYellow)
		for _, issue := range issues {
			if issue.Severity == coco.SeverityError {
				_, _ = red.Fprintln(out, issue.String())
			} else {
				_, _ = yellow.Fprintln(out, issue.String())
			}
		}

		summary := fmt.Sprintf("%d images, %d annotations, %d categories: %d errors, %d warnings",
			len(store.Images), len(store.Annotations), len(store.Categories), errCount, len(issues)-errCount)
		if errCount == 0 {
			_, _ = color.New(color.FgGreen).Fprintln(out, "OK   "+summary)
		} else {
			_, _ = red.Fprintln(out, "FAIL "+summary)
		}
	}

	if errCount > 0 {
		return fmt.Errorf("validation failed with %d errors", errCount)
	}
	return nil
}
