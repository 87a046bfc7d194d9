package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Format renders the result summary as text, json or csv.
func (r *Result) Format(format string) (string, error) {
	switch format {
	case "json":
		return r.formatJSON()
	case "csv":
		return r.formatCSV()
	case "", "text":
		return r.formatText(), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

type jsonImage struct {
	ImageResult
	Error string `json:"error,omitempty"`
}

func (r *Result) formatJSON() (string, error) {
	out := struct {
		AnnotationsPath string      `json:"annotations_path"`
		Mode            string      `json:"mode"`
		Images          []jsonImage `json:"images"`
		Succeeded       int         `json:"succeeded"`
		Failed          int         `json:"failed"`
		Workers         int         `json:"workers"`
		DurationMS      int64       `json:"duration_ms"`
	}{
		AnnotationsPath: r.AnnotationsPath,
		Mode:            string(r.Mode),
		Images:          make([]jsonImage, len(r.Images)),
		Succeeded:       r.Succeeded(),
		Failed:          r.Failed(),
		Workers:         r.WorkerCount,
		DurationMS:      r.Duration.Milliseconds(),
	}
	for i, img := range r.Images {
		out.Images[i] = jsonImage{ImageResult: img}
		if img.Err != nil {
			out.Images[i].Error = img.Err.Error()
		}
	}

	bts, err := json.MarshalIndent(out, "", "  ")
	return string(bts), err
}

func (r *Result) formatCSV() (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	rows := [][]string{{"image_id", "file_name", "image_path", "output_path", "annotations", "duration_ms", "error"}}
	for _, img := range r.Images {
		errText := ""
		if img.Err != nil {
			errText = img.Err.Error()
		}
		rows = append(rows, []string{
			strconv.FormatInt(img.ImageID, 10),
			img.FileName,
			img.ImagePath,
			img.OutputPath,
			strconv.Itoa(img.Annotations),
			strconv.FormatInt(img.Duration.Milliseconds(), 10),
			errText,
		})
	}
	if err := writer.WriteAll(rows); err != nil {
		return "", err
	}
	return output.String(), nil
}

func (r *Result) formatText() string {
	var output strings.Builder
	for _, img := range r.Images {
		if img.Err != nil {
			fmt.Fprintf(&output, "FAIL %s (image %d): %v\n", img.FileName, img.ImageID, img.Err)
			continue
		}
		fmt.Fprintf(&output, "OK   %s (image %d): %d annotations -> %s\n",
			img.FileName, img.ImageID, img.Annotations, img.OutputPath)
	}
	fmt.Fprintf(&output, "\nRendered %d of %d images (%d failed) with %d workers in %v\n",
		r.Succeeded(), len(r.Images), r.Failed(), r.WorkerCount, r.Duration.Round(time.Millisecond))
	return output.String()
}
