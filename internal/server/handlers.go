package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/cocoseg/internal/coco"
	"github.com/MeKo-Tech/cocoseg/internal/render"
	"github.com/MeKo-Tech/cocoseg/internal/synth"
	"github.com/MeKo-Tech/cocoseg/internal/utils"
	"github.com/MeKo-Tech/cocoseg/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// synthesizeHandler reads an annotation store from the request body and
// returns it with bbox-derived polygon segmentations.
func (s *Server) synthesizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	store, err := coco.Read(r.Body)
	if err != nil {
		operationsTotal.WithLabelValues("synthesize", "error").Inc()
		s.writeErrorResponse(w, err.Error(), statusForBodyError(err))
		return
	}

	stats, err := synth.Synthesize(r.Context(), store, s.synth)
	if err != nil {
		operationsTotal.WithLabelValues("synthesize", "error").Inc()
		s.writeErrorResponse(w, err.Error(), statusForError(err))
		return
	}
	operationsTotal.WithLabelValues("synthesize", "success").Inc()
	operationDuration.WithLabelValues("synthesize").Observe(stats.Duration.Seconds())
	annotationsProcessed.WithLabelValues("synthesize").Observe(float64(stats.Annotations))

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Unknown-Images", strconv.Itoa(stats.UnknownImages))
	indent := r.URL.Query().Get("indent") == "1"
	if err := coco.Write(w, store, indent); err != nil {
		s.logger.Error("Failed to write synthesized store", "error", err)
	}
}

// renderHandler overlays the annotations of one image record onto an
// uploaded image and returns a PNG.
//
// Multipart fields: image (file), annotations (file), image_id, and the
// optional overrides mode, alpha and color.
func (s *Server) renderHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	if err := r.ParseMultipartForm(s.maxUploadBytes()); err != nil {
		operationsTotal.WithLabelValues("render", "error").Inc()
		s.writeErrorResponse(w, "Failed to parse form data", statusForBodyError(err))
		return
	}

	req, err := s.parseRenderRequest(r)
	if err != nil {
		operationsTotal.WithLabelValues("render", "error").Inc()
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	idx := coco.NewIndex(req.store)
	out, err := render.RenderImage(idx, req.imageID, req.img, req.opts)
	if err != nil {
		operationsTotal.WithLabelValues("render", "error").Inc()
		s.writeErrorResponse(w, err.Error(), statusForError(err))
		return
	}
	operationsTotal.WithLabelValues("render", "success").Inc()
	operationDuration.WithLabelValues("render").Observe(time.Since(start).Seconds())
	annotationsProcessed.WithLabelValues("render").Observe(float64(len(idx.Annotations(req.imageID))))

	w.Header().Set("Content-Type", "image/png")
	if err := utils.EncodePNG(w, out); err != nil {
		s.logger.Error("Failed to encode rendered image", "error", err)
	}
}

type renderRequest struct {
	imageID int64
	img     image.Image
	store   *coco.Store
	opts    render.Options
}

func (s *Server) parseRenderRequest(r *http.Request) (*renderRequest, error) {
	req := &renderRequest{opts: s.render}

	idText := r.FormValue("image_id")
	if idText == "" {
		return nil, errors.New("missing image_id")
	}
	id, err := strconv.ParseInt(idText, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid image_id %q", idText)
	}
	req.imageID = id

	if v := r.FormValue("mode"); v != "" {
		mode, err := render.ParseMode(v)
		if err != nil {
			return nil, err
		}
		req.opts.Mode = mode
	}
	if v := r.FormValue("alpha"); v != "" {
		alpha, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid alpha %q", v)
		}
		if err := render.ValidateAlpha(alpha); err != nil {
			return nil, err
		}
		req.opts.Alpha = alpha
	}
	if v := r.FormValue("color"); v != "" {
		c, err := utils.ParseHexColor(v)
		if err != nil {
			return nil, err
		}
		req.opts.Color = c
	}

	imgFile, header, err := r.FormFile("image")
	if err != nil {
		return nil, errors.New("no image file provided")
	}
	defer func() { _ = imgFile.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	img, _, err := utils.DecodeImage(imgFile)
	if err != nil {
		return nil, errors.New("invalid image format")
	}
	req.img = img

	req.store, err = readStoreFile(r.MultipartForm, "annotations")
	if err != nil {
		return nil, err
	}
	return req, nil
}

func readStoreFile(form *multipart.Form, field string) (*coco.Store, error) {
	files := form.File[field]
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s file provided", field)
	}
	uploadSizeBytes.Observe(float64(files[0].Size))
	f, err := files[0].Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return coco.Read(f)
}

// validateHandler reports the invariant violations of an annotation store.
func (s *Server) validateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	store, err := coco.Read(r.Body)
	if err != nil {
		operationsTotal.WithLabelValues("validate", "error").Inc()
		s.writeErrorResponse(w, err.Error(), statusForBodyError(err))
		return
	}

	issues := coco.Validate(store)
	resp := ValidateResponse{Issues: issues}
	if resp.Issues == nil {
		resp.Issues = []coco.Issue{}
	}
	for _, issue := range issues {
		if issue.Severity == coco.SeverityError {
			resp.Errors++
		} else {
			resp.Warnings++
		}
	}
	resp.Valid = resp.Errors == 0

	operationsTotal.WithLabelValues("validate", "success").Inc()
	annotationsProcessed.WithLabelValues("validate").Observe(float64(len(store.Annotations)))
	s.writeJSON(w, http.StatusOK, resp)
}

// statusForError maps the annotation error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	var (
		decode    *coco.DecodeError
		dimension *coco.DimensionMismatchError
		invalid   *coco.InvalidAnnotationError
	)
	switch {
	case coco.IsLookup(err):
		return http.StatusNotFound
	case errors.As(err, &decode), errors.As(err, &dimension):
		return http.StatusUnprocessableEntity
	case errors.As(err, &invalid), errors.Is(err, render.ErrInvalidAlpha):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// statusForBodyError separates oversized bodies from malformed ones.
func statusForBodyError(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{
		Success:   false,
		Error:     message,
		RequestID: w.Header().Get(requestIDHeader),
	})
}
