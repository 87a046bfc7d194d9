package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MeKo-Tech/cocoseg/internal/coco"
	"github.com/MeKo-Tech/cocoseg/internal/render"
	"github.com/MeKo-Tech/cocoseg/internal/synth"
	"github.com/MeKo-Tech/cocoseg/internal/testutil"
	"github.com/MeKo-Tech/cocoseg/internal/utils"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, mutate ...func(*Config)) *Server {
	t.Helper()
	opts := render.DefaultOptions()
	opts.Alpha = 1
	opts.Workers = 2
	cfg := Config{
		CORSOrigin:  "*",
		MaxUploadMB: 5,
		TimeoutSec:  10,
		Render:      opts,
		Synthesize:  synth.Options{Workers: 2},
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s
}

func storeJSON(t *testing.T, store *coco.Store) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, coco.Write(&buf, store, false))
	return buf.Bytes()
}

func synthesizedStore(t *testing.T) *coco.Store {
	t.Helper()
	store := testutil.SampleStore()
	_, err := synth.Synthesize(context.Background(), store, synth.Options{Workers: 1})
	require.NoError(t, err)
	return store
}

// newRenderRequest builds a multipart /v1/render request. A nil img or store
// omits that part.
func newRenderRequest(t *testing.T, fields map[string]string, img image.Image, store *coco.Store) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if img != nil {
		part, err := mw.CreateFormFile("image", "page.png")
		require.NoError(t, err)
		require.NoError(t, png.Encode(part, img))
	}
	if store != nil {
		part, err := mw.CreateFormFile("annotations", "annotations.json")
		require.NoError(t, err)
		_, err = part.Write(storeJSON(t, store))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/render", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
	return resp
}

func TestNewServer(t *testing.T) {
	_, err := NewServer(Config{Render: render.Options{Alpha: 2}})
	require.ErrorIs(t, err, render.ErrInvalidAlpha)

	_, err = NewServer(Config{Render: render.Options{Mode: "outline"}})
	require.Error(t, err)

	_, err = NewServer(Config{RateLimit: RateLimitConfig{Enabled: true}})
	require.Error(t, err)

	s, err := NewServer(Config{Render: render.DefaultOptions()})
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultMaxUploadMB), s.maxUploadMB)
	assert.Nil(t, s.rateLimiter)
}

func TestServer_HealthHandler(t *testing.T) {
	handler := newTestServer(t).Handler()

	tests := []struct {
		name           string
		method         string
		expectedStatus int
		checkResponse  bool
	}{
		{name: "GET request success", method: http.MethodGet, expectedStatus: http.StatusOK, checkResponse: true},
		{name: "POST request not allowed", method: http.MethodPost, expectedStatus: http.StatusMethodNotAllowed},
		{name: "PUT request not allowed", method: http.MethodPut, expectedStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.NotEmpty(t, w.Header().Get(requestIDHeader))

			if tt.checkResponse {
				var response HealthResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
				assert.Equal(t, "healthy", response.Status)
				assert.NotEmpty(t, response.Time)
				assert.NotEmpty(t, response.Version)
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestServer_SynthesizeHandler(t *testing.T) {
	handler := newTestServer(t).Handler()

	t.Run("synthesizes every annotation", func(t *testing.T) {
		before := promtestutil.ToFloat64(operationsTotal.WithLabelValues("synthesize", "success"))

		req := httptest.NewRequest(http.MethodPost, "/v1/synthesize", bytes.NewReader(storeJSON(t, testutil.SampleStore())))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Equal(t, "0", w.Header().Get("X-Unknown-Images"))

		store, err := coco.Read(w.Body)
		require.NoError(t, err)
		require.Len(t, store.Annotations, 3)
		first := store.Annotations[0]
		require.NotNil(t, first.Segmentation)
		assert.Equal(t, [][]float64{{2, 3, 12, 3, 12, 7, 2, 7}}, first.Segmentation.Polygons)
		assert.InDelta(t, 40.0, first.Area, 0)
		assert.Len(t, store.Categories, 2)

		assert.InDelta(t, before+1, promtestutil.ToFloat64(operationsTotal.WithLabelValues("synthesize", "success")), 0)
	})

	t.Run("invalid bbox is a bad request", func(t *testing.T) {
		store := testutil.SampleStore()
		store.Annotations[1].BBox.W = -1

		req := httptest.NewRequest(http.MethodPost, "/v1/synthesize", bytes.NewReader(storeJSON(t, store)))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeError(t, w)
		assert.Contains(t, resp.Error, "annotation 2")
		assert.Equal(t, w.Header().Get(requestIDHeader), resp.RequestID)
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/synthesize", strings.NewReader(`{"images": [`))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		decodeError(t, w)
	})

	t.Run("body too large", func(t *testing.T) {
		small := newTestServer(t, func(c *Config) { c.MaxUploadMB = 1 }).Handler()
		big := `{"images":[],"info":"` + strings.Repeat("x", 2*1024*1024) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/synthesize", strings.NewReader(big))
		w := httptest.NewRecorder()
		small.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("GET not allowed", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/synthesize", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestServer_RenderHandler(t *testing.T) {
	handler := newTestServer(t).Handler()
	page := testutil.SolidImage(40, 30, testutil.Paper)

	do := func(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
		t.Helper()
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}
	decodePNG := func(t *testing.T, w *httptest.ResponseRecorder) *image.NRGBA {
		t.Helper()
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		img, _, err := utils.DecodeImage(w.Body)
		require.NoError(t, err)
		return utils.ToNRGBA(img)
	}

	t.Run("mask overlay", func(t *testing.T) {
		w := do(t, newRenderRequest(t, map[string]string{"image_id": "1"}, page, synthesizedStore(t)))
		out := decodePNG(t, w)

		assert.Equal(t, image.Rect(0, 0, 40, 30), out.Bounds())
		assert.Equal(t, color.NRGBA{G: 255, A: 255}, out.NRGBAAt(2, 3))
		assert.Equal(t, testutil.Paper, out.NRGBAAt(15, 3))
	})

	t.Run("colour override", func(t *testing.T) {
		fields := map[string]string{"image_id": "1", "color": "#FF0000"}
		out := decodePNG(t, do(t, newRenderRequest(t, fields, page, synthesizedStore(t))))
		assert.Equal(t, color.NRGBA{R: 255, A: 255}, out.NRGBAAt(21, 11))
	})

	t.Run("zero alpha leaves the image unchanged", func(t *testing.T) {
		fields := map[string]string{"image_id": "1", "alpha": "0"}
		out := decodePNG(t, do(t, newRenderRequest(t, fields, page, synthesizedStore(t))))
		assert.Equal(t, testutil.Paper, out.NRGBAAt(2, 3))
	})

	t.Run("boxes mode on a bbox-only store", func(t *testing.T) {
		fields := map[string]string{"image_id": "1", "mode": "boxes"}
		out := decodePNG(t, do(t, newRenderRequest(t, fields, page, testutil.SampleStore())))
		assert.Equal(t, color.NRGBA{G: 255, A: 255}, out.NRGBAAt(20, 10))
		assert.Equal(t, testutil.Paper, out.NRGBAAt(23, 12))
	})

	errorCases := []struct {
		name   string
		fields map[string]string
		img    image.Image
		store  *coco.Store
		status int
	}{
		{"unknown image id", map[string]string{"image_id": "99"}, page, synthesizedStore(t), http.StatusNotFound},
		{"missing segmentation", map[string]string{"image_id": "1"}, page, testutil.SampleStore(), http.StatusUnprocessableEntity},
		{"dimension mismatch", map[string]string{"image_id": "1"}, testutil.SolidImage(41, 30, testutil.Paper), synthesizedStore(t), http.StatusUnprocessableEntity},
		{"missing image_id", map[string]string{}, page, synthesizedStore(t), http.StatusBadRequest},
		{"non-numeric image_id", map[string]string{"image_id": "one"}, page, synthesizedStore(t), http.StatusBadRequest},
		{"alpha out of range", map[string]string{"image_id": "1", "alpha": "1.5"}, page, synthesizedStore(t), http.StatusBadRequest},
		{"unknown mode", map[string]string{"image_id": "1", "mode": "outline"}, page, synthesizedStore(t), http.StatusBadRequest},
		{"bad colour", map[string]string{"image_id": "1", "color": "green"}, page, synthesizedStore(t), http.StatusBadRequest},
		{"missing image", map[string]string{"image_id": "1"}, nil, synthesizedStore(t), http.StatusBadRequest},
		{"missing annotations", map[string]string{"image_id": "1"}, page, nil, http.StatusBadRequest},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, newRenderRequest(t, tt.fields, tt.img, tt.store))
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			decodeError(t, w)
		})
	}

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/render", strings.NewReader("image_id=1"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := do(t, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestServer_ValidateHandler(t *testing.T) {
	handler := newTestServer(t).Handler()

	validate := func(t *testing.T, store *coco.Store) ValidateResponse {
		t.Helper()
		req := httptest.NewRequest(http.MethodPost, "/v1/validate", bytes.NewReader(storeJSON(t, store)))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp ValidateResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp
	}

	resp := validate(t, testutil.SampleStore())
	assert.True(t, resp.Valid)
	assert.Empty(t, resp.Issues)

	broken := testutil.SampleStore()
	broken.Annotations[0].BBox.H = -2
	broken.Annotations[2].ImageID = 42
	resp = validate(t, broken)
	assert.False(t, resp.Valid)
	assert.Equal(t, 1, resp.Errors)
	assert.Equal(t, 1, resp.Warnings)
	require.Len(t, resp.Issues, 2)
	assert.Equal(t, int64(1), resp.Issues[0].AnnotationID)
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&coco.LookupError{ImageID: 3}, http.StatusNotFound},
		{fmt.Errorf("render image 3: %w", &coco.LookupError{ImageID: 3}), http.StatusNotFound},
		{fmt.Errorf("annotation 4: %w", &coco.DecodeError{Reason: "bad"}), http.StatusUnprocessableEntity},
		{&coco.DimensionMismatchError{Operation: "composite"}, http.StatusUnprocessableEntity},
		{&coco.InvalidAnnotationError{Index: 1, Reason: "negative"}, http.StatusBadRequest},
		{fmt.Errorf("%w: got 2", render.ErrInvalidAlpha), http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusForError(tt.err))
		})
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	handler := newTestServer(t).Handler()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cocoseg_http_requests_total")
	assert.Contains(t, w.Body.String(), `endpoint="/health"`)
}
