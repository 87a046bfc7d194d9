package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/cocoseg/internal/testutil"
	"github.com/google/uuid"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_CORSMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		corsOrigin     string
		method         string
		shouldCallNext bool
	}{
		{name: "GET request with CORS headers", corsOrigin: "*", method: http.MethodGet, shouldCallNext: true},
		{name: "POST request with specific origin", corsOrigin: "https://example.com", method: http.MethodPost, shouldCallNext: true},
		{name: "OPTIONS request (preflight)", corsOrigin: "*", method: http.MethodOptions, shouldCallNext: false},
		{name: "empty CORS origin", corsOrigin: "", method: http.MethodGet, shouldCallNext: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, func(c *Config) { c.CORSOrigin = tt.corsOrigin })
			called := false
			handler := s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusAccepted)
			})

			w := httptest.NewRecorder()
			handler(w, httptest.NewRequest(tt.method, "/v1/validate", nil))

			assert.Equal(t, tt.corsOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
			assert.Equal(t, tt.shouldCallNext, called)
			if tt.shouldCallNext {
				assert.Equal(t, http.StatusAccepted, w.Code)
			} else {
				assert.Equal(t, http.StatusOK, w.Code)
			}
		})
	}
}

func TestServer_CORSMiddlewareRecordsMetrics(t *testing.T) {
	s := newTestServer(t)
	counter := httpRequestsTotal.WithLabelValues(http.MethodPost, "/metrics-test", "418")
	before := promtestutil.ToFloat64(counter)

	handler := s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/metrics-test", nil))

	assert.InDelta(t, before+1, promtestutil.ToFloat64(counter), 0)
}

func TestServer_RequestIDMiddleware(t *testing.T) {
	s := newTestServer(t)
	var seen string
	handler := s.requestIDMiddleware(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	})

	t.Run("generates a uuid", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		id := w.Header().Get(requestIDHeader)
		_, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, id, seen)
	})

	t.Run("propagates the caller's id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(requestIDHeader, "trace-42")
		w := httptest.NewRecorder()
		handler(w, req)

		assert.Equal(t, "trace-42", w.Header().Get(requestIDHeader))
		assert.Equal(t, "trace-42", seen)
	})
}

func TestServer_RateLimitMiddleware(t *testing.T) {
	s := newTestServer(t, func(c *Config) {
		c.RateLimit = RateLimitConfig{Enabled: true, RequestsPerMinute: 2}
	})
	handler := s.Handler()
	body := storeJSON(t, testutil.SampleStore())

	post := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/validate", bytes.NewReader(body))
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, post("10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, post("10.0.0.1:1001").Code)

	w := post("10.0.0.1:1002")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "minute", w.Header().Get("X-RateLimit-Type"))
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "minute", resp["type"])

	assert.Equal(t, http.StatusOK, post("10.0.0.2:1000").Code, "limits are per client")

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code, "health is not rate limited")
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.1:80", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": " 198.51.100.2 "}, "10.0.0.1:80", "198.51.100.2"},
		{"remote addr", nil, "192.0.2.10:5555", "192.0.2.10"},
		{"remote without port", nil, "192.0.2.11", "192.0.2.11"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}
