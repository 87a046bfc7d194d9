package support

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/cocoseg/internal/render"
	"github.com/MeKo-Tech/cocoseg/internal/server"
	"github.com/MeKo-Tech/cocoseg/internal/synth"
	"github.com/cucumber/godog"
)

// theServerIsRunning starts an in-process server with default options.
func (testCtx *TestContext) theServerIsRunning() error {
	return testCtx.startHTTPServer(server.RateLimitConfig{})
}

// theServerIsRunningWithLimit starts a server that allows perMinute requests
// per client and minute.
func (testCtx *TestContext) theServerIsRunningWithLimit(perMinute int) error {
	return testCtx.startHTTPServer(server.RateLimitConfig{Enabled: true, RequestsPerMinute: perMinute})
}

func (testCtx *TestContext) startHTTPServer(limits server.RateLimitConfig) error {
	testCtx.stopHTTPServer()

	renderOpts := render.DefaultOptions()
	renderOpts.Workers = 2
	srv, err := server.NewServer(server.Config{
		CORSOrigin: "*",
		TimeoutSec: 30,
		Render:     renderOpts,
		Synthesize: synth.Options{Workers: 2},
		RateLimit:  limits,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	testCtx.HTTPServer = httptest.NewServer(srv.Handler())
	return nil
}

func (testCtx *TestContext) stopHTTPServer() {
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
		testCtx.HTTPServer = nil
	}
}

func (testCtx *TestContext) do(req *http.Request) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing response body: %v\n", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = body
	testCtx.LastHTTPHeaders = map[string]string{}
	for name := range resp.Header {
		testCtx.LastHTTPHeaders[name] = resp.Header.Get(name)
	}
	// JSON assertions read LastOutput, so mirror the body there.
	testCtx.LastOutput = string(body)
	testCtx.LastStderr = ""
	return nil
}

func (testCtx *TestContext) serverURL(path string) (string, error) {
	if testCtx.HTTPServer == nil {
		return "", fmt.Errorf("server is not running")
	}
	return testCtx.HTTPServer.URL + path, nil
}

func (testCtx *TestContext) iSendAGETRequestTo(path string) error {
	url, err := testCtx.serverURL(path)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

// iPostTheAnnotationStoreTo sends the fixture annotation file as the body.
func (testCtx *TestContext) iPostTheAnnotationStoreTo(path string) error {
	url, err := testCtx.serverURL(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(testCtx.AnnotationsPath)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return testCtx.do(req)
}

// iRequestARenderOfImage uploads a page image and the fixture store to /v1/render.
func (testCtx *TestContext) iRequestARenderOfImage(imageID int, fileName string) error {
	url, err := testCtx.serverURL("/v1/render")
	if err != nil {
		return err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("image_id", strconv.Itoa(imageID)); err != nil {
		return err
	}
	files := map[string]string{
		"image":       filepath.Join(testCtx.ImagesDir, filepath.FromSlash(fileName)),
		"annotations": testCtx.AnnotationsPath,
	}
	for field, path := range files {
		data, err := os.ReadFile(path) //nolint:gosec // fixture path
		if err != nil {
			return err
		}
		part, err := writer.CreateFormFile(field, filepath.Base(path))
		if err != nil {
			return err
		}
		if _, err := part.Write(data); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, url, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return testCtx.do(req)
}

func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastHTTPStatusCode != status {
		return fmt.Errorf("expected status %d, got %d\nBody: %s", status, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, value string) error {
	got, ok := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]
	if !ok {
		return fmt.Errorf("response has no %s header", name)
	}
	if got != value {
		return fmt.Errorf("header %s is %q, expected %q", name, got, value)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldBeAPNG() error {
	if ct := testCtx.LastHTTPHeaders["Content-Type"]; ct != "image/png" {
		return fmt.Errorf("expected image/png, got %q", ct)
	}
	if !bytes.HasPrefix(testCtx.LastHTTPResponse, []byte("\x89PNG")) {
		return fmt.Errorf("response body is not a PNG")
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(string(testCtx.LastHTTPResponse), text) {
		return fmt.Errorf("response does not contain %q\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

// RegisterServerSteps registers the HTTP API step definitions.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the server is running$`, testCtx.theServerIsRunning)
	sc.Step(`^the server is running with a limit of (\d+) requests per minute$`, testCtx.theServerIsRunningWithLimit)
	sc.Step(`^I send a GET request to "([^"]*)"$`, testCtx.iSendAGETRequestTo)
	sc.Step(`^I POST the annotation store to "([^"]*)"$`, testCtx.iPostTheAnnotationStoreTo)
	sc.Step(`^I request a render of image (\d+) from "([^"]*)"$`, testCtx.iRequestARenderOfImage)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response should be a PNG image$`, testCtx.theResponseShouldBeAPNG)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
}
