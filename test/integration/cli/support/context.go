package support

import (
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"
)

// TestContext holds the state for integration tests.
type TestContext struct {
	// Command execution state
	LastCommand   string
	LastOutput    string
	LastStderr    string
	LastError     error
	LastExitCode  int
	LastStartTime time.Time
	LastDuration  time.Duration

	// Test environment
	WorkingDir string
	TempDir    string
	EnvVars    []string

	// Fixture written by the background steps
	AnnotationsPath string
	ImagesDir       string

	// In-process HTTP server
	HTTPServer         *httptest.Server
	LastHTTPStatusCode int
	LastHTTPResponse   []byte
	LastHTTPHeaders    map[string]string

	// Test artifacts
	CreatedFiles       []string
	CreatedDirectories []string
}

// NewTestContext creates a new test context rooted at the module directory.
func NewTestContext() (*TestContext, error) {
	workingDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	// Test execution starts in the package directory; walk up to go.mod.
	currentDir := workingDir
	for {
		if _, err := os.Stat(filepath.Join(currentDir, "go.mod")); err == nil {
			workingDir = currentDir
			break
		}
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}

	tempDir, err := os.MkdirTemp("", "cocoseg-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &TestContext{
		WorkingDir:         workingDir,
		TempDir:            tempDir,
		EnvVars:            []string{},
		CreatedFiles:       []string{},
		CreatedDirectories: []string{},
		LastHTTPHeaders:    map[string]string{},
	}, nil
}

// Cleanup removes all temporary files and directories created during tests.
func (testCtx *TestContext) Cleanup() error {
	var errors []error

	testCtx.stopHTTPServer()

	for _, file := range testCtx.CreatedFiles {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			errors = append(errors, fmt.Errorf("failed to remove file %s: %w", file, err))
		}
	}

	for _, dir := range testCtx.CreatedDirectories {
		if err := os.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
			errors = append(errors, fmt.Errorf("failed to remove directory %s: %w", dir, err))
		}
	}

	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		errors = append(errors, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("cleanup errors: %v", errors)
	}
	return nil
}

// AddEnvVar adds an environment variable for command execution.
func (testCtx *TestContext) AddEnvVar(name, value string) {
	testCtx.EnvVars = append(testCtx.EnvVars, fmt.Sprintf("%s=%s", name, value))
}

// TrackFile adds a file to be cleaned up after tests.
func (testCtx *TestContext) TrackFile(filename string) {
	testCtx.CreatedFiles = append(testCtx.CreatedFiles, testCtx.resolvePath(filename))
}

// TrackDirectory adds a directory to be cleaned up after tests.
func (testCtx *TestContext) TrackDirectory(dirname string) {
	testCtx.CreatedDirectories = append(testCtx.CreatedDirectories, testCtx.resolvePath(dirname))
}

// resolvePath makes a scenario path absolute. Relative paths live in TempDir.
func (testCtx *TestContext) resolvePath(name string) string {
	name = testCtx.substituteVariables(name)
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.TempDir, filepath.FromSlash(name))
}
