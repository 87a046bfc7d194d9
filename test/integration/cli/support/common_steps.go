package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

// substituteVariables expands the scenario placeholders used in feature files.
func (testCtx *TestContext) substituteVariables(s string) string {
	replacer := strings.NewReplacer(
		"{tmp}", testCtx.TempDir,
		"{annotations}", testCtx.AnnotationsPath,
		"{images}", testCtx.ImagesDir,
	)
	return replacer.Replace(s)
}

// iRunCommand executes a CLI command in the module root.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteVariables(command)

	testCtx.LastCommand = command
	testCtx.LastStartTime = time.Now()

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...) //nolint:gosec // commands come from feature files
	cmd.Dir = testCtx.WorkingDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastError = err
	testCtx.LastDuration = time.Since(testCtx.LastStartTime)

	if err != nil {
		exitError := &exec.ExitError{}
		if errors.As(err, &exitError) {
			testCtx.LastExitCode = exitError.ExitCode()
		} else {
			testCtx.LastExitCode = -1
		}
	} else {
		testCtx.LastExitCode = 0
	}

	return nil
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s\nStderr: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theExitCodeShouldBe(code int) error {
	if testCtx.LastExitCode != code {
		return fmt.Errorf("expected exit code %d, got %d\nStderr: %s", code, testCtx.LastExitCode, testCtx.LastStderr)
	}
	return nil
}

// theOutputShouldContain verifies stdout or stderr contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	expectedText = testCtx.substituteVariables(expectedText)
	if !strings.Contains(testCtx.LastOutput+testCtx.LastStderr, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s\nStderr: %s",
			expectedText, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(unexpectedText string) error {
	if strings.Contains(testCtx.LastOutput+testCtx.LastStderr, unexpectedText) {
		return fmt.Errorf("output unexpectedly contains '%s'\nActual output: %s", unexpectedText, testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldBeValidJSON verifies stdout is a single JSON document.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	_, err := testCtx.outputJSON()
	return err
}

func (testCtx *TestContext) outputJSON() (map[string]any, error) {
	output := strings.TrimSpace(testCtx.LastOutput)
	if output == "" {
		return nil, errors.New("no JSON found in empty output")
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(output), &data); err != nil {
		return nil, fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, output)
	}
	return data, nil
}

// theJSONShouldContain verifies the JSON output contains a dotted field path.
func (testCtx *TestContext) theJSONShouldContain(field string) error {
	data, err := testCtx.outputJSON()
	if err != nil {
		return err
	}
	return checkFieldExists(data, field)
}

func checkFieldExists(data map[string]any, field string) error {
	parts := strings.Split(field, ".")
	current := data

	for i, part := range parts {
		val, exists := current[part]
		if !exists {
			return fmt.Errorf("field '%s' not found in JSON", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return nil
		}
		nextMap, ok := val.(map[string]any)
		if !ok {
			return fmt.Errorf("cannot navigate deeper into non-object field '%s'", part)
		}
		current = nextMap
	}
	return nil
}

func (testCtx *TestContext) theJSONFieldShouldEqual(field, expected string) error {
	data, err := testCtx.outputJSON()
	if err != nil {
		return err
	}
	if err := checkFieldExists(data, field); err != nil {
		return err
	}

	var val any = data
	for _, part := range strings.Split(field, ".") {
		val = val.(map[string]any)[part]
	}
	if got := fmt.Sprint(val); got != expected {
		return fmt.Errorf("field '%s' is %s, expected %s", field, got, expected)
	}
	return nil
}

// theErrorShouldMention verifies the error output contains specific text.
func (testCtx *TestContext) theErrorShouldMention(errorText string) error {
	if testCtx.LastError == nil && testCtx.LastExitCode == 0 {
		return fmt.Errorf("no error occurred, but expected error containing '%s'", errorText)
	}

	fullErrorText := testCtx.LastOutput + " " + testCtx.LastStderr
	if testCtx.LastError != nil {
		fullErrorText += " " + testCtx.LastError.Error()
	}

	if !strings.Contains(strings.ToLower(fullErrorText), strings.ToLower(errorText)) {
		return fmt.Errorf("error does not contain '%s'\nActual error: %s", errorText, fullErrorText)
	}
	return nil
}

func (testCtx *TestContext) registerCommandSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the exit code should be (\d+)$`, testCtx.theExitCodeShouldBe)
}

func (testCtx *TestContext) registerOutputSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON should contain "([^"]*)"$`, testCtx.theJSONShouldContain)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONFieldShouldEqual)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
}

// RegisterCommonSteps registers all common step definitions.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	testCtx.registerCommandSteps(sc)
	testCtx.registerOutputSteps(sc)
}
