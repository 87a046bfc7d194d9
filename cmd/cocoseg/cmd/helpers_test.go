package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/MeKo-Tech/cocoseg/internal/synth"
	"github.com/MeKo-Tech/cocoseg/internal/testutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag of c and its children to its default so
// that consecutive executions of the shared command tree do not leak state.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// executeCommand runs the root command with args and returns stdout and stderr.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// newCommandFixture writes the sample store and its page images below dir,
// optionally with synthesized segmentations.
func newCommandFixture(t *testing.T, dir string, synthesized bool) testutil.Fixture {
	t.Helper()
	store := testutil.SampleStore()
	if synthesized {
		_, err := synth.Synthesize(context.Background(), store, synth.Options{Workers: 1})
		require.NoError(t, err)
	}
	return testutil.NewFixture(t, dir, store)
}
