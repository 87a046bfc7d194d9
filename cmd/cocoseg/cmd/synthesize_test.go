package cmd

import (
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/cocoseg/internal/coco"
	"github.com/MeKo-Tech/cocoseg/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesizeCommand_DefaultOutput(t *testing.T) {
	fx := newCommandFixture(t, t.TempDir(), false)

	out, _, err := executeCommand(t, "synthesize", fx.AnnotationsPath, "--workers", "2")
	require.NoError(t, err)

	want := filepath.Join(fx.Dir, "new_results.json")
	assert.Contains(t, out, "Synthesized 3 annotations -> "+want)

	store, err := coco.Load(want)
	require.NoError(t, err)
	require.Len(t, store.Annotations, 3)
	assert.Equal(t, [][]float64{{20, 10, 28, 10, 28, 16, 20, 16}}, store.Annotations[1].Segmentation.Polygons)
	assert.InDelta(t, 48.0, store.Annotations[1].Area, 0)

	original, err := coco.Load(fx.AnnotationsPath)
	require.NoError(t, err)
	assert.Nil(t, original.Annotations[0].Segmentation, "input file is left alone")
}

func TestSynthesizeCommand_ExplicitOutput(t *testing.T) {
	fx := newCommandFixture(t, t.TempDir(), false)
	output := filepath.Join(fx.Dir, "out", "masks.json")

	_, _, err := executeCommand(t, "synthesize", fx.AnnotationsPath, "-o", output, "--indent")
	require.NoError(t, err)
	assert.True(t, testutil.FileExists(output))
	assert.False(t, testutil.FileExists(filepath.Join(fx.Dir, "new_results.json")))
}

func TestSynthesizeCommand_InvalidBBox(t *testing.T) {
	store := testutil.SampleStore()
	store.Annotations[2].BBox.H = -1
	fx := testutil.NewFixture(t, t.TempDir(), store)

	_, _, err := executeCommand(t, "synthesize", fx.AnnotationsPath)
	var ie *coco.InvalidAnnotationError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 2, ie.Index)
	assert.False(t, testutil.FileExists(filepath.Join(fx.Dir, "new_results.json")), "nothing is written")
}

func TestSynthesizeCommand_Errors(t *testing.T) {
	_, _, err := executeCommand(t, "synthesize")
	require.Error(t, err)

	_, _, err = executeCommand(t, "synthesize", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
