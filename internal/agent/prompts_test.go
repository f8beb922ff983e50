package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptManager_EmbeddedDefaults(t *testing.T) {
	pm := NewPromptManager("")
	for _, stage := range []Stage{StagePlanner, StageNavigator, StageSqlBuilder, StageExecutor, StageVerifier, StageExplainer} {
		prompt, err := pm.Get(stage)
		require.NoError(t, err, "stage %s", stage)
		assert.NotEmpty(t, prompt)
	}
}

func TestPromptManager_DirectoryOverridesOneStage(t *testing.T) {
	dir := t.TempDir()
	custom := "You are a very particular planner."
	require.NoError(t, os.WriteFile(filepath.Join(dir, "planner.md"), []byte(custom), 0o644))

	pm := NewPromptManager(dir)

	prompt, err := pm.Get(StagePlanner)
	require.NoError(t, err)
	assert.Equal(t, custom, prompt)

	// Stages without an override file still use the embedded default.
	fallback, err := pm.Get(StageVerifier)
	require.NoError(t, err)
	assert.NotEmpty(t, fallback)
	assert.NotEqual(t, custom, fallback)
}

func TestPromptManager_UnknownStage(t *testing.T) {
	pm := NewPromptManager("")
	_, err := pm.Get(Stage("daydreamer"))
	assert.Error(t, err)
}
