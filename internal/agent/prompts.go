package agent

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed prompts/*.md
var defaultPrompts embed.FS

// PromptManager resolves the system prompt for each stage. Embedded defaults
// ship with the binary; a directory can override individual stages by
// dropping a <stage>.md file in it.
type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

// Get returns the system prompt for a stage.
func (pm *PromptManager) Get(stage Stage) (string, error) {
	name := string(stage) + ".md"

	if pm.Directory != "" {
		path := filepath.Join(pm.Directory, name)
		if data, err := os.ReadFile(path); err == nil {
			return string(data), nil
		}
	}

	data, err := defaultPrompts.ReadFile("prompts/" + name)
	if err != nil {
		return "", fmt.Errorf("no prompt for stage %s: %w", stage, err)
	}
	return string(data), nil
}
