package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// PreviewTool shows a handful of sample rows from one dataset so the model
// can see real value shapes before writing SQL.
type PreviewTool struct {
	Runner QueryRunner
	Limit  int
}

func NewPreviewTool(runner QueryRunner) *PreviewTool {
	return &PreviewTool{Runner: runner, Limit: 5}
}

func (t *PreviewTool) Name() string {
	return "preview_dataset"
}

func (t *PreviewTool) Description() string {
	return "Preview a few sample rows from a dataset to inspect actual values and formats."
}

func (t *PreviewTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"dataset": map[string]any{
				"type":        "string",
				"description": "The dataset (table) name to preview",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Number of rows to show (default 5, max 20)",
			},
		},
		"required": []string{"dataset"},
	}
}

func (t *PreviewTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Dataset string `json:"dataset"`
		Limit   int    `json:"limit"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return fmt.Sprintf("Invalid input: %v", err), nil
	}
	if !identRe.MatchString(args.Dataset) {
		return fmt.Sprintf("Error: invalid dataset name %q", args.Dataset), nil
	}

	limit := args.Limit
	if limit <= 0 {
		limit = t.Limit
	}
	if limit > 20 {
		limit = 20
	}

	result, err := t.Runner.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", args.Dataset, limit), limit)
	if err != nil {
		return fmt.Sprintf("SQL Error: %v", err), nil
	}
	return RenderTable(result), nil
}
