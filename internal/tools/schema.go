package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/askflow-ai/askflow/internal/catalog"
)

// DatasetDetailsTool returns schema text for a named set of datasets. It
// never widens to the whole catalog: unknown names come back as misses.
type DatasetDetailsTool struct {
	Graph   catalog.GraphStore
	ScopeID string
}

func NewDatasetDetailsTool(graph catalog.GraphStore, scopeID string) *DatasetDetailsTool {
	return &DatasetDetailsTool{Graph: graph, ScopeID: scopeID}
}

func (t *DatasetDetailsTool) Name() string {
	return "get_dataset_details"
}

func (t *DatasetDetailsTool) Description() string {
	return "Get column-level schema details for specific datasets by name. Returns columns, types and descriptions as text."
}

func (t *DatasetDetailsTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"names": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Dataset names to look up",
			},
		},
		"required": []string{"names"},
	}
}

func (t *DatasetDetailsTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Names []string `json:"names"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return fmt.Sprintf("Invalid input: %v", err), nil
	}
	if len(args.Names) == 0 {
		return "Error: at least one dataset name is required", nil
	}

	datasets, err := t.Graph.GetDatasetsByNames(ctx, t.ScopeID, args.Names)
	if err != nil {
		return fmt.Sprintf("Catalog Error: %v", err), nil
	}

	found := make(map[string]bool, len(datasets))
	var b strings.Builder
	for _, d := range datasets {
		found[d.Name] = true
		fmt.Fprintf(&b, "## %s\n%s\n\nSchema:\n%s\n\n", d.Name, d.Description, d.Schema)
	}
	for _, name := range args.Names {
		if !found[name] {
			fmt.Fprintf(&b, "## %s\nNot found in catalog.\n\n", name)
		}
	}
	return strings.TrimSpace(b.String()), nil
}
