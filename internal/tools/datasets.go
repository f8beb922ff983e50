package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/askflow-ai/askflow/internal/catalog"
)

// DatasetListTool lists every dataset in the run's catalog scope.
type DatasetListTool struct {
	Graph   catalog.GraphStore
	ScopeID string
}

func NewDatasetListTool(graph catalog.GraphStore, scopeID string) *DatasetListTool {
	return &DatasetListTool{Graph: graph, ScopeID: scopeID}
}

func (t *DatasetListTool) Name() string {
	return "list_datasets"
}

func (t *DatasetListTool) Description() string {
	return "List all datasets available in the current data catalog with their descriptions. Use this to discover what data exists before planning queries."
}

func (t *DatasetListTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (t *DatasetListTool) Execute(ctx context.Context, input string) (string, error) {
	datasets, err := t.Graph.ListDatasets(ctx, t.ScopeID)
	if err != nil {
		return fmt.Sprintf("Catalog Error: %v", err), nil
	}
	if len(datasets) == 0 {
		return "No datasets found in the catalog.", nil
	}

	var b strings.Builder
	for _, d := range datasets {
		fmt.Fprintf(&b, "- %s: %s", d.Name, d.Description)
		if d.Source != "" {
			fmt.Fprintf(&b, " (source: %s)", d.Source)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}
