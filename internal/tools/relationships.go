package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/askflow-ai/askflow/internal/catalog"
)

// RelationshipsTool returns join edges among a named set of datasets.
type RelationshipsTool struct {
	Graph   catalog.GraphStore
	ScopeID string
}

func NewRelationshipsTool(graph catalog.GraphStore, scopeID string) *RelationshipsTool {
	return &RelationshipsTool{Graph: graph, ScopeID: scopeID}
}

func (t *RelationshipsTool) Name() string {
	return "get_relationships"
}

func (t *RelationshipsTool) Description() string {
	return "Get the join relationships (foreign-key edges) among specific datasets. Use this to find valid join paths before writing SQL across datasets."
}

func (t *RelationshipsTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"names": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Dataset names to find relationships among",
			},
		},
		"required": []string{"names"},
	}
}

func (t *RelationshipsTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Names []string `json:"names"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return fmt.Sprintf("Invalid input: %v", err), nil
	}
	if len(args.Names) == 0 {
		return "Error: at least one dataset name is required", nil
	}

	rels, err := t.Graph.GetRelationships(ctx, t.ScopeID, args.Names)
	if err != nil {
		return fmt.Sprintf("Catalog Error: %v", err), nil
	}
	if len(rels) == 0 {
		return fmt.Sprintf("No relationships found among: %s", strings.Join(args.Names, ", ")), nil
	}

	var b strings.Builder
	for _, r := range rels {
		fmt.Fprintf(&b, "- %s -> %s ON %s\n", r.From, r.To, r.On)
	}
	return b.String(), nil
}
