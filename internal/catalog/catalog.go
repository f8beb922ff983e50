// Package catalog stores dataset metadata, join relationships and the
// embedding index the relevance resolver searches.
package catalog

import "context"

// Dataset is the catalog record for one queryable dataset.
type Dataset struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Source      string `json:"source"`
	Schema      string `json:"schema"` // schema rendered as text for the model
}

// Relationship is one join edge between two datasets.
type Relationship struct {
	From string `json:"from"`
	To   string `json:"to"`
	On   string `json:"on"`
}

// Match is one nearest-neighbour hit from the embedding index.
type Match struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// GraphStore exposes dataset and relationship lookups for one scope.
type GraphStore interface {
	ListDatasets(ctx context.Context, scopeID string) ([]Dataset, error)
	GetDatasetsByNames(ctx context.Context, scopeID string, names []string) ([]Dataset, error)
	GetRelationships(ctx context.Context, scopeID string, names []string) ([]Relationship, error)
	GetAllRelationships(ctx context.Context, scopeID string) ([]Relationship, error)
}

// VectorIndex answers nearest-neighbour queries over dataset embeddings.
type VectorIndex interface {
	SearchSimilar(ctx context.Context, scopeID string, vector []float32, topK int) ([]Match, error)
}
