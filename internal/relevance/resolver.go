// Package relevance resolves which catalog datasets a question is about.
package relevance

import (
	"context"
	"fmt"

	"github.com/askflow-ai/askflow/internal/catalog"
)

// Embedder produces a query embedding. langchaingo's embeddings.Embedder
// satisfies this.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Resolution is the outcome of dataset-relevance resolution. An empty
// Datasets slice with CatalogEmpty false means the search matched nothing
// but the catalog has entries, so the pipeline proceeds and discovers
// datasets through the listing and detail tools.
type Resolution struct {
	Datasets     []catalog.Dataset
	Matches      []catalog.Match
	CatalogEmpty bool
}

// Resolver embeds the question and searches the catalog embedding index.
type Resolver struct {
	embedder Embedder
	index    catalog.VectorIndex
	graph    catalog.GraphStore
	topK     int
}

func NewResolver(embedder Embedder, index catalog.VectorIndex, graph catalog.GraphStore, topK int) *Resolver {
	if topK <= 0 {
		topK = 10
	}
	return &Resolver{embedder: embedder, index: index, graph: graph, topK: topK}
}

func (r *Resolver) Resolve(ctx context.Context, scopeID, question string) (*Resolution, error) {
	vector, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	matches, err := r.index.SearchSimilar(ctx, scopeID, vector, r.topK)
	if err != nil {
		return nil, fmt.Errorf("search catalog index: %w", err)
	}

	if len(matches) > 0 {
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, m.Name)
		}
		datasets, err := r.graph.GetDatasetsByNames(ctx, scopeID, names)
		if err != nil {
			return nil, fmt.Errorf("load matched datasets: %w", err)
		}
		return &Resolution{Datasets: datasets, Matches: matches}, nil
	}

	// No matches: the full listing decides between "no data at all" and
	// "proceed with in-loop discovery".
	all, err := r.graph.ListDatasets(ctx, scopeID)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	if len(all) == 0 {
		return &Resolution{CatalogEmpty: true}, nil
	}
	return &Resolution{}, nil
}
