package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteCatalog implements GraphStore and VectorIndex over sqlite. Embeddings
// are stored alongside the dataset record and scanned linearly; catalogs are
// small (tens to hundreds of datasets), so no ANN structure is needed.
type SQLiteCatalog struct {
	DB *sql.DB
}

func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	c := &SQLiteCatalog{DB: db}
	if err := c.init(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewSQLiteCatalogFromDB wraps an existing handle, sharing it with the store.
func NewSQLiteCatalogFromDB(db *sql.DB) (*SQLiteCatalog, error) {
	c := &SQLiteCatalog{DB: db}
	if err := c.init(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *SQLiteCatalog) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS datasets (
			scope_id TEXT,
			name TEXT,
			description TEXT,
			source TEXT,
			schema_text TEXT,
			embedding TEXT DEFAULT '',
			PRIMARY KEY (scope_id, name)
		);`,
		`CREATE TABLE IF NOT EXISTS relationships (
			scope_id TEXT,
			from_dataset TEXT,
			to_dataset TEXT,
			join_on TEXT,
			PRIMARY KEY (scope_id, from_dataset, to_dataset, join_on)
		);`,
	}
	for _, q := range queries {
		if _, err := c.DB.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// UpsertDataset writes a dataset record and its embedding vector.
func (c *SQLiteCatalog) UpsertDataset(ctx context.Context, scopeID string, ds Dataset, embedding []float32) error {
	encoded := ""
	if len(embedding) > 0 {
		data, err := json.Marshal(embedding)
		if err != nil {
			return fmt.Errorf("encode embedding: %w", err)
		}
		encoded = string(data)
	}
	_, err := c.DB.ExecContext(ctx,
		`INSERT INTO datasets (scope_id, name, description, source, schema_text, embedding)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (scope_id, name) DO UPDATE SET
		   description = excluded.description,
		   source = excluded.source,
		   schema_text = excluded.schema_text,
		   embedding = excluded.embedding`,
		scopeID, ds.Name, ds.Description, ds.Source, ds.Schema, encoded)
	return err
}

// AddRelationship records a join edge between two datasets.
func (c *SQLiteCatalog) AddRelationship(ctx context.Context, scopeID string, rel Relationship) error {
	_, err := c.DB.ExecContext(ctx,
		`INSERT OR IGNORE INTO relationships (scope_id, from_dataset, to_dataset, join_on) VALUES (?, ?, ?, ?)`,
		scopeID, rel.From, rel.To, rel.On)
	return err
}

func (c *SQLiteCatalog) ListDatasets(ctx context.Context, scopeID string) ([]Dataset, error) {
	rows, err := c.DB.QueryContext(ctx,
		`SELECT name, description, source, schema_text FROM datasets WHERE scope_id = ? ORDER BY name`,
		scopeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDatasets(rows)
}

func (c *SQLiteCatalog) GetDatasetsByNames(ctx context.Context, scopeID string, names []string) ([]Dataset, error) {
	if len(names) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")
	args := make([]any, 0, len(names)+1)
	args = append(args, scopeID)
	for _, n := range names {
		args = append(args, n)
	}
	rows, err := c.DB.QueryContext(ctx,
		`SELECT name, description, source, schema_text FROM datasets
		 WHERE scope_id = ? AND name IN (`+placeholders+`) ORDER BY name`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDatasets(rows)
}

func (c *SQLiteCatalog) GetRelationships(ctx context.Context, scopeID string, names []string) ([]Relationship, error) {
	if len(names) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")
	args := make([]any, 0, 2*len(names)+1)
	args = append(args, scopeID)
	for _, n := range names {
		args = append(args, n)
	}
	for _, n := range names {
		args = append(args, n)
	}
	rows, err := c.DB.QueryContext(ctx,
		`SELECT from_dataset, to_dataset, join_on FROM relationships
		 WHERE scope_id = ? AND from_dataset IN (`+placeholders+`) AND to_dataset IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRelationships(rows)
}

func (c *SQLiteCatalog) GetAllRelationships(ctx context.Context, scopeID string) ([]Relationship, error) {
	rows, err := c.DB.QueryContext(ctx,
		`SELECT from_dataset, to_dataset, join_on FROM relationships WHERE scope_id = ?`, scopeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRelationships(rows)
}

// SearchSimilar ranks datasets by cosine similarity against the query vector.
func (c *SQLiteCatalog) SearchSimilar(ctx context.Context, scopeID string, vector []float32, topK int) ([]Match, error) {
	rows, err := c.DB.QueryContext(ctx,
		`SELECT name, embedding FROM datasets WHERE scope_id = ? AND embedding != ''`, scopeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var name, encoded string
		if err := rows.Scan(&name, &encoded); err != nil {
			return nil, err
		}
		var embedding []float32
		if err := json.Unmarshal([]byte(encoded), &embedding); err != nil {
			continue // unreadable embedding, skip the record
		}
		score := cosineSimilarity(vector, embedding)
		if score > 0 {
			matches = append(matches, Match{Name: name, Score: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func scanDatasets(rows *sql.Rows) ([]Dataset, error) {
	var out []Dataset
	for rows.Next() {
		var d Dataset
		if err := rows.Scan(&d.Name, &d.Description, &d.Source, &d.Schema); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanRelationships(rows *sql.Rows) ([]Relationship, error) {
	var out []Relationship
	for rows.Next() {
		var r Relationship
		if err := rows.Scan(&r.From, &r.To, &r.On); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
