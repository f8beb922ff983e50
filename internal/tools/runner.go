package tools

import (
	"context"
	"database/sql"

	_ "github.com/glebarez/go-sqlite"
)

// QueryResult is a bounded tabular result with every value rendered as text.
type QueryResult struct {
	Columns   []string
	Rows      [][]string
	Truncated bool // true when the row cap cut the result short
}

// QueryRunner executes a read-only SQL statement against the data source.
// The relational backend itself is a collaborator; this is the only surface
// the adapters depend on.
type QueryRunner interface {
	Query(ctx context.Context, stmt string, maxRows int) (*QueryResult, error)
}

// SQLRunner runs statements against a database/sql handle.
type SQLRunner struct {
	DB *sql.DB
}

func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{DB: db}
}

// NewSQLiteRunner opens a sqlite data source as the query backend.
func NewSQLiteRunner(dbPath string) (*SQLRunner, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	return &SQLRunner{DB: db}, nil
}

func (r *SQLRunner) Query(ctx context.Context, stmt string, maxRows int) (*QueryResult, error) {
	rows, err := r.DB.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &QueryResult{Columns: cols}
	values := make([]sql.NullString, len(cols))
	scanArgs := make([]any, len(cols))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if maxRows > 0 && len(result.Rows) >= maxRows {
			result.Truncated = true
			break
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, err
		}
		row := make([]string, len(cols))
		for i, v := range values {
			if v.Valid {
				row[i] = v.String
			} else {
				row[i] = "NULL"
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
