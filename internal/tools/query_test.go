package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askflow-ai/askflow/internal/governance"
)

// recordingRunner captures the statement and row cap it was asked for.
type recordingRunner struct {
	lastStmt    string
	lastMaxRows int
	result      *QueryResult
	err         error
}

func (r *recordingRunner) Query(ctx context.Context, stmt string, maxRows int) (*QueryResult, error) {
	r.lastStmt = stmt
	r.lastMaxRows = maxRows
	if r.err != nil {
		return nil, r.err
	}
	if r.result != nil {
		return r.result, nil
	}
	return &QueryResult{Columns: []string{"n"}, Rows: [][]string{{"42"}}}, nil
}

func TestQueryTool_ExecutesAndRecords(t *testing.T) {
	runner := &recordingRunner{}
	tool := NewQueryTool(runner, governance.NewReadOnlyPolicyEngine(), 500)

	out, err := tool.Execute(context.Background(), `{"sql":"SELECT count(*) AS n FROM orders"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "(1 rows)")
	assert.Equal(t, 500, runner.lastMaxRows)

	executed := tool.Executed()
	require.Len(t, executed, 1)
	assert.Equal(t, "SELECT count(*) AS n FROM orders", executed[0].SQL)
	assert.Equal(t, 1, executed[0].Rows)
}

func TestQueryTool_PolicyRejectsWrites(t *testing.T) {
	runner := &recordingRunner{}
	tool := NewQueryTool(runner, governance.NewReadOnlyPolicyEngine(), 500)

	for _, stmt := range []string{
		`{"sql":"UPDATE orders SET total = 0"}`,
		`{"sql":"  delete from orders"}`,
		`{"sql":"DROP TABLE orders"}`,
		`{"sql":"SELECT 1; DROP TABLE orders"}`,
	} {
		out, err := tool.Execute(context.Background(), stmt)
		require.NoError(t, err)
		assert.Contains(t, out, "SQL Error: statement rejected", "statement %s", stmt)
	}

	// Rejected statements never reach the runner and are not recorded.
	assert.Empty(t, runner.lastStmt)
	assert.Empty(t, tool.Executed())
}

func TestQueryTool_RunnerErrorFoldedIntoResult(t *testing.T) {
	runner := &recordingRunner{err: errors.New("no such table: orders")}
	tool := NewQueryTool(runner, governance.NewReadOnlyPolicyEngine(), 500)

	out, err := tool.Execute(context.Background(), `{"sql":"SELECT * FROM orders"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "SQL Error: no such table")
	assert.Empty(t, tool.Executed())
}

func TestQueryTool_InvalidInput(t *testing.T) {
	tool := NewQueryTool(&recordingRunner{}, nil, 500)

	out, err := tool.Execute(context.Background(), `not json`)
	require.NoError(t, err)
	assert.Contains(t, out, "Invalid input")

	out, err = tool.Execute(context.Background(), `{"sql":""}`)
	require.NoError(t, err)
	assert.Contains(t, out, "empty SQL")
}

func TestRenderTable(t *testing.T) {
	out := RenderTable(&QueryResult{Columns: []string{"n"}})
	assert.Equal(t, "Query returned no rows.", out)

	out = RenderTable(&QueryResult{
		Columns:   []string{"region", "total"},
		Rows:      [][]string{{"east", "100"}, {"west", "200"}},
		Truncated: true,
	})
	assert.Contains(t, out, "east")
	assert.Contains(t, out, "(2 rows, truncated at row cap)")
}
