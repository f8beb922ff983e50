package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviewTool_BuildsBoundedSelect(t *testing.T) {
	runner := &recordingRunner{}
	tool := NewPreviewTool(runner)

	_, err := tool.Execute(context.Background(), `{"dataset":"orders"}`)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM orders LIMIT 5", runner.lastStmt)

	_, err = tool.Execute(context.Background(), `{"dataset":"orders","limit":100}`)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM orders LIMIT 20", runner.lastStmt)
}

func TestPreviewTool_RejectsNonIdentifierNames(t *testing.T) {
	runner := &recordingRunner{}
	tool := NewPreviewTool(runner)

	for _, input := range []string{
		`{"dataset":"orders; DROP TABLE orders"}`,
		`{"dataset":"orders--"}`,
		`{"dataset":""}`,
	} {
		out, err := tool.Execute(context.Background(), input)
		require.NoError(t, err)
		assert.Contains(t, out, "invalid dataset name")
	}
	assert.Empty(t, runner.lastStmt)
}

func TestPreviewTool_AllowsQualifiedNames(t *testing.T) {
	runner := &recordingRunner{}
	tool := NewPreviewTool(runner)

	_, err := tool.Execute(context.Background(), `{"dataset":"warehouse.orders"}`)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM warehouse.orders LIMIT 5", runner.lastStmt)
}
