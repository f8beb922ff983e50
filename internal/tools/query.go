package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/askflow-ai/askflow/internal/governance"
)

// ExecutedQuery records one statement the run actually executed, kept for
// the final lineage record.
type ExecutedQuery struct {
	SQL  string `json:"sql"`
	Rows int    `json:"rows"`
}

// QueryTool executes read-only SQL through the QueryRunner. Statements pass
// the governance policy first; failures come back as text so the model can
// revise the query instead of aborting the run.
type QueryTool struct {
	Runner QueryRunner
	Policy governance.PolicyEngine
	RowCap int

	executed []ExecutedQuery
}

func NewQueryTool(runner QueryRunner, policy governance.PolicyEngine, rowCap int) *QueryTool {
	if rowCap <= 0 {
		rowCap = 500
	}
	return &QueryTool{Runner: runner, Policy: policy, RowCap: rowCap}
}

func (t *QueryTool) Name() string {
	return "run_query"
}

func (t *QueryTool) Description() string {
	return fmt.Sprintf("Execute a read-only SQL SELECT statement against the data source and return the results as a text table. Results are capped at %d rows.", t.RowCap)
}

func (t *QueryTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sql": map[string]any{
				"type":        "string",
				"description": "The SQL SELECT statement to execute",
			},
		},
		"required": []string{"sql"},
	}
}

func (t *QueryTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		SQL string `json:"sql"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return fmt.Sprintf("Invalid input: %v", err), nil
	}
	if args.SQL == "" {
		return "Error: empty SQL statement", nil
	}

	if t.Policy != nil {
		res, err := t.Policy.Evaluate(ctx, governance.Request{Tool: t.Name(), Statement: args.SQL})
		if err != nil {
			return fmt.Sprintf("Policy Error: %v", err), nil
		}
		if res.Effect == governance.EffectDeny {
			return fmt.Sprintf("SQL Error: statement rejected, only read-only SELECT is allowed (%s)", res.Reason), nil
		}
	}

	result, err := t.Runner.Query(ctx, args.SQL, t.RowCap)
	if err != nil {
		return fmt.Sprintf("SQL Error: %v", err), nil
	}

	t.executed = append(t.executed, ExecutedQuery{SQL: args.SQL, Rows: len(result.Rows)})
	return RenderTable(result), nil
}

// Executed returns the statements this run executed, in order.
func (t *QueryTool) Executed() []ExecutedQuery {
	return t.executed
}

// RenderTable renders a query result as a text table.
func RenderTable(result *QueryResult) string {
	if len(result.Rows) == 0 {
		return "Query returned no rows."
	}

	tw := table.NewWriter()
	header := make(table.Row, len(result.Columns))
	for i, c := range result.Columns {
		header[i] = c
	}
	tw.AppendHeader(header)
	for _, r := range result.Rows {
		row := make(table.Row, len(r))
		for i, v := range r {
			row[i] = v
		}
		tw.AppendRow(row)
	}

	rendered := tw.Render()
	suffix := fmt.Sprintf("\n(%d rows)", len(result.Rows))
	if result.Truncated {
		suffix = fmt.Sprintf("\n(%d rows, truncated at row cap)", len(result.Rows))
	}
	return rendered + suffix
}
