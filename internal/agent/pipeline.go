package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/askflow-ai/askflow/internal/catalog"
	"github.com/askflow-ai/askflow/internal/observability"
	"github.com/askflow-ai/askflow/internal/stream"
	"github.com/askflow-ai/askflow/internal/tools"
)

// Pipeline runs the staged orchestration for one message: plan, navigate,
// build SQL, execute, verify, explain, with bounded revision loops.
type Pipeline struct {
	Model     llms.Model
	Registry  *tools.Registry
	QueryTool *tools.QueryTool
	Graph     catalog.GraphStore
	ScopeID   string
	Prompts   *PromptManager
	Logger    *observability.Logger
	Sink      stream.Sink
	ChatID    string
	MessageID string

	MaxIterations int
	MaxRevisions  int
	ResultBudget  int
}

// PipelineResult is everything a completed run hands back to the
// coordinator for persistence.
type PipelineResult struct {
	Answer    string
	Plan      *Plan
	Report    *VerificationReport
	Revisions int
	Lineage   *DataLineage
	Tokens    TokensUsed
	ToolCalls []ToolCallRecord
	Datasets  []string
	Caveat    string
}

// Run executes the full stage state machine. historyContext and
// datasetContext are grounding strings assembled by the coordinator.
func (p *Pipeline) Run(ctx context.Context, question, historyContext, datasetContext string) (*PipelineResult, error) {
	res := &PipelineResult{}
	loop := &Loop{
		Model:         p.Model,
		Logger:        p.Logger,
		Sink:          p.Sink,
		MaxIterations: p.MaxIterations,
		ResultBudget:  p.ResultBudget,
		ChatID:        p.ChatID,
		MessageID:     p.MessageID,
		Tokens:        &res.Tokens,
		Calls:         &res.ToolCalls,
	}

	plan, err := p.runPlanner(ctx, loop, question, historyContext, datasetContext)
	if err != nil {
		return res, err
	}
	res.Plan = plan

	// notes carries each stage's output forward as grounding for the next.
	var notes []string
	addNote := func(label, out string) {
		if strings.TrimSpace(out) != "" {
			notes = append(notes, fmt.Sprintf("## %s\n%s", label, strings.TrimSpace(out)))
		}
	}
	planJSON, _ := json.Marshal(plan)
	addNote("Plan", string(planJSON))

	stage := NextStage(StagePlanner, plan, nil, res.Revisions, p.MaxRevisions)
	for stage != StageDone {
		p.Logger.LogStage(p.ChatID, p.MessageID, string(stage), res.Revisions)

		switch stage {
		case StageNavigator:
			reg := p.Registry.Subset("list_datasets", "get_dataset_details", "get_relationships", "preview_dataset", "web_search")
			out, err := p.runStage(ctx, loop, StageNavigator, reg, question, notes, nil)
			if err != nil {
				return res, err
			}
			addNote("Navigation note", out.Text)
			stage = NextStage(StageNavigator, plan, nil, res.Revisions, p.MaxRevisions)

		case StageSqlBuilder:
			reg := p.Registry.Subset("get_dataset_details", "get_relationships", "preview_dataset", "run_query")
			out, err := p.runStage(ctx, loop, StageSqlBuilder, reg, question, notes, nil)
			if err != nil {
				return res, err
			}
			addNote("Prepared SQL", out.Text)
			stage = NextStage(StageSqlBuilder, plan, nil, res.Revisions, p.MaxRevisions)

		case StageExecutor:
			reg := p.Registry.Subset("run_query", "execute_code")
			out, err := p.runStage(ctx, loop, StageExecutor, reg, question, notes, nil)
			if err != nil {
				return res, err
			}
			addNote("Execution summary", out.Text)
			stage = NextStage(StageExecutor, plan, nil, res.Revisions, p.MaxRevisions)

		case StageVerifier:
			report, err := p.runVerifier(ctx, loop, question, notes)
			if err != nil {
				return res, err
			}
			res.Report = report
			next := NextStage(StageVerifier, plan, report, res.Revisions, p.MaxRevisions)
			if !report.Passed {
				if res.Revisions < p.MaxRevisions {
					res.Revisions++
					addNote("Verification failed", report.Diagnosis)
				} else {
					res.Caveat = fmt.Sprintf("Verification could not be satisfied after %d revisions: %s", p.MaxRevisions, report.Diagnosis)
				}
			}
			stage = next

		case StageExplainer:
			if res.Caveat != "" {
				addNote("Verification caveat", res.Caveat)
			}
			out, err := p.runStage(ctx, loop, StageExplainer, tools.NewRegistry(), question, notes, nil)
			if err != nil {
				return res, err
			}
			res.Answer = out.Text
			stage = StageDone

		default:
			return res, fmt.Errorf("pipeline reached unknown stage %q", stage)
		}
	}

	res.Lineage = p.buildLineage(ctx, plan)
	res.Datasets = res.Lineage.Datasets
	if res.Answer == "" {
		res.Answer = "I could not produce an answer within the allotted reasoning budget. Please try rephrasing the question."
	}
	return res, nil
}

func (p *Pipeline) runPlanner(ctx context.Context, loop *Loop, question, historyContext, datasetContext string) (*Plan, error) {
	reg := p.Registry.Subset("list_datasets", "get_dataset_details", "get_relationships")
	var notes []string
	if historyContext != "" {
		notes = append(notes, "## Conversation context\n"+historyContext)
	}
	if datasetContext != "" {
		notes = append(notes, "## Relevant datasets\n"+datasetContext)
	}

	out, err := p.runStage(ctx, loop, StagePlanner, reg, question, notes, submitPlanTool())
	if err != nil {
		return nil, err
	}

	raw := out.Captured
	if raw == "" {
		// Some models answer with the JSON inline instead of calling the tool.
		raw = strings.TrimSpace(out.Text)
	}
	var plan Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, fmt.Errorf("planner produced no usable plan: %w", err)
	}
	if plan.Complexity != ComplexitySimple && plan.Complexity != ComplexityAnalytical {
		plan.Complexity = ComplexityAnalytical
	}
	return &plan, nil
}

func (p *Pipeline) runVerifier(ctx context.Context, loop *Loop, question string, notes []string) (*VerificationReport, error) {
	reg := p.Registry.Subset("run_query")
	out, err := p.runStage(ctx, loop, StageVerifier, reg, question, notes, submitVerdictTool())
	if err != nil {
		return nil, err
	}

	raw := out.Captured
	if raw == "" {
		raw = strings.TrimSpace(out.Text)
	}
	var report VerificationReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, fmt.Errorf("verifier produced no usable report: %w", err)
	}
	return &report, nil
}

func (p *Pipeline) runStage(ctx context.Context, loop *Loop, stage Stage, reg *tools.Registry, question string, notes []string, capture *llms.FunctionDefinition) (*LoopResult, error) {
	systemPrompt, err := p.Prompts.Get(stage)
	if err != nil {
		return nil, err
	}
	loop.Stage = string(stage)

	var user strings.Builder
	fmt.Fprintf(&user, "Question: %s", question)
	for _, n := range notes {
		user.WriteString("\n\n")
		user.WriteString(n)
	}

	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(systemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(user.String())},
		},
	}

	out, err := loop.Run(ctx, messages, reg, capture)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", stage, err)
	}
	return out, nil
}

// buildLineage assembles the provenance record from the plan, the catalog's
// join edges and the queries the run actually executed.
func (p *Pipeline) buildLineage(ctx context.Context, plan *Plan) *DataLineage {
	lineage := &DataLineage{
		Datasets:   plan.Datasets(),
		TimeWindow: plan.TimeWindow,
		Filters:    plan.Filters,
		Grain:      plan.Grain,
	}

	if p.Graph != nil && len(lineage.Datasets) > 1 {
		if rels, err := p.Graph.GetRelationships(ctx, p.ScopeID, lineage.Datasets); err == nil {
			for _, r := range rels {
				lineage.Joins = append(lineage.Joins, JoinEdge{From: r.From, To: r.To, On: r.On})
			}
		}
	}
	if p.QueryTool != nil {
		if executed := p.QueryTool.Executed(); len(executed) > 0 {
			lineage.RowCount = executed[len(executed)-1].Rows
		}
	}
	return lineage
}

func submitPlanTool() *llms.FunctionDefinition {
	return &llms.FunctionDefinition{
		Name:        "submit_plan",
		Description: "Submit the structured analysis plan for the user's question.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"complexity": map[string]any{
					"type": "string",
					"enum": []string{ComplexitySimple, ComplexityAnalytical},
				},
				"intent":     map[string]any{"type": "string"},
				"metrics":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"dimensions": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"timeWindow": map[string]any{"type": "string"},
				"filters":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"grain":      map[string]any{"type": "string"},
				"ambiguities": map[string]any{
					"type": "array", "items": map[string]any{"type": "string"},
				},
				"acceptanceChecks": map[string]any{
					"type": "array", "items": map[string]any{"type": "string"},
				},
				"steps": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"id":             map[string]any{"type": "string"},
							"description":    map[string]any{"type": "string"},
							"strategy":       map[string]any{"type": "string"},
							"dependsOn":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
							"datasets":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
							"expectedOutput": map[string]any{"type": "string"},
						},
						"required": []string{"id", "description"},
					},
				},
			},
			"required": []string{"complexity", "intent"},
		},
	}
}

func submitVerdictTool() *llms.FunctionDefinition {
	return &llms.FunctionDefinition{
		Name:        "submit_verdict",
		Description: "Submit the verification verdict for the executed results.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"passed": map[string]any{"type": "boolean"},
				"checks": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"name":    map[string]any{"type": "string"},
							"passed":  map[string]any{"type": "boolean"},
							"message": map[string]any{"type": "string"},
						},
						"required": []string{"name", "passed"},
					},
				},
				"diagnosis": map[string]any{"type": "string"},
				"recommendedTarget": map[string]any{
					"type": "string",
					"enum": []string{"navigator", "sql_builder"},
				},
			},
			"required": []string{"passed"},
		},
	}
}
