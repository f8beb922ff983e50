package agent

// Complexity classifies a plan. Simple plans skip join discovery entirely.
const (
	ComplexitySimple     = "simple"
	ComplexityAnalytical = "analytical"
)

// PlanStep is a single sub-task in a broader plan.
type PlanStep struct {
	ID             string   `json:"id"`
	Description    string   `json:"description"`
	Strategy       string   `json:"strategy"`
	DependsOn      []string `json:"dependsOn,omitempty"`
	Datasets       []string `json:"datasets,omitempty"`
	ExpectedOutput string   `json:"expectedOutput,omitempty"`
}

// Plan is the planner stage's structured output. It is immutable once the
// pipeline advances past planning for a given revision.
type Plan struct {
	Complexity       string     `json:"complexity"` // simple | analytical
	Intent           string     `json:"intent"`
	Metrics          []string   `json:"metrics,omitempty"`
	Dimensions       []string   `json:"dimensions,omitempty"`
	TimeWindow       string     `json:"timeWindow,omitempty"`
	Filters          []string   `json:"filters,omitempty"`
	Grain            string     `json:"grain,omitempty"`
	Ambiguities      []string   `json:"ambiguities,omitempty"`
	AcceptanceChecks []string   `json:"acceptanceChecks,omitempty"`
	Steps            []PlanStep `json:"steps,omitempty"`
}

// Datasets returns the union of datasets referenced by the plan's steps.
func (p *Plan) Datasets() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range p.Steps {
		for _, d := range s.Datasets {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	return out
}

// Check is one acceptance check evaluated by the verifier.
type Check struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// VerificationReport is the verifier stage's structured output; it drives
// routing back to an earlier stage on failure.
type VerificationReport struct {
	Passed            bool    `json:"passed"`
	Checks            []Check `json:"checks,omitempty"`
	Diagnosis         string  `json:"diagnosis,omitempty"`
	RecommendedTarget string  `json:"recommendedTarget,omitempty"` // navigator | sql_builder
}

// ToolCallRecord is one tool invocation accumulated across the run and
// flushed into persisted message metadata at completion.
type ToolCallRecord struct {
	Name   string `json:"name"`
	Args   string `json:"args"`
	Result string `json:"result,omitempty"`
}

// JoinEdge is one join used to produce the answer.
type JoinEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
	On   string `json:"on"`
}

// DataLineage is the provenance record attached to the final explanation.
type DataLineage struct {
	Datasets   []string   `json:"datasets,omitempty"`
	Joins      []JoinEdge `json:"joins,omitempty"`
	TimeWindow string     `json:"timeWindow,omitempty"`
	Filters    []string   `json:"filters,omitempty"`
	Grain      string     `json:"grain,omitempty"`
	RowCount   int        `json:"rowCount"`
}

// TokensUsed accumulates usage across every model invocation in the run.
type TokensUsed struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// Add folds one model turn's usage into the running totals.
func (t *TokensUsed) Add(prompt, completion int) {
	t.Prompt += prompt
	t.Completion += completion
	t.Total += prompt + completion
}

// RunMetadata is the full metadata bundle persisted with the assistant
// message when a run terminates.
type RunMetadata struct {
	ToolCalls    []ToolCallRecord    `json:"toolCalls,omitempty"`
	Tokens       TokensUsed          `json:"tokens"`
	Datasets     []string            `json:"datasets,omitempty"`
	Plan         *Plan               `json:"plan,omitempty"`
	Lineage      *DataLineage        `json:"lineage,omitempty"`
	Revisions    int                 `json:"revisions"`
	Verification *VerificationReport `json:"verification,omitempty"`
	Caveat       string              `json:"caveat,omitempty"`
	Error        string              `json:"error,omitempty"`
}
