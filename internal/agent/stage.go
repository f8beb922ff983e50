package agent

// Stage is one phase of the orchestration pipeline.
type Stage string

const (
	StagePlanner    Stage = "planner"
	StageNavigator  Stage = "navigator"
	StageSqlBuilder Stage = "sql_builder"
	StageExecutor   Stage = "executor"
	StageVerifier   Stage = "verifier"
	StageExplainer  Stage = "explainer"
	// StageDone marks the end of the pipeline after the explainer ran.
	StageDone Stage = "done"
)

// NextStage is the pure transition function of the pipeline state machine.
// plan must be set when current is StagePlanner; report and revisions matter
// only when current is StageVerifier. maxRevisions caps the total rework: a
// failed verification beyond the cap routes to the explainer anyway.
func NextStage(current Stage, plan *Plan, report *VerificationReport, revisions, maxRevisions int) Stage {
	switch current {
	case StagePlanner:
		if plan != nil && plan.Complexity == ComplexitySimple {
			return StageExecutor
		}
		return StageNavigator
	case StageNavigator:
		return StageSqlBuilder
	case StageSqlBuilder:
		return StageExecutor
	case StageExecutor:
		return StageVerifier
	case StageVerifier:
		if report == nil || report.Passed {
			return StageExplainer
		}
		if revisions >= maxRevisions {
			return StageExplainer
		}
		switch report.RecommendedTarget {
		case "navigator":
			return StageNavigator
		default:
			// sql_builder, empty or unknown: the SQL is the most likely fix.
			return StageSqlBuilder
		}
	case StageExplainer:
		return StageDone
	default:
		return StageDone
	}
}
