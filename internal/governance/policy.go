package governance

import (
	"context"
	"fmt"
	"regexp"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request contains the context of a statement to be evaluated.
type Request struct {
	Tool      string
	Statement string
	ChatID    string
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine evaluates tool invocations against a set of rules.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// DefaultPolicyEngine is a basic implementation of PolicyEngine.
type DefaultPolicyEngine struct {
	DeniedTools map[string]bool
	DeniedRegex []*regexp.Regexp
}

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{
		DeniedTools: make(map[string]bool),
		DeniedRegex: make([]*regexp.Regexp, 0),
	}
}

// NewReadOnlyPolicyEngine returns an engine that rejects statements able to
// mutate the target database. The query adapter runs every SQL statement
// through this before execution.
func NewReadOnlyPolicyEngine() *DefaultPolicyEngine {
	e := NewDefaultPolicyEngine()
	for _, pattern := range []string{
		`(?i)^\s*(insert|update|delete|merge|replace)\b`,
		`(?i)^\s*(create|drop|alter|truncate|rename)\b`,
		`(?i)^\s*(grant|revoke|vacuum|attach|detach|pragma)\b`,
		`(?i);\s*(insert|update|delete|drop|create|alter|truncate)\b`,
	} {
		_ = e.DenyStatements(pattern)
	}
	return e
}

func (e *DefaultPolicyEngine) DenyTool(name string) {
	e.DeniedTools[name] = true
}

func (e *DefaultPolicyEngine) DenyStatements(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.DeniedRegex = append(e.DeniedRegex, re)
	return nil
}

func (e *DefaultPolicyEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	if e.DeniedTools[req.Tool] {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("Tool '%s' is restricted by system policy", req.Tool),
		}, nil
	}

	for _, re := range e.DeniedRegex {
		if re.MatchString(req.Statement) {
			return Result{
				Effect: EffectDeny,
				Reason: fmt.Sprintf("Statement matches restricted pattern: %s", re.String()),
			}, nil
		}
	}

	return Result{
		Effect: EffectAllow,
		Reason: "Approved by default policy",
	}, nil
}
