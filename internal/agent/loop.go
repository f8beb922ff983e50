package agent

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"github.com/askflow-ai/askflow/internal/observability"
	"github.com/askflow-ai/askflow/internal/stream"
	"github.com/askflow-ai/askflow/internal/tools"
)

// Loop executes a single stage's model turns against the capability
// adapters until the model answers without tool calls, a capture tool is
// invoked, or the iteration ceiling is reached.
type Loop struct {
	Model         llms.Model
	Logger        *observability.Logger
	Sink          stream.Sink
	MaxIterations int
	ResultBudget  int
	ChatID        string
	MessageID     string
	Stage         string

	// Tokens and Calls are owned by the run and shared across stages.
	Tokens *TokensUsed
	Calls  *[]ToolCallRecord
}

// LoopResult is one stage's output. Captured carries the JSON arguments of
// the capture tool when the stage produces structured output; Text carries
// free-text output, possibly partial when the ceiling cut the loop short.
type LoopResult struct {
	Text     string
	Captured string
}

// Run drives the mini-ReAct loop. capture, when non-nil, names a structured
// output tool: the loop returns as soon as the model invokes it. Tool calls
// and results are matched by the provider-supplied call id; when a provider
// does not supply ids, an ordinal id is synthesized per turn so parallel
// calls still pair correctly.
func (l *Loop) Run(ctx context.Context, messages []llms.MessageContent, registry *tools.Registry, capture *llms.FunctionDefinition) (*LoopResult, error) {
	var llmTools []llms.Tool
	for _, t := range registry.List() {
		llmTools = append(llmTools, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	if capture != nil {
		llmTools = append(llmTools, llms.Tool{Type: "function", Function: capture})
	}

	maxIters := l.MaxIterations
	if maxIters <= 0 {
		maxIters = 30
	}

	var lastText string
	for i := 0; i < maxIters; i++ {
		var opts []llms.CallOption
		if len(llmTools) > 0 {
			opts = append(opts, llms.WithTools(llmTools))
		}

		resp, err := l.Model.GenerateContent(ctx, messages, opts...)
		if err != nil {
			return nil, fmt.Errorf("model invocation: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("model returned no choices")
		}
		choice := resp.Choices[0]

		prompt, completion := usageFromInfo(choice.GenerationInfo)
		l.Tokens.Add(prompt, completion)
		l.Logger.LogLLM(l.ChatID, l.MessageID, l.Stage, choice.Content, choice.ToolCalls)

		// Add Assistant's message to the transcript
		var assistantParts []llms.ContentPart
		if choice.Content != "" {
			assistantParts = append(assistantParts, llms.TextContent{Text: choice.Content})
			lastText = choice.Content
		}
		for _, tc := range choice.ToolCalls {
			assistantParts = append(assistantParts, tc)
		}
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeAI,
			Parts: assistantParts,
		})

		// No tool calls: this is the stage's final output.
		if len(choice.ToolCalls) == 0 {
			if choice.Content != "" {
				l.emit(ctx, stream.Text(l.MessageID, choice.Content))
			}
			return &LoopResult{Text: choice.Content}, nil
		}

		for idx, tc := range choice.ToolCalls {
			name := tc.FunctionCall.Name
			args := tc.FunctionCall.Arguments

			if capture != nil && name == capture.Name {
				return &LoopResult{Text: lastText, Captured: args}, nil
			}

			callID := tc.ID
			if callID == "" {
				// Ordinal fallback for providers without stable call ids.
				callID = fmt.Sprintf("call_%d_%d", i, idx)
			}

			l.emit(ctx, stream.ToolCall(l.MessageID, callID, name, args))
			l.Logger.LogToolCall(l.ChatID, l.MessageID, name, args)

			var result string
			if tool := registry.Get(name); tool == nil {
				result = fmt.Sprintf("Error: Tool %s not found", name)
			} else {
				res, err := tool.Execute(ctx, args)
				if err != nil {
					res = fmt.Sprintf("Error: %v", err)
				}
				result = res
			}
			result = tools.Truncate(result, l.ResultBudget)

			*l.Calls = append(*l.Calls, ToolCallRecord{Name: name, Args: args, Result: result})
			l.emit(ctx, stream.ToolResult(l.MessageID, callID, name, result))
			l.Logger.LogToolResult(l.ChatID, l.MessageID, name, result)

			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{
					llms.ToolCallResponse{
						ToolCallID: callID,
						Name:       name,
						Content:    result,
					},
				},
			})
		}
	}

	// Ceiling reached: yield whatever partial output exists.
	return &LoopResult{Text: lastText}, nil
}

// emit delivers an event, tolerating a disconnected transport: the pipeline
// keeps running and persisting even when nobody is listening anymore.
func (l *Loop) emit(ctx context.Context, evt stream.Event) {
	if l.Sink == nil {
		return
	}
	_ = l.Sink.Send(ctx, evt)
}

// usageFromInfo extracts token usage from a model turn's generation info.
func usageFromInfo(info map[string]any) (prompt, completion int) {
	return intFromAny(info["PromptTokens"]), intFromAny(info["CompletionTokens"])
}

func intFromAny(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
