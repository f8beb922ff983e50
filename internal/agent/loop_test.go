package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/askflow-ai/askflow/internal/observability"
	"github.com/askflow-ai/askflow/internal/stream"
	"github.com/askflow-ai/askflow/internal/tools"
)

// scriptedModel replays canned responses, one per GenerateContent call.
type scriptedModel struct {
	mu        sync.Mutex
	responses []*llms.ContentResponse
	calls     int
}

func (m *scriptedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls >= len(m.responses) {
		return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "out of script"}}}, nil
	}
	resp := m.responses[m.calls]
	m.calls++
	return resp, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", nil
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func textResponse(text string, prompt, completion int) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content: text,
		GenerationInfo: map[string]any{
			"PromptTokens":     prompt,
			"CompletionTokens": completion,
		},
	}}}
}

func toolCallResponse(prompt, completion int, calls ...llms.ToolCall) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		ToolCalls: calls,
		GenerationInfo: map[string]any{
			"PromptTokens":     prompt,
			"CompletionTokens": completion,
		},
	}}}
}

func call(id, name, args string) llms.ToolCall {
	return llms.ToolCall{
		ID:   id,
		Type: "function",
		FunctionCall: &llms.FunctionCall{
			Name:      name,
			Arguments: args,
		},
	}
}

// echoTool returns its input, optionally padded to a fixed size.
type echoTool struct {
	name    string
	padding int
}

func (e *echoTool) Name() string                   { return e.name }
func (e *echoTool) Description() string            { return "echo" }
func (e *echoTool) Parameters() map[string]any     { return map[string]any{"type": "object"} }
func (e *echoTool) Execute(ctx context.Context, input string) (string, error) {
	if e.padding > 0 {
		return strings.Repeat("x", e.padding), nil
	}
	return "echo:" + input, nil
}

// collectSink records every event it receives.
type collectSink struct {
	mu     sync.Mutex
	events []stream.Event
}

func (s *collectSink) Send(ctx context.Context, event stream.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *collectSink) KeepAlive(ctx context.Context) error { return nil }

func (s *collectSink) all() []stream.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]stream.Event(nil), s.events...)
}

func (s *collectSink) byType(t stream.EventType) []stream.Event {
	var out []stream.Event
	for _, e := range s.all() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newTestLoop(model llms.Model, sink stream.Sink) (*Loop, *TokensUsed, *[]ToolCallRecord) {
	tokens := &TokensUsed{}
	calls := &[]ToolCallRecord{}
	return &Loop{
		Model:         model,
		Logger:        &observability.Logger{},
		Sink:          sink,
		MaxIterations: 30,
		ResultBudget:  2000,
		ChatID:        "chat-1",
		MessageID:     "msg-1",
		Tokens:        tokens,
		Calls:         calls,
	}, tokens, calls
}

func userMessage(text string) []llms.MessageContent {
	return []llms.MessageContent{{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(text)},
	}}
}

func TestLoop_AccumulatesTokensAcrossTurns(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolCallResponse(100, 50, call("c1", "echo", `{"q":1}`)),
		textResponse("done", 200, 100),
	}}
	loop, tokens, _ := newTestLoop(model, &collectSink{})
	reg := tools.NewRegistry()
	reg.Register(&echoTool{name: "echo"})

	out, err := loop.Run(context.Background(), userMessage("hi"), reg, nil)
	require.NoError(t, err)
	assert.Equal(t, "done", out.Text)
	assert.Equal(t, 300, tokens.Prompt)
	assert.Equal(t, 150, tokens.Completion)
	assert.Equal(t, 450, tokens.Total)
}

func TestLoop_ParallelToolCallsMatchedByCorrelationID(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolCallResponse(10, 5,
			call("call_a", "alpha", `{"n":"a"}`),
			call("call_b", "beta", `{"n":"b"}`),
		),
		textResponse("done", 10, 5),
	}}
	sink := &collectSink{}
	loop, _, _ := newTestLoop(model, sink)
	reg := tools.NewRegistry()
	reg.Register(&echoTool{name: "alpha"})
	reg.Register(&echoTool{name: "beta"})

	_, err := loop.Run(context.Background(), userMessage("hi"), reg, nil)
	require.NoError(t, err)

	callEvents := sink.byType(stream.EventToolCall)
	resultEvents := sink.byType(stream.EventToolResult)
	require.Len(t, callEvents, 2)
	require.Len(t, resultEvents, 2)

	// Every result pairs with a call of the same id and tool name.
	callByID := make(map[string]stream.Event)
	for _, e := range callEvents {
		callByID[e.CallID] = e
	}
	for _, res := range resultEvents {
		matched, ok := callByID[res.CallID]
		require.True(t, ok, "result %s has no matching call", res.CallID)
		assert.Equal(t, matched.Tool, res.Tool)
	}
	assert.Equal(t, "alpha", callByID["call_a"].Tool)
	assert.Equal(t, "beta", callByID["call_b"].Tool)
}

func TestLoop_OrdinalFallbackWhenProviderOmitsIDs(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolCallResponse(1, 1,
			call("", "alpha", `{}`),
			call("", "beta", `{}`),
		),
		textResponse("done", 1, 1),
	}}
	sink := &collectSink{}
	loop, _, _ := newTestLoop(model, sink)
	reg := tools.NewRegistry()
	reg.Register(&echoTool{name: "alpha"})
	reg.Register(&echoTool{name: "beta"})

	_, err := loop.Run(context.Background(), userMessage("hi"), reg, nil)
	require.NoError(t, err)

	callEvents := sink.byType(stream.EventToolCall)
	require.Len(t, callEvents, 2)
	assert.NotEmpty(t, callEvents[0].CallID)
	assert.NotEmpty(t, callEvents[1].CallID)
	assert.NotEqual(t, callEvents[0].CallID, callEvents[1].CallID)
}

func TestLoop_TruncatesToolResults(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolCallResponse(1, 1, call("c1", "big", `{}`)),
		textResponse("done", 1, 1),
	}}
	loop, _, calls := newTestLoop(model, &collectSink{})
	reg := tools.NewRegistry()
	reg.Register(&echoTool{name: "big", padding: 10000})

	_, err := loop.Run(context.Background(), userMessage("hi"), reg, nil)
	require.NoError(t, err)
	require.Len(t, *calls, 1)
	assert.LessOrEqual(t, len((*calls)[0].Result), 2000)
	assert.Contains(t, (*calls)[0].Result, "[truncated]")
}

func TestLoop_UnknownToolFoldedIntoResult(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolCallResponse(1, 1, call("c1", "missing", `{}`)),
		textResponse("done", 1, 1),
	}}
	loop, _, calls := newTestLoop(model, &collectSink{})

	out, err := loop.Run(context.Background(), userMessage("hi"), tools.NewRegistry(), nil)
	require.NoError(t, err)
	assert.Equal(t, "done", out.Text)
	require.Len(t, *calls, 1)
	assert.Contains(t, (*calls)[0].Result, "not found")
}

func TestLoop_IterationCeilingYieldsPartialOutput(t *testing.T) {
	var responses []*llms.ContentResponse
	for i := 0; i < 10; i++ {
		responses = append(responses, toolCallResponse(1, 1, call("c", "echo", `{}`)))
	}
	model := &scriptedModel{responses: responses}
	loop, _, _ := newTestLoop(model, &collectSink{})
	loop.MaxIterations = 3
	reg := tools.NewRegistry()
	reg.Register(&echoTool{name: "echo"})

	out, err := loop.Run(context.Background(), userMessage("hi"), reg, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, model.callCount())
	assert.Empty(t, out.Captured)
}

func TestLoop_AppendsModelTranscript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "llm.jsonl")
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolCallResponse(1, 1, call("c1", "echo", `{}`)),
		textResponse("done", 1, 1),
	}}
	loop, _, _ := newTestLoop(model, &collectSink{})
	loop.Logger = &observability.Logger{LLMLogPath: path, MaxSize: 1 << 20}
	loop.Stage = "executor"
	reg := tools.NewRegistry()
	reg.Register(&echoTool{name: "echo"})

	_, err := loop.Run(context.Background(), userMessage("hi"), reg, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2, "one transcript entry per model turn")
	assert.Contains(t, lines[0], `"stage":"executor"`)
	assert.Contains(t, lines[0], `"tool_calls"`)
	assert.Contains(t, lines[1], "done")
}

func TestLoop_CaptureToolShortCircuits(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolCallResponse(1, 1, call("c1", "submit_plan", `{"complexity":"simple","intent":"count"}`)),
	}}
	loop, _, calls := newTestLoop(model, &collectSink{})

	out, err := loop.Run(context.Background(), userMessage("hi"), tools.NewRegistry(), submitPlanTool())
	require.NoError(t, err)
	assert.JSONEq(t, `{"complexity":"simple","intent":"count"}`, out.Captured)
	// Structured output is not a capability invocation.
	assert.Empty(t, *calls)
}
