// Package stream defines the events an orchestration run emits and the
// sinks that deliver them to a transport.
package stream

import "context"

// EventType discriminates the stream event union.
type EventType string

const (
	EventMessageStart    EventType = "message_start"
	EventToolCall        EventType = "tool_call"
	EventToolResult      EventType = "tool_result"
	EventText            EventType = "text"
	EventTokenUpdate     EventType = "token_update"
	EventMessageComplete EventType = "message_complete"
	EventMessageError    EventType = "message_error"
)

// Event is the only artifact crossing the system boundary during a run.
// Events are plain values and are never mutated after emission.
type Event struct {
	Type      EventType `json:"type"`
	MessageID string    `json:"messageId"`

	// tool_call / tool_result
	CallID string `json:"callId,omitempty"`
	Tool   string `json:"tool,omitempty"`
	Args   string `json:"args,omitempty"`
	Result string `json:"result,omitempty"`

	// text / message_complete
	Text    string `json:"text,omitempty"`
	Content string `json:"content,omitempty"`

	// token_update
	PromptTokens     int `json:"promptTokens,omitempty"`
	CompletionTokens int `json:"completionTokens,omitempty"`
	TotalTokens      int `json:"totalTokens,omitempty"`

	// message_error
	Error string `json:"error,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventMessageComplete || e.Type == EventMessageError
}

func MessageStart(messageID string) Event {
	return Event{Type: EventMessageStart, MessageID: messageID}
}

func ToolCall(messageID, callID, tool, args string) Event {
	return Event{Type: EventToolCall, MessageID: messageID, CallID: callID, Tool: tool, Args: args}
}

func ToolResult(messageID, callID, tool, result string) Event {
	return Event{Type: EventToolResult, MessageID: messageID, CallID: callID, Tool: tool, Result: result}
}

func Text(messageID, text string) Event {
	return Event{Type: EventText, MessageID: messageID, Text: text}
}

func TokenUpdate(messageID string, prompt, completion, total int) Event {
	return Event{Type: EventTokenUpdate, MessageID: messageID, PromptTokens: prompt, CompletionTokens: completion, TotalTokens: total}
}

func MessageComplete(messageID, content string) Event {
	return Event{Type: EventMessageComplete, MessageID: messageID, Content: content}
}

func MessageError(messageID, errMsg string) Event {
	return Event{Type: EventMessageError, MessageID: messageID, Error: errMsg}
}

// Sink delivers events to a transport. Implementations must be safe for
// concurrent use: the heartbeat and the pipeline both write to the sink.
type Sink interface {
	Send(ctx context.Context, event Event) error
	// KeepAlive emits a no-op liveness signal so long-running stages do not
	// look stalled to the transport.
	KeepAlive(ctx context.Context) error
}

// SinkFunc adapts a function to the Sink interface with a no-op keep-alive.
type SinkFunc func(ctx context.Context, event Event) error

func (f SinkFunc) Send(ctx context.Context, event Event) error { return f(ctx, event) }

func (f SinkFunc) KeepAlive(ctx context.Context) error { return nil }
