package observability

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeStage      EventType = "stage"
	EventTypeToolCall   EventType = "tool_call"
	EventTypeToolResult EventType = "tool_result"
	EventTypeClaim      EventType = "claim"
	EventTypeCost       EventType = "cost"
	EventTypeRelevance  EventType = "relevance"
	EventTypeHeartbeat  EventType = "heartbeat"
	EventTypeLLM        EventType = "llm"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	ChatID    string    `json:"chat_id,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging. LLM events are additionally appended to
// a jsonl transcript file when LLMLogPath is set.
type Logger struct {
	LLMLogPath string
	MaxSize    int64
}

func NewLogger() *Logger {
	return &Logger{
		LLMLogPath: filepath.Join("logs", "llm.jsonl"),
		MaxSize:    10 * 1024 * 1024, // 10MB
	}
}

// Log emits a structured JSON event to stdout.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		fmt.Printf("{\"error\": \"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Println(string(data))

	if evt.Type == EventTypeLLM {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if l.LLMLogPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(l.LLMLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.LLMLogPath)
	if err == nil && info.Size() > l.MaxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.LLMLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.LLMLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.LLMLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogStage(chatID, messageID, stage string, revisions int) {
	l.Log(Event{
		Type:      EventTypeStage,
		ChatID:    chatID,
		MessageID: messageID,
		Data: map[string]any{
			"stage":     stage,
			"revisions": revisions,
		},
	})
}

func (l *Logger) LogToolCall(chatID, messageID, tool, args string) {
	l.Log(Event{
		Type:      EventTypeToolCall,
		ChatID:    chatID,
		MessageID: messageID,
		Data: map[string]string{
			"tool": tool,
			"args": args,
		},
	})
}

func (l *Logger) LogToolResult(chatID, messageID, tool, result string) {
	l.Log(Event{
		Type:      EventTypeToolResult,
		ChatID:    chatID,
		MessageID: messageID,
		Data: map[string]string{
			"tool":   tool,
			"result": result,
		},
	})
}

func (l *Logger) LogClaim(chatID, messageID string, won bool) {
	l.Log(Event{
		Type:      EventTypeClaim,
		ChatID:    chatID,
		MessageID: messageID,
		Data:      map[string]bool{"claimed": won},
	})
}

func (l *Logger) LogCost(chatID, messageID string, promptTokens, completionTokens int, model string) {
	l.Log(Event{
		Type:      EventTypeCost,
		ChatID:    chatID,
		MessageID: messageID,
		Data: map[string]any{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
			"model":             model,
		},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}

func (l *Logger) LogLLM(chatID, messageID string, stage string, response string, toolCalls any) {
	l.Log(Event{
		Type:      EventTypeLLM,
		ChatID:    chatID,
		MessageID: messageID,
		Data: map[string]any{
			"stage":      stage,
			"response":   response,
			"tool_calls": toolCalls,
		},
	})
}
