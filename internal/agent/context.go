package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/askflow-ai/askflow/internal/store"
	"github.com/askflow-ai/askflow/internal/tools"
)

const (
	contentPrefixLen = 200
	toolLineLen      = 120
)

// BuildHistoryContext renders recent completed messages, oldest first, into
// a grounding string for the planner. Prior tool calls are compressed to one
// line each. This context augments catalog lookups; it is never the sole
// decision input.
func BuildHistoryContext(messages []store.Message) string {
	if len(messages) == 0 {
		return ""
	}

	var b strings.Builder
	for _, m := range messages {
		role := "User"
		if m.Role == "ai" {
			role = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, tools.Truncate(strings.TrimSpace(m.Content), contentPrefixLen))

		if m.Metadata == "" {
			continue
		}
		var meta RunMetadata
		if err := json.Unmarshal([]byte(m.Metadata), &meta); err != nil {
			continue
		}
		for _, tc := range meta.ToolCalls {
			line := fmt.Sprintf("%s(%s) -> %s", tc.Name, compactJSON(tc.Args), tc.Result)
			fmt.Fprintf(&b, "  - %s\n", tools.Truncate(line, toolLineLen))
		}
	}
	return strings.TrimSpace(b.String())
}

func compactJSON(s string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		return s
	}
	return buf.String()
}
