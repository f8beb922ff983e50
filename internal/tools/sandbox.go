package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SandboxFile is one artifact produced by a sandbox run.
type SandboxFile struct {
	Name     string `json:"name"`
	Base64   string `json:"base64"`
	MimeType string `json:"mimeType"`
}

type sandboxResponse struct {
	Stdout          string        `json:"stdout"`
	Stderr          string        `json:"stderr"`
	ReturnCode      int           `json:"returnCode"`
	Files           []SandboxFile `json:"files"`
	ExecutionTimeMs int           `json:"executionTimeMs"`
}

// CodeTool runs Python code in the isolated sandbox service. Execution is
// time-bounded; the sandbox clamps the timeout at 60s on its side.
type CodeTool struct {
	BaseURL string
	Client  *http.Client
	Timeout time.Duration
}

func NewCodeTool(baseURL string, timeout time.Duration) *CodeTool {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CodeTool{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout + 10*time.Second},
		Timeout: timeout,
	}
}

func (t *CodeTool) Name() string {
	return "execute_code"
}

func (t *CodeTool) Description() string {
	return "Execute Python code in an isolated sandbox. Useful for statistics, post-processing of query results and chart generation. Charts saved by matplotlib are returned as inline images."
}

func (t *CodeTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{
				"type":        "string",
				"description": "The Python code to execute",
			},
		},
		"required": []string{"code"},
	}
}

func (t *CodeTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return fmt.Sprintf("Invalid input: %v", err), nil
	}
	if args.Code == "" {
		return "Error: empty code", nil
	}

	payload, err := json.Marshal(map[string]any{
		"code":    args.Code,
		"timeout": int(t.Timeout.Seconds()),
	})
	if err != nil {
		return fmt.Sprintf("Sandbox Error: %v", err), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+"/execute", bytes.NewReader(payload))
	if err != nil {
		return fmt.Sprintf("Sandbox Error: %v", err), nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Sprintf("Sandbox Error: %v", err), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("Sandbox Error: reading response: %v", err), nil
	}

	var out sandboxResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Sprintf("Sandbox Error: unexpected response: %s", Truncate(string(body), 500)), nil
	}

	var b strings.Builder
	if out.Stdout != "" {
		b.WriteString(out.Stdout)
	}
	if out.ReturnCode != 0 {
		fmt.Fprintf(&b, "\nExecution failed (exit %d): %s", out.ReturnCode, Truncate(out.Stderr, 500))
	}
	for _, f := range out.Files {
		fmt.Fprintf(&b, "\n[artifact %s] data:%s;base64,%s", f.Name, f.MimeType, f.Base64)
	}
	if b.Len() == 0 {
		return "(no output)", nil
	}
	return strings.TrimSpace(b.String()), nil
}
