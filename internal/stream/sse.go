package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// SSEWriter frames events as server-sent events: one UTF-8 text frame
// "data: <json>\n\n" per event, with comment frames as keep-alives. This is
// the wire contract regardless of the host transport.
type SSEWriter struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	closed  bool
}

// NewSSEWriter prepares w for event streaming. When w is an
// http.ResponseWriter the SSE headers are set and frames are flushed eagerly.
func NewSSEWriter(w io.Writer) *SSEWriter {
	sw := &SSEWriter{w: w}
	if rw, ok := w.(http.ResponseWriter); ok {
		rw.Header().Set("Content-Type", "text/event-stream")
		rw.Header().Set("Cache-Control", "no-cache")
		rw.Header().Set("Connection", "keep-alive")
		if f, ok := w.(http.Flusher); ok {
			sw.flusher = f
		}
	} else if f, ok := w.(http.Flusher); ok {
		sw.flusher = f
	}
	return sw
}

func (s *SSEWriter) Send(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.writeFrame(ctx, fmt.Sprintf("data: %s\n\n", data))
}

// KeepAlive writes a comment frame that clients ignore.
func (s *SSEWriter) KeepAlive(ctx context.Context) error {
	return s.writeFrame(ctx, ": keep-alive\n\n")
}

// Close marks the writer as closed; subsequent sends fail.
func (s *SSEWriter) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *SSEWriter) writeFrame(ctx context.Context, frame string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("stream closed")
	}
	if _, err := io.WriteString(s.w, frame); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
