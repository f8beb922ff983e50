package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type namedTool struct{ name string }

func (t *namedTool) Name() string               { return t.name }
func (t *namedTool) Description() string        { return t.name }
func (t *namedTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (t *namedTool) Execute(ctx context.Context, input string) (string, error) {
	return t.name, nil
}

func TestRegistry_ListPreservesRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&namedTool{name: "charlie"})
	reg.Register(&namedTool{name: "alpha"})
	reg.Register(&namedTool{name: "bravo"})

	var names []string
	for _, tool := range reg.List() {
		names = append(names, tool.Name())
	}
	assert.Equal(t, []string{"charlie", "alpha", "bravo"}, names)
}

func TestRegistry_SubsetSkipsUnknownNames(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&namedTool{name: "alpha"})
	reg.Register(&namedTool{name: "bravo"})

	sub := reg.Subset("bravo", "missing", "alpha")
	var names []string
	for _, tool := range sub.List() {
		names = append(names, tool.Name())
	}
	assert.Equal(t, []string{"bravo", "alpha"}, names)
	assert.Nil(t, sub.Get("missing"))
}

func TestRegistry_RegisterSameNameReplacesInPlace(t *testing.T) {
	reg := NewRegistry()
	first := &namedTool{name: "alpha"}
	second := &namedTool{name: "alpha"}
	reg.Register(first)
	reg.Register(second)

	assert.Len(t, reg.List(), 1)
	assert.Same(t, second, reg.Get("alpha").(*namedTool))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 100))
	assert.Equal(t, "unbounded", Truncate("unbounded", 0))

	long := strings.Repeat("x", 500)
	out := Truncate(long, 100)
	assert.Len(t, out, 100)
	assert.True(t, strings.HasSuffix(out, "... [truncated]"))

	// Limits too small for the marker still hard-clip.
	assert.Equal(t, "abc", Truncate("abcdef", 3))
}
