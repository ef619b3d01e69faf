package console

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"webmcp-inspector/internal/domain/entity"
)

func init() {
	color.NoColor = true
}

func TestShowTools(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).ShowTools([]entity.Tool{
		{
			Name:        "search",
			Description: "Search the catalog",
			InputSchema: `{"type":"object","properties":{"q":{"type":"string"},"limit":{"type":"number"}},"required":["q"]}`,
		},
		{Name: "reset"},
	})

	out := buf.String()
	assert.Contains(t, out, "🔧 search\n")
	assert.Contains(t, out, "   Search the catalog\n")
	assert.Contains(t, out, "   params: limit, q*\n")
	assert.Contains(t, out, "🔧 reset\n")
}

func TestShowToolsEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).ShowTools(nil)
	assert.Equal(t, "No tools exposed\n", buf.String())
}

func TestShowTargets(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).ShowTargets([]entity.TargetSummary{
		{ID: "T1", URL: "https://shop.test", Title: "Shop", ToolCount: 2},
	})

	out := buf.String()
	assert.Contains(t, out, "1 tab(s)")
	assert.Contains(t, out, "T1  Shop\n")
	assert.Contains(t, out, "https://shop.test (2 tools)")
}

func TestShowToolResult(t *testing.T) {
	result := `{"ok":true}`
	tests := []struct {
		name   string
		result *string
		err    error
		want   string
	}{
		{name: "value", result: &result, want: "✓ {\"ok\":true}\n"},
		{name: "no result", want: "✓ (no result)\n"},
		{name: "error", err: errors.New("boom"), want: "❌ Error: boom\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewPrinter(&buf).ShowToolResult(tt.result, tt.err)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestSchemaSummary(t *testing.T) {
	assert.Equal(t, "", schemaSummary(""))
	assert.Equal(t, "", schemaSummary(`{"type":"object"}`))
	assert.Equal(t, "a*, b", schemaSummary(`{"properties":{"b":{},"a":{}},"required":["a"]}`))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
}
