package console

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/fatih/color"

	"webmcp-inspector/internal/domain/entity"
)

// Printer renders catalog and call output for a terminal.
type Printer struct {
	out io.Writer
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

func (p *Printer) ShowTargets(targets []entity.TargetSummary) {
	header := color.New(color.FgCyan, color.Bold)
	header.Fprintf(p.out, "━━━ %d tab(s) ━━━\n", len(targets))

	dim := color.New(color.Faint)
	for _, t := range targets {
		fmt.Fprintf(p.out, "%s  %s\n", t.ID, truncate(t.Title, 60))
		dim.Fprintf(p.out, "   %s (%d tools)\n", t.URL, t.ToolCount)
	}
}

func (p *Printer) ShowTools(tools []entity.Tool) {
	if len(tools) == 0 {
		color.New(color.Faint).Fprintln(p.out, "No tools exposed")
		return
	}

	name := color.New(color.FgYellow, color.Bold)
	dim := color.New(color.Faint)
	for _, t := range tools {
		name.Fprintf(p.out, "🔧 %s\n", t.Name)
		if t.Description != "" {
			fmt.Fprintf(p.out, "   %s\n", truncate(t.Description, 120))
		}
		if params := schemaSummary(t.InputSchema); params != "" {
			dim.Fprintf(p.out, "   params: %s\n", params)
		}
	}
}

func (p *Printer) ShowToolsChanged(tools []entity.Tool) {
	color.New(color.FgBlue).Fprintf(p.out, "\n↻ Tools changed: %s\n", strings.Join(entity.ToolNames(tools), ", "))
}

func (p *Printer) ShowToolStart(name, arguments string) {
	color.New(color.FgYellow, color.Bold).Fprintf(p.out, "🔧 %s\n", name)
	color.New(color.Faint).Fprintf(p.out, "   %s\n", truncate(arguments, 200))
}

func (p *Printer) ShowToolResult(result *string, err error) {
	if err != nil {
		color.New(color.FgRed).Fprint(p.out, "❌ Error: ")
		fmt.Fprintln(p.out, err.Error())
		return
	}
	if result == nil {
		color.New(color.FgGreen).Fprintln(p.out, "✓ (no result)")
		return
	}
	color.New(color.FgGreen).Fprint(p.out, "✓ ")
	fmt.Fprintln(p.out, *result)
}

// schemaSummary lists the top-level properties of a JSON schema, required ones marked with *.
func schemaSummary(schema string) string {
	var s struct {
		Properties map[string]json.RawMessage `json:"properties"`
		Required   []string                   `json:"required"`
	}
	if err := json.Unmarshal([]byte(schema), &s); err != nil || len(s.Properties) == 0 {
		return ""
	}

	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}

	names := make([]string, 0, len(s.Properties))
	for n := range s.Properties {
		if required[n] {
			n += "*"
		}
		names = append(names, n)
	}
	slices.Sort(names)
	return strings.Join(names, ", ")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
