package ui

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"sitekernel/pkg/plan"
)

var exprKinds = []string{
	"CONSTANT", "PARAMETER", "COLUMN", "COMPARE", "ARITH", "AND", "OR", "NOT", "IS_NULL",
}

// PlanHighlighter renders a one-line, colored outline of a plan fragment:
// its operators in execute order and the expressions they use.
type PlanHighlighter struct {
	exprs         map[string]bool
	operatorStyle lipgloss.Style
	mutateStyle   lipgloss.Style
	exprStyle     lipgloss.Style
	tableStyle    lipgloss.Style
	numberStyle   lipgloss.Style
	arrowStyle    lipgloss.Style
}

func NewPlanHighlighter() *PlanHighlighter {
	h := &PlanHighlighter{exprs: make(map[string]bool)}
	for _, k := range exprKinds {
		h.exprs[k] = true
	}

	h.operatorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF79C6")).
		Bold(true)

	h.mutateStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFB86C")).
		Bold(true)

	h.exprStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#8BE9FD"))

	h.tableStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F1FA8C"))

	h.numberStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#BD93F9"))

	h.arrowStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6272A4"))

	return h
}

// Highlight outlines raw. Text that is not a valid fragment is returned
// unchanged.
func (h *PlanHighlighter) Highlight(raw string) string {
	p, err := plan.Parse([]byte(raw))
	if err != nil {
		return raw
	}

	parts := make([]string, 0, len(p.ExecuteOrder))
	for _, idx := range p.ExecuteOrder {
		n := p.Nodes[idx]
		style := h.operatorStyle
		if n.Kind.Mutates() {
			style = h.mutateStyle
		}
		part := style.Render(n.Kind.String())
		if n.Table != "" {
			part += " " + h.tableStyle.Render(n.Table)
		}
		if n.Limit >= 0 {
			part += " " + h.numberStyle.Render(strconv.Itoa(n.Limit))
		}
		parts = append(parts, part)
	}

	outline := strings.Join(parts, h.arrowStyle.Render(" → "))
	if exprs := h.expressionKinds(raw); len(exprs) > 0 {
		outline += h.arrowStyle.Render("  uses ") + h.exprStyle.Render(strings.Join(exprs, " "))
	}
	return outline
}

// expressionKinds lists the distinct expression types in raw, sorted.
func (h *PlanHighlighter) expressionKinds(raw string) []string {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	var walk func(v any)
	walk = func(v any) {
		switch x := v.(type) {
		case map[string]any:
			if t, ok := x["type"].(string); ok && h.exprs[t] && !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
			for _, child := range x {
				walk(child)
			}
		case []any:
			for _, child := range x {
				walk(child)
			}
		}
	}
	walk(doc)
	sort.Strings(out)
	return out
}
