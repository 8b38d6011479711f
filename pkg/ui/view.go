package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	parts := []string{m.header(), m.editorPane()}

	switch {
	case m.running:
		parts = append(parts, m.theme.busy.Render(m.spin.View()+" running fragment..."))
	case m.lastErr != nil:
		parts = append(parts, m.errorPane())
	case len(m.last.Columns) > 0:
		parts = append(parts, m.resultPane())
	case m.last.Message != "":
		parts = append(parts, m.theme.ok.Render("✓")+" "+m.theme.okText.Render(m.last.Message))
	}

	parts = append(parts, m.statusBar())
	if m.showHelp {
		parts = append(parts, m.theme.helpBox.Render(m.help.FullHelpView(m.keys.FullHelp())))
	}
	return m.theme.app.Render(strings.Join(parts, "\n"))
}

func (m Model) header() string {
	info := m.db.GetStatistics()
	line := lipgloss.JoinHorizontal(lipgloss.Center,
		m.theme.title.Render("sitekernel console"),
		"  ",
		m.theme.badge.Render(info.Name),
		"  ",
		m.theme.counters.Render(fmt.Sprintf("tables %d · cached %d · run %d · rolled back %d",
			info.TableCount, info.CachedFragments, info.QueriesExecuted, info.RolledBack)),
	)
	return line + "\n" + m.theme.rule.Render(strings.Repeat("─", max(m.width-4, 0)))
}

func (m Model) editorPane() string {
	label := m.theme.label.Render("Plan fragment")
	if n := len(m.history); n > 0 {
		label += m.theme.muted.Render(fmt.Sprintf("  (%d in history)", n))
	}
	return label + "\n" + m.theme.editor.Render(m.editor.View())
}

func (m Model) errorPane() string {
	body := m.theme.fail.Render("ERROR") + " " + m.theme.failText.Render(m.lastErr.Error())
	return m.theme.failBox.Render(body)
}

func (m Model) resultPane() string {
	head := m.theme.okText.Render(fmt.Sprintf("✓ %s (%v)", m.last.Message, m.elapsed))
	if m.last.FragmentID != 0 {
		cache := m.theme.miss.Render("cache miss")
		if m.last.CacheHit {
			cache = m.theme.hit.Render("cache hit")
		}
		head += "  " + m.theme.muted.Render(fmt.Sprintf("fragment %d", m.last.FragmentID)) + " " + cache
	}
	if m.showOutline && m.outline != "" {
		head += "\n" + m.outline
	}
	return head + "\n" + m.grid.View()
}

func (m Model) statusBar() string {
	text := m.theme.statusOn.Render("● engine ready")
	if m.elapsed > 0 {
		text += m.theme.muted.Render(fmt.Sprintf(" | last run %v", m.elapsed))
	}
	text += m.theme.muted.Render(" | " + m.help.ShortHelpView(m.keys.ShortHelp()))
	return m.theme.status.Width(max(m.width-4, 0)).Render(text)
}
