// Package ui is the interactive console: an editor for plan fragments that
// runs each one as a transaction against a database.Database and shows the
// result table, the engine counters and an outline of the plan.
package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"sitekernel/pkg/database"
)

const (
	editorHeight   = 8
	minColumnWidth = 8
	maxColumnWidth = 32
)

// Model is the console state.
type Model struct {
	db     *database.Database
	keys   keyMap
	theme  theme
	plans  *PlanHighlighter
	editor textarea.Model
	grid   table.Model
	spin   spinner.Model
	help   help.Model

	width, height int
	running       bool
	showHelp      bool
	showOutline   bool

	last    database.QueryResult
	lastErr error
	elapsed time.Duration
	outline string

	history []string
	cursor  int // index into history while recalling; len(history) when not
}

func NewModel(db *database.Database) Model {
	th := newTheme()

	ed := textarea.New()
	ed.Placeholder = `{"nodes":[{"id":1,"type":"SEQSCAN","table":"WAREHOUSE"}]}` + "\n" + paramsPrefix + " INTEGER 1"
	ed.CharLimit = 20000
	ed.ShowLineNumbers = true
	ed.SetHeight(editorHeight)
	ed.FocusedStyle.Placeholder = th.muted
	ed.FocusedStyle.LineNumber = th.muted
	ed.Focus()

	grid := table.New(table.WithFocused(false), table.WithHeight(10))
	styles := table.DefaultStyles()
	styles.Header = th.tableHead
	styles.Selected = th.tableSel
	grid.SetStyles(styles)

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = th.label

	return Model{
		db:          db,
		keys:        defaultKeyMap(),
		theme:       th,
		plans:       NewPlanHighlighter(),
		editor:      ed,
		grid:        grid,
		spin:        sp,
		help:        help.New(),
		showOutline: true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, textarea.Blink)
}

// resultMsg carries the outcome of one command back to Update.
type resultMsg struct {
	input   string
	result  database.QueryResult
	err     error
	elapsed time.Duration
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case resultMsg:
		m.finish(msg)
		return m, nil

	case tea.KeyMsg:
		if m.running {
			return m, nil
		}
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	cmds = append(cmds, cmd)
	m.grid, cmd = m.grid.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// handleKey applies console key bindings. It reports false for keys that
// belong to the editor.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit, true
	case key.Matches(msg, m.keys.Run):
		input := m.editor.Value()
		if strings.TrimSpace(input) == "" {
			return nil, true
		}
		return m.start(m.runFragment(input)), true
	case key.Matches(msg, m.keys.Tables):
		return m.start(m.runFragment("SHOW TABLES")), true
	case key.Matches(msg, m.keys.Stats):
		return m.start(m.engineStats()), true
	case key.Matches(msg, m.keys.Clear):
		m.editor.Reset()
		m.last, m.lastErr, m.outline = database.QueryResult{}, nil, ""
		return nil, true
	case key.Matches(msg, m.keys.Prev):
		m.recall(-1)
		return nil, true
	case key.Matches(msg, m.keys.Next):
		m.recall(+1)
		return nil, true
	case key.Matches(msg, m.keys.Outline):
		m.showOutline = !m.showOutline
		return nil, true
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return nil, true
	}
	return nil, false
}

func (m *Model) start(cmd tea.Cmd) tea.Cmd {
	m.running = true
	return tea.Batch(cmd, m.spin.Tick)
}

func (m *Model) finish(msg resultMsg) {
	m.running = false
	m.last, m.lastErr, m.elapsed = msg.result, msg.err, msg.elapsed
	if msg.err != nil {
		return
	}

	m.outline = ""
	if msg.result.FragmentID != 0 {
		m.remember(msg.input)
		if text, _, err := splitInput(msg.input); err == nil {
			m.outline = m.plans.Highlight(text)
		}
	}
	m.fillGrid()
}

// remember appends input to the history unless it repeats the newest entry.
func (m *Model) remember(input string) {
	if n := len(m.history); n == 0 || m.history[n-1] != input {
		m.history = append(m.history, input)
	}
	m.cursor = len(m.history)
}

// recall moves through the history and loads the entry into the editor.
func (m *Model) recall(step int) {
	next := m.cursor + step
	if next < 0 || next > len(m.history) {
		return
	}
	m.cursor = next
	if next == len(m.history) {
		m.editor.Reset()
		return
	}
	m.editor.SetValue(m.history[next])
}

func (m *Model) fillGrid() {
	cols := make([]table.Column, len(m.last.Columns))
	for i, name := range m.last.Columns {
		cols[i] = table.Column{Title: name, Width: m.columnWidth(i)}
	}
	rows := make([]table.Row, len(m.last.Rows))
	for i, r := range m.last.Rows {
		rows[i] = table.Row(r)
	}
	// Rows must be cleared before columns shrink or the table indexes past them.
	m.grid.SetRows(nil)
	m.grid.SetColumns(cols)
	m.grid.SetRows(rows)
	if len(rows) > 0 {
		m.grid.Focus()
	}
}

func (m *Model) columnWidth(i int) int {
	w := len(m.last.Columns[i])
	for _, r := range m.last.Rows {
		if i < len(r) && len(r[i]) > w {
			w = len(r[i])
		}
	}
	return min(max(w+2, minColumnWidth), maxColumnWidth)
}

func (m *Model) resize() {
	m.editor.SetWidth(max(m.width-6, 20))
	m.grid.SetHeight(max(m.height-editorHeight-12, 3))
}

func (m Model) runFragment(input string) tea.Cmd {
	db := m.db
	return func() tea.Msg {
		start := time.Now()
		text, args, err := splitInput(input)
		if err != nil {
			return resultMsg{input: input, err: err}
		}
		res, err := db.ExecuteQuery(text, args...)
		return resultMsg{input: input, result: res, err: err, elapsed: time.Since(start)}
	}
}

// engineStats renders the database counters and every engine counter as a
// two-column result.
func (m Model) engineStats() tea.Cmd {
	db := m.db
	return func() tea.Msg {
		info := db.GetStatistics()
		rows := [][]string{
			{"database", info.Name},
			{"tables", fmt.Sprint(info.TableCount)},
			{"transactions", fmt.Sprint(info.TransactionsCount)},
			{"fragments_run", fmt.Sprint(info.QueriesExecuted)},
			{"errors", fmt.Sprint(info.ErrorCount)},
			{"rolled_back", fmt.Sprint(info.RolledBack)},
			{"cached_fragments", fmt.Sprint(info.CachedFragments)},
		}
		names := make([]string, 0, len(info.Engine))
		for name := range info.Engine {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			rows = append(rows, []string{name, fmt.Sprintf("%g", info.Engine[name])})
		}
		return resultMsg{
			input: "STATS",
			result: database.QueryResult{
				Success: true,
				Columns: []string{"counter", "value"},
				Rows:    rows,
				Message: "engine statistics",
			},
		}
	}
}
