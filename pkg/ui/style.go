package ui

import "github.com/charmbracelet/lipgloss"

// palette
var (
	violet = lipgloss.Color("#7C3AED")
	cyan   = lipgloss.Color("#06B6D4")
	green  = lipgloss.Color("#10B981")
	amber  = lipgloss.Color("#F59E0B")
	red    = lipgloss.Color("#EF4444")

	ink     = lipgloss.Color("#0F172A")
	slate   = lipgloss.Color("#1E293B")
	rule    = lipgloss.Color("#334155")
	paper   = lipgloss.Color("#F8FAFC")
	soft    = lipgloss.Color("#CBD5E1")
	dimText = lipgloss.Color("#94A3B8")
)

// theme groups every style the console renders with.
type theme struct {
	app       lipgloss.Style
	title     lipgloss.Style
	badge     lipgloss.Style
	counters  lipgloss.Style
	rule      lipgloss.Style
	label     lipgloss.Style
	editor    lipgloss.Style
	ok        lipgloss.Style
	okText    lipgloss.Style
	fail      lipgloss.Style
	failText  lipgloss.Style
	failBox   lipgloss.Style
	hit       lipgloss.Style
	miss      lipgloss.Style
	status    lipgloss.Style
	statusOn  lipgloss.Style
	muted     lipgloss.Style
	helpBox   lipgloss.Style
	busy      lipgloss.Style
	tableHead lipgloss.Style
	tableSel  lipgloss.Style
}

func newTheme() theme {
	pill := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	return theme{
		app:      lipgloss.NewStyle().Background(ink).Foreground(paper).Padding(1, 2),
		title:    pill.Copy().Background(violet).Foreground(paper).Padding(0, 2),
		badge:    pill.Copy().Background(cyan).Foreground(ink),
		counters: lipgloss.NewStyle().Foreground(soft),
		rule:     lipgloss.NewStyle().Foreground(rule),
		label:    lipgloss.NewStyle().Foreground(violet).Bold(true),
		editor: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(violet).
			Padding(0, 1),
		ok:       pill.Copy().Background(green).Foreground(ink),
		okText:   lipgloss.NewStyle().Foreground(green).Bold(true),
		fail:     pill.Copy().Background(red).Foreground(paper),
		failText: lipgloss.NewStyle().Foreground(red),
		failBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(red).
			Padding(0, 1),
		hit:      pill.Copy().Background(green).Foreground(ink),
		miss:     pill.Copy().Background(amber).Foreground(ink),
		status:   lipgloss.NewStyle().Background(slate).Foreground(soft).Padding(0, 1),
		statusOn: lipgloss.NewStyle().Foreground(green),
		muted:    lipgloss.NewStyle().Foreground(dimText),
		helpBox: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(violet).
			Background(slate).
			Padding(1, 2),
		busy: lipgloss.NewStyle().Foreground(violet).Padding(1, 0),
		tableHead: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(violet).
			BorderBottom(true).
			Bold(true).
			Foreground(violet),
		tableSel: lipgloss.NewStyle().Foreground(ink).Background(cyan),
	}
}
