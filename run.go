package main

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"sitekernel/pkg/database"
	"sitekernel/pkg/types"
	"sitekernel/pkg/ui"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
)

func openDatabase(catalogPath string) (*database.Database, error) {
	db := database.NewDatabase(cfg.Engine.Hostname, cfg.Engine)
	if catalogPath != "" {
		if err := db.LoadCatalogFile(catalogPath); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func runCmd() *cobra.Command {
	var (
		catalogPath string
		planPaths   []string
		paramList   string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute plan fragments, each as its own transaction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(planPaths) == 0 {
				return fmt.Errorf("at least one --plan is required")
			}
			args, err := ui.ParseParams(paramList)
			if err != nil {
				return err
			}
			db, err := openDatabase(catalogPath)
			if err != nil {
				return err
			}
			defer db.Close()

			for _, path := range planPaths {
				raw, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read plan %s: %w", path, err)
				}
				result, err := db.ExecuteQuery(string(raw), args...)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), render(result))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "catalog diff (JSON) to load first")
	cmd.Flags().StringArrayVar(&planPaths, "plan", nil, "plan fragment file; repeat to run several in order")
	cmd.Flags().StringVar(&paramList, "params", "", `parameters, e.g. "INTEGER 30, VARCHAR Bob, NULL"`)
	return cmd
}

func render(r database.QueryResult) string {
	if len(r.Columns) == 0 {
		return okStyle.Render("✓ " + r.Message)
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#334155"))).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == 0 {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(r.Columns...).
		Rows(r.Rows...)
	return t.Render() + "\n" + okStyle.Render(r.Message)
}

func consoleCmd() *cobra.Command {
	var catalogPath string
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Interactive plan fragment console",
		RunE: func(*cobra.Command, []string) error {
			db, err := openDatabase(catalogPath)
			if err != nil {
				return err
			}
			defer db.Close()

			p := tea.NewProgram(ui.NewModel(db), tea.WithAltScreen(), tea.WithMouseCellMotion())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("error running console: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "catalog diff (JSON) to load first")
	return cmd
}

// formatRow joins a result row for log output.
func formatRow(row []types.Value) string {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = v.String()
	}
	return strings.Join(parts, "\t")
}
