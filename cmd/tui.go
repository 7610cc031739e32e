package cmd

import (
	"context"
	"fmt"

	"github.com/theirongolddev/budgetbox/internal/tui"
	"github.com/theirongolddev/budgetbox/internal/tui/theme"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive budget editor",
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(_ *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e, err := openEngine(ctx, false)
	if err != nil {
		return err
	}
	defer e.close()
	theme.SetActive(e.cfg.Display.Theme)

	// Keep the connectivity signal fresh while the editor is open.
	go e.monitor.Run(ctx)

	app := tui.NewApp(tui.Options{
		Store:    e.store,
		Editor:   e.pipeline,
		Syncer:   e.sync,
		Currency: e.cfg.Display.Currency,
	})
	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
