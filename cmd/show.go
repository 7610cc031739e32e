package cmd

import (
	"context"
	"fmt"

	"github.com/theirongolddev/budgetbox/internal/cli"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the budget, analytics and insights",
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(_ *cobra.Command, _ []string) error {
	e, err := openEngine(context.Background(), false)
	if err != nil {
		return err
	}
	defer e.close()

	fmt.Print(cli.RenderReport(e.report(e.store.Snapshot())))
	return nil
}
