package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/theirongolddev/budgetbox/internal/cli"

	"github.com/spf13/cobra"
)

var (
	flagExportFormat string
	flagExportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the budget with analytics and insights as JSON or YAML",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&flagExportFormat, "format", "f", "json", "Output format: json or yaml")
	exportCmd.Flags().StringVarP(&flagExportOutput, "output", "o", "", "Write to file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}

func runExport(_ *cobra.Command, _ []string) error {
	e, err := openEngine(context.Background(), false)
	if err != nil {
		return err
	}
	defer e.close()

	st := e.store.Snapshot()
	doc := cli.NewExport(st.Budget, st.HasUnsyncedChanges, time.Now())

	var w io.Writer = os.Stdout
	if flagExportOutput != "" {
		f, err := os.Create(flagExportOutput) //nolint:gosec // user-chosen output path
		if err != nil {
			return fmt.Errorf("creating %s: %w", flagExportOutput, err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	if err := cli.WriteExport(w, doc, flagExportFormat); err != nil {
		return err
	}
	if flagExportOutput != "" {
		progress("Wrote %s", flagExportOutput)
	}
	return nil
}
