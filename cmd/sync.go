package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/theirongolddev/budgetbox/internal/cli"

	"github.com/spf13/cobra"
)

var flagPullForce bool

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Send the local budget to the remote store (overwrites the remote copy)",
	RunE:  runPush,
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Replace the local budget with the remote copy",
	RunE:  runPull,
}

func init() {
	pullCmd.Flags().BoolVarP(&flagPullForce, "force", "f", false, "Pull even if it discards unsynced local edits")
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(pullCmd)
}

func runPush(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	e, err := openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer e.close()

	progress("Pushing %s...", cli.FormatMonth(e.store.Snapshot().Budget.Month))
	st, err := e.sync.Push(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("  %s pushed: %s\n", cli.FormatMonth(st.Budget.Month), cli.FormatStatus(st.SyncStatus(), st.HasUnsyncedChanges))
	return nil
}

func runPull(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	e, err := openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer e.close()

	// Pull replaces the budget wholesale; refuse to drop local edits silently.
	if e.store.Snapshot().HasUnsyncedChanges && !flagPullForce {
		return errors.New("unsynced local edits would be discarded; push first or pass --force")
	}

	progress("Pulling latest budget...")
	st, err := e.sync.Pull(ctx)
	if err != nil {
		return err
	}
	fmt.Print(cli.RenderReport(e.report(st)))
	return nil
}
