package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/theirongolddev/budgetbox/internal/cli"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status, connectivity and local storage",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	e, err := openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer e.close()

	st := e.store.Snapshot()
	now := time.Now()

	syncStatus := lipgloss.NewStyle().Foreground(cli.StatusColor(st.SyncStatus())).
		Render(cli.FormatStatus(st.SyncStatus(), st.HasUnsyncedChanges))
	network := "online"
	if !st.Online {
		network = "offline"
	}
	account := "signed out"
	if st.Session.IsAuthenticated() {
		account = st.Session.User.Email
	}
	lastSync := "never"
	if st.LastSyncTime != nil {
		lastSync = cli.FormatAgo(*st.LastSyncTime, now)
	}

	rows := [][]string{
		{"Month", cli.FormatMonth(st.Budget.Month)},
		{"Sync status", syncStatus},
		{"Unsynced edits", fmt.Sprintf("%v", st.HasUnsyncedChanges)},
		{"Last sync", lastSync},
		{"Last edit", cli.FormatAgo(st.Budget.LastUpdated, now)},
		{"Account", account},
		{"---"},
		{"Remote store", e.client.BaseURL()},
		{"Connectivity", network},
		{"Local database", e.cfg.StatePath()},
	}

	if e.db != nil {
		keys, err := e.db.Keys(ctx)
		if err != nil {
			e.log.Warn("listing stored keys", "err", err)
		}
		names := make([]string, 0, len(keys))
		for k := range keys {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			rows = append(rows, []string{"  " + k, "written " + cli.FormatAgo(keys[k], now)})
		}
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Title: "Status",
		Rows:  rows,
	}))
	return nil
}
