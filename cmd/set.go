package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/theirongolddev/budgetbox/internal/cli"
	"github.com/theirongolddev/budgetbox/internal/model"
	"github.com/theirongolddev/budgetbox/internal/mutation"

	"github.com/spf13/cobra"
)

var setCmd = &cobra.Command{
	Use:   "set <field> <value> [<field> <value>...]",
	Short: "Edit budget fields",
	Long: `Edit one or more budget fields. Fields: income, monthlyBills (bills), food,
transport, subscriptions (subs), miscellaneous (misc).

Values that are not numbers, or are negative, are stored as 0.`,
	Example: "  budgetbox set income 50000 food 8000",
	Args: func(_ *cobra.Command, args []string) error {
		if len(args) == 0 || len(args)%2 != 0 {
			return errors.New("expected <field> <value> pairs")
		}
		return nil
	},
	RunE: runSet,
}

func init() {
	rootCmd.AddCommand(setCmd)
}

func runSet(_ *cobra.Command, args []string) error {
	fields := make([]model.Field, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		f, err := model.ParseField(args[i])
		if err != nil {
			return err
		}
		fields = append(fields, f)
	}

	e, err := openEngine(context.Background(), true)
	if err != nil {
		return err
	}
	defer e.close()

	for i, f := range fields {
		raw := args[2*i+1]
		st, err := e.pipeline.Commit(f, raw)
		if err != nil {
			return err
		}
		v := st.Budget.Get(f)
		note := ""
		if v == 0 && mutation.Coerce(raw) == 0 && raw != "0" {
			note = cli.Muted("  (not a valid amount, stored as 0)")
		}
		fmt.Printf("  %-16s %s%s\n", f.Label(), cli.FormatMoney(e.cfg.Display.Currency, v), note)
	}

	st := e.store.Snapshot()
	fmt.Printf("  Status: %s\n", cli.FormatStatus(st.SyncStatus(), st.HasUnsyncedChanges))
	if st.Session.IsAuthenticated() && st.HasUnsyncedChanges {
		fmt.Println(cli.Muted("  Run `budgetbox push` to sync."))
	}
	return nil
}
