package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/theirongolddev/budgetbox/internal/cli"
	"github.com/theirongolddev/budgetbox/internal/model"
	"github.com/theirongolddev/budgetbox/internal/tui"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	flagLoginEmail    string
	flagLoginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the remote store and pull this month's budget",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and reset the local budget",
	RunE:  runLogout,
}

func init() {
	loginCmd.Flags().StringVarP(&flagLoginEmail, "email", "e", "", "Account email")
	loginCmd.Flags().StringVarP(&flagLoginPassword, "password", "p", "", "Account password (prompted when omitted)")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

func runLogin(_ *cobra.Command, _ []string) error {
	email, password := strings.TrimSpace(flagLoginEmail), flagLoginPassword
	if email == "" || password == "" {
		if !isatty.IsTerminal(os.Stdin.Fd()) {
			return errors.New("--email and --password are required when stdin is not a terminal")
		}
		if err := tui.NewLoginForm(&email, &password).Run(); err != nil {
			return fmt.Errorf("login form: %w", err)
		}
		email = strings.TrimSpace(email)
	}

	ctx := context.Background()
	e, err := openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer e.close()

	progress("Signing in to %s...", e.client.BaseURL())
	st, err := e.sync.Login(ctx, email, password)
	if err != nil {
		return err
	}

	if !st.Session.IsAuthenticated() {
		return model.ErrAuthentication
	}
	fmt.Printf("  Signed in as %s\n", st.Session.User.Email)
	if st.Err != nil {
		fmt.Printf("  Could not pull the latest budget: %s\n", cli.FriendlyError(st.Err))
		return nil
	}
	fmt.Printf("  Budget for %s: %s\n", cli.FormatMonth(st.Budget.Month),
		cli.FormatStatus(st.SyncStatus(), st.HasUnsyncedChanges))
	return nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	e, err := openEngine(context.Background(), false)
	if err != nil {
		return err
	}
	defer e.close()

	before := e.store.Snapshot()
	e.sync.Logout()
	if before.HasUnsyncedChanges {
		fmt.Println("  Signed out. Unsynced edits were discarded.")
		return nil
	}
	fmt.Println("  Signed out.")
	return nil
}
