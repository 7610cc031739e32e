package cmd

import (
	"fmt"
	"net/url"

	"github.com/theirongolddev/budgetbox/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	RunE:  runConfigInit,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Printf("  Config file: %s\n", config.Path())
	if config.Exists(config.Path()) {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    Data directory: %s\n", cfg.DataDir())
	fmt.Printf("    Local database: %s\n", cfg.StatePath())
	fmt.Println()

	fmt.Println("  [Remote]")
	fmt.Printf("    Base URL: %s\n", cfg.Remote.BaseURL)
	fmt.Printf("    Timeout:  %s\n", cfg.Timeout())
	fmt.Println()

	fmt.Println("  [Sync]")
	fmt.Printf("    Edit debounce:  %s\n", cfg.Debounce())
	fmt.Printf("    Snapshot delay: %s\n", cfg.PersistDelay())
	fmt.Printf("    Probe interval: %s\n", cfg.ProbeInterval())
	fmt.Println()

	fmt.Println("  [Display]")
	fmt.Printf("    Currency: %s\n", cfg.Display.Currency)
	fmt.Printf("    Theme:    %s\n", cfg.Display.Theme)
	fmt.Println()

	fmt.Println("  [Server]")
	fmt.Printf("    Address:    %s\n", cfg.Server.Addr)
	fmt.Printf("    Driver:     %s\n", cfg.Server.Driver)
	fmt.Printf("    Database:   %s\n", maskDSN(cfg.ServerDSN()))
	if cfg.Server.JWTSecret != "" {
		fmt.Printf("    JWT secret: %s\n", maskSecret(cfg.Server.JWTSecret))
	} else {
		fmt.Println("    JWT secret: not configured (random per run)")
	}
	fmt.Printf("    Seed demo:  %v\n", cfg.Server.SeedDemo)
	fmt.Println()

	fmt.Println("  Run `budgetbox config init` to write a config file.")
	return nil
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	path := config.Path()
	if config.Exists(path) {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := config.Save(config.DefaultConfig(), path); err != nil {
		return err
	}
	fmt.Printf("  Wrote %s\n", path)
	return nil
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}

// maskDSN hides credentials in a postgres URL.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "****")
	}
	return u.String()
}
