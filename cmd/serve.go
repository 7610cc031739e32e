package cmd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/theirongolddev/budgetbox/internal/server"

	"github.com/spf13/cobra"
)

var (
	flagServeAddr   string
	flagServeNoSeed bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reference remote store API",
	Long: `Run the reference remote store: login, budget latest/sync and health
endpoints under /api. Uses sqlite in the data directory unless DATABASE_URL
points at postgres.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagServeAddr, "addr", "", "HTTP listen address (default from config, :5000)")
	serveCmd.Flags().BoolVar(&flagServeNoSeed, "no-seed", false, "Do not create the demo account")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger()
	if flagServeAddr != "" {
		cfg.Server.Addr = flagServeAddr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	repo, err := server.OpenRepo(ctx, cfg.Server.Driver, cfg.ServerDSN())
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	if cfg.Server.SeedDemo && !flagServeNoSeed {
		created, err := repo.SeedDemo(ctx, time.Now())
		if err != nil {
			return fmt.Errorf("seeding demo account: %w", err)
		}
		if created {
			fmt.Printf("  Demo account: %s / %s\n", server.DemoEmail, server.DemoPassword)
		}
	}

	secret := cfg.Server.JWTSecret
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			return err
		}
		log.Warn("no JWT secret configured; tokens will not survive a restart")
	}

	srv := server.New(server.Config{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log,
	}, repo, server.NewTokens(secret, 0))

	fmt.Printf("  budgetbox remote store listening on %s (%s)\n", cfg.Server.Addr, cfg.Server.Driver)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
