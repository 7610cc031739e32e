// Package cmd implements the budgetbox CLI commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/theirongolddev/budgetbox/internal/cli"
	"github.com/theirongolddev/budgetbox/internal/config"
	"github.com/theirongolddev/budgetbox/internal/connectivity"
	"github.com/theirongolddev/budgetbox/internal/mutation"
	"github.com/theirongolddev/budgetbox/internal/remote"
	"github.com/theirongolddev/budgetbox/internal/state"
	"github.com/theirongolddev/budgetbox/internal/store"
	"github.com/theirongolddev/budgetbox/internal/syncer"

	"github.com/spf13/cobra"
)

var (
	flagDataDir string
	flagAPIURL  string
	flagQuiet   bool
	flagVerbose bool
	flagOffline bool
)

var rootCmd = &cobra.Command{
	Use:           "budgetbox",
	Short:         "Local-first monthly budget",
	Long:          "Track a monthly budget offline and sync it with a remote store when connected.",
	RunE:          runShow,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "  %s\n", cli.FriendlyError(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagDataDir, "data-dir", "d", "", "Local data directory (default $XDG_DATA_HOME/budgetbox)")
	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "Remote store base URL")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging on stderr")
	rootCmd.PersistentFlags().BoolVar(&flagOffline, "offline", false, "Force the connectivity signal offline")
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if flagDataDir != "" {
		cfg.General.DataDir = flagDataDir
	}
	if flagAPIURL != "" {
		cfg.Remote.BaseURL = flagAPIURL
	}
	return cfg, nil
}

func progress(format string, args ...any) {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  "+format+"\n", args...)
	}
}

// engine is the wired client: durable store, state, connectivity, edits and
// sync, shared by every command that touches the budget.
type engine struct {
	cfg      config.Config
	log      *slog.Logger
	db       *store.DB
	store    *state.Store
	monitor  *connectivity.Monitor
	client   *remote.Client
	pipeline *mutation.Pipeline
	sync     *syncer.Coordinator

	stopWatch func()
}

// openEngine builds the engine and hydrates it from disk. With probe set the
// remote store is checked once so the connectivity signal is current before
// any edit or sync.
func openEngine(ctx context.Context, probe bool) (*engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := newLogger()

	e := &engine{cfg: cfg, log: log}

	var (
		persister state.Persister
		autosaver mutation.Autosaver
	)
	db, err := store.Open(cfg.StatePath())
	if err != nil {
		// Keep working in memory; nothing will survive this run.
		log.Warn("local storage unavailable", "path", cfg.StatePath(), "err", err)
	} else {
		e.db = db
		persister, autosaver = db, db
	}

	e.store = state.New(state.Options{
		Persister:    persister,
		PersistDelay: cfg.PersistDelay(),
		Logger:       log,
	})
	e.client = remote.NewClient(cfg.Remote.BaseURL, cfg.Timeout())
	e.monitor = connectivity.New(connectivity.Config{
		Prober: connectivity.ProberFunc(func(ctx context.Context) error {
			_, err := e.client.Health(ctx)
			return err
		}),
		Interval:      cfg.ProbeInterval(),
		Logger:        log,
		ForcedOffline: flagOffline,
	})
	e.stopWatch = e.monitor.OnChange(func(online bool) { e.store.SetOnline(online) })

	if err := e.store.Hydrate(ctx); err != nil {
		e.close()
		return nil, err
	}

	e.pipeline = mutation.New(e.store, mutation.Options{
		Window:    cfg.Debounce(),
		Autosaver: autosaver,
		Signal:    e.monitor,
		Logger:    log,
	})
	e.sync = syncer.New(e.store, syncer.Options{
		Remote:  e.client,
		Signal:  e.monitor,
		Flusher: e.pipeline,
		Drafts:  e.pipeline,
		Logger:  log,
	})

	if e.sync.CheckSession(time.Now()) {
		progress("Session expired; signed out.")
	}
	if probe {
		probeCtx, cancel := context.WithTimeout(ctx, cfg.Timeout())
		e.monitor.Check(probeCtx)
		cancel()
	}
	e.store.SetOnline(e.monitor.Online())
	return e, nil
}

// close flushes edits and the snapshot, then releases the database.
func (e *engine) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if e.pipeline != nil {
		if err := e.pipeline.Close(ctx); err != nil {
			e.log.Warn("flushing edits", "err", err)
		}
	}
	if err := e.store.Close(ctx); err != nil {
		e.log.Warn("saving snapshot", "err", err)
	}
	if e.stopWatch != nil {
		e.stopWatch()
	}
	if e.db != nil {
		_ = e.db.Close()
	}
}

func (e *engine) report(st state.State) cli.Report {
	r := cli.Report{
		Currency:     e.cfg.Display.Currency,
		Budget:       st.Budget,
		Unsynced:     st.HasUnsyncedChanges,
		LastSyncTime: st.LastSyncTime,
		Now:          time.Now(),
	}
	if st.Session.User != nil {
		r.Owner = st.Session.User.Email
	}
	return r
}
