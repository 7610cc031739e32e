package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/theirongolddev/budgetbox/internal/cli"
	"github.com/theirongolddev/budgetbox/internal/config"
	"github.com/theirongolddev/budgetbox/internal/daemon"
	"github.com/theirongolddev/budgetbox/internal/model"

	"github.com/spf13/cobra"
)

var (
	flagAgentAddr     string
	flagAgentInterval time.Duration
	flagAgentEvents   int
	flagAgentDetach   bool
	flagAgentChild    bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run a background agent that tracks connectivity and serves budget status over HTTP/SSE",
	RunE:  runDaemon,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running agent and its view of the budget",
	RunE:  runDaemonStatus,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running agent",
	RunE:  runDaemonStop,
}

func init() {
	daemonCmd.Flags().StringVar(&flagAgentAddr, "addr", "127.0.0.1:8788", "HTTP listen address")
	daemonCmd.Flags().DurationVar(&flagAgentInterval, "interval", 30*time.Second, "Session check interval")
	daemonCmd.Flags().IntVar(&flagAgentEvents, "events-buffer", 200, "Max in-memory events retained")
	daemonCmd.Flags().BoolVar(&flagAgentDetach, "detach", false, "Run the agent as a background process")
	daemonCmd.Flags().BoolVar(&flagAgentChild, "child", false, "Internal: mark detached child process")
	_ = daemonCmd.Flags().MarkHidden("child")

	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(_ *cobra.Command, _ []string) error {
	if flagAgentDetach && flagAgentChild {
		return errors.New("--detach cannot be combined with --child")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	files := agentFilesFor(cfg)
	if pid, ok := files.running(); ok {
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}
	if flagAgentDetach {
		return detachAgent(files)
	}
	return serveAgent(files)
}

// detachAgent re-executes the current command line as a background child
// whose output goes to the agent log.
func detachAgent(files agentFiles) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(files.log), 0o750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	//nolint:gosec // log path comes from the user's data dir
	logf, err := os.OpenFile(files.log, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open agent log: %w", err)
	}
	defer func() { _ = logf.Close() }()

	child := exec.Command(exe, childArgs(os.Args[1:])...) //nolint:gosec // re-exec of our own invocation
	child.Stdout, child.Stderr = logf, logf
	child.Env = os.Environ()
	if err := child.Start(); err != nil {
		return fmt.Errorf("start agent: %w", err)
	}

	fmt.Printf("  Started budget agent (pid %d)\n", child.Process.Pid)
	fmt.Printf("  Status: http://%s/v1/status\n", flagAgentAddr)
	fmt.Printf("  Log:    %s\n", files.log)
	return nil
}

// childArgs drops --detach and marks the invocation as the detached child.
func childArgs(args []string) []string {
	out := slices.DeleteFunc(slices.Clone(args), func(a string) bool {
		return a == "--detach" || strings.HasPrefix(a, "--detach=")
	})
	return append(out, "--child")
}

func serveAgent(files agentFiles) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	e, err := openEngine(ctx, false)
	if err != nil {
		return err
	}
	defer e.close()

	st := e.store.Snapshot()
	info := agentInfo{
		PID:       os.Getpid(),
		Addr:      flagAgentAddr,
		StartedAt: time.Now(),
		APIURL:    e.client.BaseURL(),
		Month:     st.Budget.Month,
		Account:   accountOf(st.Session.User),
	}
	if err := files.claim(info); err != nil {
		return err
	}
	defer files.release()

	svc := daemon.New(daemon.Config{
		Store:        e.store,
		Sessions:     e.sync,
		Monitor:      e.monitor,
		Interval:     flagAgentInterval,
		Addr:         flagAgentAddr,
		EventsBuffer: flagAgentEvents,
		Logger:       e.log,
	})

	fmt.Printf("  Budget agent for %s listening on http://%s\n", cli.FormatMonth(info.Month), flagAgentAddr)
	fmt.Printf("  Probing %s every %s\n", info.APIURL, e.cfg.ProbeInterval())
	fmt.Println("  Stop with: budgetbox daemon stop")

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runDaemonStatus(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	files := agentFilesFor(cfg)
	info, err := files.load()
	if err != nil {
		fmt.Println("  Daemon: not running")
		return nil
	}
	if !processAlive(info.PID) {
		fmt.Printf("  Daemon: not running (stale state for pid %d)\n", info.PID)
		return nil
	}

	fmt.Printf("  Daemon:  pid %d, started %s\n", info.PID, cli.FormatAgo(info.StartedAt, time.Now()))
	fmt.Printf("  Address: http://%s\n", info.Addr)
	fmt.Printf("  Remote:  %s\n", info.APIURL)

	st, err := fetchAgentStatus(info.Addr)
	if err != nil {
		fmt.Printf("  API:     unreachable (%v)\n", err)
		if info.Account != "" {
			fmt.Printf("  Account: %s (at start)\n", info.Account)
		}
		return nil
	}

	sum := st.Summary
	last := "pending"
	if !st.LastCheckAt.IsZero() {
		last = st.LastCheckAt.Local().Format(time.RFC3339)
	}
	fmt.Printf("  Checked: %s (%d checks)\n", last, st.CheckCount)
	fmt.Printf("  Budget:  %s, %s\n", cli.FormatMonth(sum.Month), cli.FormatStatus(sum.SyncStatus, sum.Unsynced))
	fmt.Printf("  Online:  %v, signed in: %v\n", sum.Online, sum.SignedIn)
	fmt.Printf("  Burn:    %s (%s)\n", cli.FormatPercent(sum.BurnRate), sum.BurnLevel)
	fmt.Printf("  Events:  %d, subscribers: %d\n", st.EventCount, st.SubscriberCount)
	if st.LastError != "" {
		fmt.Printf("  Error:   %s\n", st.LastError)
	}
	return nil
}

func fetchAgentStatus(addr string) (daemon.Status, error) {
	var st daemon.Status
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + "/v1/status") //nolint:noctx // short local probe
	if err != nil {
		return st, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("malformed status: %w", err)
	}
	return st, nil
}

func runDaemonStop(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	files := agentFilesFor(cfg)
	pid, ok := files.running()
	if !ok {
		return errors.New("daemon is not running")
	}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal agent: %w", err)
	}
	if !waitExit(pid, 8*time.Second) {
		return fmt.Errorf("daemon (pid %d) did not exit in time", pid)
	}
	files.release()
	fmt.Printf("  Stopped budget agent (pid %d)\n", pid)
	return nil
}

// waitExit polls until pid is gone or timeout elapses.
func waitExit(pid int, timeout time.Duration) bool {
	tick := time.NewTicker(150 * time.Millisecond)
	defer tick.Stop()
	deadline := time.After(timeout)
	for {
		if !processAlive(pid) {
			return true
		}
		select {
		case <-tick.C:
		case <-deadline:
			return false
		}
	}
}

// agentFiles is the on-disk footprint of a running agent.
type agentFiles struct {
	state string
	log   string
}

func agentFilesFor(cfg config.Config) agentFiles {
	return agentFiles{state: cfg.AgentPath(), log: cfg.AgentLogPath()}
}

// agentInfo is written by the agent on start and read by status and stop.
type agentInfo struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
	APIURL    string    `json:"api_url"`
	Month     string    `json:"month"`
	Account   string    `json:"account,omitempty"`
}

func (f agentFiles) load() (agentInfo, error) {
	var info agentInfo
	data, err := os.ReadFile(f.state)
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("agent state %s: %w", f.state, err)
	}
	if info.PID <= 0 {
		return info, fmt.Errorf("agent state %s: invalid pid", f.state)
	}
	return info, nil
}

// running reports the live agent's pid. A state file left by a dead
// process is removed.
func (f agentFiles) running() (int, bool) {
	info, err := f.load()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			f.release()
		}
		return 0, false
	}
	if !processAlive(info.PID) {
		f.release()
		return 0, false
	}
	return info.PID, true
}

func (f agentFiles) claim(info agentInfo) error {
	if err := os.MkdirAll(filepath.Dir(f.state), 0o750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.state + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write agent state: %w", err)
	}
	return os.Rename(tmp, f.state)
}

func (f agentFiles) release() {
	_ = os.Remove(f.state)
}

func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

func accountOf(u *model.User) string {
	if u == nil {
		return ""
	}
	return u.Email
}
