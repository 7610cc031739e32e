// Package connectivity provides the observed online/offline signal.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the time between health probes.
const DefaultInterval = 15 * time.Second

// Prober checks whether the remote store is reachable.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// Config controls a Monitor.
type Config struct {
	Prober   Prober
	Interval time.Duration
	Logger   *slog.Logger

	// ForcedOffline pins the signal offline; probes are skipped.
	ForcedOffline bool

	// Initial is the value before the first probe.
	Initial bool
}

// Monitor holds the connectivity signal and notifies listeners on change.
type Monitor struct {
	cfg    Config
	online atomic.Bool

	mu        sync.Mutex
	nextID    int
	listeners map[int]func(bool)
}

// New returns a monitor. With ForcedOffline the signal starts and stays
// offline.
func New(cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	m := &Monitor{cfg: cfg, listeners: make(map[int]func(bool))}
	m.online.Store(cfg.Initial && !cfg.ForcedOffline)
	return m
}

// Online reports the current signal.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Set updates the signal and calls listeners if it changed.
func (m *Monitor) Set(online bool) {
	if m.cfg.ForcedOffline {
		online = false
	}
	if m.online.Swap(online) == online {
		return
	}
	m.cfg.Logger.Info("connectivity changed", "online", online)

	m.mu.Lock()
	listeners := make([]func(bool), 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l(online)
	}
}

// OnChange registers fn for change events and returns a function removing it.
func (m *Monitor) OnChange(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Check probes once and updates the signal.
func (m *Monitor) Check(ctx context.Context) bool {
	if m.cfg.ForcedOffline || m.cfg.Prober == nil {
		return m.Online()
	}
	err := m.cfg.Prober.Probe(ctx)
	if err != nil {
		m.cfg.Logger.Debug("health probe failed", "err", err)
	}
	m.Set(err == nil)
	return err == nil
}

// Run probes immediately and then on every interval until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
