// Package daemon provides the long-running local status agent. It keeps the
// connectivity signal fresh, expires stale sessions, and exposes the budget
// state over a small loopback HTTP API.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/theirongolddev/budgetbox/internal/advisor"
	"github.com/theirongolddev/budgetbox/internal/analytics"
	"github.com/theirongolddev/budgetbox/internal/model"
	"github.com/theirongolddev/budgetbox/internal/state"
)

// SessionChecker clears an expired session. syncer.Coordinator satisfies it.
type SessionChecker interface {
	CheckSession(now time.Time) bool
}

// Runner is a background loop; connectivity.Monitor satisfies it.
type Runner interface {
	Run(ctx context.Context)
}

// Config controls the daemon runtime behavior.
type Config struct {
	Store    *state.Store
	Sessions SessionChecker
	Monitor  Runner

	Interval     time.Duration
	Addr         string
	EventsBuffer int
	Logger       *slog.Logger
	Now          func() time.Time
}

// Snapshot is a compact budget state for status/event payloads.
type Snapshot struct {
	At            time.Time        `json:"at"`
	Revision      uint64           `json:"revision"`
	Month         string           `json:"month"`
	SyncStatus    model.SyncStatus `json:"sync_status"`
	Unsynced      bool             `json:"has_unsynced_changes"`
	Online        bool             `json:"online"`
	SignedIn      bool             `json:"signed_in"`
	LastSyncTime  *time.Time       `json:"last_sync_time,omitempty"`
	Income        float64          `json:"income"`
	TotalExpenses float64          `json:"total_expenses"`
	Savings       float64          `json:"savings_potential"`
	BurnRate      float64          `json:"burn_rate"`
	BurnLevel     model.BurnLevel  `json:"burn_level"`
}

// Delta captures money changes between refreshes.
type Delta struct {
	Income        float64 `json:"income"`
	TotalExpenses float64 `json:"total_expenses"`
	Savings       float64 `json:"savings_potential"`
}

func (d Delta) isZero() bool {
	return d.Income == 0 && d.TotalExpenses == 0 && d.Savings == 0
}

// Event is emitted whenever the budget or its sync state changes.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Snapshot  Snapshot  `json:"snapshot"`
	Delta     Delta     `json:"delta"`
}

// Event types.
const (
	EventSnapshot   = "snapshot"
	EventBudget     = "budget_delta"
	EventSyncStatus = "sync_status"
)

// Status is served at /v1/status.
type Status struct {
	StartedAt        time.Time      `json:"started_at"`
	LastCheckAt      time.Time      `json:"last_check_at"`
	CheckIntervalSec int            `json:"check_interval_sec"`
	CheckCount       int64          `json:"check_count"`
	Summary          Snapshot       `json:"summary"`
	Budget           model.Budget   `json:"budget"`
	Advice           []model.Advice `json:"advice"`
	LastError        string         `json:"last_error,omitempty"`
	EventCount       int            `json:"event_count"`
	SubscriberCount  int            `json:"subscriber_count"`
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg    Config
	notify chan struct{}

	mu          sync.RWMutex
	startedAt   time.Time
	lastCheckAt time.Time
	checkCount  int64
	lastError   string
	hasSnapshot bool
	snapshot    Snapshot
	budget      model.Budget
	nextEventID int64
	events      []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a new daemon service with the provided config.
func New(cfg Config) *Service {
	if cfg.Interval < 2*time.Second {
		cfg.Interval = 30 * time.Second
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8788"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Service{
		cfg:       cfg,
		notify:    make(chan struct{}, 1),
		startedAt: cfg.Now(),
		subs:      make(map[int]chan Event),
	}
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/events", s.handleEvents)
	mux.HandleFunc("/v1/stream", s.handleStream)
	return mux
}

// Run starts HTTP endpoints, the connectivity monitor and the session check
// loop until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	unsubscribe := s.cfg.Store.Subscribe(func(state.State) {
		select {
		case s.notify <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	if s.cfg.Monitor != nil {
		go s.cfg.Monitor.Run(ctx)
	}

	s.check()
	s.refresh()
	s.cfg.Logger.Info("daemon listening", "addr", s.cfg.Addr)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			s.check()
		case <-s.notify:
			s.refresh()
		case err := <-errCh:
			return fmt.Errorf("daemon http server: %w", err)
		}
	}
}

// check expires a stale session.
func (s *Service) check() {
	now := s.cfg.Now()
	expired := false
	if s.cfg.Sessions != nil {
		expired = s.cfg.Sessions.CheckSession(now)
	}
	if expired {
		s.cfg.Logger.Warn("session expired, signed out")
	}

	s.mu.Lock()
	s.lastCheckAt = now
	s.checkCount++
	s.mu.Unlock()
}

// refresh reads the store and publishes an event if anything visible changed.
func (s *Service) refresh() {
	now := s.cfg.Now()
	st := s.cfg.Store.Snapshot()
	snap := snapshotFromState(st, now)

	var (
		ev      Event
		publish bool
	)

	s.mu.Lock()
	prev := s.snapshot
	prevExists := s.hasSnapshot

	s.hasSnapshot = true
	s.snapshot = snap
	s.budget = st.Budget
	s.lastError = ""
	if st.Err != nil {
		s.lastError = st.Err.Error()
	}

	switch {
	case !prevExists:
		s.nextEventID++
		ev = Event{ID: s.nextEventID, Type: EventSnapshot, Timestamp: now, Snapshot: snap}
		publish = true
	case prev.Revision != snap.Revision || prev.Month != snap.Month:
		s.nextEventID++
		ev = Event{
			ID:        s.nextEventID,
			Type:      EventBudget,
			Timestamp: now,
			Snapshot:  snap,
			Delta:     diffSnapshots(prev, snap),
		}
		publish = true
	case statusChanged(prev, snap):
		s.nextEventID++
		ev = Event{ID: s.nextEventID, Type: EventSyncStatus, Timestamp: now, Snapshot: snap}
		publish = true
	}
	s.mu.Unlock()

	if publish {
		s.publishEvent(ev)
	}
}

func snapshotFromState(st state.State, at time.Time) Snapshot {
	sum := analytics.Summarize(st.Budget)
	return Snapshot{
		At:            at,
		Revision:      st.Revision,
		Month:         st.Budget.Month,
		SyncStatus:    st.SyncStatus(),
		Unsynced:      st.HasUnsyncedChanges,
		Online:        st.Online,
		SignedIn:      st.Session.IsAuthenticated(),
		LastSyncTime:  st.LastSyncTime,
		Income:        st.Budget.Income,
		TotalExpenses: sum.TotalExpenses,
		Savings:       sum.SavingsPotential,
		BurnRate:      sum.BurnRate,
		BurnLevel:     analytics.Level(sum.BurnRate),
	}
}

func diffSnapshots(prev, curr Snapshot) Delta {
	return Delta{
		Income:        curr.Income - prev.Income,
		TotalExpenses: curr.TotalExpenses - prev.TotalExpenses,
		Savings:       curr.Savings - prev.Savings,
	}
}

func statusChanged(prev, curr Snapshot) bool {
	if prev.SyncStatus != curr.SyncStatus ||
		prev.Unsynced != curr.Unsynced ||
		prev.Online != curr.Online ||
		prev.SignedIn != curr.SignedIn {
		return true
	}
	if (prev.LastSyncTime == nil) != (curr.LastSyncTime == nil) {
		return true
	}
	return prev.LastSyncTime != nil && !prev.LastSyncTime.Equal(*curr.LastSyncTime)
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:        s.startedAt,
		LastCheckAt:      s.lastCheckAt,
		CheckIntervalSec: int(s.cfg.Interval.Seconds()),
		CheckCount:       s.checkCount,
		Summary:          s.snapshot,
		Budget:           s.budget,
		Advice:           advisor.Advise(s.budget),
		LastError:        s.lastError,
		EventCount:       len(s.events),
		SubscriberCount:  len(s.subs),
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.snapshotStatus())
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	writeSSE(w, Event{
		Type:      EventSnapshot,
		Timestamp: s.cfg.Now(),
		Snapshot:  s.snapshotStatus().Summary,
	})
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
