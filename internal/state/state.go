// Package state holds the in-memory client state and persists its durable
// subset.
package state

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/theirongolddev/budgetbox/internal/model"
	"github.com/theirongolddev/budgetbox/internal/store"
	"github.com/theirongolddev/budgetbox/internal/syncstatus"
)

// DefaultPersistDelay is how long the store waits after a change before
// writing the snapshot.
const DefaultPersistDelay = 250 * time.Millisecond

// Persister is the durable storage the store reads and writes.
type Persister interface {
	LoadSnapshot(ctx context.Context) (model.Snapshot, error)
	SaveSnapshot(ctx context.Context, snap model.Snapshot) error
	LoadAutosave(ctx context.Context) (model.Budget, error)
}

// State is the full client state. Budget.SyncStatus is the sync status.
type State struct {
	Session            model.AuthSession
	Budget             model.Budget
	HasUnsyncedChanges bool
	LastSyncTime       *time.Time

	// Revision advances whenever the budget is changed by a commit, a pull
	// or a reset. It is never persisted.
	Revision uint64

	// Transient flags, excluded from persistence.
	Online  bool
	Loading bool
	Err     error
}

// SyncStatus returns the budget's sync status.
func (s State) SyncStatus() model.SyncStatus {
	return s.Budget.SyncStatus
}

// Machine returns the sync machine view of the state.
func (s State) Machine() syncstatus.Machine {
	return syncstatus.Machine{Status: s.Budget.SyncStatus, Unsynced: s.HasUnsyncedChanges}
}

// Apply drives the sync machine with ev and stores the result.
func (s *State) Apply(ev syncstatus.Event) {
	m := s.Machine().On(ev)
	s.Budget.SyncStatus = m.Status
	s.HasUnsyncedChanges = m.Unsynced
}

// Durable returns the persisted subset of s.
func (s State) Durable() model.Snapshot {
	var last *time.Time
	if s.LastSyncTime != nil {
		t := *s.LastSyncTime
		last = &t
	}
	return model.Snapshot{
		Session:            s.Session,
		Budget:             s.Budget,
		SyncStatus:         s.Budget.SyncStatus,
		HasUnsyncedChanges: s.HasUnsyncedChanges,
		LastSyncTime:       last,
	}
}

// Options configures a Store.
type Options struct {
	Persister    Persister
	PersistDelay time.Duration
	Logger       *slog.Logger
	Now          func() time.Time
}

// Store serializes all access to the client state.
type Store struct {
	persister Persister
	delay     time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	state     State
	changes   uint64
	timer     *time.Timer
	listeners map[int]func(State)
	nextID    int
	closed    bool

	persistMu sync.Mutex
	persisted uint64
}

// New returns a store holding defaults: signed out with a zeroed budget for
// the current month.
func New(opts Options) *Store {
	if opts.PersistDelay <= 0 {
		opts.PersistDelay = DefaultPersistDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		persister: opts.Persister,
		delay:     opts.PersistDelay,
		logger:    opts.Logger,
		now:       opts.Now,
		state:     State{Budget: model.NewBudget(opts.Now())},
		listeners: make(map[int]func(State)),
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyState(s.state)
}

// Update applies fn to the state under the lock and schedules persistence.
// Changes fn makes to Revision are discarded.
func (s *Store) Update(fn func(*State)) State {
	return s.update(func(st *State) {
		rev := st.Revision
		fn(st)
		st.Revision = rev
	})
}

// UpdateBudget is Update for changes that replace or edit the budget. The
// revision is advanced after fn runs.
func (s *Store) UpdateBudget(fn func(*State)) State {
	return s.update(func(st *State) {
		rev := st.Revision
		fn(st)
		st.Revision = rev + 1
	})
}

// Mutate is Update for callers that decide under the lock whether the
// budget changed. The revision advances when fn returns true.
func (s *Store) Mutate(fn func(*State) bool) State {
	return s.update(func(st *State) {
		rev := st.Revision
		changed := fn(st)
		st.Revision = rev
		if changed {
			st.Revision++
		}
	})
}

func (s *Store) update(fn func(*State)) State {
	s.mu.Lock()
	fn(&s.state)
	s.changes++
	s.schedulePersistLocked()
	out := copyState(s.state)
	listeners := make([]func(State), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(out)
	}
	return out
}

// Subscribe registers fn to be called with the new state after every change.
// The returned function removes the listener.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// SetSession stores an authenticated session.
func (s *Store) SetSession(sess model.AuthSession) State {
	return s.Update(func(st *State) {
		st.Session = sess
		st.Err = nil
	})
}

// Logout clears the session and resets the budget to a zeroed record for the
// current month.
func (s *Store) Logout() State {
	now := s.now()
	return s.UpdateBudget(func(st *State) {
		st.Session = model.AuthSession{}
		st.Budget = model.NewBudget(now)
		st.Apply(syncstatus.Reset)
		st.LastSyncTime = nil
		st.Loading = false
		st.Err = nil
	})
}

// SetOnline records the connectivity signal.
func (s *Store) SetOnline(online bool) State {
	return s.Update(func(st *State) { st.Online = online })
}

// SetLoading records whether a network operation is in flight.
func (s *Store) SetLoading(loading bool) State {
	return s.Update(func(st *State) { st.Loading = loading })
}

// SetError records the last user-visible error; nil clears it.
func (s *Store) SetError(err error) State {
	return s.Update(func(st *State) { st.Err = err })
}

// Hydrate loads the durable snapshot. A missing or corrupt snapshot leaves
// the defaults in place. A newer autosaved budget for the same month
// replaces the snapshot's budget and marks it unsynced. Only a cancelled
// context is reported as an error.
func (s *Store) Hydrate(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	snap, err := s.persister.LoadSnapshot(ctx)
	found := err == nil
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		s.logger.Debug("no persisted snapshot, using defaults")
	default:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("persisted snapshot unreadable, using defaults", "err", err)
	}

	auto, aerr := s.persister.LoadAutosave(ctx)
	switch {
	case aerr == nil:
	case errors.Is(aerr, store.ErrNotFound):
	default:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("autosave record unreadable, ignoring", "err", aerr)
	}

	s.mu.Lock()
	if found {
		s.state.Session = snap.Session
		s.state.Budget = snap.Budget
		s.state.Budget.SyncStatus = snap.SyncStatus
		s.state.HasUnsyncedChanges = snap.HasUnsyncedChanges
		s.state.LastSyncTime = snap.LastSyncTime
	}
	if aerr == nil && auto.Month == s.state.Budget.Month && auto.LastUpdated.After(s.state.Budget.LastUpdated) {
		s.logger.Info("recovering autosaved budget", "month", auto.Month, "last_updated", auto.LastUpdated)
		id := s.state.Budget.ID
		s.state.Budget = auto
		if s.state.Budget.ID == "" {
			s.state.Budget.ID = id
		}
		s.state.Apply(syncstatus.CommitOffline)
	}
	s.state.Revision++
	s.mu.Unlock()
	return nil
}

// Flush writes the durable snapshot now.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	return s.persist(ctx)
}

// Close flushes and stops further scheduled writes.
func (s *Store) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	return err
}

func (s *Store) schedulePersistLocked() {
	if s.persister == nil || s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() {
		if err := s.persist(context.Background()); err != nil {
			s.logger.Warn("persisting snapshot", "err", err)
		}
	})
}

// persist writes the current snapshot unless a write of the same or a later
// change has already landed.
func (s *Store) persist(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	changes := s.changes
	snap := s.state.Durable()
	s.mu.Unlock()

	if changes <= s.persisted && s.persisted != 0 {
		return nil
	}
	if err := s.persister.SaveSnapshot(ctx, snap); err != nil {
		return err
	}
	s.persisted = changes
	return nil
}

func copyState(st State) State {
	out := st
	if st.LastSyncTime != nil {
		t := *st.LastSyncTime
		out.LastSyncTime = &t
	}
	if st.Session.User != nil {
		u := *st.Session.User
		out.Session.User = &u
	}
	return out
}
