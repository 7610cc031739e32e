// Package syncer reconciles the local budget with the remote store.
//
// The policy is last-writer-wins on the whole record: Push overwrites the
// remote copy and Pull overwrites the local one. Neither merges fields.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/theirongolddev/budgetbox/internal/model"
	"github.com/theirongolddev/budgetbox/internal/state"
	"github.com/theirongolddev/budgetbox/internal/syncstatus"
)

// ErrSuperseded is returned when a response arrived after a newer push, pull
// or edit and was discarded.
var ErrSuperseded = errors.New("superseded by a newer operation")

// Remote is the remote store contract.
type Remote interface {
	Authenticate(ctx context.Context, email, password string) (model.AuthSession, error)
	GetBudget(ctx context.Context, token, month string) (model.Budget, error)
	UpsertBudget(ctx context.Context, token string, b model.Budget) (model.UpsertResult, error)
}

// Signal reports connectivity.
type Signal interface {
	Online() bool
}

// Flusher commits edits still waiting in a debounce window.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Drafts is the local edit buffer. Pull and Logout keep it in step with the
// budget they install.
type Drafts interface {
	Discard()
	Record(ctx context.Context, b model.Budget, rev uint64) error
}

// Options configures a Coordinator.
type Options struct {
	Remote  Remote
	Signal  Signal
	Flusher Flusher
	Drafts  Drafts
	Logger  *slog.Logger
	Now     func() time.Time
}

// Coordinator runs authentication, push and pull against a Remote.
type Coordinator struct {
	store   *state.Store
	remote  Remote
	signal  Signal
	flusher Flusher
	drafts  Drafts
	logger  *slog.Logger
	now     func() time.Time

	seq atomic.Uint64
}

// New returns a coordinator writing into st.
func New(st *state.Store, opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		store:   st,
		remote:  opts.Remote,
		signal:  opts.Signal,
		flusher: opts.Flusher,
		drafts:  opts.Drafts,
		logger:  opts.Logger,
		now:     opts.Now,
	}
}

func (c *Coordinator) online() bool {
	return c.signal == nil || c.signal.Online()
}

// Login authenticates and stores the session. When online it then pulls the
// current month; a failed pull is recorded on the state but does not undo
// the login, unless the remote rejected the new token.
func (c *Coordinator) Login(ctx context.Context, email, password string) (state.State, error) {
	if !c.online() {
		return c.store.SetError(model.ErrConnectivity), model.ErrConnectivity
	}

	c.store.SetLoading(true)
	sess, err := c.remote.Authenticate(ctx, email, password)
	if err != nil {
		st := c.store.Update(func(st *state.State) {
			st.Loading = false
			st.Err = err
		})
		return st, err
	}
	c.logger.Info("signed in", "user", sess.OwnerID())
	st := c.store.Update(func(st *state.State) {
		st.Session = sess
		st.Loading = false
		st.Err = nil
	})

	if c.online() {
		pulled, err := c.Pull(ctx)
		if err != nil {
			c.logger.Warn("initial pull after login failed", "err", err)
			if errors.Is(err, model.ErrAuthentication) {
				return pulled, err
			}
			return c.store.Snapshot(), nil
		}
		st = pulled
	}
	return st, nil
}

// Logout clears the session and resets the budget. Pending edits are
// dropped.
func (c *Coordinator) Logout() state.State {
	c.seq.Add(1)
	if c.drafts != nil {
		c.drafts.Discard()
	}
	st := c.store.Logout()
	c.record(st)
	return st
}

// record makes st's budget the autosave record.
func (c *Coordinator) record(st state.State) {
	if c.drafts == nil {
		return
	}
	if err := c.drafts.Record(context.Background(), st.Budget, st.Revision); err != nil {
		c.logger.Warn("replacing autosave record", "err", err)
	}
}

// lostConnection reports whether err means the remote store is unreachable.
func (c *Coordinator) lostConnection(err error) bool {
	return errors.Is(err, model.ErrConnectivity) || !c.online()
}

// CheckSession clears the session when its token has expired and reports
// whether it did.
func (c *Coordinator) CheckSession(now time.Time) bool {
	st := c.store.Snapshot()
	if !st.Session.IsAuthenticated() || !st.Session.Expired(now) {
		return false
	}
	c.logger.Info("session token expired, signing out", "user", st.Session.OwnerID())
	c.Logout()
	return true
}

// begin checks preconditions shared by Push and Pull and returns the state
// the operation starts from plus its sequence number.
func (c *Coordinator) begin(op string) (state.State, uint64, error) {
	st := c.store.Snapshot()
	if !st.Session.IsAuthenticated() {
		return st, 0, model.ErrNotAuthenticated
	}
	if !c.online() {
		c.logger.Debug(op+" refused while offline")
		st = c.store.Update(func(st *state.State) {
			st.Apply(syncstatus.ConnectivityLost)
			st.Err = model.ErrConnectivity
		})
		return st, 0, model.ErrConnectivity
	}
	return st, c.seq.Add(1), nil
}

// Push sends the whole local budget to the remote store.
func (c *Coordinator) Push(ctx context.Context) (state.State, error) {
	if c.flusher != nil {
		if err := c.flusher.Flush(ctx); err != nil {
			c.logger.Warn("flushing edits before push", "err", err)
		}
	}

	st, seq, err := c.begin("push")
	if err != nil {
		return st, err
	}
	rev := st.Revision
	token := st.Session.Token
	sent := st.Budget
	c.store.SetLoading(true)

	res, err := c.remote.UpsertBudget(ctx, token, sent)
	if err == nil && !res.Success {
		err = fmt.Errorf("%w: upsert not acknowledged", model.ErrRemote)
	}

	var applied, stale bool
	st = c.store.Update(func(st *state.State) {
		latest := c.seq.Load() == seq
		if latest {
			st.Loading = false
		}
		if err == nil && res.Budget.ID != "" && st.Session.Token == token &&
			st.Budget.Month == sent.Month && st.Budget.ID == "" {
			st.Budget.ID = res.Budget.ID
		}
		if !latest || st.Revision != rev {
			stale = true
			return
		}
		if err != nil {
			if c.lostConnection(err) {
				st.Apply(syncstatus.ConnectivityLost)
			} else {
				st.Apply(syncstatus.PushFailed)
			}
			st.Err = err
			return
		}
		if res.Budget.ID != "" {
			st.Budget.ID = res.Budget.ID
		}
		st.Apply(syncstatus.PushSucceeded)
		now := c.now().UTC()
		st.LastSyncTime = &now
		st.Err = nil
		applied = true
	})

	switch {
	case err != nil:
		c.logger.Warn("push failed", "err", err, "month", sent.Month)
		return c.authFailure(st, err), err
	case stale:
		c.logger.Debug("push result superseded", "month", sent.Month, "seq", seq)
		return st, ErrSuperseded
	}
	if applied {
		c.logger.Info("pushed budget", "month", sent.Month, "id", st.Budget.ID)
	}
	return st, nil
}

// Pull replaces the local budget with the remote record for the current
// month. Unsynced local edits are discarded.
func (c *Coordinator) Pull(ctx context.Context) (state.State, error) {
	st, seq, err := c.begin("pull")
	if err != nil {
		return st, err
	}
	rev := st.Revision
	month := model.MonthOf(c.now())
	c.store.SetLoading(true)

	fetched, err := c.remote.GetBudget(ctx, st.Session.Token, month)

	var stale bool
	st = c.store.Mutate(func(st *state.State) bool {
		latest := c.seq.Load() == seq
		if latest {
			st.Loading = false
		}
		if !latest || st.Revision != rev {
			stale = true
			return false
		}
		if err != nil {
			if c.lostConnection(err) {
				st.Apply(syncstatus.ConnectivityLost)
			}
			st.Err = err
			return false
		}
		st.Budget = fetched
		st.Apply(syncstatus.Pulled)
		now := c.now().UTC()
		st.LastSyncTime = &now
		st.Err = nil
		return true
	})

	switch {
	case err != nil:
		c.logger.Warn("pull failed", "err", err, "month", month)
		return c.authFailure(st, err), err
	case stale:
		c.logger.Debug("pull result superseded", "month", month, "seq", seq)
		return st, ErrSuperseded
	}
	c.record(st)
	c.logger.Info("pulled budget", "month", month, "id", st.Budget.ID)
	return st, nil
}

// authFailure signs out when the remote rejected the session's token.
func (c *Coordinator) authFailure(st state.State, err error) state.State {
	if !errors.Is(err, model.ErrAuthentication) || !st.Session.IsAuthenticated() {
		return st
	}
	c.logger.Warn("remote rejected session, signing out")
	c.Logout()
	return c.store.SetError(err)
}
