// Package mutation turns raw field edits into committed budget mutations.
//
// Edits are debounced per field: each edit cancels and reschedules that
// field's timer, and only the last value inside the window is committed.
// Every commit also writes the budget to a separate autosave record so an
// edit survives a crash before the next snapshot write.
package mutation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/theirongolddev/budgetbox/internal/model"
	"github.com/theirongolddev/budgetbox/internal/state"
	"github.com/theirongolddev/budgetbox/internal/syncstatus"
)

// ErrClosed is returned by UpdateField after Close.
var ErrClosed = errors.New("mutation pipeline closed")

// DefaultWindow is the debounce window for repeated edits to one field.
const DefaultWindow = 500 * time.Millisecond

// Autosaver durably writes a single budget.
type Autosaver interface {
	SaveBudget(ctx context.Context, b model.Budget) error
}

// Signal reports connectivity.
type Signal interface {
	Online() bool
}

// Options configures a Pipeline.
type Options struct {
	Window    time.Duration
	Autosaver Autosaver
	Signal    Signal
	Logger    *slog.Logger
	Now       func() time.Time
}

type pendingEdit struct {
	raw   string
	gen   uint64
	timer *time.Timer
}

// Pipeline debounces, coerces and commits field edits into a state.Store.
type Pipeline struct {
	store     *state.Store
	autosaver Autosaver
	signal    Signal
	window    time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	pending map[model.Field]*pendingEdit
	gen     uint64
	closed  bool

	saveMu   sync.Mutex
	savedRev uint64
	saveErr  error
	saves    sync.WaitGroup
}

// New returns a pipeline committing into st.
func New(st *state.Store, opts Options) *Pipeline {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{
		store:     st,
		autosaver: opts.Autosaver,
		signal:    opts.Signal,
		window:    opts.Window,
		logger:    opts.Logger,
		now:       opts.Now,
		pending:   make(map[model.Field]*pendingEdit),
	}
}

// UpdateField schedules raw as the new value of field. Repeated calls for
// the same field inside the window collapse into one commit.
func (p *Pipeline) UpdateField(field model.Field, raw string) error {
	if err := validField(field); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}

	p.gen++
	gen := p.gen
	if old, ok := p.pending[field]; ok {
		old.timer.Stop()
	}
	pe := &pendingEdit{raw: raw, gen: gen}
	pe.timer = time.AfterFunc(p.window, func() { p.fire(field, gen) })
	p.pending[field] = pe
	return nil
}

// Commit applies raw to field now, bypassing the debounce window, and
// returns the resulting state. Any pending edit for the field is dropped.
func (p *Pipeline) Commit(field model.Field, raw string) (state.State, error) {
	if err := validField(field); err != nil {
		return state.State{}, err
	}
	p.mu.Lock()
	if pe, ok := p.pending[field]; ok {
		pe.timer.Stop()
		delete(p.pending, field)
	}
	p.mu.Unlock()
	return p.commit(field, raw), nil
}

// Pending reports whether any edit is waiting for its window to elapse.
func (p *Pipeline) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending) > 0
}

// Flush commits every pending edit now, in form order, and waits for the
// resulting autosave writes. It returns the last autosave error, if any.
func (p *Pipeline) Flush(ctx context.Context) error {
	p.mu.Lock()
	edits := make(map[model.Field]string, len(p.pending))
	for f, pe := range p.pending {
		pe.timer.Stop()
		edits[f] = pe.raw
	}
	clear(p.pending)
	p.mu.Unlock()

	for _, f := range model.Fields {
		if raw, ok := edits[f]; ok {
			p.commit(f, raw)
		}
	}
	return p.wait(ctx)
}

// Discard drops every pending edit without committing it.
func (p *Pipeline) Discard() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pe := range p.pending {
		pe.timer.Stop()
	}
	clear(p.pending)
}

// Record overwrites the autosave record with b, the budget at revision rev,
// so a replaced budget is not recovered as an unsynced edit. It is a no-op
// when a newer revision was already written.
func (p *Pipeline) Record(ctx context.Context, b model.Budget, rev uint64) error {
	if p.autosaver == nil {
		return nil
	}
	p.saveMu.Lock()
	defer p.saveMu.Unlock()
	return p.saveLocked(ctx, b, rev)
}

// Close flushes pending edits and waits for in-flight autosaves.
func (p *Pipeline) Close(ctx context.Context) error {
	err := p.Flush(ctx)
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return err
}

func (p *Pipeline) fire(field model.Field, gen uint64) {
	p.mu.Lock()
	pe, ok := p.pending[field]
	if !ok || pe.gen != gen {
		p.mu.Unlock()
		return
	}
	delete(p.pending, field)
	p.mu.Unlock()

	p.commit(field, pe.raw)
}

func (p *Pipeline) commit(field model.Field, raw string) state.State {
	value := Coerce(raw)
	online := p.signal != nil && p.signal.Online()
	now := p.now().UTC().Truncate(time.Millisecond)

	st := p.store.UpdateBudget(func(st *state.State) {
		_ = st.Budget.Set(field, value)
		if !now.After(st.Budget.LastUpdated) {
			now = st.Budget.LastUpdated.Add(time.Millisecond)
		}
		st.Budget.LastUpdated = now
		st.Apply(syncstatus.Commit(online))
		st.Err = nil
	})
	p.logger.Debug("committed edit",
		"field", field,
		"value", value,
		"status", st.SyncStatus(),
		"revision", st.Revision,
	)

	if p.autosaver != nil {
		p.saves.Add(1)
		go p.autosave(st.Budget, st.Revision)
	}
	return st
}

// autosave writes b unless a newer revision has already been written.
func (p *Pipeline) autosave(b model.Budget, rev uint64) {
	defer p.saves.Done()
	p.saveMu.Lock()
	defer p.saveMu.Unlock()
	if err := p.saveLocked(context.Background(), b, rev); err != nil {
		p.logger.Warn("autosave failed", "err", err, "revision", rev)
	}
}

func (p *Pipeline) saveLocked(ctx context.Context, b model.Budget, rev uint64) error {
	if rev <= p.savedRev {
		return nil
	}
	if err := p.autosaver.SaveBudget(ctx, b); err != nil {
		p.saveErr = err
		return err
	}
	p.savedRev = rev
	p.saveErr = nil
	return nil
}

func (p *Pipeline) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.saves.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	p.saveMu.Lock()
	defer p.saveMu.Unlock()
	return p.saveErr
}

func validField(f model.Field) error {
	var b model.Budget
	return b.Set(f, 0)
}
