package tui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/budgetbox/internal/model"
	"github.com/theirongolddev/budgetbox/internal/state"
	"github.com/theirongolddev/budgetbox/internal/syncstatus"
)

var fixedNow = time.Date(2025, 11, 15, 12, 0, 0, 0, time.UTC)

type edit struct {
	field model.Field
	raw   string
}

type fakeEditor struct {
	mu    sync.Mutex
	edits []edit
}

func (f *fakeEditor) UpdateField(field model.Field, raw string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, edit{field, raw})
	return nil
}

func (f *fakeEditor) Flush(context.Context) error { return nil }

type fakeSyncer struct {
	store  *state.Store
	pushes int
	pulls  int
	err    error
}

func (f *fakeSyncer) Login(context.Context, string, string) (state.State, error) {
	return f.store.Snapshot(), f.err
}

func (f *fakeSyncer) Logout() state.State { return f.store.Logout() }

func (f *fakeSyncer) Push(context.Context) (state.State, error) {
	f.pushes++
	return f.store.Snapshot(), f.err
}

func (f *fakeSyncer) Pull(context.Context) (state.State, error) {
	f.pulls++
	return f.store.Snapshot(), f.err
}

func newTestApp(t *testing.T) (App, *state.Store, *fakeEditor, *fakeSyncer) {
	t.Helper()
	st := state.New(state.Options{Now: func() time.Time { return fixedNow }})
	ed := &fakeEditor{}
	sy := &fakeSyncer{store: st}
	a := NewApp(Options{Store: st, Editor: ed, Syncer: sy, Now: func() time.Time { return fixedNow }})
	return a, st, ed, sy
}

func send(a App, msgs ...tea.Msg) App {
	for _, msg := range msgs {
		m, _ := a.Update(msg)
		a = m.(App)
	}
	return a
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTyping_FeedsEditor(t *testing.T) {
	a, _, ed, _ := newTestApp(t)

	a = send(a, runes("5"), runes("0"), tea.KeyMsg{Type: tea.KeyTab}, runes("7"))

	require.Len(t, ed.edits, 3)
	assert.Equal(t, edit{model.FieldIncome, "5"}, ed.edits[0])
	assert.Equal(t, edit{model.FieldIncome, "50"}, ed.edits[1])
	assert.Equal(t, edit{model.FieldMonthlyBills, "7"}, ed.edits[2])
	assert.Equal(t, 1, a.focus)
}

func TestStateChange_KeepsTextUntilCommitted(t *testing.T) {
	a, st, _, _ := newTestApp(t)
	a = send(a, runes("12"))
	assert.True(t, a.dirty[model.FieldIncome])

	// Another field changes in the store while income is still debouncing.
	st.UpdateBudget(func(s *state.State) { s.Budget.Food = 300 })
	a = send(a, StateChangedMsg{})
	assert.Equal(t, "12", a.inputs[0].Value())
	assert.Equal(t, "300", a.inputs[2].Value())

	st.UpdateBudget(func(s *state.State) { s.Budget.Income = 12 })
	a = send(a, StateChangedMsg{})
	assert.False(t, a.dirty[model.FieldIncome])
}

func TestPush_StartsOperation(t *testing.T) {
	a, _, _, sy := newTestApp(t)

	m, cmd := a.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	a = m.(App)
	assert.Equal(t, "push", a.busy)
	require.NotNil(t, cmd)

	msg := a.pushCmd()()
	done, ok := msg.(SyncDoneMsg)
	require.True(t, ok)
	assert.Equal(t, "push", done.Op)
	assert.Equal(t, 1, sy.pushes)

	a = send(a, done)
	assert.Empty(t, a.busy)
	assert.Equal(t, "Pushed to the server.", a.notice)
}

func TestPush_ErrorShowsFriendlyNotice(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	a = send(a, SyncDoneMsg{Op: "push", Err: model.ErrConnectivity})
	assert.Contains(t, a.notice, "offline")
}

func TestPull_ConfirmsWhenUnsynced(t *testing.T) {
	a, st, _, _ := newTestApp(t)
	st.UpdateBudget(func(s *state.State) {
		s.Budget.Food = 10
		s.Apply(syncstatus.CommitOffline)
	})
	a = send(a, StateChangedMsg{})

	a = send(a, tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.True(t, a.confirmPull)
	assert.Empty(t, a.busy)

	a = send(a, tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.False(t, a.confirmPull)
	assert.Equal(t, "pull", a.busy)
}

func TestPull_ReplacesInputs(t *testing.T) {
	a, st, _, _ := newTestApp(t)
	a = send(a, runes("99"))

	st.UpdateBudget(func(s *state.State) {
		s.Budget.Income = 50000
		s.Apply(syncstatus.Pulled)
	})
	a = send(a, SyncDoneMsg{Op: "pull", State: st.Snapshot()})

	assert.Equal(t, "50000", a.inputs[0].Value())
	assert.Empty(t, a.dirty)
}

func TestLoginForm_OpensAndCancels(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	a = send(a, tea.KeyMsg{Type: tea.KeyCtrlL})
	require.NotNil(t, a.loginForm)

	a = send(a, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, a.loginForm)
}

func TestView(t *testing.T) {
	a, st, _, _ := newTestApp(t)
	st.UpdateBudget(func(s *state.State) {
		s.Budget.Income = 50000
		s.Budget.Food = 8000
	})
	a = send(a, tea.WindowSizeMsg{Width: 120, Height: 40}, StateChangedMsg{})

	view := a.View()
	assert.Contains(t, view, "budgetbox")
	assert.Contains(t, view, "November 2025")
	assert.Contains(t, view, "Monthly Income")
	assert.Contains(t, view, "Breakdown")
	assert.Contains(t, view, "₹8,000")
	assert.Contains(t, view, "offline")

	a = send(a, tea.WindowSizeMsg{Width: 60, Height: 20})
	assert.True(t, strings.Contains(a.View(), "too narrow"))
}
