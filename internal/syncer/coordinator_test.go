package syncer

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/budgetbox/internal/model"
	"github.com/theirongolddev/budgetbox/internal/mutation"
	"github.com/theirongolddev/budgetbox/internal/state"
	"github.com/theirongolddev/budgetbox/internal/store"
	"github.com/theirongolddev/budgetbox/internal/syncstatus"
)

var fixedNow = time.Date(2025, 11, 15, 12, 0, 0, 0, time.UTC)

type fakeSignal struct{ online atomic.Bool }

func (f *fakeSignal) Online() bool { return f.online.Load() }

func online() *fakeSignal {
	s := &fakeSignal{}
	s.online.Store(true)
	return s
}

type fakeRemote struct {
	mu        sync.Mutex
	stored    map[string]model.Budget
	pushed    []model.Budget
	authErr   error
	getErr    error
	upsertErr error

	// When set, UpsertBudget signals entered and blocks until gate closes.
	entered chan struct{}
	gate    chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{stored: make(map[string]model.Budget)}
}

func (f *fakeRemote) Authenticate(_ context.Context, email, password string) (model.AuthSession, error) {
	if f.authErr != nil {
		return model.AuthSession{}, f.authErr
	}
	return model.AuthSession{User: &model.User{ID: "u1", Email: email}, Token: "tok-" + password}, nil
}

func (f *fakeRemote) GetBudget(_ context.Context, _ string, month string) (model.Budget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return model.Budget{}, f.getErr
	}
	b, ok := f.stored[month]
	if !ok {
		b = model.Budget{ID: "b-" + month, Month: month, LastUpdated: fixedNow, SyncStatus: model.StatusSynced}
		f.stored[month] = b
	}
	return b, nil
}

func (f *fakeRemote) UpsertBudget(_ context.Context, _ string, b model.Budget) (model.UpsertResult, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return model.UpsertResult{}, f.upsertErr
	}
	f.pushed = append(f.pushed, b)
	b.ID = "b-" + b.Month
	b.SyncStatus = model.StatusSynced
	f.stored[b.Month] = b
	return model.UpsertResult{Success: true, Timestamp: fixedNow, Budget: b}, nil
}

type countingFlusher struct{ n atomic.Int32 }

func (c *countingFlusher) Flush(context.Context) error {
	c.n.Add(1)
	return nil
}

func setup(t *testing.T, remote *fakeRemote, sig *fakeSignal) (*Coordinator, *state.Store) {
	t.Helper()
	st := state.New(state.Options{Now: func() time.Time { return fixedNow }})
	c := New(st, Options{
		Remote: remote,
		Signal: sig,
		Now:    func() time.Time { return fixedNow },
	})
	return c, st
}

func signedIn(st *state.Store) {
	st.SetSession(model.AuthSession{User: &model.User{ID: "u1"}, Token: "tok"})
}

func edit(st *state.Store, f model.Field, v float64, online bool) {
	st.UpdateBudget(func(s *state.State) {
		_ = s.Budget.Set(f, v)
		s.Budget.LastUpdated = s.Budget.LastUpdated.Add(time.Millisecond)
		s.Apply(syncstatus.Commit(online))
	})
}

func TestPush_Success(t *testing.T) {
	remote := newFakeRemote()
	flusher := &countingFlusher{}
	st := state.New(state.Options{Now: func() time.Time { return fixedNow }})
	c := New(st, Options{Remote: remote, Signal: online(), Flusher: flusher, Now: func() time.Time { return fixedNow }})
	signedIn(st)
	edit(st, model.FieldIncome, 50000, true)

	got, err := c.Push(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.StatusSynced, got.SyncStatus())
	assert.False(t, got.HasUnsyncedChanges)
	require.NotNil(t, got.LastSyncTime)
	assert.True(t, fixedNow.Equal(*got.LastSyncTime))
	assert.Equal(t, "b-2025-11", got.Budget.ID)
	assert.False(t, got.Loading)
	assert.Equal(t, int32(1), flusher.n.Load())

	require.Len(t, remote.pushed, 1)
	assert.Equal(t, 50000.0, remote.pushed[0].Income)
}

func TestPush_FromLocalAlsoSyncs(t *testing.T) {
	c, st := setup(t, newFakeRemote(), online())
	signedIn(st)
	edit(st, model.FieldFood, 10, false)
	require.Equal(t, model.StatusLocal, st.Snapshot().SyncStatus())

	got, err := c.Push(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StatusSynced, got.SyncStatus())
}

func TestPush_Offline(t *testing.T) {
	remote := newFakeRemote()
	c, st := setup(t, remote, &fakeSignal{})
	signedIn(st)
	edit(st, model.FieldFood, 120, true)
	before := st.Snapshot().Budget

	got, err := c.Push(context.Background())
	assert.ErrorIs(t, err, model.ErrConnectivity)
	assert.Equal(t, before.Food, got.Budget.Food)
	assert.Equal(t, before.LastUpdated, got.Budget.LastUpdated)
	assert.Equal(t, model.StatusLocal, got.SyncStatus())
	assert.True(t, got.HasUnsyncedChanges)
	assert.Empty(t, remote.pushed)
}

func TestPush_NotAuthenticated(t *testing.T) {
	c, _ := setup(t, newFakeRemote(), online())
	_, err := c.Push(context.Background())
	assert.ErrorIs(t, err, model.ErrNotAuthenticated)
	_, err = c.Pull(context.Background())
	assert.ErrorIs(t, err, model.ErrNotAuthenticated)
}

func TestPush_RemoteErrorStaysPending(t *testing.T) {
	remote := newFakeRemote()
	remote.upsertErr = model.ErrRemote
	c, st := setup(t, remote, online())
	signedIn(st)
	edit(st, model.FieldTransport, 77, true)

	got, err := c.Push(context.Background())
	assert.ErrorIs(t, err, model.ErrRemote)
	assert.Equal(t, model.StatusPending, got.SyncStatus())
	assert.True(t, got.HasUnsyncedChanges)
	assert.Equal(t, 77.0, got.Budget.Transport)
	assert.ErrorIs(t, got.Err, model.ErrRemote)
	assert.True(t, got.Session.IsAuthenticated())
}

func TestPush_ConnectivityLostMidFlight(t *testing.T) {
	remote := newFakeRemote()
	remote.upsertErr = model.ErrConnectivity
	remote.entered = make(chan struct{})
	remote.gate = make(chan struct{})
	sig := online()
	c, st := setup(t, remote, sig)
	signedIn(st)
	edit(st, model.FieldTransport, 77, true)

	errc := make(chan error, 1)
	go func() {
		_, err := c.Push(context.Background())
		errc <- err
	}()
	<-remote.entered
	sig.online.Store(false)
	close(remote.gate)

	assert.ErrorIs(t, <-errc, model.ErrConnectivity)
	got := st.Snapshot()
	assert.Equal(t, model.StatusLocal, got.SyncStatus())
	assert.True(t, got.HasUnsyncedChanges)
}

func TestPush_AuthenticationErrorForcesLogout(t *testing.T) {
	remote := newFakeRemote()
	remote.upsertErr = model.ErrAuthentication
	c, st := setup(t, remote, online())
	signedIn(st)
	edit(st, model.FieldFood, 5, true)

	got, err := c.Push(context.Background())
	assert.ErrorIs(t, err, model.ErrAuthentication)
	assert.False(t, got.Session.IsAuthenticated())
	assert.Zero(t, got.Budget.Food)
	assert.ErrorIs(t, got.Err, model.ErrAuthentication)
}

func TestPush_EditDuringFlightIsNotMarkedSynced(t *testing.T) {
	remote := newFakeRemote()
	remote.entered = make(chan struct{})
	remote.gate = make(chan struct{})
	c, st := setup(t, remote, online())
	signedIn(st)
	edit(st, model.FieldFood, 100, true)

	errc := make(chan error, 1)
	go func() {
		_, err := c.Push(context.Background())
		errc <- err
	}()
	<-remote.entered
	edit(st, model.FieldFood, 200, true)
	close(remote.gate)

	assert.ErrorIs(t, <-errc, ErrSuperseded)
	got := st.Snapshot()
	assert.Equal(t, 200.0, got.Budget.Food)
	assert.Equal(t, model.StatusPending, got.SyncStatus())
	assert.True(t, got.HasUnsyncedChanges)
	assert.Equal(t, "b-2025-11", got.Budget.ID)
}

func TestPush_LateResultAfterPullIsDiscarded(t *testing.T) {
	remote := newFakeRemote()
	remote.stored["2025-11"] = model.Budget{ID: "b-2025-11", Income: 999, Month: "2025-11", LastUpdated: fixedNow, SyncStatus: model.StatusSynced}
	remote.entered = make(chan struct{})
	remote.gate = make(chan struct{})
	c, st := setup(t, remote, online())
	signedIn(st)
	edit(st, model.FieldFood, 100, true)

	errc := make(chan error, 1)
	go func() {
		_, err := c.Push(context.Background())
		errc <- err
	}()
	<-remote.entered
	pulled, err := c.Pull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 999.0, pulled.Budget.Income)
	close(remote.gate)

	assert.ErrorIs(t, <-errc, ErrSuperseded)
	got := st.Snapshot()
	assert.Equal(t, 999.0, got.Budget.Income)
	assert.Zero(t, got.Budget.Food)
	assert.Equal(t, model.StatusSynced, got.SyncStatus())
}

func TestPull_ReplacesUnsyncedEdits(t *testing.T) {
	remote := newFakeRemote()
	remote.stored["2025-11"] = model.Budget{ID: "b1", Income: 40000, Food: 3000, Month: "2025-11", LastUpdated: fixedNow, SyncStatus: model.StatusSynced}
	c, st := setup(t, remote, online())
	signedIn(st)
	edit(st, model.FieldFood, 123, true)
	edit(st, model.FieldMiscellaneous, 50, true)

	got, err := c.Pull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, remote.stored["2025-11"], got.Budget)
	assert.False(t, got.HasUnsyncedChanges)
	assert.Equal(t, model.StatusSynced, got.SyncStatus())
}

func TestPull_CreatesZeroedRecord(t *testing.T) {
	c, st := setup(t, newFakeRemote(), online())
	signedIn(st)

	got, err := c.Pull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2025-11", got.Budget.Month)
	assert.Zero(t, got.Budget.Income)
	assert.Equal(t, "b-2025-11", got.Budget.ID)
}

func TestPull_Offline(t *testing.T) {
	c, st := setup(t, newFakeRemote(), &fakeSignal{})
	signedIn(st)
	edit(st, model.FieldFood, 5, true)

	got, err := c.Pull(context.Background())
	assert.ErrorIs(t, err, model.ErrConnectivity)
	assert.Equal(t, 5.0, got.Budget.Food)
}

func TestPull_RemoteErrorKeepsBudget(t *testing.T) {
	remote := newFakeRemote()
	remote.getErr = model.ErrRemote
	c, st := setup(t, remote, online())
	signedIn(st)
	edit(st, model.FieldFood, 5, true)

	got, err := c.Pull(context.Background())
	assert.ErrorIs(t, err, model.ErrRemote)
	assert.Equal(t, 5.0, got.Budget.Food)
	assert.Equal(t, model.StatusPending, got.SyncStatus())
}

func TestLogin_PullsWhenOnline(t *testing.T) {
	remote := newFakeRemote()
	remote.stored["2025-11"] = model.Budget{ID: "b1", Income: 50000, Month: "2025-11", LastUpdated: fixedNow, SyncStatus: model.StatusSynced}
	c, _ := setup(t, remote, online())

	got, err := c.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.True(t, got.Session.IsAuthenticated())
	assert.Equal(t, "a@b.c", got.Session.User.Email)
	assert.Equal(t, 50000.0, got.Budget.Income)
	assert.Equal(t, model.StatusSynced, got.SyncStatus())
}

func TestLogin_PullFailureKeepsSession(t *testing.T) {
	remote := newFakeRemote()
	remote.getErr = model.ErrRemote
	c, _ := setup(t, remote, online())

	got, err := c.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.True(t, got.Session.IsAuthenticated())
	assert.ErrorIs(t, got.Err, model.ErrRemote)
}

func TestLogin_BadCredentials(t *testing.T) {
	remote := newFakeRemote()
	remote.authErr = model.ErrAuthentication
	c, _ := setup(t, remote, online())

	got, err := c.Login(context.Background(), "a@b.c", "nope")
	assert.ErrorIs(t, err, model.ErrAuthentication)
	assert.False(t, got.Session.IsAuthenticated())
	assert.False(t, got.Loading)
}

func TestLogin_Offline(t *testing.T) {
	c, _ := setup(t, newFakeRemote(), &fakeSignal{})
	_, err := c.Login(context.Background(), "a@b.c", "pw")
	assert.ErrorIs(t, err, model.ErrConnectivity)
}

func TestCheckSession(t *testing.T) {
	c, st := setup(t, newFakeRemote(), online())

	assert.False(t, c.CheckSession(fixedNow))

	// Opaque tokens never expire client-side.
	signedIn(st)
	assert.False(t, c.CheckSession(fixedNow))
	assert.True(t, st.Snapshot().Session.IsAuthenticated())

	// header.payload.signature with {"exp": 1700000000} (2023-11-14).
	expired := "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJleHAiOjE3MDAwMDAwMDB9.c2ln"
	st.SetSession(model.AuthSession{User: &model.User{ID: "u1"}, Token: expired})
	assert.True(t, c.CheckSession(fixedNow))
	assert.False(t, st.Snapshot().Session.IsAuthenticated())
}

func TestPush_ConnectivityErrorWhileSignalOnline(t *testing.T) {
	remote := newFakeRemote()
	remote.upsertErr = model.ErrConnectivity
	c, st := setup(t, remote, online())
	signedIn(st)
	edit(st, model.FieldTransport, 77, true)

	got, err := c.Push(context.Background())
	assert.ErrorIs(t, err, model.ErrConnectivity)
	assert.Equal(t, model.StatusLocal, got.SyncStatus())
	assert.True(t, got.HasUnsyncedChanges)
	assert.Equal(t, 77.0, got.Budget.Transport)
}

func TestPull_ConnectivityErrorWhileSignalOnline(t *testing.T) {
	remote := newFakeRemote()
	remote.getErr = model.ErrConnectivity
	c, st := setup(t, remote, online())
	signedIn(st)
	edit(st, model.FieldFood, 5, true)

	got, err := c.Pull(context.Background())
	assert.ErrorIs(t, err, model.ErrConnectivity)
	assert.Equal(t, model.StatusLocal, got.SyncStatus())
	assert.Equal(t, 5.0, got.Budget.Food)
}

func TestLogin_RejectedTokenOnPullSignsOut(t *testing.T) {
	remote := newFakeRemote()
	remote.getErr = model.ErrAuthentication
	c, _ := setup(t, remote, online())

	got, err := c.Login(context.Background(), "a@b.c", "pw")
	assert.ErrorIs(t, err, model.ErrAuthentication)
	assert.False(t, got.Session.IsAuthenticated())
	assert.Nil(t, got.Session.User)
}

func TestPush_SupersededByLogoutKeepsNoID(t *testing.T) {
	remote := newFakeRemote()
	remote.entered = make(chan struct{})
	remote.gate = make(chan struct{})
	c, st := setup(t, remote, online())
	signedIn(st)
	edit(st, model.FieldFood, 100, true)

	errc := make(chan error, 1)
	go func() {
		_, err := c.Push(context.Background())
		errc <- err
	}()
	<-remote.entered
	c.Logout()
	close(remote.gate)

	assert.ErrorIs(t, <-errc, ErrSuperseded)
	got := st.Snapshot()
	assert.False(t, got.Session.IsAuthenticated())
	assert.Empty(t, got.Budget.ID)
	assert.Zero(t, got.Budget.Food)
}

func TestLogout_DropsPendingEdits(t *testing.T) {
	st := state.New(state.Options{Now: func() time.Time { return fixedNow }})
	p := mutation.New(st, mutation.Options{Window: 20 * time.Millisecond, Signal: online()})
	c := New(st, Options{Remote: newFakeRemote(), Signal: online(), Flusher: p, Drafts: p})
	signedIn(st)

	require.NoError(t, p.UpdateField(model.FieldIncome, "50000"))
	c.Logout()
	time.Sleep(80 * time.Millisecond)

	got := st.Snapshot()
	assert.False(t, p.Pending())
	assert.Zero(t, got.Budget.Income)
	assert.False(t, got.HasUnsyncedChanges)
	assert.False(t, got.Session.IsAuthenticated())
}

func TestPull_ReplacesAutosaveAcrossRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "budgetbox.db")
	clock := func() time.Time { return fixedNow }

	db, err := store.Open(path)
	require.NoError(t, err)
	remote := newFakeRemote()
	remote.stored["2025-11"] = model.Budget{
		ID: "b-2025-11", Income: 999, Month: "2025-11",
		LastUpdated: fixedNow.Add(-time.Hour), SyncStatus: model.StatusSynced,
	}
	st := state.New(state.Options{Persister: db, Now: clock})
	p := mutation.New(st, mutation.Options{Autosaver: db, Signal: online(), Now: clock})
	c := New(st, Options{Remote: remote, Signal: online(), Flusher: p, Drafts: p, Now: clock})
	signedIn(st)

	_, err = p.Commit(model.FieldFood, "123")
	require.NoError(t, err)
	require.NoError(t, p.Flush(ctx))
	_, err = c.Pull(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Close(ctx))
	require.NoError(t, st.Close(ctx))
	require.NoError(t, db.Close())

	db, err = store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	restarted := state.New(state.Options{Persister: db, Now: clock})
	require.NoError(t, restarted.Hydrate(ctx))

	got := restarted.Snapshot()
	assert.Equal(t, 999.0, got.Budget.Income)
	assert.Zero(t, got.Budget.Food)
	assert.Equal(t, model.StatusSynced, got.SyncStatus())
	assert.False(t, got.HasUnsyncedChanges)
}
