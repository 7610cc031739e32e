package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/budgetbox/internal/model"
	"github.com/theirongolddev/budgetbox/internal/remote"
	"github.com/theirongolddev/budgetbox/internal/state"
	"github.com/theirongolddev/budgetbox/internal/syncstatus"
	"github.com/theirongolddev/budgetbox/internal/syncer"
)

var fixedNow = time.Date(2025, 11, 15, 12, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newRepo(t *testing.T) *Repo {
	t.Helper()
	repo, err := OpenRepo(context.Background(), DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newAPI(t *testing.T) (*remote.Client, *Repo, *clock) {
	t.Helper()
	repo := newRepo(t)
	clk := &clock{t: fixedNow}
	_, err := repo.SeedDemo(context.Background(), clk.t)
	require.NoError(t, err)

	srv := New(Config{Now: clk.now}, repo, NewTokens("test-secret", 0))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return remote.NewClient(ts.URL+"/api", time.Second), repo, clk
}

func TestRebind(t *testing.T) {
	pg := &Repo{driver: DriverPostgres}
	lite := &Repo{driver: DriverSQLite}
	q := "SELECT a FROM t WHERE b = ? AND c = ?"
	assert.Equal(t, "SELECT a FROM t WHERE b = $1 AND c = $2", pg.rebind(q))
	assert.Equal(t, q, lite.rebind(q))
}

func TestOpenRepo_UnknownDriver(t *testing.T) {
	_, err := OpenRepo(context.Background(), "mysql", "x")
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestSeedDemo_Idempotent(t *testing.T) {
	repo := newRepo(t)
	created, err := repo.SeedDemo(context.Background(), fixedNow)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.SeedDemo(context.Background(), fixedNow)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestRepo_OneRecordPerOwnerAndMonth(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	u, err := repo.CreateUser(ctx, "a@b.c", "hash", fixedNow)
	require.NoError(t, err)

	_, err = repo.CreateUser(ctx, "a@b.c", "hash", fixedNow)
	assert.ErrorIs(t, err, ErrEmailTaken)

	first, err := repo.BudgetFor(ctx, u.ID, "2025-11", fixedNow)
	require.NoError(t, err)
	assert.Zero(t, first.Income)
	assert.Equal(t, model.StatusSynced, first.SyncStatus)

	again, err := repo.BudgetFor(ctx, u.ID, "2025-11", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	later := fixedNow.Add(time.Hour)
	stored, err := repo.UpsertBudget(ctx, u.ID, model.Budget{Income: 10, Food: 3, Month: "2025-11"}, later)
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID)
	assert.Equal(t, 10.0, stored.Income)
	assert.True(t, later.Equal(stored.LastUpdated))

	other, err := repo.UpsertBudget(ctx, u.ID, model.Budget{Income: 7, Month: "2025-12"}, later)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestTokens(t *testing.T) {
	tokens := NewTokens("s3cret", 0)
	tok, err := tokens.Issue("u1", "a@b.c", fixedNow)
	require.NoError(t, err)

	id, err := tokens.Verify(tok, fixedNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	_, err = tokens.Verify(tok, fixedNow.Add(TokenTTL+time.Second))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewTokens("other", 0).Verify(tok, fixedNow)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// The client reads the same expiry without the secret.
	sess := model.AuthSession{User: &model.User{ID: "u1"}, Token: tok}
	assert.False(t, sess.Expired(fixedNow))
	assert.True(t, sess.Expired(fixedNow.Add(TokenTTL)))
}

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("pw")
	require.NoError(t, err)
	assert.True(t, CheckPassword("pw", hash))
	assert.False(t, CheckPassword("nope", hash))
}

func TestAPI_LoginAndLatest(t *testing.T) {
	client, _, _ := newAPI(t)
	ctx := context.Background()

	_, err := client.Authenticate(ctx, DemoEmail, "wrong")
	assert.ErrorIs(t, err, model.ErrAuthentication)
	_, err = client.Authenticate(ctx, "nobody@example.com", DemoPassword)
	assert.ErrorIs(t, err, model.ErrAuthentication)

	sess, err := client.Authenticate(ctx, DemoEmail, DemoPassword)
	require.NoError(t, err)
	assert.Equal(t, DemoEmail, sess.User.Email)

	b, err := client.GetBudget(ctx, sess.Token, "2025-11")
	require.NoError(t, err)
	assert.Equal(t, 50000.0, b.Income)
	assert.Equal(t, 3000.0, b.Miscellaneous)

	// A month with no record is created zeroed.
	b, err = client.GetBudget(ctx, sess.Token, "2026-01")
	require.NoError(t, err)
	assert.Equal(t, "2026-01", b.Month)
	assert.Zero(t, b.Income)
	assert.NotEmpty(t, b.ID)
}

func TestAPI_SyncOverwrites(t *testing.T) {
	client, _, clk := newAPI(t)
	ctx := context.Background()
	sess, err := client.Authenticate(ctx, DemoEmail, DemoPassword)
	require.NoError(t, err)

	clk.t = fixedNow.Add(time.Minute)
	res, err := client.UpsertBudget(ctx, sess.Token, model.Budget{Income: 1000, Food: 100, Month: "2025-11"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, clk.t.Equal(res.Timestamp))
	assert.Equal(t, 1000.0, res.Budget.Income)
	// Every field is replaced, including ones the push left at zero.
	assert.Zero(t, res.Budget.MonthlyBills)

	b, err := client.GetBudget(ctx, sess.Token, "2025-11")
	require.NoError(t, err)
	assert.Equal(t, res.Budget.ID, b.ID)
	assert.Equal(t, 100.0, b.Food)
}

func TestAPI_RejectsBadTokens(t *testing.T) {
	client, _, _ := newAPI(t)
	ctx := context.Background()

	_, err := client.GetBudget(ctx, "", "2025-11")
	assert.ErrorIs(t, err, model.ErrAuthentication)
	_, err = client.GetBudget(ctx, "not-a-jwt", "2025-11")
	assert.ErrorIs(t, err, model.ErrAuthentication)

	stale, err := NewTokens("test-secret", 0).Issue("u1", "", fixedNow.Add(-8*24*time.Hour))
	require.NoError(t, err)
	_, err = client.UpsertBudget(ctx, stale, model.Budget{Month: "2025-11"})
	assert.ErrorIs(t, err, model.ErrAuthentication)
}

func TestAPI_ValidatesPayload(t *testing.T) {
	client, _, _ := newAPI(t)
	ctx := context.Background()
	sess, err := client.Authenticate(ctx, DemoEmail, DemoPassword)
	require.NoError(t, err)

	_, err = client.UpsertBudget(ctx, sess.Token, model.Budget{Income: -5, Month: "2025-11"})
	assert.ErrorIs(t, err, model.ErrRemote)
	_, err = client.GetBudget(ctx, sess.Token, "nov")
	assert.ErrorIs(t, err, model.ErrRemote)
}

func TestAPI_RegisterAndHealth(t *testing.T) {
	repo := newRepo(t)
	srv := New(Config{Now: func() time.Time { return fixedNow }}, repo, NewTokens("k", 0))
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	short := `{"email":"new@example.com","password":"pw"}`
	resp, err := http.Post(ts.URL+"/api/auth/register", "application/json", strings.NewReader(short))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := `{"email":"new@example.com","password":"secret1"}`
	resp, err = http.Post(ts.URL+"/api/auth/register", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/auth/register", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/auth/login", "application/json", strings.NewReader(`{"email":""}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	h, err := remote.NewClient(ts.URL+"/api", time.Second).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "OK", h.Status)
}

type alwaysOnline struct{}

func (alwaysOnline) Online() bool { return true }

func TestEndToEnd_LoginEditPushPull(t *testing.T) {
	client, _, _ := newAPI(t)
	ctx := context.Background()

	st := state.New(state.Options{Now: func() time.Time { return fixedNow }})
	coord := syncer.New(st, syncer.Options{
		Remote: client,
		Signal: alwaysOnline{},
		Now:    func() time.Time { return fixedNow },
	})

	got, err := coord.Login(ctx, DemoEmail, DemoPassword)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, got.Budget.Income)
	assert.Equal(t, model.StatusSynced, got.SyncStatus())

	st.UpdateBudget(func(s *state.State) {
		s.Budget.Food = 9000
		s.Budget.LastUpdated = s.Budget.LastUpdated.Add(time.Second)
		s.Apply(syncstatus.CommitOnline)
	})
	got, err = coord.Push(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSynced, got.SyncStatus())
	assert.False(t, got.HasUnsyncedChanges)

	st.UpdateBudget(func(s *state.State) { s.Budget.Food = 1 })
	got, err = coord.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9000.0, got.Budget.Food)
}
