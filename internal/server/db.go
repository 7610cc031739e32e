package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"  // register postgres driver
	_ "modernc.org/sqlite" // register sqlite driver

	"github.com/theirongolddev/budgetbox/internal/model"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	// ErrUserNotFound is returned when no user has the given email.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when registering an existing email.
	ErrEmailTaken = errors.New("email already registered")
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS budgets (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		month          TEXT NOT NULL,
		income         DOUBLE PRECISION NOT NULL DEFAULT 0,
		monthly_bills  DOUBLE PRECISION NOT NULL DEFAULT 0,
		food           DOUBLE PRECISION NOT NULL DEFAULT 0,
		transport      DOUBLE PRECISION NOT NULL DEFAULT 0,
		subscriptions  DOUBLE PRECISION NOT NULL DEFAULT 0,
		miscellaneous  DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_updated   TEXT NOT NULL,
		sync_status    TEXT NOT NULL DEFAULT 'synced',
		UNIQUE (user_id, month)
	)`,
}

// User is a stored account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Repo is the database-backed store for users and budgets.
type Repo struct {
	db     *sql.DB
	driver string
}

// OpenRepo opens the database for driver and runs migrations. For sqlite the
// DSN is a file path (or ":memory:"); for postgres it is a connection URL.
func OpenRepo(ctx context.Context, driver, dsn string) (*Repo, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		if dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil {
				return nil, fmt.Errorf("creating db dir: %w", err)
			}
			dsn += "?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)"
		} else {
			dsn += "?_pragma=foreign_keys(on)"
		}
		db, err = sql.Open("sqlite", dsn)
		if err == nil {
			db.SetMaxOpenConns(1)
		}
	case DriverPostgres:
		db, err = sql.Open("postgres", dsn)
		if err == nil {
			db.SetMaxOpenConns(25)
			db.SetMaxIdleConns(5)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	r := &Repo{db: db, driver: driver}
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}
	return r, nil
}

// Close closes the database.
func (r *Repo) Close() error {
	return r.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (r *Repo) rebind(query string) string {
	if r.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// CreateUser stores a new account.
func (r *Repo) CreateUser(ctx context.Context, email, passwordHash string, now time.Time) (User, error) {
	u := User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now.UTC(),
	}
	var exists bool
	err := r.db.QueryRowContext(ctx, r.rebind("SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)"), email).Scan(&exists)
	if err != nil {
		return User{}, fmt.Errorf("checking email: %w", err)
	}
	if exists {
		return User{}, ErrEmailTaken
	}
	_, err = r.db.ExecContext(ctx,
		r.rebind("INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)"),
		u.ID, u.Email, u.PasswordHash, u.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return User{}, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// UserByEmail looks up an account.
func (r *Repo) UserByEmail(ctx context.Context, email string) (User, error) {
	var (
		u       User
		created string
	)
	err := r.db.QueryRowContext(ctx,
		r.rebind("SELECT id, email, password_hash, created_at FROM users WHERE email = ?"), email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("loading user: %w", err)
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return u, nil
}

const budgetColumns = "id, month, income, monthly_bills, food, transport, subscriptions, miscellaneous, last_updated, sync_status"

func (r *Repo) budget(ctx context.Context, userID, month string) (model.Budget, error) {
	var (
		b           model.Budget
		lastUpdated string
		status      string
	)
	err := r.db.QueryRowContext(ctx,
		r.rebind("SELECT "+budgetColumns+" FROM budgets WHERE user_id = ? AND month = ?"), userID, month,
	).Scan(&b.ID, &b.Month, &b.Income, &b.MonthlyBills, &b.Food, &b.Transport,
		&b.Subscriptions, &b.Miscellaneous, &lastUpdated, &status)
	if err != nil {
		return model.Budget{}, err
	}
	b.LastUpdated, _ = time.Parse(time.RFC3339Nano, lastUpdated)
	b.SyncStatus = model.SyncStatus(status)
	return b, nil
}

// BudgetFor returns the user's budget for month, creating a zeroed record
// when none exists.
func (r *Repo) BudgetFor(ctx context.Context, userID, month string, now time.Time) (model.Budget, error) {
	b, err := r.budget(ctx, userID, month)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.Budget{}, fmt.Errorf("loading budget: %w", err)
	}

	_, err = r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO budgets (id, user_id, month, last_updated, sync_status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, month) DO NOTHING`),
		uuid.New().String(), userID, month, now.UTC().Format(time.RFC3339Nano), string(model.StatusSynced),
	)
	if err != nil {
		return model.Budget{}, fmt.Errorf("creating budget: %w", err)
	}
	b, err = r.budget(ctx, userID, month)
	if err != nil {
		return model.Budget{}, fmt.Errorf("loading budget: %w", err)
	}
	return b, nil
}

// UpsertBudget overwrites every field of the user's record for b.Month, or
// creates it. The stored lastUpdated is now.
func (r *Repo) UpsertBudget(ctx context.Context, userID string, b model.Budget, now time.Time) (model.Budget, error) {
	_, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO budgets (id, user_id, month, income, monthly_bills, food, transport,
		                     subscriptions, miscellaneous, last_updated, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, month) DO UPDATE SET
			income        = excluded.income,
			monthly_bills = excluded.monthly_bills,
			food          = excluded.food,
			transport     = excluded.transport,
			subscriptions = excluded.subscriptions,
			miscellaneous = excluded.miscellaneous,
			last_updated  = excluded.last_updated,
			sync_status   = excluded.sync_status`),
		uuid.New().String(), userID, b.Month, b.Income, b.MonthlyBills, b.Food, b.Transport,
		b.Subscriptions, b.Miscellaneous, now.UTC().Format(time.RFC3339Nano), string(model.StatusSynced),
	)
	if err != nil {
		return model.Budget{}, fmt.Errorf("upserting budget: %w", err)
	}
	stored, err := r.budget(ctx, userID, b.Month)
	if err != nil {
		return model.Budget{}, fmt.Errorf("loading budget: %w", err)
	}
	return stored, nil
}

// Demo credentials seeded into empty databases.
const (
	DemoEmail    = "hire-me@anshumat.org"
	DemoPassword = "HireMe@2025!"
)

// SeedDemo creates the demo user with a sample budget for the current month
// unless the user already exists.
func (r *Repo) SeedDemo(ctx context.Context, now time.Time) (bool, error) {
	if _, err := r.UserByEmail(ctx, DemoEmail); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrUserNotFound) {
		return false, err
	}

	hash, err := HashPassword(DemoPassword)
	if err != nil {
		return false, err
	}
	u, err := r.CreateUser(ctx, DemoEmail, hash, now)
	if err != nil {
		return false, err
	}
	_, err = r.UpsertBudget(ctx, u.ID, model.Budget{
		Income:        50000,
		MonthlyBills:  15000,
		Food:          8000,
		Transport:     5000,
		Subscriptions: 2000,
		Miscellaneous: 3000,
		Month:         model.MonthOf(now),
	}, now)
	if err != nil {
		return false, err
	}
	return true, nil
}
