package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// DriverName maps a configured store name to the database/sql driver name.
func DriverName(store string) (string, error) {
	switch store {
	case "postgres":
		return DriverPostgres, nil
	case "sqlite", "sqlite3":
		return DriverSQLite, nil
	default:
		return "", fmt.Errorf("unsupported store %q", store)
	}
}

// Connect opens the database, checks it is reachable and applies the schema.
func Connect(driver, dsn string) (*sqlx.DB, error) {
	if driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// sqliteParams turn on WAL, a busy timeout, foreign keys and immediate
// transactions so that concurrent writers queue instead of failing. Each entry
// lists the go-sqlite3 aliases for the same setting.
var sqliteParams = []struct {
	keys  []string
	value string
}{
	{keys: []string{"_journal_mode", "_journal"}, value: "WAL"},
	{keys: []string{"_busy_timeout", "_timeout"}, value: "5000"},
	{keys: []string{"_foreign_keys", "_fk"}, value: "on"},
	{keys: []string{"_txlock"}, value: "immediate"},
}

// sqliteDSN appends the sqliteParams the caller did not set.
func sqliteDSN(dsn string) string {
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	base, query, _ := strings.Cut(dsn, "?")
	present, _ := url.ParseQuery(query)

	params := []string{}
	if query != "" {
		params = append(params, query)
	}
	for _, p := range sqliteParams {
		if !hasAny(present, p.keys) {
			params = append(params, p.keys[0]+"="+p.value)
		}
	}
	return base + "?" + strings.Join(params, "&")
}

func hasAny(values url.Values, keys []string) bool {
	for _, k := range keys {
		if values.Has(k) {
			return true
		}
	}
	return false
}

func runMigrations(ctx context.Context, db *sqlx.DB) error {
	queries := postgresSchema
	if db.DriverName() == DriverSQLite {
		queries = sqliteSchema
	}

	for _, q := range queries {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	return nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS friend_requests (
		id BIGSERIAL PRIMARY KEY,
		from_user_id BIGINT NOT NULL REFERENCES users(id),
		to_user_id BIGINT NOT NULL REFERENCES users(id),
		user_low_id BIGINT NOT NULL,
		user_high_id BIGINT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('pending','accepted','rejected')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (from_user_id <> to_user_id)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS friend_requests_active_pair
		ON friend_requests (user_low_id, user_high_id) WHERE status = 'pending'`,
	`CREATE INDEX IF NOT EXISTS friend_requests_to_status ON friend_requests (to_user_id, status)`,
	`CREATE INDEX IF NOT EXISTS friend_requests_from_status ON friend_requests (from_user_id, status)`,
	`CREATE TABLE IF NOT EXISTS friendships (
		id BIGSERIAL PRIMARY KEY,
		user_low_id BIGINT NOT NULL REFERENCES users(id),
		user_high_id BIGINT NOT NULL REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_low_id, user_high_id),
		CHECK (user_low_id < user_high_id)
	)`,
	`CREATE INDEX IF NOT EXISTS friendships_high ON friendships (user_high_id)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id BIGSERIAL PRIMARY KEY,
		author_id BIGINT NOT NULL REFERENCES users(id),
		content TEXT NOT NULL DEFAULT '',
		media_url TEXT NOT NULL DEFAULT '',
		media_type TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS posts_author_created ON posts (author_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS likes (
		id BIGSERIAL PRIMARY KEY,
		post_id BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		user_id BIGINT NOT NULL REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (post_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id BIGSERIAL PRIMARY KEY,
		post_id BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		author_id BIGINT NOT NULL REFERENCES users(id),
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS comments_post_created ON comments (post_id, created_at)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS friend_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		from_user_id INTEGER NOT NULL REFERENCES users(id),
		to_user_id INTEGER NOT NULL REFERENCES users(id),
		user_low_id INTEGER NOT NULL,
		user_high_id INTEGER NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('pending','accepted','rejected')),
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		CHECK (from_user_id <> to_user_id)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS friend_requests_active_pair
		ON friend_requests (user_low_id, user_high_id) WHERE status = 'pending'`,
	`CREATE INDEX IF NOT EXISTS friend_requests_to_status ON friend_requests (to_user_id, status)`,
	`CREATE INDEX IF NOT EXISTS friend_requests_from_status ON friend_requests (from_user_id, status)`,
	`CREATE TABLE IF NOT EXISTS friendships (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_low_id INTEGER NOT NULL REFERENCES users(id),
		user_high_id INTEGER NOT NULL REFERENCES users(id),
		created_at TIMESTAMP NOT NULL,
		UNIQUE (user_low_id, user_high_id),
		CHECK (user_low_id < user_high_id)
	)`,
	`CREATE INDEX IF NOT EXISTS friendships_high ON friendships (user_high_id)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		author_id INTEGER NOT NULL REFERENCES users(id),
		content TEXT NOT NULL DEFAULT '',
		media_url TEXT NOT NULL DEFAULT '',
		media_type TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS posts_author_created ON posts (author_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS likes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		user_id INTEGER NOT NULL REFERENCES users(id),
		created_at TIMESTAMP NOT NULL,
		UNIQUE (post_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		author_id INTEGER NOT NULL REFERENCES users(id),
		content TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS comments_post_created ON comments (post_id, created_at)`,
}

// IsUniqueViolation reports whether err is a unique/primary key violation from
// either supported driver.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
