package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverName(t *testing.T) {
	name, err := DriverName("sqlite")
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, name)

	name, err = DriverName("postgres")
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, name)

	_, err = DriverName("mysql")
	require.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file:social.db?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate", sqliteDSN("social.db"))
	assert.Equal(t,
		"file:x.db?mode=ro&_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate",
		sqliteDSN("file:x.db?mode=ro"))
	assert.Equal(t,
		"file:x.db?_txlock=deferred&_timeout=100&_journal_mode=WAL&_foreign_keys=on",
		sqliteDSN("x.db?_txlock=deferred&_timeout=100"))
	assert.Equal(t,
		"file:x.db?_journal=DELETE&_fk=1&_busy_timeout=5000&_txlock=immediate",
		sqliteDSN("file:x.db?_journal=DELETE&_fk=1"))
}

func TestConnectSQLiteMigratesAndDetectsUniqueViolation(t *testing.T) {
	conn, err := Connect(DriverSQLite, filepath.Join(t.TempDir(), "social.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// running the schema twice is a no-op
	require.NoError(t, runMigrations(context.Background(), conn))

	insert := `INSERT INTO users (username, email, password_hash, created_at) VALUES (?, ?, ?, ?)`
	_, err = conn.Exec(insert, "alice", "alice@example.com", "x", time.Now().UTC())
	require.NoError(t, err)

	_, err = conn.Exec(insert, "alice", "other@example.com", "x", time.Now().UTC())
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}

func TestIsUniqueViolationPostgres(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(context.Canceled))
}
