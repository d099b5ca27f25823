package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/aigis/internal/database"
	"github.com/koustreak/aigis/internal/errs"
)

func openTemp(t *testing.T) *database.Engine {
	t.Helper()
	e, err := NewOpener(database.DefaultOptions()).Open(context.Background(), database.SQLiteTarget{
		Path: filepath.Join(t.TempDir(), "tenant.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestOpen_Pragmas(t *testing.T) {
	e := openTemp(t)
	assert.Equal(t, database.DialectSQLite, e.Dialect)
	assert.Equal(t, database.KindSQLite, e.Kind)
	assert.Equal(t, 1, e.Stats().MaxOpenConnections)

	ctx := context.Background()
	conn, err := e.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()

	var fk int
	require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	var mode string
	require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestOpen_ForeignKeysEnforced(t *testing.T) {
	e := openTemp(t)
	ctx := context.Background()

	for _, stmt := range []string{
		`CREATE TABLE accounts (id INTEGER PRIMARY KEY)`,
		`CREATE TABLE leads (id INTEGER PRIMARY KEY, account_id INTEGER REFERENCES accounts(id))`,
	} {
		_, err := e.DB.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	_, err := e.DB.ExecContext(ctx, `INSERT INTO leads (id, account_id) VALUES (1, 99)`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FOREIGN KEY")
}

func TestOpen_RejectsOtherTargets(t *testing.T) {
	_, err := NewOpener(database.DefaultOptions()).Open(context.Background(), database.CustomTarget{Schema: "s"})
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))
}

func TestHooks(t *testing.T) {
	hooks := Hooks(defaultBusyTimeout)
	require.Len(t, hooks, 3)
	assert.False(t, hooks[0].Soft, "foreign keys must be enforced")
	assert.True(t, hooks[1].Soft)
}
