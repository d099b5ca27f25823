package query

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/aigis/internal/database"
	"github.com/koustreak/aigis/internal/database/sqlite"
	"github.com/koustreak/aigis/internal/enginecache"
	"github.com/koustreak/aigis/internal/errs"
	"github.com/koustreak/aigis/internal/resolver"
	"github.com/koustreak/aigis/internal/secret"
	"github.com/koustreak/aigis/internal/tenant"
)

type memLookup map[int64]tenant.ConnectionRecord

func (m memLookup) GetConnection(_ context.Context, userID, id int64) (*tenant.ConnectionRecord, error) {
	r, ok := m[id]
	if !ok || r.UserID != userID {
		return nil, errs.New(errs.ErrKindNotFound, "connection not found")
	}
	return &r, nil
}

var ref = resolver.Reference{UserID: 1, ConnectionID: 10}

// newExecutor wires a real resolver and cache around one sqlite tenant
// database holding leads(id, name) = (1, Ann), (2, Bo).
func newExecutor(t *testing.T) *Executor {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leads.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE leads (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO leads VALUES (1, 'Ann'), (2, 'Bo')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store := memLookup{10: {ID: 10, UserID: 1, Name: "leads", DBKind: "sqlite", Host: path}}
	cache := enginecache.New(sqlite.NewOpener(database.DefaultOptions()))
	t.Cleanup(func() { _ = cache.DisposeAll() })

	return NewExecutor(resolver.New(store, secret.AESGCM{}, "k", cache))
}

func TestExecute_EndToEndCount(t *testing.T) {
	x := newExecutor(t)

	text, err := x.Run(context.Background(), ref, "SELECT COUNT(*) AS n FROM leads")
	require.NoError(t, err)
	assert.JSONEq(t, `{"columns": ["n"], "rows": [{"n": 2}]}`, text)
}

func TestExecute_CapsRows(t *testing.T) {
	x := newExecutor(t)

	out, err := x.Execute(context.Background(), ref, `
		WITH RECURSIVE seq(n) AS (SELECT 1 UNION ALL SELECT n + 1 FROM seq WHERE n < 200)
		SELECT n FROM seq`)
	require.NoError(t, err)
	assert.True(t, out.Returned)
	assert.Len(t, out.Rows, MaxRows)
	assert.Equal(t, []string{"n"}, out.Columns)
}

func TestExecute_ZeroRowsHasNoColumns(t *testing.T) {
	x := newExecutor(t)

	text, err := x.Run(context.Background(), ref, "SELECT id, name FROM leads WHERE id > 100")
	require.NoError(t, err)
	assert.JSONEq(t, `{"columns": [], "rows": []}`, text)
}

func TestExecute_RowCountForDML(t *testing.T) {
	x := newExecutor(t)
	ctx := context.Background()

	text, err := x.Run(ctx, ref, "INSERT INTO leads (name) VALUES ('Cy'), ('Di')")
	require.NoError(t, err)
	assert.JSONEq(t, `{"rowcount": 2}`, text)

	text, err = x.Run(ctx, ref, "UPDATE leads SET name = 'Ann' WHERE id = 999")
	require.NoError(t, err)
	assert.JSONEq(t, `{"rowcount": 0}`, text)

	out, err := x.Execute(ctx, ref, "DELETE FROM leads WHERE id = 1 RETURNING name")
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"name": "Ann"}}, out.Rows)
}

func TestExecute_RowCountForKeywordLookalikes(t *testing.T) {
	x := newExecutor(t)
	ctx := context.Background()

	text, err := x.Run(ctx, ref, "UPDATE leads SET name = 'returning customer' WHERE id = 1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"rowcount": 1}`, text)

	text, err = x.Run(ctx, ref, "WITH gone AS (SELECT 2 AS id) DELETE FROM leads WHERE id IN (SELECT id FROM gone)")
	require.NoError(t, err)
	assert.JSONEq(t, `{"rowcount": 1}`, text)

	text, err = x.Run(ctx, ref, "WITH keep AS (SELECT 1 AS id) SELECT name FROM leads WHERE id IN (SELECT id FROM keep)")
	require.NoError(t, err)
	assert.JSONEq(t, `{"columns": ["name"], "rows": [{"name": "returning customer"}]}`, text)
}

func TestExecute_ColumnlessResultIsRowCount(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	e := database.NewEngine(db, database.DialectPostgres, database.KindPostgres, database.Options{})
	t.Cleanup(func() { _ = e.Close() })

	mock.ExpectQuery("SELECT pg_sleep(0)").WillReturnRows(sqlmock.NewRows([]string{}))

	out, err := NewExecutor(nil).run(context.Background(), e, "SELECT pg_sleep(0)", nil)
	require.NoError(t, err)
	assert.False(t, out.Returned)
	assert.Nil(t, out.RowCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_FailuresAreValues(t *testing.T) {
	x := newExecutor(t)
	ctx := context.Background()

	out, err := x.Execute(ctx, ref, "SELEC nonsense")
	assert.Nil(t, out)
	require.Error(t, err)
	assert.Contains(t, errs.UserMessage(err), "query failed to execute: ")
	assert.Contains(t, errs.UserMessage(err), "syntax error")

	out, err = x.Execute(ctx, ref, "SELECT * FROM missing_table")
	assert.Nil(t, out)
	assert.True(t, errs.IsQueryFailed(err))

	out, err = x.Execute(ctx, resolver.Reference{UserID: 1, ConnectionID: 11}, "SELECT 1")
	assert.Nil(t, out)
	assert.True(t, errs.IsNotFound(err))
}

func TestExecute_ExactlyOneResult(t *testing.T) {
	x := newExecutor(t)
	inputs := []struct {
		ref resolver.Reference
		sql string
	}{
		{ref, "SELECT * FROM leads"},
		{ref, "CREATE TABLE t2 (a INTEGER)"},
		{ref, "DROP TABLE nope"},
		{ref, "   "},
		{ref, "-- comment only"},
		{resolver.Reference{}, "SELECT 1"},
		{resolver.Reference{UserID: 2, ConnectionID: 10}, "SELECT 1"},
	}
	for _, in := range inputs {
		out, err := x.Execute(context.Background(), in.ref, in.sql)
		assert.True(t, (out == nil) != (err == nil), "sql=%q out=%v err=%v", in.sql, out, err)
	}
}

func TestReturnsRows(t *testing.T) {
	tests := map[string]bool{
		"select 1":                                                              true,
		"  (SELECT 1) UNION (SELECT 2)":                                         true,
		"-- note\nSELECT 1":                                                     true,
		"/* hint */ with x as (select 1) select":                                true,
		"PRAGMA table_info(t)":                                                  true,
		"EXPLAIN SELECT 1":                                                      true,
		"INSERT INTO t VALUES (1)":                                              false,
		"insert into t values (1) returning id":                                 true,
		"UPDATE t SET a = 'returning' WHERE b = 1":                              false,
		"UPDATE t SET returning_flag = 1":                                       false,
		`UPDATE t SET "RETURNING" = 1`:                                          false,
		"UPDATE t SET a = 'it''s' RETURNING a":                                  true,
		"WITH g AS (SELECT 1) DELETE FROM t":                                    false,
		"WITH g AS (DELETE FROM t RETURNING id) INSERT INTO u SELECT id FROM g": false,
		"WITH g AS (SELECT 1) UPDATE t SET a = 1 RETURNING a":                   true,
		"WITH RECURSIVE s(n) AS (SELECT 1) SELECT n FROM s":                     true,
		"CREATE TABLE t (a int)":                                                false,
		"DELETE FROM t":                                                         false,
		"":                                                                      false,
	}
	for in, want := range tests {
		assert.Equal(t, want, returnsRows(in), in)
	}
}

func TestOutcomeText(t *testing.T) {
	text, err := Outcome{}.Text()
	require.NoError(t, err)
	assert.Equal(t, `{"rowcount":null}`, text)

	text, err = Outcome{Returned: true}.Text()
	require.NoError(t, err)
	assert.Equal(t, `{"columns":[],"rows":[]}`, text)

	_, err = Outcome{Returned: true, Columns: []string{"c"}, Rows: []map[string]any{{"c": make(chan int)}}}.Text()
	assert.True(t, errs.IsQueryFailed(err))
}

type failingResolver struct{}

func (failingResolver) Resolve(context.Context, resolver.Reference) (*resolver.Resolution, error) {
	return nil, errs.Wrap(errs.ErrKindConnectionFailed, "resolve", errors.New("dial tcp: connection refused"))
}

func TestExecute_ResolveFailure(t *testing.T) {
	x := NewExecutor(failingResolver{})
	_, err := x.Run(context.Background(), ref, "SELECT 1")
	require.Error(t, err)
	assert.Equal(t, "query failed to execute: dial tcp: connection refused", errs.UserMessage(err))
}
