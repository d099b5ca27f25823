package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/aigis/internal/config"
	"github.com/koustreak/aigis/internal/tenant"
)

func useSQLiteConfig(t *testing.T) {
	t.Helper()
	cfg := config.Default()
	cfg.MasterKey = "test-master-key"
	cfg.Store = config.StoreConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "store.db")}
	cfg.Log.Output = io.Discard

	prev := loadConfig
	loadConfig = func(string) (config.Config, error) { return cfg, nil }
	t.Cleanup(func() { loadConfig = prev })
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func tenantDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crm.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE contacts (id INTEGER PRIMARY KEY, email TEXT); INSERT INTO contacts (email) VALUES ('a@x.io')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	return path
}

func TestCLI_ConnectionLifecycle(t *testing.T) {
	useSQLiteConfig(t)
	path := tenantDB(t)

	out, err := run(t, "conn", "add", "--user", "4", "--name", "crm", "--kind", "SQLite", "--host", path, "--password", "pw")
	require.NoError(t, err)
	var view tenant.SafeView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "sqlite", view.DBKind)
	assert.True(t, view.HasPassword)
	id := strconv.FormatInt(view.ID, 10)

	out, err = run(t, "conn", "list", "--user", "4")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "crm"`)
	assert.NotContains(t, out, "pw")

	out, err = run(t, "test", "--user", "4", "--conn", id)
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)

	out, err = run(t, "describe", "--user", "4", "--conn", id)
	require.NoError(t, err)
	assert.Contains(t, out, "### contacts")
	assert.Contains(t, out, "| a@x.io |")

	out, err = run(t, "exec", "--user", "4", "--conn", id, "--sql", "SELECT email FROM contacts")
	require.NoError(t, err)
	assert.JSONEq(t, `{"columns":["email"],"rows":[{"email":"a@x.io"}]}`, out)

	out, err = run(t, "ask", "--user", "4", "--conn", id, "--sql", "SELECT nope FROM contacts")
	require.NoError(t, err)
	assert.Contains(t, out, `"error": "query failed to execute: `)

	_, err = run(t, "exec", "--user", "5", "--conn", id, "--sql", "SELECT 1")
	assert.EqualError(t, err, "no such connection")

	_, err = run(t, "conn", "rm", "--user", "4", id)
	require.NoError(t, err)
	_, err = run(t, "describe", "--user", "4", "--conn", id)
	assert.EqualError(t, err, "schema summary unavailable")
}

func TestCLI_RejectsBadConfig(t *testing.T) {
	prev := loadConfig
	loadConfig = func(string) (config.Config, error) { return config.Default(), nil }
	t.Cleanup(func() { loadConfig = prev })

	_, err := run(t, "conn", "list", "--user", "1")
	assert.ErrorContains(t, err, "master key is required")
}

func TestCLI_SchemaName(t *testing.T) {
	out, err := run(t, "schema-name", "--email", "Ann.Lee@Example.com", "--user", "12")
	require.NoError(t, err)
	assert.Equal(t, tenant.SchemaName("Ann.Lee@Example.com", 12)+"\n", out)
}
