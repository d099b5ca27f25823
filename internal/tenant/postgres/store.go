// Package postgres keeps connection records in the application's own
// Postgres database, next to the tenant schemas of custom connections.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koustreak/aigis/internal/database"
	pgengine "github.com/koustreak/aigis/internal/database/postgres"
	"github.com/koustreak/aigis/internal/errs"
	"github.com/koustreak/aigis/internal/tenant"
)

const (
	defaultMaxConns = 10
	defaultMinConns = 1
	defaultIdleTime = 5 * time.Minute
)

const migration = `
CREATE TABLE IF NOT EXISTS user_connections (
	id                 BIGSERIAL PRIMARY KEY,
	user_id            BIGINT       NOT NULL,
	name               VARCHAR(100) NOT NULL,
	db_type            VARCHAR(20)  NOT NULL,
	encrypted_password BYTEA,
	iv                 BYTEA,
	host               VARCHAR(255),
	port               INTEGER,
	username           VARCHAR(255),
	database_name      VARCHAR(255),
	table_name         VARCHAR(255),
	created_at         TIMESTAMPTZ  NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ  NOT NULL DEFAULT now(),
	CONSTRAINT uq_user_connection_name UNIQUE (user_id, name)
);
CREATE INDEX IF NOT EXISTS ix_user_connections_user_id ON user_connections (user_id)`

// Config locates the store and sizes its pool.
type Config struct {
	Target         database.PostgresTarget
	ConnectTimeout time.Duration
	MaxConns       int32
	MinConns       int32
}

// Store implements tenant.Store on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ tenant.Store = (*Store)(nil)

// New builds the pool, checks it with a ping and runs the migration.
func New(ctx context.Context, cfg Config) (*Store, error) {
	pool, err := buildPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &Store{pool: pool}

	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, migration); err != nil {
		pool.Close()
		return nil, database.MapError(err, "migrate credential store")
	}
	return s, nil
}

func poolConfig(cfg Config) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(pgengine.DSN(cfg.Target, cfg.ConnectTimeout))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, "invalid credential store config", err)
	}
	poolCfg.MaxConns = withDefault(cfg.MaxConns, defaultMaxConns)
	poolCfg.MinConns = withDefault(cfg.MinConns, defaultMinConns)
	poolCfg.MaxConnIdleTime = defaultIdleTime
	return poolCfg, nil
}

func buildPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, database.MapError(err, "open credential store")
	}
	return pool, nil
}

func (s *Store) GetConnection(ctx context.Context, userID, connectionID int64) (*tenant.ConnectionRecord, error) {
	q := `SELECT ` + tenant.RecordColumns + `
		FROM user_connections WHERE id = $1 AND user_id = $2`

	var created, updated time.Time
	rec, err := tenant.ScanRecord(s.pool.QueryRow(ctx, q, connectionID, userID), &created, &updated)
	if err != nil {
		return nil, database.MapError(err, "connection not found")
	}
	rec.CreatedAt, rec.UpdatedAt = created, updated
	return rec, nil
}

func (s *Store) ListConnections(ctx context.Context, userID int64) ([]tenant.ConnectionRecord, error) {
	q := `SELECT ` + tenant.RecordColumns + `
		FROM user_connections WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, database.MapError(err, "list connections")
	}
	defer rows.Close()

	var out []tenant.ConnectionRecord
	for rows.Next() {
		var created, updated time.Time
		rec, err := tenant.ScanRecord(rows, &created, &updated)
		if err != nil {
			return nil, database.MapError(err, "scan connection")
		}
		rec.CreatedAt, rec.UpdatedAt = created, updated
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapError(err, "list connections")
	}
	return out, nil
}

func (s *Store) CreateConnection(ctx context.Context, rec *tenant.ConnectionRecord) error {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO user_connections
			(user_id, name, db_type, encrypted_password, iv, host, port,
			 username, database_name, table_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`,
		rec.UserID, rec.Name, rec.DBKind, nullBytes(rec.EncryptedPassword), nullBytes(rec.IV),
		nullString(rec.Host), nullInt(rec.Port), nullString(rec.Username),
		nullString(rec.DatabaseName), nullString(rec.TableName))

	if err := row.Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return writeError(err, rec.Name, "create connection")
	}
	return nil
}

func (s *Store) UpdateConnection(ctx context.Context, rec *tenant.ConnectionRecord) error {
	row := s.pool.QueryRow(ctx, `
		UPDATE user_connections SET
			name = $1, db_type = $2, encrypted_password = $3, iv = $4, host = $5,
			port = $6, username = $7, database_name = $8, table_name = $9,
			updated_at = now()
		WHERE id = $10 AND user_id = $11
		RETURNING updated_at`,
		rec.Name, rec.DBKind, nullBytes(rec.EncryptedPassword), nullBytes(rec.IV),
		nullString(rec.Host), nullInt(rec.Port), nullString(rec.Username),
		nullString(rec.DatabaseName), nullString(rec.TableName),
		rec.ID, rec.UserID)

	if err := row.Scan(&rec.UpdatedAt); err != nil {
		return writeError(err, rec.Name, "connection not found")
	}
	return nil
}

func (s *Store) DeleteConnection(ctx context.Context, userID, connectionID int64) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM user_connections WHERE id = $1 AND user_id = $2`, connectionID, userID)
	if err != nil {
		return database.MapError(err, "delete connection")
	}
	if tag.RowsAffected() == 0 {
		return errs.New(errs.ErrKindNotFound, "connection not found")
	}
	return nil
}

// EnsureTenantSchema creates the schema that holds a user's imported tables.
func (s *Store) EnsureTenantSchema(ctx context.Context, schema string) error {
	stmt := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{schema}.Sanitize())
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return database.MapError(err, "create tenant schema")
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return database.MapError(err, "ping credential store")
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func writeError(err error, name, msg string) error {
	if database.IsUniqueViolation(err) {
		return errs.Newf(errs.ErrKindInvalidInput, "connection %q already exists", name)
	}
	return database.MapError(err, msg)
}

// withDefault returns val if positive, otherwise returns def
func withDefault(val, def int32) int32 {
	if val <= 0 {
		return def
	}
	return val
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

func nullBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
