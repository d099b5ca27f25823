// Package sqlite is a single-file credential store for local and embedded
// deployments. It creates its table on open.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/koustreak/aigis/internal/database"
	"github.com/koustreak/aigis/internal/errs"
	"github.com/koustreak/aigis/internal/tenant"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_connections (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id            INTEGER NOT NULL,
	name               TEXT    NOT NULL,
	db_type            TEXT    NOT NULL,
	encrypted_password BLOB,
	iv                 BLOB,
	host               TEXT,
	port               INTEGER,
	username           TEXT,
	database_name      TEXT,
	table_name         TEXT,
	created_at         INTEGER NOT NULL,
	updated_at         INTEGER NOT NULL,
	UNIQUE (user_id, name)
);
CREATE INDEX IF NOT EXISTS ix_user_connections_user_id ON user_connections (user_id);`

// Store implements tenant.Store on a sqlite file. Timestamps are stored as
// unix microseconds.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ tenant.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, "open credential store", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, database.MapError(err, "migrate credential store")
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) GetConnection(ctx context.Context, userID, connectionID int64) (*tenant.ConnectionRecord, error) {
	q := `SELECT ` + tenant.RecordColumns + `
		FROM user_connections WHERE id = ? AND user_id = ?`

	var created, updated int64
	rec, err := tenant.ScanRecord(s.db.QueryRowContext(ctx, q, connectionID, userID), &created, &updated)
	if err != nil {
		return nil, database.MapError(err, "connection not found")
	}
	rec.CreatedAt, rec.UpdatedAt = time.UnixMicro(created), time.UnixMicro(updated)
	return rec, nil
}

func (s *Store) ListConnections(ctx context.Context, userID int64) ([]tenant.ConnectionRecord, error) {
	q := `SELECT ` + tenant.RecordColumns + `
		FROM user_connections WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, database.MapError(err, "list connections")
	}
	defer rows.Close()

	var out []tenant.ConnectionRecord
	for rows.Next() {
		var created, updated int64
		rec, err := tenant.ScanRecord(rows, &created, &updated)
		if err != nil {
			return nil, database.MapError(err, "scan connection")
		}
		rec.CreatedAt, rec.UpdatedAt = time.UnixMicro(created), time.UnixMicro(updated)
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapError(err, "list connections")
	}
	return out, nil
}

func (s *Store) CreateConnection(ctx context.Context, rec *tenant.ConnectionRecord) error {
	now := s.now().UTC().Truncate(time.Microsecond)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO user_connections
			(user_id, name, db_type, encrypted_password, iv, host, port,
			 username, database_name, table_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.Name, rec.DBKind, nullBytes(rec.EncryptedPassword), nullBytes(rec.IV),
		nullString(rec.Host), nullInt(rec.Port), nullString(rec.Username),
		nullString(rec.DatabaseName), nullString(rec.TableName),
		now.UnixMicro(), now.UnixMicro())
	if err != nil {
		if database.IsUniqueViolation(err) {
			return errs.Newf(errs.ErrKindInvalidInput, "connection %q already exists", rec.Name)
		}
		return database.MapError(err, "create connection")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return database.MapError(err, "create connection")
	}
	rec.ID, rec.CreatedAt, rec.UpdatedAt = id, now, now
	return nil
}

func (s *Store) UpdateConnection(ctx context.Context, rec *tenant.ConnectionRecord) error {
	now := s.now().UTC().Truncate(time.Microsecond)
	res, err := s.db.ExecContext(ctx, `
		UPDATE user_connections SET
			name = ?, db_type = ?, encrypted_password = ?, iv = ?, host = ?, port = ?,
			username = ?, database_name = ?, table_name = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		rec.Name, rec.DBKind, nullBytes(rec.EncryptedPassword), nullBytes(rec.IV),
		nullString(rec.Host), nullInt(rec.Port), nullString(rec.Username),
		nullString(rec.DatabaseName), nullString(rec.TableName), now.UnixMicro(),
		rec.ID, rec.UserID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return errs.Newf(errs.ErrKindInvalidInput, "connection %q already exists", rec.Name)
		}
		return database.MapError(err, "update connection")
	}
	if err := expectOne(res); err != nil {
		return err
	}
	rec.UpdatedAt = now
	return nil
}

func (s *Store) DeleteConnection(ctx context.Context, userID, connectionID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_connections WHERE id = ? AND user_id = ?`, connectionID, userID)
	if err != nil {
		return database.MapError(err, "delete connection")
	}
	return expectOne(res)
}

func (s *Store) Ping(ctx context.Context) error {
	return database.MapError(s.db.PingContext(ctx), "ping credential store")
}

func (s *Store) Close() {
	_ = s.db.Close()
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return database.MapError(err, "rows affected")
	}
	if n == 0 {
		return errs.New(errs.ErrKindNotFound, "connection not found")
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
