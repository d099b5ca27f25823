package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/koustreak/aigis/internal/errs"
)

// PostgreSQL SQLSTATE codes handled individually.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgInsufficientPrivilege = "42501"
	pgQueryCanceled         = "57014"
	pgUniqueViolation       = "23505"
)

// MySQL error numbers
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	mysqlErrAccessDenied    = 1045
	mysqlErrTableAccess     = 1142
	mysqlErrUnknownDatabase = 1049
	mysqlErrConnRefused     = 2003
	mysqlErrLockWait        = 1205
	mysqlErrDuplicateEntry  = 1062
)

// MapError translates native driver errors into *errs.Error. The driver
// message is kept as the cause so it can be shown to the user verbatim.
func MapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}

	// Context cancellation / deadline exceeded
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	// Postgres server-side error (SQLSTATE codes)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errs.Wrap(classifySQLState(pgErr.Code), msg, err)
	}

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return errs.Wrap(classifyMySQLCode(mysqlErr.Number), msg, err)
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return errs.Wrap(classifySQLiteCode(liteErr.Code()), msg, err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return errs.Wrap(errs.ErrKindTimeout, msg, err)
		}
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	// Fallthrough: connection-level errors (TLS, DSN, auth handshakes)
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

// classifySQLState maps a SQLSTATE onto an error kind.
func classifySQLState(code string) errs.ErrKind {
	switch code {
	case pgInsufficientPrivilege:
		return errs.ErrKindPermissionDenied
	case pgQueryCanceled:
		return errs.ErrKindTimeout
	}
	if len(code) >= 2 {
		switch code[:2] {
		case "08": // connection exception
			return errs.ErrKindConnectionFailed
		case "28": // invalid authorization specification
			return errs.ErrKindPermissionDenied
		}
	}
	return errs.ErrKindQueryFailed
}

func classifyMySQLCode(number uint16) errs.ErrKind {
	switch number {
	case mysqlErrAccessDenied, mysqlErrTableAccess:
		return errs.ErrKindPermissionDenied
	case mysqlErrConnRefused, mysqlErrUnknownDatabase:
		return errs.ErrKindConnectionFailed
	case mysqlErrLockWait:
		return errs.ErrKindTimeout
	default:
		return errs.ErrKindQueryFailed
	}
}

// classifySQLiteCode uses the primary result code (low byte of extended codes).
func classifySQLiteCode(code int) errs.ErrKind {
	switch code & 0xff {
	case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB:
		return errs.ErrKindConnectionFailed
	case sqlite3.SQLITE_PERM, sqlite3.SQLITE_AUTH, sqlite3.SQLITE_READONLY:
		return errs.ErrKindPermissionDenied
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_INTERRUPT:
		return errs.ErrKindTimeout
	default:
		return errs.ErrKindQueryFailed
	}
}

// IsUniqueViolation reports whether err is a unique or primary key
// constraint failure from any supported driver.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrDuplicateEntry
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
