package database

import (
	"fmt"
	"strings"

	"github.com/koustreak/aigis/internal/errs"
)

// Kind is the closed set of connection kinds a tenant can register.
type Kind string

const (
	KindSQLite   Kind = "sqlite"
	KindPostgres Kind = "postgres"
	// KindCustom is a CSV-imported table living in a per-tenant schema of the
	// application's own Postgres database.
	KindCustom Kind = "custom"
)

// ParseKind validates a stored db_kind value.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindSQLite, KindPostgres, KindCustom:
		return k, nil
	default:
		return "", errs.Newf(errs.ErrKindConfiguration, "unsupported db kind %q", s)
	}
}

// Target describes where an engine connects. Exactly one of SQLiteTarget,
// PostgresTarget and CustomTarget; each carries only the fields its kind uses.
type Target interface {
	Kind() Kind
	isTarget()
}

// SQLiteTarget is a database file on local disk.
type SQLiteTarget struct {
	Path string
}

// PostgresTarget is a tenant-hosted Postgres database. An empty Password
// means the DSN carries no password at all.
type PostgresTarget struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string
	SSLMode  string
}

// CustomTarget is a schema inside the application database. It has no host
// or credentials of its own.
type CustomTarget struct {
	Schema string
}

func (SQLiteTarget) Kind() Kind   { return KindSQLite }
func (PostgresTarget) Kind() Kind { return KindPostgres }
func (CustomTarget) Kind() Kind   { return KindCustom }

func (SQLiteTarget) isTarget()   {}
func (PostgresTarget) isTarget() {}
func (CustomTarget) isTarget()   {}

// NewTarget builds the target for kind from the flat fields of a stored
// connection record. Missing required fields and unknown kinds are
// configuration errors.
func NewTarget(kind Kind, host string, port int, username, password, databaseName string) (Target, error) {
	switch kind {
	case KindSQLite:
		if strings.TrimSpace(host) == "" {
			return nil, errs.New(errs.ErrKindConfiguration, "sqlite connection requires a file path")
		}
		return SQLiteTarget{Path: host}, nil
	case KindPostgres:
		if strings.TrimSpace(host) == "" {
			return nil, errs.New(errs.ErrKindConfiguration, "postgres connection requires a host")
		}
		if strings.TrimSpace(databaseName) == "" {
			return nil, errs.New(errs.ErrKindConfiguration, "postgres connection requires a database name")
		}
		if port < 0 || port > 65535 {
			return nil, errs.Newf(errs.ErrKindConfiguration, "invalid postgres port %d", port)
		}
		return PostgresTarget{
			Host:     host,
			Port:     port,
			Username: username,
			Password: password,
			Database: databaseName,
		}, nil
	case KindCustom:
		if strings.TrimSpace(databaseName) == "" {
			return nil, errs.New(errs.ErrKindConfiguration, "custom connection requires a schema name")
		}
		return CustomTarget{Schema: databaseName}, nil
	default:
		return nil, errs.Newf(errs.ErrKindConfiguration, "unsupported db kind %q", string(kind))
	}
}

// Redact renders a target for log lines without credentials.
func Redact(t Target) string {
	switch v := t.(type) {
	case SQLiteTarget:
		return "sqlite:" + v.Path
	case PostgresTarget:
		return fmt.Sprintf("postgres://%s:%d/%s", v.Host, v.Port, v.Database)
	case CustomTarget:
		return "custom:" + v.Schema
	default:
		return "unknown"
	}
}
