package database

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Dialect identifies the SQL flavour an engine speaks. It decides identifier
// quoting, placeholder style and row-limiting syntax.
type Dialect int

const (
	DialectUnknown Dialect = iota
	DialectPostgres
	DialectSQLite
	DialectMySQL
	DialectMSSQL
	DialectOracle
)

func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectSQLite:
		return "sqlite"
	case DialectMySQL:
		return "mysql"
	case DialectMSSQL:
		return "mssql"
	case DialectOracle:
		return "oracle"
	default:
		return "unknown"
	}
}

// ParseDialect maps a driver or dialect name onto a Dialect.
func ParseDialect(name string) Dialect {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pgx":
		return DialectPostgres
	case "sqlite", "sqlite3":
		return DialectSQLite
	case "mysql", "mariadb":
		return DialectMySQL
	case "mssql", "sqlserver":
		return DialectMSSQL
	case "oracle":
		return DialectOracle
	default:
		return DialectUnknown
	}
}

// QuoteIdent wraps a SQL identifier in the dialect's quote characters,
// doubling any embedded quote. Dialects without a specific rule use ANSI
// double quotes.
func (d Dialect) QuoteIdent(name string) string {
	if d == DialectMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Placeholder returns the bind parameter marker for the idx-th argument (1-based).
//
//	Postgres: $1   SQL Server: @p1   Oracle: :1   others: ?
func (d Dialect) Placeholder(idx int) string {
	switch d {
	case DialectPostgres:
		return fmt.Sprintf("$%d", idx)
	case DialectMSSQL:
		return fmt.Sprintf("@p%d", idx)
	case DialectOracle:
		return fmt.Sprintf(":%d", idx)
	default:
		return "?"
	}
}

// SampleQuery returns a statement reading at most n rows of table.
func (d Dialect) SampleQuery(table string, n int) string {
	q := d.QuoteIdent(table)
	switch d {
	case DialectMSSQL:
		return fmt.Sprintf("SELECT TOP %d * FROM %s", n, q)
	case DialectOracle:
		return fmt.Sprintf("SELECT * FROM %s FETCH FIRST %d ROWS ONLY", q, n)
	default:
		return fmt.Sprintf("SELECT * FROM %s LIMIT %d", q, n)
	}
}

// MaxIdentLen is the Postgres identifier length limit in bytes.
const MaxIdentLen = 63

// TruncateIdent cuts name to MaxIdentLen bytes without splitting a UTF-8
// sequence.
func TruncateIdent(name string) string {
	if len(name) <= MaxIdentLen {
		return name
	}
	cut := MaxIdentLen
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}
