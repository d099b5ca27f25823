// Package schema turns a live engine into the schema summary the SQL agent
// reads as context: table names, column names and a few sample rows.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/koustreak/aigis/internal/database"
	"github.com/koustreak/aigis/internal/errs"
	"github.com/koustreak/aigis/internal/logger"
)

// Introspector builds summaries. It holds no per-engine state and is safe
// for concurrent use.
type Introspector struct {
	log *logger.Logger
}

func NewIntrospector(log *logger.Logger) *Introspector {
	if log == nil {
		log = logger.Nop()
	}
	return &Introspector{log: log}
}

// Label is the human-readable name of a dialect.
func Label(d database.Dialect) string {
	switch d {
	case database.DialectPostgres:
		return "PostgreSQL"
	case database.DialectSQLite:
		return "SQLite"
	case database.DialectMSSQL:
		return "SQL Server"
	case database.DialectOracle:
		return "Oracle"
	case database.DialectMySQL:
		return "MySQL"
	default:
		return "Unknown"
	}
}

// Describe summarises the tables of e. When allowed is non-empty only tables
// whose names match one of its entries (case-insensitively) are included.
//
// Describe never fails: a table whose columns or rows cannot be read gets a
// placeholder block, and when no connection can be opened or the table list
// cannot be read the empty Summary is returned.
func (in *Introspector) Describe(ctx context.Context, e *database.Engine, allowed []string) Summary {
	if e == nil {
		return Summary{}
	}
	log := in.log.With().Str("dialect", e.Dialect.String()).Logger()

	conn, err := e.Conn(ctx)
	if err != nil {
		log.WarnWith("schema summary unavailable", err, nil)
		return Summary{}
	}
	defer conn.Close()

	cat := catalogFor(e.Dialect)
	tables, err := cat.listTables(ctx, conn)
	if err != nil {
		log.WarnWith("schema summary unavailable", errs.Wrap(errs.ErrKindIntrospection, "list tables", err), nil)
		return Summary{}
	}
	tables = filterTables(tables, allowed)

	sum := Summary{Label: Label(e.Dialect), Tables: make([]TableBlock, 0, len(tables))}
	for _, t := range tables {
		sum.Tables = append(sum.Tables, in.describeTable(ctx, e, conn, cat, t, log))
	}
	return sum
}

// DescribeText is Describe rendered to text.
func (in *Introspector) DescribeText(ctx context.Context, e *database.Engine, allowed []string) string {
	return in.Describe(ctx, e, allowed).String()
}

func (in *Introspector) describeTable(ctx context.Context, e *database.Engine, conn *sql.Conn,
	cat catalogQueries, table string, log *logger.Logger) TableBlock {

	block := TableBlock{Name: table}

	cols, err := cat.listColumns(ctx, conn, table)
	if err != nil {
		log.WarnWith("column listing failed", errs.Wrap(errs.ErrKindIntrospection, "list columns", err),
			map[string]any{"table": table})
		return block
	}
	if len(cols) == 0 {
		return block
	}
	block.Columns = cols

	stmt := e.Dialect.SampleQuery(table, sampleRows)
	e.Trace(stmt, map[string]any{"table": table})

	rows, err := conn.QueryContext(ctx, stmt)
	if err != nil {
		log.WarnWith("sample rows unavailable", errs.Wrap(errs.ErrKindIntrospection, "sample rows", database.MapError(err, "sample query")),
			map[string]any{"table": table})
		return block
	}
	_, values, err := database.ScanValues(rows, sampleRows)
	if err != nil {
		log.WarnWith("sample rows unavailable", errs.Wrap(errs.ErrKindIntrospection, "sample rows", err),
			map[string]any{"table": table})
		return block
	}

	for _, vals := range values {
		cells := make([]string, len(vals))
		for i, v := range vals {
			cells[i] = cell(v)
		}
		block.Rows = append(block.Rows, cells)
	}
	return block
}

// filterTables keeps the tables named in allowed, in listing order.
func filterTables(tables, allowed []string) []string {
	if len(allowed) == 0 {
		return tables
	}
	want := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		want[strings.ToLower(a)] = struct{}{}
	}
	out := make([]string, 0, len(allowed))
	for _, t := range tables {
		if _, ok := want[strings.ToLower(t)]; ok {
			out = append(out, t)
		}
	}
	return out
}

// cell renders one sample value on a single line. Line breaks become spaces
// and pipes are escaped so a value never adds a row or a column.
func cell(v any) string {
	var s string
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		s = x
	case time.Time:
		s = x.Format("2006-01-02 15:04:05")
	default:
		s = fmt.Sprint(x)
	}
	return strings.ReplaceAll(cellLines.Replace(s), "|", `\|`)
}

var cellLines = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")
