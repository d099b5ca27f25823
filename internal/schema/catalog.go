package schema

import (
	"context"
	"database/sql"

	"github.com/koustreak/aigis/internal/database"
)

// catalogQueries lists tables and columns for one dialect. The columns
// statement takes the table name as its only argument.
type catalogQueries struct {
	tables  string
	columns string
}

var catalogs = map[database.Dialect]catalogQueries{
	// current_schema() follows search_path, so custom engines only see
	// their tenant schema.
	database.DialectPostgres: {
		tables: `
			SELECT table_name
			FROM information_schema.tables
			WHERE table_schema = current_schema()
			  AND table_type   = 'BASE TABLE'
			ORDER BY table_name`,
		columns: `
			SELECT column_name
			FROM information_schema.columns
			WHERE table_schema = current_schema()
			  AND table_name   = $1
			ORDER BY ordinal_position`,
	},
	database.DialectSQLite: {
		tables: `
			SELECT name
			FROM sqlite_master
			WHERE type = 'table'
			  AND name NOT LIKE 'sqlite_%'
			ORDER BY name`,
		columns: `SELECT name FROM pragma_table_info(?) ORDER BY cid`,
	},
	database.DialectMySQL: {
		tables: `
			SELECT table_name
			FROM information_schema.tables
			WHERE table_schema = DATABASE()
			  AND table_type   = 'BASE TABLE'
			ORDER BY table_name`,
		columns: `
			SELECT column_name
			FROM information_schema.columns
			WHERE table_schema = DATABASE()
			  AND table_name   = ?
			ORDER BY ordinal_position`,
	},
	database.DialectMSSQL: {
		tables: `
			SELECT TABLE_NAME
			FROM INFORMATION_SCHEMA.TABLES
			WHERE TABLE_TYPE = 'BASE TABLE'
			ORDER BY TABLE_NAME`,
		columns: `
			SELECT COLUMN_NAME
			FROM INFORMATION_SCHEMA.COLUMNS
			WHERE TABLE_NAME = @p1
			ORDER BY ORDINAL_POSITION`,
	},
	database.DialectOracle: {
		tables:  `SELECT table_name FROM user_tables ORDER BY table_name`,
		columns: `SELECT column_name FROM user_tab_columns WHERE table_name = :1 ORDER BY column_id`,
	},
}

// genericCatalog is the ANSI information_schema fallback for dialects
// without a dedicated entry.
var genericCatalog = catalogQueries{
	tables: `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		ORDER BY table_name`,
	columns: `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_name = ?
		ORDER BY ordinal_position`,
}

func catalogFor(d database.Dialect) catalogQueries {
	if c, ok := catalogs[d]; ok {
		return c
	}
	return genericCatalog
}

func (c catalogQueries) listTables(ctx context.Context, conn *sql.Conn) ([]string, error) {
	rows, err := conn.QueryContext(ctx, c.tables)
	if err != nil {
		return nil, database.MapError(err, "list tables")
	}
	return database.ScanStrings(rows)
}

func (c catalogQueries) listColumns(ctx context.Context, conn *sql.Conn, table string) ([]string, error) {
	rows, err := conn.QueryContext(ctx, c.columns, table)
	if err != nil {
		return nil, database.MapError(err, "list columns")
	}
	return database.ScanStrings(rows)
}
