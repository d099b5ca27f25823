// Package postgres opens engines for the postgres and custom connection
// kinds on top of pgx's database/sql driver.
package postgres

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/koustreak/aigis/internal/database"
	"github.com/koustreak/aigis/internal/errs"
)

// Opener builds pooled engines. Tenant-hosted databases get their own DSN;
// custom connections share the application database and are scoped by a
// per-connection search_path.
type Opener struct {
	app  database.PostgresTarget
	opts database.Options
}

// NewOpener returns an Opener. app locates the application database used by
// the custom kind; it may be zero when custom connections are not served.
func NewOpener(app database.PostgresTarget, opts database.Options) *Opener {
	return &Opener{app: app, opts: opts}
}

// Open implements database.Opener. It never dials: connection errors surface
// when the engine is first used.
func (o *Opener) Open(_ context.Context, target database.Target) (*database.Engine, error) {
	switch t := target.(type) {
	case database.PostgresTarget:
		return o.open(t, database.KindPostgres, "")
	case database.CustomTarget:
		if o.app.Host == "" || o.app.Database == "" {
			return nil, errs.New(errs.ErrKindConfiguration, "application database is not configured for custom connections")
		}
		return o.open(o.app, database.KindCustom, database.TruncateIdent(t.Schema))
	default:
		return nil, errs.Newf(errs.ErrKindConfiguration, "postgres opener cannot serve %T", target)
	}
}

func (o *Opener) open(t database.PostgresTarget, kind database.Kind, schema string) (*database.Engine, error) {
	cfg, err := pgx.ParseConfig(DSN(t, o.opts.ConnectTimeout))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, "invalid postgres connection settings", err)
	}

	log := o.opts.Log().With().Str("target", database.Redact(t)).Logger()

	var hooks []database.ConnectHook
	if schema != "" {
		hooks = append(hooks, SearchPathHook(schema))
		log = log.With().Str("schema", schema).Logger()
	}

	db := sql.OpenDB(database.WithConnectHooks(stdlib.GetConnector(*cfg), log, hooks...))
	configurePool(db, o.opts)

	extra := []database.EngineOption{database.WithPrePing()}
	if schema != "" {
		extra = append(extra, database.WithSchema(schema))
	}
	return database.NewEngine(db, database.DialectPostgres, kind, o.opts, extra...), nil
}

// SearchPathHook pins every new physical connection to schema. It is soft: a
// failed SET leaves the connection on the default search_path instead of
// refusing it.
func SearchPathHook(schema string) database.ConnectHook {
	stmt := "SET search_path TO " + database.DialectPostgres.QuoteIdent(database.TruncateIdent(schema))
	return database.ExecHook("search_path", stmt, true)
}
