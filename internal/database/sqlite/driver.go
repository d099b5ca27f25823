// Package sqlite opens engines for sqlite connections using the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	litedrv "modernc.org/sqlite"

	"github.com/koustreak/aigis/internal/database"
	"github.com/koustreak/aigis/internal/errs"
)

const defaultBusyTimeout = 5 * time.Second

// Opener builds single-connection sqlite engines.
type Opener struct {
	opts database.Options
}

func NewOpener(opts database.Options) *Opener {
	return &Opener{opts: opts}
}

// Open implements database.Opener. All callers share one physical
// connection; the pool serialises access to it.
func (o *Opener) Open(_ context.Context, target database.Target) (*database.Engine, error) {
	t, ok := target.(database.SQLiteTarget)
	if !ok {
		return nil, errs.Newf(errs.ErrKindConfiguration, "sqlite opener cannot serve %T", target)
	}

	log := o.opts.Log().With().Str("target", database.Redact(t)).Logger()
	connector := database.DSNConnector{DSN: t.Path, Drv: &litedrv.Driver{}}
	db := sql.OpenDB(database.WithConnectHooks(connector, log, Hooks(o.busyTimeout())...))
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return database.NewEngine(db, database.DialectSQLite, database.KindSQLite, o.opts), nil
}

func (o *Opener) busyTimeout() time.Duration {
	if o.opts.AcquireTimeout > 0 && o.opts.AcquireTimeout < defaultBusyTimeout {
		return o.opts.AcquireTimeout
	}
	return defaultBusyTimeout
}

// Hooks returns the per-connection setup: foreign keys are mandatory, WAL
// and the busy timeout are best effort (read-only files cannot switch
// journal mode).
func Hooks(busy time.Duration) []database.ConnectHook {
	return []database.ConnectHook{
		database.ExecHook("foreign_keys", "PRAGMA foreign_keys = ON", false),
		database.ExecHook("journal_mode", "PRAGMA journal_mode = WAL", true),
		database.ExecHook("busy_timeout", fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()), true),
	}
}
