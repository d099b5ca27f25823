package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/koustreak/aigis/internal/errs"
	"github.com/koustreak/aigis/internal/logger"
)

// Engine is a live, poolable handle to one tenant database. Engines are
// owned by the engine cache; callers borrow connections through Conn and
// never close the engine themselves.
type Engine struct {
	DB      *sql.DB
	Dialect Dialect
	Kind    Kind
	// Schema is the search_path schema of a custom engine, empty otherwise.
	Schema string

	acquireTimeout time.Duration
	prePing        bool
	echo           bool
	log            *logger.Logger
}

// EngineOption customises NewEngine.
type EngineOption func(*Engine)

// WithSchema records the tenant schema of a custom engine.
func WithSchema(schema string) EngineOption {
	return func(e *Engine) { e.Schema = schema }
}

// WithPrePing makes Conn verify every borrowed connection before handing it out.
func WithPrePing() EngineOption {
	return func(e *Engine) { e.prePing = true }
}

// NewEngine wraps an opened *sql.DB. It does not connect.
func NewEngine(db *sql.DB, dialect Dialect, kind Kind, opts Options, extra ...EngineOption) *Engine {
	e := &Engine{
		DB:             db,
		Dialect:        dialect,
		Kind:           kind,
		acquireTimeout: opts.AcquireTimeout,
		echo:           opts.Echo,
		log:            opts.Log().With().Str("dialect", dialect.String()).Str("kind", string(kind)).Logger(),
	}
	for _, o := range extra {
		o(e)
	}
	return e
}

// Conn borrows one connection from the pool. Waiting for a free connection
// is bounded by the acquire timeout; the returned connection is not tied to
// that deadline. The caller must Close it.
func (e *Engine) Conn(ctx context.Context) (*sql.Conn, error) {
	conn, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	if !e.prePing {
		return conn, nil
	}
	if err := conn.PingContext(ctx); err == nil {
		return conn, nil
	}
	// The pool discards a connection whose ping failed. Retry once.
	_ = conn.Close()
	conn, err = e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, MapError(err, "connection health check failed")
	}
	return conn, nil
}

func (e *Engine) acquire(ctx context.Context) (*sql.Conn, error) {
	actx := ctx
	if e.acquireTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, e.acquireTimeout)
		defer cancel()
	}
	conn, err := e.DB.Conn(actx)
	if err != nil {
		if ctx.Err() == nil && actx.Err() != nil {
			return nil, errs.Wrap(errs.ErrKindTimeout, "timed out waiting for a pooled connection", err)
		}
		return nil, MapError(err, "failed to open connection")
	}
	return conn, nil
}

// Trace logs statement at debug level when echo is enabled.
func (e *Engine) Trace(statement string, fields map[string]any) {
	if !e.echo {
		return
	}
	if fields == nil {
		fields = map[string]any{}
	}
	fields["sql"] = statement
	e.log.DebugWith("sql", fields)
}

// Stats exposes the pool counters of the underlying *sql.DB.
func (e *Engine) Stats() sql.DBStats {
	return e.DB.Stats()
}

// Close releases every pooled connection.
func (e *Engine) Close() error {
	return e.DB.Close()
}
