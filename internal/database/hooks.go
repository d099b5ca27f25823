package database

import (
	"context"
	"database/sql/driver"

	"github.com/koustreak/aigis/internal/errs"
	"github.com/koustreak/aigis/internal/logger"
)

// ConnectHook runs once on every new physical connection, before the pool
// hands it to anyone. Session settings that pooled connections must carry
// (search_path, pragmas) belong here rather than at engine construction.
type ConnectHook struct {
	Name string
	Run  func(ctx context.Context, conn driver.Conn) error
	// Soft hooks log their failure and let the connection through.
	Soft bool
}

// ExecHook returns a hook that executes statement on the raw connection.
func ExecHook(name, statement string, soft bool) ConnectHook {
	return ConnectHook{
		Name: name,
		Soft: soft,
		Run: func(ctx context.Context, conn driver.Conn) error {
			return ExecDriver(ctx, conn, statement)
		},
	}
}

// ExecDriver runs a statement without arguments on a driver-level connection.
func ExecDriver(ctx context.Context, conn driver.Conn, statement string) error {
	if ex, ok := conn.(driver.ExecerContext); ok {
		_, err := ex.ExecContext(ctx, statement, nil)
		return err
	}
	stmt, err := conn.Prepare(statement)
	if err != nil {
		return err
	}
	defer stmt.Close()
	_, err = stmt.Exec(nil)
	return err
}

// WithConnectHooks wraps base so that hooks run on each connection it opens.
func WithConnectHooks(base driver.Connector, log *logger.Logger, hooks ...ConnectHook) driver.Connector {
	if len(hooks) == 0 {
		return base
	}
	if log == nil {
		log = logger.Nop()
	}
	return &hookConnector{base: base, hooks: hooks, log: log}
}

type hookConnector struct {
	base  driver.Connector
	hooks []ConnectHook
	log   *logger.Logger
}

func (c *hookConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.base.Connect(ctx)
	if err != nil {
		return nil, err
	}
	for _, h := range c.hooks {
		err := h.Run(ctx, conn)
		if err == nil {
			continue
		}
		if h.Soft {
			c.log.WarnWith("connect hook failed, continuing without it", err, map[string]any{"hook": h.Name})
			continue
		}
		_ = conn.Close()
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "connect hook "+h.Name+" failed", err)
	}
	return conn, nil
}

func (c *hookConnector) Driver() driver.Driver {
	return c.base.Driver()
}

// DSNConnector adapts a driver that only implements Open(name) into a
// driver.Connector.
type DSNConnector struct {
	DSN string
	Drv driver.Driver
}

func (c DSNConnector) Connect(_ context.Context) (driver.Conn, error) {
	return c.Drv.Open(c.DSN)
}

func (c DSNConnector) Driver() driver.Driver {
	return c.Drv
}
