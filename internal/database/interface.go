package database

import (
	"context"

	"github.com/koustreak/aigis/internal/errs"
)

// Opener constructs an engine for a target. Implementations live in the
// driver subpackages; callers above this package only see this contract.
type Opener interface {
	Open(ctx context.Context, target Target) (*Engine, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, target Target) (*Engine, error)

func (f OpenerFunc) Open(ctx context.Context, target Target) (*Engine, error) {
	return f(ctx, target)
}

// Router dispatches to the opener registered for the target's kind.
type Router map[Kind]Opener

func (r Router) Open(ctx context.Context, target Target) (*Engine, error) {
	if target == nil {
		return nil, errs.New(errs.ErrKindConfiguration, "missing connection target")
	}
	o, ok := r[target.Kind()]
	if !ok {
		return nil, errs.Newf(errs.ErrKindConfiguration, "unsupported database type %q", string(target.Kind()))
	}
	return o.Open(ctx, target)
}

// Rows is the subset of *sql.Rows that ScanRows reads.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Close() error
	Err() error
}
