package database

import (
	"time"

	"github.com/koustreak/aigis/internal/logger"
)

// Options holds the pool and timeout settings applied to every engine an
// opener constructs.
type Options struct {
	// PoolSize is the number of idle connections kept per pooled engine.
	PoolSize int
	// MaxOverflow is how many connections may be opened beyond PoolSize.
	MaxOverflow int

	AcquireTimeout  time.Duration // wait for a pooled connection
	ConnectTimeout  time.Duration // driver-level dial timeout
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// Echo logs every statement at debug level.
	Echo   bool
	Logger *logger.Logger
}

// DefaultOptions returns the pool settings used when configuration is silent.
func DefaultOptions() Options {
	return Options{
		PoolSize:        10,
		MaxOverflow:     20,
		AcquireTimeout:  30 * time.Second,
		ConnectTimeout:  10 * time.Second,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
	}
}

// MaxOpen is the hard cap on physical connections of a pooled engine.
func (o Options) MaxOpen() int {
	return o.PoolSize + o.MaxOverflow
}

// Log returns the configured logger or a discarding one.
func (o Options) Log() *logger.Logger {
	if o.Logger == nil {
		return logger.Nop()
	}
	return o.Logger
}
