package postgres

import (
	"database/sql"
	"math"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/koustreak/aigis/internal/database"
)

const (
	defaultPort        = 5432
	defaultPoolSize    = 10
	defaultMaxLifetime = 30 * time.Minute
	defaultIdleTime    = 5 * time.Minute
)

// DSN constructs a postgres:// URL for target. The password is left out
// entirely when absent so the server sees a passwordless login attempt.
func DSN(t database.PostgresTarget, connectTimeout time.Duration) string {
	port := t.Port
	if port == 0 {
		port = defaultPort
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(t.Host, strconv.Itoa(port)),
		Path:   "/" + t.Database,
	}
	if t.Username != "" || t.Password != "" {
		if t.Password != "" {
			u.User = url.UserPassword(t.Username, t.Password)
		} else {
			u.User = url.User(t.Username)
		}
	}

	q := url.Values{}
	if t.SSLMode != "" {
		q.Set("sslmode", t.SSLMode)
	}
	if connectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(math.Ceil(connectTimeout.Seconds()))))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// configurePool applies pool sizing: PoolSize idle connections and up to
// PoolSize+MaxOverflow open ones.
func configurePool(db *sql.DB, opts database.Options) {
	size := withDefault(opts.PoolSize, defaultPoolSize)
	db.SetMaxIdleConns(size)
	db.SetMaxOpenConns(size + max(opts.MaxOverflow, 0))
	db.SetConnMaxLifetime(withDefaultDuration(opts.MaxConnLifetime, defaultMaxLifetime))
	db.SetConnMaxIdleTime(withDefaultDuration(opts.MaxConnIdleTime, defaultIdleTime))
}

// withDefault returns val if positive, otherwise returns def
func withDefault(val, def int) int {
	if val <= 0 {
		return def
	}
	return val
}

func withDefaultDuration(val, def time.Duration) time.Duration {
	if val <= 0 {
		return def
	}
	return val
}
