// Package resolver turns a connection reference into a ready engine. It is
// the only path from stored records to live connections: describe, execute
// and the connection test all go through Resolve so engine setup is never
// skipped.
package resolver

import (
	"context"

	"github.com/koustreak/aigis/internal/database"
	"github.com/koustreak/aigis/internal/enginecache"
	"github.com/koustreak/aigis/internal/errs"
	"github.com/koustreak/aigis/internal/logger"
	"github.com/koustreak/aigis/internal/metrics"
	"github.com/koustreak/aigis/internal/schema"
	"github.com/koustreak/aigis/internal/secret"
	"github.com/koustreak/aigis/internal/tenant"
)

// Resolution is what Resolve hands to the describe and execute paths.
type Resolution struct {
	Engine    *database.Engine
	Kind      database.Kind
	TableName string
	// AllowedTables restricts introspection of custom connections. Nil
	// means every table visible to the engine.
	AllowedTables []string
	// SecretWarning is set when the stored password could not be decrypted
	// and the engine was built without one.
	SecretWarning error
}

type Resolver struct {
	store     tenant.Lookup
	cipher    secret.Cipher
	masterKey string
	cache     *enginecache.Cache
	intro     *schema.Introspector
	log       *logger.Logger
	rec       metrics.Recorder
}

// Option customises a Resolver.
type Option func(*Resolver)

func WithLogger(l *logger.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

func WithMetrics(rec metrics.Recorder) Option {
	return func(r *Resolver) { r.rec = rec }
}

func WithIntrospector(in *schema.Introspector) Option {
	return func(r *Resolver) { r.intro = in }
}

func New(store tenant.Lookup, cipher secret.Cipher, masterKey string, cache *enginecache.Cache, opts ...Option) *Resolver {
	r := &Resolver{
		store:     store,
		cipher:    cipher,
		masterKey: masterKey,
		cache:     cache,
		log:       logger.Nop(),
		rec:       metrics.Nop(),
	}
	for _, o := range opts {
		o(r)
	}
	if r.intro == nil {
		r.intro = schema.NewIntrospector(r.log)
	}
	return r
}

// Resolve looks up the representative record of ref, decrypts its password
// and returns the cached engine for it. A missing record yields a nil
// Resolution and an errs.ErrKindNotFound error; records are never modified.
func (r *Resolver) Resolve(ctx context.Context, ref Reference) (res *Resolution, err error) {
	done := metrics.TimeOp(r.rec, metrics.OpResolve)
	defer func() { done(err == nil) }()

	if err := ref.Validate(); err != nil {
		return nil, err
	}
	ids := ref.IDs()
	primary := ids[0]
	log := r.log.ForTenant(ref.UserID, primary)

	rec, err := r.lookup(ctx, ref.UserID, primary)
	if err != nil {
		return nil, err
	}

	kind, err := database.ParseKind(rec.DBKind)
	if err != nil {
		return nil, err
	}

	password, warning := r.password(rec, log)
	target, err := database.NewTarget(kind, rec.Host, rec.Port, rec.Username, password, rec.DatabaseName)
	if err != nil {
		return nil, err
	}

	var allowed []string
	if kind == database.KindCustom {
		allowed, err = r.allowedTables(ctx, ref.UserID, rec, ids[1:], log)
		if err != nil {
			return nil, err
		}
	}

	engine, err := r.cache.GetOrCreate(ctx, enginecache.Key{UserID: ref.UserID, ConnectionID: primary}, target)
	if err != nil {
		return nil, err
	}

	return &Resolution{
		Engine:        engine,
		Kind:          kind,
		TableName:     rec.TableName,
		AllowedTables: allowed,
		SecretWarning: warning,
	}, nil
}

func (r *Resolver) lookup(ctx context.Context, userID, connectionID int64) (*tenant.ConnectionRecord, error) {
	rec, err := r.store.GetConnection(ctx, userID, connectionID)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, errs.Wrap(errs.ErrKindNotFound, "no such connection", err)
		}
		return nil, err
	}
	return rec, nil
}

// password decrypts the stored secret. A failure downgrades to no password
// and is reported through the returned warning, a log line and a metric.
func (r *Resolver) password(rec *tenant.ConnectionRecord, log *logger.Logger) (string, error) {
	if !rec.HasPassword() {
		return "", nil
	}
	plain, err := r.cipher.Decrypt(rec.EncryptedPassword, rec.IV, r.masterKey)
	if err == nil {
		return plain, nil
	}

	warning := errs.Wrap(errs.ErrKindSecret, "failed to decrypt stored password", err)
	r.rec.IncSecretFailure()
	log.WarnWith("connecting without password", warning, nil)
	return "", warning
}

// allowedTables collects the bound tables of a custom reference. Every
// sibling must live in the representative's schema, because they all share
// its engine. Siblings that no longer exist are skipped.
func (r *Resolver) allowedTables(ctx context.Context, userID int64, primary *tenant.ConnectionRecord,
	siblings []int64, log *logger.Logger) ([]string, error) {

	var tables []string
	if primary.TableName != "" {
		tables = append(tables, primary.TableName)
	}

	for _, id := range siblings {
		rec, err := r.store.GetConnection(ctx, userID, id)
		if err != nil {
			if errs.IsNotFound(err) {
				log.With().Int64("sibling_id", id).Logger().Warn("sibling connection not found, skipping")
				continue
			}
			return nil, err
		}
		if rec.DBKind != string(database.KindCustom) || rec.DatabaseName != primary.DatabaseName {
			return nil, errs.Newf(errs.ErrKindInvalidInput,
				"connection %d does not share schema %q with connection %d", id, primary.DatabaseName, primary.ID)
		}
		if rec.TableName != "" {
			tables = append(tables, rec.TableName)
		}
	}
	return tables, nil
}

// Describe returns the schema summary for ref, or "" when the reference
// cannot be resolved.
func (r *Resolver) Describe(ctx context.Context, ref Reference) string {
	done := metrics.TimeOp(r.rec, metrics.OpDescribe)

	res, err := r.Resolve(ctx, ref)
	if err != nil {
		r.log.ForTenant(ref.UserID, firstID(ref)).WarnWith("schema summary unavailable", err, nil)
		done(false)
		return ""
	}
	sum := r.intro.Describe(ctx, res.Engine, res.AllowedTables)
	done(!sum.Empty())
	return sum.String()
}

// TestConnection resolves ref and runs SELECT 1 on it. An undecryptable
// password fails the test instead of attempting an unauthenticated login.
func (r *Resolver) TestConnection(ctx context.Context, ref Reference) (err error) {
	done := metrics.TimeOp(r.rec, metrics.OpTest)
	defer func() { done(err == nil) }()

	res, err := r.Resolve(ctx, ref)
	if err != nil {
		return err
	}
	if res.SecretWarning != nil {
		return res.SecretWarning
	}

	conn, err := res.Engine.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	res.Engine.Trace("SELECT 1", map[string]any{"user_id": ref.UserID, "connection_id": firstID(ref)})
	var one int
	if err := conn.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return database.MapError(err, "connection test failed")
	}
	return nil
}

func firstID(ref Reference) int64 {
	if ids := ref.IDs(); len(ids) > 0 {
		return ids[0]
	}
	return 0
}
