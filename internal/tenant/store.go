package tenant

import "context"

// Store persists connection records. Every method runs in its own short
// transaction; nothing is held open between calls.
type Store interface {
	// GetConnection returns the record owned by userID, or an
	// errs.ErrKindNotFound error.
	GetConnection(ctx context.Context, userID, connectionID int64) (*ConnectionRecord, error)
	// ListConnections returns the user's records, newest first.
	ListConnections(ctx context.Context, userID int64) ([]ConnectionRecord, error)
	// CreateConnection inserts rec and fills its ID and timestamps.
	CreateConnection(ctx context.Context, rec *ConnectionRecord) error
	// UpdateConnection overwrites the mutable fields of an existing record.
	UpdateConnection(ctx context.Context, rec *ConnectionRecord) error
	DeleteConnection(ctx context.Context, userID, connectionID int64) error
	Ping(ctx context.Context) error
	Close()
}

// Lookup is the read-only slice of Store the resolver depends on.
type Lookup interface {
	GetConnection(ctx context.Context, userID, connectionID int64) (*ConnectionRecord, error)
}

// RecordColumns is the select list shared by the store implementations, in
// the order ScanRecord expects.
const RecordColumns = `id, user_id, name, db_type, COALESCE(host, ''), COALESCE(port, 0),
	COALESCE(username, ''), encrypted_password, iv, COALESCE(database_name, ''),
	COALESCE(table_name, ''), created_at, updated_at`

// Scanner is satisfied by *sql.Row, *sql.Rows and pgx.Row.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanRecord reads one row selected with RecordColumns. Timestamps go to
// the caller's destinations so each store can use its own column type.
func ScanRecord(s Scanner, created, updated any) (*ConnectionRecord, error) {
	var r ConnectionRecord
	err := s.Scan(&r.ID, &r.UserID, &r.Name, &r.DBKind, &r.Host, &r.Port,
		&r.Username, &r.EncryptedPassword, &r.IV, &r.DatabaseName,
		&r.TableName, created, updated)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
