// Package tenant stores the per-user connection records the resolver reads
// and implements the registration path that writes them.
package tenant

import (
	"strings"
	"time"

	"github.com/koustreak/aigis/internal/database"
	"github.com/koustreak/aigis/internal/errs"
)

const maxNameLen = 100

// ConnectionRecord is one user-registered data source. Empty strings, a zero
// port and nil byte slices mean the field is absent.
type ConnectionRecord struct {
	ID     int64
	UserID int64
	Name   string
	// DBKind is sqlite, postgres or custom.
	DBKind string
	// Host is a network host, or the file path of a sqlite database.
	Host     string
	Port     int
	Username string

	EncryptedPassword []byte
	IV                []byte

	// DatabaseName is the database, or for custom connections the tenant schema.
	DatabaseName string
	// TableName restricts a custom connection to one imported table.
	TableName string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPassword reports whether an encrypted password is stored.
func (r *ConnectionRecord) HasPassword() bool {
	return len(r.EncryptedPassword) > 0 && len(r.IV) > 0
}

// Validate checks the invariants every stored record must satisfy.
func (r *ConnectionRecord) Validate() error {
	name := strings.TrimSpace(r.Name)
	if name == "" || len(name) > maxNameLen {
		return errs.Newf(errs.ErrKindInvalidInput, "connection name must be 1-%d characters", maxNameLen)
	}
	if _, err := database.ParseKind(r.DBKind); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "invalid db kind", err)
	}
	if r.Port < 0 || r.Port > 65535 {
		return errs.Newf(errs.ErrKindInvalidInput, "port %d out of range", r.Port)
	}
	if (len(r.EncryptedPassword) == 0) != (len(r.IV) == 0) {
		return errs.New(errs.ErrKindInvalidInput, "encrypted password and iv must be stored together")
	}
	return nil
}

// SafeView is a record without its secret, fit for API responses.
type SafeView struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Name         string    `json:"name"`
	DBKind       string    `json:"db_type"`
	Host         string    `json:"host,omitempty"`
	Port         int       `json:"port,omitempty"`
	Username     string    `json:"username,omitempty"`
	DatabaseName string    `json:"database_name,omitempty"`
	TableName    string    `json:"table_name,omitempty"`
	HasPassword  bool      `json:"has_password"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (r *ConnectionRecord) Safe() SafeView {
	return SafeView{
		ID:           r.ID,
		UserID:       r.UserID,
		Name:         r.Name,
		DBKind:       r.DBKind,
		Host:         r.Host,
		Port:         r.Port,
		Username:     r.Username,
		DatabaseName: r.DatabaseName,
		TableName:    r.TableName,
		HasPassword:  r.HasPassword(),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
