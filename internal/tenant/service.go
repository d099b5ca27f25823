package tenant

import (
	"context"
	"strings"

	"github.com/koustreak/aigis/internal/database"
	"github.com/koustreak/aigis/internal/errs"
	"github.com/koustreak/aigis/internal/logger"
	"github.com/koustreak/aigis/internal/secret"
)

// CreateInput carries a new connection as submitted by its owner. Password
// is plaintext and never leaves the service unencrypted.
type CreateInput struct {
	Name         string
	DBKind       string
	Host         string
	Port         int
	Username     string
	Password     string
	DatabaseName string
	TableName    string
}

// UpdateInput is a partial update: nil fields are left alone. A non-nil
// empty Password clears the stored secret.
type UpdateInput struct {
	Name         *string
	DBKind       *string
	Host         *string
	Port         *int
	Username     *string
	Password     *string
	DatabaseName *string
	TableName    *string
}

// Service is the write path for connection records.
type Service struct {
	store     Store
	cipher    secret.Cipher
	masterKey string
	log       *logger.Logger
}

func NewService(store Store, cipher secret.Cipher, masterKey string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: store, cipher: cipher, masterKey: masterKey, log: log}
}

// Register validates and stores a new connection. The password, when given,
// is encrypted with a fresh IV.
func (s *Service) Register(ctx context.Context, userID int64, in CreateInput) (SafeView, error) {
	rec := &ConnectionRecord{
		UserID:       userID,
		Name:         strings.TrimSpace(in.Name),
		DBKind:       strings.ToLower(strings.TrimSpace(in.DBKind)),
		Host:         in.Host,
		Port:         in.Port,
		Username:     in.Username,
		DatabaseName: in.DatabaseName,
		TableName:    in.TableName,
	}
	if err := s.setPassword(rec, in.Password); err != nil {
		return SafeView{}, err
	}
	if err := s.check(rec); err != nil {
		return SafeView{}, err
	}
	if err := s.store.CreateConnection(ctx, rec); err != nil {
		return SafeView{}, err
	}

	s.log.ForTenant(userID, rec.ID).InfoWith("connection registered", map[string]any{
		"db_kind": rec.DBKind,
	})
	return rec.Safe(), nil
}

// Update applies a partial update to a record the user owns.
func (s *Service) Update(ctx context.Context, userID, connectionID int64, in UpdateInput) (SafeView, error) {
	rec, err := s.store.GetConnection(ctx, userID, connectionID)
	if err != nil {
		return SafeView{}, err
	}

	if in.Name != nil {
		rec.Name = strings.TrimSpace(*in.Name)
	}
	if in.DBKind != nil {
		rec.DBKind = strings.ToLower(strings.TrimSpace(*in.DBKind))
	}
	if in.Host != nil {
		rec.Host = *in.Host
	}
	if in.Port != nil {
		rec.Port = *in.Port
	}
	if in.Username != nil {
		rec.Username = *in.Username
	}
	if in.DatabaseName != nil {
		rec.DatabaseName = *in.DatabaseName
	}
	if in.TableName != nil {
		rec.TableName = *in.TableName
	}
	if in.Password != nil {
		if err := s.setPassword(rec, *in.Password); err != nil {
			return SafeView{}, err
		}
	}
	if err := s.check(rec); err != nil {
		return SafeView{}, err
	}
	if err := s.store.UpdateConnection(ctx, rec); err != nil {
		return SafeView{}, err
	}

	// Engines already cached for this connection keep the old settings
	// until the cache is disposed.
	s.log.ForTenant(userID, connectionID).Info("connection updated")
	return rec.Safe(), nil
}

func (s *Service) Delete(ctx context.Context, userID, connectionID int64) error {
	if err := s.store.DeleteConnection(ctx, userID, connectionID); err != nil {
		return err
	}
	s.log.ForTenant(userID, connectionID).Info("connection deleted")
	return nil
}

func (s *Service) Get(ctx context.Context, userID, connectionID int64) (SafeView, error) {
	rec, err := s.store.GetConnection(ctx, userID, connectionID)
	if err != nil {
		return SafeView{}, err
	}
	return rec.Safe(), nil
}

// List returns the user's connections, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]SafeView, error) {
	recs, err := s.store.ListConnections(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]SafeView, len(recs))
	for i := range recs {
		views[i] = recs[i].Safe()
	}
	return views, nil
}

func (s *Service) setPassword(rec *ConnectionRecord, password string) error {
	if password == "" {
		rec.EncryptedPassword, rec.IV = nil, nil
		return nil
	}
	iv, ct, err := s.cipher.Encrypt(password, s.masterKey)
	if err != nil {
		return err
	}
	rec.EncryptedPassword, rec.IV = ct, iv
	return nil
}

// check runs the record invariants and then builds the engine target so a
// record that could never be resolved is refused at write time.
func (s *Service) check(rec *ConnectionRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	kind, _ := database.ParseKind(rec.DBKind)
	if _, err := database.NewTarget(kind, rec.Host, rec.Port, rec.Username, "", rec.DatabaseName); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "connection settings are incomplete", err)
	}
	return nil
}
