package tenant

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/aigis/internal/database"
	"github.com/koustreak/aigis/internal/errs"
	"github.com/koustreak/aigis/internal/secret"
)

// memStore is an in-memory Store for service tests.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	recs   map[int64]ConnectionRecord
}

func newMemStore() *memStore {
	return &memStore{recs: map[int64]ConnectionRecord{}}
}

func (m *memStore) GetConnection(_ context.Context, userID, id int64) (*ConnectionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[id]
	if !ok || r.UserID != userID {
		return nil, errs.New(errs.ErrKindNotFound, "connection not found")
	}
	return &r, nil
}

func (m *memStore) ListConnections(_ context.Context, userID int64) ([]ConnectionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ConnectionRecord
	for id := m.nextID; id > 0; id-- {
		if r, ok := m.recs[id]; ok && r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) CreateConnection(_ context.Context, rec *ConnectionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recs {
		if r.UserID == rec.UserID && r.Name == rec.Name {
			return errs.New(errs.ErrKindInvalidInput, "duplicate")
		}
	}
	m.nextID++
	rec.ID = m.nextID
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	m.recs[rec.ID] = *rec
	return nil
}

func (m *memStore) UpdateConnection(_ context.Context, rec *ConnectionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[rec.ID]; !ok {
		return errs.New(errs.ErrKindNotFound, "connection not found")
	}
	m.recs[rec.ID] = *rec
	return nil
}

func (m *memStore) DeleteConnection(_ context.Context, userID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[id]
	if !ok || r.UserID != userID {
		return errs.New(errs.ErrKindNotFound, "connection not found")
	}
	delete(m.recs, id)
	return nil
}

func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) Close()                     {}

func TestSchemaName(t *testing.T) {
	tests := []struct {
		email string
		id    int64
		want  string
	}{
		{"Alice.Smith@Example.com", 42, "alice_smith_example_com__u42"},
		{"  bob@x.io ", 1, "bob_x_io__u1"},
		{"9lives@cats.org", 3, "u_9lives_cats_org__u3"},
		{"___", 5, "u__u5"},
		{"", 6, "u__u6"},
		{"a--b..c@d", 7, "a_b_c_d__u7"},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, SchemaName(tt.email, tt.id))
		})
	}
}

func TestSchemaName_Truncates(t *testing.T) {
	email := strings.Repeat("x", 200) + "@example.com"
	got := SchemaName(email, 123456)

	assert.Len(t, got, database.MaxIdentLen)
	assert.True(t, strings.HasSuffix(got, "__u123456"))
	assert.Equal(t, got, SchemaName(email, 123456))
}

func TestConnectionRecord_Validate(t *testing.T) {
	ok := ConnectionRecord{Name: "n", DBKind: "postgres", Port: 5432}
	require.NoError(t, ok.Validate())

	tests := []struct {
		name string
		mod  func(r *ConnectionRecord)
	}{
		{"empty name", func(r *ConnectionRecord) { r.Name = " " }},
		{"long name", func(r *ConnectionRecord) { r.Name = strings.Repeat("n", 101) }},
		{"bad kind", func(r *ConnectionRecord) { r.DBKind = "oracle" }},
		{"bad port", func(r *ConnectionRecord) { r.Port = 70000 }},
		{"password without iv", func(r *ConnectionRecord) { r.EncryptedPassword = []byte{1} }},
		{"iv without password", func(r *ConnectionRecord) { r.IV = []byte{1} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ok
			tt.mod(&r)
			assert.True(t, errs.IsInvalidInput(r.Validate()))
		})
	}
}

func TestConnectionRecord_SafeHidesSecret(t *testing.T) {
	r := ConnectionRecord{ID: 1, Name: "n", DBKind: "postgres", EncryptedPassword: []byte{1}, IV: []byte{2}}
	v := r.Safe()
	assert.True(t, v.HasPassword)
	assert.Equal(t, "n", v.Name)
}

func newService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	return NewService(store, secret.AESGCM{}, "master", nil), store
}

func TestService_RegisterEncryptsPassword(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	view, err := svc.Register(ctx, 1, CreateInput{
		Name: "wh", DBKind: "Postgres", Host: "db", Port: 5432,
		Username: "u", Password: "hunter2", DatabaseName: "dw",
	})
	require.NoError(t, err)
	assert.True(t, view.HasPassword)
	assert.Equal(t, "postgres", view.DBKind)

	rec, err := store.GetConnection(ctx, 1, view.ID)
	require.NoError(t, err)
	assert.NotContains(t, string(rec.EncryptedPassword), "hunter2")

	plain, err := secret.AESGCM{}.Decrypt(rec.EncryptedPassword, rec.IV, "master")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plain)
}

func TestService_RegisterWithoutPassword(t *testing.T) {
	svc, store := newService(t)
	view, err := svc.Register(context.Background(), 1, CreateInput{Name: "local", DBKind: "sqlite", Host: "/data/a.db"})
	require.NoError(t, err)
	assert.False(t, view.HasPassword)

	rec, _ := store.GetConnection(context.Background(), 1, view.ID)
	assert.Nil(t, rec.EncryptedPassword)
	assert.Nil(t, rec.IV)
}

func TestService_RegisterRejectsIncomplete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, 1, CreateInput{Name: "pg", DBKind: "postgres", Host: "db"})
	assert.True(t, errs.IsInvalidInput(err))

	_, err = svc.Register(ctx, 1, CreateInput{Name: "x", DBKind: "mongo"})
	assert.True(t, errs.IsInvalidInput(err))

	_, err = svc.Register(ctx, 1, CreateInput{Name: "c", DBKind: "custom"})
	assert.True(t, errs.IsInvalidInput(err))
}

func TestService_UpdatePartial(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	view, err := svc.Register(ctx, 1, CreateInput{
		Name: "wh", DBKind: "postgres", Host: "db", DatabaseName: "dw", Password: "old",
	})
	require.NoError(t, err)
	before, _ := store.GetConnection(ctx, 1, view.ID)

	host := "db2"
	updated, err := svc.Update(ctx, 1, view.ID, UpdateInput{Host: &host})
	require.NoError(t, err)
	assert.Equal(t, "db2", updated.Host)
	assert.Equal(t, "dw", updated.DatabaseName)

	after, _ := store.GetConnection(ctx, 1, view.ID)
	assert.Equal(t, before.EncryptedPassword, after.EncryptedPassword)

	pw := "new"
	_, err = svc.Update(ctx, 1, view.ID, UpdateInput{Password: &pw})
	require.NoError(t, err)
	after, _ = store.GetConnection(ctx, 1, view.ID)
	assert.NotEqual(t, before.IV, after.IV)

	empty := ""
	cleared, err := svc.Update(ctx, 1, view.ID, UpdateInput{Password: &empty})
	require.NoError(t, err)
	assert.False(t, cleared.HasPassword)

	_, err = svc.Update(ctx, 2, view.ID, UpdateInput{Host: &host})
	assert.True(t, errs.IsNotFound(err))
}

func TestService_ListGetDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	a, err := svc.Register(ctx, 1, CreateInput{Name: "a", DBKind: "custom", DatabaseName: "s"})
	require.NoError(t, err)
	b, err := svc.Register(ctx, 1, CreateInput{Name: "b", DBKind: "custom", DatabaseName: "s"})
	require.NoError(t, err)

	list, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)

	got, err := svc.Get(ctx, 1, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name)

	require.NoError(t, svc.Delete(ctx, 1, a.ID))
	assert.True(t, errs.IsNotFound(svc.Delete(ctx, 1, a.ID)))

	_, err = svc.Get(ctx, 1, a.ID)
	assert.True(t, errs.IsNotFound(err))
}
