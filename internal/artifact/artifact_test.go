package artifact

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/aigis/internal/errs"
	"github.com/koustreak/aigis/internal/filestore"
)

// memFiles is an in-memory filestore.Store.
type memFiles struct {
	mu      sync.Mutex
	buckets map[string]map[string][]byte
	types   map[string]string
}

func newMemFiles() *memFiles {
	return &memFiles{buckets: map[string]map[string][]byte{}, types: map[string]string{}}
}

func (m *memFiles) Ping(context.Context) error { return nil }
func (m *memFiles) Close() error               { return nil }

func (m *memFiles) EnsureBucket(_ context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; !ok {
		m.buckets[bucket] = map[string][]byte{}
	}
	return nil
}

func (m *memFiles) PutObject(_ context.Context, bucket, key string, r io.Reader, _ int64, opts filestore.PutOptions) (*filestore.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[bucket]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "no such bucket")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	b[key] = data
	m.types[key] = opts.ContentType
	return &filestore.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: opts.ContentType}, nil
}

func (m *memFiles) ListObjects(_ context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.buckets[bucket] {
		if strings.HasPrefix(k, opts.Prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if opts.Limit > 0 && len(keys) > opts.Limit {
		keys = keys[:opts.Limit]
	}
	out := make([]filestore.ObjectInfo, len(keys))
	for i, k := range keys {
		out[i] = filestore.ObjectInfo{Key: k, Size: int64(len(m.buckets[bucket][k]))}
	}
	return out, nil
}

type memObject struct {
	io.Reader
	info *filestore.ObjectInfo
}

func (o memObject) Close() error                { return nil }
func (o memObject) Info() *filestore.ObjectInfo { return o.info }

func (m *memFiles) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	info, err := m.StatObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return memObject{Reader: bytes.NewReader(m.buckets[bucket][key]), info: info}, nil
}

func (m *memFiles) StatObject(_ context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.buckets[bucket][key]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "no such key")
	}
	return &filestore.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: m.types[key]}, nil
}

func (m *memFiles) PresignGetURL(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
	return "https://files.test/" + bucket + "/" + key + "?ttl=" + ttl.String(), nil
}

func newStore(t *testing.T) (*Store, *memFiles) {
	t.Helper()
	files := newMemFiles()
	s := New(files, "artifacts", WithLinkTTL(time.Hour))
	ids := 0
	s.newID = func() string {
		ids++
		return "id" + string(rune('0'+ids))
	}
	require.NoError(t, s.Prepare(context.Background()))
	return s, files
}

func TestSave(t *testing.T) {
	s, files := newStore(t)
	ctx := context.Background()

	a, err := s.Save(ctx, KindChart, []byte(`{"mark":"bar"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "charts/id1.json", a.Key)
	assert.Equal(t, "https://files.test/artifacts/charts/id1.json?ttl=1h0m0s", a.URL)
	assert.Equal(t, int64(14), a.Size)
	assert.Equal(t, "application/json", files.types[a.Key])

	got, err := s.Load(ctx, a.Key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mark":"bar"}`, string(got))
}

func TestSave_RejectsInvalidJSON(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Save(context.Background(), KindResult, []byte("not json"), nil)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestSave_MissingBucket(t *testing.T) {
	s := New(newMemFiles(), "absent")
	_, err := s.Save(context.Background(), KindResult, []byte(`{}`), nil)
	assert.True(t, errs.IsNotFound(err))
}

func TestListAndLink(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, KindChart, []byte(`{}`), nil)
	require.NoError(t, err)
	r, err := s.Save(ctx, KindResult, []byte(`{"rowcount":1}`), map[string]string{"user": "1"})
	require.NoError(t, err)

	results, err := s.List(ctx, KindResult, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, r.Key, results[0].Key)

	url, err := s.Link(ctx, r.Key)
	require.NoError(t, err)
	assert.Contains(t, url, r.Key)

	_, err = s.Link(ctx, "results/missing.json")
	assert.True(t, errs.IsNotFound(err))
}

func TestDefaultIDsAreUUIDs(t *testing.T) {
	files := newMemFiles()
	s := New(files, "b")
	require.NoError(t, s.Prepare(context.Background()))

	a, err := s.Save(context.Background(), KindChart, []byte(`[]`), nil)
	require.NoError(t, err)
	assert.Regexp(t, `^charts/[0-9a-f-]{36}\.json$`, a.Key)
}
