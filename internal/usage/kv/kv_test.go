package kv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "agentcv-usage")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "agentcv-usage", []byte(`{"used":1}`)))
	got, err := s.Get(ctx, "agentcv-usage")
	require.NoError(t, err)
	assert.Equal(t, `{"used":1}`, string(got))

	require.NoError(t, s.Set(ctx, "agentcv-usage", []byte(`{"used":2}`)))
	got, err = s.Get(ctx, "agentcv-usage")
	require.NoError(t, err)
	assert.Equal(t, `{"used":2}`, string(got))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	m := NewMemory()
	buf := []byte("abc")
	require.NoError(t, m.Set(context.Background(), "k", buf))
	buf[0] = 'z'
	got, err := m.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestFileStore(t *testing.T) {
	exerciseStore(t, NewFile(filepath.Join(t.TempDir(), "agentcv")))
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(dir)
	require.NoError(t, f.Set(context.Background(), "agentcv-usage:abc", []byte("{}")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".json", filepath.Ext(entries[0].Name()))
}

type fakeRedis struct {
	redis.Cmdable
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.data[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestRedisStorePrefixesKeysAndAppliesTTL(t *testing.T) {
	fake := &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
	store := NewRedis(fake, 48*time.Hour)

	exerciseStore(t, store)
	assert.Contains(t, fake.data, "agentcv:agentcv-usage")
	assert.Equal(t, 48*time.Hour, fake.ttls["agentcv:agentcv-usage"])
}

func TestRedisStorePropagatesErrors(t *testing.T) {
	boom := errors.New("connection reset")
	store := NewRedis(&fakeRedis{err: boom}, 0)

	_, err := store.Get(context.Background(), "k")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Set(context.Background(), "k", []byte("v")), boom)
}
