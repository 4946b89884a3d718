package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inductionlog/internal/db"
	"inductionlog/internal/migrate"
)

func sqliteStore(t *testing.T) *SQLStore {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(context.Background(), conn))
	return NewSQLStore(conn)
}

func redisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func fileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestStoreContract(t *testing.T) {
	backends := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store { return sqliteStore(t) },
		"redis": func(t *testing.T) Store {
			s, _ := redisStore(t)
			return s
		},
		"file": func(t *testing.T) Store { return fileStore(t) },
	}
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			const key = "teacher-induction-log-data"

			_, err := s.Get(ctx, key)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(ctx, key, []byte(`{"userRole":"mentee"}`)))
			got, err := s.Get(ctx, key)
			require.NoError(t, err)
			assert.JSONEq(t, `{"userRole":"mentee"}`, string(got))

			require.NoError(t, s.Set(ctx, key, []byte(`{"userRole":"admin"}`)))
			got, err = s.Get(ctx, key)
			require.NoError(t, err)
			assert.JSONEq(t, `{"userRole":"admin"}`, string(got))

			require.NoError(t, s.Set(ctx, "other", []byte("x")))
			require.NoError(t, s.Delete(ctx, key))
			_, err = s.Get(ctx, key)
			assert.ErrorIs(t, err, ErrNotFound)
			other, err := s.Get(ctx, "other")
			require.NoError(t, err)
			assert.Equal(t, "x", string(other))

			require.NoError(t, s.Delete(ctx, "never-set"))
		})
	}
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	v := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", v))
	v[0] = 'z'
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestRedisStoreUsesPrefix(t *testing.T) {
	s, mr := redisStore(t)
	require.NoError(t, s.Set(context.Background(), "teacher-induction-log-data", []byte("{}")))
	v, err := mr.Get("inductionlog:teacher-induction-log-data")
	require.NoError(t, err)
	assert.Equal(t, "{}", v)
}

func TestRedisStoreUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err := NewRedisStore(context.Background(), "redis://"+addr)
	assert.Error(t, err)
}

func TestFileStoreWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := fileStore(t)
	events, err := s.Watch(ctx)
	require.NoError(t, err)

	other := &FileStore{Dir: s.Dir}
	require.NoError(t, other.Set(ctx, "teacher-induction-log-data", []byte(`{"a":1}`)))

	ev := waitEvent(t, events, func(e Event) bool { return !e.Deleted })
	assert.Equal(t, "teacher-induction-log-data", ev.Key)
	assert.JSONEq(t, `{"a":1}`, string(ev.Value))

	require.NoError(t, other.Delete(ctx, "teacher-induction-log-data"))
	ev = waitEvent(t, events, func(e Event) bool { return e.Deleted })
	assert.Equal(t, "teacher-induction-log-data", ev.Key)

	cancel()
	for range events {
	}
}

func waitEvent(t *testing.T, ch <-chan Event, match func(Event) bool) Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				t.Fatal("watch channel closed")
			}
			if match(e) {
				return e
			}
		case <-timeout:
			t.Fatal("timed out waiting for storage event")
		}
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Options{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open(ctx, Options{Backend: BackendSQLite})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Backend: "etcd"})
	assert.ErrorContains(t, err, "unknown storage backend")

	fs, err := Open(ctx, Options{Backend: BackendFile, Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, fs)
}
