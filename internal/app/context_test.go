package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inductionlog/internal/domain"
	"inductionlog/internal/engine"
	"inductionlog/internal/persist"
	"inductionlog/internal/session"
	"inductionlog/internal/storage"
)

func TestOpenWithDefaults(t *testing.T) {
	ctx := context.Background()
	ws := t.TempDir()
	c, err := Open(ctx, ws, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	assert.IsType(t, &storage.SQLStore{}, c.Store)
	_, err = c.Engine.CreateLog(ctx, engine.CreateLogOptions{ActorID: "admin"})
	require.NoError(t, err)

	a := c.Autosaver()
	assert.Equal(t, persist.LocalStorageKey, a.Key)
	assert.Equal(t, persist.DefaultDelay, a.Delay)
	assert.Equal(t, persist.DefaultTargetID, c.ManualSaver().TargetID)

	s := session.New(domain.NewFormConfig(domain.RoleMentee))
	require.True(t, a.SaveNow(ctx, s.Config()))
	got, ok := a.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, domain.RoleMentee, got.UserRole)
}

func TestOpenFileBackend(t *testing.T) {
	ctx := context.Background()
	ws := t.TempDir()
	cfg := "storage:\n  backend: file\n  key: other-key\nroles:\n  default: admin\n"
	require.NoError(t, os.WriteFile(filepath.Join(ws, "inductionlog.yml"), []byte(cfg), 0o644))

	c, err := Open(ctx, ws, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	fs, ok := c.Store.(*storage.FileStore)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(ws, ".inductionlog", "storage"), fs.Dir)
	assert.Equal(t, "other-key", c.Autosaver().Key)
	assert.Equal(t, domain.RoleAdmin, c.Engine.Parser.DefaultRole)
}

func TestOpenRejectsBadConfig(t *testing.T) {
	ws := t.TempDir()
	path := filepath.Join(ws, "custom.yml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: etcd\n"), 0o644))
	_, err := Open(context.Background(), ws, Options{ConfigPath: path})
	assert.Error(t, err)
}
