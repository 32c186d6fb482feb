package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xxxsen/nixai/internal/config"
)

func TestLocalStore(t *testing.T) {
	dir := t.TempDir()
	st, err := New(config.FileStoreConfig{Type: "LOCAL", Data: map[string]interface{}{"dir": dir}})
	require.NoError(t, err)
	require.Equal(t, "local", st.Type())
	ctx := context.Background()

	require.NoError(t, st.Save(ctx, "u1/notes.txt", strings.NewReader("hello"), 5))
	rc, err := st.Open(ctx, "u1/notes.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "hello", string(data))

	require.NoError(t, st.Delete(ctx, "u1/notes.txt"))
	require.NoError(t, st.Delete(ctx, "u1/notes.txt"))
	_, err = st.Open(ctx, "u1/notes.txt")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInvalidKeys(t *testing.T) {
	st := NewLocal(t.TempDir())
	ctx := context.Background()
	for _, key := range []string{"", "..", "a/b/c", "/a", "a/", "../a", "a/..", `a\b`, "a\x00b"} {
		require.ErrorIs(t, st.Save(ctx, key, strings.NewReader("x"), 1), ErrInvalidKey)
		_, err := st.Open(ctx, key)
		require.ErrorIs(t, err, ErrInvalidKey)
	}
}

func TestUserScopedKeys(t *testing.T) {
	dir := t.TempDir()
	st := NewLocal(dir)
	ctx := context.Background()
	require.NoError(t, st.Save(ctx, "a/b_x.txt", strings.NewReader("alice"), 5))
	require.NoError(t, st.Save(ctx, "a_b/x.txt", strings.NewReader("bob"), 3))

	for key, want := range map[string]string{"a/b_x.txt": "alice", "a_b/x.txt": "bob"} {
		rc, err := st.Open(ctx, key)
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, rc.Close())
		require.NoError(t, err)
		require.Equal(t, want, string(data))
	}
	_, err := os.Stat(filepath.Join(dir, "a", "b_x.txt"))
	require.NoError(t, err)

	require.NoError(t, st.Delete(ctx, "a/b_x.txt"))
	_, err = st.Open(ctx, "a/b_x.txt")
	require.ErrorIs(t, err, ErrNotFound)
	rc, err := st.Open(ctx, "a_b/x.txt")
	require.NoError(t, err)
	require.NoError(t, rc.Close())
}

func TestNewErrors(t *testing.T) {
	_, err := New(config.FileStoreConfig{})
	require.Error(t, err)
	_, err = New(config.FileStoreConfig{Type: "ftp", Data: map[string]interface{}{}})
	require.Error(t, err)
	_, err = New(config.FileStoreConfig{Type: "s3", Data: map[string]interface{}{"bucket": "b"}})
	require.Error(t, err)
	_, err = New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{}})
	require.Error(t, err)
}

func TestS3Construct(t *testing.T) {
	st, err := New(config.FileStoreConfig{Type: "s3", Data: map[string]interface{}{
		"endpoint": "minio:9000", "bucket": "uploads", "secret_id": "id", "secret_key": "key", "prefix": "/raw/",
	}})
	require.NoError(t, err)
	require.Equal(t, "s3", st.Type())
	require.Equal(t, "raw/u1/a.txt", st.(*s3Store).objectKey("u1/a.txt"))
	require.Equal(t, "https://minio:9000", buildEndpoint("minio:9000", true))
	require.Equal(t, "http://x", buildEndpoint("http://x/", false))
}
