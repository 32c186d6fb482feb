package meta

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xxxsen/nixai/internal/model"
	"github.com/xxxsen/nixai/internal/testutil"
)

func runStoreContract(t *testing.T, s Store, prefix string) {
	ctx := context.Background()
	alice, bob := prefix+"alice", prefix+"bob"

	require.NoError(t, s.Upsert(ctx, &model.DocumentMeta{UserID: alice, Filename: "a.txt", Status: model.DocumentStatusProcessing, Ctime: 1, Mtime: 1}))
	require.NoError(t, s.Upsert(ctx, &model.DocumentMeta{UserID: bob, Filename: "a.txt", Status: model.DocumentStatusProcessing, Ctime: 2, Mtime: 2}))
	require.NoError(t, s.Upsert(ctx, &model.DocumentMeta{UserID: alice, Filename: "a.txt", Status: model.DocumentStatusCompleted, ChunkCount: 3, IndexSize: 3, Ctime: 1, Mtime: 5}))

	got, err := s.Get(ctx, alice, "a.txt")
	require.NoError(t, err)
	require.Equal(t, model.DocumentStatusCompleted, got.Status)
	require.Equal(t, 3, got.ChunkCount)
	require.Equal(t, int64(5), got.Mtime)

	_, err = s.Get(ctx, alice, "missing.txt")
	require.ErrorIs(t, err, ErrNotFound)

	list, err := s.ListByUser(ctx, bob)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, bob, list[0].UserID)
	require.Equal(t, model.DocumentStatusProcessing, list[0].Status)

	require.Error(t, s.Upsert(ctx, &model.DocumentMeta{UserID: alice}))
}

func TestFileStoreContract(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "metadata.json"))
	require.NoError(t, err)
	runStoreContract(t, s, "")
	all, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestFileStoreNoKeyCollision(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "metadata.json"))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, &model.DocumentMeta{UserID: "a_b", Filename: "c.txt", Status: model.DocumentStatusCompleted}))
	require.NoError(t, s.Upsert(ctx, &model.DocumentMeta{UserID: "a", Filename: "b_c.txt", Status: model.DocumentStatusFailed}))
	got, err := s.Get(ctx, "a_b", "c.txt")
	require.NoError(t, err)
	require.Equal(t, model.DocumentStatusCompleted, got.Status)
}

func TestFileStoreToleratesBadFile(t *testing.T) {
	for name, content := range map[string]string{"empty": "", "corrupt": "{not json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "metadata.json")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			s, err := NewFileStore(path)
			require.NoError(t, err)
			list, err := s.List(context.Background())
			require.NoError(t, err)
			require.Empty(t, list)
			require.NoError(t, s.Upsert(context.Background(), &model.DocumentMeta{UserID: "u", Filename: "f.txt", Status: model.DocumentStatusProcessing}))
			list, err = s.List(context.Background())
			require.NoError(t, err)
			require.Len(t, list, 1)
		})
	}
}

func TestFileStoreConcurrentUpserts(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "metadata.json"))
	require.NoError(t, err)
	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, 30)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.Upsert(ctx, &model.DocumentMeta{UserID: fmt.Sprintf("u%d", i%3), Filename: fmt.Sprintf("f%d.txt", i), Status: model.DocumentStatusCompleted})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 30)
}

func TestPostgresStoreContract(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	runStoreContract(t, NewPostgresStore(conn), fmt.Sprintf("meta%d_", time.Now().UnixNano()))
}
