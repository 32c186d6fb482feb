package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xxxsen/nixai/internal/ai"
	"github.com/xxxsen/nixai/internal/chunker"
	"github.com/xxxsen/nixai/internal/filestore"
	"github.com/xxxsen/nixai/internal/index"
	"github.com/xxxsen/nixai/internal/loader"
	"github.com/xxxsen/nixai/internal/meta"
	"github.com/xxxsen/nixai/internal/model"
)

type fixture struct {
	files    filestore.Store
	meta     meta.Store
	index    *index.Store
	pipeline *Pipeline
}

func newFixture(t *testing.T) *fixture {
	dir := t.TempDir()
	files := filestore.NewLocal(filepath.Join(dir, "uploads"))
	metaStore, err := meta.NewFileStore(filepath.Join(dir, "metadata.json"))
	require.NoError(t, err)
	backend, err := index.NewLocalBackend(filepath.Join(dir, "vector_db"))
	require.NoError(t, err)
	p, err := ai.NewEmbedProvider("local", nil)
	require.NoError(t, err)
	idx := index.NewStore(backend, ai.NewEmbedder(p, "hash"))
	return &fixture{
		files:    files,
		meta:     metaStore,
		index:    idx,
		pipeline: NewPipeline(files, metaStore, idx, chunker.New()),
	}
}

func (f *fixture) upload(t *testing.T, user, name, content string) Request {
	key := user + "/" + name
	require.NoError(t, f.files.Save(context.Background(), key, strings.NewReader(content), int64(len(content))))
	return Request{UserID: user, Filename: name, StoredKey: key}
}

func TestIngestCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	text := strings.Repeat("Paris is the capital of France. ", 40)
	m, err := f.pipeline.Ingest(ctx, f.upload(t, "u1", "paris.txt", text))
	require.NoError(t, err)
	require.Equal(t, model.DocumentStatusCompleted, m.Status)
	want := len(chunker.New().Split(text))
	require.Equal(t, want, m.ChunkCount)
	require.Equal(t, want, m.IndexSize)

	got, err := f.meta.Get(ctx, "u1", "paris.txt")
	require.NoError(t, err)
	require.Equal(t, model.DocumentStatusCompleted, got.Status)
	require.Equal(t, "u1/paris.txt", got.StoredKey)

	res, err := f.index.Query(ctx, "u1", "capital of France", 4, "paris.txt")
	require.NoError(t, err)
	require.NotEmpty(t, res)
	require.Equal(t, "paris.txt", res[0].Source)
}

func TestRejectSettlesUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.upload(t, "u1", "late.txt", "never indexed")
	require.NoError(t, f.pipeline.MarkProcessing(ctx, req))
	require.NoError(t, f.pipeline.Reject(ctx, req, ErrQueueFull))

	got, err := f.meta.Get(ctx, "u1", "late.txt")
	require.NoError(t, err)
	require.Equal(t, model.DocumentStatusFailed, got.Status)
	require.Equal(t, ErrQueueFull.Error(), got.Error)
	require.Empty(t, got.StoredKey)
	_, err = f.files.Open(ctx, req.StoredKey)
	require.ErrorIs(t, err, filestore.ErrNotFound)
}

func TestIngestIsAdditive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.pipeline.Ingest(ctx, f.upload(t, "u1", "a.txt", "alpha document"))
	require.NoError(t, err)
	b, err := f.pipeline.Ingest(ctx, f.upload(t, "u1", "b.txt", "beta document"))
	require.NoError(t, err)
	require.Equal(t, 1, a.IndexSize)
	require.Equal(t, 2, b.IndexSize)
	n, err := f.index.Count(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestIngestFailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.pipeline.Ingest(ctx, f.upload(t, "u1", "good.txt", "good content"))
	require.NoError(t, err)

	tests := []struct {
		name string
		req  Request
	}{
		{name: "unsupported", req: f.upload(t, "u1", "image.png", "\x89PNG")},
		{name: "invalid utf8", req: f.upload(t, "u1", "bad.txt", "\xff\xfe")},
		{name: "missing raw file", req: Request{UserID: "u1", Filename: "gone.txt", StoredKey: "u1/gone.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.pipeline.Ingest(ctx, tt.req)
			var le *loader.LoadError
			require.True(t, errors.As(err, &le))
			got, err := f.meta.Get(ctx, "u1", tt.req.Filename)
			require.NoError(t, err)
			require.Equal(t, model.DocumentStatusFailed, got.Status)
			require.NotEmpty(t, got.Error)
		})
	}

	n, err := f.index.Count(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	good, err := f.meta.Get(ctx, "u1", "good.txt")
	require.NoError(t, err)
	require.Equal(t, model.DocumentStatusCompleted, good.Status)
}

func TestIngestEmptyDocumentCreatesIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, err := f.pipeline.Ingest(ctx, f.upload(t, "u1", "empty.txt", "   "))
	require.NoError(t, err)
	require.Equal(t, 0, m.ChunkCount)
	_, err = f.index.Get(ctx, "u1")
	require.NoError(t, err)
}

type blockingIngester struct {
	mu      sync.Mutex
	release chan struct{}
	done    []Request
	fail    string
}

func (b *blockingIngester) Ingest(ctx context.Context, req Request) (*model.DocumentMeta, error) {
	if b.release != nil {
		<-b.release
	}
	b.mu.Lock()
	b.done = append(b.done, req)
	b.mu.Unlock()
	if req.Filename == b.fail {
		return nil, errors.New("boom")
	}
	return &model.DocumentMeta{UserID: req.UserID, Filename: req.Filename}, nil
}

func TestWorkerDrainsOnStop(t *testing.T) {
	ing := &blockingIngester{fail: "bad.txt"}
	w := NewWorker(ing, WorkerConfig{Workers: 2, QueueSize: 8})
	w.Start(context.Background())
	for _, name := range []string{"a.txt", "b.txt", "bad.txt", "c.txt"} {
		require.NoError(t, w.Submit(Request{UserID: "u1", Filename: name, StoredKey: name}))
	}
	w.Stop()
	require.Len(t, ing.done, 4)
	require.ErrorIs(t, w.Submit(Request{UserID: "u1", Filename: "late.txt"}), ErrWorkerStopped)

	select {
	case err := <-w.Errors():
		var te *TaskError
		require.True(t, errors.As(err, &te))
		require.Equal(t, "bad.txt", te.Request.Filename)
	default:
		t.Fatal("expected a task error")
	}
	w.Stop()
}

func TestWorkerQueueFull(t *testing.T) {
	ing := &blockingIngester{release: make(chan struct{})}
	w := NewWorker(ing, WorkerConfig{Workers: 1, QueueSize: 1})
	require.NoError(t, w.Submit(Request{UserID: "u1", Filename: "a.txt"}))
	require.ErrorIs(t, w.Submit(Request{UserID: "u1", Filename: "b.txt"}), ErrQueueFull)
	close(ing.release)
	w.Stop()
	require.Len(t, ing.done, 1)
}

func TestWorkerWithPipeline(t *testing.T) {
	f := newFixture(t)
	w := NewWorker(f.pipeline, WorkerConfig{Workers: 2, QueueSize: 4})
	w.Start(context.Background())
	reqs := []Request{
		f.upload(t, "alice", "a.txt", "alice owns this text"),
		f.upload(t, "bob", "b.txt", "bob owns that text"),
	}
	for _, r := range reqs {
		require.NoError(t, f.pipeline.MarkProcessing(context.Background(), r))
		require.NoError(t, w.Submit(r))
	}
	w.Stop()
	for _, r := range reqs {
		m, err := f.meta.Get(context.Background(), r.UserID, r.Filename)
		require.NoError(t, err)
		require.Equal(t, model.DocumentStatusCompleted, m.Status)
	}
}

func TestReleaseUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()
	f.pipeline = NewPipeline(f.files, f.meta, f.index, chunker.New(), WithClock(func() time.Time { return now }))

	done := f.upload(t, "u1", "done.txt", "finished text")
	_, err := f.pipeline.Ingest(ctx, done)
	require.NoError(t, err)
	pending := f.upload(t, "u1", "pending.txt", "queued text")
	require.NoError(t, f.pipeline.MarkProcessing(ctx, pending))

	ok, err := f.pipeline.ReleaseUpload(ctx, "u1", "done.txt", now)
	require.NoError(t, err)
	require.False(t, ok)

	cutoff := now.Add(time.Hour)
	ok, err = f.pipeline.ReleaseUpload(ctx, "u1", "done.txt", cutoff)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = f.files.Open(ctx, done.StoredKey)
	require.ErrorIs(t, err, filestore.ErrNotFound)
	m, err := f.meta.Get(ctx, "u1", "done.txt")
	require.NoError(t, err)
	require.Empty(t, m.StoredKey)
	require.Equal(t, model.DocumentStatusCompleted, m.Status)

	ok, err = f.pipeline.ReleaseUpload(ctx, "u1", "pending.txt", cutoff)
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = f.pipeline.ReleaseUpload(ctx, "u1", "missing.txt", cutoff)
	require.NoError(t, err)
	require.False(t, ok)
}
