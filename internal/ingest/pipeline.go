// Package ingest turns uploaded files into chunks of the owner's index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/nixai/internal/chunker"
	"github.com/xxxsen/nixai/internal/filestore"
	"github.com/xxxsen/nixai/internal/index"
	"github.com/xxxsen/nixai/internal/loader"
	"github.com/xxxsen/nixai/internal/meta"
	"github.com/xxxsen/nixai/internal/model"
	"github.com/xxxsen/nixai/internal/pkg/keylock"
	"go.uber.org/zap"
)

// Request names one uploaded file. Filename is what the user uploaded and what
// answers cite; StoredKey addresses the raw bytes in the file store.
type Request struct {
	UserID    string
	Filename  string
	StoredKey string
}

type Ingester interface {
	Ingest(ctx context.Context, req Request) (*model.DocumentMeta, error)
}

type Pipeline struct {
	files   filestore.Store
	meta    meta.Store
	index   *index.Store
	chunker *chunker.Chunker
	locks   *keylock.KeyLock
	now     func() time.Time
}

type PipelineOption func(*Pipeline)

func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

func NewPipeline(files filestore.Store, metaStore meta.Store, idx *index.Store, ch *chunker.Chunker, opts ...PipelineOption) *Pipeline {
	if ch == nil {
		ch = chunker.New()
	}
	p := &Pipeline{
		files:   files,
		meta:    metaStore,
		index:   idx,
		chunker: ch,
		locks:   keylock.New(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// update applies fn to the current record of req under the per user lock.
func (p *Pipeline) update(ctx context.Context, req Request, fn func(m *model.DocumentMeta)) (*model.DocumentMeta, error) {
	var out *model.DocumentMeta
	err := p.locks.With(req.UserID, func() error {
		now := p.now().UnixMilli()
		m, err := p.meta.Get(ctx, req.UserID, req.Filename)
		if err != nil {
			if !errors.Is(err, meta.ErrNotFound) {
				return err
			}
			m = &model.DocumentMeta{UserID: req.UserID, Filename: req.Filename, Ctime: now}
		}
		fn(m)
		m.Mtime = now
		if err := p.meta.Upsert(ctx, m); err != nil {
			return err
		}
		out = m
		return nil
	})
	return out, err
}

// MarkProcessing records req as processing. It is called when the upload is accepted
// so the document is listed before a worker picks it up.
func (p *Pipeline) MarkProcessing(ctx context.Context, req Request) error {
	_, err := p.update(ctx, req, func(m *model.DocumentMeta) {
		m.StoredKey = req.StoredKey
		m.Status = model.DocumentStatusProcessing
		m.Error = ""
		m.ChunkCount = 0
	})
	return err
}

func (p *Pipeline) Ingest(ctx context.Context, req Request) (*model.DocumentMeta, error) {
	logger := logutil.GetLogger(ctx).With(
		zap.String("user_id", req.UserID),
		zap.String("filename", req.Filename),
		zap.String("stored_key", req.StoredKey),
	)
	if req.UserID == "" || req.Filename == "" || req.StoredKey == "" {
		return nil, errors.New("user id, filename and stored key are required")
	}
	if err := p.MarkProcessing(ctx, req); err != nil {
		return nil, fmt.Errorf("record processing state: %w", err)
	}
	start := p.now()
	chunkCount, indexSize, err := p.run(ctx, req)
	if err != nil {
		logger.Error("ingestion failed", zap.Error(err))
		if _, merr := p.update(ctx, req, func(m *model.DocumentMeta) {
			m.Status = model.DocumentStatusFailed
			m.Error = err.Error()
		}); merr != nil {
			logger.Error("record failed state failed", zap.Error(merr))
		}
		return nil, err
	}
	m, err := p.update(ctx, req, func(m *model.DocumentMeta) {
		m.Status = model.DocumentStatusCompleted
		m.Error = ""
		m.ChunkCount = chunkCount
		m.IndexSize = indexSize
	})
	if err != nil {
		return nil, fmt.Errorf("record completed state: %w", err)
	}
	logger.Info("ingestion completed",
		zap.Int("chunks", chunkCount),
		zap.Int("index_size", indexSize),
		zap.Duration("cost", p.now().Sub(start)))
	return m, nil
}

func (p *Pipeline) run(ctx context.Context, req Request) (int, int, error) {
	rc, err := p.files.Open(ctx, req.StoredKey)
	if err != nil {
		return 0, 0, &loader.LoadError{Path: req.Filename, Err: err}
	}
	defer rc.Close()
	segments, err := loader.Load(ctx, req.Filename, rc)
	if err != nil {
		return 0, 0, err
	}
	chunks := p.buildChunks(req, segments)
	size, err := p.index.Add(ctx, req.UserID, chunks)
	if err != nil {
		return 0, 0, err
	}
	return len(chunks), size, nil
}

func (p *Pipeline) buildChunks(req Request, segments []model.Segment) []model.Chunk {
	var chunks []model.Chunk
	position := 0
	for si, seg := range segments {
		for _, text := range p.chunker.Split(seg.Text) {
			chunks = append(chunks, model.Chunk{
				UserID:   req.UserID,
				Source:   req.Filename,
				Segment:  si,
				Position: position,
				Content:  text,
			})
			position++
		}
	}
	return chunks
}

// ReleaseUpload deletes the raw upload of a settled document last touched before
// cutoff and clears its stored key. Documents still processing are left alone.
func (p *Pipeline) ReleaseUpload(ctx context.Context, userID, filename string, cutoff time.Time) (bool, error) {
	released := false
	err := p.locks.With(userID, func() error {
		m, err := p.meta.Get(ctx, userID, filename)
		if err != nil {
			if errors.Is(err, meta.ErrNotFound) {
				return nil
			}
			return err
		}
		if m.Status == model.DocumentStatusProcessing || m.StoredKey == "" || m.Mtime >= cutoff.UnixMilli() {
			return nil
		}
		if err := p.files.Delete(ctx, m.StoredKey); err != nil {
			return fmt.Errorf("delete upload: %w", err)
		}
		m.StoredKey = ""
		if err := p.meta.Upsert(ctx, m); err != nil {
			return err
		}
		released = true
		return nil
	})
	return released, err
}

// Reject settles a request that was marked processing but never reached a worker:
// the record becomes failed with cause and the raw upload is deleted.
func (p *Pipeline) Reject(ctx context.Context, req Request, cause error) error {
	_, err := p.update(ctx, req, func(m *model.DocumentMeta) {
		m.Status = model.DocumentStatusFailed
		m.Error = cause.Error()
		if m.StoredKey == req.StoredKey {
			m.StoredKey = ""
		}
	})
	if err != nil {
		return err
	}
	if err := p.files.Delete(ctx, req.StoredKey); err != nil {
		return fmt.Errorf("delete upload: %w", err)
	}
	return nil
}
