package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/nixai/internal/filestore"
	"github.com/xxxsen/nixai/internal/index"
	"github.com/xxxsen/nixai/internal/ingest"
	"github.com/xxxsen/nixai/internal/loader"
	"github.com/xxxsen/nixai/internal/meta"
	"github.com/xxxsen/nixai/internal/model"
	appErr "github.com/xxxsen/nixai/internal/pkg/errors"
	"go.uber.org/zap"
)

type Submitter interface {
	Submit(req ingest.Request) error
}

type DocumentService struct {
	files    filestore.Store
	meta     meta.Store
	pipeline *ingest.Pipeline
	worker   Submitter
}

func NewDocumentService(files filestore.Store, metaStore meta.Store, pipeline *ingest.Pipeline, worker Submitter) *DocumentService {
	return &DocumentService{files: files, meta: metaStore, pipeline: pipeline, worker: worker}
}

// Upload stores the raw file and schedules its ingestion. It returns once the file
// is stored; indexing happens in the background.
func (s *DocumentService) Upload(ctx context.Context, userID, filename string, r io.Reader, size int64) (string, error) {
	if _, err := index.Collection(userID); err != nil {
		return "", appErr.ErrUnauthorized
	}
	name := cleanFilename(filename)
	if name == "" {
		return "", appErr.ErrInvalid
	}
	if !loader.Supported(name) {
		return "", appErr.ErrUnsupportedFile
	}
	req := ingest.Request{UserID: userID, Filename: name, StoredKey: storedKey(userID, name)}
	if err := s.files.Save(ctx, req.StoredKey, r, size); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	if err := s.pipeline.MarkProcessing(ctx, req); err != nil {
		return "", fmt.Errorf("record upload: %w", err)
	}
	if err := s.worker.Submit(req); err != nil {
		logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID), zap.String("filename", name))
		logger.Warn("schedule ingestion failed", zap.Error(err))
		if rerr := s.pipeline.Reject(ctx, req, fmt.Errorf("schedule ingestion: %w", err)); rerr != nil {
			logger.Error("settle rejected upload failed", zap.Error(rerr))
		}
		if errors.Is(err, ingest.ErrQueueFull) {
			return "", appErr.ErrBusy
		}
		return "", err
	}
	return name, nil
}

// IngestNow runs the pipeline synchronously, used by the command line.
func (s *DocumentService) IngestNow(ctx context.Context, userID, filename string, r io.Reader, size int64) (*model.DocumentMeta, error) {
	if _, err := index.Collection(userID); err != nil {
		return nil, err
	}
	name := cleanFilename(filename)
	if name == "" {
		return nil, appErr.ErrInvalid
	}
	req := ingest.Request{UserID: userID, Filename: name, StoredKey: storedKey(userID, name)}
	if err := s.files.Save(ctx, req.StoredKey, r, size); err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}
	return s.pipeline.Ingest(ctx, req)
}

func (s *DocumentService) List(ctx context.Context, userID string) ([]model.DocumentMeta, error) {
	items, err := s.meta.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.DocumentMeta{}
	}
	return items, nil
}
