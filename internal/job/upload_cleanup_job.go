package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/nixai/internal/meta"
	"github.com/xxxsen/nixai/internal/model"
	"go.uber.org/zap"
)

type Releaser interface {
	ReleaseUpload(ctx context.Context, userID, filename string, cutoff time.Time) (bool, error)
}

// UploadCleanupJob deletes raw uploads of documents that finished ingestion more
// than maxAge ago. The indexed chunks are kept.
type UploadCleanupJob struct {
	meta     meta.Store
	releaser Releaser
	maxAge   time.Duration
	now      func() time.Time
}

func NewUploadCleanupJob(metaStore meta.Store, releaser Releaser, maxAge time.Duration) *UploadCleanupJob {
	return &UploadCleanupJob{meta: metaStore, releaser: releaser, maxAge: maxAge, now: time.Now}
}

func (j *UploadCleanupJob) Name() string {
	return "upload_cleanup"
}

func (j *UploadCleanupJob) Run(ctx context.Context) error {
	if j.meta == nil || j.releaser == nil {
		return nil
	}
	maxAge := j.maxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	cutoff := j.now().Add(-maxAge)
	items, err := j.meta.List(ctx)
	if err != nil {
		return err
	}
	released := 0
	for _, item := range items {
		if item.Status == model.DocumentStatusProcessing || item.StoredKey == "" || item.Mtime >= cutoff.UnixMilli() {
			continue
		}
		ok, err := j.releaser.ReleaseUpload(ctx, item.UserID, item.Filename, cutoff)
		if err != nil {
			logutil.GetLogger(ctx).Warn("release upload failed",
				zap.String("user_id", item.UserID), zap.String("filename", item.Filename), zap.Error(err))
			continue
		}
		if ok {
			released++
		}
	}
	if released > 0 {
		logutil.GetLogger(ctx).Info("uploads released", zap.Int("count", released))
	}
	return nil
}
