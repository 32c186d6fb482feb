package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/nixai/internal/model"
	"github.com/xxxsen/nixai/internal/pkg/fileutil"
	"go.uber.org/zap"
)

// FileStore keeps all records in a single JSON document keyed by "<user>/<filename>".
// Neither part may contain a slash, so keys never collide across users.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("metadata path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &FileStore{path: path}, nil
}

func recordKey(userID, filename string) string {
	return userID + "/" + filename
}

// read tolerates a missing, empty or corrupt file and treats it as no records.
func (s *FileStore) read(ctx context.Context) map[string]model.DocumentMeta {
	records := map[string]model.DocumentMeta{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logutil.GetLogger(ctx).Warn("read metadata file failed", zap.String("path", s.path), zap.Error(err))
		}
		return records
	}
	if len(data) == 0 {
		return records
	}
	if err := json.Unmarshal(data, &records); err != nil {
		logutil.GetLogger(ctx).Warn("metadata file is corrupt, starting empty", zap.String("path", s.path), zap.Error(err))
		return map[string]model.DocumentMeta{}
	}
	return records
}

func (s *FileStore) write(records map[string]model.DocumentMeta) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(s.path, data)
}

func (s *FileStore) Upsert(ctx context.Context, m *model.DocumentMeta) error {
	if m == nil || m.UserID == "" || m.Filename == "" {
		return errors.New("user id and filename are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.read(ctx)
	key := recordKey(m.UserID, m.Filename)
	if old, ok := records[key]; ok && m.Ctime == 0 {
		m.Ctime = old.Ctime
	}
	records[key] = *m
	if err := s.write(records); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, userID, filename string) (*model.DocumentMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.read(ctx)[recordKey(userID, filename)]
	if !ok || rec.UserID != userID || rec.Filename != filename {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *FileStore) ListByUser(ctx context.Context, userID string) ([]model.DocumentMeta, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.DocumentMeta, 0, len(all))
	for _, rec := range all {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// List returns every record ordered by creation time then filename.
func (s *FileStore) List(ctx context.Context) ([]model.DocumentMeta, error) {
	s.mu.Lock()
	records := s.read(ctx)
	s.mu.Unlock()
	out := make([]model.DocumentMeta, 0, len(records))
	for _, rec := range records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ctime != out[j].Ctime {
			return out[i].Ctime < out[j].Ctime
		}
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Filename < out[j].Filename
	})
	return out, nil
}
