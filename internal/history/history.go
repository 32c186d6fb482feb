// Package history keeps a bounded log of answered questions per user.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/nixai/internal/model"
	"github.com/xxxsen/nixai/internal/pkg/fileutil"
	"github.com/xxxsen/nixai/internal/pkg/keylock"
	"go.uber.org/zap"
)

const DefaultMaxEntries = 50

type Log interface {
	Append(ctx context.Context, userID string, entry model.ChatEntry) error
	Read(ctx context.Context, userID string) ([]model.ChatEntry, error)
}

// FileLog stores the entries of a user in <dir>/<user_id>.json, oldest first.
type FileLog struct {
	dir   string
	max   int
	locks *keylock.KeyLock
}

func NewFileLog(dir string, maxEntries int) (*FileLog, error) {
	if dir == "" {
		return nil, errors.New("history dir is required")
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileLog{dir: dir, max: maxEntries, locks: keylock.New()}, nil
}

func (l *FileLog) path(userID string) (string, error) {
	if userID == "" || userID == "." || userID == ".." || filepath.Base(userID) != userID {
		return "", fmt.Errorf("invalid user id %q", userID)
	}
	return filepath.Join(l.dir, userID+".json"), nil
}

func (l *FileLog) load(ctx context.Context, path string) []model.ChatEntry {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logutil.GetLogger(ctx).Warn("read chat history failed", zap.String("path", path), zap.Error(err))
		}
		return nil
	}
	var entries []model.ChatEntry
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		logutil.GetLogger(ctx).Warn("chat history is corrupt, starting empty", zap.String("path", path), zap.Error(err))
		return nil
	}
	return entries
}

// Append adds entry and keeps only the newest max entries.
func (l *FileLog) Append(ctx context.Context, userID string, entry model.ChatEntry) error {
	path, err := l.path(userID)
	if err != nil {
		return err
	}
	return l.locks.With(userID, func() error {
		entries := append(l.load(ctx, path), entry)
		if len(entries) > l.max {
			entries = entries[len(entries)-l.max:]
		}
		if entries[len(entries)-1].Sources == nil {
			entries[len(entries)-1].Sources = []model.Source{}
		}
		return writeAtomic(path, entries)
	})
}

func (l *FileLog) Read(ctx context.Context, userID string) ([]model.ChatEntry, error) {
	path, err := l.path(userID)
	if err != nil {
		return nil, err
	}
	var entries []model.ChatEntry
	_ = l.locks.With(userID, func() error {
		entries = l.load(ctx, path)
		return nil
	})
	if entries == nil {
		entries = []model.ChatEntry{}
	}
	return entries, nil
}

func writeAtomic(path string, entries []model.ChatEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, data)
}
