// Package meta records per document ingestion status.
package meta

import (
	"context"
	"errors"

	"github.com/xxxsen/nixai/internal/model"
)

var ErrNotFound = errors.New("document metadata not found")

// Store is keyed by (UserID, Filename). Records are never deleted.
type Store interface {
	Upsert(ctx context.Context, m *model.DocumentMeta) error
	Get(ctx context.Context, userID, filename string) (*model.DocumentMeta, error)
	ListByUser(ctx context.Context, userID string) ([]model.DocumentMeta, error)
	List(ctx context.Context) ([]model.DocumentMeta, error)
}
