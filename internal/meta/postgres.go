package meta

import (
	"context"
	"database/sql"
	"errors"

	"github.com/didi/gendry/builder"
	"github.com/xxxsen/nixai/internal/model"
	"github.com/xxxsen/nixai/internal/pkg/dbutil"
)

const documentTable = "rag_documents"

var documentColumns = []string{
	"user_id", "filename", "stored_key", "chunk_count", "index_size", "status", "error", "ctime", "mtime",
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, m *model.DocumentMeta) error {
	if m == nil || m.UserID == "" || m.Filename == "" {
		return errors.New("user id and filename are required")
	}
	data := map[string]interface{}{
		"user_id":     m.UserID,
		"filename":    m.Filename,
		"stored_key":  m.StoredKey,
		"chunk_count": m.ChunkCount,
		"index_size":  m.IndexSize,
		"status":      string(m.Status),
		"error":       m.Error,
		"ctime":       m.Ctime,
		"mtime":       m.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert(documentTable, []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr += ` ON CONFLICT (user_id, filename) DO UPDATE SET
		stored_key = EXCLUDED.stored_key,
		chunk_count = EXCLUDED.chunk_count,
		index_size = EXCLUDED.index_size,
		status = EXCLUDED.status,
		error = EXCLUDED.error,
		mtime = EXCLUDED.mtime`
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = s.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (s *PostgresStore) query(ctx context.Context, where map[string]interface{}) ([]model.DocumentMeta, error) {
	sqlStr, args, err := builder.BuildSelect(documentTable, where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.DocumentMeta
	for rows.Next() {
		var m model.DocumentMeta
		var status string
		if err := rows.Scan(&m.UserID, &m.Filename, &m.StoredKey, &m.ChunkCount, &m.IndexSize,
			&status, &m.Error, &m.Ctime, &m.Mtime); err != nil {
			return nil, err
		}
		m.Status = model.DocumentStatus(status)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, userID, filename string) (*model.DocumentMeta, error) {
	items, err := s.query(ctx, map[string]interface{}{
		"user_id":  userID,
		"filename": filename,
		"_limit":   []uint{0, 1},
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return &items[0], nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]model.DocumentMeta, error) {
	return s.query(ctx, map[string]interface{}{
		"user_id":  userID,
		"_orderby": "ctime asc, filename asc",
	})
}

func (s *PostgresStore) List(ctx context.Context) ([]model.DocumentMeta, error) {
	return s.query(ctx, map[string]interface{}{
		"_orderby": "ctime asc, user_id asc, filename asc",
	})
}
