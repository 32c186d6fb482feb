package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/xxxsen/nixai/internal/model"
)

// PGVectorBackend stores collections in postgres tables rag_collections and
// rag_chunks. The tables are created by the db migrations.
type PGVectorBackend struct {
	db *sql.DB
}

func NewPGVectorBackend(db *sql.DB) *PGVectorBackend {
	return &PGVectorBackend{db: db}
}

func (b *PGVectorBackend) Name() string {
	return "pgvector"
}

func (b *PGVectorBackend) Exists(ctx context.Context, collection string) (bool, error) {
	var n int
	err := b.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM rag_collections WHERE collection = $1`, collection).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (b *PGVectorBackend) Create(ctx context.Context, m Manifest) error {
	const query = `
		INSERT INTO rag_collections (collection, user_id, model_name, dimension, ctime)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (collection) DO NOTHING
	`
	_, err := b.db.ExecContext(ctx, query, m.Collection, m.UserID, m.ModelName, m.Dimension, m.Ctime)
	return err
}

func (b *PGVectorBackend) Describe(ctx context.Context, collection string) (*Manifest, error) {
	const query = `
		SELECT collection, user_id, model_name, dimension, ctime
		FROM rag_collections
		WHERE collection = $1
	`
	m := &Manifest{}
	err := b.db.QueryRowContext(ctx, query, collection).Scan(&m.Collection, &m.UserID, &m.ModelName, &m.Dimension, &m.Ctime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCollectionNotFound
		}
		return nil, err
	}
	return m, nil
}

func (b *PGVectorBackend) Add(ctx context.Context, collection string, chunks []model.Chunk) (err error) {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rag_chunks (id, collection, user_id, source, segment, position, content, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, c := range chunks {
		if _, err = stmt.ExecContext(ctx, c.ID, collection, c.UserID, c.Source, c.Segment, c.Position,
			c.Content, pgvector.NewVector(c.Embedding), c.Ctime); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

func (b *PGVectorBackend) Search(ctx context.Context, collection string, vec []float32, k int, source string) ([]model.ScoredChunk, error) {
	query := `
		SELECT id, user_id, source, segment, position, content, ctime, 1 - (embedding <=> $2) AS score
		FROM rag_chunks
		WHERE collection = $1`
	args := []interface{}{collection, pgvector.NewVector(vec)}
	if source != "" {
		query += ` AND source = $3`
		args = append(args, source)
	}
	if k <= 0 {
		k = DefaultTopK
	}
	query += fmt.Sprintf(` ORDER BY embedding <=> $2, seq LIMIT %d`, k)
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ScoredChunk
	for rows.Next() {
		var sc model.ScoredChunk
		var score float64
		if err := rows.Scan(&sc.ID, &sc.UserID, &sc.Source, &sc.Segment, &sc.Position, &sc.Content, &sc.Ctime, &score); err != nil {
			return nil, err
		}
		sc.Score = float32(score)
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (b *PGVectorBackend) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := b.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM rag_chunks WHERE collection = $1`, collection).Scan(&n)
	return n, err
}
