package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/nixai/internal/ai"
	"github.com/xxxsen/nixai/internal/chunker"
	"github.com/xxxsen/nixai/internal/config"
	"github.com/xxxsen/nixai/internal/db"
	"github.com/xxxsen/nixai/internal/embedcache"
	"github.com/xxxsen/nixai/internal/filestore"
	"github.com/xxxsen/nixai/internal/history"
	"github.com/xxxsen/nixai/internal/index"
	"github.com/xxxsen/nixai/internal/ingest"
	"github.com/xxxsen/nixai/internal/meta"
	"github.com/xxxsen/nixai/internal/rag"
	"github.com/xxxsen/nixai/internal/retry"
)

type app struct {
	cfg      *config.Config
	db       *sql.DB
	files    filestore.Store
	meta     meta.Store
	index    *index.Store
	pipeline *ingest.Pipeline
	engine   *rag.Engine
	history  *history.FileLog
}

func buildApp(cfg *config.Config, withGenerator bool) (*app, error) {
	a := &app{cfg: cfg}
	var err error
	if cfg.NeedDatabase() {
		a.db, err = db.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		if err := db.ApplyMigrations(a.db); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if err := a.init(withGenerator); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(withGenerator bool) error {
	cfg := a.cfg
	var err error
	a.files, err = filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}
	switch cfg.Metadata.Type {
	case "postgres":
		a.meta = meta.NewPostgresStore(a.db)
	default:
		a.meta, err = meta.NewFileStore(cfg.Metadata.Path)
		if err != nil {
			return fmt.Errorf("init metadata store: %w", err)
		}
	}
	var backend index.Backend
	switch cfg.Index.Type {
	case "pgvector":
		backend = index.NewPGVectorBackend(a.db)
	default:
		backend, err = index.NewLocalBackend(cfg.Index.Dir)
		if err != nil {
			return fmt.Errorf("init index: %w", err)
		}
	}
	embedder, err := buildEmbedder(cfg.AI)
	if err != nil {
		return err
	}
	a.index = index.NewStore(backend, embedder, index.WithEmbedConcurrency(cfg.Ingest.EmbedConcurrency))
	ch := chunker.New(chunker.WithChunkSize(cfg.Ingest.ChunkSize), chunker.WithOverlap(cfg.Ingest.ChunkOverlap))
	a.pipeline = ingest.NewPipeline(a.files, a.meta, a.index, ch)

	a.history, err = history.NewFileLog(cfg.History.Dir, cfg.History.MaxEntries)
	if err != nil {
		return fmt.Errorf("init chat history: %w", err)
	}
	if !withGenerator {
		return nil
	}
	gen, err := buildGenerator(cfg.AI)
	if err != nil {
		return err
	}
	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Backoff: retry.Exponential(
			time.Duration(cfg.Retry.InitialBackoffMs)*time.Millisecond,
			time.Duration(cfg.Retry.MaxBackoffMs)*time.Millisecond,
		),
	}
	a.engine = rag.NewEngine(a.index, rag.NewAnswerer(gen, policy), cfg.Retrieval.TopK)
	return nil
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

func buildEmbedder(cfg config.AIConfig) (ai.IEmbedder, error) {
	args := cfg.EmbedData
	if args == nil && cfg.EmbedProvider == cfg.Provider {
		args = cfg.Data
	}
	provider, err := ai.NewEmbedProvider(cfg.EmbedProvider, args)
	if err != nil {
		return nil, fmt.Errorf("init embed provider: %w", err)
	}
	var embedder ai.IEmbedder = ai.NewEmbedder(provider, cfg.EmbedModel)
	if cfg.EmbedCacheSize > 0 {
		embedder = embedcache.Wrap(embedder, cfg.EmbedCacheSize, time.Duration(cfg.EmbedCacheTTLSeconds)*time.Second)
	}
	return ai.WrapRateLimitEmbedder(embedder, cfg.EmbedRPS, 1), nil
}

// buildGenerator chains the primary provider with its fallbacks.
func buildGenerator(cfg config.AIConfig) (ai.IGenerator, error) {
	logger := logutil.GetLogger(context.Background())
	confs := append([]config.AIProviderConf{{Provider: cfg.Provider, Model: cfg.Model, Data: cfg.Data}}, cfg.Fallbacks...)
	var items []ai.GeneratorEntry
	for _, conf := range confs {
		if conf.Provider == "" {
			continue
		}
		provider, err := ai.NewProvider(conf.Provider, conf.Data)
		if err != nil {
			return nil, fmt.Errorf("init ai provider %s: %w", conf.Provider, err)
		}
		logger.Info("ai provider enabled", zap.String("provider", conf.Provider), zap.String("model", conf.Model))
		items = append(items, ai.GeneratorEntry{
			Name:      conf.Provider + ":" + conf.Model,
			Generator: ai.NewGenerator(provider, conf.Model),
		})
	}
	gen := ai.NewGroupGenerator(items)
	if gen == nil {
		return nil, fmt.Errorf("no usable ai provider configured: %w", ai.ErrUnavailable)
	}
	return ai.WrapTimeoutGenerator(gen, time.Duration(cfg.TimeoutSeconds)*time.Second), nil
}
