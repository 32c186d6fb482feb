// Package index keeps one isolated semantic index per user.
package index

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/nixai/internal/ai"
	"github.com/xxxsen/nixai/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTopK             = 4
	defaultEmbedConcurrency = 4
	dimensionProbe          = "dimension probe"
)

var (
	ErrNoDocuments      = errors.New("no documents indexed for user")
	ErrInvalidTenant    = errors.New("invalid user id")
	ErrEmbedderMismatch = errors.New("index was built with a different embedder")
)

var tenantPattern = regexp.MustCompile(`^[A-Za-z0-9_.@-]{1,128}$`)

// Collection returns the namespace of userID.
func Collection(userID string) (string, error) {
	if !tenantPattern.MatchString(userID) || userID == "." || userID == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidTenant, userID)
	}
	return "user_" + userID, nil
}

type tenant struct {
	mu       sync.RWMutex
	opened   atomic.Bool
	manifest Manifest
}

type Option func(*Store)

func WithEmbedConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is the registry of tenant indexes. Tenants never share a lock.
type Store struct {
	backend     Backend
	embedder    ai.IEmbedder
	concurrency int
	now         func() time.Time
	tenants     sync.Map

	dimMu sync.Mutex
	dim   int
}

func NewStore(backend Backend, embedder ai.IEmbedder, opts ...Option) *Store {
	s := &Store{
		backend:     backend,
		embedder:    embedder,
		concurrency: defaultEmbedConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Embedder() ai.IEmbedder {
	return s.embedder
}

// Index is an opened tenant namespace.
type Index struct {
	UserID     string
	Collection string
	Manifest   Manifest
}

func (s *Store) tenant(collection string) *tenant {
	v, _ := s.tenants.LoadOrStore(collection, &tenant{})
	return v.(*tenant)
}

// dimension embeds a probe once to learn the vector size of the embedder.
func (s *Store) dimension(ctx context.Context) (int, error) {
	s.dimMu.Lock()
	defer s.dimMu.Unlock()
	if s.dim > 0 {
		return s.dim, nil
	}
	vec, err := s.embedder.Embed(ctx, dimensionProbe, ai.TaskTypeDocument)
	if err != nil {
		return 0, fmt.Errorf("probe embedding dimension: %w", err)
	}
	if len(vec) == 0 {
		return 0, errors.New("embedder returned an empty vector")
	}
	s.dim = len(vec)
	return s.dim, nil
}

// open loads or creates the namespace. Callers hold t.mu for writing.
func (s *Store) open(ctx context.Context, userID, collection string, t *tenant, create bool) error {
	if t.opened.Load() {
		return nil
	}
	exists, err := s.backend.Exists(ctx, collection)
	if err != nil {
		return err
	}
	if !exists {
		if !create {
			return ErrNoDocuments
		}
		dim, err := s.dimension(ctx)
		if err != nil {
			return err
		}
		m := Manifest{
			Collection: collection,
			UserID:     userID,
			ModelName:  s.embedder.ModelName(),
			Dimension:  dim,
			Ctime:      s.now().UnixMilli(),
		}
		if err := s.backend.Create(ctx, m); err != nil {
			return fmt.Errorf("create collection %s: %w", collection, err)
		}
		logutil.GetLogger(ctx).Info("tenant index created",
			zap.String("user_id", userID),
			zap.String("collection", collection),
			zap.String("backend", s.backend.Name()),
			zap.Int("dimension", dim))
	}
	m, err := s.backend.Describe(ctx, collection)
	if err != nil {
		return err
	}
	if m.ModelName != s.embedder.ModelName() {
		return fmt.Errorf("%w: collection %s uses %q, store uses %q", ErrEmbedderMismatch, collection, m.ModelName, s.embedder.ModelName())
	}
	t.manifest = *m
	t.opened.Store(true)
	return nil
}

func (s *Store) openExisting(ctx context.Context, userID string) (*tenant, string, error) {
	collection, err := Collection(userID)
	if err != nil {
		return nil, "", err
	}
	t := s.tenant(collection)
	if !t.opened.Load() {
		t.mu.Lock()
		err = s.open(ctx, userID, collection, t, false)
		t.mu.Unlock()
		if err != nil {
			return nil, "", err
		}
	}
	return t, collection, nil
}

// GetOrCreate returns the index of userID, creating it on first use. Concurrent callers
// for the same user observe a single creation.
func (s *Store) GetOrCreate(ctx context.Context, userID string) (*Index, error) {
	collection, err := Collection(userID)
	if err != nil {
		return nil, err
	}
	t := s.tenant(collection)
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := s.open(ctx, userID, collection, t, true); err != nil {
		return nil, err
	}
	return &Index{UserID: userID, Collection: collection, Manifest: t.manifest}, nil
}

// Get returns ErrNoDocuments when userID never ingested anything.
func (s *Store) Get(ctx context.Context, userID string) (*Index, error) {
	t, collection, err := s.openExisting(ctx, userID)
	if err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return &Index{UserID: userID, Collection: collection, Manifest: t.manifest}, nil
}

func (s *Store) embedChunks(ctx context.Context, chunks []model.Chunk) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.concurrency)
	for i := range chunks {
		if len(chunks[i].Embedding) > 0 {
			continue
		}
		i := i
		eg.Go(func() error {
			vec, err := s.embedder.Embed(ctx, chunks[i].Content, ai.TaskTypeDocument)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", chunks[i].Position, err)
			}
			chunks[i].Embedding = vec
			return nil
		})
	}
	return eg.Wait()
}

// Add embeds chunks and commits them to the index of userID in one step, creating
// the index if needed. It returns the number of chunks in the index afterwards.
func (s *Store) Add(ctx context.Context, userID string, chunks []model.Chunk) (int, error) {
	collection, err := Collection(userID)
	if err != nil {
		return 0, err
	}
	batch := make([]model.Chunk, len(chunks))
	copy(batch, chunks)
	now := s.now().UnixMilli()
	for i := range batch {
		if batch[i].ID == "" {
			batch[i].ID = uuid.NewString()
		}
		batch[i].UserID = userID
		if batch[i].Ctime == 0 {
			batch[i].Ctime = now
		}
	}
	if err := s.embedChunks(ctx, batch); err != nil {
		return 0, err
	}

	t := s.tenant(collection)
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := s.open(ctx, userID, collection, t, true); err != nil {
		return 0, err
	}
	for _, c := range batch {
		if len(c.Embedding) != t.manifest.Dimension {
			return 0, fmt.Errorf("%w: got vector of %d dimensions, collection has %d",
				ErrEmbedderMismatch, len(c.Embedding), t.manifest.Dimension)
		}
	}
	if len(batch) > 0 {
		if err := s.backend.Add(ctx, collection, batch); err != nil {
			return 0, fmt.Errorf("commit chunks to %s: %w", collection, err)
		}
	}
	return s.backend.Count(ctx, collection)
}

// Query returns up to k chunks of userID ranked by similarity to question. A non
// empty filter restricts the candidates to one source document.
func (s *Store) Query(ctx context.Context, userID string, question string, k int, filter string) ([]model.ScoredChunk, error) {
	t, collection, err := s.openExisting(ctx, userID)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = DefaultTopK
	}
	vec, err := s.embedder.Embed(ctx, question, ai.TaskTypeQuery)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(vec) != t.manifest.Dimension {
		return nil, fmt.Errorf("%w: question vector has %d dimensions, collection has %d",
			ErrEmbedderMismatch, len(vec), t.manifest.Dimension)
	}
	return s.backend.Search(ctx, collection, vec, k, filter)
}

func (s *Store) Count(ctx context.Context, userID string) (int, error) {
	t, collection, err := s.openExisting(ctx, userID)
	if err != nil {
		return 0, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return s.backend.Count(ctx, collection)
}
