package index

import (
	"context"
	"errors"
	"math"

	"github.com/xxxsen/nixai/internal/model"
)

var ErrCollectionNotFound = errors.New("collection not found")

// Manifest describes a tenant collection. ModelName and Dimension are fixed when the
// collection is created.
type Manifest struct {
	Collection string `json:"collection"`
	UserID     string `json:"user_id"`
	ModelName  string `json:"model_name"`
	Dimension  int    `json:"dimension"`
	Ctime      int64  `json:"ctime"`
}

// Backend persists collections. Add must be atomic: after a failed Add, Search and
// Count observe none of the given chunks.
type Backend interface {
	Name() string
	Exists(ctx context.Context, collection string) (bool, error)
	Create(ctx context.Context, m Manifest) error
	Describe(ctx context.Context, collection string) (*Manifest, error)
	Add(ctx context.Context, collection string, chunks []model.Chunk) error
	// Search ranks the chunks of a collection by cosine similarity to vec. A
	// non empty source keeps only chunks of that document before ranking.
	Search(ctx context.Context, collection string, vec []float32, k int, source string) ([]model.ScoredChunk, error)
	Count(ctx context.Context, collection string) (int, error)
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
