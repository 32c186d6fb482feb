package index

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xxxsen/nixai/internal/testutil"
)

func TestPGVectorBackend(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	s := NewStore(NewPGVectorBackend(conn), hashEmbedder(t))
	ctx := context.Background()
	user := fmt.Sprintf("pg_%d", time.Now().UnixNano())

	_, err := s.Get(ctx, user)
	require.ErrorIs(t, err, ErrNoDocuments)

	n, err := s.Add(ctx, user, chunks("france.txt", "Paris is the capital of France.", "Lyon is known for food."))
	require.NoError(t, err)
	require.Equal(t, 2, n)
	n, err = s.Add(ctx, user, chunks("germany.txt", "Berlin is the capital of Germany."))
	require.NoError(t, err)
	require.Equal(t, 3, n)

	res, err := s.Query(ctx, user, "capital of France", 4, "france.txt")
	require.NoError(t, err)
	require.Len(t, res, 2)
	for _, r := range res {
		require.Equal(t, "france.txt", r.Source)
	}
	res, err = s.Query(ctx, user, "capital", 4, "none.txt")
	require.NoError(t, err)
	require.Empty(t, res)
}
