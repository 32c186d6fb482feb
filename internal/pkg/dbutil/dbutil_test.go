package dbutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestFinalize(t *testing.T) {
	q, args := Finalize("SELECT * FROM rag_documents WHERE user_id=? LIMIT ?,?", []interface{}{"u1", 10, 20})
	require.Equal(t, "SELECT * FROM rag_documents WHERE user_id=$1 LIMIT $2 OFFSET $3", q)
	require.Equal(t, []interface{}{"u1", 20, 10}, args)

	q, args = Finalize("SELECT * FROM rag_documents WHERE user_id=?", []interface{}{"u1"})
	require.Equal(t, "SELECT * FROM rag_documents WHERE user_id=$1", q)
	require.Len(t, args, 1)
}

func TestErrorCodes(t *testing.T) {
	conflict := fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})
	require.True(t, IsConflict(conflict))
	require.False(t, IsUndefinedTable(conflict))
	require.True(t, IsUndefinedTable(&pq.Error{Code: "42P01"}))
	require.False(t, IsConflict(errors.New("plain")))
}
