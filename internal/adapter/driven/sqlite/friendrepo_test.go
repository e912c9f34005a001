package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFriendRepo_AddListRemove(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFriendRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, "First.1234"))
	require.NoError(t, repo.Add(ctx, "Second.5678"))
	// Adding an existing name is a no-op.
	require.NoError(t, repo.Add(ctx, "First.1234"))

	accounts, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"First.1234", "Second.5678"}, accounts)

	require.NoError(t, repo.Remove(ctx, "First.1234"))
	// Removing an unknown name is not an error.
	require.NoError(t, repo.Remove(ctx, "Missing.0000"))

	accounts, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Second.5678"}, accounts)
}

func TestFriendRepo_EmptyList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFriendRepo(db)

	accounts, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts)
}
