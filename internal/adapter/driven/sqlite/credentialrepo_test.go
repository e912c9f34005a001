package sqlite

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/clearsync/internal/domain/model"
	"github.com/ericfisherdev/clearsync/internal/domain/port/driven"
)

func testKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func TestCredentialRepo_UpsertAndList(t *testing.T) {
	db := setupTestDB(t)
	repo, err := NewCredentialRepo(db, testKey())
	require.NoError(t, err)
	ctx := context.Background()

	cred := model.NewCredential("secret-1")
	cred.ShowInClears = false
	require.NoError(t, repo.Upsert(ctx, *cred))

	listed, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, cred.ID, listed[0].ID)
	assert.Equal(t, "secret-1", listed[0].Secret)
	assert.False(t, listed[0].ShowInClears)
	// Fetched facts are never persisted.
	assert.Nil(t, listed[0].Account)
	assert.Nil(t, listed[0].Token)

	// Upsert replaces in place.
	cred.Secret = "rotated"
	cred.ShowInClears = true
	require.NoError(t, repo.Upsert(ctx, *cred))

	listed, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "rotated", listed[0].Secret)
	assert.True(t, listed[0].ShowInClears)
}

func TestCredentialRepo_SecretsEncryptedAtRest(t *testing.T) {
	db := setupTestDB(t)
	repo, err := NewCredentialRepo(db, testKey())
	require.NoError(t, err)
	ctx := context.Background()

	cred := model.NewCredential("very-secret-value")
	require.NoError(t, repo.Upsert(ctx, *cred))

	var stored string
	require.NoError(t, db.Reader.QueryRowContext(ctx, `SELECT secret FROM credentials`).Scan(&stored))
	assert.True(t, strings.HasPrefix(stored, encryptedPrefix))
	assert.NotContains(t, stored, "very-secret-value")
}

func TestCredentialRepo_PlaintextWithoutKey(t *testing.T) {
	db := setupTestDB(t)
	repo, err := NewCredentialRepo(db, nil)
	require.NoError(t, err)
	ctx := context.Background()

	cred := model.NewCredential("secret-1")
	require.NoError(t, repo.Upsert(ctx, *cred))

	listed, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "secret-1", listed[0].Secret)
}

func TestCredentialRepo_EncryptedRowsNeedKey(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	withKey, err := NewCredentialRepo(db, testKey())
	require.NoError(t, err)
	require.NoError(t, withKey.Upsert(ctx, *model.NewCredential("secret-1")))

	withoutKey, err := NewCredentialRepo(db, nil)
	require.NoError(t, err)
	_, err = withoutKey.List(ctx)
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)
}

func TestCredentialRepo_BadKeyLength(t *testing.T) {
	db := setupTestDB(t)
	_, err := NewCredentialRepo(db, []byte("too short"))
	assert.Error(t, err)
}

func TestCredentialRepo_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo, err := NewCredentialRepo(db, nil)
	require.NoError(t, err)
	ctx := context.Background()

	cred := model.NewCredential("secret-1")
	require.NoError(t, repo.Upsert(ctx, *cred))
	require.NoError(t, repo.Delete(ctx, cred.ID))

	listed, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)

	// Deleting an unknown id is not an error.
	assert.NoError(t, repo.Delete(ctx, cred.ID))
}
