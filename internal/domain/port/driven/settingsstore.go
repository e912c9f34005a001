package driven

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ericfisherdev/clearsync/internal/domain/model"
)

// ErrEncryptionKeyNotSet is returned by CredentialStore operations when an
// encrypted credential is encountered but CLEARSYNC_SECRET_KEY has not been
// configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set CLEARSYNC_SECRET_KEY")

// CredentialStore persists the credential list across restarts. Only the
// stable id, the secret, and the visibility flag are stored; fetched facts
// (account metadata, token introspection) are ephemeral and re-derived by the
// refreshers after startup.
type CredentialStore interface {
	// List returns all stored credentials with decrypted secrets.
	List(ctx context.Context) ([]model.Credential, error)

	// Upsert stores or replaces the credential identified by its id.
	Upsert(ctx context.Context, cred model.Credential) error

	// Delete removes the credential with the given id. Deleting an unknown id
	// is not an error.
	Delete(ctx context.Context, id uuid.UUID) error
}

// FriendListStore persists the set of friend account names we track.
type FriendListStore interface {
	// List returns all tracked friend account names in insertion order.
	List(ctx context.Context) ([]string, error)

	// Add stores a friend account name. Adding an existing name is a no-op.
	Add(ctx context.Context, account string) error

	// Remove deletes a friend account name. Removing an unknown name is not
	// an error.
	Remove(ctx context.Context, account string) error
}
