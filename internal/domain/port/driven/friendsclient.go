package driven

import (
	"context"

	"github.com/ericfisherdev/clearsync/internal/domain/model"
)

// FriendsClient is the driven port for the friend-sharing service. The
// service identifies credentials only by their one-way hash; metadata carries
// raw secrets solely so the adapter can derive the authentication hashes it
// sends, and every successful call returns the complete updated server-side
// state.
type FriendsClient interface {
	// FetchState returns the full sharing state for the credentials and
	// friend accounts named in the metadata.
	FetchState(ctx context.Context, meta model.FriendRequestMetadata) (*model.FriendsState, error)

	// RegisterSubtoken stores a freshly minted subtoken for the hashed
	// credential.
	RegisterSubtoken(ctx context.Context, meta model.FriendRequestMetadata, keyHash, subtoken string) (*model.FriendsState, error)

	// Share grants the named account access to the hashed credential.
	Share(ctx context.Context, meta model.FriendRequestMetadata, keyHash, account string) (*model.FriendsState, error)

	// Unshare revokes the named account's access to the hashed credential.
	Unshare(ctx context.Context, meta model.FriendRequestMetadata, keyHash, account string) (*model.FriendsState, error)

	// SetPublic toggles public visibility of the hashed credential.
	SetPublic(ctx context.Context, meta model.FriendRequestMetadata, keyHash string, public bool) (*model.FriendsState, error)
}
