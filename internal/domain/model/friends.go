package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// SubtokenPermissions is the fixed permission set requested for subtokens
// minted for the friend-sharing service.
var SubtokenPermissions = []string{"account", "progression"}

// SubtokenURLs is the fixed path allowlist requested for subtokens minted for
// the friend-sharing service. A credential that is itself a subtoken must
// cover at least these paths to be usable for sharing.
var SubtokenURLs = []string{
	"/v2/tokeninfo",
	"/v2/createsubtoken",
	"/v2/account",
	"/v2/account/achievements",
	"/v2/account/dungeons",
	"/v2/account/worldbosses",
	"/v2/account/masteries",
	"/v2/account/raids",
}

// SubtokenValidity is how long subtokens registered with the friend-sharing
// service are minted for.
const SubtokenValidity = 365 * 24 * time.Hour

// KeyHash returns the hex SHA-256 digest of a credential secret. The
// friend-sharing service identifies credentials only by this hash; the raw
// secret of a fully privileged key never leaves the process.
func KeyHash(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// ShareState is one grant of a key to a named friend account, as reported by
// the friend-sharing service.
type ShareState struct {
	Account          string
	AddedAt          time.Time
	AccountAvailable bool
}

// KeyState is the friend-sharing service's view of one locally owned
// credential, identified by its hash.
type KeyState struct {
	KeyHash           string
	SharedTo          []ShareState
	SubtokenAddedAt   *time.Time
	SubtokenExpiresAt *time.Time
	Account           string
	Public            bool
}

// FriendState describes an account that shared a key with us. The subtoken is
// an ephemeral credential usable directly against the progression API to
// fetch that friend's clears.
type FriendState struct {
	Account    string
	Subtoken   string
	ExpiresAt  time.Time
	SharedWith []string
}

// FriendsState is the complete server-side sharing state. Every successful
// friend-service call returns one of these, and it fully replaces the local
// cache; the server is the source of truth and no client-side merge happens.
type FriendsState struct {
	Keys    []KeyState
	Friends []FriendState
}

// FriendRequestMetadata is a per-request snapshot passed to every
// friend-service call: the deduplicated usable credential secrets (hashed by
// the client before they hit the wire) and the friend account names we track.
// It is copied out of settings before the call so no lock is held during
// network I/O.
type FriendRequestMetadata struct {
	APIKeys        []string
	FriendAccounts []string
}

// KeyUsability is the friend-sharing eligibility of a credential. Anything
// other than usable is a precondition gate requiring user action, not an
// error.
type KeyUsability string

const (
	KeyUsable                   KeyUsability = "usable"
	KeyNoTokenInfo              KeyUsability = "no_token_info"
	KeyInsufficientPermissions  KeyUsability = "insufficient_permissions"
	KeyInsufficientSubtokenURLs KeyUsability = "insufficient_subtoken_urls"
	KeySubtokenExpired          KeyUsability = "subtoken_expired"
)

// IsUsable reports whether the credential may be used for friend sharing.
func (u KeyUsability) IsUsable() bool {
	return u == KeyUsable
}

// GetKeyUsability evaluates whether a credential can be shared through the
// friend-sharing service: token introspection must be known, the required
// permissions must all be granted, and a subtoken must be unexpired and cover
// the required path allowlist (when it carries one).
func GetKeyUsability(c *Credential, now time.Time) KeyUsability {
	info := c.Token
	if info == nil {
		return KeyNoTokenInfo
	}

	for _, permission := range SubtokenPermissions {
		if !info.HasPermission(permission) {
			return KeyInsufficientPermissions
		}
	}

	switch info.Kind {
	case TokenKindAPIKey:
		return KeyUsable
	case TokenKindSubtoken:
		if info.URLs != nil && !coversAll(info.URLs, SubtokenURLs) {
			return KeyInsufficientSubtokenURLs
		}
		if info.ExpiresAt.Before(now) {
			return KeySubtokenExpired
		}
		return KeyUsable
	default:
		return KeyNoTokenInfo
	}
}

func coversAll(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
