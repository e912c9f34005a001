// Package application contains the background synchronization engine: the
// shared state aggregates, the job dispatcher, and the two refresher loops.
package application

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/clearsync/internal/domain/model"
)

// Settings is the mutex-guarded settings aggregate: credentials, the tracked
// friend list, and the friend-sharing toggle. It is read and written from the
// dispatcher, both refreshers, and the HTTP handlers; every critical section
// is a single field read or write so no lock is ever held across network I/O.
type Settings struct {
	mu             sync.Mutex
	credentials    []*model.Credential
	friends        []string
	friendsEnabled bool
}

// NewSettings creates an empty settings aggregate.
func NewSettings(friendsEnabled bool) *Settings {
	return &Settings{friendsEnabled: friendsEnabled}
}

// Seed installs the persisted credentials and friend list at startup.
func (s *Settings) Seed(credentials []model.Credential, friends []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials = s.credentials[:0]
	for i := range credentials {
		cred := credentials[i]
		s.credentials = append(s.credentials, &cred)
	}
	s.friends = append([]string(nil), friends...)
}

// FriendsEnabled reports whether the friend-sharing protocol is active.
func (s *Settings) FriendsEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.friendsEnabled
}

// AddCredential appends a credential to the aggregate.
func (s *Settings) AddCredential(cred *model.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials = append(s.credentials, cred)
}

// RemoveCredential deletes the credential with the given id. It reports
// whether anything was removed.
func (s *Settings) RemoveCredential(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cred := range s.credentials {
		if cred.ID == id {
			s.credentials = append(s.credentials[:i], s.credentials[i+1:]...)
			return true
		}
	}
	return false
}

// ChangeSecret rotates a credential's secret, invalidating its fetched facts.
// It reports whether the credential exists.
func (s *Settings) ChangeSecret(id uuid.UUID, secret string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cred := range s.credentials {
		if cred.ID == id {
			cred.ChangeSecret(secret)
			return true
		}
	}
	return false
}

// Credentials returns a snapshot of all credentials. The pointed-to fetched
// facts are treated as immutable once set (writers replace the whole
// pointer), so sharing them across the snapshot boundary is safe.
func (s *Settings) Credentials() []model.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Credential, 0, len(s.credentials))
	for _, cred := range s.credentials {
		out = append(out, *cred)
	}
	return out
}

// Credential returns a snapshot of one credential by id.
func (s *Settings) Credential(id uuid.UUID) (model.Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cred := range s.credentials {
		if cred.ID == id {
			return *cred, true
		}
	}
	return model.Credential{}, false
}

// SecretFor copies out the current secret of the credential with the given
// id. Job handlers call this at execution time rather than trusting secrets
// captured at enqueue time.
func (s *Settings) SecretFor(id uuid.UUID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cred := range s.credentials {
		if cred.ID == id {
			return cred.Secret, true
		}
	}
	return "", false
}

// SecretForHash copies out the secret whose hash matches. The friend-sharing
// service only knows credentials by hash, so subtoken upload jobs are keyed
// this way.
func (s *Settings) SecretForHash(keyHash string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cred := range s.credentials {
		if model.KeyHash(cred.Secret) == keyHash {
			return cred.Secret, true
		}
	}
	return "", false
}

// SetAccountData installs fetched account metadata on the credential. It
// reports false when the credential was removed in the meantime.
func (s *Settings) SetAccountData(id uuid.UUID, data *model.AccountData) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cred := range s.credentials {
		if cred.ID == id {
			cred.Account = data
			return true
		}
	}
	return false
}

// SetTokenInfo installs fetched token introspection on the credential. It
// reports false when the credential was removed in the meantime.
func (s *Settings) SetTokenInfo(id uuid.UUID, info *model.TokenInfo) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cred := range s.credentials {
		if cred.ID == id {
			cred.Token = info
			return true
		}
	}
	return false
}

// SetShowInClears toggles whether the credential participates in clears
// refreshes. It reports whether the credential exists.
func (s *Settings) SetShowInClears(id uuid.UUID, show bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cred := range s.credentials {
		if cred.ID == id {
			cred.ShowInClears = show
			return true
		}
	}
	return false
}

// FriendAccounts returns a snapshot of the tracked friend account names.
func (s *Settings) FriendAccounts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.friends...)
}

// AddFriend adds a tracked friend account name if not already present.
func (s *Settings) AddFriend(account string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.friends {
		if existing == account {
			return
		}
	}
	s.friends = append(s.friends, account)
}

// RemoveFriend deletes a tracked friend account name.
func (s *Settings) RemoveFriend(account string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.friends {
		if existing == account {
			s.friends = append(s.friends[:i], s.friends[i+1:]...)
			return
		}
	}
}

// FriendMetadata builds the per-request snapshot passed to friend-service
// calls: the deduplicated secrets of all sharing-usable credentials plus the
// tracked friend account names. Filtering and deduplication are idempotent.
func (s *Settings) FriendMetadata(now time.Time) model.FriendRequestMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(s.credentials))
	keys := make([]string, 0, len(s.credentials))
	for _, cred := range s.credentials {
		if !model.GetKeyUsability(cred, now).IsUsable() {
			continue
		}
		if _, dup := seen[cred.Secret]; dup {
			continue
		}
		seen[cred.Secret] = struct{}{}
		keys = append(keys, cred.Secret)
	}

	return model.FriendRequestMetadata{
		APIKeys:        keys,
		FriendAccounts: append([]string(nil), s.friends...),
	}
}
