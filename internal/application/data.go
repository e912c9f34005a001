package application

import (
	"sync"

	"github.com/google/uuid"

	"github.com/ericfisherdev/clearsync/internal/domain/model"
)

// Data is the mutex-guarded data aggregate: the raid structure, the
// per-credential clear cache, and the friend-sharing state and friend clear
// caches. All writers are dispatcher job handlers; readers are the refreshers
// and the HTTP handlers. Critical sections are single reads or writes.
type Data struct {
	mu           sync.Mutex
	raids        *model.RaidWings
	clears       map[uuid.UUID]model.RaidClearState
	friendsState *model.FriendsState
	friendClears map[string]model.RaidClearState
}

// NewData creates an empty data aggregate.
func NewData() *Data {
	return &Data{
		clears:       make(map[uuid.UUID]model.RaidClearState),
		friendClears: make(map[string]model.RaidClearState),
	}
}

// Raids returns the raid structure, or nil if not fetched yet. The returned
// value is immutable once set.
func (d *Data) Raids() *model.RaidWings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.raids
}

// HasRaids reports whether the raid structure has been fetched.
func (d *Data) HasRaids() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.raids != nil
}

// SetRaids stores the raid structure if not already present. The structure is
// fetched once per process lifetime and never invalidated.
func (d *Data) SetRaids(raids *model.RaidWings) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.raids == nil {
		d.raids = raids
	}
}

// ClearState returns the cached clear state for a credential.
func (d *Data) ClearState(id uuid.UUID) (model.RaidClearState, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	state, ok := d.clears[id]
	return state, ok
}

// SetClearState stores a clear state for a credential. Callers must always
// populate finished ids and the remote last-modified instant together.
func (d *Data) SetClearState(id uuid.UUID, state model.RaidClearState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clears[id] = state
}

// RemoveClearState drops the cached clear state for a removed credential.
func (d *Data) RemoveClearState(id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.clears, id)
}

// ClearStates returns a snapshot of all per-credential clear states.
func (d *Data) ClearStates() map[uuid.UUID]model.RaidClearState {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[uuid.UUID]model.RaidClearState, len(d.clears))
	for id, state := range d.clears {
		out[id] = state
	}
	return out
}

// FriendsState returns the last friend-service state, or nil if never
// fetched.
func (d *Data) FriendsState() *model.FriendsState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.friendsState
}

// SetFriendsState replaces the friend-service state wholesale. The server is
// the source of truth; no client-side merge happens.
func (d *Data) SetFriendsState(state *model.FriendsState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.friendsState = state
}

// FriendClears returns the cached clear state for a friend account.
func (d *Data) FriendClears(account string) (model.RaidClearState, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	state, ok := d.friendClears[account]
	return state, ok
}

// SetFriendClears stores a clear state for a friend account.
func (d *Data) SetFriendClears(account string, state model.RaidClearState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.friendClears[account] = state
}

// FriendClearsAll returns a snapshot of all friend clear states.
func (d *Data) FriendClearsAll() map[string]model.RaidClearState {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]model.RaidClearState, len(d.friendClears))
	for account, state := range d.friendClears {
		out[account] = state
	}
	return out
}
