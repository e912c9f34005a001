package application

import (
	"context"
	"log/slog"
	"time"
)

const (
	// friendRefreshInterval is deliberately much tighter than the clears
	// refresher: subtoken expiry is time-critical and each cycle is a cheap
	// in-memory inspection.
	friendRefreshInterval = 10 * time.Second

	// subtokenRenewalWindow is how much remaining validity a registered
	// subtoken must have before a fresh one is uploaded.
	subtokenRenewalWindow = 60 * 24 * time.Hour

	// friendSubtokenExpiryWindow triggers a full state refresh shortly before
	// a friend-issued subtoken lapses; the friend service has usually rotated
	// in a newer one that we simply haven't fetched yet.
	friendSubtokenExpiryWindow = time.Hour
)

// FriendRefresher is the periodic producer that keeps the sharing protocol
// healthy: bootstrap state fetch, proactive re-upload of our subtokens, and
// full refresh before friend-issued subtokens expire. It only produces jobs
// while friend sharing is enabled in settings.
type FriendRefresher struct {
	settings *Settings
	data     *Data
	submit   Submitter
}

// NewFriendRefresher creates a friend refresher over the given aggregates.
func NewFriendRefresher(settings *Settings, data *Data, submit Submitter) *FriendRefresher {
	return &FriendRefresher{settings: settings, data: data, submit: submit}
}

// Run cycles every friendRefreshInterval until ctx is canceled.
func (r *FriendRefresher) Run(ctx context.Context) {
	ticker := time.NewTicker(friendRefreshInterval)
	defer ticker.Stop()

	for {
		r.Cycle(time.Now().UTC())

		select {
		case <-ctx.Done():
			slog.Info("friend refresher stopped")
			return
		case <-ticker.C:
		}
	}
}

// Cycle inspects the cached friend state at the given instant and enqueues
// whatever maintenance the protocol needs.
func (r *FriendRefresher) Cycle(now time.Time) {
	if !r.settings.FriendsEnabled() {
		return
	}

	state := r.data.FriendsState()
	if state == nil {
		r.submit.Submit(UpdateFriendStateJob{})
		return
	}

	for _, key := range state.Keys {
		valid := key.SubtokenExpiresAt != nil && key.SubtokenExpiresAt.Sub(now) > subtokenRenewalWindow
		if !valid {
			r.submit.Submit(UploadFriendSubtokenJob{KeyHash: key.KeyHash})
		}
	}

	for _, friend := range state.Friends {
		if friend.Subtoken != "" && friend.ExpiresAt.Sub(now) < friendSubtokenExpiryWindow {
			r.submit.Submit(UpdateFriendStateJob{})
			break
		}
	}
}
