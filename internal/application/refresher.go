package application

import (
	"context"
	"log/slog"
	"time"
)

// ClearsRefresher is the periodic producer for personal data. Each cycle it
// re-derives demand from current settings and cache state and enqueues the
// corresponding jobs; it performs no network I/O itself. After enqueuing it
// publishes "now + interval" as the next wakeup for the status API.
type ClearsRefresher struct {
	settings   *Settings
	data       *Data
	submit     Submitter
	interval   time.Duration
	nextWakeup *NextWakeup
}

// NewClearsRefresher creates a refresher that wakes on the given interval.
func NewClearsRefresher(
	settings *Settings,
	data *Data,
	submit Submitter,
	interval time.Duration,
	nextWakeup *NextWakeup,
) *ClearsRefresher {
	return &ClearsRefresher{
		settings:   settings,
		data:       data,
		submit:     submit,
		interval:   interval,
		nextWakeup: nextWakeup,
	}
}

// Run cycles immediately, then on every interval, until ctx is canceled.
func (r *ClearsRefresher) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("clears refresher stopped")
			return
		case <-timer.C:
			r.Cycle()
			r.nextWakeup.Set(time.Now().Add(r.interval))
			timer.Reset(r.interval)
		}
	}
}

// Cycle enqueues one round of refresh jobs: the raid structure if absent,
// unknown account/token facts and visible clears for every credential, and
// clears for every friend with an active subtoken so friend data keeps pace
// with the same cadence.
func (r *ClearsRefresher) Cycle() {
	if !r.data.HasRaids() {
		r.submit.Submit(UpdateRaidsJob{})
	}

	for _, cred := range r.settings.Credentials() {
		if cred.Account == nil {
			r.submit.Submit(UpdateAccountDataJob{CredentialID: cred.ID})
		}
		if cred.Token == nil {
			r.submit.Submit(UpdateTokenInfoJob{CredentialID: cred.ID})
		}
		if cred.ShowInClears {
			r.submit.Submit(UpdateClearsJob{CredentialID: cred.ID})
		}
	}

	if state := r.data.FriendsState(); state != nil {
		for _, friend := range state.Friends {
			if friend.Subtoken != "" {
				r.submit.Submit(UpdateFriendClearsJob{Account: friend.Account, Subtoken: friend.Subtoken})
			}
		}
	}
}
