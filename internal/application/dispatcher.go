package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/ericfisherdev/clearsync/internal/domain/model"
	"github.com/ericfisherdev/clearsync/internal/domain/port/driven"
)

// Dispatcher drains the job queue on a single goroutine and executes each job
// against the two remote services. Single-consumer draining is the engine's
// core invariant: at most one in-flight remote call touches a given
// credential's or friend's record at a time, so job handlers never race on
// the shared aggregates.
//
// No job is retried. Errors are logged at warning level with the job kind and
// affected id, then dropped; the periodic refreshers re-derive the same
// demand on their next cycle, which acts as a fixed-interval retry.
type Dispatcher struct {
	settings *Settings
	data     *Data
	api      driven.ProgressionClient
	friends  driven.FriendsClient
	submit   Submitter
}

// NewDispatcher creates a dispatcher over the given aggregates and clients.
// submit is used for jobs the dispatcher chains onto its own queue.
func NewDispatcher(
	settings *Settings,
	data *Data,
	api driven.ProgressionClient,
	friends driven.FriendsClient,
	submit Submitter,
) *Dispatcher {
	return &Dispatcher{
		settings: settings,
		data:     data,
		api:      api,
		friends:  friends,
		submit:   submit,
	}
}

// Run consumes jobs in strict FIFO order until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context, jobs <-chan ApiJob) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("dispatcher stopped")
			return
		case job := <-jobs:
			d.handle(ctx, job)
		}
	}
}

// handle executes a single job. Secrets and metadata are always copied out of
// the settings aggregate under a short lock immediately before the network
// call; nothing captured at enqueue time is trusted.
func (d *Dispatcher) handle(ctx context.Context, job ApiJob) {
	switch j := job.(type) {
	case UpdateRaidsJob:
		d.updateRaids(ctx)
	case UpdateClearsJob:
		d.updateClears(ctx, j)
	case UpdateAccountDataJob:
		d.updateAccountData(ctx, j)
	case UpdateTokenInfoJob:
		d.updateTokenInfo(ctx, j)
	case UploadFriendSubtokenJob:
		d.uploadFriendSubtoken(ctx, j)
	case UpdateFriendStateJob:
		d.updateFriendState(ctx)
	case UpdateFriendClearsJob:
		d.updateFriendClears(ctx, j)
	case ShareKeyJob:
		d.shareKey(ctx, j)
	case UnshareKeyJob:
		d.unshareKey(ctx, j)
	case SetKeyPublicJob:
		d.setKeyPublic(ctx, j)
	case SetAllKeysPublicJob:
		d.setAllKeysPublic(ctx, j)
	}
}

func (d *Dispatcher) updateRaids(ctx context.Context) {
	if d.data.HasRaids() {
		return
	}

	raids, err := d.api.FetchRaids(ctx)
	if err != nil {
		slog.Warn("raid structure refresh failed", "job", "update_raids", "error", err)
		return
	}
	d.data.SetRaids(raids)
	slog.Info("raid structure loaded", "wings", len(raids.Wings), "encounters", raids.EncounterCount())
}

func (d *Dispatcher) updateClears(ctx context.Context, job UpdateClearsJob) {
	secret, ok := d.settings.SecretFor(job.CredentialID)
	if !ok || secret == "" {
		return
	}

	finished, err := d.api.FetchFinishedEncounters(ctx, secret)
	if err != nil {
		slog.Warn("clears refresh failed", "job", "update_clears", "credential", job.CredentialID, "error", err)
		return
	}

	lastModified, err := d.api.FetchLastModified(ctx, secret)
	if err != nil {
		slog.Warn("last-modified fetch failed", "job", "update_clears", "credential", job.CredentialID, "error", err)
		return
	}

	// Finished ids and the remote last-modified instant are written together
	// as one record; the freshness check is meaningless without both.
	d.data.SetClearState(job.CredentialID, model.RaidClearState{
		FinishedEncounterIDs: finished,
		CheckedAt:            time.Now().UTC(),
		LastModified:         lastModified,
	})
}

func (d *Dispatcher) updateAccountData(ctx context.Context, job UpdateAccountDataJob) {
	secret, ok := d.settings.SecretFor(job.CredentialID)
	if !ok || secret == "" {
		return
	}

	account, err := d.api.FetchAccount(ctx, secret)
	if err != nil {
		slog.Warn("account data refresh failed", "job", "update_account_data", "credential", job.CredentialID, "error", err)
		return
	}

	if !d.settings.SetAccountData(job.CredentialID, account) {
		slog.Warn("credential removed before account data arrived", "credential", job.CredentialID)
	}
}

func (d *Dispatcher) updateTokenInfo(ctx context.Context, job UpdateTokenInfoJob) {
	secret, ok := d.settings.SecretFor(job.CredentialID)
	if !ok || secret == "" {
		return
	}

	info, err := d.api.FetchTokenInfo(ctx, secret)
	if err != nil {
		slog.Warn("token introspection failed", "job", "update_token_info", "credential", job.CredentialID, "error", err)
		return
	}

	if !d.settings.SetTokenInfo(job.CredentialID, info) {
		slog.Warn("credential removed before token info arrived", "credential", job.CredentialID)
		return
	}

	// Token info arrives after account data, so both facts are now known and
	// the credential can be evaluated for sharing eligibility.
	d.submit.Submit(UpdateFriendStateJob{})
}

func (d *Dispatcher) uploadFriendSubtoken(ctx context.Context, job UploadFriendSubtokenJob) {
	if !d.settings.FriendsEnabled() {
		return
	}

	// The friend service identifies keys by hash, so the job is keyed the
	// same way. The credential may have been removed or rotated since the
	// friend refresher scheduled the upload.
	secret, ok := d.settings.SecretForHash(job.KeyHash)
	if !ok {
		slog.Warn("no credential matches scheduled subtoken upload", "key_hash", job.KeyHash)
		return
	}

	expiresAt := time.Now().UTC().Add(model.SubtokenValidity)
	subtoken, err := d.api.CreateSubtoken(ctx, secret, model.SubtokenPermissions, model.SubtokenURLs, expiresAt)
	if err != nil {
		slog.Warn("subtoken mint failed", "job", "upload_friend_subtoken", "key_hash", job.KeyHash, "error", err)
		return
	}

	meta := d.settings.FriendMetadata(time.Now().UTC())
	state, err := d.friends.RegisterSubtoken(ctx, meta, job.KeyHash, subtoken)
	if err != nil {
		slog.Warn("subtoken registration failed", "job", "upload_friend_subtoken", "key_hash", job.KeyHash, "error", err)
		return
	}
	d.data.SetFriendsState(state)
}

func (d *Dispatcher) updateFriendState(ctx context.Context) {
	if !d.settings.FriendsEnabled() {
		return
	}

	meta := d.settings.FriendMetadata(time.Now().UTC())
	state, err := d.friends.FetchState(ctx, meta)
	if err != nil {
		slog.Warn("friend state refresh failed", "job", "update_friend_state", "error", err)
		return
	}

	for _, friend := range state.Friends {
		if friend.Subtoken != "" {
			d.submit.Submit(UpdateFriendClearsJob{Account: friend.Account, Subtoken: friend.Subtoken})
		}
	}
	d.data.SetFriendsState(state)
}

func (d *Dispatcher) updateFriendClears(ctx context.Context, job UpdateFriendClearsJob) {
	finished, err := d.api.FetchFinishedEncounters(ctx, job.Subtoken)
	if err != nil {
		slog.Warn("friend clears refresh failed", "job", "update_friend_clears", "account", job.Account, "error", err)
		return
	}

	lastModified, err := d.api.FetchLastModified(ctx, job.Subtoken)
	if err != nil {
		slog.Warn("friend last-modified fetch failed", "job", "update_friend_clears", "account", job.Account, "error", err)
		return
	}

	d.data.SetFriendClears(job.Account, model.RaidClearState{
		FinishedEncounterIDs: finished,
		CheckedAt:            time.Now().UTC(),
		LastModified:         lastModified,
	})
}

// Share, unshare, and visibility jobs drop when sharing is disabled; with no
// friend service configured there is nothing to talk to.
func (d *Dispatcher) shareKey(ctx context.Context, job ShareKeyJob) {
	if !d.settings.FriendsEnabled() {
		return
	}

	secret, ok := d.settings.SecretFor(job.CredentialID)
	if !ok || secret == "" {
		return
	}

	meta := d.settings.FriendMetadata(time.Now().UTC())
	state, err := d.friends.Share(ctx, meta, model.KeyHash(secret), job.Account)
	if err != nil {
		slog.Warn("key share failed", "job", "share_key", "credential", job.CredentialID, "account", job.Account, "error", err)
		return
	}
	d.data.SetFriendsState(state)
}

func (d *Dispatcher) unshareKey(ctx context.Context, job UnshareKeyJob) {
	if !d.settings.FriendsEnabled() {
		return
	}

	secret, ok := d.settings.SecretFor(job.CredentialID)
	if !ok || secret == "" {
		return
	}

	meta := d.settings.FriendMetadata(time.Now().UTC())
	state, err := d.friends.Unshare(ctx, meta, model.KeyHash(secret), job.Account)
	if err != nil {
		slog.Warn("key unshare failed", "job", "unshare_key", "credential", job.CredentialID, "account", job.Account, "error", err)
		return
	}
	d.data.SetFriendsState(state)
}

func (d *Dispatcher) setKeyPublic(ctx context.Context, job SetKeyPublicJob) {
	if !d.settings.FriendsEnabled() {
		return
	}

	secret, ok := d.settings.SecretFor(job.CredentialID)
	if !ok || secret == "" {
		return
	}

	meta := d.settings.FriendMetadata(time.Now().UTC())
	state, err := d.friends.SetPublic(ctx, meta, model.KeyHash(secret), job.Public)
	if err != nil {
		slog.Warn("key visibility change failed", "job", "set_key_public", "credential", job.CredentialID, "public", job.Public, "error", err)
		return
	}
	d.data.SetFriendsState(state)
}

func (d *Dispatcher) setAllKeysPublic(ctx context.Context, job SetAllKeysPublicJob) {
	if !d.settings.FriendsEnabled() {
		return
	}

	meta := d.settings.FriendMetadata(time.Now().UTC())
	for _, secret := range meta.APIKeys {
		state, err := d.friends.SetPublic(ctx, meta, model.KeyHash(secret), job.Public)
		if err != nil {
			slog.Warn("key visibility change failed", "job", "set_all_keys_public", "public", job.Public, "error", err)
			continue
		}
		d.data.SetFriendsState(state)
	}
}
