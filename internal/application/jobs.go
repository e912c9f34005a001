package application

import "github.com/google/uuid"

// ApiJob is one queued unit of remote work. The variant set is closed, and
// every payload carries identifiers only -- job handlers re-read current
// secrets from settings at execution time, so a job enqueued before a secret
// rotation still acts on the fresh secret.
type ApiJob interface {
	apiJob()
}

// UpdateRaidsJob fetches the immutable raid structure.
type UpdateRaidsJob struct{}

// UpdateClearsJob refreshes the clear state of one locally owned credential.
type UpdateClearsJob struct {
	CredentialID uuid.UUID
}

// UpdateAccountDataJob fetches account metadata for a credential.
type UpdateAccountDataJob struct {
	CredentialID uuid.UUID
}

// UpdateTokenInfoJob introspects a credential. On success the dispatcher
// chains an UpdateFriendStateJob, since both account and token facts must be
// known before a credential can be evaluated for sharing eligibility.
type UpdateTokenInfoJob struct {
	CredentialID uuid.UUID
}

// UploadFriendSubtokenJob mints a restricted subtoken for the credential with
// the given hash and registers it with the friend-sharing service. The hash
// is the only identifier the friend service knows the credential by.
type UploadFriendSubtokenJob struct {
	KeyHash string
}

// UpdateFriendStateJob fetches the complete friend-sharing state.
type UpdateFriendStateJob struct{}

// UpdateFriendClearsJob refreshes one friend's clear state using the
// ephemeral subtoken that friend shared with us.
type UpdateFriendClearsJob struct {
	Account  string
	Subtoken string
}

// ShareKeyJob grants a friend account access to a credential.
type ShareKeyJob struct {
	CredentialID uuid.UUID
	Account      string
}

// UnshareKeyJob revokes a friend account's access to a credential.
type UnshareKeyJob struct {
	CredentialID uuid.UUID
	Account      string
}

// SetKeyPublicJob toggles public visibility of one credential.
type SetKeyPublicJob struct {
	CredentialID uuid.UUID
	Public       bool
}

// SetAllKeysPublicJob toggles public visibility of every usable credential.
type SetAllKeysPublicJob struct {
	Public bool
}

func (UpdateRaidsJob) apiJob()          {}
func (UpdateClearsJob) apiJob()         {}
func (UpdateAccountDataJob) apiJob()    {}
func (UpdateTokenInfoJob) apiJob()      {}
func (UploadFriendSubtokenJob) apiJob() {}
func (UpdateFriendStateJob) apiJob()    {}
func (UpdateFriendClearsJob) apiJob()   {}
func (ShareKeyJob) apiJob()             {}
func (UnshareKeyJob) apiJob()           {}
func (SetKeyPublicJob) apiJob()         {}
func (SetAllKeysPublicJob) apiJob()     {}

// jobName returns a stable name for log output.
func jobName(job ApiJob) string {
	switch job.(type) {
	case UpdateRaidsJob:
		return "update_raids"
	case UpdateClearsJob:
		return "update_clears"
	case UpdateAccountDataJob:
		return "update_account_data"
	case UpdateTokenInfoJob:
		return "update_token_info"
	case UploadFriendSubtokenJob:
		return "upload_friend_subtoken"
	case UpdateFriendStateJob:
		return "update_friend_state"
	case UpdateFriendClearsJob:
		return "update_friend_clears"
	case ShareKeyJob:
		return "share_key"
	case UnshareKeyJob:
		return "unshare_key"
	case SetKeyPublicJob:
		return "set_key_public"
	case SetAllKeysPublicJob:
		return "set_all_keys_public"
	default:
		return "unknown"
	}
}
