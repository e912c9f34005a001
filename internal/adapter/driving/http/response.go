package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/clearsync/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// StatusResponse reports the refresh schedule, feature toggles, and cache
// sizes.
type StatusResponse struct {
	FriendsEnabled bool   `json:"friends_enabled"`
	RaidsLoaded    bool   `json:"raids_loaded"`
	Credentials    int    `json:"credentials"`
	CachedClears   int    `json:"cached_clears"`
	FriendClears   int    `json:"friend_clears"`
	NextRefreshAt  string `json:"next_refresh_at,omitempty"`
	NextRefreshIn  string `json:"next_refresh_in,omitempty"`
}

// EncounterResponse is the JSON representation of one raid encounter.
type EncounterResponse struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// WingResponse is the JSON representation of one raid wing.
type WingResponse struct {
	ID         string              `json:"id"`
	Encounters []EncounterResponse `json:"encounters"`
}

// CredentialResponse is the JSON representation of a credential. The secret
// itself is never serialized; the key hash identifies it externally.
type CredentialResponse struct {
	ID           string   `json:"id"`
	KeyHash      string   `json:"key_hash"`
	ShowInClears bool     `json:"show_in_clears"`
	Account      string   `json:"account,omitempty"`
	TokenKind    string   `json:"token_kind,omitempty"`
	Permissions  []string `json:"permissions,omitempty"`
	Usability    string   `json:"usability"`
}

// ClearsResponse is the reset-aware clear state of one credential.
type ClearsResponse struct {
	CredentialID string   `json:"credential_id"`
	Account      string   `json:"account,omitempty"`
	Finished     []string `json:"finished"`
	Fresh        bool     `json:"fresh"`
	CheckedAt    string   `json:"checked_at,omitempty"`
	LastModified string   `json:"last_modified,omitempty"`
}

// FriendClearsResponse is the reset-aware clear state of one friend.
type FriendClearsResponse struct {
	Account      string   `json:"account"`
	Finished     []string `json:"finished"`
	Fresh        bool     `json:"fresh"`
	CheckedAt    string   `json:"checked_at,omitempty"`
	LastModified string   `json:"last_modified,omitempty"`
}

// KeyStateResponse is the sharing state of one locally owned key.
type KeyStateResponse struct {
	KeyHash           string   `json:"key_hash"`
	Account           string   `json:"account,omitempty"`
	Public            bool     `json:"public"`
	SharedTo          []string `json:"shared_to"`
	SubtokenExpiresAt string   `json:"subtoken_expires_at,omitempty"`
}

// FriendsResponse is the full sharing view: tracked accounts, our key states,
// and each friend's reset-aware clears.
type FriendsResponse struct {
	Enabled  bool                   `json:"enabled"`
	Tracked  []string               `json:"tracked"`
	Keys     []KeyStateResponse     `json:"keys"`
	Friends  []FriendClearsResponse `json:"friends"`
	HasState bool                   `json:"has_state"`
}

// AddCredentialRequest is the JSON body for the add credential endpoint.
type AddCredentialRequest struct {
	Secret       string `json:"secret"`
	ShowInClears *bool  `json:"show_in_clears,omitempty"`
}

// UpdateCredentialRequest is the JSON body for the update credential
// endpoint. Absent fields are left unchanged.
type UpdateCredentialRequest struct {
	Secret       *string `json:"secret,omitempty"`
	ShowInClears *bool   `json:"show_in_clears,omitempty"`
}

// AddFriendRequest is the JSON body for the add friend endpoint.
type AddFriendRequest struct {
	Account string `json:"account"`
}

// ShareRequest is the JSON body for the share and unshare endpoints.
type ShareRequest struct {
	Account string `json:"account"`
}

// SetPublicRequest is the JSON body for the visibility endpoints.
type SetPublicRequest struct {
	Public bool `json:"public"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// toCredentialResponse converts a credential snapshot to its JSON
// representation.
func toCredentialResponse(cred model.Credential, now time.Time) CredentialResponse {
	resp := CredentialResponse{
		ID:           cred.ID.String(),
		KeyHash:      model.KeyHash(cred.Secret),
		ShowInClears: cred.ShowInClears,
		Usability:    string(model.GetKeyUsability(&cred, now)),
	}
	if cred.Account != nil {
		resp.Account = cred.Account.Name
	}
	if cred.Token != nil {
		resp.TokenKind = string(cred.Token.Kind)
		resp.Permissions = cred.Token.Permissions
	}
	return resp
}

// toClearsResponse converts a cached clear state to its JSON representation.
// Finished ids are reset-aware: a record predating the weekly reset presents
// every encounter as unfinished.
func toClearsResponse(cred model.Credential, state model.RaidClearState, now time.Time) ClearsResponse {
	finished := state.EffectiveFinished(now)
	if finished == nil {
		finished = []string{}
	}

	resp := ClearsResponse{
		CredentialID: cred.ID.String(),
		Finished:     finished,
		Fresh:        state.IsFresh(now),
		CheckedAt:    formatTime(state.CheckedAt),
		LastModified: formatTime(state.LastModified),
	}
	if cred.Account != nil {
		resp.Account = cred.Account.Name
	}
	return resp
}

// toWingResponse converts a raid wing to its JSON representation.
func toWingResponse(wing model.RaidWing) WingResponse {
	encounters := make([]EncounterResponse, 0, len(wing.Encounters))
	for _, encounter := range wing.Encounters {
		encounters = append(encounters, EncounterResponse{
			ID:   encounter.ID,
			Kind: string(encounter.Kind),
		})
	}
	return WingResponse{ID: wing.ID, Encounters: encounters}
}

// toKeyStateResponse converts a key's sharing state to its JSON
// representation.
func toKeyStateResponse(key model.KeyState) KeyStateResponse {
	shared := make([]string, 0, len(key.SharedTo))
	for _, share := range key.SharedTo {
		shared = append(shared, share.Account)
	}

	resp := KeyStateResponse{
		KeyHash:  key.KeyHash,
		Account:  key.Account,
		Public:   key.Public,
		SharedTo: shared,
	}
	if key.SubtokenExpiresAt != nil {
		resp.SubtokenExpiresAt = formatTime(*key.SubtokenExpiresAt)
	}
	return resp
}
