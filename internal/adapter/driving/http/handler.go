// Package httphandler is the HTTP driving adapter: a small JSON API over the
// engine's aggregates for overlays and dashboards. Reads serve cached state
// only; writes go through settings and the persistent stores, then enqueue
// the matching background jobs.
package httphandler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/clearsync/internal/application"
	"github.com/ericfisherdev/clearsync/internal/domain/model"
	"github.com/ericfisherdev/clearsync/internal/domain/port/driven"
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	settings  *application.Settings
	data      *application.Data
	workers   *application.Workers
	credStore driven.CredentialStore
	friendDB  driven.FriendListStore
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	settings *application.Settings,
	data *application.Data,
	workers *application.Workers,
	credStore driven.CredentialStore,
	friendDB driven.FriendListStore,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		settings:  settings,
		data:      data,
		workers:   workers,
		credStore: credStore,
		friendDB:  friendDB,
		logger:    logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/status", h.Status)
	mux.HandleFunc("GET /api/v1/raids", h.ListRaids)
	mux.HandleFunc("GET /api/v1/clears", h.ListClears)
	mux.HandleFunc("GET /api/v1/friends", h.FriendsOverview)

	mux.HandleFunc("GET /api/v1/credentials", h.ListCredentials)
	mux.HandleFunc("POST /api/v1/credentials", h.AddCredential)
	mux.HandleFunc("PUT /api/v1/credentials/{id}", h.UpdateCredential)
	mux.HandleFunc("DELETE /api/v1/credentials/{id}", h.RemoveCredential)

	mux.HandleFunc("POST /api/v1/credentials/{id}/share", h.ShareKey)
	mux.HandleFunc("POST /api/v1/credentials/{id}/unshare", h.UnshareKey)
	mux.HandleFunc("POST /api/v1/credentials/{id}/public", h.SetKeyPublic)
	mux.HandleFunc("POST /api/v1/keys/public", h.SetAllKeysPublic)

	mux.HandleFunc("POST /api/v1/friends", h.AddFriend)
	mux.HandleFunc("DELETE /api/v1/friends/{account}", h.RemoveFriend)

	mux.HandleFunc("POST /api/v1/refresh", h.RefreshNow)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health reports process liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// Status reports the refresh schedule.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		FriendsEnabled: h.settings.FriendsEnabled(),
		RaidsLoaded:    h.data.HasRaids(),
		Credentials:    len(h.settings.Credentials()),
		CachedClears:   len(h.data.ClearStates()),
		FriendClears:   len(h.data.FriendClearsAll()),
	}
	if next := h.workers.NextRefreshAt(); !next.IsZero() {
		resp.NextRefreshAt = next.UTC().Format(time.RFC3339)
		if remaining := time.Until(next); remaining > 0 {
			resp.NextRefreshIn = remaining.Round(time.Second).String()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListRaids returns the cached raid structure.
func (h *Handler) ListRaids(w http.ResponseWriter, _ *http.Request) {
	raids := h.data.Raids()
	if raids == nil {
		writeError(w, http.StatusServiceUnavailable, "raid structure not loaded yet")
		return
	}

	resp := make([]WingResponse, 0, len(raids.Wings))
	for _, wing := range raids.Wings {
		resp = append(resp, toWingResponse(wing))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListClears returns the reset-aware clear state of every visible credential.
func (h *Handler) ListClears(w http.ResponseWriter, _ *http.Request) {
	now := time.Now().UTC()
	states := h.data.ClearStates()

	resp := make([]ClearsResponse, 0, len(states))
	for _, cred := range h.settings.Credentials() {
		if !cred.ShowInClears {
			continue
		}
		state, ok := states[cred.ID]
		if !ok {
			continue
		}
		resp = append(resp, toClearsResponse(cred, state, now))
	}
	writeJSON(w, http.StatusOK, resp)
}

// FriendsOverview returns the sharing state and each friend's clears.
func (h *Handler) FriendsOverview(w http.ResponseWriter, _ *http.Request) {
	now := time.Now().UTC()
	resp := FriendsResponse{
		Enabled: h.settings.FriendsEnabled(),
		Tracked: h.settings.FriendAccounts(),
		Keys:    []KeyStateResponse{},
		Friends: []FriendClearsResponse{},
	}

	state := h.data.FriendsState()
	if state != nil {
		resp.HasState = true
		for _, key := range state.Keys {
			resp.Keys = append(resp.Keys, toKeyStateResponse(key))
		}

		friendClears := h.data.FriendClearsAll()
		for _, friend := range state.Friends {
			entry := FriendClearsResponse{Account: friend.Account, Finished: []string{}}
			if clears, ok := friendClears[friend.Account]; ok {
				if finished := clears.EffectiveFinished(now); finished != nil {
					entry.Finished = finished
				}
				entry.Fresh = clears.IsFresh(now)
				entry.CheckedAt = formatTime(clears.CheckedAt)
				entry.LastModified = formatTime(clears.LastModified)
			}
			resp.Friends = append(resp.Friends, entry)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListCredentials returns all credentials without their secrets.
func (h *Handler) ListCredentials(w http.ResponseWriter, _ *http.Request) {
	now := time.Now().UTC()
	creds := h.settings.Credentials()

	resp := make([]CredentialResponse, 0, len(creds))
	for _, cred := range creds {
		resp = append(resp, toCredentialResponse(cred, now))
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddCredential stores a new credential and schedules its first refresh.
func (h *Handler) AddCredential(w http.ResponseWriter, r *http.Request) {
	var req AddCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Secret == "" {
		writeError(w, http.StatusBadRequest, "secret is required")
		return
	}

	cred := model.NewCredential(req.Secret)
	if req.ShowInClears != nil {
		cred.ShowInClears = *req.ShowInClears
	}

	if err := h.credStore.Upsert(r.Context(), *cred); err != nil {
		h.logger.Error("failed to persist credential", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.settings.AddCredential(cred)

	submit := h.workers.Submitter()
	submit.Submit(application.UpdateAccountDataJob{CredentialID: cred.ID})
	submit.Submit(application.UpdateTokenInfoJob{CredentialID: cred.ID})
	if cred.ShowInClears {
		submit.Submit(application.UpdateClearsJob{CredentialID: cred.ID})
	}

	writeJSON(w, http.StatusCreated, toCredentialResponse(*cred, time.Now().UTC()))
}

// UpdateCredential rotates a credential's secret or toggles its visibility.
func (h *Handler) UpdateCredential(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid credential id")
		return
	}

	var req UpdateCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Secret == nil && req.ShowInClears == nil {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	submit := h.workers.Submitter()
	if req.Secret != nil {
		if *req.Secret == "" {
			writeError(w, http.StatusBadRequest, "secret must not be empty")
			return
		}
		if !h.settings.ChangeSecret(id, *req.Secret) {
			writeError(w, http.StatusNotFound, "credential not found")
			return
		}
		// Cached clears belong to the old secret.
		h.data.RemoveClearState(id)
		submit.Submit(application.UpdateAccountDataJob{CredentialID: id})
		submit.Submit(application.UpdateTokenInfoJob{CredentialID: id})
	}
	if req.ShowInClears != nil {
		if !h.settings.SetShowInClears(id, *req.ShowInClears) {
			writeError(w, http.StatusNotFound, "credential not found")
			return
		}
	}

	cred, ok := h.settings.Credential(id)
	if !ok {
		writeError(w, http.StatusNotFound, "credential not found")
		return
	}
	if err := h.credStore.Upsert(r.Context(), cred); err != nil {
		h.logger.Error("failed to persist credential", "credential", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if cred.ShowInClears {
		submit.Submit(application.UpdateClearsJob{CredentialID: id})
	}

	writeJSON(w, http.StatusOK, toCredentialResponse(cred, time.Now().UTC()))
}

// RemoveCredential deletes a credential and its cached clears.
func (h *Handler) RemoveCredential(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid credential id")
		return
	}

	if !h.settings.RemoveCredential(id) {
		writeError(w, http.StatusNotFound, "credential not found")
		return
	}
	h.data.RemoveClearState(id)

	if err := h.credStore.Delete(r.Context(), id); err != nil {
		h.logger.Error("failed to delete credential", "credential", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ShareKey grants a friend account access to a credential.
func (h *Handler) ShareKey(w http.ResponseWriter, r *http.Request) {
	h.submitShareJob(w, r, func(id uuid.UUID, account string) application.ApiJob {
		return application.ShareKeyJob{CredentialID: id, Account: account}
	})
}

// UnshareKey revokes a friend account's access to a credential.
func (h *Handler) UnshareKey(w http.ResponseWriter, r *http.Request) {
	h.submitShareJob(w, r, func(id uuid.UUID, account string) application.ApiJob {
		return application.UnshareKeyJob{CredentialID: id, Account: account}
	})
}

func (h *Handler) submitShareJob(w http.ResponseWriter, r *http.Request, build func(uuid.UUID, string) application.ApiJob) {
	if !h.settings.FriendsEnabled() {
		writeError(w, http.StatusConflict, "friend sharing is disabled")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid credential id")
		return
	}
	if _, ok := h.settings.Credential(id); !ok {
		writeError(w, http.StatusNotFound, "credential not found")
		return
	}

	var req ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Account == "" {
		writeError(w, http.StatusBadRequest, "account is required")
		return
	}

	h.workers.Submitter().Submit(build(id, req.Account))
	w.WriteHeader(http.StatusAccepted)
}

// SetKeyPublic toggles public visibility of one credential.
func (h *Handler) SetKeyPublic(w http.ResponseWriter, r *http.Request) {
	if !h.settings.FriendsEnabled() {
		writeError(w, http.StatusConflict, "friend sharing is disabled")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid credential id")
		return
	}
	if _, ok := h.settings.Credential(id); !ok {
		writeError(w, http.StatusNotFound, "credential not found")
		return
	}

	var req SetPublicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.workers.Submitter().Submit(application.SetKeyPublicJob{CredentialID: id, Public: req.Public})
	w.WriteHeader(http.StatusAccepted)
}

// SetAllKeysPublic toggles public visibility of every usable credential.
func (h *Handler) SetAllKeysPublic(w http.ResponseWriter, r *http.Request) {
	if !h.settings.FriendsEnabled() {
		writeError(w, http.StatusConflict, "friend sharing is disabled")
		return
	}

	var req SetPublicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.workers.Submitter().Submit(application.SetAllKeysPublicJob{Public: req.Public})
	w.WriteHeader(http.StatusAccepted)
}

// AddFriend tracks a friend account and refreshes the sharing state.
func (h *Handler) AddFriend(w http.ResponseWriter, r *http.Request) {
	var req AddFriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Account == "" {
		writeError(w, http.StatusBadRequest, "account is required")
		return
	}

	if err := h.friendDB.Add(r.Context(), req.Account); err != nil {
		h.logger.Error("failed to persist friend", "account", req.Account, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.settings.AddFriend(req.Account)
	h.workers.Submitter().Submit(application.UpdateFriendStateJob{})

	writeJSON(w, http.StatusCreated, AddFriendRequest{Account: req.Account})
}

// RemoveFriend stops tracking a friend account.
func (h *Handler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	account := r.PathValue("account")

	if err := h.friendDB.Remove(r.Context(), account); err != nil {
		h.logger.Error("failed to delete friend", "account", account, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.settings.RemoveFriend(account)
	h.workers.Submitter().Submit(application.UpdateFriendStateJob{})

	w.WriteHeader(http.StatusNoContent)
}

// RefreshNow triggers an immediate refresh cycle.
func (h *Handler) RefreshNow(w http.ResponseWriter, _ *http.Request) {
	h.workers.Refresh()
	w.WriteHeader(http.StatusAccepted)
}
