// Package friendsapi implements the FriendsClient port against the
// friend-sharing service's HTTP API. The service never sees a raw API key:
// requests authenticate with the comma-joined SHA-256 hashes of the caller's
// usable keys, and key-targeting operations name the key by the same hash.
package friendsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ericfisherdev/clearsync/internal/domain/model"
	"github.com/ericfisherdev/clearsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.FriendsClient = (*Client)(nil)

const (
	userAgent      = "clearsync/1.0"
	requestTimeout = 30 * time.Second
)

// Client implements the driven.FriendsClient port.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client for the given base URL, which must end with a
// slash.
func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
	}
}

// NewClientWithHTTPClient creates a client with a custom http.Client. This
// constructor is intended for testing, allowing injection of an httptest
// server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

// authKeys derives the x-auth-keys header value: the hash of every usable
// key, comma-joined. Raw secrets never hit the wire.
func authKeys(meta model.FriendRequestMetadata) string {
	hashes := make([]string, 0, len(meta.APIKeys))
	for _, secret := range meta.APIKeys {
		hashes = append(hashes, model.KeyHash(secret))
	}
	return strings.Join(hashes, ",")
}

// do sends the request and decodes the full sharing state every successful
// call returns.
func (c *Client) do(req *http.Request, path string) (*model.FriendsState, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, driven.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%s: %w", path, driven.ErrInvalidKey)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%s: %w", path, driven.ErrRateLimited)
	default:
		return nil, fmt.Errorf("%s: status %d: %w", path, resp.StatusCode, driven.ErrUnreachable)
	}

	var state wireState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("%s: %w", path, &driven.MalformedResponseError{Err: err})
	}
	return state.toModel(), nil
}

func (c *Client) getState(ctx context.Context, meta model.FriendRequestMetadata, path string) (*model.FriendsState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("x-auth-keys", authKeys(meta))
	return c.do(req, path)
}

func (c *Client) postForm(ctx context.Context, meta model.FriendRequestMetadata, path string, form url.Values) (*model.FriendsState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("x-auth-keys", authKeys(meta))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, path)
}

// FetchState returns the full sharing state for the authenticated keys.
func (c *Client) FetchState(ctx context.Context, meta model.FriendRequestMetadata) (*model.FriendsState, error) {
	return c.getState(ctx, meta, "state")
}

// RegisterSubtoken stores a freshly minted subtoken for the hashed key.
func (c *Client) RegisterSubtoken(ctx context.Context, meta model.FriendRequestMetadata, keyHash, subtoken string) (*model.FriendsState, error) {
	return c.postForm(ctx, meta, "key/add", url.Values{
		"key_hash": {keyHash},
		"subtoken": {subtoken},
	})
}

// Share grants the named account access to the hashed key.
func (c *Client) Share(ctx context.Context, meta model.FriendRequestMetadata, keyHash, account string) (*model.FriendsState, error) {
	return c.postForm(ctx, meta, "key/share", url.Values{
		"key_hash": {keyHash},
		"account":  {account},
	})
}

// Unshare revokes the named account's access to the hashed key.
func (c *Client) Unshare(ctx context.Context, meta model.FriendRequestMetadata, keyHash, account string) (*model.FriendsState, error) {
	return c.postForm(ctx, meta, "key/unshare", url.Values{
		"key_hash": {keyHash},
		"account":  {account},
	})
}

// SetPublic toggles public visibility of the hashed key.
func (c *Client) SetPublic(ctx context.Context, meta model.FriendRequestMetadata, keyHash string, public bool) (*model.FriendsState, error) {
	return c.postForm(ctx, meta, "key/public", url.Values{
		"key_hash": {keyHash},
		"public":   {fmt.Sprintf("%t", public)},
	})
}

// Wire representations of the sharing state.

type wireShare struct {
	Account          string    `json:"account"`
	AddedAt          time.Time `json:"added_at"`
	AccountAvailable bool      `json:"account_available"`
}

type wireKey struct {
	KeyHash           string      `json:"key_hash"`
	SharedTo          []wireShare `json:"shared_to"`
	SubtokenAddedAt   *time.Time  `json:"subtoken_added_at"`
	SubtokenExpiresAt *time.Time  `json:"subtoken_expires_at"`
	Account           *string     `json:"account"`
	Public            bool        `json:"public"`
}

type wireFriend struct {
	Account    string    `json:"account"`
	Subtoken   string    `json:"subtoken"`
	ExpiresAt  time.Time `json:"expires_at"`
	SharedWith []string  `json:"shared_with"`
}

type wireState struct {
	Keys    []wireKey    `json:"keys"`
	Friends []wireFriend `json:"friends"`
}

func (w wireState) toModel() *model.FriendsState {
	keys := make([]model.KeyState, 0, len(w.Keys))
	for _, key := range w.Keys {
		shares := make([]model.ShareState, 0, len(key.SharedTo))
		for _, share := range key.SharedTo {
			shares = append(shares, model.ShareState{
				Account:          share.Account,
				AddedAt:          share.AddedAt,
				AccountAvailable: share.AccountAvailable,
			})
		}

		account := ""
		if key.Account != nil {
			account = *key.Account
		}
		keys = append(keys, model.KeyState{
			KeyHash:           key.KeyHash,
			SharedTo:          shares,
			SubtokenAddedAt:   key.SubtokenAddedAt,
			SubtokenExpiresAt: key.SubtokenExpiresAt,
			Account:           account,
			Public:            key.Public,
		})
	}

	friends := make([]model.FriendState, 0, len(w.Friends))
	for _, friend := range w.Friends {
		friends = append(friends, model.FriendState{
			Account:    friend.Account,
			Subtoken:   friend.Subtoken,
			ExpiresAt:  friend.ExpiresAt,
			SharedWith: friend.SharedWith,
		})
	}

	return &model.FriendsState{Keys: keys, Friends: friends}
}
