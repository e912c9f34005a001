// Package gw2api implements the ProgressionClient port against the Guild
// Wars 2 HTTP API.
package gw2api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/clearsync/internal/domain/model"
	"github.com/ericfisherdev/clearsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ProgressionClient = (*Client)(nil)

const (
	// DefaultBaseURL is the official API endpoint.
	DefaultBaseURL = "https://api.guildwars2.com/"

	userAgent      = "clearsync/1.0"
	requestTimeout = 30 * time.Second
)

// Client implements the driven.ProgressionClient port over plain HTTP with an
// in-memory conditional-request cache (the API emits Last-Modified and ETag
// headers on account endpoints).
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client for the given base URL, which must end with a
// slash. Pass DefaultBaseURL for the official API.
func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: newCredentialCacheTransport(),
			Timeout:   requestTimeout,
		},
		baseURL: baseURL,
	}
}

// credentialCacheTransport routes each credential's requests through its own
// conditional-request cache. httpcache keys entries by URL alone, so a single
// shared cache would answer one credential's revalidated v2/account request
// with another credential's cached body. Unauthenticated requests share one
// cache.
type credentialCacheTransport struct {
	shared http.RoundTripper

	mu     sync.Mutex
	perKey map[string]http.RoundTripper
}

func newCredentialCacheTransport() *credentialCacheTransport {
	return &credentialCacheTransport{
		shared: httpcache.NewMemoryCacheTransport(),
		perKey: make(map[string]http.RoundTripper),
	}
}

func (t *credentialCacheTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	auth := req.Header.Get("Authorization")
	if auth == "" {
		return t.shared.RoundTrip(req)
	}

	digest := sha256.Sum256([]byte(auth))
	key := hex.EncodeToString(digest[:])

	t.mu.Lock()
	transport, ok := t.perKey[key]
	if !ok {
		transport = httpcache.NewMemoryCacheTransport()
		t.perKey[key] = transport
	}
	t.mu.Unlock()

	return transport.RoundTrip(req)
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

// get performs an authenticated GET and maps HTTP failures onto the port's
// error taxonomy. The caller owns the returned response body.
func (c *Client) get(ctx context.Context, path string, query url.Values, secret string) (*http.Response, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Header.Set("User-Agent", userAgent)
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, driven.ErrUnreachable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return resp, nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %w", path, driven.ErrInvalidKey)
	case resp.StatusCode == http.StatusTooManyRequests:
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %w", path, driven.ErrRateLimited)
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("%s: status %d: %w", path, resp.StatusCode, driven.ErrUnreachable)
	}
}

// getJSON performs a GET and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, secret string, out any) error {
	resp, err := c.get(ctx, path, query, secret)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: %w", path, &driven.MalformedResponseError{Err: err})
	}
	return nil
}

// FetchRaids retrieves the raid structure. The remote API groups wings under
// raids; only the wings are kept, flattened in order.
func (c *Client) FetchRaids(ctx context.Context) (*model.RaidWings, error) {
	type wireEvent struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	type wireWing struct {
		ID     string      `json:"id"`
		Events []wireEvent `json:"events"`
	}
	type wireRaid struct {
		ID    string     `json:"id"`
		Wings []wireWing `json:"wings"`
	}

	var raids []wireRaid
	query := url.Values{"ids": {"all"}}
	if err := c.getJSON(ctx, "v2/raids", query, "", &raids); err != nil {
		return nil, err
	}

	var wings []model.RaidWing
	for _, raid := range raids {
		for _, wing := range raid.Wings {
			encounters := make([]model.RaidEncounter, 0, len(wing.Events))
			for _, event := range wing.Events {
				encounters = append(encounters, model.RaidEncounter{
					ID:   event.ID,
					Kind: encounterKind(event.Type),
				})
			}
			wings = append(wings, model.RaidWing{ID: wing.ID, Encounters: encounters})
		}
	}
	return &model.RaidWings{Wings: wings}, nil
}

func encounterKind(wire string) model.EncounterKind {
	switch wire {
	case "Boss":
		return model.EncounterKindBoss
	case "Checkpoint":
		return model.EncounterKindCheckpoint
	default:
		return model.EncounterKindUnknown
	}
}

// FetchFinishedEncounters retrieves the encounter ids finished in the current
// reset window. The secret may be an API key or a friend-issued subtoken.
func (c *Client) FetchFinishedEncounters(ctx context.Context, secret string) ([]string, error) {
	var finished []string
	if err := c.getJSON(ctx, "v2/account/raids", nil, secret, &finished); err != nil {
		return nil, err
	}
	return finished, nil
}

// FetchAccount retrieves account metadata for the credential.
func (c *Client) FetchAccount(ctx context.Context, secret string) (*model.AccountData, error) {
	var account struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		LastModified time.Time `json:"last_modified"`
	}
	query := url.Values{"v": {"latest"}}
	if err := c.getJSON(ctx, "v2/account", query, secret, &account); err != nil {
		return nil, err
	}
	return &model.AccountData{
		ID:           account.ID,
		Name:         account.Name,
		LastModified: account.LastModified,
	}, nil
}

// FetchTokenInfo introspects the credential.
func (c *Client) FetchTokenInfo(ctx context.Context, secret string) (*model.TokenInfo, error) {
	var info struct {
		ID          string    `json:"id"`
		Name        string    `json:"name"`
		Permissions []string  `json:"permissions"`
		Type        string    `json:"type"`
		IssuedAt    time.Time `json:"issued_at"`
		ExpiresAt   time.Time `json:"expires_at"`
		URLs        []string  `json:"urls"`
	}
	query := url.Values{"v": {"latest"}}
	if err := c.getJSON(ctx, "v2/tokeninfo", query, secret, &info); err != nil {
		return nil, err
	}

	kind := model.TokenKindUnknown
	switch info.Type {
	case "APIKey":
		kind = model.TokenKindAPIKey
	case "Subtoken":
		kind = model.TokenKindSubtoken
	}

	return &model.TokenInfo{
		ID:          info.ID,
		Name:        info.Name,
		Permissions: info.Permissions,
		Kind:        kind,
		IssuedAt:    info.IssuedAt,
		ExpiresAt:   info.ExpiresAt,
		URLs:        info.URLs,
	}, nil
}

// FetchLastModified returns the remote account's last-update instant. The
// Last-Modified response header is preferred; the account body field is the
// fallback for servers that omit the header.
func (c *Client) FetchLastModified(ctx context.Context, secret string) (time.Time, error) {
	query := url.Values{"v": {"latest"}}
	resp, err := c.get(ctx, "v2/account", query, secret)
	if err != nil {
		return time.Time{}, err
	}
	defer resp.Body.Close()

	if header := resp.Header.Get("Last-Modified"); header != "" {
		lastModified, err := http.ParseTime(header)
		if err != nil {
			return time.Time{}, fmt.Errorf("v2/account: %w", &driven.MalformedResponseError{Err: err})
		}
		return lastModified, nil
	}

	var account struct {
		LastModified time.Time `json:"last_modified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return time.Time{}, fmt.Errorf("v2/account: %w", &driven.MalformedResponseError{Err: err})
	}
	return account.LastModified, nil
}

// CreateSubtoken mints a restricted, time-boxed subtoken from the credential.
func (c *Client) CreateSubtoken(ctx context.Context, secret string, permissions, urls []string, expiresAt time.Time) (string, error) {
	query := url.Values{
		"expire":      {expiresAt.UTC().Format(time.RFC3339)},
		"permissions": {strings.Join(permissions, ",")},
		"urls":        {strings.Join(urls, ",")},
	}

	var minted struct {
		Subtoken string `json:"subtoken"`
	}
	if err := c.getJSON(ctx, "v2/createsubtoken", query, secret, &minted); err != nil {
		return "", err
	}
	return minted.Subtoken, nil
}
