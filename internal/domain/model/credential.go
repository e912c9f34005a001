package model

import (
	"time"

	"github.com/google/uuid"
)

// TokenKind distinguishes fully privileged API keys from restricted,
// time-boxed subtokens.
type TokenKind string

const (
	TokenKindUnknown  TokenKind = "unknown"
	TokenKindAPIKey   TokenKind = "api_key"
	TokenKindSubtoken TokenKind = "subtoken"
)

// AccountData holds account metadata fetched from the progression API.
type AccountData struct {
	ID           string
	Name         string
	LastModified time.Time
}

// TokenInfo holds the result of introspecting a credential's secret.
// IssuedAt, ExpiresAt, and URLs are only meaningful for subtokens; URLs is
// nil when the subtoken carries no path allowlist.
type TokenInfo struct {
	ID          string
	Name        string
	Permissions []string
	Kind        TokenKind
	IssuedAt    time.Time
	ExpiresAt   time.Time
	URLs        []string
}

// HasPermission reports whether the token grants the named permission.
func (t *TokenInfo) HasPermission(name string) bool {
	for _, p := range t.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

// Credential is a secret used to authenticate to the progression API, plus a
// cache of two optional fetched facts. The ID is generated once and survives
// secret rotation; the fetched facts are cleared whenever the secret changes.
type Credential struct {
	ID           uuid.UUID
	Secret       string
	ShowInClears bool
	Account      *AccountData
	Token        *TokenInfo
}

// NewCredential creates a credential with a fresh stable identifier and no
// fetched facts.
func NewCredential(secret string) *Credential {
	return &Credential{
		ID:           uuid.New(),
		Secret:       secret,
		ShowInClears: true,
	}
}

// ChangeSecret replaces the secret and invalidates both cached facts, which
// are only valid for the secret they were fetched with.
func (c *Credential) ChangeSecret(secret string) {
	c.Secret = secret
	c.Account = nil
	c.Token = nil
}
