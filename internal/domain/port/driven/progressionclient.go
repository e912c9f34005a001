// Package driven defines the outbound port interfaces consumed by the
// synchronization engine, along with the remote error taxonomy shared by
// their adapter implementations.
package driven

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/clearsync/internal/domain/model"
)

// Remote call failures fall into a small closed taxonomy. Adapters map their
// transport-level failures onto these; the dispatcher logs and drops them,
// relying on refresher cadence for recovery.
var (
	// ErrInvalidKey indicates the credential was rejected (HTTP 401).
	ErrInvalidKey = errors.New("invalid credential")
	// ErrRateLimited indicates the remote service throttled the request (HTTP 429).
	ErrRateLimited = errors.New("rate limited")
	// ErrUnreachable covers network-layer failures and unrecognized remote errors.
	ErrUnreachable = errors.New("service unreachable or unknown error")
)

// MalformedResponseError indicates the remote service answered but the body
// could not be decoded. The parse error is carried for diagnostics.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// ProgressionClient is the driven port for the remote progression API.
// Secret arguments are always re-read from current settings by the caller
// immediately before the call, never captured at enqueue time.
type ProgressionClient interface {
	// FetchRaids returns the full raid structure. No credential is required.
	FetchRaids(ctx context.Context) (*model.RaidWings, error)

	// FetchFinishedEncounters returns the encounter ids the account has
	// finished in the current reset window.
	FetchFinishedEncounters(ctx context.Context, secret string) ([]string, error)

	// FetchAccount returns account metadata for the credential.
	FetchAccount(ctx context.Context, secret string) (*model.AccountData, error)

	// FetchTokenInfo introspects the credential.
	FetchTokenInfo(ctx context.Context, secret string) (*model.TokenInfo, error)

	// FetchLastModified returns the instant the remote account data was last
	// modified, via a lightweight authenticated request.
	FetchLastModified(ctx context.Context, secret string) (time.Time, error)

	// CreateSubtoken mints a restricted, time-boxed subtoken from the given
	// credential.
	CreateSubtoken(ctx context.Context, secret string, permissions, urls []string, expiresAt time.Time) (string, error)
}
