package gw2api

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/clearsync/internal/domain/model"
	"github.com/ericfisherdev/clearsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ProgressionClient = (*Mock)(nil)

// Mock is an offline ProgressionClient serving a small fixed data set. It is
// selected with CLEARSYNC_API_MODE=mock so the engine can be run and
// demonstrated without network access or a real credential.
type Mock struct{}

// NewMock creates the offline client.
func NewMock() *Mock {
	return &Mock{}
}

// FetchRaids returns the first two wings.
func (m *Mock) FetchRaids(_ context.Context) (*model.RaidWings, error) {
	return &model.RaidWings{Wings: []model.RaidWing{
		{
			ID: "spirit_vale",
			Encounters: []model.RaidEncounter{
				{ID: "vale_guardian", Kind: model.EncounterKindBoss},
				{ID: "spirit_woods", Kind: model.EncounterKindCheckpoint},
				{ID: "gorseval", Kind: model.EncounterKindBoss},
				{ID: "sabetha", Kind: model.EncounterKindBoss},
			},
		},
		{
			ID: "salvation_pass",
			Encounters: []model.RaidEncounter{
				{ID: "slothasor", Kind: model.EncounterKindBoss},
				{ID: "bandit_trio", Kind: model.EncounterKindBoss},
				{ID: "matthias", Kind: model.EncounterKindBoss},
			},
		},
	}}, nil
}

// FetchFinishedEncounters reports a fixed partial clear.
func (m *Mock) FetchFinishedEncounters(_ context.Context, _ string) ([]string, error) {
	return []string{"gorseval", "slothasor", "bandit_trio"}, nil
}

// FetchAccount returns a fixed demo account.
func (m *Mock) FetchAccount(_ context.Context, _ string) (*model.AccountData, error) {
	return &model.AccountData{
		ID:           "mock-account-id",
		Name:         "Demo.1234",
		LastModified: time.Now().UTC(),
	}, nil
}

// FetchTokenInfo reports a fully privileged API key.
func (m *Mock) FetchTokenInfo(_ context.Context, _ string) (*model.TokenInfo, error) {
	return &model.TokenInfo{
		ID:          uuid.NewString(),
		Name:        "demo key",
		Permissions: append([]string(nil), model.SubtokenPermissions...),
		Kind:        model.TokenKindAPIKey,
	}, nil
}

// FetchLastModified reports the current instant, keeping mock data always
// fresh across weekly resets.
func (m *Mock) FetchLastModified(_ context.Context, _ string) (time.Time, error) {
	return time.Now().UTC(), nil
}

// CreateSubtoken mints a placeholder token.
func (m *Mock) CreateSubtoken(_ context.Context, _ string, _, _ []string, _ time.Time) (string, error) {
	return "mock-subtoken", nil
}
