package gw2api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/clearsync/internal/adapter/driven/gw2api"
	"github.com/ericfisherdev/clearsync/internal/domain/model"
	"github.com/ericfisherdev/clearsync/internal/domain/port/driven"
)

const raidsFixture = `[
  {
    "id": "forsaken_thicket",
    "wings": [
      {
        "id": "spirit_vale",
        "events": [
          {"id": "vale_guardian", "type": "Boss"},
          {"id": "spirit_woods", "type": "Checkpoint"},
          {"id": "gorseval", "type": "Boss"},
          {"id": "sabetha", "type": "Boss"}
        ]
      },
      {
        "id": "salvation_pass",
        "events": [
          {"id": "slothasor", "type": "Boss"},
          {"id": "bandit_trio", "type": "Boss"},
          {"id": "matthias", "type": "Boss"}
        ]
      }
    ]
  },
  {
    "id": "bastion_of_the_penitent",
    "wings": [
      {
        "id": "bastion_of_the_penitent",
        "events": [
          {"id": "cairn", "type": "Boss"}
        ]
      }
    ]
  }
]`

// newTestClient wires a client to an httptest server serving the handler.
func newTestClient(t *testing.T, handler http.HandlerFunc) *gw2api.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return gw2api.NewClientWithHTTPClient(server.Client(), server.URL+"/")
}

func TestClient_FetchRaids(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/raids", r.URL.Path)
		assert.Equal(t, "all", r.URL.Query().Get("ids"))
		w.Write([]byte(raidsFixture))
	})

	raids, err := client.FetchRaids(context.Background())
	require.NoError(t, err)

	// Wings from all raids are flattened in order.
	require.Len(t, raids.Wings, 3)
	assert.Equal(t, "spirit_vale", raids.Wings[0].ID)
	assert.Equal(t, "salvation_pass", raids.Wings[1].ID)
	assert.Equal(t, "bastion_of_the_penitent", raids.Wings[2].ID)
	assert.Equal(t, 8, raids.EncounterCount())

	require.Len(t, raids.Wings[0].Encounters, 4)
	assert.Equal(t, model.EncounterKindBoss, raids.Wings[0].Encounters[0].Kind)
	assert.Equal(t, model.EncounterKindCheckpoint, raids.Wings[0].Encounters[1].Kind)
}

func TestClient_FetchFinishedEncounters(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/account/raids", r.URL.Path)
		assert.Equal(t, "Bearer secret-1", r.Header.Get("Authorization"))
		w.Write([]byte(`["gorseval", "slothasor", "bandit_trio"]`))
	})

	finished, err := client.FetchFinishedEncounters(context.Background(), "secret-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"gorseval", "slothasor", "bandit_trio"}, finished)
}

func TestClient_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: driven.ErrInvalidKey},
		{name: "forbidden", status: http.StatusForbidden, wantErr: driven.ErrInvalidKey},
		{name: "rate limited", status: http.StatusTooManyRequests, wantErr: driven.ErrRateLimited},
		{name: "server error", status: http.StatusInternalServerError, wantErr: driven.ErrUnreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := client.FetchFinishedEncounters(context.Background(), "secret")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_MalformedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"not": "an array"`))
	})

	_, err := client.FetchFinishedEncounters(context.Background(), "secret")

	var malformed *driven.MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	assert.NotNil(t, malformed.Err)
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	client := gw2api.NewClientWithHTTPClient(server.Client(), server.URL+"/")
	server.Close()

	_, err := client.FetchRaids(context.Background())
	assert.ErrorIs(t, err, driven.ErrUnreachable)
}

func TestClient_FetchAccount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/account", r.URL.Path)
		w.Write([]byte(`{"id": "acc-id", "name": "Account.1234", "last_modified": "2026-08-30T12:00:00Z"}`))
	})

	account, err := client.FetchAccount(context.Background(), "secret")
	require.NoError(t, err)
	assert.Equal(t, "acc-id", account.ID)
	assert.Equal(t, "Account.1234", account.Name)
	assert.True(t, account.LastModified.Equal(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)))
}

func TestClient_FetchAccount_CachePerCredential(t *testing.T) {
	lastModified := time.Date(2026, time.August, 3, 7, 30, 0, 0, time.UTC)
	bodies := map[string]string{
		"Bearer secret-a": `{"id": "1", "name": "First.1234", "last_modified": "2026-08-03T07:30:00Z"}`,
		"Bearer secret-b": `{"id": "2", "name": "Second.5678", "last_modified": "2026-08-03T07:30:00Z"}`,
	}
	revalidations := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-Modified-Since") != "" {
			revalidations++
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Last-Modified", lastModified.Format(http.TimeFormat))
		w.Write([]byte(bodies[r.Header.Get("Authorization")]))
	}))
	t.Cleanup(server.Close)

	// NewClient carries the caching transport, which must never answer one
	// credential's request with another credential's cached account body.
	client := gw2api.NewClient(server.URL + "/")
	ctx := context.Background()

	first, err := client.FetchAccount(ctx, "secret-a")
	require.NoError(t, err)
	assert.Equal(t, "First.1234", first.Name)

	second, err := client.FetchAccount(ctx, "secret-b")
	require.NoError(t, err)
	assert.Equal(t, "Second.5678", second.Name)

	// A 304 revalidation is served from the same credential's cache entry.
	again, err := client.FetchAccount(ctx, "secret-a")
	require.NoError(t, err)
	assert.Equal(t, "First.1234", again.Name)
	assert.Equal(t, 1, revalidations)
}

func TestClient_FetchTokenInfo(t *testing.T) {
	t.Run("api key", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v2/tokeninfo", r.URL.Path)
			w.Write([]byte(`{"id": "token-id", "name": "my key", "permissions": ["account", "progression"], "type": "APIKey"}`))
		})

		info, err := client.FetchTokenInfo(context.Background(), "secret")
		require.NoError(t, err)
		assert.Equal(t, model.TokenKindAPIKey, info.Kind)
		assert.True(t, info.HasPermission("progression"))
		assert.Nil(t, info.URLs)
	})

	t.Run("subtoken", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{
				"id": "token-id",
				"permissions": ["account", "progression"],
				"type": "Subtoken",
				"expires_at": "2027-08-30T12:00:00Z",
				"issued_at": "2026-08-30T12:00:00Z",
				"urls": ["/v2/account", "/v2/account/raids"]
			}`))
		})

		info, err := client.FetchTokenInfo(context.Background(), "secret")
		require.NoError(t, err)
		assert.Equal(t, model.TokenKindSubtoken, info.Kind)
		assert.Equal(t, []string{"/v2/account", "/v2/account/raids"}, info.URLs)
		assert.True(t, info.ExpiresAt.Equal(time.Date(2027, 8, 30, 12, 0, 0, 0, time.UTC)))
	})

	t.Run("unknown type", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"id": "token-id", "permissions": [], "type": "Future"}`))
		})

		info, err := client.FetchTokenInfo(context.Background(), "secret")
		require.NoError(t, err)
		assert.Equal(t, model.TokenKindUnknown, info.Kind)
	})
}

func TestClient_FetchLastModified(t *testing.T) {
	t.Run("from header", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Last-Modified", "Sun, 30 Aug 2026 12:00:00 GMT")
			w.Write([]byte(`{}`))
		})

		lastModified, err := client.FetchLastModified(context.Background(), "secret")
		require.NoError(t, err)
		assert.True(t, lastModified.Equal(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)))
	})

	t.Run("from body when header absent", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"last_modified": "2026-08-30T12:00:00Z"}`))
		})

		lastModified, err := client.FetchLastModified(context.Background(), "secret")
		require.NoError(t, err)
		assert.True(t, lastModified.Equal(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)))
	})
}

func TestClient_CreateSubtoken(t *testing.T) {
	expiresAt := time.Date(2027, 8, 30, 12, 0, 0, 0, time.UTC)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/createsubtoken", r.URL.Path)
		assert.Equal(t, "Bearer secret-1", r.Header.Get("Authorization"))
		assert.Equal(t, "2027-08-30T12:00:00Z", r.URL.Query().Get("expire"))
		assert.Equal(t, "account,progression", r.URL.Query().Get("permissions"))
		assert.Equal(t, "/v2/tokeninfo,/v2/createsubtoken,/v2/account,/v2/account/achievements,/v2/account/dungeons,/v2/account/worldbosses,/v2/account/masteries,/v2/account/raids", r.URL.Query().Get("urls"))
		w.Write([]byte(`{"subtoken": "minted.jwt"}`))
	})

	subtoken, err := client.CreateSubtoken(context.Background(), "secret-1", model.SubtokenPermissions, model.SubtokenURLs, expiresAt)
	require.NoError(t, err)
	assert.Equal(t, "minted.jwt", subtoken)
}

func TestMock_ServesConsistentData(t *testing.T) {
	mock := gw2api.NewMock()

	raids, err := mock.FetchRaids(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, raids.Wings)

	finished, err := mock.FetchFinishedEncounters(context.Background(), "")
	require.NoError(t, err)

	// Every mock clear refers to an encounter in the mock structure.
	known := map[string]bool{}
	for _, wing := range raids.Wings {
		for _, encounter := range wing.Encounters {
			known[encounter.ID] = true
		}
	}
	for _, id := range finished {
		assert.True(t, known[id], "finished id %q missing from raid structure", id)
	}

	lastModified, err := mock.FetchLastModified(context.Background(), "")
	require.NoError(t, err)
	state := model.RaidClearState{FinishedEncounterIDs: finished, CheckedAt: time.Now(), LastModified: lastModified}
	assert.True(t, state.IsFresh(time.Now()), "mock data must never appear reset-stale")
}

func TestClient_ContextCancellation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[]`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchRaids(ctx)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, driven.ErrUnreachable) || errors.Is(err, context.Canceled))
}
