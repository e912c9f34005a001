package friendsapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/clearsync/internal/adapter/driven/friendsapi"
	"github.com/ericfisherdev/clearsync/internal/domain/model"
	"github.com/ericfisherdev/clearsync/internal/domain/port/driven"
)

const stateFixture = `{
  "keys": [
    {
      "key_hash": "a1b2c3",
      "shared_to": [
        {"account": "Friend.1234", "added_at": "2026-08-01T10:00:00Z", "account_available": true},
        {"account": "Gone.5678", "added_at": "2026-08-02T10:00:00Z", "account_available": false}
      ],
      "subtoken_added_at": "2026-08-01T09:00:00Z",
      "subtoken_expires_at": "2027-08-01T09:00:00Z",
      "account": "Mine.1234",
      "public": true
    },
    {
      "key_hash": "d4e5f6",
      "shared_to": [],
      "subtoken_added_at": null,
      "subtoken_expires_at": null,
      "account": null,
      "public": false
    }
  ],
  "friends": [
    {
      "account": "Friend.1234",
      "subtoken": "their.jwt",
      "expires_at": "2026-12-01T00:00:00Z",
      "shared_with": ["Mine.1234"]
    }
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *friendsapi.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return friendsapi.NewClientWithHTTPClient(server.Client(), server.URL+"/")
}

func TestClient_FetchState(t *testing.T) {
	meta := model.FriendRequestMetadata{APIKeys: []string{"secret-1", "secret-2"}}
	wantAuth := model.KeyHash("secret-1") + "," + model.KeyHash("secret-2")

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/state", r.URL.Path)
		// Authentication carries hashes only, never raw secrets.
		assert.Equal(t, wantAuth, r.Header.Get("x-auth-keys"))
		w.Write([]byte(stateFixture))
	})

	state, err := client.FetchState(context.Background(), meta)
	require.NoError(t, err)

	require.Len(t, state.Keys, 2)
	first := state.Keys[0]
	assert.Equal(t, "a1b2c3", first.KeyHash)
	assert.Equal(t, "Mine.1234", first.Account)
	assert.True(t, first.Public)
	require.NotNil(t, first.SubtokenExpiresAt)
	assert.True(t, first.SubtokenExpiresAt.Equal(time.Date(2027, 8, 1, 9, 0, 0, 0, time.UTC)))
	require.Len(t, first.SharedTo, 2)
	assert.True(t, first.SharedTo[0].AccountAvailable)
	assert.False(t, first.SharedTo[1].AccountAvailable)

	second := state.Keys[1]
	assert.Empty(t, second.Account)
	assert.Nil(t, second.SubtokenAddedAt)
	assert.Nil(t, second.SubtokenExpiresAt)

	require.Len(t, state.Friends, 1)
	friend := state.Friends[0]
	assert.Equal(t, "Friend.1234", friend.Account)
	assert.Equal(t, "their.jwt", friend.Subtoken)
	assert.Equal(t, []string{"Mine.1234"}, friend.SharedWith)
}

func TestClient_RegisterSubtoken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/key/add", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "a1b2c3", r.PostForm.Get("key_hash"))
		assert.Equal(t, "minted.jwt", r.PostForm.Get("subtoken"))
		w.Write([]byte(stateFixture))
	})

	state, err := client.RegisterSubtoken(context.Background(), model.FriendRequestMetadata{}, "a1b2c3", "minted.jwt")
	require.NoError(t, err)
	assert.Len(t, state.Keys, 2)
}

func TestClient_ShareAndUnshare(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "a1b2c3", r.PostForm.Get("key_hash"))
		assert.Equal(t, "Friend.1234", r.PostForm.Get("account"))
		w.Write([]byte(`{"keys": [], "friends": []}`))
	})

	_, err := client.Share(context.Background(), model.FriendRequestMetadata{}, "a1b2c3", "Friend.1234")
	require.NoError(t, err)
	assert.Equal(t, "/key/share", gotPath)

	_, err = client.Unshare(context.Background(), model.FriendRequestMetadata{}, "a1b2c3", "Friend.1234")
	require.NoError(t, err)
	assert.Equal(t, "/key/unshare", gotPath)
}

func TestClient_SetPublic(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/key/public", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "a1b2c3", r.PostForm.Get("key_hash"))
		assert.Equal(t, "true", r.PostForm.Get("public"))
		w.Write([]byte(`{"keys": [], "friends": []}`))
	})

	_, err := client.SetPublic(context.Background(), model.FriendRequestMetadata{}, "a1b2c3", true)
	require.NoError(t, err)
}

func TestClient_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: driven.ErrInvalidKey},
		{name: "rate limited", status: http.StatusTooManyRequests, wantErr: driven.ErrRateLimited},
		{name: "server error", status: http.StatusBadGateway, wantErr: driven.ErrUnreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := client.FetchState(context.Background(), model.FriendRequestMetadata{})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_MalformedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`not json`))
	})

	_, err := client.FetchState(context.Background(), model.FriendRequestMetadata{})

	var malformed *driven.MalformedResponseError
	assert.ErrorAs(t, err, &malformed)
}
