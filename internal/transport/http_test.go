// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvard/notesync/internal/keys"
	"github.com/halvard/notesync/internal/session"
	"github.com/halvard/notesync/internal/syncengine"
)

func TestSignInStoresTokenAndDecodesKeyParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/sign-in", r.URL.Path)
		var body signInRequestDTO
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user@example.com", body.Email)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(signInResponseDTO{
			UserUUID: "u-1", Token: "tok-abc",
			KeyParams: keyParamsDTO{Version: "004", Identifier: "user@example.com", PwNonce: "n1"},
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	resp, err := c.SignIn(context.Background(), session.SignInRequest{Email: "user@example.com", ServerPassword: "sp"})
	require.NoError(t, err)
	assert.Equal(t, "u-1", resp.UserUUID)
	assert.Equal(t, "tok-abc", resp.Token)
	assert.Equal(t, keys.Version004, resp.KeyParams.Version)
	assert.Equal(t, "tok-abc", c.Token())
}

func TestSignInMapsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.SignIn(context.Background(), session.SignInRequest{Email: "a@b.com", ServerPassword: "x"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRegisterMapsConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.Register(context.Background(), session.RegisterRequest{Email: "a@b.com", ServerPassword: "x", KeyParams: keys.KeyParams{Version: keys.Version004}})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSyncSendsAuthorizationHeaderAndRoundTripsItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-abc", r.Header.Get("Authorization"))

		var body syncRequestDTO
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Items, 1)
		assert.Equal(t, "note-1", body.Items[0].UUID)
		assert.True(t, body.ComputeIntegrity)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(syncResponseDTO{
			RetrievedItems: []wireItemDTO{{UUID: "note-2", ContentType: "Note"}},
			SyncToken:      "tok-next",
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	c.SetToken("tok-abc")

	resp, err := c.Sync(context.Background(), syncengine.SyncRequest{
		Items:            []syncengine.WireItem{{UUID: "note-1", ContentType: "Note"}},
		ComputeIntegrity: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "tok-next", resp.SyncToken)
	require.Len(t, resp.RetrievedItems, 1)
	assert.Equal(t, "note-2", resp.RetrievedItems[0].UUID)
}

func TestRequestKeyParamsSendsEmailQueryParam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "user@example.com", r.URL.Query().Get("email"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(keyParamsResponseDTO{KeyParams: keyParamsDTO{Version: "004", Identifier: "user@example.com", PwNonce: "n1"}})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	resp, err := c.RequestKeyParams(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, keys.Version004, resp.KeyParams.Version)
	assert.Equal(t, "n1", resp.KeyParams.PwNonce)
}
