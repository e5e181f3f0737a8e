// SPDX-License-Identifier: Apache-2.0

package serverref

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	h := NewHandler(NewMemoryStore(), Config{TokenSignKey: "test-sign-key"}, nil)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	if out != nil {
		defer resp.Body.Close()
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestRegisterThenSignIn(t *testing.T) {
	srv := newTestServer(t)

	var reg RegisterResponse
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/auth/register", RegisterRequest{
		Email:          "a@b.com",
		ServerPassword: "sp1",
		KeyParams:      KeyParamsDTO{Version: "004", Identifier: "a@b.com", PwNonce: "n1"},
	}, &reg)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, reg.UserUUID)

	var signIn SignInResponse
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/auth/sign-in", SignInRequest{Email: "a@b.com", ServerPassword: "sp1"}, &signIn)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, reg.UserUUID, signIn.UserUUID)
	assert.Equal(t, "n1", signIn.KeyParams.PwNonce)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	srv := newTestServer(t)

	req := RegisterRequest{Email: "dup@b.com", ServerPassword: "sp1"}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/auth/register", req, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/auth/register", req, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSignInRejectsWrongPassword(t *testing.T) {
	srv := newTestServer(t)

	doJSON(t, http.MethodPost, srv.URL+"/api/auth/register", RegisterRequest{Email: "wp@b.com", ServerPassword: "sp1"}, nil)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/auth/sign-in", SignInRequest{Email: "wp@b.com", ServerPassword: "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSyncRequiresBearerToken(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sync", SyncRequest{}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSyncRoundTripsItemsAndDetectsConflict(t *testing.T) {
	srv := newTestServer(t)

	doJSON(t, http.MethodPost, srv.URL+"/api/auth/register", RegisterRequest{Email: "sync@b.com", ServerPassword: "sp1"}, nil)
	var signIn SignInResponse
	doJSON(t, http.MethodPost, srv.URL+"/api/auth/sign-in", SignInRequest{Email: "sync@b.com", ServerPassword: "sp1"}, &signIn)

	now := time.Now().UTC().Format(wireTimeLayout)
	item := ItemDTO{UUID: "note-1", ContentType: "Note", Content: "cipher-1", CreatedAt: now, UpdatedAt: now}

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/sync", mustBody(t, SyncRequest{
		API: "20200115", Items: []ItemDTO{item}, ComputeIntegrity: true,
	}))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+signIn.Token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var syncResp SyncResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&syncResp))
	require.Len(t, syncResp.SavedItems, 1)
	assert.Equal(t, "note-1", syncResp.SavedItems[0].UUID)
	assert.NotEmpty(t, syncResp.IntegrityHash)
	assert.NotEmpty(t, syncResp.SyncToken)

	// Resend with a stale updated_at: server must reject as a conflict
	// rather than silently overwrite the newer copy it already holds.
	stale := item
	stale.Content = "cipher-stale"
	stale.UpdatedAt = time.Now().UTC().Add(-time.Hour).Format(wireTimeLayout)

	req, err = http.NewRequest(http.MethodPost, srv.URL+"/api/sync", mustBody(t, SyncRequest{
		Items: []ItemDTO{stale}, SyncToken: syncResp.SyncToken,
	}))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+signIn.Token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var conflictResp SyncResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&conflictResp))
	require.Len(t, conflictResp.Conflicts, 1)
	assert.Equal(t, "sync_conflict", conflictResp.Conflicts[0].Type)
	assert.Empty(t, conflictResp.SavedItems)
}

func mustBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(v))
	return &buf
}
