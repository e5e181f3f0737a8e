// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/halvard/notesync/internal/events"
	"github.com/halvard/notesync/internal/keys"
	"github.com/halvard/notesync/internal/mock"
	"github.com/halvard/notesync/internal/protocol"
)

// accountStore is the tiny server-side account model the tests drive a
// mock.MockRemoteClient with via gomock.Call.DoAndReturn, so a
// Register-then-SignIn round trip still enforces the same password check a
// real server would, instead of every call being an independent canned
// response.
type accountStore struct {
	accounts map[string]keys.KeyParams
	passords map[string]string // email -> server password on file

	registerErr error
	signInErr   error
	changePwErr error
}

func newAccountStore() *accountStore {
	return &accountStore{accounts: map[string]keys.KeyParams{}, passords: map[string]string{}}
}

func (f *accountStore) RequestKeyParams(_ context.Context, email string) (KeyParamsResponse, error) {
	kp, ok := f.accounts[email]
	if !ok {
		return KeyParamsResponse{}, assert.AnError
	}
	return KeyParamsResponse{KeyParams: kp}, nil
}

func (f *accountStore) Register(_ context.Context, req RegisterRequest) (RegisterResponse, error) {
	if f.registerErr != nil {
		return RegisterResponse{}, f.registerErr
	}
	f.accounts[req.Email] = req.KeyParams
	f.passords[req.Email] = req.ServerPassword
	return RegisterResponse{UserUUID: "user-" + req.Email}, nil
}

func (f *accountStore) SignIn(_ context.Context, req SignInRequest) (SignInResponse, error) {
	if f.signInErr != nil {
		return SignInResponse{}, f.signInErr
	}
	if f.passords[req.Email] != req.ServerPassword {
		return SignInResponse{}, assert.AnError
	}
	return SignInResponse{UserUUID: "user-" + req.Email, Token: "tok-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *accountStore) ChangePassword(_ context.Context, req ChangePasswordRequest) (ChangePasswordResponse, error) {
	if f.changePwErr != nil {
		return ChangePasswordResponse{}, f.changePwErr
	}
	if f.passords[req.Email] != req.CurrentServerPassword {
		return ChangePasswordResponse{}, assert.AnError
	}
	f.accounts[req.Email] = req.NewKeyParams
	f.passords[req.Email] = req.NewServerPassword
	return ChangePasswordResponse{Token: "tok-2", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

// newMockRemote wires a mock.MockRemoteClient whose four methods delegate
// to store, so tests get gomock's call-expectation bookkeeping and
// CleanupFunc-driven ctrl.Finish() without losing the stateful round-trip
// behavior the scenarios below depend on.
func newMockRemote(t *testing.T, store *accountStore) *mock.MockRemoteClient {
	t.Helper()
	ctrl := gomock.NewController(t)
	remote := mock.NewMockRemoteClient(ctrl)
	remote.EXPECT().RequestKeyParams(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(store.RequestKeyParams)
	remote.EXPECT().Register(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(store.Register)
	remote.EXPECT().SignIn(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(store.SignIn)
	remote.EXPECT().ChangePassword(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(store.ChangePassword)
	return remote
}

func newTestService(remote RemoteClient) *Service {
	return NewService(remote, protocol.NewService(nil), events.New(), nil)
}

func TestRegisterThenSignInRoundTrip(t *testing.T) {
	remote := newMockRemote(t, newAccountStore())
	svc := newTestService(remote)
	ctx := context.Background()

	rootKey, err := svc.Register(ctx, "a@example.com", "correct horse battery staple")
	require.NoError(t, err)
	require.NotNil(t, rootKey)

	sess, signedInKey, err := svc.SignIn(ctx, "a@example.com", "correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", sess.Token)
	assert.Equal(t, rootKey.MasterKey, signedInKey.MasterKey)
}

func TestSignInWithWrongPasswordFails(t *testing.T) {
	remote := newMockRemote(t, newAccountStore())
	svc := newTestService(remote)
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@example.com", "correct horse battery staple")
	require.NoError(t, err)

	_, _, err = svc.SignIn(ctx, "a@example.com", "wrong password")
	require.ErrorIs(t, err, ErrSignInFailed)
}

func TestSignInEmitsProtocolOutdatedForLegacyVersion(t *testing.T) {
	store := newAccountStore()
	store.accounts["legacy@example.com"] = keys.KeyParams{Version: "002", Identifier: "legacy@example.com", PwSalt: "legacy-salt"}
	store.passords["legacy@example.com"] = "whatever"

	proto := protocol.NewService(nil)
	rootKey, err := proto.DeriveRootKey("password", store.accounts["legacy@example.com"])
	require.NoError(t, err)
	store.passords["legacy@example.com"] = encodeServerPassword(rootKey.ServerPassword)

	dispatcher := events.New()
	var fired []events.Type
	dispatcher.Subscribe(func(ev events.Event) { fired = append(fired, ev.Type) })

	remote := newMockRemote(t, store)
	svc := NewService(remote, proto, dispatcher, nil)
	_, _, err = svc.SignIn(context.Background(), "legacy@example.com", "password")
	require.NoError(t, err)

	assert.Contains(t, fired, events.ProtocolOutdated)
	assert.Contains(t, fired, events.SignedIn)
}

func TestChangePasswordRotatesServerPasswordAndKeyParams(t *testing.T) {
	remote := newMockRemote(t, newAccountStore())
	svc := newTestService(remote)
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@example.com", "old-password")
	require.NoError(t, err)

	sess, newRootKey, err := svc.ChangePassword(ctx, "a@example.com", "old-password", "new-password")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", sess.Token)
	require.NotNil(t, newRootKey)

	_, _, err = svc.SignIn(ctx, "a@example.com", "old-password")
	assert.Error(t, err, "old password must no longer authenticate")

	_, signedInKey, err := svc.SignIn(ctx, "a@example.com", "new-password")
	require.NoError(t, err)
	assert.Equal(t, newRootKey.MasterKey, signedInKey.MasterKey)
}

func TestSignOutEmitsSignedOut(t *testing.T) {
	dispatcher := events.New()
	var fired []events.Type
	dispatcher.Subscribe(func(ev events.Event) { fired = append(fired, ev.Type) })

	svc := NewService(newMockRemote(t, newAccountStore()), protocol.NewService(nil), dispatcher, nil)
	svc.SignOut()

	assert.Equal(t, []events.Type{events.SignedOut}, fired)
}
