// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/halvard/notesync/internal/events"
	"github.com/halvard/notesync/internal/keys"
	"github.com/halvard/notesync/internal/logger"
	"github.com/halvard/notesync/internal/protocol"
)

// ErrSignInFailed wraps any RemoteClient.SignIn failure, including wrong
// password, into one sentinel observers can match on.
var ErrSignInFailed = errors.New("session: sign in failed")

// ErrRegisterFailed wraps any RemoteClient.Register failure.
var ErrRegisterFailed = errors.New("session: register failed")

// Session is the local record of an authenticated account (spec.md §6
// "session" storage key: "token + expiry").
type Session struct {
	UserUUID  string
	Email     string
	Token     string
	ExpiresAt time.Time
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Service implements spec.md §4's Session/Credential Service.
type Service struct {
	remote RemoteClient
	proto  *protocol.Service
	events *events.Dispatcher
	log    *logger.Logger
}

// NewService constructs a Service wired to its remote collaborator and
// the protocol service used for key derivation.
func NewService(remote RemoteClient, proto *protocol.Service, dispatcher *events.Dispatcher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if dispatcher == nil {
		dispatcher = events.New()
	}
	return &Service{remote: remote, proto: proto, events: dispatcher, log: log}
}

// Register derives a v004 root key for password, registers the account,
// and returns the root key the caller should hold for the session
// (spec.md §4.1 v004 is the only version this library encrypts with, so
// every new account is provisioned on it).
func (s *Service) Register(ctx context.Context, email, password string) (*keys.RootKey, error) {
	params := keys.KeyParams{Version: keys.Version004, Identifier: email, PwNonce: randomNonce()}

	rootKey, err := s.proto.DeriveRootKey(password, params)
	if err != nil {
		return nil, fmt.Errorf("derive root key: %w", err)
	}

	resp, err := s.remote.Register(ctx, RegisterRequest{
		Email:          email,
		ServerPassword: encodeServerPassword(rootKey.ServerPassword),
		KeyParams:      params,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegisterFailed, err)
	}

	s.log.Info().Str("user_uuid", resp.UserUUID).Str("email", email).Msg("account registered")
	s.events.EmitSimple(events.SignedIn)
	return rootKey, nil
}

// SignIn fetches the account's key params, re-derives the root key, signs
// in with the resulting server password, and surfaces a ProtocolOutdated
// warning if the account is still on v001/v002 (spec.md §4.1).
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, *keys.RootKey, error) {
	kp, err := s.remote.RequestKeyParams(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrSignInFailed, err)
	}

	rootKey, err := s.proto.DeriveRootKey(password, kp.KeyParams)
	if err != nil {
		return nil, nil, fmt.Errorf("derive root key: %w", err)
	}

	if version, outdated := s.proto.VersionForUser(rootKey); outdated {
		s.events.Emit(events.Event{Type: events.ProtocolOutdated, Payload: map[string]any{"version": string(version)}})
	}

	resp, err := s.remote.SignIn(ctx, SignInRequest{Email: email, ServerPassword: encodeServerPassword(rootKey.ServerPassword)})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrSignInFailed, err)
	}

	sess := &Session{UserUUID: resp.UserUUID, Email: email, Token: resp.Token, ExpiresAt: resp.ExpiresAt}
	s.events.EmitSimple(events.SignedIn)
	return sess, rootKey, nil
}

// ChangePassword derives a fresh v004 root key for newPassword and
// rotates both the account's server password and key params in one
// authenticated round trip. Re-encrypting items keys and items under the
// new root key (spec.md §8 scenario 4) is the caller's responsibility —
// it runs through the normal item-mutation and sync paths, not here.
func (s *Service) ChangePassword(ctx context.Context, email, currentPassword, newPassword string) (*Session, *keys.RootKey, error) {
	currentParams, err := s.remote.RequestKeyParams(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch current key params: %w", err)
	}
	currentRootKey, err := s.proto.DeriveRootKey(currentPassword, currentParams.KeyParams)
	if err != nil {
		return nil, nil, fmt.Errorf("derive current root key: %w", err)
	}

	newParams := keys.KeyParams{Version: keys.Version004, Identifier: email, PwNonce: randomNonce()}
	newRootKey, err := s.proto.DeriveRootKey(newPassword, newParams)
	if err != nil {
		return nil, nil, fmt.Errorf("derive new root key: %w", err)
	}

	resp, err := s.remote.ChangePassword(ctx, ChangePasswordRequest{
		Email:                 email,
		CurrentServerPassword: encodeServerPassword(currentRootKey.ServerPassword),
		NewServerPassword:     encodeServerPassword(newRootKey.ServerPassword),
		NewKeyParams:          newParams,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("change password: %w", err)
	}

	sess := &Session{Email: email, Token: resp.Token, ExpiresAt: resp.ExpiresAt}
	return sess, newRootKey, nil
}

// SignOut emits SignedOut. Service holds no session state of its own, so
// nothing is cleared here. The server token is left to expire naturally;
// spec.md names no server-side revocation endpoint.
func (s *Service) SignOut() {
	s.events.EmitSimple(events.SignedOut)
}
