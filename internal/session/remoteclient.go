// SPDX-License-Identifier: Apache-2.0

// Package session implements spec.md §4's "Session/Credential Service":
// register / sign-in / change-password, and session token lifecycle. The
// server itself is an external collaborator (spec.md §1); this package
// only depends on the narrow RemoteClient interface.
package session

import (
	"context"
	"time"

	"github.com/halvard/notesync/internal/keys"
)

// RegisterRequest is the wire payload sent to create a new account. Only
// the server password (spec.md §3 glossary: "the only proof sent to the
// server") ever leaves the client — never the master password itself.
type RegisterRequest struct {
	Email          string
	ServerPassword string
	KeyParams      keys.KeyParams
}

type RegisterResponse struct {
	UserUUID string
}

// SignInRequest authenticates against previously registered key params.
type SignInRequest struct {
	Email          string
	ServerPassword string
}

type SignInResponse struct {
	UserUUID  string
	Token     string
	ExpiresAt time.Time
	KeyParams keys.KeyParams
}

// ChangePasswordRequest rotates both the account's server password and
// its key params in one authenticated round trip.
type ChangePasswordRequest struct {
	Email                 string
	CurrentServerPassword string
	NewServerPassword     string
	NewKeyParams          keys.KeyParams
}

type ChangePasswordResponse struct {
	Token     string
	ExpiresAt time.Time
}

// KeyParamsResponse carries the key params RequestKeyParams fetches to
// re-derive a root key for email, without authenticating — used both by
// SignIn (before the server password is known) and by key recovery
// (spec.md §4.5 step 3).
type KeyParamsResponse struct {
	KeyParams keys.KeyParams
}

// RemoteClient is the narrow interface the session service and key
// recovery service depend on (spec.md §1 "session/credential HTTP
// endpoints" is an external collaborator). internal/transport provides
// the resty-based production implementation.
type RemoteClient interface {
	RequestKeyParams(ctx context.Context, email string) (KeyParamsResponse, error)
	Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error)
	SignIn(ctx context.Context, req SignInRequest) (SignInResponse, error)
	ChangePassword(ctx context.Context, req ChangePasswordRequest) (ChangePasswordResponse, error)
}

// ChallengePrompter asks a human for a password or passcode (spec.md §1
// "challenge/alert UI prompts" is an external collaborator). Returning
// ok=false means the prompt was cancelled (spec.md §5: "a challenge
// prompt returning null cancels the operation that requested it").
type ChallengePrompter interface {
	PromptPassword(ctx context.Context, reason string) (password string, ok bool)
}
