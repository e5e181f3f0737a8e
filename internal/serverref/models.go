// SPDX-License-Identifier: Apache-2.0

// Package serverref is a reference sync server implementing the wire
// contract of spec.md §6. It exists so the library can be exercised
// end-to-end (register, sign-in, sync, conflict resolution) against a
// real HTTP server in tests and the demo CLI, the way go-pass-keeper's
// own server half exercises its client half.
package serverref

import "time"

// wireTimeLayout matches internal/syncengine's wire.go exactly so
// timestamps round-trip byte-for-byte between this server and
// internal/transport's client.
const wireTimeLayout = "2006-01-02T15:04:05.000000Z"

// KeyParamsDTO mirrors internal/transport's keyParamsDTO — the two sides
// of the wire contract are defined independently so neither package
// reaches into the other's unexported types, but the JSON tags must stay
// in lockstep.
type KeyParamsDTO struct {
	Version    string `json:"version"`
	Identifier string `json:"identifier"`
	PwNonce    string `json:"pw_nonce,omitempty"`
	PwSalt     string `json:"pw_salt,omitempty"`
	PwCost     int    `json:"pw_cost,omitempty"`
}

type KeyParamsResponse struct {
	KeyParams KeyParamsDTO `json:"key_params"`
}

type RegisterRequest struct {
	Email          string       `json:"email"`
	ServerPassword string       `json:"server_password"`
	KeyParams      KeyParamsDTO `json:"key_params"`
}

// RegisterResponse carries only the new account's UUID: registration
// does not establish a session (spec.md §4's Session Service signs in
// separately, immediately after, using the same server password).
type RegisterResponse struct {
	UserUUID string `json:"user_uuid"`
}

type SignInRequest struct {
	Email          string `json:"email"`
	ServerPassword string `json:"server_password"`
}

type SignInResponse struct {
	UserUUID  string       `json:"user_uuid"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	KeyParams KeyParamsDTO `json:"key_params"`
}

type ChangePasswordRequest struct {
	Email                 string       `json:"email"`
	CurrentServerPassword string       `json:"current_server_password"`
	NewServerPassword     string       `json:"new_server_password"`
	NewKeyParams          KeyParamsDTO `json:"new_key_params"`
}

type ChangePasswordResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ItemDTO mirrors internal/syncengine's WireItem / internal/transport's
// wireItemDTO (spec.md §6) field for field, including string-formatted
// timestamps (wireTimeLayout) rather than time.Time, so a client decoding
// this JSON with syncengine.WireItem needs no special handling.
type ItemDTO struct {
	UUID        string `json:"uuid"`
	ContentType string `json:"content_type"`
	Content     string `json:"content,omitempty"`
	EncItemKey  string `json:"enc_item_key,omitempty"`
	ItemsKeyID  string `json:"items_key_id,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
	Deleted     bool   `json:"deleted"`
	AuthHash    string `json:"auth_hash,omitempty"`
}

func (i ItemDTO) updatedAt() time.Time {
	t, _ := time.Parse(wireTimeLayout, i.UpdatedAt)
	return t
}

type ConflictEntryDTO struct {
	Type        string   `json:"type"`
	ServerItem  *ItemDTO `json:"server_item,omitempty"`
	UnsavedItem *ItemDTO `json:"unsaved_item,omitempty"`
}

type SyncRequest struct {
	API              string    `json:"api"`
	Items            []ItemDTO `json:"items"`
	SyncToken        string    `json:"sync_token,omitempty"`
	CursorToken      string    `json:"cursor_token,omitempty"`
	Limit            int       `json:"limit,omitempty"`
	ComputeIntegrity bool      `json:"compute_integrity,omitempty"`
}

type SyncResponse struct {
	RetrievedItems []ItemDTO          `json:"retrieved_items,omitempty"`
	SavedItems     []ItemDTO          `json:"saved_items,omitempty"`
	Conflicts      []ConflictEntryDTO `json:"conflicts,omitempty"`
	SyncToken      string             `json:"sync_token"`
	CursorToken    string             `json:"cursor_token,omitempty"`
	IntegrityHash  string             `json:"integrity_hash,omitempty"`
}

// userRecord is the server's view of a registered account.
type userRecord struct {
	UUID           string
	Email          string
	ServerPassword string
	KeyParams      KeyParamsDTO
}

// itemRecord is the server's stored copy of a synced item, keyed by
// UUID within a user's namespace. syncSeq is a per-user monotonically
// increasing counter used to build opaque sync tokens (spec.md §4.3:
// "a sync_token ... is an opaque cursor the client must not interpret").
type itemRecord struct {
	ItemDTO
	syncSeq int64
}
