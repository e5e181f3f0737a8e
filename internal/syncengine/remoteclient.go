// SPDX-License-Identifier: Apache-2.0

// Package syncengine implements spec.md §4.3's sync operation state
// machine: pre-flight persistence, encryption, a queued request/response
// cycle against a remote collaborator, conflict resolution via
// internal/delta, pagination, and integrity checking.
package syncengine

import "context"

// ConflictEntry mirrors spec.md §6's "conflicts[{type, server_item |
// unsaved_item}]" wire shape. Type is either "sync_conflict" (server
// holds a different version) or "uuid_conflict" (client generated a uuid
// the server already has under a different owner).
type ConflictEntry struct {
	Type        string
	ServerItem  *WireItem
	UnsavedItem *WireItem
}

const (
	ConflictTypeSync = "sync_conflict"
	ConflictTypeUUID = "uuid_conflict"
)

// WireItem is spec.md §6's "Item wire shape": the JSON a sync request
// uploads and a sync response returns. Content is the ciphertext string
// (or a "000"-prefixed unencrypted JSON body); never decrypted content.
type WireItem struct {
	UUID        string
	ContentType string
	Content     string
	EncItemKey  string
	ItemsKeyID  string
	CreatedAt   string
	UpdatedAt   string
	Deleted     bool
	AuthHash    string
}

// SyncRequest is spec.md §6's sync request wire shape.
type SyncRequest struct {
	Items            []WireItem
	SyncToken        string
	CursorToken      string
	Limit            int
	ComputeIntegrity bool
}

// SyncResponse is spec.md §6's sync response wire shape.
type SyncResponse struct {
	RetrievedItems []WireItem
	SavedItems     []WireItem
	Conflicts      []ConflictEntry
	SyncToken      string
	CursorToken    string
	IntegrityHash  string
}

// RemoteClient is the narrow interface the sync engine depends on
// (spec.md §1's sync HTTP endpoint is an external collaborator).
// internal/transport provides the resty-based production implementation.
type RemoteClient interface {
	Sync(ctx context.Context, req SyncRequest) (SyncResponse, error)
}
