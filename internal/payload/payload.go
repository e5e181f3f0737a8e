// SPDX-License-Identifier: Apache-2.0

// Package payload implements the immutable Payload type (spec.md §3) and its
// differential variants, plus the Collection it is stored in.
//
// A Payload is frozen at construction. Every state transition — dirtying,
// decrypting, mutating domain content — is expressed as a pure function that
// takes a Payload and returns a new one. Nothing in this package ever
// mutates a Payload's exported fields after New returns.
package payload

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ContentType discriminates the kind of item a Payload carries.
type ContentType string

const (
	ContentTypeNote       ContentType = "Note"
	ContentTypeTag        ContentType = "Tag"
	ContentTypeItemsKey   ContentType = "SN|ItemsKey"
	ContentTypeComponent  ContentType = "SN|Component"
	ContentTypePrivileges ContentType = "SN|Privileges"
	ContentTypePreference ContentType = "SN|UserPreferences"
)

// Source identifies where a Payload came from, used by the delta layer
// (internal/delta) to pick a conflict-resolution strategy and by the
// payload manager to decide ignore-vs-overlay semantics.
type Source string

const (
	SourceLocalChanged    Source = "LocalChanged"
	SourceLocalSaved      Source = "LocalSaved"
	SourceRemoteRetrieved Source = "RemoteRetrieved"
	SourceRemoteSaved     Source = "RemoteSaved"
	SourceRemoteRejected  Source = "RemoteRejected"
	SourceConflict        Source = "Conflict"
	SourceFileImport      Source = "FileImport"
	SourceLocalDirtied    Source = "LocalDirtied"
)

// Content is the parsed, decrypted body of a Payload. Keys listed in
// contentKeysToIgnoreWhenCheckingEquality (delta package) are excluded from
// equality checks but are otherwise ordinary map entries.
type Content map[string]any

// Clone returns a deep-enough copy of c suitable for building a mutated
// payload: map and nested map values are copied, slices are copied, scalars
// are copied by value.
func (c Content) Clone() Content {
	if c == nil {
		return nil
	}
	out := make(Content, len(c))
	for k, v := range c {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = cloneValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = cloneValue(vv)
		}
		return out
	default:
		return v
	}
}

// Payload is the atomic, immutable unit of the sync engine (spec.md §3).
//
// The zero value is not meaningful; construct with New or a Builder.
type Payload struct {
	UUID        string
	ContentType ContentType

	// Content holds the decrypted body when DecryptedOK is true. When the
	// payload is still encrypted (or failed to decrypt), Content is nil and
	// CipherText holds the versioned ciphertext string instead.
	Content     Content
	CipherText  string
	DecryptedOK bool

	EncItemKey  string
	ItemsKeyID  string
	AuthHash    string
	AuthParams  map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time

	Dirty         bool
	DirtiedDate   time.Time
	LastSyncBegan time.Time
	LastSyncEnd   time.Time

	Deleted bool

	ErrorDecrypting bool
	WaitingForKey   bool

	// ConflictOf is set on a duplicate created by the KeepLeftDuplicateRight /
	// KeepRightDuplicateLeft conflict strategies (spec.md §4.4); it points
	// back at the uuid of the payload this one was split from.
	ConflictOf string

	Source Source
}

// Params groups the fields needed to construct a Payload.
type Params struct {
	UUID            string
	ContentType     ContentType
	Content         Content
	CipherText      string
	DecryptedOK     bool
	EncItemKey      string
	ItemsKeyID      string
	AuthHash        string
	AuthParams      map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Dirty           bool
	DirtiedDate     time.Time
	LastSyncBegan   time.Time
	LastSyncEnd     time.Time
	Deleted         bool
	ErrorDecrypting bool
	WaitingForKey   bool
	ConflictOf      string
	Source          Source
}

// New constructs a frozen Payload. If p.UUID is empty a fresh UUIDv4 is
// generated, matching spec.md's "stable identifier, 128-bit UUID-v4 string".
func New(p Params) *Payload {
	id := p.UUID
	if id == "" {
		id = uuid.NewString()
	}
	return &Payload{
		UUID:            id,
		ContentType:     p.ContentType,
		Content:         p.Content.Clone(),
		CipherText:      p.CipherText,
		DecryptedOK:     p.DecryptedOK,
		EncItemKey:      p.EncItemKey,
		ItemsKeyID:      p.ItemsKeyID,
		AuthHash:        p.AuthHash,
		AuthParams:      p.AuthParams,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		Dirty:           p.Dirty,
		DirtiedDate:     p.DirtiedDate,
		LastSyncBegan:   p.LastSyncBegan,
		LastSyncEnd:     p.LastSyncEnd,
		Deleted:         p.Deleted,
		ErrorDecrypting: p.ErrorDecrypting,
		WaitingForKey:   p.WaitingForKey,
		ConflictOf:      p.ConflictOf,
		Source:          p.Source,
	}
}

// params snapshots the receiver's fields into a Params value so With*
// helpers can build a modified copy without repeating every field.
func (p *Payload) params() Params {
	return Params{
		UUID: p.UUID, ContentType: p.ContentType, Content: p.Content,
		CipherText: p.CipherText, DecryptedOK: p.DecryptedOK,
		EncItemKey: p.EncItemKey, ItemsKeyID: p.ItemsKeyID,
		AuthHash: p.AuthHash, AuthParams: p.AuthParams,
		CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
		Dirty: p.Dirty, DirtiedDate: p.DirtiedDate,
		LastSyncBegan: p.LastSyncBegan, LastSyncEnd: p.LastSyncEnd,
		Deleted: p.Deleted, ErrorDecrypting: p.ErrorDecrypting,
		WaitingForKey: p.WaitingForKey, ConflictOf: p.ConflictOf,
		Source: p.Source,
	}
}

// WithDirty returns a new Payload with Dirty and DirtiedDate set. Used by
// item mutators (internal/item) after producing new content.
func (p *Payload) WithDirty(dirty bool, at time.Time) *Payload {
	np := p.params()
	np.Dirty = dirty
	np.DirtiedDate = at
	return New(np)
}

// WithContent returns a new Payload carrying decrypted content, clearing any
// ciphertext/error/waiting state. Used by the protocol service after a
// successful decrypt.
func (p *Payload) WithContent(c Content) *Payload {
	np := p.params()
	np.Content = c
	np.DecryptedOK = true
	np.CipherText = ""
	np.ErrorDecrypting = false
	np.WaitingForKey = false
	return New(np)
}

// WithCipherText returns a new Payload carrying only ciphertext (content not
// yet decrypted, or successfully re-encrypted for upload).
func (p *Payload) WithCipherText(ct string) *Payload {
	np := p.params()
	np.CipherText = ct
	np.Content = nil
	np.DecryptedOK = false
	return New(np)
}

// WithErrorDecrypting marks the payload as undecryptable, preserving its
// ciphertext. spec.md §3 invariant: such a payload is never silently
// overwritten by a lower-priority successful decryption.
func (p *Payload) WithErrorDecrypting() *Payload {
	np := p.params()
	np.ErrorDecrypting = true
	np.WaitingForKey = false
	np.Content = nil
	np.DecryptedOK = false
	return New(np)
}

// WithWaitingForKey marks the payload as waiting on a not-yet-available
// items key (spec.md §4.1 step 2).
func (p *Payload) WithWaitingForKey() *Payload {
	np := p.params()
	np.WaitingForKey = true
	np.ErrorDecrypting = false
	return New(np)
}

// WithServerMeta returns a new Payload with server-authoritative timestamps
// and sync bookkeeping applied. updated_at is always authoritative from the
// server per spec.md §3.
func (p *Payload) WithServerMeta(updatedAt time.Time, syncEnd time.Time) *Payload {
	np := p.params()
	np.UpdatedAt = updatedAt
	np.Dirty = false
	np.LastSyncEnd = syncEnd
	return New(np)
}

// WithDeleted returns a new tombstoned Payload.
func (p *Payload) WithDeleted(deleted, dirty bool, at time.Time) *Payload {
	np := p.params()
	np.Deleted = deleted
	np.Dirty = dirty
	np.DirtiedDate = at
	return New(np)
}

// WithEncryptedItem returns a new Payload carrying freshly produced
// ciphertext, its wrapped per-item key, and the items key it was wrapped
// under (spec.md §4.1 v004 encryption). Content is cleared: the payload is
// now only representable on the wire, not in memory as decrypted domain data.
func (p *Payload) WithEncryptedItem(cipherText, encItemKey, itemsKeyID string) *Payload {
	np := p.params()
	np.CipherText = cipherText
	np.EncItemKey = encItemKey
	np.ItemsKeyID = itemsKeyID
	np.Content = nil
	np.DecryptedOK = false
	return New(np)
}

// WithSource returns a new Payload tagged with the given Source, used by
// the delta layer to record provenance on payloads it emits.
func (p *Payload) WithSource(s Source) *Payload {
	np := p.params()
	np.Source = s
	return New(np)
}

// WithConflictOf returns a copy of p duplicated under a fresh uuid,
// referencing original as its conflict source (spec.md §4.4
// KeepLeftDuplicateRight / KeepRightDuplicateLeft).
func (p *Payload) WithConflictOf(original string) *Payload {
	np := p.params()
	np.UUID = uuid.NewString()
	np.ConflictOf = original
	np.Dirty = true
	return New(np)
}

// NeverSynced reports whether the payload has never completed a round trip
// to the server (spec.md §4.3 pre-flight step 2: "deleted and have never
// been synced (updated_at==0)").
func (p *Payload) NeverSynced() bool {
	return p.UpdatedAt.IsZero()
}

// IsEncrypted reports whether Content is unavailable and a ciphertext string
// is present instead.
func (p *Payload) IsEncrypted() bool {
	return !p.DecryptedOK && p.CipherText != ""
}

// MarshalWire renders the server-facing JSON shape from spec.md §6 ("Item
// wire shape"). Content is represented as the ciphertext string (or the
// "000" prefixed unencrypted JSON form); callers must encrypt before calling
// this for anything other than a "000" payload.
func (p *Payload) MarshalWire() ([]byte, error) {
	type wire struct {
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
	w := wire{
		UUID:        p.UUID,
		ContentType: string(p.ContentType),
		Content:     p.CipherText,
		EncItemKey:  p.EncItemKey,
		ItemsKeyID:  p.ItemsKeyID,
		Deleted:     p.Deleted,
		AuthHash:    p.AuthHash,
	}
	if !p.CreatedAt.IsZero() {
		w.CreatedAt = p.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000Z")
	}
	if !p.UpdatedAt.IsZero() {
		w.UpdatedAt = p.UpdatedAt.UTC().Format("2006-01-02T15:04:05.000000Z")
	}
	return json.Marshal(w)
}
