// SPDX-License-Identifier: Apache-2.0

// Package delta implements spec.md §4.4: pure functions that reduce a
// base collection (the current master) and an apply collection (incoming
// payloads of one source) into a resulting collection, encoding one
// conflict policy per call.
package delta

import (
	"errors"
	"time"

	"github.com/halvard/notesync/internal/item"
	"github.com/halvard/notesync/internal/payload"
)

// ErrNoLocalCounterpart is returned by ResolveRemoteRejected when a
// rejected uuid has no decrypted local counterpart in base.
//
// spec.md §9 open question: the source throws a bare string here; the
// condition under which it's reached is unclear. Evident intent is a
// recoverable error the sync engine logs and skips, not a fatal one — see
// DESIGN.md.
var ErrNoLocalCounterpart = errors.New("delta: remote-rejected payload has no local counterpart")

// Resolve implements the general conflict delta used for RemoteRetrieved,
// RemoteSaved, and Conflict sources (spec.md §4.4): per incoming uuid,
// item.Decide picks a strategy against the base collection, and the
// result — including any conflict duplicate — is merged into a fresh
// collection seeded from base. Singleton enforcement runs last.
func Resolve(base *payload.Collection, incoming []*payload.Payload, now time.Time) *payload.Immutable {
	result := base.Clone()

	for _, right := range incoming {
		left, found := base.Find(right.UUID)
		if !found {
			result.Put(right)
			continue
		}

		strategy := item.Decide(item.Wrap(left), item.Wrap(right))
		applyStrategy(result, left, right, strategy, now)
	}

	enforceSingletons(result, now)
	return payload.Freeze(result)
}

// ResolveFileImport implements spec.md §4.4 "FileImport delta": incoming
// payloads collide-check by uuid against master; on collision, always
// KeepLeftDuplicateRight — imported data never overwrites existing local
// data.
func ResolveFileImport(base *payload.Collection, incoming []*payload.Payload) *payload.Immutable {
	result := base.Clone()

	for _, right := range incoming {
		right = right.WithSource(payload.SourceFileImport)
		left, found := base.Find(right.UUID)
		if !found {
			result.Put(right)
			continue
		}
		duplicate := right.WithConflictOf(left.UUID)
		result.Put(duplicate)
	}

	return payload.Freeze(result)
}

// ResolveRemoteRejected implements spec.md §4.4 "RemoteRejected delta":
// the server rejected these uuids' saves; each is re-sourced from its
// locally-held decrypted counterpart with dirty=false and
// lastSyncEnd=now, then re-emitted.
func ResolveRemoteRejected(base *payload.Collection, rejectedUUIDs []string, now time.Time) (*payload.Immutable, error) {
	result := base.Clone()

	for _, uuid := range rejectedUUIDs {
		local, found := base.Find(uuid)
		if !found || !local.DecryptedOK {
			return nil, ErrNoLocalCounterpart
		}
		result.Put(local.WithServerMeta(local.UpdatedAt, now))
	}

	return payload.Freeze(result), nil
}

func applyStrategy(result *payload.Collection, left, right *payload.Payload, strategy item.ConflictStrategy, now time.Time) {
	switch strategy {
	case item.KeepLeft:
		// result already has left via base.Clone(); nothing to do.

	case item.KeepRight:
		result.Put(right)

	case item.KeepLeftDuplicateRight:
		result.Put(right.WithConflictOf(left.UUID))

	case item.KeepRightDuplicateLeft:
		result.Put(right)
		result.Put(left.WithConflictOf(left.UUID))

	case item.KeepLeftMergeRefs:
		merged := mergeReferences(left, right)
		result.Put(merged.WithDirty(true, now))
	}
}

func mergeReferences(left, right *payload.Payload) *payload.Payload {
	seen := make(map[string]bool)
	merged := left.Content.Clone()

	var union []any
	appendRefs := func(c payload.Content) {
		raw, _ := c["references"].([]any)
		for _, r := range raw {
			entry, ok := r.(map[string]any)
			if !ok {
				continue
			}
			uuid, _ := entry["uuid"].(string)
			if uuid == "" || seen[uuid] {
				continue
			}
			seen[uuid] = true
			union = append(union, entry)
		}
	}
	appendRefs(left.Content)
	appendRefs(right.Content)
	merged["references"] = union

	return left.WithContent(merged)
}

// enforceSingletons implements spec.md §4.4 "Singleton enforcement": for
// every registered Descriptor.IsSingleton content type, scan non-deleted
// matches of SingletonPredicate; keep the earliest-created and mark the
// rest deleted+dirty.
func enforceSingletons(col *payload.Collection, now time.Time) {
	seenTypes := make(map[payload.ContentType]bool)
	for _, p := range col.All() {
		if seenTypes[p.ContentType] {
			continue
		}
		seenTypes[p.ContentType] = true

		d := item.DescriptorFor(p.ContentType)
		if !d.IsSingleton {
			continue
		}

		var matches []*payload.Payload
		for _, candidate := range col.OfType(p.ContentType) {
			if candidate.Deleted {
				continue
			}
			if d.SingletonPredicate == nil || d.SingletonPredicate(candidate.Content) {
				matches = append(matches, candidate)
			}
		}
		if len(matches) <= 1 {
			continue
		}

		earliest := matches[0]
		for _, m := range matches[1:] {
			if m.CreatedAt.Before(earliest.CreatedAt) {
				earliest = m
			}
		}
		for _, m := range matches {
			if m.UUID == earliest.UUID {
				continue
			}
			col.Put(m.WithDeleted(true, true, now))
		}
	}
}
