// SPDX-License-Identifier: Apache-2.0

package item

import (
	"time"

	"github.com/halvard/notesync/internal/payload"
)

// MutationType distinguishes edits a human made (UserInteraction) from
// edits the library makes on its own behalf (Internal).
//
// Internal is 2, not 1: spec.md's source material defines both constants
// as 1, flagged as a likely bug; the evident intent is two distinct values.
type MutationType int

const (
	MutationUserInteraction MutationType = 1
	MutationInternal        MutationType = 2
)

// Mutator accepts an Item, mutates a working copy of its content, and
// produces a new payload with dirty=true and a fresh dirtiedDate
// (spec.md §3 "ItemMutator").
type Mutator struct {
	item    Item
	working payload.Content
	mutType MutationType
}

// NewMutator starts a mutation of item. The working content is a deep
// clone of the item's current content; edits never touch the original
// payload.
func NewMutator(i Item, mutType MutationType) *Mutator {
	return &Mutator{item: i, working: i.Content().Clone(), mutType: mutType}
}

// Set assigns content[key] = value on the working copy.
func (m *Mutator) Set(key string, value any) *Mutator {
	if m.working == nil {
		m.working = payload.Content{}
	}
	m.working[key] = value
	return m
}

// SetDomainData assigns an application-domain sub-object under
// content.appData[domain] (spec.md §9 open question: the source performs
// `content.appData[domain] || data`, a no-op read with no assignment;
// evident intent is a real assignment, which this performs).
func (m *Mutator) SetDomainData(domain string, data map[string]any) *Mutator {
	if m.working == nil {
		m.working = payload.Content{}
	}
	appData, _ := m.working["appData"].(map[string]any)
	if appData == nil {
		appData = map[string]any{}
	}
	appData[domain] = data
	m.working["appData"] = appData
	return m
}

// AddReference appends a {uuid, content_type} reference entry if not
// already present.
func (m *Mutator) AddReference(uuid string, contentType payload.ContentType) *Mutator {
	if m.working == nil {
		m.working = payload.Content{}
	}
	refs, _ := m.working["references"].([]any)
	for _, r := range refs {
		if entry, ok := r.(map[string]any); ok && entry["uuid"] == uuid {
			return m
		}
	}
	refs = append(refs, map[string]any{"uuid": uuid, "content_type": string(contentType)})
	m.working["references"] = refs
	return m
}

// RemoveReference drops any reference entry matching uuid.
func (m *Mutator) RemoveReference(uuid string) *Mutator {
	refs, _ := m.working["references"].([]any)
	out := make([]any, 0, len(refs))
	for _, r := range refs {
		if entry, ok := r.(map[string]any); ok && entry["uuid"] == uuid {
			continue
		}
		out = append(out, r)
	}
	m.working["references"] = out
	return m
}

// Apply produces the resulting payload: dirty=true, dirtiedDate=now,
// content replaced by the working copy. Internal mutations still dirty
// the payload — MutationType only distinguishes intent for observers,
// it does not change sync eligibility.
func (m *Mutator) Apply(now time.Time) *payload.Payload {
	return m.item.Payload().WithContent(m.working).WithDirty(true, now)
}
