// SPDX-License-Identifier: Apache-2.0

// Package item implements typed, read-only views over payloads (spec.md
// §3 "Item") and the mutators that turn edits into new dirty payloads.
package item

import (
	"time"

	"github.com/halvard/notesync/internal/payload"
)

// Item is a typed read-only view over a payload. Concrete domain types
// (Note, Tag, ItemsKeyItem, Privileges, Component) embed Item and add
// domain-specific getters over the same underlying payload's Content.
type Item struct {
	p *payload.Payload
}

// Wrap constructs an Item view over p. p must be decrypted
// (p.DecryptedOK) for content getters to return meaningful values; a
// still-encrypted or errored payload wraps fine but Content() is empty.
func Wrap(p *payload.Payload) Item {
	return Item{p: p}
}

func (i Item) Payload() *payload.Payload { return i.p }
func (i Item) UUID() string              { return i.p.UUID }
func (i Item) ContentType() payload.ContentType { return i.p.ContentType }
func (i Item) Content() payload.Content  { return i.p.Content }
func (i Item) Dirty() bool               { return i.p.Dirty }
func (i Item) Deleted() bool             { return i.p.Deleted }
func (i Item) ErrorDecrypting() bool     { return i.p.ErrorDecrypting }
func (i Item) WaitingForKey() bool       { return i.p.WaitingForKey }
func (i Item) CreatedAt() time.Time      { return i.p.CreatedAt }
func (i Item) UpdatedAt() time.Time      { return i.p.UpdatedAt }
func (i Item) ConflictOf() string        { return i.p.ConflictOf }

// Descriptor carries the per-content-type behavior the conflict resolver
// and singleton enforcer need (spec.md §4.4). Types not registered here
// default to the zero Descriptor: not a singleton, no reference merging.
type Descriptor struct {
	IsSingleton        bool
	SingletonPredicate func(content payload.Content) bool
	MergeRefs          bool
}

var descriptors = map[payload.ContentType]Descriptor{}

// RegisterDescriptor installs or replaces the Descriptor for ct. Called
// from each domain type's package init (see note.go, tag.go, ...).
func RegisterDescriptor(ct payload.ContentType, d Descriptor) {
	descriptors[ct] = d
}

// DescriptorFor returns the registered Descriptor for ct, or the zero
// value if none was registered.
func DescriptorFor(ct payload.ContentType) Descriptor {
	return descriptors[ct]
}

// References reads the conventional "references" array from content,
// used both by KeepLeftMergeRefs and by the Item Manager's reverse-
// reference index (internal/manager).
func (i Item) References() []string {
	return referencesOf(i.p.Content)
}

func referencesOf(c payload.Content) []string {
	raw, ok := c["references"]
	if !ok {
		return nil
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		ref, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if uuid, ok := ref["uuid"].(string); ok {
			out = append(out, uuid)
		}
	}
	return out
}
