// SPDX-License-Identifier: Apache-2.0

package keys

import "time"

// ItemsKey is a per-user symmetric key, itself stored as a regular syncable
// item (content_type SN|ItemsKey) encrypted with the RootKey. spec.md §3:
// "Items keys are immutable in key material once created (v004)".
type ItemsKey struct {
	UUID      string
	KeyMaterial []byte // raw symmetric key used to wrap per-item keys
	Version     Version
	IsDefault   bool
	CreatedAt   time.Time
}

// Ring holds the items keys known to the current session and tracks which
// one is the default for new encryptions. spec.md invariant: "At most one
// items key is marked default at any time."
type Ring struct {
	byUUID map[string]*ItemsKey
}

// NewRing constructs an empty Ring.
func NewRing() *Ring {
	return &Ring{byUUID: make(map[string]*ItemsKey)}
}

// Add inserts or replaces k by uuid. If k.IsDefault is true, every other
// key in the ring has its IsDefault flag cleared, preserving the
// at-most-one-default invariant.
func (r *Ring) Add(k *ItemsKey) {
	cp := *k
	if cp.IsDefault {
		for _, other := range r.byUUID {
			if other.UUID != cp.UUID {
				other.IsDefault = false
			}
		}
	}
	r.byUUID[cp.UUID] = &cp
}

// Get returns the items key with the given uuid, and whether it exists.
func (r *Ring) Get(uuid string) (*ItemsKey, bool) {
	k, ok := r.byUUID[uuid]
	return k, ok
}

// Default returns the ring's default items key, or nil if none is set.
func (r *Ring) Default() *ItemsKey {
	for _, k := range r.byUUID {
		if k.IsDefault {
			return k
		}
	}
	return nil
}

// SetDefault marks uuid as the sole default key in the ring. Returns false
// if uuid is not present.
func (r *Ring) SetDefault(uuid string) bool {
	target, ok := r.byUUID[uuid]
	if !ok {
		return false
	}
	for id, k := range r.byUUID {
		k.IsDefault = id == uuid
	}
	target.IsDefault = true
	return true
}

// All returns every items key in the ring.
func (r *Ring) All() []*ItemsKey {
	out := make([]*ItemsKey, 0, len(r.byUUID))
	for _, k := range r.byUUID {
		out = append(out, k)
	}
	return out
}

// Newest returns the items key with the latest CreatedAt, or nil if the
// ring is empty. Used by key recovery (spec.md §4.5 step 5) to decide
// whether a recovered key is "newer than any locally-valid items key".
func (r *Ring) Newest() *ItemsKey {
	var newest *ItemsKey
	for _, k := range r.byUUID {
		if newest == nil || k.CreatedAt.After(newest.CreatedAt) {
			newest = k
		}
	}
	return newest
}
