// SPDX-License-Identifier: Apache-2.0

package payload

import "sort"

// Collection is a set of Payloads indexed by uuid and by content type
// (spec.md §3). The mutable Collection is used for staging during a sync
// round; Immutable wraps a finished collection for return from delta
// processors (spec.md §4.4), preventing accidental further mutation.
type Collection struct {
	byUUID    map[string]*Payload
	byContent map[ContentType][]string
}

// NewCollection builds a Collection from an initial set of payloads. Later
// entries with a duplicate uuid overwrite earlier ones, mirroring
// emitPayloads' overlay semantics.
func NewCollection(payloads ...*Payload) *Collection {
	c := &Collection{
		byUUID:    make(map[string]*Payload, len(payloads)),
		byContent: make(map[ContentType][]string),
	}
	for _, p := range payloads {
		c.Put(p)
	}
	return c
}

// Put inserts or overwrites p by uuid, maintaining the content-type index.
func (c *Collection) Put(p *Payload) {
	if _, exists := c.byUUID[p.UUID]; !exists {
		c.byContent[p.ContentType] = append(c.byContent[p.ContentType], p.UUID)
	}
	c.byUUID[p.UUID] = p
}

// Remove deletes the payload with the given uuid, if present.
func (c *Collection) Remove(uuid string) {
	p, ok := c.byUUID[uuid]
	if !ok {
		return
	}
	delete(c.byUUID, uuid)
	ids := c.byContent[p.ContentType]
	for i, id := range ids {
		if id == uuid {
			c.byContent[p.ContentType] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// Find returns the payload with the given uuid, and whether it was found.
func (c *Collection) Find(uuid string) (*Payload, bool) {
	p, ok := c.byUUID[uuid]
	return p, ok
}

// All returns every payload in the collection, order unspecified.
func (c *Collection) All() []*Payload {
	out := make([]*Payload, 0, len(c.byUUID))
	for _, p := range c.byUUID {
		out = append(out, p)
	}
	return out
}

// AllSortedByUUID returns every payload ordered by uuid, for deterministic
// iteration in tests and logs.
func (c *Collection) AllSortedByUUID() []*Payload {
	out := c.All()
	sort.Slice(out, func(i, j int) bool { return out[i].UUID < out[j].UUID })
	return out
}

// OfType returns every payload with the given content type.
func (c *Collection) OfType(ct ContentType) []*Payload {
	ids := c.byContent[ct]
	out := make([]*Payload, 0, len(ids))
	for _, id := range ids {
		if p, ok := c.byUUID[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of payloads in the collection.
func (c *Collection) Len() int { return len(c.byUUID) }

// Dirty returns every payload with Dirty == true (spec.md §4.3 pre-flight
// step 1).
func (c *Collection) Dirty() []*Payload {
	var out []*Payload
	for _, p := range c.byUUID {
		if p.Dirty {
			out = append(out, p)
		}
	}
	return out
}

// NonDeleted returns every payload with Deleted == false, used by the
// integrity hash computation (spec.md §4.3, §8).
func (c *Collection) NonDeleted() []*Payload {
	var out []*Payload
	for _, p := range c.byUUID {
		if !p.Deleted {
			out = append(out, p)
		}
	}
	return out
}

// Clone returns a shallow copy of the collection (the *Payload pointers are
// shared, but the index maps are independent, so further Put/Remove calls
// on the clone do not affect the original).
func (c *Collection) Clone() *Collection {
	out := NewCollection()
	for _, p := range c.byUUID {
		out.Put(p)
	}
	return out
}

// Immutable is a read-only snapshot of a Collection, returned by delta
// processors (spec.md §4.4) so callers cannot accidentally mutate a result
// that is about to be emitted into the payload manager.
type Immutable struct {
	snapshot *Collection
}

// Freeze captures an immutable snapshot of c.
func Freeze(c *Collection) *Immutable {
	return &Immutable{snapshot: c.Clone()}
}

// Find returns the payload with the given uuid, and whether it was found.
func (i *Immutable) Find(uuid string) (*Payload, bool) { return i.snapshot.Find(uuid) }

// All returns every payload in the frozen collection.
func (i *Immutable) All() []*Payload { return i.snapshot.All() }

// Len returns the number of payloads in the frozen collection.
func (i *Immutable) Len() int { return i.snapshot.Len() }
