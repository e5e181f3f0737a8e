// SPDX-License-Identifier: Apache-2.0

// Package manager implements the Payload Manager and Item Manager
// (spec.md §4.2): the in-memory master collection, its observer graph,
// and the typed item layer built on top of it.
package manager

import (
	"sync"

	"github.com/halvard/notesync/internal/logger"
	"github.com/halvard/notesync/internal/payload"
)

// EmitResult is what observers receive after a call to EmitPayloads:
// the four buckets spec.md §4.2 names, plus the source that triggered
// the emission.
type EmitResult struct {
	Changed   []*payload.Payload
	Inserted  []*payload.Payload
	Discarded []*payload.Payload
	Ignored   []*payload.Payload
	Source    payload.Source
}

// Observer is notified once per EmitPayloads call, in registration order,
// on the same logical goroutine that called EmitPayloads (spec.md §5:
// "Observer callbacks fire in registration order, once per emit, on the
// same logical thread").
type Observer func(EmitResult)

// Unsubscribe detaches an observer previously returned by Subscribe.
type Unsubscribe func()

// PayloadManager owns the authoritative in-memory master collection
// (spec.md §4.2). All access is serialized by mu: emissions are applied
// atomically so no observer ever sees a partially-updated collection.
type PayloadManager struct {
	mu        sync.Mutex
	master    *payload.Collection
	observers map[int]Observer
	order     []int
	nextObsID int
	log       *logger.Logger
}

// New constructs an empty PayloadManager.
func New(log *logger.Logger) *PayloadManager {
	if log == nil {
		log = logger.Nop()
	}
	return &PayloadManager{master: payload.NewCollection(), observers: make(map[int]Observer), log: log}
}

// Subscribe registers an observer and returns a handle to remove it.
// Observers fire in registration order (spec.md §5).
func (pm *PayloadManager) Subscribe(obs Observer) Unsubscribe {
	pm.mu.Lock()
	id := pm.nextObsID
	pm.nextObsID++
	pm.observers[id] = obs
	pm.order = append(pm.order, id)
	pm.mu.Unlock()

	return func() {
		pm.mu.Lock()
		defer pm.mu.Unlock()
		delete(pm.observers, id)
	}
}

// Find returns the master copy of uuid, if present.
func (pm *PayloadManager) Find(uuid string) (*payload.Payload, bool) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.master.Find(uuid)
}

// Snapshot returns an immutable view of the master collection.
func (pm *PayloadManager) Snapshot() *payload.Immutable {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return payload.Freeze(pm.master)
}

// EmitPayloads inserts/overlays incoming payloads into the master
// collection and notifies observers (spec.md §4.2).
//
// Ignored-key rule: for content_type SN|ItemsKey, if the incoming payload
// has errorDecrypting=true and the current master copy decrypts
// successfully, the incoming payload is routed to Ignored and the master
// copy is preserved untouched — an undecryptable items-key arrival is
// always a key mismatch, never a legitimate update.
func (pm *PayloadManager) EmitPayloads(incoming []*payload.Payload, source payload.Source) EmitResult {
	pm.mu.Lock()

	result := EmitResult{Source: source}
	for _, p := range incoming {
		existing, found := pm.master.Find(p.UUID)

		if p.ContentType == payload.ContentTypeItemsKey && p.ErrorDecrypting &&
			found && existing.DecryptedOK {
			result.Ignored = append(result.Ignored, p)
			continue
		}

		if p.Deleted {
			if found {
				pm.master.Remove(p.UUID)
				result.Discarded = append(result.Discarded, p)
			}
			continue
		}

		pm.master.Put(p)
		if found {
			result.Changed = append(result.Changed, p)
		} else {
			result.Inserted = append(result.Inserted, p)
		}
	}

	observers := make([]Observer, 0, len(pm.order))
	for _, id := range pm.order {
		if obs, ok := pm.observers[id]; ok {
			observers = append(observers, obs)
		}
	}
	pm.mu.Unlock()

	for _, obs := range observers {
		obs(result)
	}
	return result
}
