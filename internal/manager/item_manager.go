// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/halvard/notesync/internal/events"
	"github.com/halvard/notesync/internal/item"
	"github.com/halvard/notesync/internal/logger"
	"github.com/halvard/notesync/internal/payload"
)

// ItemManager wraps a PayloadManager, constructing typed items and
// maintaining a reverse-reference index so itemsReferencingItem(uuid) is
// O(k) rather than a full collection scan (spec.md §4.2).
type ItemManager struct {
	mu  sync.Mutex
	pm  *PayloadManager
	ev  *events.Dispatcher
	log *logger.Logger

	// referencedBy[x] = set of uuids whose content.references includes x.
	referencedBy map[string]map[string]bool
}

// NewItemManager constructs an ItemManager over pm and subscribes to its emissions to
// keep the reverse-reference index current. dispatcher may be nil, in
// which case preference changes go unobserved.
func NewItemManager(pm *PayloadManager, dispatcher *events.Dispatcher, log *logger.Logger) *ItemManager {
	if log == nil {
		log = logger.Nop()
	}
	if dispatcher == nil {
		dispatcher = events.New()
	}
	im := &ItemManager{pm: pm, ev: dispatcher, log: log, referencedBy: make(map[string]map[string]bool)}
	pm.Subscribe(im.onEmit)
	im.rebuildIndexFromSnapshot()
	return im
}

func (im *ItemManager) rebuildIndexFromSnapshot() {
	snap := im.pm.Snapshot()
	im.mu.Lock()
	defer im.mu.Unlock()
	for _, p := range snap.All() {
		im.indexLocked(item.Wrap(p))
	}
}

func (im *ItemManager) onEmit(result EmitResult) {
	im.mu.Lock()
	defer im.mu.Unlock()
	for _, p := range result.Changed {
		im.indexLocked(item.Wrap(p))
	}
	for _, p := range result.Inserted {
		im.indexLocked(item.Wrap(p))
	}
	for _, p := range result.Discarded {
		im.deindexLocked(p.UUID)
	}
}

func (im *ItemManager) indexLocked(i item.Item) {
	im.deindexLocked(i.UUID())
	for _, ref := range i.References() {
		if im.referencedBy[ref] == nil {
			im.referencedBy[ref] = make(map[string]bool)
		}
		im.referencedBy[ref][i.UUID()] = true
	}
}

func (im *ItemManager) deindexLocked(uuid string) {
	for _, referrers := range im.referencedBy {
		delete(referrers, uuid)
	}
}

// Find returns the typed item for uuid, if present in the master
// collection; the item is returned whether or not its payload is decrypted.
func (im *ItemManager) Find(uuid string) (item.Item, bool) {
	p, ok := im.pm.Find(uuid)
	if !ok {
		return item.Item{}, false
	}
	return item.Wrap(p), true
}

// ItemsReferencingItem returns every item whose references array includes
// uuid, in O(k) where k is the number of referrers.
func (im *ItemManager) ItemsReferencingItem(uuid string) []item.Item {
	im.mu.Lock()
	referrers := im.referencedBy[uuid]
	ids := make([]string, 0, len(referrers))
	for id, present := range referrers {
		if present {
			ids = append(ids, id)
		}
	}
	im.mu.Unlock()

	out := make([]item.Item, 0, len(ids))
	for _, id := range ids {
		if i, ok := im.Find(id); ok {
			out = append(out, i)
		}
	}
	return out
}

// MutatorFunc receives the current item and the working mutator to apply
// edits to.
type MutatorFunc func(current item.Item, m *item.Mutator)

// ChangeItem builds an ItemMutator over uuid's current item, invokes fn,
// emits the resulting payload as SourceLocalChanged, and returns the new
// item (spec.md §4.2 "changeItem").
func (im *ItemManager) ChangeItem(uuid string, mutType item.MutationType, fn MutatorFunc) (item.Item, bool) {
	current, ok := im.Find(uuid)
	if !ok {
		return item.Item{}, false
	}

	m := item.NewMutator(current, mutType)
	fn(current, m)
	newPayload := m.Apply(time.Now())

	im.pm.EmitPayloads([]*payload.Payload{newPayload}, payload.SourceLocalChanged)
	return im.Find(uuid)
}

// preferencesItem returns the singleton SN|UserPreferences payload, if one
// has been emitted yet.
func (im *ItemManager) preferencesItem() (item.Item, bool) {
	for _, p := range im.pm.Snapshot().All() {
		if p.ContentType == payload.ContentTypePreference && !p.Deleted && p.DecryptedOK {
			return item.Wrap(p), true
		}
	}
	return item.Item{}, false
}

// GetPreference reads key from the singleton preferences item, returning
// def if no preferences item exists yet or key is unset (spec.md §8
// scenario 5: "a fresh install without register returns the default
// value").
func (im *ItemManager) GetPreference(key string, def any) any {
	prefs, ok := im.preferencesItem()
	if !ok {
		return def
	}
	if v, present := item.AsPreferences(prefs).Content()[key]; present {
		return v
	}
	return def
}

// SetPreference writes key into the singleton preferences item, creating
// it on first use, and emits a PreferencesChanged event.
func (im *ItemManager) SetPreference(key string, value any) {
	prefs, ok := im.preferencesItem()
	if !ok {
		now := time.Now()
		p := payload.New(payload.Params{
			UUID:        uuid.NewString(),
			ContentType: payload.ContentTypePreference,
			Content:     payload.Content{key: value},
			DecryptedOK: true,
			CreatedAt:   now,
			UpdatedAt:   now,
			Dirty:       true,
			DirtiedDate: now,
			Source:      payload.SourceLocalChanged,
		})
		im.pm.EmitPayloads([]*payload.Payload{p}, payload.SourceLocalChanged)
		im.ev.Emit(events.Event{Type: events.PreferencesChanged, Payload: map[string]any{"key": key}})
		return
	}

	im.ChangeItem(prefs.UUID(), item.MutationUserInteraction, func(_ item.Item, mut *item.Mutator) {
		mut.Set(key, value)
	})
	im.ev.Emit(events.Event{Type: events.PreferencesChanged, Payload: map[string]any{"key": key}})
}
