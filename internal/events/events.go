// SPDX-License-Identifier: Apache-2.0

// Package events defines the lifecycle events of spec.md §6 and the
// dispatcher that fans them out to subscribers. It is the one place
// internal errors are turned into observable signals (spec.md §7: "no
// exception may cross the sync boundary; all errors must be captured and
// surfaced as events").
package events

import "sync"

// Type enumerates the lifecycle events of spec.md §6, plus
// ProtocolOutdated (spec.md §4.1's "outdated protocol" warning, supplemented
// here as a first-class event so callers don't have to inspect version
// strings themselves).
type Type string

const (
	Started                  Type = "Started"
	Launched                 Type = "Launched"
	LocalDataLoaded          Type = "LocalDataLoaded"
	KeyStatusChanged         Type = "KeyStatusChanged"
	CompletedFullSync        Type = "CompletedFullSync"
	CompletedIncrementalSync Type = "CompletedIncrementalSync"
	FailedSync               Type = "FailedSync"
	EnteredOutOfSync         Type = "EnteredOutOfSync"
	ExitedOutOfSync          Type = "ExitedOutOfSync"
	SignedIn                 Type = "SignedIn"
	SignedOut                Type = "SignedOut"
	MajorDataChange          Type = "MajorDataChange"
	WillSync                 Type = "WillSync"
	InvalidSyncSession       Type = "InvalidSyncSession"
	LocalDatabaseReadError   Type = "LocalDatabaseReadError"
	LocalDatabaseWriteError  Type = "LocalDatabaseWriteError"
	MigrationsLoaded         Type = "MigrationsLoaded"
	StorageReady             Type = "StorageReady"
	PreferencesChanged       Type = "PreferencesChanged"
	UserRolesChanged         Type = "UserRolesChanged"

	// ProtocolOutdated is supplemented beyond spec.md's named event list
	// (§4.1: v001/v002 sign-in "surface an outdated protocol warning").
	ProtocolOutdated Type = "ProtocolOutdated"
)

// MajorDataChangeThreshold is the item count spec.md §6 names: "fires
// whenever a sync round touches >= 15 items".
const MajorDataChangeThreshold = 15

// Event is one emitted occurrence. Payload carries event-specific data
// (e.g. the detected version string for ProtocolOutdated, the error for
// FailedSync) as a loosely-typed map so the dispatcher stays generic
// across every event kind spec.md names.
type Event struct {
	Type    Type
	Payload map[string]any
}

// Handler receives emitted events, in subscription order.
type Handler func(Event)

// Unsubscribe detaches a handler previously returned by Dispatcher.Subscribe.
type Unsubscribe func()

// Dispatcher fans out events to subscribed handlers. It is the single
// seam every component (sync engine, recovery, migration, session) emits
// through; nothing constructs an Event and hands it anywhere else.
type Dispatcher struct {
	mu        sync.Mutex
	handlers  map[int]Handler
	order     []int
	nextObsID int
}

// New constructs an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{handlers: make(map[int]Handler)}
}

// Subscribe registers h and returns a handle to remove it. Handlers fire
// in registration order (spec.md §5).
func (d *Dispatcher) Subscribe(h Handler) Unsubscribe {
	d.mu.Lock()
	id := d.nextObsID
	d.nextObsID++
	d.handlers[id] = h
	d.order = append(d.order, id)
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.handlers, id)
	}
}

// Emit dispatches ev to every subscribed handler, synchronously, in
// registration order.
func (d *Dispatcher) Emit(ev Event) {
	d.mu.Lock()
	handlers := make([]Handler, 0, len(d.order))
	for _, id := range d.order {
		if h, ok := d.handlers[id]; ok {
			handlers = append(handlers, h)
		}
	}
	d.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

// EmitSimple is a convenience wrapper for events with no payload.
func (d *Dispatcher) EmitSimple(t Type) {
	d.Emit(Event{Type: t})
}
