// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/halvard/notesync/internal/config"
	"github.com/halvard/notesync/internal/delta"
	"github.com/halvard/notesync/internal/events"
	"github.com/halvard/notesync/internal/keys"
	"github.com/halvard/notesync/internal/logger"
	"github.com/halvard/notesync/internal/manager"
	"github.com/halvard/notesync/internal/payload"
	"github.com/halvard/notesync/internal/protocol"
	"github.com/halvard/notesync/internal/storage"
)

// Mode selects whether a sync round uploads local changes (Default) or
// only downloads, to discover existing items keys before creating new
// ones (Initial) — spec.md §4.3.
type Mode int

const (
	ModeDefault Mode = iota
	ModeInitial
)

// TimingStrategy governs what happens when Sync is called while a round
// is already in progress (spec.md §4.3 "Serialization").
type TimingStrategy int

const (
	// ResolveOnNext waits for the in-progress round (and any it chains
	// into) to finish, then returns its outcome.
	ResolveOnNext TimingStrategy = iota
	// ForceSpawnNew enqueues a brand new round to run once the current
	// one (and its chained rounds) finish.
	ForceSpawnNew
)

// Options configures one call to Sync.
type Options struct {
	Mode           Mode
	TimingStrategy TimingStrategy
	CheckIntegrity bool
}

// errAlreadySyncing is never returned to callers directly — Sync
// transparently serializes via resolveOnNext/forceSpawnNew — but is used
// internally to detect the already-in-progress condition.
var errAlreadySyncing = errors.New("syncengine: sync already in progress")

// Engine is spec.md §4.3's single queued sync state machine. One sync
// operation runs at a time; callers during an in-progress round are
// served by ResolveOnNext or ForceSpawnNew rather than racing the state
// machine directly.
type Engine struct {
	pm     *manager.PayloadManager
	proto  *protocol.Service
	remote RemoteClient
	store  *storage.Service
	ring   *keys.Ring
	cfg    config.Sync
	events *events.Dispatcher
	log    *logger.Logger

	mu                   sync.Mutex
	rootKey              *keys.RootKey
	inProgress           bool
	resolvers            []chan error
	spawnQueued          bool
	discordanceCount     int
	outOfSync            bool
	completedInitialSync bool
}

// New constructs an Engine. ring is supplied up front; the root key is
// set, and may be replaced later, via SetRootKey (e.g. after key recovery
// or a password change).
func New(
	pm *manager.PayloadManager,
	proto *protocol.Service,
	remote RemoteClient,
	store *storage.Service,
	ring *keys.Ring,
	cfg config.Sync,
	dispatcher *events.Dispatcher,
	log *logger.Logger,
) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	if dispatcher == nil {
		dispatcher = events.New()
	}
	if cfg.MaxDiscordance == 0 {
		cfg.MaxDiscordance = 5
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 150
	}
	return &Engine{pm: pm, proto: proto, remote: remote, store: store, ring: ring, cfg: cfg, events: dispatcher, log: log}
}

// SetRootKey replaces the root key used for legacy-direct decryption and
// v004 items-key unwrap/encrypt.
func (e *Engine) SetRootKey(rk *keys.RootKey) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rootKey = rk
}

// OutOfSync reports whether the engine last detected an integrity
// mismatch it could not resolve within cfg.MaxDiscordance rounds.
func (e *Engine) OutOfSync() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outOfSync
}

// Sync runs (or joins) a sync round per opts (spec.md §4.3). It blocks
// until the round this call is responsible for observing has completed.
func (e *Engine) Sync(ctx context.Context, opts Options) error {
	if err := e.beginOrQueue(opts); err != nil {
		if !errors.Is(err, errAlreadySyncing) {
			return err
		}
		return e.awaitQueuedOutcome(ctx, opts)
	}
	return e.runChain(ctx, opts)
}

// beginOrQueue implements the serialization policy of spec.md §4.3: if no
// round is in progress, this call becomes the owner. Otherwise it
// registers per opts.TimingStrategy and returns errAlreadySyncing so Sync
// knows to wait instead of running.
func (e *Engine) beginOrQueue(opts Options) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inProgress {
		e.inProgress = true
		return nil
	}
	if opts.TimingStrategy == ForceSpawnNew {
		e.spawnQueued = true
	}
	return errAlreadySyncing
}

func (e *Engine) awaitQueuedOutcome(ctx context.Context, opts Options) error {
	e.mu.Lock()
	ch := make(chan error, 1)
	e.resolvers = append(e.resolvers, ch)
	e.mu.Unlock()

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runChain runs one sync round and, per spec.md §4.3 "Post-sync",
// transparently chains further rounds: initial mode always chains into a
// default-mode round, and any round leaving dirty items behind chains
// another default round. When the chain finally goes idle, queued
// resolvers/spawns are drained.
func (e *Engine) runChain(ctx context.Context, opts Options) error {
	justRanInitial := opts.Mode == ModeInitial
	runErr := e.runRound(ctx, opts)

	next := opts
	next.Mode = ModeDefault
	for runErr == nil {
		e.mu.Lock()
		shouldSpawn := e.spawnQueued
		e.spawnQueued = false
		e.mu.Unlock()

		dirtyRemains := len(e.dirtySnapshot()) > 0

		if !justRanInitial && !dirtyRemains && !shouldSpawn {
			break
		}
		justRanInitial = false
		opts = next
		runErr = e.runRound(ctx, opts)
	}

	e.mu.Lock()
	e.inProgress = false
	resolvers := e.resolvers
	e.resolvers = nil
	e.mu.Unlock()

	for _, ch := range resolvers {
		ch <- runErr
	}
	return runErr
}

// CompletedInitialSync reports whether an initial-mode round has ever
// finished (spec.md §4.3 "Post-sync").
func (e *Engine) CompletedInitialSync() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.completedInitialSync
}

func (e *Engine) dirtySnapshot() []*payload.Payload {
	return dirtyOf(e.pm.Snapshot().All())
}

func dirtyOf(all []*payload.Payload) []*payload.Payload {
	var out []*payload.Payload
	for _, p := range all {
		if p.Dirty {
			out = append(out, p)
		}
	}
	return out
}

func nonDeletedOf(all []*payload.Payload) []*payload.Payload {
	var out []*payload.Payload
	for _, p := range all {
		if !p.Deleted {
			out = append(out, p)
		}
	}
	return out
}

// runRound executes exactly one request/response cycle, looping
// internally while the server keeps returning a cursor token (spec.md
// §4.3 "If paginationToken present -> immediately loop another sync
// round").
func (e *Engine) runRound(ctx context.Context, opts Options) error {
	e.log.Debug().Int("mode", int(opts.Mode)).Bool("check_integrity", opts.CheckIntegrity).Msg("starting sync round")
	e.events.EmitSimple(events.WillSync)

	toUpload, neverSyncedDeleted, err := e.preflight(ctx, opts)
	if err != nil {
		e.events.Emit(events.Event{Type: events.FailedSync, Payload: map[string]any{"error": err.Error()}})
		return err
	}

	syncToken, paginationToken, err := e.store.GetSyncTokens(ctx)
	if err != nil {
		e.events.Emit(events.Event{Type: events.LocalDatabaseReadError, Payload: map[string]any{"error": err.Error()}})
		return err
	}

	for {
		req := SyncRequest{
			SyncToken:        syncToken,
			CursorToken:      paginationToken,
			Limit:            e.cfg.PageSize,
			ComputeIntegrity: opts.CheckIntegrity,
		}
		if opts.Mode == ModeDefault {
			for _, p := range toUpload {
				req.Items = append(req.Items, toWireItem(p))
			}
		}

		resp, err := e.remote.Sync(ctx, req)
		if err != nil {
			e.events.Emit(events.Event{Type: events.FailedSync, Payload: map[string]any{"error": err.Error()}})
			return fmt.Errorf("syncengine: sync request: %w", err)
		}

		if err := e.handleResponse(ctx, resp); err != nil {
			return err
		}

		syncToken, paginationToken = resp.SyncToken, resp.CursorToken
		if err := e.store.SetSyncToken(ctx, syncToken); err != nil {
			return fmt.Errorf("syncengine: persist sync token: %w", err)
		}
		if err := e.store.SetPaginationToken(ctx, paginationToken); err != nil {
			return fmt.Errorf("syncengine: persist pagination token: %w", err)
		}

		toUpload = nil // uploaded payloads are only sent once per round
		if paginationToken == "" {
			break
		}
	}

	if err := e.forgetNeverSyncedDeleted(ctx, neverSyncedDeleted); err != nil {
		return err
	}

	e.mu.Lock()
	if opts.Mode == ModeInitial {
		e.completedInitialSync = true
	}
	e.mu.Unlock()

	if opts.CheckIntegrity {
		e.events.EmitSimple(events.CompletedFullSync)
	} else {
		e.events.EmitSimple(events.CompletedIncrementalSync)
	}
	return nil
}

// preflight implements spec.md §4.3 pre-flight steps 1-4: collect dirty
// items, split off never-synced tombstones, persist dirty payloads ahead
// of network I/O, then encrypt what remains for upload.
func (e *Engine) preflight(ctx context.Context, opts Options) (toUpload []*payload.Payload, neverSyncedDeleted []*payload.Payload, err error) {
	dirty := dirtyOf(e.pm.Snapshot().All())

	var toPersist []*payload.Payload
	for _, p := range dirty {
		if p.Deleted && p.NeverSynced() {
			neverSyncedDeleted = append(neverSyncedDeleted, p)
			continue
		}
		toPersist = append(toPersist, p)
	}

	if err := e.store.SavePayloads(ctx, toPersist); err != nil {
		e.events.Emit(events.Event{Type: events.LocalDatabaseWriteError, Payload: map[string]any{"error": err.Error()}})
		return nil, nil, fmt.Errorf("syncengine: pre-sync persistence: %w", err)
	}

	if opts.Mode == ModeInitial {
		return nil, neverSyncedDeleted, nil
	}

	e.mu.Lock()
	rootKey := e.rootKey
	e.mu.Unlock()

	defaultKey := e.ring.Default()
	for _, p := range toPersist {
		encrypted, err := e.proto.EncryptPayload(p, rootKey, defaultKey)
		if err != nil {
			return nil, nil, fmt.Errorf("syncengine: encrypt payload %s: %w", p.UUID, err)
		}
		toUpload = append(toUpload, encrypted)
	}
	return toUpload, neverSyncedDeleted, nil
}

// forgetNeverSyncedDeleted clears from local storage items that were
// deleted before ever completing a round trip (spec.md §4.3 pre-flight
// step 2: "never uploaded, cleared locally after the sync").
func (e *Engine) forgetNeverSyncedDeleted(ctx context.Context, items []*payload.Payload) error {
	for _, p := range items {
		if err := e.store.RemovePayload(ctx, p.UUID); err != nil {
			return fmt.Errorf("syncengine: clear never-synced tombstone %s: %w", p.UUID, err)
		}
	}
	return nil
}

// handleResponse implements spec.md §4.3 "Response handling": decrypt
// retrieved/saved/conflict payloads, resolve deltas per source, merge
// metadata-only variants against master content, emit, and check
// integrity.
func (e *Engine) handleResponse(ctx context.Context, resp SyncResponse) error {
	e.mu.Lock()
	rootKey := e.rootKey
	e.mu.Unlock()

	now := time.Now()
	base := e.pm.Snapshot()
	masterCollection := payload.NewCollection(base.All()...)

	if err := e.reconcileAndEmit(masterCollection, resp.RetrievedItems, payload.SourceRemoteRetrieved, rootKey, now, false); err != nil {
		return err
	}
	if err := e.reconcileAndEmit(masterCollection, resp.SavedItems, payload.SourceRemoteSaved, rootKey, now, true); err != nil {
		return err
	}

	var conflictItems []WireItem
	for _, c := range resp.Conflicts {
		switch {
		case c.ServerItem != nil:
			conflictItems = append(conflictItems, *c.ServerItem)
		case c.UnsavedItem != nil:
			conflictItems = append(conflictItems, *c.UnsavedItem)
		}
	}
	if err := e.reconcileAndEmit(masterCollection, conflictItems, payload.SourceConflict, rootKey, now, false); err != nil {
		return err
	}

	if resp.IntegrityHash != "" {
		e.checkIntegrity(ctx, resp.IntegrityHash)
	}
	return nil
}

// reconcileAndEmit decrypts wire items, merges metadata-only variants
// against the current master content when mergeMetadataOnly is true
// (spec.md §4.3: "RemoteSaved carries only metadata"), runs the general
// conflict delta, and emits only the payloads this call actually touched
// into the payload manager — singleton enforcement and conflict-duplicate
// creation can both mutate entries beyond the incoming uuids, so "touched"
// is determined by identity against the pre-delta master, not by the
// incoming uuid list.
func (e *Engine) reconcileAndEmit(master *payload.Collection, items []WireItem, source payload.Source, rootKey *keys.RootKey, now time.Time, mergeMetadataOnly bool) error {
	if len(items) == 0 {
		return nil
	}

	before := make(map[string]*payload.Payload, master.Len())
	for _, p := range master.All() {
		before[p.UUID] = p
	}

	var incoming []*payload.Payload
	for _, wi := range items {
		p := fromWireItem(wi)
		if p.Deleted {
			incoming = append(incoming, p.WithSource(source))
			continue
		}

		decrypted := e.proto.DecryptPayload(p, rootKey, e.ring)
		if mergeMetadataOnly {
			if existing, found := master.Find(decrypted.UUID); found && decrypted.DecryptedOK && existing.DecryptedOK {
				decrypted = decrypted.WithContent(existing.Content)
			}
		}
		incoming = append(incoming, decrypted.WithSource(source))
	}

	reconciled := delta.Resolve(master, incoming, now)

	var touched []*payload.Payload
	for _, p := range reconciled.All() {
		if prior, ok := before[p.UUID]; !ok || prior != p {
			touched = append(touched, p)
		}
		master.Put(p)
	}

	result := e.pm.EmitPayloads(touched, source)
	if total := len(result.Changed) + len(result.Inserted) + len(result.Discarded); total >= events.MajorDataChangeThreshold {
		e.events.Emit(events.Event{Type: events.MajorDataChange, Payload: map[string]any{"count": total}})
	}
	return nil
}

// checkIntegrity implements spec.md §4.3's integrity check: compute the
// local hash and compare against the server's; on mismatch more than
// cfg.MaxDiscordance consecutive times, enter out-of-sync.
func (e *Engine) checkIntegrity(ctx context.Context, serverHash string) {
	localHash := computeIntegrityHash(nonDeletedOf(e.pm.Snapshot().All()))

	e.mu.Lock()
	defer e.mu.Unlock()
	if localHash == serverHash {
		e.discordanceCount = 0
		if e.outOfSync {
			e.outOfSync = false
			e.events.EmitSimple(events.ExitedOutOfSync)
		}
		return
	}

	e.discordanceCount++
	e.log.Warn().Int("discordance_count", e.discordanceCount).Msg("integrity hash mismatch")
	if e.discordanceCount > e.cfg.MaxDiscordance && !e.outOfSync {
		e.outOfSync = true
		e.events.EmitSimple(events.EnteredOutOfSync)
	}
}

// ResolveOutOfSync implements spec.md §4.3 "Out-of-sync recovery":
// download all items server-side, run DeltaOutOfSync (the same general
// conflict delta, since the source holds no local-vs-remote distinction
// once everything is being re-downloaded), then request an
// integrity-checked sync.
func (e *Engine) ResolveOutOfSync(ctx context.Context) error {
	resp, err := e.remote.Sync(ctx, SyncRequest{ComputeIntegrity: true})
	if err != nil {
		return fmt.Errorf("syncengine: out-of-sync full download: %w", err)
	}
	if err := e.handleResponse(ctx, resp); err != nil {
		return err
	}
	return e.Sync(ctx, Options{Mode: ModeDefault, CheckIntegrity: true})
}
