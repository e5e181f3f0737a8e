// SPDX-License-Identifier: Apache-2.0

// Package migration implements spec.md §4.6's Migration Service: ordered,
// stage-gated migrations keyed on a stored semver version.
package migration

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/halvard/notesync/internal/events"
	"github.com/halvard/notesync/internal/logger"
	"github.com/halvard/notesync/internal/storage"
)

// Stage is a lifecycle stage the host forwards to every active migration
// (spec.md §4.6 step 4).
type Stage string

const (
	PreparingForLaunch Stage = "PreparingForLaunch"
	LoadedDatabase     Stage = "LoadedDatabase"
	StorageDecrypted   Stage = "StorageDecrypted"
	Launched           Stage = "Launched"
	SignedIn           Stage = "SignedIn"
)

// stageOrder is the fixed lifecycle sequence the host forwards stages in
// (spec.md §4.6 step 4). It lets a migration registered at more than one
// stage know which of its own handlers is the last to run.
var stageOrder = []Stage{PreparingForLaunch, LoadedDatabase, StorageDecrypted, Launched, SignedIn}

// StageHandler runs one migration's logic for a given lifecycle stage.
// Returning nil means the stage ran with nothing to do for this migration.
type StageHandler func(ctx context.Context) error

// Migration bundles a semver version with per-stage handlers, matching
// spec.md §4.6's "classes with a static version() and per-stage handlers
// registered during construction".
type Migration struct {
	name     string
	version  *semver.Version
	handlers map[Stage]StageHandler
	done     StageHandler
	// doneStage is the one stage, among finalStage()'s own registered
	// handlers, after which done may run. Multi-stage migrations (spec.md
	// §4.6: "per-stage handlers registered during construction", plural)
	// must not be marked complete after their first handler succeeds.
	doneStage Stage
}

// finalStage returns the latest stage (per stageOrder) m has a handler
// registered for.
func (m *Migration) finalStage() Stage {
	var last Stage
	for _, stage := range stageOrder {
		if _, ok := m.handlers[stage]; ok {
			last = stage
		}
	}
	return last
}

// New constructs a Migration for version (a semver string, e.g. "2.3.0").
// It panics on an unparseable version since migration versions are
// compiled-in constants, not user input.
func New(name, version string) *Migration {
	v, err := semver.NewVersion(version)
	if err != nil {
		panic(fmt.Sprintf("migration: invalid version %q for %s: %v", version, name, err))
	}
	return &Migration{name: name, version: v, handlers: make(map[Stage]StageHandler)}
}

// OnStage registers handler to run when stage fires. Returns m for
// fluent construction.
func (m *Migration) OnStage(stage Stage, handler StageHandler) *Migration {
	m.handlers[stage] = handler
	return m
}

// Name reports the migration's identifier, for logging.
func (m *Migration) Name() string { return m.name }

// Version reports the migration's semver version.
func (m *Migration) Version() string { return m.version.String() }

// BaseMigration runs ahead of every versioned migration (spec.md §4.6
// step 1: "repair keychain / bootstrap version marker for legacy
// clients"). PreRun is invoked unconditionally on every startup,
// regardless of stored version.
type BaseMigration struct {
	// PreRun repairs local state that predates the Migration Service
	// itself — e.g. a legacy client with no snjs_version key at all.
	PreRun func(ctx context.Context, store *storage.Service) error
}

// DefaultBaseMigration returns the standard base migration: if no
// snjs_version is stored yet, it seeds one at "0.0.0" so version
// comparisons below have a floor to compare against, matching how a
// legacy client with payloads but no migration bookkeeping is treated
// as maximally behind.
func DefaultBaseMigration() *BaseMigration {
	return &BaseMigration{
		PreRun: func(ctx context.Context, store *storage.Service) error {
			_, found, err := store.GetSNJSVersion(ctx)
			if err != nil {
				return fmt.Errorf("read stored version: %w", err)
			}
			if found {
				return nil
			}
			return store.SetSNJSVersion(ctx, "0.0.0")
		},
	}
}

// Service orchestrates migrations against a stored version (spec.md §4.6).
type Service struct {
	store      *storage.Service
	base       *BaseMigration
	registered []*Migration
	events     *events.Dispatcher
	log        *logger.Logger

	mu      sync.Mutex
	pending []*Migration
	stored  *semver.Version
}

// NewService constructs a Service with the given compiled-in migrations,
// in any order; Run sorts them by version.
func NewService(store *storage.Service, base *BaseMigration, migrations []*Migration, dispatcher *events.Dispatcher, log *logger.Logger) *Service {
	if base == nil {
		base = DefaultBaseMigration()
	}
	if log == nil {
		log = logger.Nop()
	}
	if dispatcher == nil {
		dispatcher = events.New()
	}
	return &Service{store: store, base: base, registered: migrations, events: dispatcher, log: log}
}

// Run implements spec.md §4.6 steps 1-3: runs the base migration's
// preRun, compares the stored version against every registered
// migration, and keeps those with version > stored as pending, sorted
// ascending so Stage forwards them in order.
func (s *Service) Run(ctx context.Context) error {
	if s.base != nil && s.base.PreRun != nil {
		if err := s.base.PreRun(ctx, s.store); err != nil {
			return fmt.Errorf("migration: base preRun: %w", err)
		}
	}

	storedStr, found, err := s.store.GetSNJSVersion(ctx)
	if err != nil {
		return fmt.Errorf("migration: read stored version: %w", err)
	}
	stored, err := semver.NewVersion("0.0.0")
	if err != nil {
		return err
	}
	if found {
		parsed, err := semver.NewVersion(storedStr)
		if err != nil {
			return fmt.Errorf("migration: parse stored version %q: %w", storedStr, err)
		}
		stored = parsed
	}

	var pending []*Migration
	for _, m := range s.registered {
		if m.version.GreaterThan(stored) {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].version.LessThan(pending[j].version) })

	for _, m := range pending {
		m.doneStage = m.finalStage()
	}
	if len(pending) > 0 {
		final := pending[len(pending)-1]
		finalVersion := final.Version()
		final.done = func(ctx context.Context) error {
			return s.store.SetSNJSVersion(ctx, finalVersion)
		}
	}

	s.mu.Lock()
	s.pending = pending
	s.stored = stored
	s.mu.Unlock()

	s.log.Info().Int("pending", len(pending)).Str("stored_version", stored.String()).Msg("migrations registered")
	s.events.Emit(events.Event{Type: events.MigrationsLoaded, Payload: map[string]any{"pending": len(pending)}})
	return nil
}

// Stage implements spec.md §4.6 step 4: forwards stage to every pending
// migration's handler for it (if registered), then drops a migration
// from pending once its own last registered stage handler (its
// doneStage, computed in Run) has completed without error. Only the
// highest-version pending migration also carries a done callback, which
// persists the stored version once it reaches its own doneStage — a
// migration with handlers at more than one stage must not be marked
// complete, nor have the version persisted, after its first handler
// succeeds, only after its last one does.
func (s *Service) Stage(ctx context.Context, stage Stage) error {
	s.mu.Lock()
	pending := append([]*Migration(nil), s.pending...)
	s.mu.Unlock()

	var remaining []*Migration
	for _, m := range pending {
		handler, ok := m.handlers[stage]
		if !ok {
			remaining = append(remaining, m)
			continue
		}
		if err := handler(ctx); err != nil {
			remaining = append(remaining, m)
			return fmt.Errorf("migration: %s failed at stage %s: %w", m.name, stage, err)
		}
		if stage != m.doneStage {
			remaining = append(remaining, m)
			continue
		}
		if m.done != nil {
			if err := m.done(ctx); err != nil {
				return fmt.Errorf("migration: %s done callback: %w", m.name, err)
			}
		}
		s.log.Info().Str("migration", m.name).Str("version", m.Version()).Msg("migration completed")
	}

	s.mu.Lock()
	s.pending = remaining
	s.mu.Unlock()

	return nil
}

// HasPendingMigrations implements spec.md §4.6: "returns true iff
// required migrations remain OR the keychain needs repair."
// keychainNeedsRepair is supplied by the caller, since keychain health is
// outside this package's storage.Service abstraction (spec.md §8 treats
// keychain repair as a host-owned concern).
func (s *Service) HasPendingMigrations(keychainNeedsRepair bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) > 0 || keychainNeedsRepair
}
