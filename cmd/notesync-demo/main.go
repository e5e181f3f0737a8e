// SPDX-License-Identifier: Apache-2.0

// Command notesync-demo is a small interactive client exercising the
// library end to end: register/sign in, create and delete notes, and
// trigger a manual sync against a notesync-server instance — grounded
// on go-pass-keeper's cmd/client/main.go.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/halvard/notesync/internal/config"
	"github.com/halvard/notesync/internal/events"
	"github.com/halvard/notesync/internal/keys"
	"github.com/halvard/notesync/internal/logger"
	"github.com/halvard/notesync/internal/manager"
	"github.com/halvard/notesync/internal/payload"
	"github.com/halvard/notesync/internal/protocol"
	"github.com/halvard/notesync/internal/session"
	"github.com/halvard/notesync/internal/storage"
	"github.com/halvard/notesync/internal/storage/sqlitedevice"
	"github.com/halvard/notesync/internal/syncengine"
	"github.com/halvard/notesync/internal/transport"
	"github.com/halvard/notesync/internal/tui"
)

const wireTimeLayout = "2006-01-02T15:04:05.000000Z"

var (
	buildVersion string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.New("demo")

	cfg, err := config.GetStructuredConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := sqlitedevice.Connect(ctx, cfg.Storage.DSN, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storage error: %v\n", err)
		os.Exit(1)
	}
	device := sqlitedevice.New(db, log)
	store := storage.New(device, "notesync-demo", log)

	dispatcher := events.New()
	dispatcher.Subscribe(func(ev events.Event) {
		log.Info().Str("event", string(ev.Type)).Msg("lifecycle event")
	})

	pm := manager.New(log)
	items := manager.NewItemManager(pm, dispatcher, log)
	proto := protocol.NewService(log)
	ring := keys.NewRing()

	remote := transport.New(transport.Config{BaseURL: cfg.Transport.ServerAddress, Timeout: cfg.Transport.RequestTimeout})

	sessionSvc := session.NewService(remote, proto, dispatcher, log)
	engine := syncengine.New(pm, proto, remote, store, ring, cfg.Sync, dispatcher, log)

	if err := loadLocalPayloads(ctx, store, pm); err != nil {
		log.Warn().Err(err).Msg("failed to load local payloads, starting empty")
	}

	app := tui.New(&tui.Services{
		Session:  sessionSvc,
		Engine:   engine,
		Items:    items,
		Payloads: pm,
		Ring:     ring,
		Store:    store,
		Events:   dispatcher,
		Log:      log,
	})

	if err := app.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "demo exited with error: %v\n", err)
		os.Exit(1)
	}
}

// loadLocalPayloads restores whatever the bulk table already holds from
// a previous run. Payloads stay in ciphertext form (DecryptedOK false);
// neither the sync engine nor the item manager decrypts them later — the
// sync engine decrypts only the items a sync response carries.
func loadLocalPayloads(ctx context.Context, store *storage.Service, pm *manager.PayloadManager) error {
	records, err := store.LoadAllPayloads(ctx)
	if err != nil {
		return err
	}

	payloads := make([]*payload.Payload, 0, len(records))
	for _, rec := range records {
		payloads = append(payloads, payload.New(payload.Params{
			UUID:        rec.UUID,
			ContentType: payload.ContentType(rec.ContentType),
			CipherText:  rec.CipherText,
			EncItemKey:  rec.EncItemKey,
			ItemsKeyID:  rec.ItemsKeyID,
			CreatedAt:   parseWireTime(rec.CreatedAt),
			UpdatedAt:   parseWireTime(rec.UpdatedAt),
			Deleted:     rec.Deleted,
			Source:      payload.SourceLocalSaved,
		}))
	}
	pm.EmitPayloads(payloads, payload.SourceLocalSaved)
	return nil
}

func parseWireTime(s string) time.Time {
	t, _ := time.Parse(wireTimeLayout, s)
	return t
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}
	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
