// SPDX-License-Identifier: Apache-2.0

// Command notesync-server runs the reference sync server implementing
// spec.md §6's wire contract, used for local development and the demo
// CLI's bundled backend (grounded on go-pass-keeper's cmd/server/main.go).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/halvard/notesync/internal/logger"
	"github.com/halvard/notesync/internal/serverref"
)

var (
	buildVersion string
	buildCommit  string
)

// envConfig is this command's own small configuration surface — the
// reference server isn't part of internal/config's client-facing
// StructuredConfig, so it reads its own env block the same way
// (caarlos0/env) rather than growing the client config with server-only
// fields.
type envConfig struct {
	Address        string        `env:"NOTESYNC_SERVER_ADDRESS" envDefault:":8080"`
	RequestTimeout time.Duration `env:"NOTESYNC_SERVER_TIMEOUT" envDefault:"15s"`
	TokenSignKey   string        `env:"NOTESYNC_SERVER_TOKEN_KEY" envDefault:"dev-only-signing-key"`
	PostgresDSN    string        `env:"NOTESYNC_SERVER_POSTGRES_DSN"`
}

func main() {
	printBuildInfo()

	log := logger.New("serverref")

	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatal().Err(err).Msg("error parsing server config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store serverref.Store
	if cfg.PostgresDSN != "" {
		pg, err := serverref.OpenPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("error opening postgres store")
		}
		store = pg
		log.Info().Msg("using postgres-backed store")
	} else {
		store = serverref.NewMemoryStore()
		log.Info().Msg("using in-memory store (set NOTESYNC_SERVER_POSTGRES_DSN for durable storage)")
	}

	handler := serverref.NewHandler(store, serverref.Config{TokenSignKey: cfg.TokenSignKey}, log)
	srv := serverref.NewServer(handler, serverref.ServerConfig{Address: cfg.Address, RequestTimeout: cfg.RequestTimeout})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Err(err).Msg("server shutdown error")
		}
	}()

	log.Info().Str("address", cfg.Address).Msg("starting notesync reference server")
	if err := srv.Run(); err != nil {
		log.Fatal().Err(err).Msg("server run error")
	}
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
