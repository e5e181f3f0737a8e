// SPDX-License-Identifier: Apache-2.0

// Package tui implements the terminal interface of the reference demo
// client: a login/registration screen followed by a note list that
// exercises item mutation and manual sync against internal/syncengine.
//
// The package is built on Bubble Tea (github.com/charmbracelet/bubbletea)
// and follows the Elm architecture: each screen is a model with Init,
// Update, and View, and navigation runs through a NavigateTo message
// intercepted by the root model.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/halvard/notesync/internal/events"
	"github.com/halvard/notesync/internal/keys"
	"github.com/halvard/notesync/internal/logger"
	"github.com/halvard/notesync/internal/manager"
	"github.com/halvard/notesync/internal/session"
	"github.com/halvard/notesync/internal/storage"
	"github.com/halvard/notesync/internal/syncengine"
)

// Services bundles the library collaborators the TUI drives. Built by
// cmd/notesync-demo and handed to New.
type Services struct {
	Session  *session.Service
	Engine   *syncengine.Engine
	Items    *manager.ItemManager
	Payloads *manager.PayloadManager
	Ring     *keys.Ring
	Store    *storage.Service
	Events   *events.Dispatcher
	Log      *logger.Logger
}

// TUI is the package's facade, analogous to go-pass-keeper's TUI type but
// collapsed to a single Run instead of a separate LoginFlow/MainLoop pair
// since this demo has no standalone build-info overlay or logout-restart
// lifecycle worth modeling as distinct stages.
type TUI struct {
	svc *Services
}

func New(svc *Services) *TUI {
	return &TUI{svc: svc}
}

// Run launches the full-screen program and blocks until the user quits.
func (t *TUI) Run(ctx context.Context) error {
	pages := map[string]tea.Model{
		"auth":  newAuthModel(ctx, t.svc),
		"notes": newNotesModel(ctx, t.svc),
	}
	root := newRootModel(pages, "auth")
	_, err := tea.NewProgram(root, tea.WithAltScreen()).Run()
	return err
}
