// SPDX-License-Identifier: Apache-2.0

package tui

import "github.com/halvard/notesync/internal/keys"

// NavigateTo is sent by any page model to instruct rootModel to switch
// the active page, optionally dispatching Payload to the new page right
// after the switch.
type NavigateTo struct {
	Page    string
	Payload any
}

// authResultMsg is produced by the async register/sign-in command.
type authResultMsg struct {
	err      error
	userUUID string
	rootKey  *keys.RootKey
	created  bool // true when this result came from a fresh registration
}

// syncResultMsg is produced by the async sync command.
type syncResultMsg struct {
	err error
}
