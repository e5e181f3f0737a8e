// SPDX-License-Identifier: Apache-2.0

package item

import "github.com/halvard/notesync/internal/payload"

// Privileges is a typed view over the singleton content_type
// "SN|Privileges" payload gating protected actions (e.g. deleting a
// note) behind a re-entered password.
type Privileges struct{ Item }

func AsPrivileges(i Item) Privileges { return Privileges{i} }

func (p Privileges) Enabled(action string) bool {
	actions, _ := p.Content()["desktopPrivileges"].(map[string]any)
	if actions == nil {
		return false
	}
	enabled, _ := actions[action].(bool)
	return enabled
}

func privilegesSingletonPredicate(c payload.Content) bool {
	// The only distinguishing trait of a privileges singleton is its
	// content_type; any instance matches.
	return true
}

func init() {
	RegisterDescriptor(payload.ContentTypePrivileges, Descriptor{
		IsSingleton:        true,
		SingletonPredicate: privilegesSingletonPredicate,
	})
}
