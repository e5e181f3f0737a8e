// SPDX-License-Identifier: Apache-2.0

package item

import "github.com/halvard/notesync/internal/payload"

// Preferences is a typed view over the singleton content_type
// "SN|UserPreferences" payload holding device-agnostic user settings
// (spec.md §8 scenario 5) such as editor pane widths.
type Preferences struct{ Item }

func AsPreferences(i Item) Preferences { return Preferences{i} }

// Get returns the stored value for key, or nil if unset.
func (p Preferences) Get(key string) any {
	return p.Content()[key]
}

func preferencesSingletonPredicate(c payload.Content) bool {
	return true
}

func init() {
	RegisterDescriptor(payload.ContentTypePreference, Descriptor{
		IsSingleton:        true,
		SingletonPredicate: preferencesSingletonPredicate,
	})
}
