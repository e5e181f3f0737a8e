// SPDX-License-Identifier: Apache-2.0

package item

import "github.com/halvard/notesync/internal/payload"

// ItemsKeyItem is a typed view over a content_type "SN|ItemsKey" payload —
// the syncable wrapper around an internal/keys.ItemsKey's material.
type ItemsKeyItem struct{ Item }

func AsItemsKeyItem(i Item) ItemsKeyItem { return ItemsKeyItem{i} }

func (k ItemsKeyItem) KeyMaterialBase64() string {
	mat, _ := k.Content()["itemsKey"].(string)
	return mat
}

func (k ItemsKeyItem) IsDefault() bool {
	isDefault, _ := k.Content()["isDefault"].(bool)
	return isDefault
}

func init() {
	// SN|ItemsKey items use the default descriptor: items-key material is
	// immutable once created, so a remote copy equals the local one and
	// equality-based KeepRight is the path reached. The Payload Manager's
	// ignored-key rule (spec.md §4.2) applies afterwards, when the sync
	// engine emits the reconciled payloads.
	RegisterDescriptor(payload.ContentTypeItemsKey, Descriptor{})
}
