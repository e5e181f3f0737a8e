// SPDX-License-Identifier: Apache-2.0

package item

import "github.com/halvard/notesync/internal/payload"

// Component is a typed view over a content_type "SN|Component" payload —
// an editor/plugin registration. The host-side plugin lifecycle itself is
// out of scope (spec.md §1 "component/plugin host" is an external
// collaborator); this type only exposes the syncable metadata.
type Component struct{ Item }

func AsComponent(i Item) Component { return Component{i} }

func (c Component) Name() string {
	name, _ := c.Content()["name"].(string)
	return name
}

func (c Component) URL() string {
	url, _ := c.Content()["url"].(string)
	return url
}

func (c Component) Active() bool {
	active, _ := c.Content()["active"].(bool)
	return active
}

func init() {
	RegisterDescriptor(payload.ContentTypeComponent, Descriptor{MergeRefs: true})
}
