// SPDX-License-Identifier: Apache-2.0

package item

import "github.com/halvard/notesync/internal/payload"

// Tag is a typed view over a content_type "Tag" payload. Tags reference
// the notes they classify by uuid, so conflicting edits union the
// reference arrays rather than replacing one side wholesale.
type Tag struct{ Item }

func AsTag(i Item) Tag { return Tag{i} }

func (t Tag) Title() string {
	title, _ := t.Content()["title"].(string)
	return title
}

func (t Tag) NoteReferences() []string { return t.References() }

func init() {
	RegisterDescriptor(payload.ContentTypeTag, Descriptor{MergeRefs: true})
}
