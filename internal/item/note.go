// SPDX-License-Identifier: Apache-2.0

package item

import "github.com/halvard/notesync/internal/payload"

// Note is a typed view over a content_type "Note" payload.
type Note struct{ Item }

// AsNote wraps i as a Note. Callers should only do this when
// i.ContentType() == payload.ContentTypeNote.
func AsNote(i Item) Note { return Note{i} }

func (n Note) Title() string {
	title, _ := n.Content()["title"].(string)
	return title
}

func (n Note) Text() string {
	text, _ := n.Content()["text"].(string)
	return text
}

func (n Note) Archived() bool {
	archived, _ := n.Content()["archived"].(bool)
	return archived
}

func (n Note) Pinned() bool {
	pinned, _ := n.Content()["pinned"].(bool)
	return pinned
}

func init() {
	RegisterDescriptor(payload.ContentTypeNote, Descriptor{})
}
