// SPDX-License-Identifier: Apache-2.0

package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionPutOverwritesByUUID(t *testing.T) {
	p1 := New(Params{UUID: "a", ContentType: ContentTypeNote, Content: Content{"v": 1}})
	p2 := New(Params{UUID: "a", ContentType: ContentTypeNote, Content: Content{"v": 2}})

	c := NewCollection(p1)
	c.Put(p2)

	found, ok := c.Find("a")
	require.True(t, ok)
	assert.Equal(t, 2, found.Content["v"])
	assert.Equal(t, 1, c.Len())
}

func TestCollectionOfTypeIndexesByContentType(t *testing.T) {
	note := New(Params{UUID: "n1", ContentType: ContentTypeNote})
	tag := New(Params{UUID: "t1", ContentType: ContentTypeTag})
	c := NewCollection(note, tag)

	notes := c.OfType(ContentTypeNote)
	require.Len(t, notes, 1)
	assert.Equal(t, "n1", notes[0].UUID)
}

func TestCollectionRemove(t *testing.T) {
	p := New(Params{UUID: "a", ContentType: ContentTypeNote})
	c := NewCollection(p)
	c.Remove("a")

	_, ok := c.Find("a")
	assert.False(t, ok)
	assert.Empty(t, c.OfType(ContentTypeNote))
}

func TestCollectionDirtyFiltersOnlyDirty(t *testing.T) {
	clean := New(Params{UUID: "clean", ContentType: ContentTypeNote})
	dirty := New(Params{UUID: "dirty", ContentType: ContentTypeNote, Dirty: true})
	c := NewCollection(clean, dirty)

	got := c.Dirty()
	require.Len(t, got, 1)
	assert.Equal(t, "dirty", got[0].UUID)
}

func TestCloneIsIndependentIndex(t *testing.T) {
	p := New(Params{UUID: "a", ContentType: ContentTypeNote})
	c := NewCollection(p)
	clone := c.Clone()

	clone.Remove("a")

	_, stillThere := c.Find("a")
	assert.True(t, stillThere)
	_, removedFromClone := clone.Find("a")
	assert.False(t, removedFromClone)
}

func TestFreezeProducesIndependentSnapshot(t *testing.T) {
	p := New(Params{UUID: "a", ContentType: ContentTypeNote})
	c := NewCollection(p)
	frozen := Freeze(c)

	c.Remove("a")

	_, found := frozen.Find("a")
	assert.True(t, found, "freezing must snapshot, not alias, the source collection")
}
