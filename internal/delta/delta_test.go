// SPDX-License-Identifier: Apache-2.0

package delta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvard/notesync/internal/payload"
)

func note(uuid, title string, createdAt time.Time) *payload.Payload {
	return payload.New(payload.Params{
		UUID: uuid, ContentType: payload.ContentTypeNote,
		Content: payload.Content{"title": title}, DecryptedOK: true,
		CreatedAt: createdAt,
	})
}

func TestResolveGeneralConflictDuplicatesLocalEdit(t *testing.T) {
	// spec.md §8 scenario 6: local edit C1 vs remote content C2 ->
	// master keeps C2 under the original uuid, C1 survives as a
	// conflict-duplicate referencing it.
	base := payload.NewCollection(note("x", "C1-local-edit", time.Unix(0, 0)))
	incoming := []*payload.Payload{note("x", "C2-remote-edit", time.Unix(0, 0))}

	result := Resolve(base, incoming, time.Now())

	master, found := result.Find("x")
	require.True(t, found)
	assert.Equal(t, "C2-remote-edit", master.Content["title"])

	var duplicate *payload.Payload
	for _, p := range result.All() {
		if p.ConflictOf == "x" {
			duplicate = p
		}
	}
	require.NotNil(t, duplicate)
	assert.Equal(t, "C1-local-edit", duplicate.Content["title"])
	assert.True(t, duplicate.Dirty)
	assert.NotEqual(t, "x", duplicate.UUID)
}

func TestResolveEqualContentKeepsRightNoDuplicate(t *testing.T) {
	base := payload.NewCollection(note("x", "same", time.Unix(0, 0)))
	incoming := []*payload.Payload{note("x", "same", time.Unix(0, 0))}

	result := Resolve(base, incoming, time.Now())
	assert.Equal(t, 1, result.Len())
}

func TestResolveNewUUIDIsInserted(t *testing.T) {
	base := payload.NewCollection()
	incoming := []*payload.Payload{note("new", "hello", time.Now())}

	result := Resolve(base, incoming, time.Now())
	_, found := result.Find("new")
	assert.True(t, found)
}

func TestResolveFileImportAlwaysDuplicatesOnCollision(t *testing.T) {
	base := payload.NewCollection(note("x", "local", time.Unix(0, 0)))
	incoming := []*payload.Payload{note("x", "imported", time.Unix(0, 0))}

	result := ResolveFileImport(base, incoming)

	master, found := result.Find("x")
	require.True(t, found)
	assert.Equal(t, "local", master.Content["title"], "import never overwrites local data")

	found = false
	for _, p := range result.All() {
		if p.ConflictOf == "x" {
			found = true
			assert.Equal(t, "imported", p.Content["title"])
		}
	}
	assert.True(t, found, "imported payload must survive as a duplicate")
}

func TestResolveRemoteRejectedReSourcesLocalCounterpart(t *testing.T) {
	local := note("x", "pending", time.Unix(0, 0)).WithDirty(true, time.Now())
	base := payload.NewCollection(local)

	result, err := ResolveRemoteRejected(base, []string{"x"}, time.Unix(100, 0))
	require.NoError(t, err)

	p, found := result.Find("x")
	require.True(t, found)
	assert.False(t, p.Dirty)
	assert.Equal(t, time.Unix(100, 0), p.LastSyncEnd)
}

func TestResolveRemoteRejectedErrorsWithoutLocalCounterpart(t *testing.T) {
	base := payload.NewCollection()
	_, err := ResolveRemoteRejected(base, []string{"missing"}, time.Now())
	assert.ErrorIs(t, err, ErrNoLocalCounterpart)
}

func TestSingletonEnforcementKeepsEarliestOnly(t *testing.T) {
	earlier := payload.New(payload.Params{UUID: "p1", ContentType: payload.ContentTypePrivileges, Content: payload.Content{}, DecryptedOK: true, CreatedAt: time.Unix(10, 0)})
	later := payload.New(payload.Params{UUID: "p2", ContentType: payload.ContentTypePrivileges, Content: payload.Content{}, DecryptedOK: true, CreatedAt: time.Unix(20, 0)})
	base := payload.NewCollection(earlier)

	result := Resolve(base, []*payload.Payload{later}, time.Now())

	p1, found := result.Find("p1")
	require.True(t, found)
	assert.False(t, p1.Deleted)

	p2, found := result.Find("p2")
	require.True(t, found)
	assert.True(t, p2.Deleted)
	assert.True(t, p2.Dirty)
}

func TestMergeRefsUnionsReferenceArrays(t *testing.T) {
	left := payload.New(payload.Params{
		UUID: "t1", ContentType: payload.ContentTypeTag, DecryptedOK: true,
		Content: payload.Content{"title": "work", "references": []any{
			map[string]any{"uuid": "n1", "content_type": "Note"},
		}},
	})
	right := payload.New(payload.Params{
		UUID: "t1", ContentType: payload.ContentTypeTag, DecryptedOK: true,
		Content: payload.Content{"title": "work", "references": []any{
			map[string]any{"uuid": "n2", "content_type": "Note"},
		}},
	})
	base := payload.NewCollection(left)

	result := Resolve(base, []*payload.Payload{right}, time.Now())
	merged, found := result.Find("t1")
	require.True(t, found)

	refs, _ := merged.Content["references"].([]any)
	assert.Len(t, refs, 2)
}
