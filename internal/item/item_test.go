// SPDX-License-Identifier: Apache-2.0

package item

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvard/notesync/internal/payload"
)

func decryptedNote(title string) Item {
	p := payload.New(payload.Params{
		ContentType: payload.ContentTypeNote,
		Content:     payload.Content{"title": title},
		DecryptedOK: true,
	})
	return Wrap(p)
}

func TestMutatorApplyDirtiesPayload(t *testing.T) {
	n := decryptedNote("before")
	m := NewMutator(n, MutationUserInteraction).Set("title", "after")
	now := time.Now()
	np := m.Apply(now)

	assert.True(t, np.Dirty)
	assert.Equal(t, now, np.DirtiedDate)
	assert.Equal(t, "after", np.Content["title"])
	assert.Equal(t, "before", n.Content()["title"], "original item content untouched")
}

func TestMutatorAddReferenceIsIdempotent(t *testing.T) {
	n := decryptedNote("x")
	m := NewMutator(n, MutationInternal).
		AddReference("tag-1", payload.ContentTypeTag).
		AddReference("tag-1", payload.ContentTypeTag)
	np := m.Apply(time.Now())

	refs, _ := np.Content["references"].([]any)
	assert.Len(t, refs, 1)
}

func TestMutationTypeConstantsAreDistinct(t *testing.T) {
	assert.Equal(t, MutationType(1), MutationUserInteraction)
	assert.Equal(t, MutationType(2), MutationInternal)
	assert.NotEqual(t, MutationUserInteraction, MutationInternal)
}

func TestSetDomainDataAssigns(t *testing.T) {
	n := decryptedNote("x")
	m := NewMutator(n, MutationInternal).SetDomainData("org.example.editor", map[string]any{"font": "mono"})
	np := m.Apply(time.Now())

	appData, ok := np.Content["appData"].(map[string]any)
	require.True(t, ok)
	domain, ok := appData["org.example.editor"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "mono", domain["font"])
}

func TestEqualIgnoresConfiguredKeys(t *testing.T) {
	a := payload.Content{"title": "x", "conflict_of": "abc"}
	b := payload.Content{"title": "x", "conflict_of": "def"}
	assert.True(t, Equal(a, b))

	c := payload.Content{"title": "y"}
	assert.False(t, Equal(a, c))
}

func TestEqualIgnoresAppDataBookkeepingKeys(t *testing.T) {
	a := payload.Content{"title": "x", "appData": map[string]any{"client_updated_at": "t1", "font": "mono"}}
	b := payload.Content{"title": "x", "appData": map[string]any{"client_updated_at": "t2", "font": "mono"}}
	assert.True(t, Equal(a, b))
}

func TestDecideKeepsLeftWhenIncomingErrored(t *testing.T) {
	local := decryptedNote("x")
	remote := Wrap(remote(t, payload.ContentTypeNote, true))
	assert.Equal(t, KeepLeft, Decide(local, remote))
}

func TestDecideKeepsRightDuplicateLeftWhenLocalErrored(t *testing.T) {
	local := Wrap(remote(t, payload.ContentTypeNote, true))
	incoming := decryptedNote("x")
	assert.Equal(t, KeepRightDuplicateLeft, Decide(local, incoming))
}

func TestDecideKeepsRightOnEqualContent(t *testing.T) {
	local := decryptedNote("same")
	remote := decryptedNote("same")
	assert.Equal(t, KeepRight, Decide(local, remote))
}

func TestDecideGeneralConflictFavorsRight(t *testing.T) {
	local := decryptedNote("local-edit")
	remote := decryptedNote("remote-edit")
	assert.Equal(t, KeepRightDuplicateLeft, Decide(local, remote))
}

func TestDecideSingletonAlwaysKeepsLeft(t *testing.T) {
	local := Wrap(payload.New(payload.Params{ContentType: payload.ContentTypePrivileges, Content: payload.Content{"a": 1}, DecryptedOK: true}))
	remote := Wrap(payload.New(payload.Params{ContentType: payload.ContentTypePrivileges, Content: payload.Content{"a": 2}, DecryptedOK: true}))
	assert.Equal(t, KeepLeft, Decide(local, remote))
}

func remote(t *testing.T, ct payload.ContentType, errored bool) *payload.Payload {
	t.Helper()
	p := payload.New(payload.Params{ContentType: ct, CipherText: "004:junk"})
	if errored {
		p = p.WithErrorDecrypting()
	}
	return p
}
