// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	kv       map[string]string
	keychain map[string]string
	payloads map[string]RawPayloadRecord
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{kv: map[string]string{}, keychain: map[string]string{}, payloads: map[string]RawPayloadRecord{}}
}

func (f *fakeDevice) GetRawStorageValue(_ context.Context, key string) (string, bool, error) {
	v, ok := f.kv[key]
	return v, ok, nil
}

func (f *fakeDevice) SetRawStorageValue(_ context.Context, key, value string) error {
	f.kv[key] = value
	return nil
}

func (f *fakeDevice) RemoveRawStorageValue(_ context.Context, key string) error {
	delete(f.kv, key)
	return nil
}

func (f *fakeDevice) GetAllRawDatabasePayloads(_ context.Context) ([]RawPayloadRecord, error) {
	out := make([]RawPayloadRecord, 0, len(f.payloads))
	for _, r := range f.payloads {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeDevice) SaveRawDatabasePayload(_ context.Context, record RawPayloadRecord) error {
	f.payloads[record.UUID] = record
	return nil
}

func (f *fakeDevice) RemoveRawDatabasePayload(_ context.Context, uuid string) error {
	delete(f.payloads, uuid)
	return nil
}

func (f *fakeDevice) SetKeychainValue(_ context.Context, key, value string) error {
	f.keychain[key] = value
	return nil
}

func (f *fakeDevice) GetKeychainValue(_ context.Context, key string) (string, bool, error) {
	v, ok := f.keychain[key]
	return v, ok, nil
}

func (f *fakeDevice) ClearKeychainValue(_ context.Context, key string) error {
	delete(f.keychain, key)
	return nil
}

func TestSessionRoundTrip(t *testing.T) {
	svc := New(newFakeDevice(), "app", nil)
	ctx := context.Background()

	none, err := svc.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, svc.SetSession(ctx, SessionRecord{Token: "tok", ExpiresAt: "2026-01-01T00:00:00Z"}))
	got, err := svc.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "tok", got.Token)

	require.NoError(t, svc.ClearSession(ctx))
	got, err = svc.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUndecryptableItemsAreNamespacedAndRemovable(t *testing.T) {
	svc := New(newFakeDevice(), "app", nil)
	ctx := context.Background()

	require.NoError(t, svc.SaveUndecryptableItem(ctx, "item-1", "raw-1"))
	require.NoError(t, svc.SaveUndecryptableItem(ctx, "item-2", "raw-2"))

	all, err := svc.AllUndecryptableItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"item-1": "raw-1", "item-2": "raw-2"}, all)

	require.NoError(t, svc.RemoveUndecryptableItem(ctx, "item-1"))
	all, err = svc.AllUndecryptableItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"item-2": "raw-2"}, all)
}

func TestTwoNamespacesDoNotCollide(t *testing.T) {
	device := newFakeDevice()
	a := New(device, "ns-a", nil)
	b := New(device, "ns-b", nil)
	ctx := context.Background()

	require.NoError(t, a.SetSNJSVersion(ctx, "1.2.0"))
	require.NoError(t, b.SetSNJSVersion(ctx, "1.0.0"))

	vA, found, err := a.GetSNJSVersion(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "1.2.0", vA)

	vB, found, err := b.GetSNJSVersion(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "1.0.0", vB)
}

func TestSyncTokensRoundTrip(t *testing.T) {
	svc := New(newFakeDevice(), "app", nil)
	ctx := context.Background()

	require.NoError(t, svc.SetSyncToken(ctx, "sync-tok"))
	require.NoError(t, svc.SetPaginationToken(ctx, "page-tok"))

	sync, page, err := svc.GetSyncTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sync-tok", sync)
	assert.Equal(t, "page-tok", page)

	require.NoError(t, svc.SetPaginationToken(ctx, ""))
	_, page, err = svc.GetSyncTokens(ctx)
	require.NoError(t, err)
	assert.Empty(t, page)
}
