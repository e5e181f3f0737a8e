// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/halvard/notesync/internal/config"
	"github.com/halvard/notesync/internal/events"
	"github.com/halvard/notesync/internal/keys"
	"github.com/halvard/notesync/internal/manager"
	"github.com/halvard/notesync/internal/mock"
	"github.com/halvard/notesync/internal/payload"
	"github.com/halvard/notesync/internal/protocol"
	"github.com/halvard/notesync/internal/storage"
)

// fakeDevice is an in-memory storage.DeviceInterface, mirroring the one in
// internal/storage's own test file.
type fakeDevice struct {
	mu       sync.Mutex
	kv       map[string]string
	keychain map[string]string
	payloads map[string]storage.RawPayloadRecord
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		kv:       map[string]string{},
		keychain: map[string]string{},
		payloads: map[string]storage.RawPayloadRecord{},
	}
}

func (f *fakeDevice) GetRawStorageValue(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.kv[key]
	return v, ok, nil
}

func (f *fakeDevice) SetRawStorageValue(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kv[key] = value
	return nil
}

func (f *fakeDevice) RemoveRawStorageValue(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.kv, key)
	return nil
}

func (f *fakeDevice) GetAllRawDatabasePayloads(_ context.Context) ([]storage.RawPayloadRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]storage.RawPayloadRecord, 0, len(f.payloads))
	for _, r := range f.payloads {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeDevice) SaveRawDatabasePayload(_ context.Context, record storage.RawPayloadRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads[record.UUID] = record
	return nil
}

func (f *fakeDevice) RemoveRawDatabasePayload(_ context.Context, uuid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.payloads, uuid)
	return nil
}

func (f *fakeDevice) SetKeychainValue(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keychain[key] = value
	return nil
}

func (f *fakeDevice) GetKeychainValue(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.keychain[key]
	return v, ok, nil
}

func (f *fakeDevice) ClearKeychainValue(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keychain, key)
	return nil
}

// remoteStub is the stateful RemoteClient behavior behind the
// mock.MockSyncRemoteClient the harness wires up below: its response is
// driven by a respond callback the tests reassign mid-run, with
// call-count bookkeeping and an optional gate channel for serialization
// tests — state a single-shot gomock .Return() can't express on its own,
// so the mock delegates to this stub via DoAndReturn instead.
type remoteStub struct {
	mu      sync.Mutex
	calls   int
	gate    chan struct{}
	respond func(req SyncRequest) (SyncResponse, error)
}

func (f *remoteStub) Sync(_ context.Context, req SyncRequest) (SyncResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.gate != nil {
		<-f.gate
	}
	return f.respond(req)
}

func (f *remoteStub) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testRootKeyAndRing(t *testing.T) (*keys.RootKey, *keys.Ring, *keys.ItemsKey) {
	t.Helper()
	proto := protocol.NewService(nil)
	rk, err := proto.DeriveRootKey("correct horse battery staple", keys.KeyParams{
		Version: keys.Version004, Identifier: "user@example.com", PwNonce: "nonce-1",
	})
	require.NoError(t, err)

	ik := &keys.ItemsKey{UUID: "ik-1", KeyMaterial: make([]byte, 32), Version: keys.Version004, IsDefault: true, CreatedAt: time.Now()}
	ring := keys.NewRing()
	ring.Add(ik)
	return rk, ring, ik
}

type testHarness struct {
	engine *Engine
	pm     *manager.PayloadManager
	proto  *protocol.Service
	store  *storage.Service
	ring   *keys.Ring
	rk     *keys.RootKey
	events *events.Dispatcher
	remote *remoteStub
}

func newHarness(t *testing.T, cfg config.Sync, respond func(req SyncRequest) (SyncResponse, error)) *testHarness {
	t.Helper()
	rk, ring, _ := testRootKeyAndRing(t)

	pm := manager.New(nil)
	proto := protocol.NewService(nil)
	store := storage.New(newFakeDevice(), "app", nil)
	dispatcher := events.New()
	stub := &remoteStub{respond: respond}

	ctrl := gomock.NewController(t)
	remote := mock.NewMockSyncRemoteClient(ctrl)
	remote.EXPECT().Sync(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(stub.Sync)

	e := New(pm, proto, remote, store, ring, cfg, dispatcher, nil)
	e.SetRootKey(rk)

	return &testHarness{engine: e, pm: pm, proto: proto, store: store, ring: ring, rk: rk, events: dispatcher, remote: stub}
}

func emptyResponse(req SyncRequest) (SyncResponse, error) {
	return SyncResponse{SyncToken: "tok-1"}, nil
}

func TestSyncUploadsDirtyItemAndAppliesRetrieved(t *testing.T) {
	h := newHarness(t, config.Sync{MaxDiscordance: 5, PageSize: 150}, nil)

	note := payload.New(payload.Params{
		ContentType: payload.ContentTypeNote,
		Content:     payload.Content{"title": "local note"},
		DecryptedOK: true,
		Dirty:       true,
		UpdatedAt:   time.Now(),
	})
	h.pm.EmitPayloads([]*payload.Payload{note}, payload.SourceLocalChanged)

	remoteUUID := "remote-1"
	h.remote.respond = func(req SyncRequest) (SyncResponse, error) {
		require.Len(t, req.Items, 1)
		assert.Equal(t, note.UUID, req.Items[0].UUID)
		assert.NotEmpty(t, req.Items[0].Content, "uploaded item must carry v004 ciphertext")

		encryptedRetrieved, err := h.proto.EncryptPayload(
			payload.New(payload.Params{UUID: remoteUUID, ContentType: payload.ContentTypeNote, Content: payload.Content{"title": "from server"}, DecryptedOK: true}),
			h.rk, h.ring.Default(),
		)
		require.NoError(t, err)

		// The server confirms the upload by echoing it back as a saved item
		// (metadata-only per spec.md §4.3); the engine overlays it with the
		// already-decrypted local content and clears dirty.
		savedEcho := req.Items[0]
		savedEcho.UpdatedAt = "2026-01-01T00:00:00.000000Z"

		return SyncResponse{
			SyncToken:      "tok-2",
			SavedItems:     []WireItem{savedEcho},
			RetrievedItems: []WireItem{toWireItem(encryptedRetrieved)},
		}, nil
	}

	err := h.engine.Sync(context.Background(), Options{Mode: ModeDefault})
	require.NoError(t, err)

	uploaded, found := h.pm.Find(note.UUID)
	require.True(t, found)
	assert.False(t, uploaded.Dirty, "a confirmed SavedItems echo clears dirty")
	assert.Equal(t, "local note", uploaded.Content["title"], "metadata-only echo is overlaid with the existing decrypted content")

	retrieved, found := h.pm.Find(remoteUUID)
	require.True(t, found)
	assert.True(t, retrieved.DecryptedOK)
	assert.Equal(t, "from server", retrieved.Content["title"])
}

func TestInitialModeAlwaysChainsIntoDefaultRound(t *testing.T) {
	h := newHarness(t, config.Sync{MaxDiscordance: 5, PageSize: 150}, emptyResponse)

	err := h.engine.Sync(context.Background(), Options{Mode: ModeInitial})
	require.NoError(t, err)

	assert.True(t, h.engine.CompletedInitialSync())
	assert.Equal(t, 2, h.remote.callCount(), "initial round plus one chained default round, even with nothing dirty")
}

func TestDefaultModeDoesNotChainWhenNothingDirty(t *testing.T) {
	h := newHarness(t, config.Sync{MaxDiscordance: 5, PageSize: 150}, emptyResponse)

	err := h.engine.Sync(context.Background(), Options{Mode: ModeDefault})
	require.NoError(t, err)
	assert.Equal(t, 1, h.remote.callCount())
}

func TestPaginationLoopsUntilCursorTokenEmpty(t *testing.T) {
	h := newHarness(t, config.Sync{MaxDiscordance: 5, PageSize: 150}, nil)

	h.remote.respond = func(req SyncRequest) (SyncResponse, error) {
		if req.CursorToken == "" && h.remote.callCount() == 1 {
			return SyncResponse{SyncToken: "mid", CursorToken: "cursor-1"}, nil
		}
		assert.Equal(t, "cursor-1", req.CursorToken)
		return SyncResponse{SyncToken: "final"}, nil
	}

	err := h.engine.Sync(context.Background(), Options{Mode: ModeDefault})
	require.NoError(t, err)
	assert.Equal(t, 2, h.remote.callCount())

	syncToken, paginationToken, err := h.store.GetSyncTokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "final", syncToken)
	assert.Empty(t, paginationToken)
}

func TestIntegrityMismatchEntersOutOfSyncAfterMaxDiscordance(t *testing.T) {
	h := newHarness(t, config.Sync{MaxDiscordance: 2, PageSize: 150}, func(req SyncRequest) (SyncResponse, error) {
		return SyncResponse{SyncToken: "tok", IntegrityHash: "mismatching-hash"}, nil
	})

	var enteredOutOfSync int
	h.events.Subscribe(func(ev events.Event) {
		if ev.Type == events.EnteredOutOfSync {
			enteredOutOfSync++
		}
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		require.NoError(t, h.engine.Sync(ctx, Options{Mode: ModeDefault, CheckIntegrity: true}))
	}
	assert.False(t, h.engine.OutOfSync(), "two mismatches do not exceed MaxDiscordance=2; the third is the first to exceed it")

	require.NoError(t, h.engine.Sync(ctx, Options{Mode: ModeDefault, CheckIntegrity: true}))
	assert.True(t, h.engine.OutOfSync())
	assert.Equal(t, 1, enteredOutOfSync)

	var exitedOutOfSync int
	h.events.Subscribe(func(ev events.Event) {
		if ev.Type == events.ExitedOutOfSync {
			exitedOutOfSync++
		}
	})
	h.remote.respond = func(req SyncRequest) (SyncResponse, error) {
		return SyncResponse{SyncToken: "tok", IntegrityHash: computeIntegrityHash(nil)}, nil
	}
	require.NoError(t, h.engine.Sync(ctx, Options{Mode: ModeDefault, CheckIntegrity: true}))
	assert.False(t, h.engine.OutOfSync())
	assert.Equal(t, 1, exitedOutOfSync)
}

func TestMajorDataChangeEmittedAtThreshold(t *testing.T) {
	h := newHarness(t, config.Sync{MaxDiscordance: 5, PageSize: 150}, nil)

	var items []WireItem
	for i := 0; i < events.MajorDataChangeThreshold; i++ {
		encrypted, err := h.proto.EncryptPayload(
			payload.New(payload.Params{
				UUID: fmt.Sprintf("n-%d", i), ContentType: payload.ContentTypeNote,
				Content: payload.Content{"title": fmt.Sprintf("note %d", i)}, DecryptedOK: true,
			}),
			h.rk, h.ring.Default(),
		)
		require.NoError(t, err)
		items = append(items, toWireItem(encrypted))
	}
	h.remote.respond = func(req SyncRequest) (SyncResponse, error) {
		return SyncResponse{SyncToken: "tok", RetrievedItems: items}, nil
	}

	var majorChanges []int
	h.events.Subscribe(func(ev events.Event) {
		if ev.Type == events.MajorDataChange {
			majorChanges = append(majorChanges, ev.Payload["count"].(int))
		}
	})

	require.NoError(t, h.engine.Sync(context.Background(), Options{Mode: ModeDefault}))
	require.Len(t, majorChanges, 1)
	assert.Equal(t, events.MajorDataChangeThreshold, majorChanges[0])
}

func TestResolveOnNextWaitsForInProgressRoundOutcome(t *testing.T) {
	h := newHarness(t, config.Sync{MaxDiscordance: 5, PageSize: 150}, nil)
	h.remote.gate = make(chan struct{})
	h.remote.respond = func(req SyncRequest) (SyncResponse, error) {
		return SyncResponse{SyncToken: "tok"}, nil
	}

	var wg sync.WaitGroup
	results := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = h.engine.Sync(context.Background(), Options{Mode: ModeDefault})
	}()

	// Give the first call time to become the owner and block on the gate.
	time.Sleep(20 * time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1] = h.engine.Sync(context.Background(), Options{Mode: ModeDefault, TimingStrategy: ResolveOnNext})
	}()

	time.Sleep(20 * time.Millisecond)
	close(h.remote.gate)
	wg.Wait()

	require.NoError(t, results[0])
	require.NoError(t, results[1])
	assert.Equal(t, 1, h.remote.callCount(), "ResolveOnNext must observe the in-progress round, not spawn a second one")
}

func TestForceSpawnNewQueuesAnotherRoundAfterCurrentFinishes(t *testing.T) {
	h := newHarness(t, config.Sync{MaxDiscordance: 5, PageSize: 150}, nil)
	h.remote.gate = make(chan struct{})
	h.remote.respond = func(req SyncRequest) (SyncResponse, error) {
		return SyncResponse{SyncToken: "tok"}, nil
	}

	var wg sync.WaitGroup
	results := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = h.engine.Sync(context.Background(), Options{Mode: ModeDefault})
	}()

	time.Sleep(20 * time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1] = h.engine.Sync(context.Background(), Options{Mode: ModeDefault, TimingStrategy: ForceSpawnNew})
	}()

	time.Sleep(20 * time.Millisecond)
	close(h.remote.gate)
	wg.Wait()

	require.NoError(t, results[0])
	require.NoError(t, results[1])
	assert.Equal(t, 2, h.remote.callCount(), "ForceSpawnNew must run its own extra round once the in-progress chain finishes")
}

func TestResolveOutOfSyncDownloadsThenRunsIntegrityCheckedSync(t *testing.T) {
	h := newHarness(t, config.Sync{MaxDiscordance: 5, PageSize: 150}, nil)

	var gotComputeIntegrity []bool
	h.remote.respond = func(req SyncRequest) (SyncResponse, error) {
		gotComputeIntegrity = append(gotComputeIntegrity, req.ComputeIntegrity)
		return SyncResponse{SyncToken: "tok", IntegrityHash: computeIntegrityHash(nil)}, nil
	}

	require.NoError(t, h.engine.ResolveOutOfSync(context.Background()))
	require.Len(t, gotComputeIntegrity, 2)
	assert.True(t, gotComputeIntegrity[0], "full download request computes integrity")
	assert.True(t, gotComputeIntegrity[1], "chained Sync call also requests integrity")
	assert.False(t, h.engine.OutOfSync())
}
