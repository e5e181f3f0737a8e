// SPDX-License-Identifier: Apache-2.0

// Package storage implements spec.md §4.2/§6's Storage Service: a typed
// persistence facade over an injected DeviceInterface. Everything here is
// a synchronous orchestration layer; the actual key/value and blob
// persistence is an external collaborator (spec.md §1), with
// internal/storage/sqlitedevice as its one concrete reference
// implementation.
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/halvard/notesync/internal/logger"
	"github.com/halvard/notesync/internal/payload"
)

// DeviceInterface is the external collaborator spec.md §6 names: a
// key/value store for small bookkeeping values, a bulk table for payload
// records keyed by uuid, and a keychain for secret material that should
// never land in the plain key/value table.
type DeviceInterface interface {
	GetRawStorageValue(ctx context.Context, key string) (value string, found bool, err error)
	SetRawStorageValue(ctx context.Context, key, value string) error
	RemoveRawStorageValue(ctx context.Context, key string) error

	GetAllRawDatabasePayloads(ctx context.Context) ([]RawPayloadRecord, error)
	SaveRawDatabasePayload(ctx context.Context, record RawPayloadRecord) error
	RemoveRawDatabasePayload(ctx context.Context, uuid string) error

	SetKeychainValue(ctx context.Context, key, value string) error
	GetKeychainValue(ctx context.Context, key string) (value string, found bool, err error)
	ClearKeychainValue(ctx context.Context, key string) error
}

// RawPayloadRecord is the bulk-table row shape: a payload reduced to
// exactly what is safe (and necessary) to persist at rest — the
// encrypted/ciphertext form, never decrypted content (spec.md §6 "Item
// payloads — bulk table keyed by uuid").
type RawPayloadRecord struct {
	UUID        string
	ContentType string
	CipherText  string
	EncItemKey  string
	ItemsKeyID  string
	CreatedAt   string
	UpdatedAt   string
	Dirty       bool
	DirtiedDate string
	Deleted     bool
}

// Namespaced storage keys (spec.md §6 "Persisted storage keys"). Every
// key passed to DeviceInterface is prefixed with the application
// identifier by Service so multiple namespaces can share one device.
const (
	keySNJSVersion        = "snjs_version"
	keyLastSyncToken      = "last_sync_token"
	keyPaginationToken    = "pagination_token"
	keyUser               = "user"
	keySession            = "session"
	keyRootKeyWrapper     = "root_key_wrapper_params"
	keyUndecryptableItems = "key_recovery_undecryptable_items"
)

// Service is the typed facade spec.md §2 calls the "Storage Service":
// every other component reads and writes persisted state through it
// instead of touching DeviceInterface directly.
type Service struct {
	device    DeviceInterface
	namespace string
	log       *logger.Logger
}

// New constructs a Service over device, namespacing every raw key with
// namespace (the application identifier spec.md §6 requires).
func New(device DeviceInterface, namespace string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{device: device, namespace: namespace, log: log}
}

func (s *Service) nsKey(key string) string {
	return s.namespace + ":" + key
}

// GetSNJSVersion returns the last-completed migration version, and
// whether one has ever been recorded.
func (s *Service) GetSNJSVersion(ctx context.Context) (string, bool, error) {
	return s.device.GetRawStorageValue(ctx, s.nsKey(keySNJSVersion))
}

// SetSNJSVersion records the last-completed migration version.
func (s *Service) SetSNJSVersion(ctx context.Context, version string) error {
	return s.device.SetRawStorageValue(ctx, s.nsKey(keySNJSVersion), version)
}

// GetSyncTokens returns the last sync token and pagination token, if
// present.
func (s *Service) GetSyncTokens(ctx context.Context) (syncToken, paginationToken string, err error) {
	syncToken, _, err = s.device.GetRawStorageValue(ctx, s.nsKey(keyLastSyncToken))
	if err != nil {
		return "", "", fmt.Errorf("read last_sync_token: %w", err)
	}
	paginationToken, _, err = s.device.GetRawStorageValue(ctx, s.nsKey(keyPaginationToken))
	if err != nil {
		return "", "", fmt.Errorf("read pagination_token: %w", err)
	}
	return syncToken, paginationToken, nil
}

// SetSyncToken persists the last-completed sync's token.
func (s *Service) SetSyncToken(ctx context.Context, token string) error {
	return s.device.SetRawStorageValue(ctx, s.nsKey(keyLastSyncToken), token)
}

// SetPaginationToken persists the in-progress pagination cursor, or
// clears it when token is empty (a sync round with no further pages).
func (s *Service) SetPaginationToken(ctx context.Context, token string) error {
	if token == "" {
		return s.device.RemoveRawStorageValue(ctx, s.nsKey(keyPaginationToken))
	}
	return s.device.SetRawStorageValue(ctx, s.nsKey(keyPaginationToken), token)
}

// User is the persisted account identity (spec.md §6 "user" key).
type User struct {
	UUID  string `json:"uuid"`
	Email string `json:"email"`
}

// GetUser returns the persisted account identity, if one was saved.
func (s *Service) GetUser(ctx context.Context) (*User, error) {
	raw, found, err := s.device.GetRawStorageValue(ctx, s.nsKey(keyUser))
	if err != nil || !found {
		return nil, err
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("decode user record: %w", err)
	}
	return &u, nil
}

// SetUser persists the account identity.
func (s *Service) SetUser(ctx context.Context, u User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user record: %w", err)
	}
	return s.device.SetRawStorageValue(ctx, s.nsKey(keyUser), string(raw))
}

// SessionRecord is the persisted session token + expiry (spec.md §6
// "session" key).
type SessionRecord struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// GetSession returns the persisted session record, if one was saved.
func (s *Service) GetSession(ctx context.Context) (*SessionRecord, error) {
	raw, found, err := s.device.GetRawStorageValue(ctx, s.nsKey(keySession))
	if err != nil || !found {
		return nil, err
	}
	var rec SessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode session record: %w", err)
	}
	return &rec, nil
}

// SetSession persists the session record.
func (s *Service) SetSession(ctx context.Context, rec SessionRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}
	return s.device.SetRawStorageValue(ctx, s.nsKey(keySession), string(raw))
}

// ClearSession removes the persisted session record (sign-out).
func (s *Service) ClearSession(ctx context.Context) error {
	return s.device.RemoveRawStorageValue(ctx, s.nsKey(keySession))
}

// GetRootKeyWrapperParams returns the passcode key-params blob, if a
// passcode is set (spec.md §6 "root_key_wrapper_params").
func (s *Service) GetRootKeyWrapperParams(ctx context.Context) (string, bool, error) {
	return s.device.GetRawStorageValue(ctx, s.nsKey(keyRootKeyWrapper))
}

// SetRootKeyWrapperParams persists the passcode key-params blob.
func (s *Service) SetRootKeyWrapperParams(ctx context.Context, blob string) error {
	return s.device.SetRawStorageValue(ctx, s.nsKey(keyRootKeyWrapper), blob)
}

// SaveUndecryptableItem persists an undecryptable items-key payload into
// isolated storage so it survives restart (spec.md §4.5 step 1). Isolated
// meaning: it is kept separate from the bulk payload table, keyed under
// one namespaced record indexed by uuid.
func (s *Service) SaveUndecryptableItem(ctx context.Context, uuid string, rawPayload string) error {
	all, err := s.loadUndecryptableItems(ctx)
	if err != nil {
		return err
	}
	all[uuid] = rawPayload
	return s.storeUndecryptableItems(ctx, all)
}

// RemoveUndecryptableItem clears uuid from isolated storage once it has
// been repaired.
func (s *Service) RemoveUndecryptableItem(ctx context.Context, uuid string) error {
	all, err := s.loadUndecryptableItems(ctx)
	if err != nil {
		return err
	}
	delete(all, uuid)
	return s.storeUndecryptableItems(ctx, all)
}

// AllUndecryptableItems returns every isolated undecryptable-item record,
// keyed by uuid.
func (s *Service) AllUndecryptableItems(ctx context.Context) (map[string]string, error) {
	return s.loadUndecryptableItems(ctx)
}

func (s *Service) loadUndecryptableItems(ctx context.Context) (map[string]string, error) {
	raw, found, err := s.device.GetRawStorageValue(ctx, s.nsKey(keyUndecryptableItems))
	if err != nil {
		return nil, fmt.Errorf("read key_recovery_undecryptable_items: %w", err)
	}
	if !found {
		return map[string]string{}, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("decode key_recovery_undecryptable_items: %w", err)
	}
	return m, nil
}

func (s *Service) storeUndecryptableItems(ctx context.Context, m map[string]string) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode key_recovery_undecryptable_items: %w", err)
	}
	return s.device.SetRawStorageValue(ctx, s.nsKey(keyUndecryptableItems), string(raw))
}

// SavePayloads persists dirty payloads to the bulk table (spec.md §4.3
// pre-flight step 3: "Persist dirty payloads... before any network I/O").
// Payloads must already be in their wire (ciphertext) form; callers
// should not pass decrypted content here.
func (s *Service) SavePayloads(ctx context.Context, payloads []*payload.Payload) error {
	for _, p := range payloads {
		if err := s.device.SaveRawDatabasePayload(ctx, toRawRecord(p)); err != nil {
			return fmt.Errorf("save payload %s: %w", p.UUID, err)
		}
	}
	return nil
}

// RemovePayload deletes uuid from the bulk table, used for payloads that
// were deleted locally and never synced (spec.md §4.3 pre-flight step 2).
func (s *Service) RemovePayload(ctx context.Context, uuid string) error {
	return s.device.RemoveRawDatabasePayload(ctx, uuid)
}

// LoadAllPayloads returns every persisted payload record, still in
// ciphertext form — callers decrypt through internal/protocol after
// loading.
func (s *Service) LoadAllPayloads(ctx context.Context) ([]RawPayloadRecord, error) {
	return s.device.GetAllRawDatabasePayloads(ctx)
}

func toRawRecord(p *payload.Payload) RawPayloadRecord {
	rec := RawPayloadRecord{
		UUID:        p.UUID,
		ContentType: string(p.ContentType),
		CipherText:  p.CipherText,
		EncItemKey:  p.EncItemKey,
		ItemsKeyID:  p.ItemsKeyID,
		Dirty:       p.Dirty,
		Deleted:     p.Deleted,
	}
	if !p.CreatedAt.IsZero() {
		rec.CreatedAt = p.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000Z")
	}
	if !p.UpdatedAt.IsZero() {
		rec.UpdatedAt = p.UpdatedAt.UTC().Format("2006-01-02T15:04:05.000000Z")
	}
	if !p.DirtiedDate.IsZero() {
		rec.DirtiedDate = p.DirtiedDate.UTC().Format("2006-01-02T15:04:05.000000Z")
	}
	return rec
}
