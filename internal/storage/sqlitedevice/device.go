// SPDX-License-Identifier: Apache-2.0

package sqlitedevice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/halvard/notesync/internal/logger"
	"github.com/halvard/notesync/internal/storage"
)

// Device implements storage.DeviceInterface over a sqlitedevice.DB.
type Device struct {
	db  *DB
	b   sq.StatementBuilderType
	log *logger.Logger
}

// New constructs a Device over an already-connected, migrated db.
func New(db *DB, log *logger.Logger) *Device {
	if log == nil {
		log = logger.Nop()
	}
	return &Device{db: db, b: sq.StatementBuilder.RunWith(db.DB), log: log}
}

var _ storage.DeviceInterface = (*Device)(nil)

func (d *Device) GetRawStorageValue(ctx context.Context, key string) (string, bool, error) {
	row := d.b.Select("value").From("raw_values").Where(sq.Eq{"storage_key": key}).RunWith(d.db.DB).QueryRowContext(ctx)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("sqlitedevice: get raw value %q: %w", key, err)
	}
	return value, true, nil
}

func (d *Device) SetRawStorageValue(ctx context.Context, key, value string) error {
	_, err := d.b.Insert("raw_values").
		Columns("storage_key", "value").
		Values(key, value).
		Suffix("ON CONFLICT(storage_key) DO UPDATE SET value = excluded.value").
		RunWith(d.db.DB).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("sqlitedevice: set raw value %q: %w", key, err)
	}
	return nil
}

func (d *Device) RemoveRawStorageValue(ctx context.Context, key string) error {
	_, err := d.b.Delete("raw_values").Where(sq.Eq{"storage_key": key}).RunWith(d.db.DB).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("sqlitedevice: remove raw value %q: %w", key, err)
	}
	return nil
}

func (d *Device) GetAllRawDatabasePayloads(ctx context.Context) ([]storage.RawPayloadRecord, error) {
	rows, err := d.b.Select(
		"uuid", "content_type", "cipher_text", "enc_item_key", "items_key_id",
		"created_at", "updated_at", "dirty", "dirtied_date", "deleted",
	).From("payloads").RunWith(d.db.DB).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitedevice: list payloads: %w", err)
	}
	defer rows.Close()

	var out []storage.RawPayloadRecord
	for rows.Next() {
		var rec storage.RawPayloadRecord
		var dirty, deleted int
		if err := rows.Scan(
			&rec.UUID, &rec.ContentType, &rec.CipherText, &rec.EncItemKey, &rec.ItemsKeyID,
			&rec.CreatedAt, &rec.UpdatedAt, &dirty, &rec.DirtiedDate, &deleted,
		); err != nil {
			return nil, fmt.Errorf("sqlitedevice: scan payload row: %w", err)
		}
		rec.Dirty = dirty != 0
		rec.Deleted = deleted != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (d *Device) SaveRawDatabasePayload(ctx context.Context, record storage.RawPayloadRecord) error {
	_, err := d.b.Insert("payloads").
		Columns("uuid", "content_type", "cipher_text", "enc_item_key", "items_key_id",
			"created_at", "updated_at", "dirty", "dirtied_date", "deleted").
		Values(record.UUID, record.ContentType, record.CipherText, record.EncItemKey, record.ItemsKeyID,
			record.CreatedAt, record.UpdatedAt, boolToInt(record.Dirty), record.DirtiedDate, boolToInt(record.Deleted)).
		Suffix(`ON CONFLICT(uuid) DO UPDATE SET
			content_type = excluded.content_type,
			cipher_text = excluded.cipher_text,
			enc_item_key = excluded.enc_item_key,
			items_key_id = excluded.items_key_id,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			dirty = excluded.dirty,
			dirtied_date = excluded.dirtied_date,
			deleted = excluded.deleted`).
		RunWith(d.db.DB).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("sqlitedevice: save payload %s: %w", record.UUID, err)
	}
	return nil
}

func (d *Device) RemoveRawDatabasePayload(ctx context.Context, uuid string) error {
	_, err := d.b.Delete("payloads").Where(sq.Eq{"uuid": uuid}).RunWith(d.db.DB).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("sqlitedevice: remove payload %s: %w", uuid, err)
	}
	return nil
}

func (d *Device) SetKeychainValue(ctx context.Context, key, value string) error {
	_, err := d.b.Insert("keychain_values").
		Columns("keychain_key", "value").
		Values(key, value).
		Suffix("ON CONFLICT(keychain_key) DO UPDATE SET value = excluded.value").
		RunWith(d.db.DB).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("sqlitedevice: set keychain value %q: %w", key, err)
	}
	return nil
}

func (d *Device) GetKeychainValue(ctx context.Context, key string) (string, bool, error) {
	row := d.b.Select("value").From("keychain_values").Where(sq.Eq{"keychain_key": key}).RunWith(d.db.DB).QueryRowContext(ctx)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("sqlitedevice: get keychain value %q: %w", key, err)
	}
	return value, true, nil
}

func (d *Device) ClearKeychainValue(ctx context.Context, key string) error {
	_, err := d.b.Delete("keychain_values").Where(sq.Eq{"keychain_key": key}).RunWith(d.db.DB).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("sqlitedevice: clear keychain value %q: %w", key, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
