// SPDX-License-Identifier: Apache-2.0

package sqlitedevice

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/halvard/notesync/internal/storage"
)

func newMockDevice(t *testing.T) (*Device, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return New(&DB{DB: mockDB}, nil), mock
}

func TestGetRawStorageValueFound(t *testing.T) {
	dev, mock := newMockDevice(t)
	mock.ExpectQuery(`SELECT value FROM raw_values WHERE storage_key = \?`).
		WithArgs("app:last_sync_token").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("tok-123"))

	value, found, err := dev.GetRawStorageValue(context.Background(), "app:last_sync_token")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "tok-123", value)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRawStorageValueNotFound(t *testing.T) {
	dev, mock := newMockDevice(t)
	mock.ExpectQuery(`SELECT value FROM raw_values WHERE storage_key = \?`).
		WithArgs("app:missing").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	_, found, err := dev.GetRawStorageValue(context.Background(), "app:missing")
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetRawStorageValueUpserts(t *testing.T) {
	dev, mock := newMockDevice(t)
	mock.ExpectExec(`INSERT INTO raw_values`).
		WithArgs("app:last_sync_token", "tok-456").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, dev.SetRawStorageValue(context.Background(), "app:last_sync_token", "tok-456"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAndListRawDatabasePayload(t *testing.T) {
	dev, mock := newMockDevice(t)
	rec := storage.RawPayloadRecord{
		UUID: "u1", ContentType: "Note", CipherText: "004:...", Dirty: true,
	}
	mock.ExpectExec(`INSERT INTO payloads`).
		WithArgs(rec.UUID, rec.ContentType, rec.CipherText, rec.EncItemKey, rec.ItemsKeyID,
			rec.CreatedAt, rec.UpdatedAt, 1, rec.DirtiedDate, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, dev.SaveRawDatabasePayload(context.Background(), rec))

	mock.ExpectQuery(`SELECT uuid, content_type, cipher_text, enc_item_key, items_key_id, created_at, updated_at, dirty, dirtied_date, deleted FROM payloads`).
		WillReturnRows(sqlmock.NewRows(
			[]string{"uuid", "content_type", "cipher_text", "enc_item_key", "items_key_id", "created_at", "updated_at", "dirty", "dirtied_date", "deleted"},
		).AddRow("u1", "Note", "004:...", "", "", "", "", 1, "", 0))

	all, err := dev.GetAllRawDatabasePayloads(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "u1", all[0].UUID)
	require.True(t, all[0].Dirty)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveRawDatabasePayload(t *testing.T) {
	dev, mock := newMockDevice(t)
	mock.ExpectExec(`DELETE FROM payloads WHERE uuid = \?`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, dev.RemoveRawDatabasePayload(context.Background(), "u1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestKeychainValueRoundTrip(t *testing.T) {
	dev, mock := newMockDevice(t)
	mock.ExpectExec(`INSERT INTO keychain_values`).
		WithArgs("root_key_wrapper", "blob").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, dev.SetKeychainValue(context.Background(), "root_key_wrapper", "blob"))

	mock.ExpectQuery(`SELECT value FROM keychain_values WHERE keychain_key = \?`).
		WithArgs("root_key_wrapper").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("blob"))
	value, found, err := dev.GetKeychainValue(context.Background(), "root_key_wrapper")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "blob", value)

	mock.ExpectExec(`DELETE FROM keychain_values WHERE keychain_key = \?`).
		WithArgs("root_key_wrapper").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, dev.ClearKeychainValue(context.Background(), "root_key_wrapper"))
	require.NoError(t, mock.ExpectationsWereMet())
}
