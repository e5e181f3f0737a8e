// SPDX-License-Identifier: Apache-2.0

package serverref

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/halvard/notesync/internal/serverref/migrations"
)

// psql is a squirrel statement builder bound to Postgres's $N placeholder
// style, mirroring the builder go-pass-keeper constructs ad hoc per query
// but centralized here since this package issues several query shapes.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// postgresStore is a Postgres-backed Store, the durable counterpart to
// memoryStore, grounded on go-pass-keeper's store.DB/userRepository split
// (sql.Open("pgx", dsn), pgerrcode-based classification of constraint
// violations) but built with squirrel for query construction rather than
// the teacher's hand-written prepared SQL strings, to exercise squirrel's
// presence in the dependency pack.
type postgresStore struct {
	db *sql.DB
}

// OpenPostgresStore opens a pgx-backed connection pool via database/sql,
// verifies reachability, and runs pending migrations.
func OpenPostgresStore(ctx context.Context, dsn string) (Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("serverref: open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(4)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("serverref: ping postgres: %w", err)
	}

	if err := migrations.Migrate(db); err != nil {
		return nil, fmt.Errorf("serverref: migrate postgres: %w", err)
	}

	return &postgresStore{db: db}, nil
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func (s *postgresStore) CreateUser(ctx context.Context, u userRecord) error {
	query, args, err := psql.Insert("users").
		Columns("uuid", "email", "server_password", "kp_version", "kp_identifier", "kp_pw_nonce", "kp_pw_salt", "kp_pw_cost").
		Values(u.UUID, u.Email, u.ServerPassword, u.KeyParams.Version, u.KeyParams.Identifier, u.KeyParams.PwNonce, u.KeyParams.PwSalt, u.KeyParams.PwCost).
		ToSql()
	if err != nil {
		return fmt.Errorf("serverref: build insert user: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if pgErrorCode(err) == pgerrcode.UniqueViolation {
			return ErrEmailAlreadyExists
		}
		return fmt.Errorf("serverref: insert user: %w", err)
	}

	seqQuery, seqArgs, err := psql.Insert("user_seq").Columns("user_uuid", "next_seq").Values(u.UUID, 0).ToSql()
	if err != nil {
		return fmt.Errorf("serverref: build insert user_seq: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, seqQuery, seqArgs...); err != nil {
		return fmt.Errorf("serverref: insert user_seq: %w", err)
	}

	return nil
}

func (s *postgresStore) FindUserByEmail(ctx context.Context, email string) (userRecord, error) {
	query, args, err := psql.Select("uuid", "email", "server_password", "kp_version", "kp_identifier", "kp_pw_nonce", "kp_pw_salt", "kp_pw_cost").
		From("users").Where(sq.Eq{"email": email}).ToSql()
	if err != nil {
		return userRecord{}, fmt.Errorf("serverref: build select user: %w", err)
	}

	var u userRecord
	row := s.db.QueryRowContext(ctx, query, args...)
	err = row.Scan(&u.UUID, &u.Email, &u.ServerPassword, &u.KeyParams.Version, &u.KeyParams.Identifier, &u.KeyParams.PwNonce, &u.KeyParams.PwSalt, &u.KeyParams.PwCost)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return userRecord{}, ErrUserNotFound
	case err != nil:
		return userRecord{}, fmt.Errorf("serverref: select user: %w", err)
	}
	return u, nil
}

func (s *postgresStore) UpdateUserPassword(ctx context.Context, uuid, serverPassword string, params KeyParamsDTO) error {
	query, args, err := psql.Update("users").
		Set("server_password", serverPassword).
		Set("kp_version", params.Version).
		Set("kp_identifier", params.Identifier).
		Set("kp_pw_nonce", params.PwNonce).
		Set("kp_pw_salt", params.PwSalt).
		Set("kp_pw_cost", params.PwCost).
		Where(sq.Eq{"uuid": uuid}).ToSql()
	if err != nil {
		return fmt.Errorf("serverref: build update user: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("serverref: update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *postgresStore) SyncItems(ctx context.Context, userUUID string, incoming []ItemDTO, sinceSeq int64) ([]ItemDTO, []ItemDTO, []ConflictEntryDTO, int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, nil, 0, fmt.Errorf("serverref: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var saved []ItemDTO
	var conflicts []ConflictEntryDTO

	for _, in := range incoming {
		var existing ItemDTO
		selQuery, selArgs, err := psql.Select("content_type", "content", "enc_item_key", "items_key_id", "created_at", "updated_at", "deleted", "auth_hash").
			From("items").Where(sq.Eq{"user_uuid": userUUID, "uuid": in.UUID}).ToSql()
		if err != nil {
			return nil, nil, nil, 0, fmt.Errorf("serverref: build select item: %w", err)
		}
		row := tx.QueryRowContext(ctx, selQuery, selArgs...)
		scanErr := row.Scan(&existing.ContentType, &existing.Content, &existing.EncItemKey, &existing.ItemsKeyID, &existing.CreatedAt, &existing.UpdatedAt, &existing.Deleted, &existing.AuthHash)
		present := scanErr == nil
		if !present && !errors.Is(scanErr, sql.ErrNoRows) {
			return nil, nil, nil, 0, fmt.Errorf("serverref: select item: %w", scanErr)
		}

		if present && !existing.updatedAt().Equal(in.updatedAt()) && !in.updatedAt().After(existing.updatedAt()) {
			existingCopy := existing
			existingCopy.UUID = in.UUID
			conflicts = append(conflicts, ConflictEntryDTO{Type: "sync_conflict", ServerItem: &existingCopy, UnsavedItem: &in})
			continue
		}

		nextSeq, err := s.nextSeq(ctx, tx, userUUID)
		if err != nil {
			return nil, nil, nil, 0, err
		}

		upsert := psql.Insert("items").
			Columns("user_uuid", "uuid", "content_type", "content", "enc_item_key", "items_key_id", "created_at", "updated_at", "deleted", "auth_hash", "sync_seq").
			Values(userUUID, in.UUID, in.ContentType, in.Content, in.EncItemKey, in.ItemsKeyID, in.CreatedAt, in.UpdatedAt, in.Deleted, in.AuthHash, nextSeq).
			Suffix("ON CONFLICT (user_uuid, uuid) DO UPDATE SET content_type=EXCLUDED.content_type, content=EXCLUDED.content, enc_item_key=EXCLUDED.enc_item_key, items_key_id=EXCLUDED.items_key_id, updated_at=EXCLUDED.updated_at, deleted=EXCLUDED.deleted, auth_hash=EXCLUDED.auth_hash, sync_seq=EXCLUDED.sync_seq")
		query, args, err := upsert.ToSql()
		if err != nil {
			return nil, nil, nil, 0, fmt.Errorf("serverref: build upsert item: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, nil, nil, 0, fmt.Errorf("serverref: upsert item: %w", err)
		}

		saved = append(saved, in)
	}

	retrieved, newSeq, err := s.itemsSince(ctx, tx, userUUID, sinceSeq)
	if err != nil {
		return nil, nil, nil, 0, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, nil, 0, fmt.Errorf("serverref: commit tx: %w", err)
	}

	return retrieved, saved, conflicts, newSeq, nil
}

func (s *postgresStore) nextSeq(ctx context.Context, tx *sql.Tx, userUUID string) (int64, error) {
	query, args, err := psql.Update("user_seq").Set("next_seq", sq.Expr("next_seq + 1")).
		Where(sq.Eq{"user_uuid": userUUID}).Suffix("RETURNING next_seq").ToSql()
	if err != nil {
		return 0, fmt.Errorf("serverref: build next_seq: %w", err)
	}
	var seq int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&seq); err != nil {
		return 0, fmt.Errorf("serverref: next_seq: %w", err)
	}
	return seq, nil
}

func (s *postgresStore) itemsSince(ctx context.Context, tx *sql.Tx, userUUID string, sinceSeq int64) ([]ItemDTO, int64, error) {
	query, args, err := psql.Select("uuid", "content_type", "content", "enc_item_key", "items_key_id", "created_at", "updated_at", "deleted", "auth_hash", "sync_seq").
		From("items").Where(sq.And{sq.Eq{"user_uuid": userUUID}, sq.Gt{"sync_seq": sinceSeq}}).OrderBy("updated_at ASC").ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("serverref: build items since: %w", err)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("serverref: items since: %w", err)
	}
	defer rows.Close()

	var out []ItemDTO
	var maxSeq int64
	for rows.Next() {
		var it ItemDTO
		var seq int64
		if err := rows.Scan(&it.UUID, &it.ContentType, &it.Content, &it.EncItemKey, &it.ItemsKeyID, &it.CreatedAt, &it.UpdatedAt, &it.Deleted, &it.AuthHash, &seq); err != nil {
			return nil, 0, fmt.Errorf("serverref: scan item: %w", err)
		}
		out = append(out, it)
		if seq > maxSeq {
			maxSeq = seq
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("serverref: rows: %w", err)
	}
	if maxSeq < sinceSeq {
		maxSeq = sinceSeq
	}
	return out, maxSeq, nil
}

func (s *postgresStore) AllItems(ctx context.Context, userUUID string) ([]ItemDTO, error) {
	query, args, err := psql.Select("uuid", "content_type", "content", "enc_item_key", "items_key_id", "created_at", "updated_at", "deleted", "auth_hash").
		From("items").Where(sq.Eq{"user_uuid": userUUID, "deleted": false}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("serverref: build all items: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("serverref: all items: %w", err)
	}
	defer rows.Close()

	var out []ItemDTO
	for rows.Next() {
		var it ItemDTO
		if err := rows.Scan(&it.UUID, &it.ContentType, &it.Content, &it.EncItemKey, &it.ItemsKeyID, &it.CreatedAt, &it.UpdatedAt, &it.Deleted, &it.AuthHash); err != nil {
			return nil, fmt.Errorf("serverref: scan item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
