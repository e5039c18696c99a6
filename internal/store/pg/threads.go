package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/goclaw/internal/store"
)

// PGThreadStore implements store.ThreadStore. Threads are small and
// read far more than written, but unlike sessions.go's session cache
// we skip an in-memory cache here: get-or-create already needs a
// round trip for the uniqueness check, and thread reads are never on
// the hot classify/execute path (callers hold the id after lookup).
type PGThreadStore struct {
	db *sql.DB
}

func NewPGThreadStore(db *sql.DB) *PGThreadStore {
	return &PGThreadStore{db: db}
}

func (s *PGThreadStore) GetOrCreate(ctx context.Context, platform, externalChatID string) (*store.Thread, error) {
	var t store.Thread
	row := s.db.QueryRowContext(ctx, `
		SELECT id, platform, external_chat_id, created_at, updated_at
		FROM chat_threads WHERE platform = $1 AND external_chat_id = $2`,
		platform, externalChatID)
	if err := row.Scan(&t.ID, &t.Platform, &t.ExternalChatID, &t.CreatedAt, &t.UpdatedAt); err == nil {
		return &t, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, store.NewError(store.KindTransient, "thread lookup", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, store.NewError(store.KindFatal, "uuid gen", err)
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_threads (id, platform, external_chat_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (platform, external_chat_id) DO NOTHING`,
		id, platform, externalChatID, now)
	if err != nil {
		return nil, store.NewError(store.KindTransient, "thread insert", err)
	}

	// Someone else may have won the race; re-read unconditionally.
	row = s.db.QueryRowContext(ctx, `
		SELECT id, platform, external_chat_id, created_at, updated_at
		FROM chat_threads WHERE platform = $1 AND external_chat_id = $2`,
		platform, externalChatID)
	if err := row.Scan(&t.ID, &t.Platform, &t.ExternalChatID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, store.NewError(store.KindTransient, "thread reread", err)
	}
	return &t, nil
}

func (s *PGThreadStore) Get(ctx context.Context, id uuid.UUID) (*store.Thread, error) {
	var t store.Thread
	row := s.db.QueryRowContext(ctx, `
		SELECT id, platform, external_chat_id, created_at, updated_at
		FROM chat_threads WHERE id = $1`, id)
	if err := row.Scan(&t.ID, &t.Platform, &t.ExternalChatID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.NewError(store.KindTransient, "thread get", err)
	}
	return &t, nil
}

func (s *PGThreadStore) Touch(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `UPDATE chat_threads SET updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return store.NewError(store.KindTransient, "thread touch", err)
	}
	return nil
}
