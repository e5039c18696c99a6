package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/goclaw/internal/store"
)

type PGMessageStore struct {
	db *sql.DB
}

func NewPGMessageStore(db *sql.DB) *PGMessageStore {
	return &PGMessageStore{db: db}
}

// Insert writes an immutable Message row. Messages are never updated
// once written (spec §3 invariant).
func (s *PGMessageStore) Insert(ctx context.Context, m *store.Message) error {
	if m.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return store.NewError(store.KindFatal, "uuid gen", err)
		}
		m.ID = id
	}
	raw := m.RawPayload
	if raw == nil {
		raw = []byte("{}")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, thread_id, external_message_id, role, author_id, text, raw_payload, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), $6, $7, now())`,
		m.ID, m.ThreadID, m.ExternalMessageID, m.Role, m.AuthorID, m.Text, []byte(raw))
	if err != nil {
		return store.NewError(store.KindTransient, "message insert", err)
	}
	return nil
}

func (s *PGMessageStore) Get(ctx context.Context, id uuid.UUID) (*store.Message, error) {
	var m store.Message
	var extID, authorID sql.NullString
	row := s.db.QueryRowContext(ctx, `
		SELECT id, thread_id, COALESCE(external_message_id, ''), role, COALESCE(author_id, ''), COALESCE(text, ''), raw_payload, created_at
		FROM chat_messages WHERE id = $1`, id)
	if err := row.Scan(&m.ID, &m.ThreadID, &extID, &m.Role, &authorID, &m.Text, &m.RawPayload, &m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.NewError(store.KindTransient, "message get", err)
	}
	m.ExternalMessageID = extID.String
	m.AuthorID = authorID.String
	return &m, nil
}

// RecentWindow returns the last `limit` messages in a thread, oldest
// first, for use as conversation context (spec §4.3 "load last N
// messages").
func (s *PGMessageStore) RecentWindow(ctx context.Context, threadID uuid.UUID, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, thread_id, COALESCE(external_message_id, ''), role, COALESCE(author_id, ''), COALESCE(text, ''), raw_payload, created_at
		FROM chat_messages WHERE thread_id = $1 ORDER BY created_at DESC LIMIT $2`, threadID, limit)
	if err != nil {
		return nil, store.NewError(store.KindTransient, "message window", err)
	}
	defer rows.Close()

	var out []*store.Message
	for rows.Next() {
		var m store.Message
		var extID, authorID sql.NullString
		if err := rows.Scan(&m.ID, &m.ThreadID, &extID, &m.Role, &authorID, &m.Text, &m.RawPayload, &m.CreatedAt); err != nil {
			return nil, store.NewError(store.KindTransient, "message window scan", err)
		}
		m.ExternalMessageID = extID.String
		m.AuthorID = authorID.String
		out = append(out, &m)
	}
	// Reverse to oldest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}
