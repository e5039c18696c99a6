package pg

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/goclaw/internal/store"
)

// PGMemoryStore implements store.MemoryStore (C10), an append-only log
// of cycle summaries and "aroma" context snapshots. Grounded on
// original_source/app/memory/writeback.py.
type PGMemoryStore struct {
	db *sql.DB
}

func NewPGMemoryStore(db *sql.DB) *PGMemoryStore {
	return &PGMemoryStore{db: db}
}

func (s *PGMemoryStore) Append(ctx context.Context, e *store.MemoryEntry) error {
	if e.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return store.NewError(store.KindFatal, "uuid gen", err)
		}
		e.ID = id
	}
	payload := e.Payload
	if payload == nil {
		payload = []byte("{}")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_entries (id, kind, payload, created_at) VALUES ($1, $2, $3, now())`,
		e.ID, e.Kind, []byte(payload))
	if err != nil {
		return store.NewError(store.KindTransient, "memory append", err)
	}
	return nil
}

// Recent returns the N most recent entries of a kind, newest-first.
func (s *PGMemoryStore) Recent(ctx context.Context, kind store.MemoryEntryKind, limit int) ([]*store.MemoryEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, payload, created_at FROM memory_entries
		WHERE kind = $1 ORDER BY created_at DESC LIMIT $2`, kind, limit)
	if err != nil {
		return nil, store.NewError(store.KindTransient, "memory recent", err)
	}
	defer rows.Close()
	var out []*store.MemoryEntry
	for rows.Next() {
		var e store.MemoryEntry
		if err := rows.Scan(&e.ID, &e.Kind, &e.Payload, &e.CreatedAt); err != nil {
			return nil, store.NewError(store.KindTransient, "memory recent scan", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
