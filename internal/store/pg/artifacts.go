package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/goclaw/internal/store"
)

// PGArtifactStore implements store.ArtifactStore, backing the Media
// Processor's pending-work queue (spec §4.5).
type PGArtifactStore struct {
	db *sql.DB
}

func NewPGArtifactStore(db *sql.DB) *PGArtifactStore {
	return &PGArtifactStore{db: db}
}

func (s *PGArtifactStore) Insert(ctx context.Context, a *store.Artifact) error {
	if a.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return store.NewError(store.KindFatal, "uuid gen", err)
		}
		a.ID = id
	}
	if a.Status == "" {
		a.Status = store.ArtifactPending
	}
	content := a.Content
	if content == nil {
		content = []byte("{}")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO message_artifacts (id, message_id, kind, content, uri, status, attempt_count, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, 0, now())`,
		a.ID, a.MessageID, a.Kind, []byte(content), a.URI, a.Status)
	if err != nil {
		return store.NewError(store.KindTransient, "artifact insert", err)
	}
	return nil
}

func scanArtifact(row interface {
	Scan(dest ...any) error
}) (*store.Artifact, error) {
	var a store.Artifact
	var uri, errMsg sql.NullString
	if err := row.Scan(&a.ID, &a.MessageID, &a.Kind, &a.Content, &uri, &a.Status, &a.AttemptCount,
		&a.LastAttemptAt, &errMsg, &a.CreatedAt, &a.CompletedAt); err != nil {
		return nil, err
	}
	a.URI = uri.String
	a.Error = errMsg.String
	return &a, nil
}

const artifactCols = `id, message_id, kind, content, uri, status, attempt_count, last_attempt_at, error, created_at, completed_at`

func (s *PGArtifactStore) Get(ctx context.Context, id uuid.UUID) (*store.Artifact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+artifactCols+` FROM message_artifacts WHERE id = $1`, id)
	a, err := scanArtifact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.NewError(store.KindTransient, "artifact get", err)
	}
	return a, nil
}

func (s *PGArtifactStore) ListForMessage(ctx context.Context, messageID uuid.UUID) ([]*store.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+artifactCols+` FROM message_artifacts WHERE message_id = $1 ORDER BY created_at`, messageID)
	if err != nil {
		return nil, store.NewError(store.KindTransient, "artifact list", err)
	}
	defer rows.Close()
	var out []*store.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, store.NewError(store.KindTransient, "artifact list scan", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListPendingForProcessing selects up to `limit` artifacts with
// status in {pending, failed} and attempt_count < 3, oldest first —
// the exact selection spec §4.5 specifies for each processor tick.
func (s *PGArtifactStore) ListPendingForProcessing(ctx context.Context, limit int) ([]*store.Artifact, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+artifactCols+` FROM message_artifacts
		WHERE status IN ('pending', 'failed') AND attempt_count < $1
		ORDER BY created_at ASC LIMIT $2`, store.ArtifactMaxAttempts, limit)
	if err != nil {
		return nil, store.NewError(store.KindTransient, "artifact pending list", err)
	}
	defer rows.Close()
	var out []*store.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, store.NewError(store.KindTransient, "artifact pending scan", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PGArtifactStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE message_artifacts
		SET status = 'processing', attempt_count = attempt_count + 1, last_attempt_at = now()
		WHERE id = $1`, id)
	if err != nil {
		return store.NewError(store.KindTransient, "artifact mark processing", err)
	}
	return nil
}

func (s *PGArtifactStore) MarkDone(ctx context.Context, id uuid.UUID, content []byte) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE message_artifacts
		SET status = 'done', content = content || $2::jsonb, completed_at = now()
		WHERE id = $1`, id, content)
	if err != nil {
		return store.NewError(store.KindTransient, "artifact mark done", err)
	}
	return nil
}

func (s *PGArtifactStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE message_artifacts SET status = 'failed', error = $2 WHERE id = $1`, id, errMsg)
	if err != nil {
		return store.NewError(store.KindTransient, "artifact mark failed", err)
	}
	return nil
}
