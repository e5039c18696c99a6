package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/goclaw/internal/store"
)

// PGApprovalStore implements store.ApprovalStore. Resolution and
// supersession are both conditional UPDATEs so concurrent callback
// deliveries race safely (spec §4.4 "no concurrent resolution races").
// Grounded on original_source/app/db/approvals.py.
type PGApprovalStore struct {
	db *sql.DB
}

func NewPGApprovalStore(db *sql.DB) *PGApprovalStore {
	return &PGApprovalStore{db: db}
}

func (s *PGApprovalStore) Create(ctx context.Context, a *store.Approval) error {
	if a.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return store.NewError(store.KindFatal, "uuid gen", err)
		}
		a.ID = id
	}
	if a.Kind == "" {
		a.Kind = store.ApprovalKindGate
	}
	if a.Status == "" {
		a.Status = store.ApprovalPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO approvals (id, thread_id, job_id, kind, proposal_text, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`,
		a.ID, a.ThreadID, a.JobID, a.Kind, a.ProposalText, a.Status)
	if err != nil {
		return store.NewError(store.KindTransient, "approval create", err)
	}
	return nil
}

const approvalCols = `id, thread_id, job_id, kind, proposal_text, status, COALESCE(prompt_chat_id, ''), COALESCE(prompt_message_id, ''), created_at, resolved_at`

func scanApproval(row interface{ Scan(dest ...any) error }) (*store.Approval, error) {
	var a store.Approval
	if err := row.Scan(&a.ID, &a.ThreadID, &a.JobID, &a.Kind, &a.ProposalText, &a.Status,
		&a.PromptChatID, &a.PromptMessageID, &a.CreatedAt, &a.ResolvedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PGApprovalStore) Get(ctx context.Context, id uuid.UUID) (*store.Approval, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+approvalCols+` FROM approvals WHERE id = $1`, id)
	a, err := scanApproval(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.NewError(store.KindTransient, "approval get", err)
	}
	return a, nil
}

func (s *PGApprovalStore) GetByJob(ctx context.Context, jobID uuid.UUID) (*store.Approval, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+approvalCols+` FROM approvals WHERE job_id = $1 ORDER BY created_at DESC LIMIT 1`, jobID)
	a, err := scanApproval(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.NewError(store.KindTransient, "approval get by job", err)
	}
	return a, nil
}

func (s *PGApprovalStore) SetPrompt(ctx context.Context, id uuid.UUID, chatID, messageID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE approvals SET prompt_chat_id = $2, prompt_message_id = $3 WHERE id = $1`, id, chatID, messageID)
	if err != nil {
		return store.NewError(store.KindTransient, "approval set prompt", err)
	}
	return nil
}

// Resolve transitions a pending approval to a terminal status.
// Returns false (no error) if it was not pending — the caller treats
// that as "someone else already resolved it", per spec §4.4.
func (s *PGApprovalStore) Resolve(ctx context.Context, id uuid.UUID, status store.ApprovalStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE approvals SET status = $2, resolved_at = now()
		WHERE id = $1 AND status = 'pending'`, id, status)
	if err != nil {
		return false, store.NewError(store.KindTransient, "approval resolve", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SupersedePendingForThread transitions every pending approval in a
// thread to superseded in one statement, called before a new classify
// job is enqueued (spec §4.4 "Supersession").
func (s *PGApprovalStore) SupersedePendingForThread(ctx context.Context, threadID uuid.UUID) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE approvals SET status = 'superseded', resolved_at = now()
		WHERE thread_id = $1 AND status = 'pending'`, threadID)
	if err != nil {
		return 0, store.NewError(store.KindTransient, "approval supersede", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
