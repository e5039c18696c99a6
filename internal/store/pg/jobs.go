package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/goclaw/internal/store"
)

// PGJobStore implements store.JobStore. The lease is a conditional
// UPDATE ("WHERE status = 'queued'"): zero rows affected means another
// worker already won, matching §5's "no in-process locks on business
// state" resource policy. Grounded on original_source/app/db/jobs.py's
// poll_pending_jobs (oldest-first) and update_job_status.
type PGJobStore struct {
	db *sql.DB
}

func NewPGJobStore(db *sql.DB) *PGJobStore {
	return &PGJobStore{db: db}
}

func (s *PGJobStore) Enqueue(ctx context.Context, j *store.ReactiveJob) error {
	if j.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return store.NewError(store.KindFatal, "uuid gen", err)
		}
		j.ID = id
	}
	if j.Status == "" {
		j.Status = store.JobQueued
	}
	payload := j.Payload
	if payload == nil {
		payload = []byte("{}")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reactive_jobs (id, thread_id, trigger_message_id, mode, status, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`,
		j.ID, j.ThreadID, j.TriggerMessageID, j.Mode, j.Status, []byte(payload))
	if err != nil {
		return store.NewError(store.KindTransient, "job enqueue", err)
	}
	return nil
}

const jobCols = `id, thread_id, trigger_message_id, mode, status, payload, created_at, started_at, finished_at`

func scanJob(row interface{ Scan(dest ...any) error }) (*store.ReactiveJob, error) {
	var j store.ReactiveJob
	if err := row.Scan(&j.ID, &j.ThreadID, &j.TriggerMessageID, &j.Mode, &j.Status, &j.Payload,
		&j.CreatedAt, &j.StartedAt, &j.FinishedAt); err != nil {
		return nil, err
	}
	return &j, nil
}

// LeaseOldestQueued atomically selects the oldest queued job and flips
// it to running, or returns store.ErrNotFound if none are queued.
func (s *PGJobStore) LeaseOldestQueued(ctx context.Context) (*store.ReactiveJob, error) {
	var job *store.ReactiveJob
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT `+jobCols+` FROM reactive_jobs
			WHERE status = 'queued' ORDER BY created_at ASC LIMIT 1 FOR UPDATE SKIP LOCKED`)
		j, err := scanJob(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE reactive_jobs SET status = 'running', started_at = now()
			WHERE id = $1 AND status = 'queued'`, j.ID)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			// Someone else leased it between our SELECT and UPDATE.
			return store.ErrNotFound
		}
		j.Status = store.JobRunning
		job = j
		return nil
	})
	if err != nil {
		if store.Is(err, store.KindNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, store.NewError(store.KindTransient, "job lease", err)
	}
	return job, nil
}

func (s *PGJobStore) SetMode(ctx context.Context, id uuid.UUID, mode store.JobMode) error {
	_, err := s.db.ExecContext(ctx, `UPDATE reactive_jobs SET mode = $2, status = 'queued' WHERE id = $1`, id, mode)
	if err != nil {
		return store.NewError(store.KindTransient, "job set mode", err)
	}
	return nil
}

func (s *PGJobStore) Finish(ctx context.Context, id uuid.UUID, status store.JobStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE reactive_jobs SET status = $2, finished_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return store.NewError(store.KindTransient, "job finish", err)
	}
	return nil
}

func (s *PGJobStore) Get(ctx context.Context, id uuid.UUID) (*store.ReactiveJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobCols+` FROM reactive_jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.NewError(store.KindTransient, "job get", err)
	}
	return j, nil
}

// CancelPendingForThread marks every queued job in a thread canceled.
// Nothing in this repository calls it; ingestion supersedes a thread's
// pending approvals with SupersedePendingForThread.
func (s *PGJobStore) CancelPendingForThread(ctx context.Context, threadID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE reactive_jobs SET status = 'canceled', finished_at = now()
		WHERE thread_id = $1 AND status = 'queued'`, threadID)
	if err != nil {
		return store.NewError(store.KindTransient, "job cancel pending", err)
	}
	return nil
}

// RecoverStaleRunning marks any job still "running" as "failed" on
// process startup — recovery-on-boot per spec §5: a job left running
// across a crash can never be trusted to still be in flight, and
// nothing resumes a half-finished reactive job.
func (s *PGJobStore) RecoverStaleRunning(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reactive_jobs SET status = 'failed', finished_at = now()
		WHERE status = 'running'`)
	if err != nil {
		return 0, store.NewError(store.KindTransient, "job recover stale running", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PGJobStore) CountByStatus(ctx context.Context) (map[store.JobStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, count(*) FROM reactive_jobs
		WHERE created_at >= date_trunc('day', now()) GROUP BY status`)
	if err != nil {
		return nil, store.NewError(store.KindTransient, "job count by status", err)
	}
	defer rows.Close()
	out := map[store.JobStatus]int{}
	for rows.Next() {
		var st store.JobStatus
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, store.NewError(store.KindTransient, "job count scan", err)
		}
		out[st] = n
	}
	return out, rows.Err()
}
